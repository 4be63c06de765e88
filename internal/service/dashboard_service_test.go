package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlinsight/internal/core"
)

func (e *env) secondDatabase(t *testing.T) *core.DatabaseConnection {
	t.Helper()
	shop := newShopTarget(t)
	conn, err := e.databases.Connect(context.Background(), e.userID, Credentials{
		Provider: core.ProviderSQLite,
		DBName:   strings.TrimPrefix(shop.ConnectionString, "sqlite://"),
	})
	require.NoError(t, err)
	return conn
}

func TestLinkQueryRejectsOtherDatabase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	other := e.secondDatabase(t)
	d := e.dashboard(t)

	foreign := &core.StoredQuery{UserID: e.userID, DBID: other.ID, Name: "x", Text: "orders count", OutputType: core.OutputTabular}
	require.NoError(t, e.queryRepo.Create(ctx, foreign))

	_, err := e.dashboards.LinkQuery(ctx, e.userID, d.ID, foreign.ID, nil)
	assert.ErrorIs(t, err, core.ErrConflict)

	data, err := e.dashboards.Data(ctx, e.userID, d.ID)
	require.NoError(t, err)
	assert.Empty(t, data.Queries)

	local := e.query(t, "orders count", core.OutputTabular)
	linked, err := e.dashboards.LinkQuery(ctx, e.userID, d.ID, local.ID, nil)
	require.NoError(t, err)
	assert.True(t, linked)
}

func TestUpdateDashboardKeepsLinkedDatabase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	other := e.secondDatabase(t)
	d := e.dashboard(t, e.query(t, "orders count", core.OutputTabular))

	_, err := e.dashboards.Update(ctx, &core.Dashboard{ID: d.ID, UserID: e.userID, DBID: &other.ID})
	assert.ErrorIs(t, err, core.ErrConflict)

	got, err := e.dashRepo.GetByID(ctx, e.userID, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DBID)
	assert.Equal(t, e.target.ID, *got.DBID)
}

func TestUpdateDashboardChangesOnlySuppliedFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := &core.Dashboard{UserID: e.userID, Name: "Sales", Description: "Weekly numbers", DBID: &e.target.ID, Tags: []string{"weekly"}}
	require.NoError(t, e.dashboards.Create(ctx, d))

	updated, err := e.dashboards.Update(ctx, &core.Dashboard{ID: d.ID, UserID: e.userID, Name: "Sales 2024"})
	require.NoError(t, err)
	assert.Equal(t, "Sales 2024", updated.Name)
	assert.Equal(t, "Weekly numbers", updated.Description)
	assert.Equal(t, []string{"weekly"}, updated.Tags)

	updated, err = e.dashboards.Update(ctx, &core.Dashboard{ID: d.ID, UserID: e.userID, Description: "Monthly numbers"})
	require.NoError(t, err)
	assert.Equal(t, "Sales 2024", updated.Name)
	assert.Equal(t, "Monthly numbers", updated.Description)

	got, err := e.dashRepo.GetByID(ctx, e.userID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monthly numbers", got.Description)
}
