package data

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlinsight/internal/core"
)

type fixture struct {
	db         *sql.DB
	users      *UserRepo
	databases  *DatabaseRepo
	queries    *QueryRepo
	dashboards *DashboardRepo
	userID     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:         db,
		users:      NewUserRepo(db),
		databases:  NewDatabaseRepo(db),
		queries:    NewQueryRepo(db),
		dashboards: NewDashboardRepo(db),
	}
	u, err := f.users.Create(context.Background(), "alice", "hash")
	require.NoError(t, err)
	f.userID = u.ID
	return f
}

func (f *fixture) database(t *testing.T) *core.DatabaseConnection {
	t.Helper()
	c := &core.DatabaseConnection{
		UserID:              f.userID,
		Provider:            core.ProviderPostgres,
		Host:                "localhost",
		Port:                5432,
		DBName:              "shop",
		Username:            "reader",
		PasswordEnc:         "enc-pwd",
		ConnectionStringEnc: "enc-uri",
		SchemaJSON:          `{"orders":[]}`,
	}
	require.NoError(t, f.databases.Create(context.Background(), c))
	return c
}

func (f *fixture) query(t *testing.T, dbID int64, name string) *core.StoredQuery {
	t.Helper()
	q := &core.StoredQuery{UserID: f.userID, DBID: dbID, Name: name, Text: "how many " + name, OutputType: core.OutputTabular}
	require.NoError(t, f.queries.Create(context.Background(), q))
	return q
}

func (f *fixture) dashboard(t *testing.T, name string, dbID int64) *core.Dashboard {
	t.Helper()
	d := &core.Dashboard{UserID: f.userID, Name: name, DBID: &dbID}
	require.NoError(t, f.dashboards.Create(context.Background(), d))
	return d
}

func (f *fixture) linkCount(t *testing.T, queryID int64) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM dashboard_queries WHERE query_id = ?`, queryID).Scan(&n))
	return n
}

func TestDatabaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)

	got, err := f.databases.GetByID(ctx, f.userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProviderPostgres, got.Provider)
	assert.Equal(t, "shop", got.DBName)
	assert.Equal(t, 5432, got.Port)
	assert.Equal(t, "enc-uri", got.ConnectionStringEnc)
	assert.Equal(t, `{"orders":[]}`, got.SchemaJSON)

	_, err = f.databases.GetByID(ctx, f.userID+1, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	n, err := f.databases.CountByUser(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDatabaseSoftDeleteCascadesToQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	q1 := f.query(t, c.ID, "orders")
	q2 := f.query(t, c.ID, "customers")
	d := f.dashboard(t, "Sales", c.ID)
	_, err := f.dashboards.LinkQuery(ctx, d.ID, q1.ID, core.DefaultLayout)
	require.NoError(t, err)

	require.NoError(t, f.databases.SoftDelete(ctx, f.userID, c.ID))

	_, err = f.databases.GetByID(ctx, f.userID, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	for _, id := range []int64{q1.ID, q2.ID} {
		_, err := f.queries.GetByID(ctx, f.userID, id)
		assert.ErrorIs(t, err, core.ErrNotFound)
	}
	n, err := f.queries.Count(ctx, core.QueryFilter{UserID: f.userID, DBID: c.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	// links stay, but deleted queries are not served
	assert.Equal(t, 1, f.linkCount(t, q1.ID))
	linked, err := f.dashboards.Queries(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)

	assert.ErrorIs(t, f.databases.SoftDelete(ctx, f.userID, c.ID), core.ErrNotFound)
}

func TestQuerySoftDeleteDropsLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	q := f.query(t, c.ID, "orders")
	d1 := f.dashboard(t, "One", c.ID)
	d2 := f.dashboard(t, "Two", c.ID)
	for _, d := range []*core.Dashboard{d1, d2} {
		_, err := f.dashboards.LinkQuery(ctx, d.ID, q.ID, core.DefaultLayout)
		require.NoError(t, err)
	}
	require.Equal(t, 2, f.linkCount(t, q.ID))

	require.NoError(t, f.queries.SoftDelete(ctx, f.userID, q.ID))

	assert.Zero(t, f.linkCount(t, q.ID))
	_, err := f.queries.GetByID(ctx, f.userID, q.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLinkQueryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	q := f.query(t, c.ID, "orders")
	d := f.dashboard(t, "Sales", c.ID)

	linked, err := f.dashboards.LinkQuery(ctx, d.ID, q.ID, core.Layout{X: 2, Y: 1, W: 4, H: 3})
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = f.dashboards.LinkQuery(ctx, d.ID, q.ID, core.DefaultLayout)
	require.NoError(t, err)
	assert.False(t, linked)

	list, err := f.dashboards.Queries(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.Layout{X: 2, Y: 1, W: 4, H: 3}, list[0].Layout, "second link must not reset the layout")

	require.NoError(t, f.dashboards.UnlinkQuery(ctx, d.ID, q.ID))
	assert.ErrorIs(t, f.dashboards.UnlinkQuery(ctx, d.ID, q.ID), core.ErrNotFound)
}

func TestLayoutsArePerDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	q := f.query(t, c.ID, "orders")
	d1 := f.dashboard(t, "One", c.ID)
	d2 := f.dashboard(t, "Two", c.ID)
	for _, d := range []*core.Dashboard{d1, d2} {
		_, err := f.dashboards.LinkQuery(ctx, d.ID, q.ID, core.DefaultLayout)
		require.NoError(t, err)
	}

	moved := core.Layout{X: 6, Y: 2, W: 3, H: 5}
	require.NoError(t, f.dashboards.UpdateLayouts(ctx, d1.ID, map[int64]core.Layout{q.ID: moved}))

	one, err := f.dashboards.Queries(ctx, d1.ID)
	require.NoError(t, err)
	two, err := f.dashboards.Queries(ctx, d2.ID)
	require.NoError(t, err)
	assert.Equal(t, moved, one[0].Layout)
	assert.Equal(t, core.DefaultLayout, two[0].Layout)
}

func TestUpdateLayoutsRejectsUnlinkedQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	q := f.query(t, c.ID, "orders")
	d := f.dashboard(t, "Sales", c.ID)

	err := f.dashboards.UpdateLayouts(ctx, d.ID, map[int64]core.Layout{q.ID: core.DefaultLayout})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDashboardNameUniquePerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	d := f.dashboard(t, "Sales", c.ID)

	err := f.dashboards.Create(ctx, &core.Dashboard{UserID: f.userID, Name: "Sales"})
	assert.ErrorIs(t, err, core.ErrConflict)

	bob, err := f.users.Create(context.Background(), "bob", "hash")
	require.NoError(t, err)
	require.NoError(t, f.dashboards.Create(ctx, &core.Dashboard{UserID: bob.ID, Name: "Sales"}))

	// renaming onto a taken name conflicts too
	other := f.dashboard(t, "Ops", c.ID)
	other.Name = "Sales"
	assert.ErrorIs(t, f.dashboards.Update(ctx, other), core.ErrConflict)

	require.NoError(t, f.dashboards.SoftDelete(ctx, f.userID, d.ID))
	require.NoError(t, f.dashboards.Create(ctx, &core.Dashboard{UserID: f.userID, Name: "Sales"}))
}

func TestDashboardTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := &core.Dashboard{UserID: f.userID, Name: "Sales", Tags: []string{"revenue", "kpi"}}
	require.NoError(t, f.dashboards.Create(ctx, d))
	assert.Nil(t, d.DBID)

	got, err := f.dashboards.GetByID(ctx, f.userID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"kpi", "revenue"}, got.Tags)
	assert.Nil(t, got.DBID)

	got.Tags = []string{"weekly"}
	require.NoError(t, f.dashboards.Update(ctx, got))

	list, err := f.dashboards.ListByUser(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"weekly"}, list[0].Tags)
}

func TestSaveResultsCommitsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	q1 := f.query(t, c.ID, "orders")
	q2 := f.query(t, c.ID, "customers")

	err := f.queries.SaveResults(ctx, []core.QueryResult{
		{QueryID: q1.ID, GeneratedSQL: "SELECT 1 LIMIT 100;", Data: `[{"n":1}]`},
		{QueryID: q2.ID, GeneratedSQL: "SELECT 2 LIMIT 100;", Data: `[{"n":2}]`},
	})
	require.NoError(t, err)

	got, err := f.queries.GetByID(ctx, f.userID, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2 LIMIT 100;", got.GeneratedSQL)
	assert.Equal(t, `[{"n":2}]`, got.Data)
}

func TestSaveResultsRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queries SET generated_sql_query").
		WithArgs("SELECT 1", "[]", sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE queries SET generated_sql_query").
		WithArgs("SELECT 2", "[]", sqlmock.AnyArg(), int64(2)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	repo := NewQueryRepo(db)
	err = repo.SaveResults(context.Background(), []core.QueryResult{
		{QueryID: 1, GeneratedSQL: "SELECT 1", Data: "[]"},
		{QueryID: 2, GeneratedSQL: "SELECT 2", Data: "[]"},
		{QueryID: 3, GeneratedSQL: "SELECT 3", Data: "[]"},
	})
	assert.EqualError(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResultsRollsBackOnCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err = NewQueryRepo(db).SaveResults(context.Background(), []core.QueryResult{{QueryID: 1}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryListSearchAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.database(t)
	f.query(t, c.ID, "orders per month")
	f.query(t, c.ID, "top customers")
	f.query(t, c.ID, "orders per region")

	filter := core.QueryFilter{UserID: f.userID, DBID: c.ID, Search: "orders"}
	n, err := f.queries.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	filter.Limit = 1
	page, err := f.queries.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "orders per region", page[0].Name, "newest first")

	filter.Offset = 1
	page, err = f.queries.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "orders per month", page[0].Name)
}

func TestAuditRecent(t *testing.T) {
	f := newFixture(t)
	repo := NewAuditRepo(f.db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &core.AuditLog{UserID: f.userID, DatabaseID: 3, Status: "SUCCESS", Statement: "SELECT 1"}))
	require.NoError(t, repo.Create(ctx, &core.AuditLog{UserID: f.userID, DatabaseID: 3, Status: "ERROR", ErrorMessage: "boom", Statement: "SELECT x"}))
	require.NoError(t, repo.Create(ctx, &core.AuditLog{UserID: f.userID + 1, Status: "SUCCESS"}))

	logs, err := repo.Recent(ctx, f.userID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "ERROR", logs[0].Status)
	assert.Equal(t, "SELECT x", logs[0].Statement)
}
