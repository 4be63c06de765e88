package service

import (
	"context"
	"fmt"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

// DashboardService manages dashboards and the queries pinned to them.
type DashboardService struct {
	dashboards core.DashboardRepository
	queries    core.QueryRepository
	databases  core.DatabaseRepository
}

func NewDashboardService(dashboards core.DashboardRepository, queries core.QueryRepository, databases core.DatabaseRepository) *DashboardService {
	return &DashboardService{dashboards: dashboards, queries: queries, databases: databases}
}

// DashboardData is a dashboard with its queries, their stored results and layouts.
type DashboardData struct {
	core.Dashboard
	Queries []core.DashboardQuery `json:"queries"`
}

// Create stores a dashboard. Names are unique per owner; tags are normalized.
func (s *DashboardService) Create(ctx context.Context, d *core.Dashboard) error {
	if d.DBID != nil {
		if _, err := s.databases.GetByID(ctx, d.UserID, *d.DBID); err != nil {
			return err
		}
	}
	d.Tags = core.NormalizeTags(d.Tags)
	if err := s.dashboards.Create(ctx, d); err != nil {
		return err
	}
	logger.Info.Printf("User %d created dashboard %q (id %d)", d.UserID, d.Name, d.ID)
	return nil
}

// Update changes the name, description, database and tags of a dashboard.
// Only supplied fields change. The database cannot be switched while queries
// of another database are linked.
func (s *DashboardService) Update(ctx context.Context, d *core.Dashboard) (*core.Dashboard, error) {
	existing, err := s.dashboards.GetByID(ctx, d.UserID, d.ID)
	if err != nil {
		return nil, err
	}
	if d.DBID != nil {
		if _, err := s.databases.GetByID(ctx, d.UserID, *d.DBID); err != nil {
			return nil, err
		}
		linked, err := s.dashboards.Queries(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, q := range linked {
			if q.DBID != *d.DBID {
				return nil, fmt.Errorf("dashboard %d has query %d of database %d linked: %w", d.ID, q.ID, q.DBID, core.ErrConflict)
			}
		}
		existing.DBID = d.DBID
	}
	if d.Name != "" {
		existing.Name = d.Name
	}
	if d.Description != "" {
		existing.Description = d.Description
	}
	if d.Tags != nil {
		existing.Tags = core.NormalizeTags(d.Tags)
	}
	if err := s.dashboards.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *DashboardService) Delete(ctx context.Context, userID, id int64) error {
	return s.dashboards.SoftDelete(ctx, userID, id)
}

func (s *DashboardService) List(ctx context.Context, userID int64) ([]core.Dashboard, error) {
	return s.dashboards.ListByUser(ctx, userID)
}

func (s *DashboardService) Count(ctx context.Context, userID int64) (int, error) {
	return s.dashboards.CountByUser(ctx, userID)
}

// Data returns the dashboard with its linked queries as last stored.
func (s *DashboardService) Data(ctx context.Context, userID, id int64) (*DashboardData, error) {
	d, err := s.dashboards.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	queries, err := s.dashboards.Queries(ctx, id)
	if err != nil {
		return nil, err
	}
	if queries == nil {
		queries = []core.DashboardQuery{}
	}
	return &DashboardData{Dashboard: *d, Queries: queries}, nil
}

// LinkQuery pins a query to a dashboard. Linking twice is a no-op that reports false.
// The query must belong to the dashboard's database.
func (s *DashboardService) LinkQuery(ctx context.Context, userID, dashboardID, queryID int64, layout *core.Layout) (bool, error) {
	d, err := s.dashboards.GetByID(ctx, userID, dashboardID)
	if err != nil {
		return false, err
	}
	q, err := s.queries.GetByID(ctx, userID, queryID)
	if err != nil {
		return false, err
	}
	if d.DBID != nil && *d.DBID != q.DBID {
		return false, fmt.Errorf("query %d belongs to database %d, dashboard %d uses database %d: %w",
			q.ID, q.DBID, d.ID, *d.DBID, core.ErrConflict)
	}
	l := core.DefaultLayout
	if layout != nil {
		l = *layout
	}
	return s.dashboards.LinkQuery(ctx, dashboardID, queryID, l)
}

func (s *DashboardService) UnlinkQuery(ctx context.Context, userID, dashboardID, queryID int64) error {
	if _, err := s.dashboards.GetByID(ctx, userID, dashboardID); err != nil {
		return err
	}
	return s.dashboards.UnlinkQuery(ctx, dashboardID, queryID)
}

// UpdateLayouts sets the placement of linked queries on this dashboard only.
func (s *DashboardService) UpdateLayouts(ctx context.Context, userID, dashboardID int64, layouts map[int64]core.Layout) error {
	if _, err := s.dashboards.GetByID(ctx, userID, dashboardID); err != nil {
		return err
	}
	return s.dashboards.UpdateLayouts(ctx, dashboardID, layouts)
}
