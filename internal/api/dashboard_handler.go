package api

import (
	"errors"
	"io"
	"net/http"

	"sqlinsight/internal/core"
)

func (h *Handler) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req dashboardRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	d := &core.Dashboard{
		UserID:      core.UserIDFrom(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		DBID:        req.DBID,
		Tags:        req.Tags,
	}
	if err := h.dashboards.Create(r.Context(), d); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Dashboard created", d)
}

func (h *Handler) UpdateDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req dashboardRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.dashboards.Update(r.Context(), &core.Dashboard{
		ID:          id,
		UserID:      core.UserIDFrom(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		DBID:        req.DBID,
		Tags:        req.Tags,
	})
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard updated", d)
}

func (h *Handler) DeleteDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.dashboards.Delete(r.Context(), core.UserIDFrom(r.Context()), id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard deleted", nil)
}

func (h *Handler) ListDashboards(w http.ResponseWriter, r *http.Request) {
	list, err := h.dashboards.List(r.Context(), core.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboards fetched", list)
}

func (h *Handler) CountDashboards(w http.ResponseWriter, r *http.Request) {
	n, err := h.dashboards.Count(r.Context(), core.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboards counted", map[string]int{"count": n})
}

func (h *Handler) DashboardData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	data, err := h.dashboards.Data(r.Context(), core.UserIDFrom(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard fetched", data)
}

func (h *Handler) UpdateLayout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req layoutRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	layouts := make(map[int64]core.Layout, len(req.Layouts))
	for _, item := range req.Layouts {
		layouts[item.QueryID] = core.Layout{X: item.X, Y: item.Y, W: item.W, H: item.H}
	}
	if err := h.dashboards.UpdateLayouts(r.Context(), core.UserIDFrom(r.Context()), id, layouts); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Layout updated", nil)
}

func (h *Handler) RunDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	runs, err := h.runner.Run(r.Context(), core.UserIDFrom(r.Context()), id)
	if err != nil {
		// A failed commit still reports how each query fared.
		if runs != nil {
			failWith(w, err, runs)
			return
		}
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard run finished", runs)
}

func (h *Handler) LinkQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	queryID, err := pathID(r, "queryID")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req linkRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, err)
		return
	}

	linked, err := h.dashboards.LinkQuery(r.Context(), core.UserIDFrom(r.Context()), id, queryID, req.Layout)
	if err != nil {
		fail(w, err)
		return
	}
	if !linked {
		respond(w, http.StatusOK, "Query already on dashboard", map[string]bool{"linked": false})
		return
	}
	respond(w, http.StatusCreated, "Query added to dashboard", map[string]bool{"linked": true})
}

func (h *Handler) UnlinkQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	queryID, err := pathID(r, "queryID")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.dashboards.UnlinkQuery(r.Context(), core.UserIDFrom(r.Context()), id, queryID); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Query removed from dashboard", nil)
}
