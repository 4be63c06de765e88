package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"sqlinsight/internal/core"
	"sqlinsight/internal/service"
)

func (h *Handler) SaveQuery(w http.ResponseWriter, r *http.Request) {
	var req saveQueryRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	q := &core.StoredQuery{
		UserID:     core.UserIDFrom(r.Context()),
		DBID:       req.DBID,
		Name:       req.Name,
		Text:       req.Text,
		OutputType: req.OutputType,
	}
	if err := h.queries.Save(r.Context(), q); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Query saved", q)
}

func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	q, err := h.queries.Get(r.Context(), core.UserIDFrom(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Query fetched", q)
}

func (h *Handler) UpdateQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req updateQueryRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	q, err := h.queries.Update(r.Context(), &core.StoredQuery{
		ID:         id,
		UserID:     core.UserIDFrom(r.Context()),
		Name:       req.Name,
		Text:       req.Text,
		OutputType: req.OutputType,
	})
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Query updated", q)
}

func (h *Handler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.queries.Delete(r.Context(), core.UserIDFrom(r.Context()), id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Query deleted", nil)
}

func (h *Handler) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req runQueryRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	outcome, err := h.queries.Run(r.Context(), core.UserIDFrom(r.Context()), req.DBID, req.Text, req.OutputType)
	h.writeOutcome(w, outcome, err)
}

func (h *Handler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	outcome, err := h.queries.Execute(r.Context(), core.UserIDFrom(r.Context()), id)
	h.writeOutcome(w, outcome, err)
}

func (h *Handler) writeOutcome(w http.ResponseWriter, outcome *service.Outcome, err error) {
	var postErr *core.PostProcessingError
	switch {
	case err == nil:
		respond(w, http.StatusOK, "Query executed", outcome)
	case errors.As(err, &postErr):
		partial(w, err, outcome)
	default:
		fail(w, err)
	}
}

func (h *Handler) QueryInsights(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req insightsRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, err)
		return
	}
	useWeb, _ := strconv.ParseBool(r.URL.Query().Get("use_web"))

	text, err := h.queries.Insights(r.Context(), core.UserIDFrom(r.Context()), id, useWeb, req.CustomInstructions)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Insights generated", map[string]string{"insights": text})
}

func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	dbID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	items, total, err := h.queries.List(r.Context(), core.UserIDFrom(r.Context()), dbID, page, limit, r.URL.Query().Get("search"))
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Queries fetched", map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) CountQueries(w http.ResponseWriter, r *http.Request) {
	dbID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	n, err := h.queries.Count(r.Context(), core.UserIDFrom(r.Context()), dbID)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Queries counted", map[string]int{"count": n})
}
