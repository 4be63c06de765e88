package api

import (
	"net/http"

	"sqlinsight/internal/core"
)

func (h *Handler) ConnectDatabase(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	conn, err := h.databases.Connect(r.Context(), core.UserIDFrom(r.Context()), req.credentials())
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "Database connected", conn)
}

func (h *Handler) UpdateDatabase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	conn, err := h.databases.UpdateCredentials(r.Context(), core.UserIDFrom(r.Context()), id, req.credentials())
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Database credentials updated", conn)
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	ok := h.databases.TestConnection(r.Context(), req.credentials())
	msg := "Connection successful"
	if !ok {
		msg = "Connection failed"
	}
	respond(w, http.StatusOK, msg, ok)
}

func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	list, err := h.databases.List(r.Context(), core.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Databases fetched", list)
}

func (h *Handler) CountDatabases(w http.ResponseWriter, r *http.Request) {
	n, err := h.databases.Count(r.Context(), core.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Databases counted", map[string]int{"count": n})
}

func (h *Handler) DeleteDatabase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.databases.Delete(r.Context(), core.UserIDFrom(r.Context()), id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Database deleted", nil)
}

func (h *Handler) DatabaseSchema(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	schema, err := h.databases.Schema(r.Context(), core.UserIDFrom(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Schema fetched", schema)
}
