package api

import (
	"net/http"

	"sqlinsight/internal/core"
)

func (h *Handler) ListApiKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.authSvc.ListApiKeys(r.Context(), core.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "API keys fetched", keys)
}

// CreateApiKey returns the plain key once. Only its hash is kept.
func (h *Handler) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	plain, key, err := h.authSvc.GenerateApiKey(r.Context(), core.UserIDFrom(r.Context()), req.Description)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusCreated, "API key created", map[string]interface{}{
		"key":     plain,
		"api_key": key,
	})
}

func (h *Handler) RevokeApiKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.authSvc.RevokeApiKey(r.Context(), core.UserIDFrom(r.Context()), id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "API key revoked", nil)
}
