package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sqlinsight/internal/core"
	"sqlinsight/internal/service"
)

type Handler struct {
	databases  *service.DatabaseService
	queries    *service.QueryService
	dashboards *service.DashboardService
	runner     *service.DashboardRunner
	authSvc    *service.AuthService
	auditRepo  core.AuditRepository
	limiter    *RateLimiter
}

type Deps struct {
	Databases  *service.DatabaseService
	Queries    *service.QueryService
	Dashboards *service.DashboardService
	Runner     *service.DashboardRunner
	Auth       *service.AuthService
	Audit      core.AuditRepository
	Limiter    *RateLimiter
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		databases:  d.Databases,
		queries:    d.Queries,
		dashboards: d.Dashboards,
		runner:     d.Runner,
		authSvc:    d.Auth,
		auditRepo:  d.Audit,
		limiter:    d.Limiter,
	}
}

// Routes builds the /api router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)
	if h.limiter != nil {
		r.Use(h.limiter.MiddlewareByAPIKey)
	}
	r.Use(h.AuthMiddleware)

	r.Route("/databases", func(r chi.Router) {
		r.Post("/", h.ConnectDatabase)
		r.Get("/", h.ListDatabases)
		r.Get("/count", h.CountDatabases)
		r.Post("/test", h.TestConnection)
		r.Put("/{id}", h.UpdateDatabase)
		r.Delete("/{id}", h.DeleteDatabase)
		r.Get("/{id}/schema", h.DatabaseSchema)
		r.Get("/{id}/queries", h.ListQueries)
		r.Get("/{id}/queries/count", h.CountQueries)
	})

	r.Route("/queries", func(r chi.Router) {
		r.Post("/", h.SaveQuery)
		r.Post("/run", h.RunQuery)
		r.Get("/{id}", h.GetQuery)
		r.Put("/{id}", h.UpdateQuery)
		r.Delete("/{id}", h.DeleteQuery)
		r.Post("/{id}/execute", h.ExecuteQuery)
		r.Post("/{id}/insights", h.QueryInsights)
	})

	r.Route("/dashboards", func(r chi.Router) {
		r.Post("/", h.CreateDashboard)
		r.Get("/", h.ListDashboards)
		r.Get("/count", h.CountDashboards)
		r.Get("/{id}", h.DashboardData)
		r.Put("/{id}", h.UpdateDashboard)
		r.Delete("/{id}", h.DeleteDashboard)
		r.Put("/{id}/layout", h.UpdateLayout)
		r.Post("/{id}/run", h.RunDashboard)
		r.Post("/{id}/queries/{queryID}", h.LinkQuery)
		r.Delete("/{id}/queries/{queryID}", h.UnlinkQuery)
	})

	r.Route("/keys", func(r chi.Router) {
		r.Get("/", h.ListApiKeys)
		r.Post("/", h.CreateApiKey)
		r.Delete("/{id}", h.RevokeApiKey)
	})

	r.Get("/audit", h.RecentAudit)

	return r
}

// AuthMiddleware resolves X-API-Key to its owner and stores both ids in the context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKeyStr := r.Header.Get("X-API-Key")
		if apiKeyStr == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{Message: "Missing X-API-Key header"})
			return
		}

		apiKey, err := h.authSvc.VerifyApiKey(r.Context(), apiKeyStr)
		if errors.Is(err, service.ErrInvalidApiKey) {
			writeJSON(w, http.StatusUnauthorized, envelope{Message: "Invalid X-API-Key"})
			return
		}
		if err != nil {
			fail(w, err)
			return
		}

		noteUser(r.Context(), apiKey.UserID)
		ctx := context.WithValue(r.Context(), core.ContextKeyApiKeyID, apiKey.ID)
		ctx = context.WithValue(ctx, core.ContextKeyUserID, apiKey.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) RecentAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	logs, err := h.auditRepo.Recent(r.Context(), core.UserIDFrom(r.Context()), limit)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "Audit log fetched", logs)
}

var errBadID = errors.New("invalid id in path")

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return def
}
