package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"sqlinsight/internal/logger"
)

// LoggingMiddleware writes one access line per request. The user id is read
// after the request completes, so it is set when auth ran further down the chain.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		user := &requestUser{}
		next.ServeHTTP(ww, r.WithContext(withRequestUser(r.Context(), user)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Info.Printf("%s %s %d %dB user=%d %v",
			r.Method, r.URL.Path, status, ww.BytesWritten(), user.id, time.Since(start))
	})
}

// RecoverMiddleware turns a handler panic into a 500 envelope instead of a dropped connection.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeJSON(w, http.StatusInternalServerError, envelope{Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestUser is filled in by AuthMiddleware so the access log can name the caller.
type requestUser struct {
	id int64
}

type requestUserKey struct{}

func withRequestUser(ctx context.Context, u *requestUser) context.Context {
	return context.WithValue(ctx, requestUserKey{}, u)
}

// noteUser records the authenticated user for the access log, if one is listening.
func noteUser(ctx context.Context, userID int64) {
	if u, ok := ctx.Value(requestUserKey{}).(*requestUser); ok {
		u.id = userID
	}
}
