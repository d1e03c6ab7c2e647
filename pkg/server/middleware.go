package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/thumbatlas/pkg/observability"
)

// observe logs each request and reports it to the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, code, elapsed)
		s.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}
