package http_server

import (
	"context"
	"net/http"

	"github.com/jaennil/guide_helper/backend/tilestore/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
)

func NewServer(ctx context.Context, cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withLogger(ctx, handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// withLogger makes the application logger available through
// logger.FromContext on every request context.
func withLogger(ctx context.Context, next http.Handler) http.Handler {
	l := logger.FromContext(ctx)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), l)))
	})
}
