package server

import (
	"context"
	"net"
	"net/http"

	"shortly/internal/config"
)

// New creates the HTTP server. Request contexts derive from ctx.
func New(ctx context.Context, cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           cfg.Addr(),
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
}
