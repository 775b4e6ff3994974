// Package api serves the read-only JSON API, AI narratives and vector
// tiles over chi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Server wraps an http.Server around the API router.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, h http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			// Narrative endpoints wait on the language model.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: zap.L().With(zap.String("component", "api")),
	}
}

// Start listens until Shutdown. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !eris.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return eris.Wrap(s.httpServer.Shutdown(ctx), "api: shutdown")
}

// ServeHTTP delegates to the underlying handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
