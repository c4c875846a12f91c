package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/grantd/internal/observability/logger"
	"go.uber.org/zap"
)

// Server envuelve http.Server con arranque y apagado ordenado.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer construye el server HTTP con timeouts razonables para un
// endpoint de credenciales (requests chicos, respuestas chicas).
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: logger.Named("http"),
	}
}

// ListenAndServe bloquea hasta que el server se cierre. Devuelve nil en
// un shutdown ordenado.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", zap.String("addr", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drena las conexiones activas respetando el deadline del ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.srv.Shutdown(ctx)
}
