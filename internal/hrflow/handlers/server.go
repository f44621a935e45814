// Package handlers serves the onboarding API over HTTP, bridging the
// transport layer and the document services.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server wraps the HTTP server of the API.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	endpoint   string

	mu   sync.Mutex
	addr net.Addr
}

// NewServer constructs a Server listening on the given port.
func NewServer(port int, handler http.Handler, logger *zap.Logger) *Server {
	endpoint := fmt.Sprintf(":%d", port)
	return &Server{
		httpServer: &http.Server{
			Addr:              endpoint,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:   logger,
		endpoint: endpoint,
	}
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.endpoint)
	if err != nil {
		return fmt.Errorf("HTTP listen error: %w", err)
	}
	s.mu.Lock()
	s.addr = lis.Addr()
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", zap.String("endpoint", lis.Addr().String()))
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP serve error: %w", err)
	}
	return nil
}

// Addr is the bound address once Start is listening, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("Server stopped")
}
