package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/shellcache/observe"
)

// Default server timeouts.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
)

// Drainer waits for outstanding background work.
type Drainer interface {
	Drain()
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr    string
	Handler http.Handler

	// ReadHeaderTimeout default: DefaultReadHeaderTimeout
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: DefaultShutdownTimeout
	ShutdownTimeout time.Duration

	// Drainer, when set, is drained after the listener stops so background
	// cache writes finish before the process exits.
	Drainer Drainer

	Logger observe.Logger
}

// Server runs the mux with graceful shutdown.
type Server struct {
	config Config
	http   *http.Server
}

// New creates a server.
func New(config Config) (*Server, error) {
	if config.Handler == nil {
		return nil, errors.New("server: handler is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Server{
		config: config,
		http: &http.Server{
			Addr:              config.Addr,
			Handler:           config.Handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.config.Logger.Info(ctx, "server listening", observe.Field{Key: "addr", Value: lis.Addr().String()})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.http.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		<-serveErr
		s.drain()
		s.config.Logger.Info(shutdownCtx, "server stopped")
		if err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-serveErr:
		s.drain()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	}
}

func (s *Server) drain() {
	if s.config.Drainer != nil {
		s.config.Drainer.Drain()
	}
}
