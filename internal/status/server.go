package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server owns the status listener. A failure to bind or serve is logged and
// ends only this server; the rest of the process keeps running.
type Server struct {
	name            string
	addr            string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func NewServer(name, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &Server{
		name:            name,
		addr:            addr,
		handler:         handler,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error("HTTP server error", "server", s.name, "addr", s.addr, "error", err)
		return nil
	}
	return s.Serve(ctx, ln)
}

// Serve takes ownership of ln and returns once ctx is done and in-flight
// requests drained, or when the server stops on its own.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.logger.Info("HTTP server started", "server", s.name, "url", "http://"+ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "server", s.name, "addr", s.addr, "error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown incomplete, closing", "server", s.name, "error", err)
		_ = srv.Close()
	}
	<-errCh
	return nil
}
