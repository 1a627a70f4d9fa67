package status

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gemstone-testapp/internal/model"
	"gemstone-testapp/internal/report"
)

// Fetcher is the subset of the daemon API client the status page needs.
type Fetcher interface {
	System(ctx context.Context) (*model.SystemPayload, error)
	Processes(ctx context.Context) ([]model.ProcessRecord, error)
}

// ServerContext is captured once at startup and never mutated.
type ServerContext struct {
	StartTime time.Time
	PID       int
}

func NewServerContext() ServerContext {
	return ServerContext{StartTime: time.Now(), PID: os.Getpid()}
}

// RequestObserver is notified after each rendered status page.
type RequestObserver interface {
	ObserveStatusRequest(took time.Duration)
}

// Handler renders the status page for every path and method.
type Handler struct {
	sc       ServerContext
	fetcher  Fetcher
	logger   *slog.Logger
	observer RequestObserver
	now      func() time.Time
}

func NewHandler(sc ServerContext, fetcher Fetcher, logger *slog.Logger, observer RequestObserver) *Handler {
	return &Handler{
		sc:       sc,
		fetcher:  fetcher,
		logger:   logger,
		observer: observer,
		now:      time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	ctx := r.Context()

	rep := report.Report{
		PID:    h.sc.PID,
		Uptime: start.Sub(h.sc.StartTime),
	}
	// system first, then processes; never concurrently.
	rep.System, rep.SystemErr = h.fetcher.System(ctx)
	rep.Processes, rep.ProcessesErr = h.fetcher.Processes(ctx)

	var body bytes.Buffer
	if err := report.Render(&body, rep, h.logger); err != nil {
		h.logger.Error("render status page failed", "error", err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body.Bytes()); err != nil {
		h.logger.Debug("write status page failed", "error", err)
	}

	if h.observer != nil {
		h.observer.ObserveStatusRequest(h.now().Sub(start))
	}
}
