package agent

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"gemstone-testapp/internal/status"
	"gemstone-testapp/internal/system"
)

func (a *Agent) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.status.Run(gctx)
	})
	g.Go(func() error {
		return a.load.Run(gctx)
	})
	g.Go(func() error {
		return a.crasher.Run(gctx)
	})
	if a.cfg.ProbeListenAddr != "" {
		g.Go(func() error {
			return a.runProbeListener(gctx)
		})
	}
	if a.cfg.GRPCHealthAddr != "" {
		g.Go(func() error {
			return a.runGRPCHealth(gctx)
		})
	}
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return a.runMetricsListener(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runMetricsListener(ctx context.Context) error {
	srv := status.NewServer("metrics", a.cfg.MetricsAddr, a.metrics.Handler(), a.cfg.ShutdownTimeout, a.logger)
	return srv.Run(ctx)
}

// heartbeat runs on every crash-loop iteration, before the roll.
func (a *Agent) heartbeat(iteration uint64) {
	a.metrics.ObserveHeartbeat()

	load := a.load.Stats()
	attrs := []any{
		"iteration", iteration,
		"uptime", time.Since(a.sc.StartTime).Round(time.Second).String(),
		"work_iterations", load.Iterations,
		"retained", humanize.IBytes(load.RetainedBytes),
	}

	usage, err := system.ReadSelfUsage()
	if err != nil {
		a.logger.Debug("self usage unavailable", "error", err)
	} else {
		attrs = append(attrs,
			"rss", humanize.IBytes(usage.RSSBytes),
			"vsz", humanize.IBytes(usage.VMSizeBytes),
			"threads", usage.Threads)
	}

	a.logger.Info("still running", attrs...)
}
