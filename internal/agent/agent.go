package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	"gemstone-testapp/internal/config"
	"gemstone-testapp/internal/daemonapi"
	"gemstone-testapp/internal/lockfile"
	"gemstone-testapp/internal/metrics"
	"gemstone-testapp/internal/simulate"
	"gemstone-testapp/internal/status"
)

type Agent struct {
	cfg     config.Config
	logger  *slog.Logger
	sc      status.ServerContext
	client  *daemonapi.Client
	metrics *metrics.Metrics
	status  *status.Server
	load    *simulate.Load
	crasher *simulate.Crasher
	health  *health.Server

	// notify subscribes ch to the shutdown signals.
	notify func(ch chan<- os.Signal)
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &Agent{
		cfg:     cfg,
		logger:  logger,
		sc:      status.NewServerContext(),
		metrics: metrics.New(),
		health:  health.NewServer(),
		notify: func(ch chan<- os.Signal) {
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		},
	}

	a.client = daemonapi.NewClient(cfg.DaemonAPIURL, cfg.FetchTimeout, logger)
	a.client.SetObserver(a.metrics)

	handler := status.NewHandler(a.sc, a.client, logger, a.metrics)
	a.status = status.NewServer("status", cfg.ListenAddr, handler, cfg.ShutdownTimeout, logger)

	seed := uint64(time.Now().UnixNano())
	a.load = simulate.NewLoad(simulate.LoadOptions{
		Interval:          cfg.WorkInterval,
		SpinIterations:    cfg.WorkSpinIterations,
		RetainProbability: cfg.WorkRetainProbability,
		ChunkSize:         cfg.WorkChunkSize,
		BufferCap:         cfg.WorkBufferCap,
	}, rand.New(rand.NewPCG(seed, uint64(a.sc.PID))), logger, a.metrics)

	a.crasher = simulate.NewCrasher(simulate.CrashOptions{
		Interval:    cfg.CrashInterval,
		Probability: cfg.CrashProbability,
	}, rand.New(rand.NewPCG(seed^0x9e3779b97f4a7c15, uint64(a.sc.PID))), logger, a.heartbeat)

	return a, nil
}

// Run blocks until the harness stops and reports why.
func (a *Agent) Run(ctx context.Context) ExitCause {
	// Signals must be subscribed before any component starts.
	sigCh := make(chan os.Signal, 2)
	a.notify(sigCh)
	defer signal.Stop(sigCh)

	a.logger.Info("Gemstone test app started", "version", a.cfg.AppVersion)
	a.logger.Info("PID", "pid", a.sc.PID)

	if a.cfg.LockFile != "" {
		lock, err := a.acquireLock(ctx)
		if errors.Is(err, lockfile.ErrLockedElsewhere) {
			a.logger.Info("already running", "lock_file", a.cfg.LockFile)
			return ExitShutdown
		}
		if err != nil {
			a.logger.Error("Unexpected error", "error", err)
			return ExitFailure
		}
		a.logger.Info("instance lock acquired", "lock_file", lock.Path())
		defer func() {
			if err := lock.Unlock(); err != nil {
				a.logger.Warn("lock release failed", "lock_file", lock.Path(), "error", err)
			}
		}()
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("Received signal, shutting down gracefully", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	cause := a.exitCause(runErr)
	a.logger.Info("gemstone test app stopped", "cause", cause.String(), "exit_code", cause.Code())
	return cause
}

// acquireLock tries once, or keeps retrying for up to LockWait when it is set.
func (a *Agent) acquireLock(ctx context.Context) (*lockfile.Lock, error) {
	if a.cfg.LockWait <= 0 {
		return lockfile.Acquire(a.cfg.LockFile)
	}
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.LockWait)
	defer cancel()
	return lockfile.AcquireWait(waitCtx, a.cfg.LockFile)
}

func (a *Agent) exitCause(err error) ExitCause {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitShutdown
	case errors.Is(err, simulate.ErrSimulatedCrash):
		return ExitSimulatedCrash
	default:
		a.logger.Error("Unexpected error", "error", err)
		return ExitFailure
	}
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
