package simulate

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// ErrSimulatedCrash ends the crash loop when the dice say so.
var ErrSimulatedCrash = errors.New("simulated crash")

type CrashOptions struct {
	Interval    time.Duration
	Probability float64
}

func DefaultCrashOptions() CrashOptions {
	return CrashOptions{Interval: 10 * time.Second, Probability: 0.05}
}

// Crasher rolls once per interval and fails with ErrSimulatedCrash with the
// configured probability. The first roll happens immediately.
type Crasher struct {
	opts      CrashOptions
	logger    *slog.Logger
	rng       *rand.Rand
	heartbeat func(iteration uint64)
}

func NewCrasher(opts CrashOptions, rng *rand.Rand, logger *slog.Logger, heartbeat func(iteration uint64)) *Crasher {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Crasher{opts: opts, logger: logger, rng: rng, heartbeat: heartbeat}
}

func (c *Crasher) Run(ctx context.Context) error {
	var iteration uint64
	for {
		iteration++
		if c.heartbeat != nil {
			c.heartbeat(iteration)
		}
		if c.roll() {
			c.logger.Warn("Simulating an error (this should trigger auto-restart if enabled)", "iteration", iteration)
			return ErrSimulatedCrash
		}
		if !sleepWithContext(ctx, c.opts.Interval) {
			return nil
		}
	}
}

func (c *Crasher) roll() bool {
	if c.opts.Probability <= 0 {
		return false
	}
	return c.rng.Float64() < c.opts.Probability
}
