package simulate

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

type LoadOptions struct {
	Interval          time.Duration
	SpinIterations    int
	RetainProbability float64
	ChunkSize         int
	BufferCap         int
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Interval:          time.Second,
		SpinIterations:    10000,
		RetainProbability: 0.1,
		ChunkSize:         1000,
		BufferCap:         10,
	}
}

type LoadStats struct {
	Iterations     uint64
	RetainedChunks int
	RetainedBytes  uint64
}

// LoadObserver is notified after every iteration.
type LoadObserver interface {
	ObserveLoadIteration(stats LoadStats)
}

// Load burns some CPU every interval and occasionally retains a chunk of
// memory. The chunk buffer belongs to the Run goroutine; other goroutines only
// see the published counters.
type Load struct {
	opts     LoadOptions
	logger   *slog.Logger
	rng      *rand.Rand
	buf      *chunkBuffer
	observer LoadObserver

	iterations    atomic.Uint64
	retained      atomic.Int64
	retainedBytes atomic.Uint64
	sink          float64
}

func NewLoad(opts LoadOptions, rng *rand.Rand, logger *slog.Logger, observer LoadObserver) *Load {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Load{
		opts:     opts,
		logger:   logger,
		rng:      rng,
		buf:      newChunkBuffer(opts.BufferCap),
		observer: observer,
	}
}

func (l *Load) Run(ctx context.Context) error {
	l.logger.Debug("load simulator started",
		"interval", l.opts.Interval,
		"spin_iterations", l.opts.SpinIterations,
		"buffer_cap", l.opts.BufferCap)
	for {
		l.step()
		if !sleepWithContext(ctx, l.opts.Interval) {
			return nil
		}
	}
}

func (l *Load) Stats() LoadStats {
	return LoadStats{
		Iterations:     l.iterations.Load(),
		RetainedChunks: int(l.retained.Load()),
		RetainedBytes:  l.retainedBytes.Load(),
	}
}

func (l *Load) step() {
	var acc float64
	for i := 0; i < l.opts.SpinIterations; i++ {
		v := l.rng.Float64()
		acc += v * v
	}
	l.sink = acc

	if l.opts.ChunkSize > 0 && l.rng.Float64() < l.opts.RetainProbability {
		chunk := make([]float64, l.opts.ChunkSize)
		for i := range chunk {
			chunk[i] = l.rng.Float64()
		}
		evicted := l.buf.push(chunk)
		l.retainedBytes.Store(l.buf.bytes())
		l.logger.Debug("retained memory chunk",
			"chunks", l.buf.len(),
			"retained", humanize.IBytes(l.buf.bytes()),
			"evicted", evicted)
	}
	l.retained.Store(int64(l.buf.len()))
	l.iterations.Add(1)

	if l.observer != nil {
		l.observer.ObserveLoadIteration(l.Stats())
	}
}
