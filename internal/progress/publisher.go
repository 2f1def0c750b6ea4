// Package progress bounds the rate at which job progress reaches the job
// store. Engine callbacks can fire many times per second; persisting every
// one would make telemetry a write-load problem.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMinInterval is the default floor between persisted writes.
const DefaultMinInterval = 500 * time.Millisecond

// Sink persists one progress value. Implemented by the job repository.
type Sink func(ctx context.Context, percent int) error

// Publisher coalesces high-frequency progress reports into bounded-rate
// writes. Progress is telemetry: a dropped intermediate value is fine, a
// write storm is not. Safe for concurrent use.
type Publisher struct {
	sink        Sink
	minInterval time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	lastWrite time.Time
	lastValue int
}

// NewPublisher creates a publisher for one job's progress stream.
func NewPublisher(sink Sink, minInterval time.Duration, log *slog.Logger) *Publisher {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		sink:        sink,
		minInterval: minInterval,
		logger:      log,
		lastValue:   -1,
	}
}

// Report offers a progress value. It is persisted only when it advances
// past the last written value and the minimum interval has elapsed;
// otherwise it is dropped. Errors are logged, never returned: progress is
// best-effort.
func (p *Publisher) Report(ctx context.Context, percent int) {
	p.write(ctx, percent, false)
}

// Flush persists a progress value immediately, bypassing the rate limit.
// Used at stage boundaries so the stored value is exact when a stage ends.
func (p *Publisher) Flush(ctx context.Context, percent int) {
	p.write(ctx, percent, true)
}

func (p *Publisher) write(ctx context.Context, percent int, force bool) {
	p.mu.Lock()
	if percent <= p.lastValue {
		p.mu.Unlock()
		return
	}
	if !force && time.Since(p.lastWrite) < p.minInterval {
		p.mu.Unlock()
		return
	}
	p.lastWrite = time.Now()
	p.lastValue = percent
	p.mu.Unlock()

	if err := p.sink(ctx, percent); err != nil {
		p.logger.Warn("progress write failed",
			slog.Int("percent", percent),
			slog.String("error", err.Error()),
		)
	}
}
