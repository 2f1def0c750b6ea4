package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	values []int
	err    error
}

func (s *recordingSink) sink(_ context.Context, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, percent)
	return s.err
}

func (s *recordingSink) recorded() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.values...)
}

func TestPublisher_CoalescesBursts(t *testing.T) {
	rec := &recordingSink{}
	pub := NewPublisher(rec.sink, time.Hour, nil)
	ctx := context.Background()

	// A burst of callback-driven reports inside one interval persists only
	// the first.
	for pct := 20; pct <= 80; pct++ {
		pub.Report(ctx, pct)
	}

	assert.Equal(t, []int{20}, rec.recorded())
}

func TestPublisher_WritesAfterInterval(t *testing.T) {
	rec := &recordingSink{}
	pub := NewPublisher(rec.sink, 10*time.Millisecond, nil)
	ctx := context.Background()

	pub.Report(ctx, 20)
	time.Sleep(20 * time.Millisecond)
	pub.Report(ctx, 50)

	assert.Equal(t, []int{20, 50}, rec.recorded())
}

func TestPublisher_FlushBypassesRateLimit(t *testing.T) {
	rec := &recordingSink{}
	pub := NewPublisher(rec.sink, time.Hour, nil)
	ctx := context.Background()

	pub.Report(ctx, 20)
	pub.Report(ctx, 45) // dropped: inside interval
	pub.Flush(ctx, 80)  // stage boundary: persisted regardless

	assert.Equal(t, []int{20, 80}, rec.recorded())
}

func TestPublisher_NeverMovesBackwards(t *testing.T) {
	rec := &recordingSink{}
	pub := NewPublisher(rec.sink, 0, nil)
	ctx := context.Background()

	pub.Flush(ctx, 50)
	pub.Flush(ctx, 40)
	pub.Flush(ctx, 50)
	pub.Flush(ctx, 60)

	assert.Equal(t, []int{50, 60}, rec.recorded())
}

func TestPublisher_SinkErrorIsSwallowed(t *testing.T) {
	rec := &recordingSink{err: errors.New("db unavailable")}
	pub := NewPublisher(rec.sink, 0, nil)

	// Must not panic or propagate; progress is telemetry.
	pub.Flush(context.Background(), 30)
	require.Equal(t, []int{30}, rec.recorded())
}

func TestPublisher_ConcurrentReports(t *testing.T) {
	rec := &recordingSink{}
	pub := NewPublisher(rec.sink, time.Hour, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(pct int) {
			defer wg.Done()
			pub.Report(ctx, pct)
		}(20 + i)
	}
	wg.Wait()

	assert.Len(t, rec.recorded(), 1, "one write per interval regardless of caller count")
}
