package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	err     error
}

func (s *countingSweeper) RemoveStaleTemp(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.cutoffs = append(s.cutoffs, cutoff)
	return 1, s.err
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestStartCleanupJob_RunsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("transient")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		StartCleanupJob(ctx, CleanupConfig{
			Interval: 10 * time.Millisecond,
			MaxAge:   time.Hour,
			Sweeper:  sweeper,
			Logger:   zap.NewNop(),
		})
	}()

	require.Eventually(t, func() bool { return sweeper.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup job did not stop")
	}

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	assert.WithinDuration(t, time.Now().Add(-time.Hour), sweeper.cutoffs[0], time.Minute)
}

func TestStartCleanupJob_Disabled(t *testing.T) {
	sweeper := &countingSweeper{}

	StartCleanupJob(t.Context(), CleanupConfig{Interval: 0, Sweeper: sweeper})
	StartCleanupJob(t.Context(), CleanupConfig{Interval: time.Millisecond})

	assert.Zero(t, sweeper.count())
}
