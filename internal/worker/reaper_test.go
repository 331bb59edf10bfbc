package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	reap  int
}

func (s *countingSweeper) Sweep(context.Context) int {
	s.calls.Add(1)
	return s.reap
}

func TestReaper_SweepsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{reap: 2}
	var reaped atomic.Int32
	r := NewReaper(sweeper, 5*time.Millisecond, zap.NewNop(), func(n int) { reaped.Add(int32(n)) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop")
	}
	assert.GreaterOrEqual(t, reaped.Load(), int32(6))
}

func TestReaper_NothingToReap(t *testing.T) {
	sweeper := &countingSweeper{}
	called := false
	r := NewReaper(sweeper, time.Hour, zap.NewNop(), func(int) { called = true })

	r.sweep(context.Background())
	assert.Equal(t, int32(1), sweeper.calls.Load())
	assert.False(t, called)
}
