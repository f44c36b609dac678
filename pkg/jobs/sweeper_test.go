package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweeperRunsAndStops(t *testing.T) {
	var runs int64
	sweeper := NewSweeper("test", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}, nil)

	sweeper.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 2
	}, time.Second, 5*time.Millisecond)
	sweeper.Stop()

	settled := atomic.LoadInt64(&runs)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, settled, atomic.LoadInt64(&runs))
}

func TestSweeperStartIsIdempotent(t *testing.T) {
	sweeper := NewSweeper("test", time.Hour, func(ctx context.Context) error { return nil }, nil)
	sweeper.Start(context.Background())
	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
}
