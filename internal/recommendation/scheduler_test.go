package recommendation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

func TestSchedulerRunsTaskUntilCancelled(t *testing.T) {
	s := NewScheduler(nil, time.Hour, logger.NewNop())

	var runs int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		s.runEvery(ctx, "test", 5*time.Millisecond, func(context.Context) error {
			if atomic.AddInt32(&runs, 1) == 2 {
				return errBoom
			}
			return nil
		})
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&runs) < 3 {
		select {
		case <-deadline:
			t.Fatalf("task ran %d times before deadline", atomic.LoadInt32(&runs))
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
