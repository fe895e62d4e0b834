package tasks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/tasks"
)

func TestScheduleTaskDispatchesToHandler(t *testing.T) {
	svc := tasks.New(8, 2)
	var got map[string]interface{}
	var mu sync.Mutex
	done := make(chan struct{})

	svc.RegisterHandler("tier_generation", func(ctx context.Context, payload map[string]interface{}) error {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.True(t, svc.ScheduleTask("tier_generation", map[string]interface{}{"memory_id": "m1"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "m1", got["memory_id"])
}

func TestScheduleTaskWithNoHandlerIsDroppedNotPanicking(t *testing.T) {
	svc := tasks.New(8, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	assert.True(t, svc.ScheduleTask("unregistered_type", nil))
	time.Sleep(20 * time.Millisecond)
}

func TestScheduleTaskDropsWhenQueueFull(t *testing.T) {
	svc := tasks.New(1, 1)
	block := make(chan struct{})
	svc.RegisterHandler("slow", func(ctx context.Context, payload map[string]interface{}) error {
		<-block
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer func() {
		close(block)
		svc.Stop()
	}()

	assert.True(t, svc.ScheduleTask("slow", nil))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, svc.ScheduleTask("slow", nil))
	assert.False(t, svc.ScheduleTask("slow", nil))
}

func TestRecurringScheduleFiresOnInterval(t *testing.T) {
	svc := tasks.New(8, 1)
	var ticks int64
	svc.RegisterRecurring("session_cleanup", tasks.Schedule{Interval: 10 * time.Millisecond})
	svc.RegisterHandler("session_cleanup", func(ctx context.Context, payload map[string]interface{}) error {
		atomic.AddInt64(&ticks, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	time.Sleep(55 * time.Millisecond)
	cancel()
	svc.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&ticks), int64(3))
}

func TestHandlerErrorDoesNotStopFutureDispatch(t *testing.T) {
	svc := tasks.New(8, 1)
	var calls int64
	svc.RegisterHandler("flaky", func(ctx context.Context, payload map[string]interface{}) error {
		atomic.AddInt64(&calls, 1)
		return assert.AnError
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.ScheduleTask("flaky", nil)
	svc.ScheduleTask("flaky", nil)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestStopDrainsWorkersAndStartIsIdempotent(t *testing.T) {
	svc := tasks.New(4, 2)
	svc.RegisterHandler("noop", func(ctx context.Context, payload map[string]interface{}) error { return nil })

	ctx := context.Background()
	svc.Start(ctx)
	svc.Start(ctx)
	svc.ScheduleTask("noop", nil)
	time.Sleep(10 * time.Millisecond)
	svc.Stop()
}
