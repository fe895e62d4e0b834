// Package tasks is the in-process scheduler: a handler
// registry dispatching both recurring, interval-driven jobs (session
// cleanup, decay) and ad-hoc one-shot jobs (tier generation, fact
// decomposition, contradiction check, auto-enrich, session-touch,
// working-memory write-behind). Ad-hoc jobs share one bounded worker pool;
// each recurring schedule runs its handler on its own ticker goroutine.
package tasks

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Handler processes one task's payload. A returned error is logged; the
// task is still considered done; there is no automatic retry.
type Handler func(ctx context.Context, payload map[string]interface{}) error

// Schedule declares a recurring task's cadence and the payload fired on
// each tick when the caller doesn't supply one via ScheduleTask.
type Schedule struct {
	Interval       time.Duration
	DefaultPayload map[string]interface{}
}

// slowHandlerThreshold gates the "handler took a while" log line so routine
// sub-millisecond dispatches don't spam the log.
const slowHandlerThreshold = 500 * time.Millisecond

// job is one unit of work sitting in the ad-hoc queue.
type job struct {
	taskType string
	payload  map[string]interface{}
}

// Service is the scheduler: a handler registry, a bounded ad-hoc job
// queue drained by a worker pool, and one ticker goroutine per recurring
// schedule.
type Service struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	schedules map[string]Schedule

	queue   chan job
	workers int

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds a Service with the given ad-hoc queue depth and worker count.
func New(queueSize, workers int) *Service {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		handlers:  make(map[string]Handler),
		schedules: make(map[string]Schedule),
		queue:     make(chan job, queueSize),
		workers:   workers,
	}
}

// RegisterHandler binds a task type to the handler that processes it.
// Must be called before Start.
func (s *Service) RegisterHandler(taskType string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = handler
}

// RegisterRecurring declares a task type's recurring cadence. Must be
// called before Start.
func (s *Service) RegisterRecurring(taskType string, schedule Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[taskType] = schedule
}

// ScheduleTask enqueues a one-shot ad-hoc task. Non-blocking: if the queue
// is full the task is dropped and logged; a dropped job is preferred over
// a blocked caller.
func (s *Service) ScheduleTask(taskType string, payload map[string]interface{}) bool {
	select {
	case s.queue <- job{taskType: taskType, payload: payload}:
		return true
	default:
		log.Printf("tasks: queue full (%s queued), dropping task %q", humanize.Comma(int64(len(s.queue))), taskType)
		return false
	}
}

// Start launches the worker pool and one ticker goroutine per registered
// recurring schedule. Safe to call once; subsequent calls are a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	schedules := make(map[string]Schedule, len(s.schedules))
	for k, v := range s.schedules {
		schedules[k] = v
	}
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.runWorker(runCtx, i)
	}
	for taskType, schedule := range schedules {
		s.wg.Add(1)
		go s.runRecurring(runCtx, taskType, schedule)
	}
}

// Stop signals every worker and recurring ticker to exit and waits for
// them to drain.
func (s *Service) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Service) runWorker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.dispatch(ctx, j.taskType, j.payload)
		}
	}
}

func (s *Service) runRecurring(ctx context.Context, taskType string, schedule Schedule) {
	defer s.wg.Done()
	if schedule.Interval <= 0 {
		log.Printf("tasks: recurring task %q has no interval, skipping", taskType)
		return
	}
	ticker := time.NewTicker(schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, taskType, schedule.DefaultPayload)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, taskType string, payload map[string]interface{}) {
	s.mu.RLock()
	handler, ok := s.handlers[taskType]
	s.mu.RUnlock()
	if !ok {
		log.Printf("tasks: no handler registered for %q, dropping", taskType)
		return
	}
	start := time.Now()
	err := handler(ctx, payload)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("tasks: handler for %q failed after %s: %v", taskType, humanize.Time(start), err)
		return
	}
	if elapsed > slowHandlerThreshold {
		log.Printf("tasks: handler for %q took %s", taskType, humanize.Time(start))
	}
}

// QueueLength returns the current number of queued ad-hoc jobs, useful for
// diagnostics and shutdown-drain logging.
func (s *Service) QueueLength() int {
	return len(s.queue)
}
