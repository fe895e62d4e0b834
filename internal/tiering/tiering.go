// Package tiering produces and persists the abstract/overview summary
// tiers recall's detail-level projection reads from. Tiers are best-effort
// enrichment: any failure is logged and swallowed rather than surfaced, so
// an enrichment side-channel can never fail the write path.
package tiering

import (
	"context"
	"log"

	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/internal/storage"
)

// Scheduler is the subset of internal/tasks.Service tiering needs to
// enqueue background tier generation, kept as a narrow interface so this
// package doesn't import the concrete scheduler.
type Scheduler interface {
	ScheduleTask(taskType string, payload map[string]interface{}) bool
}

// TaskType is the ad-hoc task type request_tier_generation enqueues.
const TaskType = "generate_tiers"

// Service generates and persists tier summaries.
type Service struct {
	generator llm.TextGenerator
	memStore  storage.MemoryStore
	scheduler Scheduler
}

// New builds a Service. scheduler may be nil; RequestTierGeneration then
// falls back to running inline.
func New(generator llm.TextGenerator, memStore storage.MemoryStore, scheduler Scheduler) *Service {
	return &Service{generator: generator, memStore: memStore, scheduler: scheduler}
}

// GenerateTiers summarizes a memory's content into abstract/overview tiers
// and persists them inline. With no generator it returns without logging;
// any other failure (load, call, parse or persist error) is logged and
// swallowed. Either way the memory simply keeps
// falling back to truncated content for its detail-level projection.
func (s *Service) GenerateTiers(ctx context.Context, workspaceID, memoryID string) {
	if s.generator == nil {
		return
	}
	mem, err := s.memStore.Get(ctx, workspaceID, memoryID)
	if err != nil {
		log.Printf("tiering: load memory %s: %v", memoryID, err)
		return
	}

	raw, err := s.generator.Synthesize(ctx, llm.TierSummaryPrompt(mem.Content), 256, 0.3, llm.ProfileDefault)
	if err != nil {
		log.Printf("tiering: summarize memory %s: %v", memoryID, err)
		return
	}
	abstract, overview, err := llm.ParseTierSummary(raw)
	if err != nil {
		log.Printf("tiering: parse summary for memory %s: %v", memoryID, err)
		return
	}

	if err := s.memStore.UpdateTiers(ctx, workspaceID, memoryID, abstract, overview); err != nil {
		log.Printf("tiering: persist tiers for memory %s: %v", memoryID, err)
	}
}

// RequestTierGeneration enqueues background tier generation via the task
// scheduler. If no scheduler is configured, or the queue is full, it falls
// back to running inline so tiering still eventually happens.
func (s *Service) RequestTierGeneration(ctx context.Context, workspaceID, memoryID string) {
	if s.scheduler == nil {
		s.GenerateTiers(ctx, workspaceID, memoryID)
		return
	}
	ok := s.scheduler.ScheduleTask(TaskType, map[string]interface{}{
		"workspace_id": workspaceID,
		"memory_id":    memoryID,
	})
	if !ok {
		s.GenerateTiers(ctx, workspaceID, memoryID)
	}
}

// Handler adapts GenerateTiers into a tasks.Handler-shaped function for
// registration with the task scheduler.
func (s *Service) Handler(ctx context.Context, payload map[string]interface{}) error {
	workspaceID, _ := payload["workspace_id"].(string)
	memoryID, _ := payload["memory_id"].(string)
	s.GenerateTiers(ctx, workspaceID, memoryID)
	return nil
}
