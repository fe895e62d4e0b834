// Package engine is the remember/recall orchestrator: the single entry
// point that wires deduplication, storage, embedding, contradiction
// detection, tiering, association, and extraction into the two operations
// callers actually use, plus the narrower Forget/Decay/Get reads. It stays
// a thin orchestrator delegating to the specialist services; no domain
// logic lives here that a specialist package could own instead.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/association"
	"github.com/memvault/memvault/internal/cache"
	"github.com/memvault/memvault/internal/contradiction"
	"github.com/memvault/memvault/internal/extraction"
	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/tiering"
	"github.com/memvault/memvault/pkg/types"
)

// Embedder is the subset of embedding.Service the engine needs: text in,
// unit vector out. Kept narrow so this package depends on the interface,
// not the concrete cache-wrapping implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scheduler is the subset of internal/tasks.Service the engine needs to
// enqueue background work, kept narrow like every other package's local
// Scheduler interface.
type Scheduler interface {
	ScheduleTask(taskType string, payload map[string]interface{}) bool
}

// Ad-hoc task types the engine schedules and handles.
const (
	TaskDecomposeFacts = "decompose_facts"
	TaskAutoEnrich     = "auto_enrich"
)

// Config carries the remember/recall tuning knobs, mirrored from
// internal/config.RecallConfig and internal/config.IngestConfig rather
// than importing that package directly, the same plain-scalar constructor
// argument posture internal/session and internal/tiering take.
type Config struct {
	RecallOverfetch      int
	MaxGraphExpansion    int
	IncludeAssociations  bool
	TraverseDepth        int
	RecencyWeight        float64
	RecencyHalfLifeHours float64
	RecallCacheTTL       time.Duration
	HybridRAGThreshold   float64

	FactDecompositionEnabled   bool
	FactDecompositionMinLength int
	AutoAssociationThreshold   float64
}

// DefaultConfig mirrors internal/config's default Recall/Ingest values.
func DefaultConfig() Config {
	return Config{
		RecallOverfetch:            3,
		MaxGraphExpansion:          50,
		IncludeAssociations:        true,
		TraverseDepth:              2,
		RecencyWeight:              0.2,
		RecencyHalfLifeHours:       168,
		RecallCacheTTL:             5 * time.Minute,
		HybridRAGThreshold:         0.5,
		FactDecompositionEnabled:   true,
		FactDecompositionMinLength: 50,
		AutoAssociationThreshold:   0.6,
	}
}

// Service is the memory orchestrator. Every dependency is an interface or a
// narrow concrete service the package already owns, so the engine never
// reaches around storage.MemoryStore into a specific backend.
type Service struct {
	memStore storage.MemoryStore
	wsStore  storage.WorkspaceStore

	embedder  Embedder
	generator llm.TextGenerator
	reranker  llm.Reranker
	cache     cache.Cache
	scheduler Scheduler

	assoc   *association.Service
	contra  *contradiction.Service
	extract *extraction.Service
	tier    *tiering.Service

	cfg Config
}

// New builds a Service. reranker, cache, scheduler, and generator may all be
// nil: reranking and caching are then skipped, and every background step
// falls back to running inline, matching tiering/session's posture.
func New(
	memStore storage.MemoryStore,
	wsStore storage.WorkspaceStore,
	embedder Embedder,
	generator llm.TextGenerator,
	reranker llm.Reranker,
	c cache.Cache,
	scheduler Scheduler,
	assoc *association.Service,
	contra *contradiction.Service,
	extract *extraction.Service,
	tier *tiering.Service,
	cfg Config,
) *Service {
	if cfg.RecallOverfetch <= 0 {
		cfg.RecallOverfetch = 3
	}
	if cfg.RecallCacheTTL <= 0 {
		cfg.RecallCacheTTL = 5 * time.Minute
	}
	return &Service{
		memStore: memStore, wsStore: wsStore,
		embedder: embedder, generator: generator, reranker: reranker,
		cache: c, scheduler: scheduler,
		assoc: assoc, contra: contra, extract: extract, tier: tier,
		cfg: cfg,
	}
}

// Get is a tracking read: the access count is bumped before the memory is
// returned. Internal collaborators (dedup probes, contradiction checks)
// read through storage directly, which never tracks.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*types.Memory, error) {
	mem, err := s.memStore.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	s.trackSingleAccess(ctx, workspaceID, mem)
	return mem, nil
}

// GetByID is the workspace-agnostic tracking read for callers that only
// hold a memory id; callers that know the workspace should prefer Get.
func (s *Service) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	mem, err := s.memStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.trackSingleAccess(ctx, mem.Workspace, mem)
	return mem, nil
}

// trackSingleAccess bumps a memory's access counters, mirroring the bump
// into the already-loaded copy so the caller sees the post-read state. A
// failed bump is logged, never surfaced: access accounting must not fail a
// read.
func (s *Service) trackSingleAccess(ctx context.Context, workspaceID string, mem *types.Memory) {
	if err := s.memStore.IncrementAccessCount(ctx, workspaceID, mem.ID); err != nil {
		log.Printf("engine: increment access count for %s: %v", mem.ID, err)
		return
	}
	mem.AccessCount++
	now := time.Now()
	mem.LastAccessedAt = &now
}

// Forget soft- or hard-deletes a memory. Hard delete purges the row (and,
// in backends with an FTS companion table, its search index entry);
// soft delete sets status=deleted, deleted_at=now. Both report whether a
// row existed to be affected.
func (s *Service) Forget(ctx context.Context, workspaceID, id string, hard bool) (bool, error) {
	if hard {
		if err := s.memStore.Purge(ctx, workspaceID, id); err != nil {
			if err == storage.ErrNotFound {
				return false, nil
			}
			return false, fmt.Errorf("engine: forget hard %s: %w", id, err)
		}
		return true, nil
	}
	if err := s.memStore.Delete(ctx, workspaceID, id); err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("engine: forget soft %s: %w", id, err)
	}
	return true, nil
}

// Decay applies a single explicit importance decrement to one memory:
// new_importance = max(0, old - rate). This is the per-memory API exposed
// to callers; periodic bulk decay runs through internal/decay instead.
func (s *Service) Decay(ctx context.Context, workspaceID, id string, rate float64) (*types.Memory, error) {
	mem, err := s.memStore.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("engine: decay load %s: %w", id, err)
	}
	mem.Importance -= rate
	if mem.Importance < 0 {
		mem.Importance = 0
	}
	mem.UpdatedAt = time.Now()
	if err := s.memStore.Store(ctx, mem); err != nil {
		return nil, fmt.Errorf("engine: decay persist %s: %w", id, err)
	}
	return mem, nil
}

// embedText embeds text, logging and returning a nil vector on any failure
// rather than propagating the error: recall and background fact ingestion
// treat a missing embedding as "fall back to hash/text matching".
// Remember's top-level ingest path uses embedTextStrict instead.
func (s *Service) embedText(ctx context.Context, text string) []float32 {
	if s.embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("engine: embed failed: %v", err)
		return nil
	}
	return vec
}

// embedTextStrict embeds text for the strict ingest path: a configured
// provider that fails is a hard error (a memory without a vector cannot
// participate in semantic deduplication), while a missing provider still
// degrades to hash-only dedup.
func (s *Service) embedTextStrict(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("engine: embed content: %w", err)
	}
	return vec, nil
}

func newMemoryID() string {
	return types.GenerateMemoryID()
}
