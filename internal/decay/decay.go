// Package decay applies importance decay and staleness archival across a
// workspace's memories: an exponential, age-derived decay factor computed
// in bulk, workspace-scoped sweeps.
package decay

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// sweepRate caps how many workspaces per second DecayAllWorkspaces advances
// through, so a large tenant set can't monopolize the task pool a
// recurring decay_sweep shares with every other scheduled task.
const sweepRate = 20

// accessBoost is added to a memory's importance each time it is accessed,
// capped at 1.0.
const accessBoost = 0.1

// TaskType is the recurring task type Handler registers under.
const TaskType = "decay_sweep"

// Service sweeps workspaces for decay and archival.
type Service struct {
	memStore storage.MemoryStore
	wsStore  storage.WorkspaceStore

	sweepLimiter *rate.Limiter
}

// New builds a Service.
func New(memStore storage.MemoryStore, wsStore storage.WorkspaceStore) *Service {
	return &Service{
		memStore:     memStore,
		wsStore:      wsStore,
		sweepLimiter: rate.NewLimiter(rate.Limit(sweepRate), 1),
	}
}

// Result summarizes one decay_workspace call.
type Result struct {
	Processed int
	Decayed   int
}

// decayFactor returns the multiplicative factor that, applied to a
// memory's importance, yields its effective importance for a memory of the
// given age, given a per-day decay rate. Exponential rather than linear so
// the factor can never go negative, mirroring the engine's half-life decay
// shape at workspace scope instead of per-access. Importance itself is
// never overwritten; decay_factor is a separate persisted column, and
// effective importance is always importance * decay_factor.
func decayFactor(ratePerDay float64, ageDays float64) float64 {
	if ratePerDay <= 0 || ageDays <= 0 {
		return 1.0
	}
	return math.Exp(-ratePerDay * ageDays)
}

// EffectiveImportance is the importance a memory presents to callers once
// its decay factor is folded in, used for archival and ranking decisions.
func EffectiveImportance(mem *types.Memory) float64 {
	factor := mem.DecayFactor
	if factor == 0 {
		factor = 1.0
	}
	return mem.Importance * factor
}

// DecayWorkspace recomputes the age-derived decay factor for every
// non-pinned active memory older than the workspace's configured minimum
// age, and persists the updates in one batch.
func (s *Service) DecayWorkspace(ctx context.Context, tenantID, workspaceID string) (Result, error) {
	ws, err := s.wsStore.GetWorkspace(ctx, tenantID, workspaceID)
	if err != nil {
		return Result{}, fmt.Errorf("decay: load workspace: %w", err)
	}

	candidates, err := s.memStore.ListForDecay(ctx, workspaceID)
	if err != nil {
		return Result{}, fmt.Errorf("decay: list candidates: %w", err)
	}

	now := time.Now()
	minAge := time.Duration(ws.Settings.DecayMinAgeDays) * 24 * time.Hour
	updates := make(map[string]float64)

	for _, mem := range candidates {
		if mem.Pinned || mem.Status != types.StatusActive {
			continue
		}
		age := now.Sub(mem.CreatedAt)
		if age < minAge {
			continue
		}
		updates[mem.ID] = decayFactor(ws.Settings.DecayRatePerDay, age.Hours()/24.0)
	}

	if len(updates) == 0 {
		return Result{Processed: len(candidates)}, nil
	}
	if err := s.memStore.ApplyDecay(ctx, workspaceID, updates); err != nil {
		return Result{}, fmt.Errorf("decay: apply decay: %w", err)
	}
	return Result{Processed: len(candidates), Decayed: len(updates)}, nil
}

// ArchiveStaleMemories transitions memories to archived status once they
// fall below the workspace's importance and access-count thresholds and
// have aged past the minimum, provided they are not pinned.
func (s *Service) ArchiveStaleMemories(ctx context.Context, tenantID, workspaceID string) (int, error) {
	ws, err := s.wsStore.GetWorkspace(ctx, tenantID, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("decay: load workspace: %w", err)
	}

	candidates, err := s.memStore.ListForDecay(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("decay: list candidates: %w", err)
	}

	now := time.Now()
	minAge := time.Duration(ws.Settings.ArchiveMinAgeDays) * 24 * time.Hour
	var stale []string
	for _, mem := range candidates {
		if mem.Pinned || mem.Status != types.StatusActive {
			continue
		}
		if EffectiveImportance(&mem) > ws.Settings.ArchiveMaxImportance {
			continue
		}
		if mem.AccessCount > ws.Settings.ArchiveMaxAccessCount {
			continue
		}
		if now.Sub(mem.CreatedAt) < minAge {
			continue
		}
		stale = append(stale, mem.ID)
	}

	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.memStore.Archive(ctx, workspaceID, stale); err != nil {
		return 0, fmt.Errorf("decay: archive: %w", err)
	}
	return len(stale), nil
}

// AllWorkspacesResult aggregates DecayAllWorkspaces across every workspace
// it swept.
type AllWorkspacesResult struct {
	WorkspacesProcessed int
	Decayed             int
	Archived            int
}

// DecayAllWorkspaces sweeps every workspace across every tenant, running
// DecayWorkspace then ArchiveStaleMemories on each. A single workspace's
// failure is logged by the caller (via the returned error wrapping context)
// and does not stop the sweep of the remaining workspaces.
func (s *Service) DecayAllWorkspaces(ctx context.Context) (AllWorkspacesResult, []error) {
	workspaces, err := s.wsStore.ListAllWorkspaces(ctx)
	if err != nil {
		return AllWorkspacesResult{}, []error{fmt.Errorf("decay: list workspaces: %w", err)}
	}

	var out AllWorkspacesResult
	var errs []error
	for _, ws := range workspaces {
		if err := s.sweepLimiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("decay: sweep rate limiter: %w", err))
			break
		}
		decayResult, err := s.DecayWorkspace(ctx, ws.TenantID, ws.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("decay: workspace %s: %w", ws.ID, err))
			continue
		}
		archived, err := s.ArchiveStaleMemories(ctx, ws.TenantID, ws.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("decay: archive workspace %s: %w", ws.ID, err))
			continue
		}
		out.WorkspacesProcessed++
		out.Decayed += decayResult.Decayed
		out.Archived += archived
	}
	return out, errs
}

// Handler adapts DecayAllWorkspaces into a tasks.Handler-shaped function,
// for registration against TaskType on a recurring schedule. The first
// error, if any, is returned so the scheduler logs it; the sweep itself
// already continues past any single workspace's failure.
func (s *Service) Handler(ctx context.Context, payload map[string]interface{}) error {
	result, errs := s.DecayAllWorkspaces(ctx)
	if len(errs) > 0 {
		log.Printf("decay: swept %d workspaces, %d decayed, %d archived, %d errors", result.WorkspacesProcessed, result.Decayed, result.Archived, len(errs))
		return errs[0]
	}
	return nil
}

// CalculateAccessBoost returns the importance a memory should take on when
// it is accessed: a small permanent boost, capped at 1.0.
func CalculateAccessBoost(mem *types.Memory) float64 {
	boosted := mem.Importance + accessBoost
	if boosted > 1.0 {
		return 1.0
	}
	return boosted
}
