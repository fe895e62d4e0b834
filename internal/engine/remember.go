package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/association"
	"github.com/memvault/memvault/internal/dedup"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// semanticDupThreshold is the minimum vector-search score worth probing for
// a semantic (near-)duplicate at all; anything below it isn't worth a
// CheckDuplicate call since dedup.DefaultThresholds' merge band starts well
// above it.
const semanticDupThreshold = 0.80

// sentenceTerminator marks the point where should_decompose's "more than
// one sentence" test looks for a second clause.
var sentenceTerminator = regexp.MustCompile(`[.;?!](\s|$)`)

// dedupOutcome is resolveDedup's result: for every action but CREATE,
// Memory is the already-resolved, already-persisted row the caller should
// return as-is. For CREATE, Memory is a fully-built *types.Memory the
// caller still owns (not yet stored), so it can attach fields (like
// SourceMemoryID) before persisting it.
type dedupOutcome struct {
	Action     types.DedupAction
	Memory     *types.Memory
	Classified bool // true if Memory.Type was auto-seeded by classifyByKeyword
}

// resolveDedup runs the shared dedup check every remember path performs: an
// exact content_hash lookup, then (if embedding is available) a semantic
// probe against the closest existing memory, handed to dedup.CheckDuplicate.
// SKIP returns the existing memory untouched. UPDATE replaces its content
// and bumps importance. MERGE appends the new content. CREATE builds (but
// does not store) a new memory, classifying its type by keyword heuristic
// when the caller didn't supply one.
func (s *Service) resolveDedup(ctx context.Context, workspaceID string, in types.RememberInput, embedding []float32) (*dedupOutcome, error) {
	hash := types.ContentHash(in.Content)

	var exactMatchID string
	if existing, err := s.memStore.GetByContentHash(ctx, workspaceID, hash); err == nil {
		exactMatchID = existing.ID
	}

	var semanticCandidate *dedup.Candidate
	if exactMatchID == "" && len(embedding) > 0 {
		matches, err := s.memStore.VectorSearch(ctx, storageSearchOpts(workspaceID, embedding, 1))
		if err != nil {
			log.Printf("engine: dedup semantic probe failed: %v", err)
		} else if len(matches) > 0 && matches[0].Score >= semanticDupThreshold {
			semanticCandidate = &dedup.Candidate{MemoryID: matches[0].ID, Similarity: matches[0].Score}
		}
	}

	result := dedup.CheckDuplicate(exactMatchID, semanticCandidate, dedup.DefaultThresholds())

	switch result.Action {
	case types.DedupSkip:
		existing, err := s.memStore.Get(ctx, workspaceID, result.ExistingMemoryID)
		if err != nil {
			return nil, fmt.Errorf("engine: dedup skip load %s: %w", result.ExistingMemoryID, err)
		}
		return &dedupOutcome{Action: types.DedupSkip, Memory: existing}, nil

	case types.DedupUpdate:
		existing, err := s.memStore.Get(ctx, workspaceID, result.ExistingMemoryID)
		if err != nil {
			return nil, fmt.Errorf("engine: dedup update load %s: %w", result.ExistingMemoryID, err)
		}
		existing.Content = in.Content
		existing.ContentHash = hash
		existing.Importance = dedup.UpdateImportance(existing.Importance)
		existing.Embedding = embedding
		existing.UpdatedAt = time.Now()
		if err := s.memStore.Store(ctx, existing); err != nil {
			return nil, fmt.Errorf("engine: dedup update store %s: %w", existing.ID, err)
		}
		return &dedupOutcome{Action: types.DedupUpdate, Memory: existing}, nil

	case types.DedupMerge:
		existing, err := s.memStore.Get(ctx, workspaceID, result.ExistingMemoryID)
		if err != nil {
			return nil, fmt.Errorf("engine: dedup merge load %s: %w", result.ExistingMemoryID, err)
		}
		existing.Content = dedup.MergeContent(existing.Content, in.Content)
		existing.ContentHash = types.ContentHash(existing.Content)
		existing.Importance = dedup.MergeImportance(existing.Importance, in.Importance)
		existing.Embedding = embedding
		existing.UpdatedAt = time.Now()
		if err := s.memStore.Store(ctx, existing); err != nil {
			return nil, fmt.Errorf("engine: dedup merge store %s: %w", existing.ID, err)
		}
		return &dedupOutcome{Action: types.DedupMerge, Memory: existing}, nil
	}

	memType := in.Type
	classified := false
	if memType == "" {
		memType = classifyByKeyword(in.Content)
		classified = true
	}

	now := time.Now()
	mem := &types.Memory{
		ID:          newMemoryID(),
		TenantID:    in.TenantID,
		Workspace:   workspaceID,
		ContextID:   in.ContextID,
		Content:     in.Content,
		ContentHash: hash,
		Type:        memType,
		Subtype:     in.Subtype,
		Category:    in.Category,
		Importance:  in.Importance,
		Pinned:      in.Pinned,
		Status:      types.StatusActive,
		Tags:        types.NormalizeTags(in.Tags),
		Metadata:    in.Metadata,
		Embedding:   embedding,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mem.Importance == 0 {
		mem.Importance = 0.5
	}
	return &dedupOutcome{Action: types.DedupCreate, Memory: mem, Classified: classified}, nil
}

// Remember is the main ingestion entry point. It embeds the
// content, resolves dedup, stores new memories, optionally decomposes
// composite content into facts, and otherwise runs the post-store
// enrichment pipeline. inline forces every background step (decomposition,
// tier generation, auto-enrichment) to run synchronously before returning,
// used by callers that need the fully-enriched result immediately (tests,
// synchronous API callers without a task scheduler).
func (s *Service) Remember(ctx context.Context, in types.RememberInput, userID string, inline bool) (*types.Memory, error) {
	embedding, err := s.embedTextStrict(ctx, in.Content)
	if err != nil {
		return nil, err
	}

	outcome, err := s.resolveDedup(ctx, in.WorkspaceID, in, embedding)
	if err != nil {
		return nil, err
	}
	if outcome.Action != types.DedupCreate {
		return outcome.Memory, nil
	}

	mem := outcome.Memory
	if err := s.memStore.Store(ctx, mem); err != nil {
		if resolved := s.retryAsDedup(ctx, in.WorkspaceID, in, embedding, err); resolved != nil {
			return resolved, nil
		}
		return nil, fmt.Errorf("engine: remember store: %w", err)
	}

	if s.shouldDecompose(mem) {
		if inline {
			if err := s.decomposeAndProcess(ctx, in.WorkspaceID, mem, embedding, outcome.Classified); err != nil {
				log.Printf("engine: decompose_and_process %s: %v", mem.ID, err)
			}
			return mem, nil
		}
		scheduled := s.scheduler != nil && s.scheduler.ScheduleTask(TaskDecomposeFacts, map[string]interface{}{
			"workspace_id": in.WorkspaceID,
			"memory_id":    mem.ID,
		})
		if !scheduled {
			if err := s.decomposeAndProcess(ctx, in.WorkspaceID, mem, embedding, outcome.Classified); err != nil {
				log.Printf("engine: decompose_and_process %s: %v", mem.ID, err)
			}
		}
		return mem, nil
	}

	s.postStorePipeline(ctx, in.WorkspaceID, mem, embedding, inline, outcome.Classified)
	return mem, nil
}

// RememberBatch runs the full remember state machine over each input in
// order. Items are independent: a failing item leaves a nil slot in the
// result and the rest continue, with the first error returned alongside
// the partial results so callers can tell a clean batch from a degraded
// one. Context cancellation stops the batch where it stands.
func (s *Service) RememberBatch(ctx context.Context, ins []types.RememberInput, userID string, inline bool) ([]*types.Memory, error) {
	out := make([]*types.Memory, len(ins))
	var firstErr error
	for i, in := range ins {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		mem, err := s.Remember(ctx, in, userID, inline)
		if err != nil {
			log.Printf("engine: remember batch item %d: %v", i, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = mem
	}
	return out, firstErr
}

// retryAsDedup handles the create/create race on one content hash: the
// unique (workspace_id, content_hash) index turns the losing writer's insert
// into ErrAlreadyExists, and a dedup re-probe resolves it to the surviving
// row. Returns nil when err isn't that race or the re-probe still says
// CREATE (the caller then surfaces the original store error).
func (s *Service) retryAsDedup(ctx context.Context, workspaceID string, in types.RememberInput, embedding []float32, err error) *types.Memory {
	if !errors.Is(err, storage.ErrAlreadyExists) {
		return nil
	}
	outcome, probeErr := s.resolveDedup(ctx, workspaceID, in, embedding)
	if probeErr != nil || outcome.Action == types.DedupCreate {
		return nil
	}
	return outcome.Memory
}

// shouldDecompose gates automatic fact decomposition: enabled
// by config, never applied to working memory, and only attempted on content
// long enough and structurally complex enough (more than one sentence) to
// plausibly contain more than one atomic fact.
func (s *Service) shouldDecompose(mem *types.Memory) bool {
	if !s.cfg.FactDecompositionEnabled || mem.Type == types.MemoryTypeWorking {
		return false
	}
	if len(mem.Content) < s.cfg.FactDecompositionMinLength {
		return false
	}
	return len(sentenceTerminator.FindAllStringIndex(mem.Content, 2)) >= 2
}

// IngestFact stores a single decomposed fact (or any caller-supplied fact
// record) through its own dedup check, tagging it with sourceMemoryID
// before persisting, and runs the post-store pipeline without attempting
// further decomposition (facts are already atomic) or reclassification
// (the caller has already resolved type/subtype).
func (s *Service) IngestFact(ctx context.Context, workspaceID string, in types.RememberInput, embedding []float32, sourceMemoryID string, inline bool) (*types.Memory, error) {
	outcome, err := s.resolveDedup(ctx, workspaceID, in, embedding)
	if err != nil {
		return nil, err
	}
	if outcome.Action != types.DedupCreate {
		return outcome.Memory, nil
	}

	mem := outcome.Memory
	mem.SourceMemoryID = sourceMemoryID
	if err := s.memStore.Store(ctx, mem); err != nil {
		if resolved := s.retryAsDedup(ctx, workspaceID, in, embedding, err); resolved != nil {
			return resolved, nil
		}
		return nil, fmt.Errorf("engine: ingest_fact store: %w", err)
	}

	s.postStorePipeline(ctx, workspaceID, mem, embedding, inline, false)
	return mem, nil
}

// decomposeAndProcess splits memory into facts and ingests each one.
// A single fact (or a decomposition that degenerates to one) is
// treated as atomic: the parent simply runs the normal post-store pipeline
// rather than being rewritten as its own fact. Otherwise each fact is
// stored via IngestFact (inline, since this whole operation is itself
// already either inline or running inside a scheduled task), linked back to
// the parent with a part_of association, and the parent is archived once
// every fact has been processed.
func (s *Service) decomposeAndProcess(ctx context.Context, workspaceID string, memory *types.Memory, embedding []float32, classifyType bool) error {
	if s.extract == nil {
		s.postStorePipeline(ctx, workspaceID, memory, embedding, true, classifyType)
		return nil
	}

	facts := s.extract.DecomposeToFacts(ctx, memory.Content)
	if len(facts) <= 1 {
		s.postStorePipeline(ctx, workspaceID, memory, embedding, true, classifyType)
		return nil
	}

	for _, fact := range facts {
		content := strings.TrimSpace(fact.Content)
		if content == "" {
			continue
		}
		factType := fact.Type
		factSubtype := fact.Subtype
		if factType == "" {
			factType = memory.Type
			factSubtype = memory.Subtype
		}

		factEmbedding := s.embedText(ctx, content)
		stored, err := s.IngestFact(ctx, workspaceID, types.RememberInput{
			TenantID:    memory.TenantID,
			WorkspaceID: workspaceID,
			ContextID:   memory.ContextID,
			Content:     content,
			Type:        factType,
			Subtype:     factSubtype,
			Importance:  memory.Importance,
		}, factEmbedding, memory.ID, true)
		if err != nil {
			log.Printf("engine: ingest_fact for decomposed fact of %s: %v", memory.ID, err)
			continue
		}

		if s.assoc != nil {
			_, err := s.assoc.Associate(ctx, workspaceID, types.AssociateInput{
				SourceID:     stored.ID,
				TargetID:     memory.ID,
				Relationship: "part_of",
				Strength:     1.0,
				Metadata: map[string]interface{}{
					"auto_generated": true,
					"source":         "fact_decomposition",
				},
			})
			if err != nil {
				log.Printf("engine: part_of association %s->%s: %v", stored.ID, memory.ID, err)
			}
		}
	}

	memory.Status = types.StatusArchived
	memory.UpdatedAt = time.Now()
	if err := s.memStore.Store(ctx, memory); err != nil {
		return fmt.Errorf("engine: archive decomposed parent %s: %w", memory.ID, err)
	}
	return nil
}

// postStorePipeline runs every enrichment step remember and ingest_fact
// both trigger after a CREATE: cache invalidation, tier generation,
// contradiction checking, and auto-enrichment. Tier generation and
// auto-enrichment run inline or are scheduled depending on inline;
// contradiction checking always runs synchronously, since it is cheap (one
// vector search plus string matching) and not named as schedulable in the
// task model.
func (s *Service) postStorePipeline(ctx context.Context, workspaceID string, memory *types.Memory, embedding []float32, inline, classifyType bool) {
	if s.cache != nil {
		s.cache.ClearPrefix("recall:" + workspaceID)
		s.cache.ClearPrefix("assoc:" + workspaceID)
	}

	if s.tier != nil {
		if inline {
			s.tier.GenerateTiers(ctx, workspaceID, memory.ID)
		} else {
			s.tier.RequestTierGeneration(ctx, workspaceID, memory.ID)
		}
	}

	if s.contra != nil {
		if _, err := s.contra.CheckNewMemory(ctx, workspaceID, memory.ID); err != nil {
			log.Printf("engine: contradiction check for %s: %v", memory.ID, err)
		}
	}

	if len(embedding) == 0 {
		return
	}
	if inline {
		if err := s.runAutoEnrich(ctx, workspaceID, memory.ID, classifyType); err != nil {
			log.Printf("engine: auto_enrich %s: %v", memory.ID, err)
		}
		return
	}
	scheduled := s.scheduler != nil && s.scheduler.ScheduleTask(TaskAutoEnrich, map[string]interface{}{
		"workspace_id":  workspaceID,
		"memory_id":     memory.ID,
		"classify_type": classifyType,
	})
	if !scheduled {
		if err := s.runAutoEnrich(ctx, workspaceID, memory.ID, classifyType); err != nil {
			log.Printf("engine: auto_enrich %s: %v", memory.ID, err)
		}
	}
}

// runAutoEnrich searches for similar existing memories and links them via
// association.Service.AutoAssociate. When classifyType is set, meaning the
// memory's type was only ever guessed by the keyword heuristic, it re-runs
// LLM classification and persists a corrected type/subtype if it differs.
func (s *Service) runAutoEnrich(ctx context.Context, workspaceID, memoryID string, classifyType bool) error {
	memory, err := s.memStore.Get(ctx, workspaceID, memoryID)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	if s.assoc != nil && len(memory.Embedding) > 0 {
		matches, err := s.memStore.VectorSearch(ctx, storageSearchOpts(workspaceID, memory.Embedding, 6))
		if err != nil {
			log.Printf("engine: auto_enrich similarity search for %s: %v", memoryID, err)
		} else {
			candidates := make([]association.SimilarCandidate, 0, len(matches))
			for _, m := range matches {
				if m.ID == memoryID || m.Score < s.cfg.AutoAssociationThreshold {
					continue
				}
				content := ""
				if candidate, err := s.memStore.Get(ctx, workspaceID, m.ID); err == nil {
					content = candidate.Content
				}
				candidates = append(candidates, association.SimilarCandidate{
					MemoryID: m.ID, Content: content, Similarity: m.Score,
				})
				if len(candidates) >= 5 {
					break
				}
			}
			s.assoc.AutoAssociate(ctx, workspaceID, memoryID, memory.Content, candidates, s.cfg.AutoAssociationThreshold)
		}
	}

	if classifyType && s.extract != nil {
		newType, newSubtype := s.extract.ClassifyContent(ctx, memory.Content)
		if newType != "" && (newType != memory.Type || newSubtype != memory.Subtype) {
			memory.Type = newType
			memory.Subtype = newSubtype
			memory.UpdatedAt = time.Now()
			if err := s.memStore.Store(ctx, memory); err != nil {
				return fmt.Errorf("persist reclassified type: %w", err)
			}
		}
	}
	return nil
}

// DecomposeFactsHandler adapts decomposeAndProcess into a tasks.Handler for
// the scheduled decompose_facts task. classify_type is not carried forward
// from the originating Remember call (the task payload only has ids), so
// this path always runs with classifyType=false: reclassification only
// matters for the non-decomposed branch, and a memory whose content
// warranted decomposition in the first place is the less common case for a
// caller to also have left untyped.
func (s *Service) DecomposeFactsHandler(ctx context.Context, payload map[string]interface{}) error {
	workspaceID, _ := payload["workspace_id"].(string)
	memoryID, _ := payload["memory_id"].(string)
	memory, err := s.memStore.Get(ctx, workspaceID, memoryID)
	if err != nil {
		return fmt.Errorf("engine: decompose_facts load %s: %w", memoryID, err)
	}
	return s.decomposeAndProcess(ctx, workspaceID, memory, memory.Embedding, false)
}

// AutoEnrichHandler adapts runAutoEnrich into a tasks.Handler for the
// scheduled auto_enrich task.
func (s *Service) AutoEnrichHandler(ctx context.Context, payload map[string]interface{}) error {
	workspaceID, _ := payload["workspace_id"].(string)
	memoryID, _ := payload["memory_id"].(string)
	classifyType, _ := payload["classify_type"].(bool)
	return s.runAutoEnrich(ctx, workspaceID, memoryID, classifyType)
}

// classifyByKeyword is the cheap heuristic classifier remember falls back
// to when a caller doesn't supply a type: simple keyword matching that
// returns procedural or episodic on a cue word and semantic otherwise,
// chosen here instead of the LLM call extraction.ClassifyContent makes
// since this runs synchronously on every untyped remember, not as a
// background enrichment step.
func classifyByKeyword(content string) types.MemoryType {
	lower := strings.ToLower(content)

	proceduralCues := []string{"always ", "never ", "should ", "must ", "how to ", "step ", "first,", "then,", "whenever "}
	for _, cue := range proceduralCues {
		if strings.Contains(lower, cue) {
			return types.MemoryTypeProcedural
		}
	}

	episodicCues := []string{"yesterday", "today", "last week", "happened", "occurred", "met with", "at 2", "on monday", "on tuesday", "on wednesday", "on thursday", "on friday"}
	for _, cue := range episodicCues {
		if strings.Contains(lower, cue) {
			return types.MemoryTypeEpisodic
		}
	}

	return types.MemoryTypeSemantic
}

func storageSearchOpts(workspaceID string, embedding []float32, limit int) storage.SearchOptions {
	return storage.SearchOptions{WorkspaceID: workspaceID, Embedding: embedding, Limit: limit}
}
