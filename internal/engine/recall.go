package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/internal/session"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// nontrivialQueryWords is the minimum word count a query needs before
// rerank is considered worth its extra round-trip.
const nontrivialQueryWords = 2

// Recall resolves a query against stored memories: defaults
// resolution, a cache probe, mode dispatch (RAG/LLM/HYBRID), association
// graph expansion, reranking, detail-level projection, access accounting,
// and a fire-and-forget session touch. tenantID is only needed to resolve
// the workspace's scope-boost settings; an empty tenantID falls back to
// DefaultWorkspaceSettings.
func (s *Service) Recall(ctx context.Context, tenantID, workspaceID string, in types.RecallInput) (*types.RecallResult, error) {
	start := time.Now()
	in = s.applyRecallDefaults(in)
	minRelevance := resolveMinRelevance(in.MinRelevance, in.Tolerance)

	cacheKey := recallCacheKey(workspaceID, in)
	if s.cache != nil {
		if raw, ok := s.cache.Get(cacheKey); ok {
			var cached types.RecallResult
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				cached.CacheHit = true
				s.touchSession(in.SessionID, workspaceID)
				return &cached, nil
			}
		}
	}

	searchStart := time.Now()
	var candidates []types.RecalledMemory
	var err error
	switch in.Mode {
	case types.ModeLLM:
		candidates, err = s.llmSearch(ctx, tenantID, workspaceID, in, minRelevance)
	case types.ModeHybrid:
		candidates, err = s.ragSearch(ctx, tenantID, workspaceID, in, minRelevance)
		if err == nil && (len(candidates) == 0 || candidates[0].Memory.Importance < s.cfg.HybridRAGThreshold) {
			llmCandidates, llmErr := s.llmSearch(ctx, tenantID, workspaceID, in, minRelevance)
			if llmErr == nil && len(llmCandidates) > 0 {
				candidates = llmCandidates
			}
		}
	default:
		candidates, err = s.ragSearch(ctx, tenantID, workspaceID, in, minRelevance)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: recall search: %w", err)
	}
	searchMS := elapsedMS(searchStart)

	assocStart := time.Now()
	if in.IncludeAssociations && s.assoc != nil && len(candidates) > 0 {
		candidates = s.expandAssociations(ctx, workspaceID, in, candidates)
	}
	assocMS := elapsedMS(assocStart)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].BoostedScore > candidates[j].BoostedScore })

	rerankStart := time.Now()
	candidates = s.maybeRerank(ctx, in, candidates)
	rerankMS := elapsedMS(rerankStart)

	if in.Limit > 0 && len(candidates) > in.Limit {
		candidates = candidates[:in.Limit]
	}

	detailStart := time.Now()
	for i := range candidates {
		projected := candidates[i].Memory
		projected.Content = candidates[i].Memory.Project(in.DetailLevel)
		candidates[i].Memory = projected
	}
	detailMS := elapsedMS(detailStart)

	accessStart := time.Now()
	s.trackAccess(ctx, workspaceID, candidates)
	accessMS := elapsedMS(accessStart)

	s.touchSession(in.SessionID, workspaceID)

	result := &types.RecallResult{
		Memories:        candidates,
		ModeUsed:        in.Mode,
		SearchLatencyMS: searchMS,
		Latency: types.RecallLatency{
			SearchMS:         searchMS,
			AssociationsMS:   assocMS,
			RerankMS:         rerankMS,
			DetailFilterMS:   detailMS,
			AccessTrackingMS: accessMS,
			TotalMS:          elapsedMS(start),
		},
		CacheHit:  false,
		QueriedAt: start,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			s.cache.Set(cacheKey, string(raw), s.cfg.RecallCacheTTL)
		}
	}
	return result, nil
}

// applyRecallDefaults fills every unset RecallInput field with its
// configured default.
func (s *Service) applyRecallDefaults(in types.RecallInput) types.RecallInput {
	if in.Mode == "" {
		in.Mode = types.ModeRAG
	}
	if in.Tolerance == "" {
		in.Tolerance = types.ToleranceModerate
	}
	if in.DetailLevel == "" {
		in.DetailLevel = types.DetailFull
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}
	if !in.IncludeAssociations {
		in.IncludeAssociations = s.cfg.IncludeAssociations
	}
	if in.TraverseDepth <= 0 {
		in.TraverseDepth = s.cfg.TraverseDepth
	}
	if in.MaxExpansion <= 0 {
		in.MaxExpansion = s.cfg.MaxGraphExpansion
	}
	return in
}

// ragSearch embeds the query (falling back to full-text search if
// embedding fails), runs an overfetch-scaled vector search, optionally fans
// out to the _global workspace, hydrates full memory rows, filters by
// relevance and visibility, and applies scope + recency boosts.
func (s *Service) ragSearch(ctx context.Context, tenantID, workspaceID string, in types.RecallInput, minRelevance float64) ([]types.RecalledMemory, error) {
	overfetch := in.Limit * s.cfg.RecallOverfetch
	if overfetch < in.Limit {
		overfetch = in.Limit
	}

	embedding := s.embedText(ctx, in.Query)

	type scopedMatch struct {
		storage.ScoredMemoryID
		workspace string
	}
	var scored []scopedMatch
	var err error
	searchWorkspaces := []string{workspaceID}
	if in.IncludeGlobal && workspaceID != types.GlobalWorkspaceID {
		searchWorkspaces = append(searchWorkspaces, types.GlobalWorkspaceID)
	}

	for _, ws := range searchWorkspaces {
		opts := storage.SearchOptions{
			WorkspaceID:     ws,
			Query:           in.Query,
			Embedding:       embedding,
			Types:           memoryTypeStrings(in.Filter.Types),
			Subtypes:        memorySubtypeStrings(in.Filter.Subtypes),
			Tags:            in.Filter.Tags,
			IncludeArchived: in.Filter.IncludeArchived,
			Limit:           overfetch,
		}
		var wsScored []storage.ScoredMemoryID
		if len(embedding) > 0 {
			wsScored, err = s.memStore.VectorSearch(ctx, opts)
		} else {
			wsScored, err = s.memStore.FullTextSearch(ctx, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("search workspace %s: %w", ws, err)
		}
		for _, m := range wsScored {
			scored = append(scored, scopedMatch{ScoredMemoryID: m, workspace: ws})
		}
	}

	settings := s.workspaceSettings(ctx, tenantID, workspaceID)
	queryContextID := in.ContextID

	out := make([]types.RecalledMemory, 0, len(scored))
	for _, sc := range scored {
		if sc.Score < minRelevance {
			continue
		}
		mem, err := s.memStore.Get(ctx, sc.workspace, sc.ID)
		if err != nil {
			continue
		}
		if !mem.IsVisible(in.Filter.IncludeArchived) {
			continue
		}

		scope := classifyScope(mem, queryContextID, workspaceID)
		boosted := sc.Score * scopeBoostFor(settings, scope)
		boosted = recencyBoost(boosted, hoursSince(mem.CreatedAt), s.cfg.RecencyWeight, s.cfg.RecencyHalfLifeHours)

		out = append(out, types.RecalledMemory{
			Memory:         *mem,
			RelevanceScore: sc.Score,
			BoostedScore:   boosted,
			SourceScope:    scope,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoostedScore > out[j].BoostedScore })
	return out, nil
}

// llmSearch optionally rewrites the query via an LLM for clarity, then
// delegates to ragSearch with a widened pool and a lowered relevance
// floor. The LLM mode trades precision for recall breadth, letting rerank (or
// the caller's own judgment) sharpen the result afterward.
func (s *Service) llmSearch(ctx context.Context, tenantID, workspaceID string, in types.RecallInput, minRelevance float64) ([]types.RecalledMemory, error) {
	query := in.Query
	if s.generator != nil {
		rewritten, err := s.generator.Synthesize(ctx, llm.QueryRewritePrompt(query), 64, 0.2, llm.ProfileDefault)
		if err != nil {
			log.Printf("engine: query rewrite failed, using original query: %v", err)
		} else if strings.TrimSpace(rewritten) != "" {
			query = strings.TrimSpace(rewritten)
		}
	}

	widened := in
	widened.Query = query
	widened.Limit = minInt(in.Limit*3, 50)
	lowered := minRelevance * 0.5

	return s.ragSearch(ctx, tenantID, workspaceID, widened, lowered)
}

// expandAssociations walks outward from each top-level candidate via
// association.Service.GetRelated, scoring each newly-discovered memory as
// parent.boosted_score * edge.strength * 0.8^hop, capped at
// MaxExpansion and deduplicated by id. A purpose-built BFS is used here
// rather than association.Service.Traverse because this scoring model needs
// a running per-memory score, not Traverse's aggregated GraphPath shape.
func (s *Service) expandAssociations(ctx context.Context, workspaceID string, in types.RecallInput, seed []types.RecalledMemory) []types.RecalledMemory {
	type frontierEntry struct {
		memoryID string
		score    float64
		hop      int
	}

	seen := make(map[string]bool, len(seed))
	out := append([]types.RecalledMemory{}, seed...)
	var queue []frontierEntry
	for _, c := range seed {
		seen[c.Memory.ID] = true
		queue = append(queue, frontierEntry{memoryID: c.Memory.ID, score: c.BoostedScore, hop: 0})
	}

	expanded := 0
	for len(queue) > 0 && expanded < in.MaxExpansion {
		cur := queue[0]
		queue = queue[1:]
		if cur.hop >= in.TraverseDepth {
			continue
		}

		edges, err := s.assoc.GetRelated(ctx, workspaceID, cur.memoryID, types.DirectionBoth)
		if err != nil {
			log.Printf("engine: expand associations from %s: %v", cur.memoryID, err)
			continue
		}
		for _, edge := range edges {
			next := edge.TargetID
			if next == cur.memoryID {
				next = edge.SourceID
			}
			if seen[next] {
				continue
			}
			seen[next] = true

			mem, err := s.memStore.Get(ctx, workspaceID, next)
			if err != nil || !mem.IsVisible(in.Filter.IncludeArchived) {
				continue
			}

			score := cur.score * edge.Strength * math.Pow(0.8, float64(cur.hop+1))
			out = append(out, types.RecalledMemory{
				Memory:         *mem,
				RelevanceScore: score,
				BoostedScore:   score,
				SourceScope:    types.ScopeAssociation,
			})
			queue = append(queue, frontierEntry{memoryID: next, score: score, hop: cur.hop + 1})
			expanded++
			if expanded >= in.MaxExpansion {
				break
			}
		}
	}
	return out
}

// maybeRerank reranks candidates via the configured Reranker when one is
// available, the query is non-trivial, and there are more candidates than
// requested; a one-word query or an already-small candidate set isn't
// worth the extra round trip. Falls back to the boosted-score ordering
// already applied otherwise.
func (s *Service) maybeRerank(ctx context.Context, in types.RecallInput, candidates []types.RecalledMemory) []types.RecalledMemory {
	if s.reranker == nil || len(candidates) <= in.Limit || len(strings.Fields(in.Query)) < nontrivialQueryWords {
		return candidates
	}

	items := make([]llm.RerankCandidate, len(candidates))
	for i, c := range candidates {
		items[i] = llm.RerankCandidate{ID: c.Memory.ID, Content: c.Memory.Content}
	}
	reranked, err := s.reranker.RerankAdaptive(ctx, in.Query, items, in.Limit)
	if err != nil {
		log.Printf("engine: rerank failed, using boosted-score order: %v", err)
		return candidates
	}

	byID := make(map[string]types.RecalledMemory, len(candidates))
	for _, c := range candidates {
		byID[c.Memory.ID] = c
	}
	out := make([]types.RecalledMemory, 0, len(reranked))
	for _, r := range reranked {
		if c, ok := byID[r.ID]; ok {
			c.RelevanceScore = r.Score
			c.BoostedScore = r.Score
			out = append(out, c)
		}
	}
	return out
}

// trackAccess bumps access_count/last_accessed_at for every returned
// memory concurrently, swallowing per-memory failures: a missed access-count
// update is never worth failing the whole recall over.
func (s *Service) trackAccess(ctx context.Context, workspaceID string, candidates []types.RecalledMemory) {
	var wg sync.WaitGroup
	for _, c := range candidates {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.memStore.IncrementAccessCount(ctx, workspaceID, id); err != nil {
				log.Printf("engine: increment access count for %s: %v", id, err)
			}
		}(c.Memory.ID)
	}
	wg.Wait()
}

// touchSession schedules a fire-and-forget session touch when a recall
// carries a session id. There is deliberately no inline fallback here: an
// inline touch would be a blocking storage round-trip, contradicting the
// guarantee that a session touch never blocks the recall. Without a
// scheduler, the touch is simply skipped.
func (s *Service) touchSession(sessionID, workspaceID string) {
	if sessionID == "" || s.scheduler == nil {
		return
	}
	s.scheduler.ScheduleTask(session.TaskTouchSession, map[string]interface{}{
		"workspace_id": workspaceID,
		"session_id":   sessionID,
	})
}

// Reflect recalls memories matching query and synthesizes a narrative
// answer grounded in their content, falling
// back to a plain listing of recalled content when no generator is
// configured.
func (s *Service) Reflect(ctx context.Context, tenantID, workspaceID, query string, in types.RecallInput) (string, *types.RecallResult, error) {
	in.Query = query
	result, err := s.Recall(ctx, tenantID, workspaceID, in)
	if err != nil {
		return "", nil, err
	}
	if len(result.Memories) == 0 {
		return "I don't have any relevant memories to answer that.", result, nil
	}

	contents := make([]string, len(result.Memories))
	for i, m := range result.Memories {
		contents[i] = m.Memory.Content
	}

	if s.generator == nil {
		return strings.Join(contents, "\n"), result, nil
	}

	answer, err := s.generator.Synthesize(ctx, llm.ReflectionPrompt(query, contents), 500, 0.4, llm.ProfileReflection)
	if err != nil {
		log.Printf("engine: reflect synthesis failed, falling back to raw listing: %v", err)
		return strings.Join(contents, "\n"), result, nil
	}
	return answer, result, nil
}

// classifyScope classifies a recalled memory's structural proximity to the
// querying workspace/context: this is a pure, content-blind
// comparison of ids, never a judgment about semantic relatedness.
func classifyScope(mem *types.Memory, queryContextID, queryWorkspaceID string) types.SourceScope {
	if mem.Workspace == types.GlobalWorkspaceID && queryWorkspaceID != types.GlobalWorkspaceID {
		return types.ScopeGlobalWorkspace
	}
	if mem.Workspace == queryWorkspaceID {
		if queryContextID != "" && mem.ContextID == queryContextID {
			return types.ScopeSameContext
		}
		return types.ScopeSameWorkspace
	}
	return types.ScopeOther
}

// scopeBoostFor maps a classified scope to the matching workspace-configured
// boost factor.
func scopeBoostFor(settings types.WorkspaceSettings, scope types.SourceScope) float64 {
	switch scope {
	case types.ScopeSameContext:
		return settings.ScopeBoostSameContext
	case types.ScopeSameWorkspace:
		return settings.ScopeBoostSameWorkspace
	case types.ScopeGlobalWorkspace:
		return settings.ScopeBoostGlobal
	default:
		return settings.ScopeBoostOther
	}
}

// recencyBoost applies an exponential-decay freshness bonus on top of an
// already scope-boosted score. w<=0 or an invalid half-life make this a
// no-op.
func recencyBoost(boosted, ageHours, w, halfLifeHours float64) float64 {
	if w <= 0 || halfLifeHours <= 0 {
		return boosted
	}
	decay := math.Exp(-math.Ln2 * ageHours / halfLifeHours)
	return boosted * (1 - w + w*decay)
}

// resolveMinRelevance resolves the effective relevance floor: no
// override at all falls back to the tolerance floor; an explicit value <=0
// bypasses the floor entirely (test/debug mode); otherwise the caller's
// value wins only if it clears the floor.
func resolveMinRelevance(min *float64, tolerance types.Tolerance) float64 {
	floor := types.ToleranceFloor(tolerance)
	if min == nil {
		return floor
	}
	if *min <= 0 {
		return 0
	}
	if *min > floor {
		return *min
	}
	return floor
}

// recallCacheKey builds a deterministic cache key from every field that
// affects a recall's result set, so two calls with identical inputs always
// hit the same cache slot.
func recallCacheKey(workspaceID string, in types.RecallInput) string {
	parts := []string{
		workspaceID, in.ContextID, in.Query, string(in.Mode), string(in.Tolerance), string(in.DetailLevel),
		fmt.Sprintf("%d:%d", in.Limit, in.Offset),
		fmt.Sprintf("%v:%v:%d:%d", in.IncludeGlobal, in.IncludeAssociations, in.TraverseDepth, in.MaxExpansion),
		strings.Join(memoryTypeStrings(in.Filter.Types), ","),
		strings.Join(memorySubtypeStrings(in.Filter.Subtypes), ","),
		strings.Join(in.Filter.Tags, ","),
		fmt.Sprintf("%v", in.Filter.IncludeArchived),
	}
	if in.MinRelevance != nil {
		parts = append(parts, fmt.Sprintf("%f", *in.MinRelevance))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("recall:%s:%x", workspaceID, sum)
}

func (s *Service) workspaceSettings(ctx context.Context, tenantID, workspaceID string) types.WorkspaceSettings {
	if s.wsStore == nil {
		return types.DefaultWorkspaceSettings()
	}
	ws, err := s.wsStore.GetWorkspace(ctx, tenantID, workspaceID)
	if err != nil || ws == nil {
		return types.DefaultWorkspaceSettings()
	}
	return ws.Settings
}

func memoryTypeStrings(types_ []types.MemoryType) []string {
	out := make([]string, len(types_))
	for i, t := range types_ {
		out[i] = string(t)
	}
	return out
}

func memorySubtypeStrings(subs []types.MemorySubtype) []string {
	out := make([]string, len(subs))
	for i, t := range subs {
		out[i] = string(t)
	}
	return out
}

func hoursSince(t time.Time) float64 {
	return time.Since(t).Hours()
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
