package types

import "time"

// RecallMode selects how recall resolves candidates.
type RecallMode string

const (
	ModeRAG    RecallMode = "rag"
	ModeLLM    RecallMode = "llm"
	ModeHybrid RecallMode = "hybrid"
)

// Tolerance resolves to a minimum-relevance floor when the caller doesn't
// supply one explicitly.
type Tolerance string

const (
	ToleranceStrict   Tolerance = "strict"
	ToleranceModerate Tolerance = "moderate"
	ToleranceLoose    Tolerance = "loose"
)

// ToleranceFloor returns the minimum-relevance floor for a tolerance level.
func ToleranceFloor(t Tolerance) float64 {
	switch t {
	case ToleranceStrict:
		return 0.6
	case ToleranceLoose:
		return 0.15
	default:
		return 0.3
	}
}

// RecallFilter narrows the candidate set recall considers.
type RecallFilter struct {
	Types           []MemoryType
	Subtypes        []MemorySubtype
	Tags            []string
	IncludeArchived bool
}

// RecallInput is the full payload for Engine.Recall.
type RecallInput struct {
	Query string

	// ContextID is the querying context, used only for scope-boost
	// classification (same_context vs same_workspace); it never filters
	// the candidate set.
	ContextID string

	Mode         RecallMode
	Tolerance    Tolerance
	DetailLevel  DetailLevel
	MinRelevance *float64

	Limit  int
	Offset int

	Filter RecallFilter

	IncludeGlobal       bool
	IncludeAssociations bool
	TraverseDepth       int
	MaxExpansion        int

	SessionID string
}

// RecalledMemory pairs a memory with the ranking metadata recall computed
// for it.
type RecalledMemory struct {
	Memory         Memory      `json:"memory"`
	RelevanceScore float64     `json:"relevance_score"`
	BoostedScore   float64     `json:"boosted_score"`
	SourceScope    SourceScope `json:"source_scope"`
}

// RecallLatency reports per-stage timing, in milliseconds.
type RecallLatency struct {
	SearchMS         float64 `json:"search_ms"`
	AssociationsMS   float64 `json:"associations_ms"`
	RerankMS         float64 `json:"rerank_ms"`
	DetailFilterMS   float64 `json:"detail_filter_ms"`
	AccessTrackingMS float64 `json:"access_tracking_ms"`
	TotalMS          float64 `json:"total_ms"`
}

// RecallResult is the full return value of Engine.Recall.
type RecallResult struct {
	Memories        []RecalledMemory `json:"memories"`
	ModeUsed        RecallMode       `json:"mode_used"`
	SearchLatencyMS float64          `json:"search_latency_ms"`
	Latency         RecallLatency    `json:"latency"`
	CacheHit        bool             `json:"cache_hit"`
	QueriedAt       time.Time        `json:"queried_at"`
}

// RememberInput is the payload for Engine.Remember / Engine.IngestFact.
type RememberInput struct {
	TenantID    string
	WorkspaceID string
	ContextID   string

	Content  string
	Type     MemoryType
	Subtype  MemorySubtype
	Category string

	Importance float64
	Pinned     bool

	Tags     []string
	Metadata map[string]interface{}

	SessionID string
}
