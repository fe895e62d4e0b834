package types

import "time"

// ContradictionType is the detection mechanism that flagged a pair.
type ContradictionType string

const (
	ContradictionNegation ContradictionType = "negation"
)

// ContradictionResolution is the strategy applied to resolve a contradiction.
type ContradictionResolution string

const (
	ResolutionKeepA    ContradictionResolution = "keep_a"
	ResolutionKeepB    ContradictionResolution = "keep_b"
	ResolutionKeepBoth ContradictionResolution = "keep_both"
	ResolutionMerge    ContradictionResolution = "merge"
)

// ContradictionRecord is a detected inconsistency between two memories.
type ContradictionRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`

	MemoryAID string `json:"memory_a_id"`
	MemoryBID string `json:"memory_b_id"`

	ContradictionType ContradictionType `json:"contradiction_type"`
	Confidence        float64           `json:"confidence"`
	DetectionMethod   string            `json:"detection_method"`

	DetectedAt time.Time  `json:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Resolution    ContradictionResolution `json:"resolution,omitempty"`
	MergedContent string                  `json:"merged_content,omitempty"`
}

// IsUnresolved reports whether this record still needs a decision.
func (c *ContradictionRecord) IsUnresolved() bool {
	return c.ResolvedAt == nil
}
