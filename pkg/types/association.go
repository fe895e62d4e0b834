package types

import "time"

// Association is a typed directed edge between two memories.
type Association struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`

	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	Relationship string  `json:"relationship"`
	Strength     float64 `json:"strength"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Direction constrains a traversal or a related-memory query.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// AssociateInput is the payload for Association.Associate.
type AssociateInput struct {
	SourceID     string
	TargetID     string
	Relationship string
	Strength     float64
	Metadata     map[string]interface{}
}

// TraverseInput is the payload for Association.Traverse.
type TraverseInput struct {
	StartID       string
	MaxDepth      int
	Relationships []string
	Direction     Direction
}

// GraphPath is one path discovered by a bounded BFS traversal.
type GraphPath struct {
	MemoryIDs     []string
	Relationships []string
	TotalStrength float64
	Depth         int
}
