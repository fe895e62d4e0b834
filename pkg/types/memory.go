package types

import "time"

// MemoryType is the cognitive classification of a memory.
type MemoryType string

const (
	MemoryTypeEpisodic   MemoryType = "episodic"
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeProcedural MemoryType = "procedural"
	MemoryTypeWorking    MemoryType = "working"
)

// ValidMemoryTypes lists every cognitive memory type the core accepts.
var ValidMemoryTypes = []MemoryType{
	MemoryTypeEpisodic,
	MemoryTypeSemantic,
	MemoryTypeProcedural,
	MemoryTypeWorking,
}

// IsValidMemoryType reports whether t is a recognized cognitive type.
func IsValidMemoryType(t MemoryType) bool {
	for _, v := range ValidMemoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// MemorySubtype is an optional, closed domain refinement of MemoryType.
type MemorySubtype string

const (
	MemorySubtypeNone        MemorySubtype = ""
	MemorySubtypePreference  MemorySubtype = "preference"
	MemorySubtypeFact        MemorySubtype = "fact"
	MemorySubtypeDecision    MemorySubtype = "decision"
	MemorySubtypeInstruction MemorySubtype = "instruction"
	MemorySubtypeProfile     MemorySubtype = "profile"
	MemorySubtypeEntity      MemorySubtype = "entity"
	MemorySubtypeEvent       MemorySubtype = "event"
	MemorySubtypeCase        MemorySubtype = "case"
	MemorySubtypePattern     MemorySubtype = "pattern"
)

// validMemorySubtypes lists every recognized subtype, excluding the empty
// "none" value (absence is always valid but not itself a subtype to match).
var validMemorySubtypes = map[MemorySubtype]bool{
	MemorySubtypePreference:  true,
	MemorySubtypeFact:        true,
	MemorySubtypeDecision:    true,
	MemorySubtypeInstruction: true,
	MemorySubtypeProfile:     true,
	MemorySubtypeEntity:      true,
	MemorySubtypeEvent:       true,
	MemorySubtypeCase:        true,
	MemorySubtypePattern:     true,
}

// IsValidMemorySubtype reports whether st is a recognized, non-empty subtype.
func IsValidMemorySubtype(st MemorySubtype) bool {
	return validMemorySubtypes[st]
}

// MemoryStatus is the lifecycle status of a memory row.
type MemoryStatus string

const (
	StatusActive   MemoryStatus = "active"
	StatusArchived MemoryStatus = "archived"
	StatusDeleted  MemoryStatus = "deleted"
)

// SourceScope classifies a recalled memory's structural proximity to the
// query's workspace/context. Populated only during recall, never persisted.
type SourceScope string

const (
	ScopeSameContext     SourceScope = "same_context"
	ScopeSameWorkspace   SourceScope = "same_workspace"
	ScopeGlobalWorkspace SourceScope = "global_workspace"
	ScopeAssociation     SourceScope = "association"
	ScopeOther           SourceScope = "other"
)

// Memory is the central entity: a content-addressed, classified, embedded,
// optionally summarized unit of long-term knowledge.
type Memory struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Workspace string `json:"workspace_id"`
	ContextID string `json:"context_id"`

	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`

	Type     MemoryType    `json:"type"`
	Subtype  MemorySubtype `json:"subtype,omitempty"`
	Category string        `json:"category,omitempty"`

	Importance  float64 `json:"importance"`
	DecayFactor float64 `json:"decay_factor"`
	AccessCount int     `json:"access_count"`

	Abstract string `json:"abstract,omitempty"`
	Overview string `json:"overview,omitempty"`

	Status MemoryStatus `json:"status"`
	Pinned bool         `json:"pinned"`

	SourceMemoryID string `json:"source_memory_id,omitempty"`

	Tags     []string               `json:"tags,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	// Ephemeral ranking metadata. Populated only by recall, never persisted.
	SourceScope    SourceScope `json:"-"`
	RelevanceScore float64     `json:"-"`
	BoostedScore   float64     `json:"-"`
}

// HasEmbedding reports whether the memory currently carries a vector.
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// IsVisible reports whether a memory should ever be surfaced to a caller
// that did not explicitly ask for deleted/archived rows.
func (m *Memory) IsVisible(includeArchived bool) bool {
	if m.Status == StatusDeleted {
		return false
	}
	if m.Status == StatusArchived && !includeArchived {
		return false
	}
	return true
}

// DetailLevel controls which summary tier recall projects as `content`.
type DetailLevel string

const (
	DetailAbstract DetailLevel = "abstract"
	DetailOverview DetailLevel = "overview"
	DetailFull     DetailLevel = "full"
)

// Project returns the content string recall should surface for this memory
// at the given detail level, following the truncation fallback rules when a
// tier hasn't been generated yet.
func (m *Memory) Project(level DetailLevel) string {
	switch level {
	case DetailAbstract:
		if m.Abstract != "" {
			return m.Abstract
		}
		return truncate(m.Content, 100)
	case DetailOverview:
		if m.Overview != "" {
			return m.Overview
		}
		return truncate(m.Content, 500)
	default:
		return m.Content
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
