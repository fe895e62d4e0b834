package types

import "time"

// Reserved identifiers provisioned per tenant by workspace.EnsureReserved.
const (
	DefaultWorkspaceID = "_default"
	GlobalWorkspaceID  = "_global"
	DefaultContextID   = "_default"
)

// Workspace is a tenant-scoped namespace: the outermost memory boundary.
type Workspace struct {
	TenantID string `json:"tenant_id"`
	ID       string `json:"id"`
	Name     string `json:"name"`

	Settings WorkspaceSettings `json:"settings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkspaceSettings holds the per-workspace tuning knobs:
// decay rates, embedding model/dimensions, tier day-counts, scope boosts,
// and auto-remember toggles. Carries yaml and json tags; the storage
// backends persist it as JSON, and internal/config does not load it.
type WorkspaceSettings struct {
	EmbeddingModel      string `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions" json:"embedding_dimensions"`

	DecayRatePerDay float64 `yaml:"decay_rate_per_day" json:"decay_rate_per_day"`
	DecayMinAgeDays int     `yaml:"decay_min_age_days" json:"decay_min_age_days"`

	ArchiveMaxImportance  float64 `yaml:"archive_max_importance" json:"archive_max_importance"`
	ArchiveMaxAccessCount int     `yaml:"archive_max_access_count" json:"archive_max_access_count"`
	ArchiveMinAgeDays     int     `yaml:"archive_min_age_days" json:"archive_min_age_days"`

	TierMinAgeDays int `yaml:"tier_min_age_days" json:"tier_min_age_days"`

	ScopeBoostSameContext   float64 `yaml:"scope_boost_same_context" json:"scope_boost_same_context"`
	ScopeBoostSameWorkspace float64 `yaml:"scope_boost_same_workspace" json:"scope_boost_same_workspace"`
	ScopeBoostGlobal        float64 `yaml:"scope_boost_global" json:"scope_boost_global"`
	ScopeBoostOther         float64 `yaml:"scope_boost_other" json:"scope_boost_other"`

	AutoRemember bool `yaml:"auto_remember" json:"auto_remember"`
}

// DefaultWorkspaceSettings returns the server defaults applied to a new workspace.
func DefaultWorkspaceSettings() WorkspaceSettings {
	return WorkspaceSettings{
		EmbeddingDimensions:     1536,
		DecayRatePerDay:         0.01,
		DecayMinAgeDays:         30,
		ArchiveMaxImportance:    0.2,
		ArchiveMaxAccessCount:   1,
		ArchiveMinAgeDays:       90,
		TierMinAgeDays:          0,
		ScopeBoostSameContext:   1.5,
		ScopeBoostSameWorkspace: 1.2,
		ScopeBoostGlobal:        1.0,
		ScopeBoostOther:         1.0,
		AutoRemember:            true,
	}
}

// Context is a logical grouping within a workspace (project, topic, thread).
type Context struct {
	WorkspaceID string `json:"workspace_id"`
	ID          string `json:"id"`
	Name        string `json:"name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkspaceSchema is the read-only introspection payload served by
// Workspace.Describe(): the live set of memory types, relationship labels
// (flat and by category), and the workspace's own settings.
type WorkspaceSchema struct {
	Workspace               Workspace                         `json:"workspace"`
	MemoryTypes             []MemoryType                      `json:"memory_types"`
	RelationshipLabels      []string                          `json:"relationship_labels"`
	RelationshipsByCategory map[RelationshipCategory][]string `json:"relationships_by_category"`
}
