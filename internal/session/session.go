// Package session manages TTL-bounded agent sessions and the working-memory
// KV scoped to them. A session is a short-lived scratch space:
// callers stash values under set_working_memory as they go, and the service
// write-behinds each one into long-term storage as a type=working memory in
// the background rather than on the request path. Two backends satisfy the
// same interface (memdb.Store for the in-memory deployment mode,
// sqlite/postgres for the persistent one), so this package depends only on
// storage.SessionStore/MemoryStore and never on a concrete backend, the same
// storage-interface posture decay and tiering take.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Scheduler is the subset of internal/tasks.Service session needs, kept
// narrow so this package doesn't import the concrete task scheduler.
type Scheduler interface {
	ScheduleTask(taskType string, payload map[string]interface{}) bool
}

const (
	// TaskRememberWorkingMemory is enqueued by SetWorkingMemory to persist
	// the value into long-term storage off the request path.
	TaskRememberWorkingMemory = "remember_working_memory"
	// TaskSessionCleanup is the recurring task type CleanupHandler registers
	// under, on a cadence set by the task scheduler's caller.
	TaskSessionCleanup = "session_cleanup"
	// TaskTouchSession is the ad-hoc task type recall schedules,
	// fire-and-forget, whenever a recall call carries a session id; the
	// touch extends the session window but never blocks the recall.
	TaskTouchSession = "touch_session"

	defaultCleanupBatch = 100
)

// ErrSessionNotLive is returned by operations that require a session to
// exist and not be expired.
var ErrSessionNotLive = fmt.Errorf("session: not live")

// Service implements the session + working-memory lifecycle.
type Service struct {
	sessions  storage.SessionStore
	memories  storage.MemoryStore
	scheduler Scheduler

	defaultTTL time.Duration
	generator  llm.TextGenerator
}

// New builds a Service. scheduler may be nil, in which case write-behind
// persistence runs inline instead of in the background. generator may be
// nil, in which case GetBriefing falls back to a templated summary.
func New(sessions storage.SessionStore, memories storage.MemoryStore, scheduler Scheduler, generator llm.TextGenerator, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	return &Service{sessions: sessions, memories: memories, scheduler: scheduler, generator: generator, defaultTTL: defaultTTL}
}

// CreateSession opens a new session bound to a workspace and context.
func (s *Service) CreateSession(ctx context.Context, tenantID, workspaceID, contextID string, autoCommit bool, metadata map[string]interface{}) (*types.Session, error) {
	now := time.Now()
	sess := &types.Session{
		ID:          types.GenerateSessionID(),
		TenantID:    tenantID,
		WorkspaceID: workspaceID,
		ContextID:   contextID,
		AutoCommit:  autoCommit,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.defaultTTL),
		Metadata:    metadata,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// GetSession fetches a session, verifying it belongs to workspaceID.
func (s *Service) GetSession(ctx context.Context, workspaceID, id string) (*types.Session, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.WorkspaceID != workspaceID {
		return nil, storage.ErrNotFound
	}
	return sess, nil
}

// Get fetches a session by ID alone, workspace-agnostic.
func (s *Service) Get(ctx context.Context, id string) (*types.Session, error) {
	return s.sessions.GetSession(ctx, id)
}

// ListSessions lists every session in a workspace, expired or not.
func (s *Service) ListSessions(ctx context.Context, workspaceID string) ([]types.Session, error) {
	return s.sessions.ListSessions(ctx, workspaceID)
}

// TouchSession extends a session's sliding-window expiry: expires_at = now +
// ttl, where ttl is extendSeconds if given, else the service default.
// Applying successive touches never compounds: each call resets the window
// from "now", so N touches with the same TTL land on the same formula
// (touch_time_N + ttl), never additive growth.
func (s *Service) TouchSession(ctx context.Context, workspaceID, id string, extendSeconds *int) (*types.Session, error) {
	sess, err := s.GetSession(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	ttl := s.defaultTTL
	if extendSeconds != nil {
		ttl = time.Duration(*extendSeconds) * time.Second
	}
	sess.ExpiresAt = time.Now().Add(ttl)
	if err := s.sessions.UpdateSessionExpiry(ctx, id, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("session: touch: %w", err)
	}
	return sess, nil
}

// TouchHandler adapts TouchSession into a tasks.Handler-shaped function, for
// recall's fire-and-forget session touch on every query that carries a
// session id.
func (s *Service) TouchHandler(ctx context.Context, payload map[string]interface{}) error {
	workspaceID, _ := payload["workspace_id"].(string)
	id, _ := payload["session_id"].(string)
	_, err := s.TouchSession(ctx, workspaceID, id, nil)
	return err
}

// DeleteSession removes a session. If it is auto-commit, uncommitted, and
// skipAutoCommit is false, a commit is attempted first; commit failure is
// logged but does not block the delete.
func (s *Service) DeleteSession(ctx context.Context, workspaceID, id string, skipAutoCommit bool) error {
	sess, err := s.GetSession(ctx, workspaceID, id)
	if err != nil {
		return err
	}
	if sess.AutoCommit && !sess.IsCommitted() && !skipAutoCommit {
		if _, err := s.CommitSession(ctx, workspaceID, id); err != nil {
			log.Printf("session: auto-commit before delete of %s: %v", id, err)
		}
	}
	return s.sessions.DeleteSession(ctx, id)
}

// SetWorkingMemory validates the session is live, upserts the KV pair, and
// schedules a background task to persist the value as a type=working
// long-term memory. ttl, if nil, inherits the session's own expiry. value
// is rendered with marshalValue: plain strings pass through unchanged,
// anything else is JSON-encoded.
func (s *Service) SetWorkingMemory(ctx context.Context, workspaceID, sessionID, key string, value interface{}, ttl *time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.ErrInvalidInput
	}
	sess, err := s.GetSession(ctx, workspaceID, sessionID)
	if err != nil {
		return err
	}
	if sess.IsExpired(time.Now()) {
		return ErrSessionNotLive
	}
	rendered, err := marshalValue(value)
	if err != nil {
		return err
	}

	now := time.Now()
	expiresAt := sess.ExpiresAt
	if ttl != nil {
		expiresAt = now.Add(*ttl)
	}
	wm := &types.WorkingMemory{
		SessionID: sessionID,
		Key:       key,
		Value:     rendered,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.SetWorkingMemory(ctx, wm); err != nil {
		return fmt.Errorf("session: set working memory: %w", err)
	}

	payload := map[string]interface{}{
		"workspace_id": workspaceID,
		"context_id":   sess.ContextID,
		"session_id":   sessionID,
		"key":          key,
		"value":        rendered,
	}
	if s.scheduler == nil || !s.scheduler.ScheduleTask(TaskRememberWorkingMemory, payload) {
		s.rememberWorkingMemory(ctx, workspaceID, sess.ContextID, sessionID, key, rendered)
	}
	return nil
}

// rememberWorkingMemory persists a working-memory value as a long-term
// memory. Failures are logged, not returned: write-behind is best-effort,
// and the KV copy in working_memory remains the source of truth until
// commit.
func (s *Service) rememberWorkingMemory(ctx context.Context, workspaceID, contextID, sessionID, key, value string) {
	mem := &types.Memory{
		ID:         types.GenerateMemoryID(),
		Workspace:  workspaceID,
		ContextID:  contextID,
		Content:    fmt.Sprintf("%s: %s", key, value),
		Type:       types.MemoryTypeWorking,
		Importance: 0.3,
		Status:     types.StatusActive,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		Metadata: map[string]interface{}{
			"session_id":         sessionID,
			"working_memory_key": key,
		},
	}
	if err := s.memories.Store(ctx, mem); err != nil {
		log.Printf("session: remember working memory %s/%s: %v", sessionID, key, err)
	}
}

// RememberWorkingMemoryHandler adapts rememberWorkingMemory into a
// tasks.Handler-shaped function for registration with the task scheduler.
func (s *Service) RememberWorkingMemoryHandler(ctx context.Context, payload map[string]interface{}) error {
	workspaceID, _ := payload["workspace_id"].(string)
	contextID, _ := payload["context_id"].(string)
	sessionID, _ := payload["session_id"].(string)
	key, _ := payload["key"].(string)
	value, _ := payload["value"].(string)
	s.rememberWorkingMemory(ctx, workspaceID, contextID, sessionID, key, value)
	return nil
}

// GetWorkingMemory fetches a single working-memory entry.
func (s *Service) GetWorkingMemory(ctx context.Context, sessionID, key string) (*types.WorkingMemory, error) {
	return s.sessions.GetWorkingMemory(ctx, sessionID, key)
}

// GetAllWorkingMemory fetches every working-memory entry for a session.
func (s *Service) GetAllWorkingMemory(ctx context.Context, sessionID string) ([]types.WorkingMemory, error) {
	return s.sessions.ListWorkingMemory(ctx, sessionID)
}

// CommitSession marks a session as committed and reports stats. Long-term
// persistence already happened via write-behind as each key was set;
// commit is only the synchronization barrier a caller waits on.
func (s *Service) CommitSession(ctx context.Context, workspaceID, id string) (*types.CommitStats, error) {
	sess, err := s.GetSession(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	wm, err := s.sessions.ListWorkingMemory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: commit: list working memory: %w", err)
	}
	at := time.Now()
	if !sess.IsCommitted() {
		if err := s.sessions.CommitSession(ctx, id, at); err != nil {
			return nil, fmt.Errorf("session: commit: %w", err)
		}
	}
	return &types.CommitStats{
		SessionID:          id,
		WorkingMemoryCount: len(wm),
		CommittedAt:        at,
	}, nil
}

// BriefingOptions configures GetBriefing.
type BriefingOptions struct {
	LookbackMinutes       int
	DetailLevel           types.DetailLevel
	Limit                 int
	IncludeMemories       bool
	IncludeContradictions bool
}

// GetBriefing assembles a resumption summary for a workspace from recent
// memories and unresolved contradictions. If an LLM generator is
// configured, the narrative workspace_summary is synthesized from the
// gathered facts; any failure to do so (no generator, call error) falls
// back to a templated summary built directly from the stats, the same
// fallback-on-any-failure posture extraction and tiering use.
func (s *Service) GetBriefing(ctx context.Context, workspaceID string, contradictions storage.ContradictionStore, opts BriefingOptions) (*types.Briefing, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.LookbackMinutes <= 0 {
		opts.LookbackMinutes = 60
	}
	if opts.DetailLevel == "" {
		opts.DetailLevel = types.DetailOverview
	}

	recent, err := s.memories.GetRecent(ctx, workspaceID, opts.Limit*3)
	if err != nil {
		return nil, fmt.Errorf("session: briefing: recent memories: %w", err)
	}
	cutoff := time.Now().Add(-time.Duration(opts.LookbackMinutes) * time.Minute)
	var windowed []types.Memory
	for _, m := range recent {
		if m.CreatedAt.Before(cutoff) {
			continue
		}
		windowed = append(windowed, m)
		if len(windowed) >= opts.Limit {
			break
		}
	}

	var unresolved []types.ContradictionRecord
	if opts.IncludeContradictions && contradictions != nil {
		unresolved, err = contradictions.GetUnresolvedContradictions(ctx, workspaceID)
		if err != nil {
			return nil, fmt.Errorf("session: briefing: contradictions: %w", err)
		}
	}

	activity := make([]string, 0, len(windowed))
	for _, m := range windowed {
		activity = append(activity, m.Project(opts.DetailLevel))
	}
	openThreads := make([]string, 0, len(unresolved))
	for _, c := range unresolved {
		openThreads = append(openThreads, fmt.Sprintf("unresolved %s contradiction between %s and %s", c.ContradictionType, c.MemoryAID, c.MemoryBID))
	}

	summary := templatedSummary(workspaceID, len(windowed), len(unresolved))
	if s.generator != nil {
		if text, genErr := s.generator.Synthesize(ctx, llm.BriefingSynthesisPrompt(summary, activity, openThreads), 256, 0.4, llm.ProfileDefault); genErr == nil && text != "" {
			summary = text
		}
	}

	briefing := &types.Briefing{
		WorkspaceSummary:    summary,
		RecentActivity:      windowed,
		OpenThreads:         openThreads,
		ContradictionsFound: unresolved,
	}
	if opts.IncludeMemories {
		briefing.Memories = windowed
	}
	return briefing, nil
}

func templatedSummary(workspaceID string, activityCount, contradictionCount int) string {
	return fmt.Sprintf("%s has %d recent memories and %d unresolved contradictions.", workspaceID, activityCount, contradictionCount)
}

// CleanupExpiredSessions runs the recurring session-cleanup task: fetch up
// to batchLimit expired sessions, attempt commit for each auto-commit
// session not yet committed (errors logged, not fatal), then delete every
// expired session.
func (s *Service) CleanupExpiredSessions(ctx context.Context, batchLimit int) (int, error) {
	if batchLimit <= 0 {
		batchLimit = defaultCleanupBatch
	}
	now := time.Now()
	candidates, err := s.sessions.ListExpiredSessions(ctx, now, batchLimit)
	if err != nil {
		return 0, fmt.Errorf("session: cleanup: list expired: %w", err)
	}
	for _, sess := range candidates {
		if sess.AutoCommit && !sess.IsCommitted() {
			if _, err := s.CommitSession(ctx, sess.WorkspaceID, sess.ID); err != nil {
				log.Printf("session: cleanup auto-commit %s: %v", sess.ID, err)
			}
		}
	}
	return s.sessions.DeleteExpiredSessions(ctx, now)
}

// CleanupHandler adapts CleanupExpiredSessions into a tasks.Handler-shaped
// function for registration as the recurring session_cleanup task.
func (s *Service) CleanupHandler(ctx context.Context, payload map[string]interface{}) error {
	_, err := s.CleanupExpiredSessions(ctx, defaultCleanupBatch)
	return err
}

// marshalValue renders a working-memory value for storage, preferring a
// plain string and falling back to JSON encoding for structured input.
func marshalValue(v interface{}) (string, error) {
	if str, ok := v.(string); ok {
		return str, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("session: marshal working memory value: %w", err)
	}
	return string(b), nil
}
