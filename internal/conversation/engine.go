// Package conversation manages multi-turn session state: lifecycle, context
// accumulation and slot filling. Sessions are persisted through a session
// store with an optional cache tier in front.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intentflow/intentflow/internal/models"
	"github.com/intentflow/intentflow/internal/store"
)

// recentEntityCap bounds the context entity accumulator; oldest entries are
// evicted first.
const recentEntityCap = 20

// Engine manages conversation sessions.
type Engine struct {
	sessions store.SessionStore
	cache    store.SessionCache
	logger   *zap.Logger

	sessionTTL time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache installs a session cache tier.
func WithCache(cache store.SessionCache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithLogger installs a logger; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSessionTTL sets the idle time after which a session is considered
// abandoned by the reaper.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.sessionTTL = ttl }
}

// NewEngine creates an engine over the given session store.
func NewEngine(sessions store.SessionStore, opts ...Option) *Engine {
	e := &Engine{
		sessions:   sessions,
		logger:     zap.NewNop(),
		sessionTTL: 30 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSession starts a new active session.
func (e *Engine) CreateSession(ctx context.Context, userID string) (*models.ConversationState, error) {
	now := time.Now()
	session := &models.ConversationState{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: models.SessionActive,
		Context: models.ConversationContext{
			Preferences: make(map[string]string),
		},
		Slots:     make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e.cacheSet(ctx, session)
	e.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID))

	return session, nil
}

// GetSession loads a session, consulting the cache tier first.
func (e *Engine) GetSession(ctx context.Context, id string) (*models.ConversationState, error) {
	if e.cache != nil {
		if session, ok := e.cache.Get(ctx, id); ok {
			return session, nil
		}
	}

	session, err := e.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	e.cacheSet(ctx, session)
	return session, nil
}

// AddTurn appends a completed turn to an active session and folds the turn's
// entities into the session context. Terminated sessions reject new turns.
func (e *Engine) AddTurn(ctx context.Context, sessionID string, turn *models.ConversationTurn) (*models.ConversationState, error) {
	session, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted || session.Status == models.SessionAbandoned {
		return nil, fmt.Errorf("session %s is %s", sessionID, session.Status)
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	if err := e.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
		return nil, fmt.Errorf("failed to append turn: %w", err)
	}

	session.Turns = append(session.Turns, *turn)
	session.Entities = append(session.Entities, turn.Entities...)
	session.Context.RecentEntities = appendCapped(session.Context.RecentEntities, turn.Entities)
	session.UpdatedAt = time.Now()

	if err := e.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	e.cacheSet(ctx, session)
	return session, nil
}

// UpdateContext applies a shallow merge of the given context onto the
// session's: non-zero scalar fields replace, map entries overlay, and recent
// entities append under the cap.
func (e *Engine) UpdateContext(ctx context.Context, sessionID string, update models.ConversationContext) (*models.ConversationState, error) {
	session, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if update.WorkingDirectory != "" {
		session.Context.WorkingDirectory = update.WorkingDirectory
	}
	if update.ActiveWorkflow != "" {
		session.Context.ActiveWorkflow = update.ActiveWorkflow
	}
	if len(update.RecentEntities) > 0 {
		session.Context.RecentEntities = appendCapped(session.Context.RecentEntities, update.RecentEntities)
	}
	if len(update.Preferences) > 0 {
		if session.Context.Preferences == nil {
			session.Context.Preferences = make(map[string]string)
		}
		for k, v := range update.Preferences {
			session.Context.Preferences[k] = v
		}
	}
	if len(update.Metadata) > 0 {
		if session.Context.Metadata == nil {
			session.Context.Metadata = make(map[string]string)
		}
		for k, v := range update.Metadata {
			session.Context.Metadata[k] = v
		}
	}

	session.UpdatedAt = time.Now()
	if err := e.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	e.cacheSet(ctx, session)
	return session, nil
}

// SetStatus transitions the session's lifecycle state. Transitions out of a
// terminal state are rejected.
func (e *Engine) SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) (*models.ConversationState, error) {
	session, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted || session.Status == models.SessionAbandoned {
		return nil, fmt.Errorf("session %s is already %s", sessionID, session.Status)
	}

	session.Status = status
	session.UpdatedAt = time.Now()
	if err := e.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if status == models.SessionCompleted || status == models.SessionAbandoned {
		e.cacheInvalidate(ctx, sessionID)
	} else {
		e.cacheSet(ctx, session)
	}

	e.logger.Info("session status changed",
		zap.String("session_id", sessionID),
		zap.String("status", string(status)))

	return session, nil
}

// EndSession marks a session completed.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	_, err := e.SetStatus(ctx, sessionID, models.SessionCompleted)
	return err
}

// purgeFactor sets how many idle TTLs an abandoned session survives in the
// store before it is purged entirely.
const purgeFactor = 48

// ReapStale marks active sessions idle past the session TTL abandoned, then
// purges sessions idle past purgeFactor TTLs. It returns how many sessions
// were marked.
func (e *Engine) ReapStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-e.sessionTTL)

	active, err := e.sessions.ListSessions(ctx, models.SessionActive, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	marked := 0
	for _, session := range active {
		if session.UpdatedAt.After(cutoff) {
			continue
		}
		session.Status = models.SessionAbandoned
		session.UpdatedAt = time.Now()
		if err := e.sessions.SaveSession(ctx, session); err != nil {
			return marked, fmt.Errorf("failed to abandon session %s: %w", session.ID, err)
		}
		e.cacheInvalidate(ctx, session.ID)
		marked++
	}

	purgeCutoff := time.Now().Add(-purgeFactor * e.sessionTTL)
	purged, err := e.sessions.DeleteStaleSessions(ctx, purgeCutoff)
	if err != nil {
		return marked, fmt.Errorf("failed to purge stale sessions: %w", err)
	}

	if marked > 0 || purged > 0 {
		e.logger.Info("reaped stale sessions",
			zap.Int("abandoned", marked),
			zap.Int("purged", purged))
	}
	return marked, nil
}

// StartReaper launches a background loop calling ReapStale at the given
// interval until the context is cancelled.
func (e *Engine) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.ReapStale(ctx); err != nil {
					e.logger.Warn("session reaper failed", zap.Error(err))
				}
			}
		}
	}()
}

func (e *Engine) cacheSet(ctx context.Context, session *models.ConversationState) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, session); err != nil {
		e.logger.Warn("session cache set failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

func (e *Engine) cacheInvalidate(ctx context.Context, id string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, id); err != nil {
		e.logger.Warn("session cache invalidate failed",
			zap.String("session_id", id),
			zap.Error(err))
	}
}

// appendCapped appends entities keeping the newest recentEntityCap entries.
func appendCapped(recent, incoming []models.Entity) []models.Entity {
	out := append(recent, incoming...)
	if len(out) > recentEntityCap {
		out = out[len(out)-recentEntityCap:]
	}
	return out
}
