// Package store provides the persistence tiers: SQLite for session and turn
// history, Badger for catalog tables, Redis as an optional session cache, and
// an optional Dgraph entity graph for cross-session entity lookups.
package store

import (
	"context"
	"time"

	"github.com/intentflow/intentflow/internal/models"
)

// SessionStore persists conversation sessions and their turn history.
type SessionStore interface {
	// CreateSession inserts a new session record.
	CreateSession(ctx context.Context, session *models.ConversationState) error

	// GetSession loads a session with its turns. Returns ErrNotFound when no
	// session has the given ID.
	GetSession(ctx context.Context, id string) (*models.ConversationState, error)

	// SaveSession overwrites the session's mutable fields (context, slots,
	// entities, status, timestamps). Turns are appended separately.
	SaveSession(ctx context.Context, session *models.ConversationState) error

	// AppendTurn records one completed turn for a session.
	AppendTurn(ctx context.Context, sessionID string, turn *models.ConversationTurn) error

	// ListSessions returns sessions (without turn history) newest first, up
	// to limit. An empty status matches all sessions; limit <= 0 means no
	// limit.
	ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]*models.ConversationState, error)

	// DeleteStaleSessions removes sessions not updated since the cutoff and
	// returns how many were removed.
	DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// CatalogStore persists catalog tables so operator edits survive restarts.
type CatalogStore interface {
	LoadIntentPatterns(ctx context.Context) ([]models.IntentPattern, error)
	SaveIntentPattern(ctx context.Context, p *models.IntentPattern) error
	DeleteIntentPattern(ctx context.Context, id string) error

	LoadEntityDefinitions(ctx context.Context) ([]models.EntityDefinition, error)
	SaveEntityDefinition(ctx context.Context, d *models.EntityDefinition) error

	LoadWorkflowMappings(ctx context.Context) ([]models.WorkflowMapping, error)
	SaveWorkflowMapping(ctx context.Context, m *models.WorkflowMapping) error

	Close() error
}

// SessionCache is a fast read-through tier in front of the session store.
// Implementations must be safe for concurrent use.
type SessionCache interface {
	Get(ctx context.Context, id string) (*models.ConversationState, bool)
	Set(ctx context.Context, session *models.ConversationState) error
	Invalidate(ctx context.Context, id string) error
	Close() error
}

// Config holds connection settings for every store tier.
type Config struct {
	SQLitePath string `yaml:"sqlite_path"`
	BadgerPath string `yaml:"badger_path"`

	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	DgraphURL string `yaml:"dgraph_url"`

	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns store settings suitable for local use.
func DefaultConfig() *Config {
	return &Config{
		SQLitePath: "~/.intentflow/sessions.db",
		BadgerPath: "~/.intentflow/catalog",
		RedisURL:   "localhost:6379",
		DgraphURL:  "localhost:9080",
		CacheTTL:   15 * time.Minute,
	}
}
