package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/intentflow/intentflow/internal/models"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("session not found")

// SQLiteSessionStore implements SessionStore using SQLite.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore opens (creating if needed) the session database.
func NewSQLiteSessionStore(dbPath string) (*SQLiteSessionStore, error) {
	dbPath = expandPath(dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteSessionStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the session and turn tables.
func (s *SQLiteSessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		status TEXT NOT NULL,
		context TEXT NOT NULL,
		entities TEXT NOT NULL,
		slots TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		input TEXT NOT NULL,
		intent TEXT NOT NULL,
		entities TEXT NOT NULL,
		response TEXT,
		actions TEXT,
		timestamp DATETIME NOT NULL,
		duration_ms INTEGER,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session record.
func (s *SQLiteSessionStore) CreateSession(ctx context.Context, session *models.ConversationState) error {
	contextJSON, entitiesJSON, slotsJSON, err := marshalSessionFields(session)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, status, context, entities, slots, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		string(session.Status),
		contextJSON,
		entitiesJSON,
		slotsJSON,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession loads a session and its turn history.
func (s *SQLiteSessionStore) GetSession(ctx context.Context, id string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, context, entities, slots, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	var session models.ConversationState
	var status, contextJSON, entitiesJSON, slotsJSON string

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&status,
		&contextJSON,
		&entitiesJSON,
		&slotsJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session.Status = models.SessionStatus(status)
	if err := json.Unmarshal([]byte(contextJSON), &session.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &session.Entities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
	}
	if err := json.Unmarshal([]byte(slotsJSON), &session.Slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
	}

	turns, err := s.loadTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Turns = turns

	return &session, nil
}

// SaveSession overwrites the session's mutable fields.
func (s *SQLiteSessionStore) SaveSession(ctx context.Context, session *models.ConversationState) error {
	contextJSON, entitiesJSON, slotsJSON, err := marshalSessionFields(session)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, context = ?, entities = ?, slots = ?, updated_at = ?
		WHERE id = ?`,
		string(session.Status),
		contextJSON,
		entitiesJSON,
		slotsJSON,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTurn records one completed turn.
func (s *SQLiteSessionStore) AppendTurn(ctx context.Context, sessionID string, turn *models.ConversationTurn) error {
	intentJSON, err := json.Marshal(turn.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	entitiesJSON, err := json.Marshal(turn.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}
	actionsJSON, err := json.Marshal(turn.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, input, intent, entities, response, actions, timestamp, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID,
		sessionID,
		turn.Input,
		string(intentJSON),
		string(entitiesJSON),
		turn.Response,
		string(actionsJSON),
		turn.Timestamp,
		turn.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// loadTurns returns a session's turns in chronological order.
func (s *SQLiteSessionStore) loadTurns(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input, intent, entities, response, actions, timestamp, duration_ms
		FROM turns WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var intentJSON, entitiesJSON string
		var response, actionsJSON sql.NullString
		var durationMs int64

		err := rows.Scan(
			&turn.ID,
			&turn.Input,
			&intentJSON,
			&entitiesJSON,
			&response,
			&actionsJSON,
			&turn.Timestamp,
			&durationMs,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(intentJSON), &turn.Intent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &turn.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
		if actionsJSON.Valid && actionsJSON.String != "" {
			if err := json.Unmarshal([]byte(actionsJSON.String), &turn.Actions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
			}
		}
		turn.Response = response.String
		turn.Duration = time.Duration(durationMs) * time.Millisecond

		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// ListSessions returns sessions without their turn history, newest first.
func (s *SQLiteSessionStore) ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]*models.ConversationState, error) {
	query := "SELECT id, user_id, status, context, entities, slots, created_at, updated_at FROM sessions"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.ConversationState
	for rows.Next() {
		var session models.ConversationState
		var st, contextJSON, entitiesJSON, slotsJSON string

		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&st,
			&contextJSON,
			&entitiesJSON,
			&slotsJSON,
			&session.CreatedAt,
			&session.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		session.Status = models.SessionStatus(st)
		if err := json.Unmarshal([]byte(contextJSON), &session.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &session.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
		if err := json.Unmarshal([]byte(slotsJSON), &session.Slots); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
		}

		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// DeleteStaleSessions removes sessions not updated since the cutoff.
func (s *SQLiteSessionStore) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM turns WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)", cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete stale turns: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database connection.
func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}

func marshalSessionFields(session *models.ConversationState) (string, string, string, error) {
	contextJSON, err := json.Marshal(session.Context)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal context: %w", err)
	}
	entitiesJSON, err := json.Marshal(session.Entities)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal entities: %w", err)
	}
	slotsJSON, err := json.Marshal(session.Slots)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal slots: %w", err)
	}
	return string(contextJSON), string(entitiesJSON), string(slotsJSON), nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
