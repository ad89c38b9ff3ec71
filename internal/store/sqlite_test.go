package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/intentflow/intentflow/internal/models"
)

func newTestSessionStore(t *testing.T) *SQLiteSessionStore {
	t.Helper()
	s, err := NewSQLiteSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to open session store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(id string) *models.ConversationState {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.ConversationState{
		ID:     id,
		UserID: "user-1",
		Status: models.SessionActive,
		Context: models.ConversationContext{
			Preferences: map[string]string{"defaultEnvironment": "staging"},
		},
		Slots:     map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestSessionRoundTrip tests create, load and update of a session record.
func TestSessionRoundTrip(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	session := testSession("s-1")
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	loaded, err := s.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if loaded.UserID != "user-1" || loaded.Status != models.SessionActive {
		t.Errorf("Unexpected session %+v", loaded)
	}
	if loaded.Context.Preferences["defaultEnvironment"] != "staging" {
		t.Errorf("Context not round-tripped: %+v", loaded.Context)
	}

	loaded.Status = models.SessionCompleted
	loaded.UpdatedAt = time.Now().UTC()
	if err := s.SaveSession(ctx, loaded); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	again, err := s.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if again.Status != models.SessionCompleted {
		t.Errorf("Status not persisted: %s", again.Status)
	}
}

// TestGetSessionNotFound tests the sentinel error.
func TestGetSessionNotFound(t *testing.T) {
	s := newTestSessionStore(t)

	if _, err := s.GetSession(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestSaveSessionNotFound tests that updating a missing session fails.
func TestSaveSessionNotFound(t *testing.T) {
	s := newTestSessionStore(t)

	if err := s.SaveSession(context.Background(), testSession("ghost")); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestAppendAndLoadTurns tests turn persistence in chronological order.
func TestAppendAndLoadTurns(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, testSession("s-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i, input := range []string{"deploy to production", "now test it"} {
		turn := &models.ConversationTurn{
			ID:        input,
			Input:     input,
			Intent:    models.Intent{Name: "deploy_application", Confidence: 90},
			Entities:  []models.Entity{{Type: models.EntityEnvironment, Value: "production", Confidence: 95}},
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Duration:  42 * time.Millisecond,
		}
		if err := s.AppendTurn(ctx, "s-1", turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	loaded, err := s.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(loaded.Turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(loaded.Turns))
	}
	if loaded.Turns[0].Input != "deploy to production" {
		t.Errorf("Turns out of order: %+v", loaded.Turns)
	}
	if loaded.Turns[0].Intent.Name != "deploy_application" {
		t.Errorf("Intent not round-tripped: %+v", loaded.Turns[0].Intent)
	}
	if len(loaded.Turns[0].Entities) != 1 {
		t.Errorf("Entities not round-tripped: %+v", loaded.Turns[0])
	}
	if loaded.Turns[0].Duration != 42*time.Millisecond {
		t.Errorf("Duration not round-tripped: %v", loaded.Turns[0].Duration)
	}
}

// TestListSessionsByStatus tests status filtering and ordering.
func TestListSessionsByStatus(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	active := testSession("active-1")
	if err := s.CreateSession(ctx, active); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	done := testSession("done-1")
	done.Status = models.SessionCompleted
	if err := s.CreateSession(ctx, done); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := s.ListSessions(ctx, models.SessionActive, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "active-1" {
		t.Errorf("Unexpected active sessions %+v", sessions)
	}

	all, err := s.ListSessions(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(all))
	}
}

// TestDeleteStaleSessions tests cutoff-based deletion including turns.
func TestDeleteStaleSessions(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	old := testSession("old-1")
	old.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := s.CreateSession(ctx, old); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := s.CreateSession(ctx, testSession("new-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	n, err := s.DeleteStaleSessions(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteStaleSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted, got %d", n)
	}
	if _, err := s.GetSession(ctx, "old-1"); err != ErrNotFound {
		t.Errorf("Expected old session gone, got %v", err)
	}
	if _, err := s.GetSession(ctx, "new-1"); err != nil {
		t.Errorf("Fresh session deleted: %v", err)
	}
}
