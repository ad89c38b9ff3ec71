package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/intentflow/intentflow/internal/models"
	"github.com/intentflow/intentflow/internal/store"
)

// fakeSessionStore is an in-memory SessionStore for tests.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ConversationState
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.ConversationState)}
}

func (f *fakeSessionStore) CreateSession(ctx context.Context, session *models.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeSessionStore) GetSession(ctx context.Context, id string) (*models.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (f *fakeSessionStore) SaveSession(ctx context.Context, session *models.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID]; !ok {
		return store.ErrNotFound
	}
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeSessionStore) AppendTurn(ctx context.Context, sessionID string, turn *models.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	session.Turns = append(session.Turns, *turn)
	return nil
}

func (f *fakeSessionStore) ListSessions(ctx context.Context, status models.SessionStatus, limit int) ([]*models.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ConversationState
	for _, session := range f.sessions {
		if status != "" && session.Status != status {
			continue
		}
		clone := *session
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSessionStore) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, session := range f.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) Close() error { return nil }

// TestCreateAndGetSession tests the basic lifecycle fields of a new session.
func TestCreateAndGetSession(t *testing.T) {
	engine := NewEngine(newFakeSessionStore())
	ctx := context.Background()

	session, err := engine.CreateSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID == "" || session.Status != models.SessionActive {
		t.Errorf("Unexpected new session %+v", session)
	}

	loaded, err := engine.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if loaded.UserID != "user-1" {
		t.Errorf("Expected user-1, got %q", loaded.UserID)
	}
}

// TestAddTurn tests that a turn extends history, the entity accumulator and
// UpdatedAt, but never touches status.
func TestAddTurn(t *testing.T) {
	engine := NewEngine(newFakeSessionStore())
	ctx := context.Background()

	session, err := engine.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	before := session.UpdatedAt

	turn := &models.ConversationTurn{
		Input: "deploy to production",
		Entities: []models.Entity{
			{Type: models.EntityEnvironment, Value: "production", Normalized: "production", Confidence: 100},
		},
	}

	time.Sleep(time.Millisecond)
	updated, err := engine.AddTurn(ctx, session.ID, turn)
	if err != nil {
		t.Fatalf("AddTurn failed: %v", err)
	}

	if len(updated.Turns) != 1 {
		t.Errorf("Expected one turn, got %d", len(updated.Turns))
	}
	if len(updated.Entities) != 1 || len(updated.Context.RecentEntities) != 1 {
		t.Errorf("Entity accumulators not extended: %+v", updated)
	}
	if !updated.UpdatedAt.After(before) {
		t.Error("UpdatedAt not bumped")
	}
	if updated.Status != models.SessionActive {
		t.Errorf("AddTurn changed status to %s", updated.Status)
	}
}

// TestAddTurnTerminatedSession tests that completed sessions reject turns.
func TestAddTurnTerminatedSession(t *testing.T) {
	engine := NewEngine(newFakeSessionStore())
	ctx := context.Background()

	session, _ := engine.CreateSession(ctx, "")
	if err := engine.EndSession(ctx, session.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if _, err := engine.AddTurn(ctx, session.ID, &models.ConversationTurn{Input: "hi"}); err == nil {
		t.Error("Expected AddTurn on a completed session to fail")
	}

	// A terminated session is still queryable from the store.
	loaded, err := engine.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession after end failed: %v", err)
	}
	if loaded.Status != models.SessionCompleted {
		t.Errorf("Expected completed, got %s", loaded.Status)
	}
}

// TestSetStatusNeverResurrects tests that terminal states cannot transition.
func TestSetStatusNeverResurrects(t *testing.T) {
	engine := NewEngine(newFakeSessionStore())
	ctx := context.Background()

	session, _ := engine.CreateSession(ctx, "")
	if _, err := engine.SetStatus(ctx, session.ID, models.SessionAbandoned); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if _, err := engine.SetStatus(ctx, session.ID, models.SessionActive); err == nil {
		t.Error("Expected resurrection to be rejected")
	}
}

// TestUpdateContextShallowMerge tests per-field merge semantics.
func TestUpdateContextShallowMerge(t *testing.T) {
	engine := NewEngine(newFakeSessionStore())
	ctx := context.Background()

	session, _ := engine.CreateSession(ctx, "")
	_, err := engine.UpdateContext(ctx, session.ID, models.ConversationContext{
		WorkingDirectory: "/srv/app",
		Preferences:      map[string]string{"defaultEnvironment": "staging"},
	})
	if err != nil {
		t.Fatalf("UpdateContext failed: %v", err)
	}

	updated, err := engine.UpdateContext(ctx, session.ID, models.ConversationContext{
		ActiveWorkflow: "deploy-workflow",
		Preferences:    map[string]string{"verbose": "true"},
	})
	if err != nil {
		t.Fatalf("UpdateContext failed: %v", err)
	}

	if updated.Context.WorkingDirectory != "/srv/app" {
		t.Error("Merge dropped WorkingDirectory")
	}
	if updated.Context.ActiveWorkflow != "deploy-workflow" {
		t.Error("Merge did not set ActiveWorkflow")
	}
	if updated.Context.Preferences["defaultEnvironment"] != "staging" || updated.Context.Preferences["verbose"] != "true" {
		t.Errorf("Preference overlay wrong: %+v", updated.Context.Preferences)
	}
	if updated.Status != models.SessionActive {
		t.Errorf("UpdateContext changed status to %s", updated.Status)
	}
}

// TestRecentEntityCap tests the context accumulator eviction policy.
func TestRecentEntityCap(t *testing.T) {
	engine := NewEngine(newFakeSessionStore())
	ctx := context.Background()

	session, _ := engine.CreateSession(ctx, "")
	for i := 0; i < recentEntityCap+5; i++ {
		_, err := engine.AddTurn(ctx, session.ID, &models.ConversationTurn{
			Input:    "deploy to production",
			Entities: []models.Entity{{Type: models.EntityEnvironment, Value: "production", Confidence: 90}},
		})
		if err != nil {
			t.Fatalf("AddTurn %d failed: %v", i, err)
		}
	}

	updated, _ := engine.GetSession(ctx, session.ID)
	if len(updated.Context.RecentEntities) != recentEntityCap {
		t.Errorf("Expected %d recent entities, got %d", recentEntityCap, len(updated.Context.RecentEntities))
	}
}

// TestReapStale tests that idle active sessions are abandoned, fresh ones
// untouched.
func TestReapStale(t *testing.T) {
	fake := newFakeSessionStore()
	engine := NewEngine(fake, WithSessionTTL(10*time.Minute))
	ctx := context.Background()

	stale, _ := engine.CreateSession(ctx, "")
	fresh, _ := engine.CreateSession(ctx, "")

	// Backdate the stale session directly in the store.
	fake.mu.Lock()
	fake.sessions[stale.ID].UpdatedAt = time.Now().Add(-time.Hour)
	fake.mu.Unlock()

	marked, err := engine.ReapStale(ctx)
	if err != nil {
		t.Fatalf("ReapStale failed: %v", err)
	}
	if marked != 1 {
		t.Errorf("Expected 1 abandoned session, got %d", marked)
	}

	loaded, _ := engine.GetSession(ctx, stale.ID)
	if loaded.Status != models.SessionAbandoned {
		t.Errorf("Expected abandoned, got %s", loaded.Status)
	}
	loaded, _ = engine.GetSession(ctx, fresh.ID)
	if loaded.Status != models.SessionActive {
		t.Errorf("Fresh session touched: %s", loaded.Status)
	}
}
