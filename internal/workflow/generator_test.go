package workflow

import (
	"testing"

	"github.com/intentflow/intentflow/internal/catalog"
	"github.com/intentflow/intentflow/internal/models"
)

func deployIntent(confidence int) models.Intent {
	return models.Intent{
		Name:       "deploy_application",
		Confidence: confidence,
		Category:   models.CategoryCommand,
	}
}

func envEntity(value string) models.Entity {
	return models.Entity{
		Type:       models.EntityEnvironment,
		Value:      value,
		Normalized: value,
		Confidence: 100,
	}
}

// TestGenerateReadyWorkflow tests the happy path: a deploy intent with an
// environment entity yields a ready deploy-workflow.
func TestGenerateReadyWorkflow(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())

	wf, ok := g.Generate(deployIntent(100), []models.Entity{envEntity("production")}, nil)
	if !ok {
		t.Fatal("Expected a mapping for deploy_application")
	}

	if wf.Name != "deploy-workflow" {
		t.Errorf("Expected deploy-workflow, got %s", wf.Name)
	}
	if !wf.Ready || len(wf.Missing) != 0 {
		t.Errorf("Expected ready workflow, missing=%v", wf.Missing)
	}
	if len(wf.Parameters) != 1 || wf.Parameters[0].Name != "environment" || wf.Parameters[0].Value != "production" {
		t.Errorf("Unexpected parameters %+v", wf.Parameters)
	}
	if wf.Parameters[0].Inferred {
		t.Error("Entity-sourced parameter must not be inferred")
	}
	if wf.Confidence != 100 {
		t.Errorf("Expected confidence 100, got %d", wf.Confidence)
	}
}

// TestGenerateMissingRequired tests that a deploy intent without an
// environment reports the mapped parameter name as missing.
func TestGenerateMissingRequired(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())

	wf, ok := g.Generate(deployIntent(90), nil, nil)
	if !ok {
		t.Fatal("Expected a mapping for deploy_application")
	}

	if wf.Ready {
		t.Error("Expected not ready")
	}
	if len(wf.Missing) != 1 || wf.Missing[0] != "environment" {
		t.Errorf("Expected missing [environment], got %v", wf.Missing)
	}
	// 90 - 20 missing penalty, averaged with 0 mean parameter confidence.
	if wf.Confidence != 35 {
		t.Errorf("Expected confidence 35, got %d", wf.Confidence)
	}
}

// TestGenerateNoMapping tests the sentinel "no mapping" outcome.
func TestGenerateNoMapping(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())

	intent := models.Intent{Name: "greeting", Confidence: 80}
	if wf, ok := g.Generate(intent, nil, nil); ok || wf != nil {
		t.Errorf("Expected no mapping for greeting, got %+v", wf)
	}
}

// TestGenerateContextPreference tests that the defaultEnvironment preference
// backfills a missing environment as an inferred parameter at 70.
func TestGenerateContextPreference(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())
	ctx := &models.ConversationContext{
		Preferences: map[string]string{"defaultEnvironment": "staging"},
	}

	wf, ok := g.Generate(deployIntent(90), nil, ctx)
	if !ok {
		t.Fatal("Expected a mapping")
	}

	if !wf.Ready {
		t.Errorf("Expected preference to satisfy environment, missing=%v", wf.Missing)
	}
	if len(wf.Parameters) != 1 {
		t.Fatalf("Expected one parameter, got %+v", wf.Parameters)
	}
	p := wf.Parameters[0]
	if p.Name != "environment" || p.Value != "staging" || !p.Inferred || p.Confidence != 70 {
		t.Errorf("Unexpected inferred parameter %+v", p)
	}
	// (90 + 70)/2 - 5 inferred penalty.
	if wf.Confidence != 75 {
		t.Errorf("Expected confidence 75, got %d", wf.Confidence)
	}
}

// TestGenerateRecentEntityBackfill tests the recent-entity inference tier:
// confidence is the entity's minus 20, floored at 40, and marks the
// parameter inferred.
func TestGenerateRecentEntityBackfill(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())
	ctx := &models.ConversationContext{
		RecentEntities: []models.Entity{
			{Type: models.EntityEnvironment, Value: "production", Normalized: "production", Confidence: 95},
		},
	}

	wf, ok := g.Generate(deployIntent(90), nil, ctx)
	if !ok {
		t.Fatal("Expected a mapping")
	}
	if !wf.Ready {
		t.Errorf("Expected backfill to satisfy environment, missing=%v", wf.Missing)
	}

	p := wf.Parameters[0]
	if p.Value != "production" || !p.Inferred || p.Confidence != 75 {
		t.Errorf("Expected inferred production at 75, got %+v", p)
	}
}

// TestGenerateDefaults tests mapping defaults fill unset parameters at 50,
// inferred.
func TestGenerateDefaults(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())
	intent := models.Intent{Name: "configure_environment", Confidence: 80}

	wf, ok := g.Generate(intent, []models.Entity{envEntity("staging")}, nil)
	if !ok {
		t.Fatal("Expected a mapping for configure_environment")
	}

	var scope *models.WorkflowParameter
	for i := range wf.Parameters {
		if wf.Parameters[i].Name == "scope" {
			scope = &wf.Parameters[i]
		}
	}
	if scope == nil || scope.Value != "session" || !scope.Inferred || scope.Confidence != 50 {
		t.Errorf("Expected inferred scope=session at 50, got %+v", scope)
	}
}

// TestGenerateFirstEntityWins tests that only the first entity of a type
// fills its parameter.
func TestGenerateFirstEntityWins(t *testing.T) {
	g := NewGenerator(catalog.NewWithDefaults())

	entities := []models.Entity{envEntity("staging"), envEntity("production")}
	wf, ok := g.Generate(deployIntent(100), entities, nil)
	if !ok {
		t.Fatal("Expected a mapping")
	}

	count := 0
	for _, p := range wf.Parameters {
		if p.Name == "environment" {
			count++
			if p.Value != "staging" {
				t.Errorf("Expected first entity to win, got %q", p.Value)
			}
		}
	}
	if count != 1 {
		t.Errorf("Expected one environment parameter, got %d", count)
	}
}

// TestActionsDeployWorkflow tests the deploy action template: four ordered
// steps with confirmation on the deploy step only.
func TestActionsDeployWorkflow(t *testing.T) {
	wf := &models.GeneratedWorkflow{
		Name: "deploy-workflow",
		Parameters: []models.WorkflowParameter{
			{Name: "environment", Value: "production"},
		},
		Ready: true,
	}

	actions := Actions(wf)
	if len(actions) != 4 {
		t.Fatalf("Expected 4 actions, got %d", len(actions))
	}

	wantTypes := []string{"build", "test", "deploy", "verify"}
	for i, a := range actions {
		if a.Type != wantTypes[i] {
			t.Errorf("Action %d: expected %s, got %s", i, wantTypes[i], a.Type)
		}
		if a.Order != i+1 {
			t.Errorf("Action %d: expected order %d, got %d", i, i+1, a.Order)
		}
		if a.Parameters["environment"] != "production" {
			t.Errorf("Action %d: missing parameters", i)
		}
		wantConfirm := a.Type == "deploy"
		if a.Confirmation != wantConfirm {
			t.Errorf("Action %s: confirmation=%v", a.Type, a.Confirmation)
		}
	}
}

// TestActionsUnknownWorkflow tests the generic single-step fallback.
func TestActionsUnknownWorkflow(t *testing.T) {
	wf := &models.GeneratedWorkflow{Name: "custom-workflow"}

	actions := Actions(wf)
	if len(actions) != 1 {
		t.Fatalf("Expected 1 action, got %d", len(actions))
	}
	if actions[0].Type != "execute_workflow" || !actions[0].Confirmation || actions[0].Order != 1 {
		t.Errorf("Unexpected fallback action %+v", actions[0])
	}
}
