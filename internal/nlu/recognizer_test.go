package nlu

import (
	"testing"

	"github.com/intentflow/intentflow/internal/catalog"
)

// TestRecognizeDeployToProduction tests that a direct deploy command ranks
// deploy_application first at full confidence.
func TestRecognizeDeployToProduction(t *testing.T) {
	r := NewRecognizer(catalog.NewWithDefaults())

	intents := r.Recognize("Deploy to production", 3)
	if len(intents) == 0 {
		t.Fatal("Expected at least one intent")
	}

	if intents[0].Name != "deploy_application" {
		t.Errorf("Expected deploy_application, got %s", intents[0].Name)
	}
	if intents[0].Confidence < 80 {
		t.Errorf("Expected high confidence, got %d", intents[0].Confidence)
	}
}

// TestRecognizeNegativeKeyword tests that a negative keyword disqualifies a
// pattern even when its required keywords match.
func TestRecognizeNegativeKeyword(t *testing.T) {
	r := NewRecognizer(catalog.NewWithDefaults())

	intents := r.Recognize("Rollback the deploy we did yesterday", 5)
	for _, intent := range intents {
		if intent.Name == "deploy_application" {
			t.Errorf("deploy_application should be disqualified by 'rollback', got confidence %d", intent.Confidence)
		}
	}

	if len(intents) == 0 || intents[0].Name != "rollback_deployment" {
		t.Fatalf("Expected rollback_deployment first, got %+v", intents)
	}
}

// TestRecognizeEmptyInput tests that empty and whitespace-only inputs yield
// zero candidates.
func TestRecognizeEmptyInput(t *testing.T) {
	r := NewRecognizer(catalog.NewWithDefaults())

	for _, input := range []string{"", "   ", "!!!"} {
		if intents := r.Recognize(input, 3); len(intents) != 0 {
			t.Errorf("Expected no intents for %q, got %d", input, len(intents))
		}
	}
}

// TestRecognizeConfidenceBounds tests that every returned confidence is
// within 0-100.
func TestRecognizeConfidenceBounds(t *testing.T) {
	r := NewRecognizer(catalog.NewWithDefaults())

	inputs := []string{
		"Deploy to production",
		"deploy deploy deploy production staging service application",
		"run the tests",
		"hello there",
	}
	for _, input := range inputs {
		for _, intent := range r.Recognize(input, 10) {
			if intent.Confidence < 0 || intent.Confidence > 100 {
				t.Errorf("Confidence out of bounds for %q: %s=%d", input, intent.Name, intent.Confidence)
			}
		}
	}
}

// TestRecognizeMaxIntents tests the top-K cut.
func TestRecognizeMaxIntents(t *testing.T) {
	r := NewRecognizer(catalog.NewWithDefaults())

	intents := r.Recognize("check the status of the production deploy", 1)
	if len(intents) > 1 {
		t.Errorf("Expected at most 1 intent, got %d", len(intents))
	}
}

// TestRecognizeStemming tests that inflected forms match their keyword stems.
func TestRecognizeStemming(t *testing.T) {
	r := NewRecognizer(catalog.NewWithDefaults())

	intents := r.Recognize("We are deploying the new build", 3)
	found := false
	for _, intent := range intents {
		if intent.Name == "deploy_application" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected deploy_application for 'deploying', got %+v", intents)
	}
}

// TestStem exercises the suffix stripper's guard against over-stemming.
func TestStem(t *testing.T) {
	tests := []struct {
		word string
		want string
	}{
		{"deploying", "deploy"},
		{"deployed", "deploy"},
		{"tests", "test"},
		{"sing", "sing"}, // too short to strip "ing"
		{"red", "red"},   // too short to strip "ed"
		{"status", "statu"},
	}
	for _, tt := range tests {
		if got := Stem(tt.word); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.word, got, tt.want)
		}
	}
}

// TestNormalizeText tests lowercasing, punctuation stripping and whitespace
// collapsing, with hyphens preserved.
func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Deploy to Production!", "deploy to production"},
		{"  run   the tests  ", "run the tests"},
		{"restart api-service, please", "restart api-service please"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
