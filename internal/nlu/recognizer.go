// Package nlu implements the deterministic language-understanding stages:
// intent recognition, entity extraction and reference resolution. All three
// are pure functions of the input text, the catalog tables and (for the
// resolver) the conversation context — no external NLP service is called.
package nlu

import (
	"sort"
	"strings"

	"github.com/intentflow/intentflow/internal/catalog"
	"github.com/intentflow/intentflow/internal/models"
)

// Recognizer scores input text against the catalog's intent patterns.
type Recognizer struct {
	catalog *catalog.Catalog
}

// NewRecognizer creates a recognizer bound to a catalog.
func NewRecognizer(c *catalog.Catalog) *Recognizer {
	return &Recognizer{catalog: c}
}

type scoredIntent struct {
	intent models.Intent
	score  float64
}

// Recognize returns up to maxIntents candidates ranked by score. An empty or
// fully disqualified catalog yields zero candidates; callers treat that as
// "intent not found", not as an error. Ties keep catalog order (stable sort).
func (r *Recognizer) Recognize(text string, maxIntents int) []models.Intent {
	if maxIntents <= 0 {
		maxIntents = 1
	}

	normalized := NormalizeText(text)
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return nil
	}

	var candidates []scoredIntent
	for _, p := range r.catalog.IntentPatterns() {
		score, matched, ok := scorePattern(p, normalized, tokens)
		if !ok || score <= 0 {
			continue
		}
		candidates = append(candidates, scoredIntent{
			intent: models.Intent{
				Name:            p.Intent,
				Confidence:      clampConfidence(int(score)),
				Category:        p.Category,
				MatchedKeywords: matched,
			},
			score: score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > maxIntents {
		candidates = candidates[:maxIntents]
	}

	intents := make([]models.Intent, len(candidates))
	for i, c := range candidates {
		intents[i] = c.intent
	}
	return intents
}

// scorePattern applies the weighted scoring rules for a single pattern.
// A missing required keyword or a present negative keyword disqualifies the
// pattern entirely.
func scorePattern(p catalog.CompiledIntentPattern, normalized string, tokens []string) (float64, []string, bool) {
	score := 0.0
	var matched []string

	if p.Matcher != nil && p.Matcher.MatchString(normalized) {
		score += float64(p.BaseConfidence)
	}

	for _, kw := range p.RequiredKeywords {
		if !keywordPresent(normalized, tokens, kw) {
			return 0, nil, false
		}
		matched = append(matched, kw)
	}
	score += 10 * float64(len(p.RequiredKeywords))

	for _, kw := range p.OptionalKeywords {
		if keywordPresent(normalized, tokens, kw) {
			score += 5
			matched = append(matched, kw)
		}
	}

	for _, kw := range p.NegativeKeywords {
		if keywordPresent(normalized, tokens, kw) {
			return 0, nil, false
		}
	}

	score *= 1 + float64(p.Priority)*0.1
	return score, matched, true
}

// keywordPresent tests for a keyword using, in order: exact substring match,
// single-word stem equality, multi-word phrase containment (every phrase word
// present by stem).
func keywordPresent(normalized string, tokens []string, keyword string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(normalized, kw) {
		return true
	}

	words := strings.Fields(kw)
	if len(words) == 1 {
		stemmed := Stem(kw)
		for _, tok := range tokens {
			if Stem(tok) == stemmed {
				return true
			}
		}
		return false
	}

	for _, w := range words {
		found := false
		stemmed := Stem(w)
		for _, tok := range tokens {
			if Stem(tok) == stemmed {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeText lowercases, strips punctuation except hyphens, and collapses
// whitespace. Shared by the recognizer and resolver.
func NormalizeText(text string) string {
	lowered := strings.ToLower(text)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return ' '
		}
	}, lowered)
	return strings.Join(strings.Fields(cleaned), " ")
}

// suffixes stripped by the stemmer, tested in this order.
var stemSuffixes = []string{"ing", "ed", "s", "ly", "er", "est"}

// Stem removes one common English suffix. It is a crude suffix stripper,
// good enough for keyword equality ("deploying" == "deploy"), not a real
// morphological stemmer.
func Stem(word string) string {
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(word, suf) && len(word) > len(suf)+2 {
			return word[:len(word)-len(suf)]
		}
	}
	return word
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
