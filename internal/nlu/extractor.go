package nlu

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/intentflow/intentflow/internal/catalog"
	"github.com/intentflow/intentflow/internal/models"
)

// Extractor scans text for typed entity spans using the catalog's entity
// definitions. Extraction is deterministic: definitions are applied in
// catalog order and the first accepted span wins any overlap.
type Extractor struct {
	catalog *catalog.Catalog
	now     func() time.Time // injectable for relative-date tests
}

// NewExtractor creates an extractor bound to a catalog.
func NewExtractor(c *catalog.Catalog) *Extractor {
	return &Extractor{catalog: c, now: time.Now}
}

// Extract returns all accepted entities sorted by start offset. The result
// has pairwise non-overlapping [start,end) intervals: candidates produced
// later (across all definitions, in catalog order) are dropped when they
// overlap an already accepted span. This first-found-wins policy is
// intentional; it keeps extraction independent of per-candidate confidence.
func (e *Extractor) Extract(text string) []models.Entity {
	var accepted []models.Entity

	for _, def := range e.catalog.EntityDefinitions() {
		for _, matcher := range def.Matchers {
			for _, span := range matcher.FindAllStringIndex(text, -1) {
				if candidate, ok := e.buildCandidate(def, text, span[0], span[1], false); ok {
					accepted = tryAccept(accepted, candidate)
				}
			}
		}

		// Known values are matched directly as well, independent of the
		// extraction patterns, at fixed high confidence.
		for _, known := range def.KnownValues {
			for _, span := range substringSpans(text, known) {
				if candidate, ok := e.buildCandidate(def, text, span[0], span[1], true); ok {
					accepted = tryAccept(accepted, candidate)
				}
			}
		}
	}

	sortByStart(accepted)
	return accepted
}

// buildCandidate normalizes and validates one raw span. fromKnown marks
// candidates produced by the direct known-value scan, which score a flat 95.
func (e *Extractor) buildCandidate(def catalog.CompiledEntityDefinition, text string, start, end int, fromKnown bool) (models.Entity, bool) {
	raw := text[start:end]
	normalized := e.normalize(def.Normalizer, raw)
	if !validate(def, normalized) {
		return models.Entity{}, false
	}

	confidence := 70
	if fromKnown {
		confidence = 95
	} else {
		if inKnownValues(def.KnownValues, normalized) {
			confidence += 25
		}
		if strongPatternMatch(def.Type, raw) {
			confidence += 15
		}
		if confidence > 100 {
			confidence = 100
		}
	}

	return models.Entity{
		Type:       def.Type,
		Value:      raw,
		Normalized: normalized,
		Confidence: confidence,
		Start:      start,
		End:        end,
	}, true
}

// tryAccept appends the candidate unless it overlaps an accepted span.
func tryAccept(accepted []models.Entity, candidate models.Entity) []models.Entity {
	for _, a := range accepted {
		if candidate.Start < a.End && a.Start < candidate.End {
			return accepted
		}
	}
	return append(accepted, candidate)
}

var environmentAliases = map[string]string{
	"prod": "production",
	"dev":  "development",
	"stg":  "staging",
}

var modelCanonicalNames = []struct{ substring, canonical string }{
	{"gpt", "gpt-4"},
	{"claude", "claude-3"},
	{"gemini", "gemini-pro"},
	{"llama", "llama-3"},
	{"qwen", "qwen-2.5"},
}

// normalize applies the definition's named normalizer to a raw span.
func (e *Extractor) normalize(normalizer, raw string) string {
	switch normalizer {
	case "environment":
		v := strings.ToLower(strings.TrimSpace(raw))
		if full, ok := environmentAliases[v]; ok {
			return full
		}
		return v
	case "slug":
		v := strings.ToLower(strings.TrimSpace(raw))
		v = strings.ReplaceAll(v, "_", "-")
		return strings.Join(strings.Fields(v), "-")
	case "path":
		v := strings.TrimSpace(raw)
		cleaned := path.Clean(v)
		if cleaned == "." {
			return v
		}
		return cleaned
	case "model":
		v := strings.ToLower(raw)
		for _, m := range modelCanonicalNames {
			if strings.Contains(v, m.substring) {
				return m.canonical
			}
		}
		return v
	case "date":
		return e.normalizeDate(raw)
	case "number":
		return strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

var relativeAmountPattern = regexp.MustCompile(`(?i)^in (\d+) (day|hour|minute|week)s?$`)

// genericDateLayouts tried, in order, before passing a date span through
// unchanged.
var genericDateLayouts = []string{
	"2006-01-02",
	"Jan 2 2006",
	"January 2 2006",
	"01/02/2006",
}

// normalizeDate resolves relative expressions against the extractor clock:
// today/tomorrow/yesterday become ISO dates, "in N <unit>(s)" becomes a
// computed future timestamp, anything else goes through generic parsing and
// finally passes through unchanged.
func (e *Extractor) normalizeDate(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	now := e.now()

	switch v {
	case "today":
		return now.Format("2006-01-02")
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	case "yesterday":
		return now.AddDate(0, 0, -1).Format("2006-01-02")
	}

	if m := relativeAmountPattern.FindStringSubmatch(v); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		case "hour":
			d = time.Duration(n) * time.Hour
		case "minute":
			d = time.Duration(n) * time.Minute
		case "week":
			d = time.Duration(n) * 7 * 24 * time.Hour
		}
		return now.Add(d).Format(time.RFC3339)
	}

	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
	"test":        true,
}

// validate applies the definition's named validator to a normalized value.
// The default rule is simply non-empty.
func validate(def catalog.CompiledEntityDefinition, normalized string) bool {
	switch def.Validator {
	case "environment":
		return validEnvironments[normalized]
	case "number":
		_, err := strconv.ParseFloat(normalized, 64)
		return err == nil
	case "path":
		return normalized != "" && !strings.Contains(normalized, "..")
	case "known":
		return inKnownValues(def.KnownValues, normalized)
	default:
		return normalized != ""
	}
}

// strongPatterns mark raw spans that look unambiguous for their type and earn
// a confidence bonus.
var strongPatterns = map[models.EntityType]*regexp.Regexp{
	models.EntityFile:        regexp.MustCompile(`(?i)\.(?:go|ts|tsx|js|jsx|json|ya?ml|md|py|txt)$`),
	models.EntityDate:        regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	models.EntityEnvironment: regexp.MustCompile(`(?i)^(?:production|staging|development)$`),
	models.EntityService:     regexp.MustCompile(`(?i)-(?:service|api|app|worker)$`),
	models.EntityModel:       regexp.MustCompile(`(?i)^(?:gpt|claude|gemini|llama|qwen)`),
	models.EntityIdentifier:  regexp.MustCompile(`^[A-Z]{2,}-\d+$`),
}

func strongPatternMatch(t models.EntityType, raw string) bool {
	re, ok := strongPatterns[t]
	return ok && re.MatchString(raw)
}

func inKnownValues(known []string, v string) bool {
	for _, k := range known {
		if strings.EqualFold(k, v) {
			return true
		}
	}
	return false
}

// substringSpans returns every case-insensitive occurrence of needle.
func substringSpans(text, needle string) [][2]int {
	if needle == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	target := strings.ToLower(needle)

	var spans [][2]int
	for from := 0; ; {
		i := strings.Index(lowered[from:], target)
		if i < 0 {
			break
		}
		start := from + i
		spans = append(spans, [2]int{start, start + len(target)})
		from = start + len(target)
	}
	return spans
}

func sortByStart(entities []models.Entity) {
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && entities[j].Start < entities[j-1].Start; j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}
