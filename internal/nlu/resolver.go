package nlu

import (
	"regexp"
	"sort"
	"strings"

	"github.com/intentflow/intentflow/internal/models"
)

// Resolver rewrites anaphoric references (pronouns, demonstratives, definite
// phrases) into the entity values they refer to, using the session context
// and recent turn history as read-only inputs. Unresolved references are left
// untouched in the text.
type Resolver struct {
	extractor *Extractor
}

// NewResolver creates a resolver that re-extracts entities from rewritten
// text with the given extractor.
func NewResolver(extractor *Extractor) *Resolver {
	return &Resolver{extractor: extractor}
}

// Resolution is the outcome of one resolution pass.
type Resolution struct {
	Text       string             // input with resolved references substituted
	References []models.Reference // every detected reference, resolved or not
	Entities   []models.Entity    // re-extraction over Text, unioned with resolved entities
}

// historyWindow bounds how many past turns the definite-reference fallback
// scans.
const historyWindow = 5

var (
	pronounPattern       = regexp.MustCompile(`(?i)\b(?:it|its|this|that|these|those|he|she|him|her|they|them)\b`)
	demonstrativePattern = regexp.MustCompile(`(?i)\b(?:the same|the previous|the last|the current)\b`)
	definitePattern      = regexp.MustCompile(`(?i)\bthe ([a-z][a-z-]*)\b`)
)

// Resolve detects and resolves references in text. Text with no references
// comes back unchanged with an empty reference list. Resolved references are
// substituted at their original offsets and the rewritten text is re-run
// through the entity extractor.
func (r *Resolver) Resolve(text string, ctx models.ConversationContext, history []models.ConversationTurn) Resolution {
	refs := detectReferences(text)
	if len(refs) == 0 {
		return Resolution{Text: text, Entities: r.extractor.Extract(text)}
	}

	for i := range refs {
		r.resolveReference(&refs[i], ctx, history)
	}

	resolved := substitute(text, refs)

	entities := r.extractor.Extract(resolved)
	entities = unionResolvedEntities(entities, refs)

	return Resolution{Text: resolved, References: refs, Entities: entities}
}

// detectReferences finds demonstratives first so that "the same" is not also
// reported as the definite phrase "the same".
func detectReferences(text string) []models.Reference {
	var refs []models.Reference
	var taken [][2]int

	overlapsTaken := func(start, end int) bool {
		for _, span := range taken {
			if start < span[1] && span[0] < end {
				return true
			}
		}
		return false
	}

	for _, span := range demonstrativePattern.FindAllStringIndex(text, -1) {
		refs = append(refs, models.Reference{
			Text:     text[span[0]:span[1]],
			Kind:     models.ReferenceDemonstrative,
			Position: span[0],
		})
		taken = append(taken, [2]int{span[0], span[1]})
	}

	for _, span := range pronounPattern.FindAllStringIndex(text, -1) {
		if overlapsTaken(span[0], span[1]) {
			continue
		}
		kind := models.ReferencePronoun
		if strings.EqualFold(text[span[0]:span[1]], "its") {
			kind = models.ReferencePossessive
		}
		refs = append(refs, models.Reference{
			Text:     text[span[0]:span[1]],
			Kind:     kind,
			Position: span[0],
		})
		taken = append(taken, [2]int{span[0], span[1]})
	}

	for _, span := range definitePattern.FindAllStringIndex(text, -1) {
		if overlapsTaken(span[0], span[1]) {
			continue
		}
		refs = append(refs, models.Reference{
			Text:     text[span[0]:span[1]],
			Kind:     models.ReferenceDefinite,
			Position: span[0],
		})
		taken = append(taken, [2]int{span[0], span[1]})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Position < refs[j].Position })
	return refs
}

// resolveReference fills in Resolved and Confidence according to the
// per-kind policy. A reference that cannot be resolved keeps confidence 0.
func (r *Resolver) resolveReference(ref *models.Reference, ctx models.ConversationContext, history []models.ConversationTurn) {
	word := strings.ToLower(ref.Text)

	switch ref.Kind {
	case models.ReferencePronoun:
		switch word {
		case "it", "this", "that":
			if e := latestEntity(ctx.RecentEntities); e != nil {
				ref.Resolved = e
				ref.Confidence = 80
			}
		case "these", "those":
			// Plural references collapse onto the single most recent entity;
			// plurality is unsupported, hence the lower confidence.
			if e := latestEntity(ctx.RecentEntities); e != nil {
				ref.Resolved = e
				ref.Confidence = 60
			}
		}

	case models.ReferenceDemonstrative:
		switch {
		case strings.Contains(word, "same"), strings.Contains(word, "previous"), strings.Contains(word, "last"):
			if e := firstEntityInHistory(history); e != nil {
				ref.Resolved = e
				ref.Confidence = 70
			}
		case strings.Contains(word, "current"):
			if e := latestEntity(ctx.RecentEntities); e != nil {
				ref.Resolved = e
				ref.Confidence = 75
			}
		}

	case models.ReferenceDefinite:
		noun := strings.TrimSpace(strings.TrimPrefix(word, "the "))
		if e := matchEntityByValue(ctx.RecentEntities, noun); e != nil {
			ref.Resolved = e
			ref.Confidence = 85
			return
		}
		if e := matchEntityInTurns(history, noun); e != nil {
			ref.Resolved = e
			ref.Confidence = 70
		}
	}
}

// latestEntity returns the most recently added context entity.
func latestEntity(recent []models.Entity) *models.Entity {
	if len(recent) == 0 {
		return nil
	}
	e := recent[len(recent)-1]
	return &e
}

// firstEntityInHistory scans turns newest-first and returns the first entity
// of the first turn that has any.
func firstEntityInHistory(history []models.ConversationTurn) *models.Entity {
	for i := len(history) - 1; i >= 0; i-- {
		if len(history[i].Entities) > 0 {
			e := history[i].Entities[0]
			return &e
		}
	}
	return nil
}

// matchEntityByValue scans entities newest-first for a value related to the
// noun by containment in either direction.
func matchEntityByValue(entities []models.Entity, noun string) *models.Entity {
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		if valueMatches(e, noun) {
			return &e
		}
	}
	return nil
}

func matchEntityInTurns(history []models.ConversationTurn, noun string) *models.Entity {
	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	for i := len(history) - 1; i >= start; i-- {
		if e := matchEntityByValue(history[i].Entities, noun); e != nil {
			return e
		}
	}
	return nil
}

func valueMatches(e models.Entity, noun string) bool {
	if noun == "" {
		return false
	}
	for _, v := range []string{strings.ToLower(e.Normalized), strings.ToLower(e.Value)} {
		if v == "" {
			continue
		}
		if strings.Contains(v, noun) || strings.Contains(noun, v) {
			return true
		}
	}
	return false
}

// substitute replaces resolved references right-to-left so earlier offsets
// stay valid while rewriting.
func substitute(text string, refs []models.Reference) string {
	out := text
	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]
		if ref.Resolved == nil {
			continue
		}
		replacement := ref.Resolved.NormalizedOrValue()
		out = out[:ref.Position] + replacement + out[ref.Position+len(ref.Text):]
	}
	return out
}

// unionResolvedEntities appends each resolved reference's entity unless the
// re-extraction pass already produced an equivalent one.
func unionResolvedEntities(entities []models.Entity, refs []models.Reference) []models.Entity {
	for _, ref := range refs {
		if ref.Resolved == nil {
			continue
		}
		dup := false
		for _, e := range entities {
			if e.Type == ref.Resolved.Type && e.NormalizedOrValue() == ref.Resolved.NormalizedOrValue() {
				dup = true
				break
			}
		}
		if !dup {
			entities = append(entities, *ref.Resolved)
		}
	}
	return entities
}
