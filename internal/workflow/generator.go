// Package workflow turns a recognized intent plus extracted entities into a
// parameterized, executable workflow, and expands ready workflows into
// ordered action lists.
package workflow

import (
	"sort"

	"github.com/intentflow/intentflow/internal/catalog"
	"github.com/intentflow/intentflow/internal/models"
)

// Generator maps intents to workflows using the catalog's workflow mappings.
type Generator struct {
	catalog *catalog.Catalog
}

// NewGenerator creates a generator bound to a catalog.
func NewGenerator(c *catalog.Catalog) *Generator {
	return &Generator{catalog: c}
}

// contextBackfillWindow bounds how many recent context entities are
// considered when backfilling missing parameters.
const contextBackfillWindow = 5

// Generate builds a workflow for the intent, filling parameters from
// entities, mapping defaults and conversation context, in that order. The
// second return is false when the intent has no workflow mapping; that is a
// sentinel "no mapping" outcome, not an error.
func (g *Generator) Generate(intent models.Intent, entities []models.Entity, ctx *models.ConversationContext) (*models.GeneratedWorkflow, bool) {
	mapping, ok := g.catalog.MappingFor(intent.Name)
	if !ok {
		return nil, false
	}

	var params []models.WorkflowParameter
	present := make(map[string]bool)
	consumed := make([]bool, len(entities))

	// Entities first: each entity fills at most one parameter, first
	// unconsumed entity of the mapped type wins.
	for _, et := range mappedTypesInOrder(mapping) {
		name := mapping.ParameterNames[et]
		if name == "" || present[name] {
			continue
		}
		for i, e := range entities {
			if consumed[i] || e.Type != et {
				continue
			}
			source := e
			params = append(params, models.WorkflowParameter{
				Name:       name,
				Value:      e.NormalizedOrValue(),
				Source:     &source,
				Confidence: e.Confidence,
			})
			present[name] = true
			consumed[i] = true
			break
		}
	}

	// Mapping defaults for anything still unset.
	for _, name := range sortedKeys(mapping.Defaults) {
		if present[name] {
			continue
		}
		params = append(params, models.WorkflowParameter{
			Name:       name,
			Value:      mapping.Defaults[name],
			Inferred:   true,
			Confidence: 50,
		})
		present[name] = true
	}

	// Context inference last: preferences, active workflow, then a bounded
	// backfill from the most recent context entities.
	if ctx != nil {
		if name := mapping.ParameterNames[models.EntityEnvironment]; name != "" && !present[name] {
			if pref := ctx.Preferences["defaultEnvironment"]; pref != "" {
				params = append(params, models.WorkflowParameter{
					Name: name, Value: pref, Inferred: true, Confidence: 70,
				})
				present[name] = true
			}
		}
		if name := mapping.ParameterNames[models.EntityService]; name != "" && !present[name] && ctx.ActiveWorkflow != "" {
			params = append(params, models.WorkflowParameter{
				Name: name, Value: ctx.ActiveWorkflow, Inferred: true, Confidence: 60,
			})
			present[name] = true
		}

		recent := ctx.RecentEntities
		if len(recent) > contextBackfillWindow {
			recent = recent[len(recent)-contextBackfillWindow:]
		}
		for i := len(recent) - 1; i >= 0; i-- {
			e := recent[i]
			name := mapping.ParameterNames[e.Type]
			if name == "" || present[name] {
				continue
			}
			conf := e.Confidence - 20
			if conf < 40 {
				conf = 40
			}
			source := e
			params = append(params, models.WorkflowParameter{
				Name:       name,
				Value:      e.NormalizedOrValue(),
				Source:     &source,
				Inferred:   true,
				Confidence: conf,
			})
			present[name] = true
		}
	}

	var missing []string
	for _, et := range mapping.RequiredEntities {
		name := mapping.ParameterNames[et]
		if name != "" && !present[name] {
			missing = append(missing, name)
		}
	}

	wf := &models.GeneratedWorkflow{
		Name:       mapping.Workflow,
		Parameters: params,
		Missing:    missing,
		Ready:      len(missing) == 0,
		Intent:     intent.Name,
		Confidence: aggregateConfidence(intent.Confidence, params, len(missing)),
	}
	return wf, true
}

// aggregateConfidence propagates uncertainty through the generation chain:
// the intent confidence is penalized for missing parameters, averaged with
// the mean parameter confidence, then penalized per inferred parameter.
func aggregateConfidence(intentConfidence int, params []models.WorkflowParameter, missingCount int) int {
	score := float64(intentConfidence) - 20*float64(missingCount)

	mean := 0.0
	inferred := 0
	if len(params) > 0 {
		sum := 0
		for _, p := range params {
			sum += p.Confidence
			if p.Inferred {
				inferred++
			}
		}
		mean = float64(sum) / float64(len(params))
	}
	score = (score + mean) / 2
	score -= 5 * float64(inferred)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

// mappedTypesInOrder yields the mapping's entity types deterministically:
// required, then optional, then any remaining mapped types sorted by name.
func mappedTypesInOrder(mapping models.WorkflowMapping) []models.EntityType {
	seen := make(map[models.EntityType]bool)
	var out []models.EntityType
	add := func(et models.EntityType) {
		if !seen[et] {
			seen[et] = true
			out = append(out, et)
		}
	}

	for _, et := range mapping.RequiredEntities {
		add(et)
	}
	for _, et := range mapping.OptionalEntities {
		add(et)
	}

	var rest []string
	for et := range mapping.ParameterNames {
		if !seen[et] {
			rest = append(rest, string(et))
		}
	}
	sort.Strings(rest)
	for _, et := range rest {
		add(models.EntityType(et))
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
