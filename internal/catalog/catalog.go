// Package catalog holds the versioned in-memory pattern catalog: intent
// patterns, entity definitions and workflow mappings. Regex sources stored as
// data are compiled exactly once, at load time; every mutation rebuilds the
// compiled state wholesale and bumps the catalog version.
package catalog

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/intentflow/intentflow/internal/models"
)

// CompiledIntentPattern pairs a stored intent pattern with its compiled
// match expression.
type CompiledIntentPattern struct {
	models.IntentPattern
	Matcher *regexp.Regexp // nil when the pattern has no match expression
}

// CompiledEntityDefinition pairs a stored entity definition with its compiled
// extraction patterns.
type CompiledEntityDefinition struct {
	models.EntityDefinition
	Matchers []*regexp.Regexp
}

// Catalog is the read-mostly table set consulted by the recognizer, extractor
// and generator. Safe for concurrent reads; mutations take the write lock and
// rebuild derived state before returning.
type Catalog struct {
	mu          sync.RWMutex
	version     int64
	patterns    []CompiledIntentPattern
	definitions []CompiledEntityDefinition
	mappings    []models.WorkflowMapping
	byIntent    map[string]models.WorkflowMapping
}

// New builds a catalog from the given tables, compiling all stored regex
// sources. A malformed pattern fails the whole load.
func New(patterns []models.IntentPattern, definitions []models.EntityDefinition, mappings []models.WorkflowMapping) (*Catalog, error) {
	c := &Catalog{}
	if err := c.rebuild(patterns, definitions, mappings); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithDefaults builds a catalog from the built-in default tables.
func NewWithDefaults() *Catalog {
	c, err := New(DefaultIntentPatterns(), DefaultEntityDefinitions(), DefaultWorkflowMappings())
	if err != nil {
		// The default tables are fixed at compile time; a compile failure here
		// is a programming error, not a runtime condition.
		panic(fmt.Sprintf("catalog: default tables failed to compile: %v", err))
	}
	return c
}

// rebuild recompiles every table and swaps it in under the write lock.
func (c *Catalog) rebuild(patterns []models.IntentPattern, definitions []models.EntityDefinition, mappings []models.WorkflowMapping) error {
	compiled := make([]CompiledIntentPattern, 0, len(patterns))
	for _, p := range patterns {
		cp := CompiledIntentPattern{IntentPattern: p}
		if p.Match != "" {
			re, err := regexp.Compile("(?i)" + p.Match)
			if err != nil {
				return fmt.Errorf("intent pattern %q: bad match expression: %w", p.ID, err)
			}
			cp.Matcher = re
		}
		compiled = append(compiled, cp)
	}

	defs := make([]CompiledEntityDefinition, 0, len(definitions))
	for _, d := range definitions {
		cd := CompiledEntityDefinition{EntityDefinition: d}
		for _, src := range d.Patterns {
			re, err := regexp.Compile("(?i)" + src)
			if err != nil {
				return fmt.Errorf("entity definition %q: bad pattern %q: %w", d.Type, src, err)
			}
			cd.Matchers = append(cd.Matchers, re)
		}
		defs = append(defs, cd)
	}

	byIntent := make(map[string]models.WorkflowMapping, len(mappings))
	for _, m := range mappings {
		byIntent[m.Intent] = m
	}

	c.mu.Lock()
	c.patterns = compiled
	c.definitions = defs
	c.mappings = append([]models.WorkflowMapping(nil), mappings...)
	c.byIntent = byIntent
	c.version++
	c.mu.Unlock()
	return nil
}

// Version returns the current catalog version. It changes on every mutation.
func (c *Catalog) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// IntentPatterns returns the compiled intent patterns in catalog order.
func (c *Catalog) IntentPatterns() []CompiledIntentPattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.patterns
}

// EntityDefinitions returns the compiled entity definitions in catalog order.
// Extraction iterates in this order; the first-found-wins overlap policy makes
// the order part of the catalog's contract.
func (c *Catalog) EntityDefinitions() []CompiledEntityDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.definitions
}

// WorkflowMappings returns every workflow mapping in catalog order.
func (c *Catalog) WorkflowMappings() []models.WorkflowMapping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mappings
}

// MappingFor looks up the workflow mapping for an intent name.
func (c *Catalog) MappingFor(intent string) (models.WorkflowMapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byIntent[intent]
	return m, ok
}

// UpsertIntentPattern adds or replaces a pattern by ID and rebuilds the
// catalog. The previous state is kept on error.
func (c *Catalog) UpsertIntentPattern(p models.IntentPattern) error {
	patterns := c.rawIntentPatterns()
	replaced := false
	for i := range patterns {
		if patterns[i].ID == p.ID {
			patterns[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		patterns = append(patterns, p)
	}
	return c.rebuild(patterns, c.rawEntityDefinitions(), c.WorkflowMappings())
}

// DeleteIntentPattern removes a pattern by ID and rebuilds the catalog.
// Deleting an unknown ID is a no-op rebuild.
func (c *Catalog) DeleteIntentPattern(id string) error {
	patterns := c.rawIntentPatterns()
	kept := patterns[:0]
	for _, p := range patterns {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return c.rebuild(kept, c.rawEntityDefinitions(), c.WorkflowMappings())
}

// UpsertEntityDefinition adds or replaces the definition for an entity type
// and rebuilds the catalog.
func (c *Catalog) UpsertEntityDefinition(d models.EntityDefinition) error {
	defs := c.rawEntityDefinitions()
	replaced := false
	for i := range defs {
		if defs[i].Type == d.Type {
			defs[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		defs = append(defs, d)
	}
	return c.rebuild(c.rawIntentPatterns(), defs, c.WorkflowMappings())
}

// UpsertWorkflowMapping adds or replaces the mapping for an intent and
// rebuilds the catalog.
func (c *Catalog) UpsertWorkflowMapping(m models.WorkflowMapping) error {
	mappings := c.WorkflowMappings()
	out := make([]models.WorkflowMapping, 0, len(mappings)+1)
	replaced := false
	for _, existing := range mappings {
		if existing.Intent == m.Intent {
			out = append(out, m)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, m)
	}
	return c.rebuild(c.rawIntentPatterns(), c.rawEntityDefinitions(), out)
}

func (c *Catalog) rawIntentPatterns() []models.IntentPattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.IntentPattern, len(c.patterns))
	for i, p := range c.patterns {
		out[i] = p.IntentPattern
	}
	return out
}

func (c *Catalog) rawEntityDefinitions() []models.EntityDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.EntityDefinition, len(c.definitions))
	for i, d := range c.definitions {
		out[i] = d.EntityDefinition
	}
	return out
}
