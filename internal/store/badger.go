package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/intentflow/intentflow/internal/models"
)

const (
	intentPatternPrefix    = "catalog:intent:"
	entityDefinitionPrefix = "catalog:entity:"
	workflowMappingPrefix  = "catalog:mapping:"
)

// BadgerCatalogStore implements CatalogStore using BadgerDB. Each catalog
// record is stored as JSON under a typed key prefix.
type BadgerCatalogStore struct {
	db *badger.DB
}

// NewBadgerCatalogStore opens (creating if needed) the catalog database.
func NewBadgerCatalogStore(path string) (*BadgerCatalogStore, error) {
	opts := badger.DefaultOptions(expandPath(path)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerCatalogStore{db: db}, nil
}

// LoadIntentPatterns returns every stored intent pattern.
func (s *BadgerCatalogStore) LoadIntentPatterns(ctx context.Context) ([]models.IntentPattern, error) {
	var patterns []models.IntentPattern
	err := s.scanPrefix(intentPatternPrefix, func(val []byte) error {
		var p models.IntentPattern
		if err := json.Unmarshal(val, &p); err != nil {
			return nil // skip malformed entries
		}
		patterns = append(patterns, p)
		return nil
	})
	return patterns, err
}

// SaveIntentPattern upserts one intent pattern.
func (s *BadgerCatalogStore) SaveIntentPattern(ctx context.Context, p *models.IntentPattern) error {
	if p.ID == "" {
		return fmt.Errorf("intent pattern has no ID")
	}
	return s.put(intentPatternPrefix+p.ID, p)
}

// DeleteIntentPattern removes one intent pattern.
func (s *BadgerCatalogStore) DeleteIntentPattern(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(intentPatternPrefix + id))
	})
}

// LoadEntityDefinitions returns every stored entity definition.
func (s *BadgerCatalogStore) LoadEntityDefinitions(ctx context.Context) ([]models.EntityDefinition, error) {
	var defs []models.EntityDefinition
	err := s.scanPrefix(entityDefinitionPrefix, func(val []byte) error {
		var d models.EntityDefinition
		if err := json.Unmarshal(val, &d); err != nil {
			return nil
		}
		defs = append(defs, d)
		return nil
	})
	return defs, err
}

// SaveEntityDefinition upserts one entity definition, keyed by type.
func (s *BadgerCatalogStore) SaveEntityDefinition(ctx context.Context, d *models.EntityDefinition) error {
	if d.Type == "" {
		return fmt.Errorf("entity definition has no type")
	}
	return s.put(entityDefinitionPrefix+string(d.Type), d)
}

// LoadWorkflowMappings returns every stored workflow mapping.
func (s *BadgerCatalogStore) LoadWorkflowMappings(ctx context.Context) ([]models.WorkflowMapping, error) {
	var mappings []models.WorkflowMapping
	err := s.scanPrefix(workflowMappingPrefix, func(val []byte) error {
		var m models.WorkflowMapping
		if err := json.Unmarshal(val, &m); err != nil {
			return nil
		}
		mappings = append(mappings, m)
		return nil
	})
	return mappings, err
}

// SaveWorkflowMapping upserts one workflow mapping, keyed by intent.
func (s *BadgerCatalogStore) SaveWorkflowMapping(ctx context.Context, m *models.WorkflowMapping) error {
	if m.Intent == "" {
		return fmt.Errorf("workflow mapping has no intent")
	}
	return s.put(workflowMappingPrefix+m.Intent, m)
}

// Close closes the BadgerDB instance.
func (s *BadgerCatalogStore) Close() error {
	return s.db.Close()
}

func (s *BadgerCatalogStore) put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerCatalogStore) scanPrefix(prefix string, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}
