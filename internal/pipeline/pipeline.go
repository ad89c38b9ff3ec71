// Package pipeline orchestrates one interpretation pass: reference
// resolution, intent recognition, entity extraction, workflow generation and
// session bookkeeping, behind a single Process call.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/intentflow/intentflow/internal/catalog"
	"github.com/intentflow/intentflow/internal/conversation"
	"github.com/intentflow/intentflow/internal/models"
	"github.com/intentflow/intentflow/internal/nlu"
	"github.com/intentflow/intentflow/internal/store"
	"github.com/intentflow/intentflow/internal/workflow"
)

// Status classifies the outcome of one Process call. Only store failures are
// Go errors; everything else is a status.
type Status string

const (
	StatusOK                     Status = "ok"
	StatusIntentNotFound         Status = "intent_not_found"
	StatusIntentBelowThreshold   Status = "intent_below_threshold"
	StatusNoWorkflowMapping      Status = "no_workflow_mapping"
	StatusWorkflowBelowThreshold Status = "workflow_below_threshold"
	StatusNeedsClarification     Status = "needs_clarification"
	StatusRateLimited            Status = "rate_limited"
)

// Result is the full outcome of one interpretation pass.
type Result struct {
	Status            Status                    `json:"status"`
	Intents           []models.Intent           `json:"intents,omitempty"`
	Entities          []models.Entity           `json:"entities,omitempty"`
	ResolvedText      string                    `json:"resolved_text"`
	References        []models.Reference        `json:"references,omitempty"`
	Workflow          *models.GeneratedWorkflow `json:"workflow,omitempty"`
	Actions           []models.GeneratedAction  `json:"actions,omitempty"`
	MissingParameters []string                  `json:"missing_parameters,omitempty"`
	Session           *models.ConversationState `json:"session,omitempty"`
}

// Config tunes the pipeline's thresholds and rate limiting.
type Config struct {
	MaxIntents        int `yaml:"max_intents"`
	IntentThreshold   int `yaml:"intent_threshold"`   // confidence floor, 0-100
	WorkflowThreshold int `yaml:"workflow_threshold"` // confidence floor, 0-100

	// Minimum extraction confidence an entity needs to reach the generator.
	EntityThreshold int `yaml:"entity_threshold"`

	RequestsPerMinute int `yaml:"requests_per_minute"` // per session, 0 disables
	Burst             int `yaml:"burst"`
}

// DefaultConfig returns pipeline settings suitable for interactive use.
func DefaultConfig() *Config {
	return &Config{
		MaxIntents:        3,
		IntentThreshold:   40,
		WorkflowThreshold: 30,
		EntityThreshold:   50,
		RequestsPerMinute: 60,
		Burst:             10,
	}
}

// Stats counts pipeline outcomes.
type Stats struct {
	Processed   int64
	ByStatus    map[Status]int64
	LastLatency time.Duration
}

// Pipeline wires the interpretation stages together.
type Pipeline struct {
	config     *Config
	catalog    *catalog.Catalog
	recognizer *nlu.Recognizer
	extractor  *nlu.Extractor
	resolver   *nlu.Resolver
	generator  *workflow.Generator
	engine     *conversation.Engine
	graph      *store.DgraphEntityGraph // optional, may be nil
	logger     *zap.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	statsMu sync.Mutex
	stats   Stats
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger installs a logger; the default is a no-op logger.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithEntityGraph mirrors each turn's entities into a Dgraph entity graph.
func WithEntityGraph(graph *store.DgraphEntityGraph) PipelineOption {
	return func(p *Pipeline) { p.graph = graph }
}

// New creates a pipeline over a catalog and a conversation engine.
func New(config *Config, cat *catalog.Catalog, engine *conversation.Engine, opts ...PipelineOption) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}

	extractor := nlu.NewExtractor(cat)
	p := &Pipeline{
		config:     config,
		catalog:    cat,
		recognizer: nlu.NewRecognizer(cat),
		extractor:  extractor,
		resolver:   nlu.NewResolver(extractor),
		generator:  workflow.NewGenerator(cat),
		engine:     engine,
		logger:     zap.NewNop(),
		limiters:   make(map[string]*rate.Limiter),
		stats:      Stats{ByStatus: make(map[Status]int64)},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one interpretation pass for a session. A missing session is
// recoverable: a fresh one is created under the given ID's user. Store
// failures are the only errors returned.
func (p *Pipeline) Process(ctx context.Context, input, sessionID string) (*Result, error) {
	started := time.Now()

	session, err := p.loadOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !p.allow(session.ID) {
		return p.finish(started, &Result{
			Status:       StatusRateLimited,
			ResolvedText: input,
			Session:      session,
		}), nil
	}

	// Stage 1: resolve references against session context, then work on the
	// rewritten text.
	resolution := p.resolver.Resolve(input, session.Context, session.Turns)

	// Stage 2: recognize intent on the resolved text.
	intents := p.recognizer.Recognize(resolution.Text, p.config.MaxIntents)
	if len(intents) == 0 {
		return p.record(ctx, started, session, input, nil, &Result{
			Status:       StatusIntentNotFound,
			ResolvedText: resolution.Text,
			References:   resolution.References,
			Entities:     resolution.Entities,
			Session:      session,
		})
	}
	if intents[0].Confidence < p.config.IntentThreshold {
		return p.record(ctx, started, session, input, &intents[0], &Result{
			Status:       StatusIntentBelowThreshold,
			Intents:      intents,
			ResolvedText: resolution.Text,
			References:   resolution.References,
			Entities:     resolution.Entities,
			Session:      session,
		})
	}

	// Stage 3: filter entities by confidence before generation.
	entities := filterByConfidence(resolution.Entities, p.config.EntityThreshold)

	// Stage 4: generate the workflow.
	wf, mapped := p.generator.Generate(intents[0], entities, &session.Context)
	if !mapped {
		return p.record(ctx, started, session, input, &intents[0], &Result{
			Status:       StatusNoWorkflowMapping,
			Intents:      intents,
			Entities:     entities,
			ResolvedText: resolution.Text,
			References:   resolution.References,
			Session:      session,
		})
	}

	result := &Result{
		Intents:      intents,
		Entities:     entities,
		ResolvedText: resolution.Text,
		References:   resolution.References,
		Workflow:     wf,
		Session:      session,
	}

	switch {
	case !wf.Ready:
		result.Status = StatusNeedsClarification
		result.MissingParameters = wf.Missing
	case wf.Confidence < p.config.WorkflowThreshold:
		result.Status = StatusWorkflowBelowThreshold
	default:
		result.Status = StatusOK
		result.Actions = workflow.Actions(wf)
	}

	return p.record(ctx, started, session, input, &intents[0], result)
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	snapshot := Stats{
		Processed:   p.stats.Processed,
		ByStatus:    make(map[Status]int64, len(p.stats.ByStatus)),
		LastLatency: p.stats.LastLatency,
	}
	for k, v := range p.stats.ByStatus {
		snapshot.ByStatus[k] = v
	}
	return snapshot
}

// loadOrCreateSession treats a missing session as a request for a new one.
func (p *Pipeline) loadOrCreateSession(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	if sessionID == "" {
		return p.engine.CreateSession(ctx, "")
	}

	session, err := p.engine.GetSession(ctx, sessionID)
	if err == store.ErrNotFound {
		return p.engine.CreateSession(ctx, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// record appends the turn, folds entities into context, updates counters and
// mirrors entities into the graph when configured.
func (p *Pipeline) record(ctx context.Context, started time.Time, session *models.ConversationState, input string, intent *models.Intent, result *Result) (*Result, error) {
	turn := &models.ConversationTurn{
		Input:     input,
		Entities:  result.Entities,
		Actions:   result.Actions,
		Timestamp: time.Now(),
		Duration:  time.Since(started),
	}
	if intent != nil {
		turn.Intent = *intent
	}

	updated, err := p.engine.AddTurn(ctx, session.ID, turn)
	if err != nil {
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}
	result.Session = updated

	if result.Workflow != nil && result.Workflow.Ready {
		updated, err = p.engine.UpdateContext(ctx, session.ID, models.ConversationContext{
			ActiveWorkflow: result.Workflow.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update context: %w", err)
		}
		result.Session = updated
	}

	if p.graph != nil && len(result.Entities) > 0 {
		if err := p.graph.RecordEntities(ctx, session.ID, result.Entities); err != nil {
			p.logger.Warn("entity graph update failed",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	p.logger.Debug("processed input",
		zap.String("session_id", session.ID),
		zap.String("status", string(result.Status)),
		zap.Int("entities", len(result.Entities)),
		zap.Duration("latency", time.Since(started)))

	return p.finish(started, result), nil
}

func (p *Pipeline) finish(started time.Time, result *Result) *Result {
	p.statsMu.Lock()
	p.stats.Processed++
	p.stats.ByStatus[result.Status]++
	p.stats.LastLatency = time.Since(started)
	p.statsMu.Unlock()
	return result
}

// allow consults the session's token bucket. Over-rate callers are rejected,
// not queued.
func (p *Pipeline) allow(sessionID string) bool {
	if p.config.RequestsPerMinute <= 0 {
		return true
	}

	p.limitersMu.Lock()
	limiter, ok := p.limiters[sessionID]
	if !ok {
		rps := float64(p.config.RequestsPerMinute) / 60.0
		burst := p.config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
		p.limiters[sessionID] = limiter
	}
	p.limitersMu.Unlock()

	return limiter.Allow()
}

func filterByConfidence(entities []models.Entity, floor int) []models.Entity {
	if floor <= 0 {
		return entities
	}
	var out []models.Entity
	for _, e := range entities {
		if e.Confidence >= floor {
			out = append(out, e)
		}
	}
	return out
}
