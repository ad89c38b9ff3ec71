package models

import "time"

// IntentCategory groups intent patterns by the kind of user goal they express.
type IntentCategory string

const (
	CategoryCommand       IntentCategory = "command"
	CategoryQuery         IntentCategory = "query"
	CategoryConfiguration IntentCategory = "configuration"
	CategoryStatus        IntentCategory = "status"
	CategoryConversation  IntentCategory = "conversation"
)

// IntentPattern is a catalog rule used to recognize an intent from text.
// Patterns are immutable once loaded; mutations go through the catalog.
type IntentPattern struct {
	ID               string         `json:"id"`
	Intent           string         `json:"intent"`
	Category         IntentCategory `json:"category"`
	Match            string         `json:"match"`             // regex source, compiled at catalog load
	RequiredKeywords []string       `json:"required_keywords"` // all must be present
	OptionalKeywords []string       `json:"optional_keywords"` // each adds a small boost
	NegativeKeywords []string       `json:"negative_keywords"` // any presence disqualifies
	BaseConfidence   int            `json:"base_confidence"`   // 0-100
	Priority         int            `json:"priority"`          // score multiplier (1 + p*0.1)
	Examples         []string       `json:"examples,omitempty"`
}

// Intent is a recognized user goal with a heuristic confidence score.
type Intent struct {
	Name            string         `json:"name"`
	Confidence      int            `json:"confidence"` // 0-100
	Category        IntentCategory `json:"category"`
	MatchedKeywords []string       `json:"matched_keywords,omitempty"`
	SubIntent       string         `json:"sub_intent,omitempty"`
}

// EntityType is the closed set of entity kinds the extractor understands.
type EntityType string

const (
	EntityAgent       EntityType = "agent"
	EntityWorkflow    EntityType = "workflow"
	EntityCommand     EntityType = "command"
	EntityFile        EntityType = "file"
	EntityDirectory   EntityType = "directory"
	EntityEnvironment EntityType = "environment"
	EntityService     EntityType = "service"
	EntityResource    EntityType = "resource"
	EntityDate        EntityType = "date"
	EntityNumber      EntityType = "number"
	EntityIdentifier  EntityType = "identifier"
	EntityParameter   EntityType = "parameter"
	EntityModel       EntityType = "model"
	EntityTechnology  EntityType = "technology"
)

// EntityDefinition describes how one entity type is extracted and normalized.
type EntityDefinition struct {
	Type        EntityType `json:"type"`
	Patterns    []string   `json:"patterns"` // regex sources, compiled at catalog load
	KnownValues []string   `json:"known_values,omitempty"`
	Normalizer  string     `json:"normalizer,omitempty"`
	Validator   string     `json:"validator,omitempty"`
}

// Entity is a typed, normalized span of input text.
// Start/End are byte offsets forming a half-open [start,end) interval; within
// one extraction pass no two accepted entities overlap.
type Entity struct {
	Type       EntityType        `json:"type"`
	Value      string            `json:"value"`
	Normalized string            `json:"normalized"`
	Confidence int               `json:"confidence"` // 0-100
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NormalizedOrValue returns the normalized form, falling back to the raw span.
func (e Entity) NormalizedOrValue() string {
	if e.Normalized != "" {
		return e.Normalized
	}
	return e.Value
}

// ReferenceKind classifies a detected anaphoric reference.
type ReferenceKind string

const (
	ReferencePronoun       ReferenceKind = "pronoun"
	ReferenceDemonstrative ReferenceKind = "demonstrative"
	ReferenceDefinite      ReferenceKind = "definite"
	ReferencePossessive    ReferenceKind = "possessive"
)

// Reference is a pronoun/demonstrative/definite phrase found in input text,
// optionally resolved to a previously mentioned entity.
type Reference struct {
	Text       string        `json:"text"`
	Kind       ReferenceKind `json:"kind"`
	Position   int           `json:"position"`
	Resolved   *Entity       `json:"resolved,omitempty"`
	Confidence int           `json:"confidence"` // 0-100, 0 when unresolved
}

// WorkflowMapping is the catalog rule translating an intent into a workflow.
type WorkflowMapping struct {
	Intent           string                `json:"intent"`
	Workflow         string                `json:"workflow"`
	RequiredEntities []EntityType          `json:"required_entities"`
	OptionalEntities []EntityType          `json:"optional_entities"`
	ParameterNames   map[EntityType]string `json:"parameter_names"` // entity type -> parameter name
	Confirmation     bool                  `json:"confirmation"`
	Defaults         map[string]string     `json:"defaults,omitempty"` // parameter name -> default value
}

// WorkflowParameter is a single resolved workflow parameter.
type WorkflowParameter struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Source     *Entity `json:"source,omitempty"`
	Inferred   bool    `json:"inferred"`
	Confidence int     `json:"confidence"` // 0-100
}

// GeneratedWorkflow is a parameterized workflow derived from one intent.
// Ready is true iff Missing is empty.
type GeneratedWorkflow struct {
	Name       string              `json:"name"`
	Parameters []WorkflowParameter `json:"parameters"`
	Confidence int                 `json:"confidence"` // 0-100
	Missing    []string            `json:"missing"` // unmapped required parameter names
	Ready      bool                `json:"ready"`
	Intent     string              `json:"intent"`
}

// GeneratedAction is one executable step expanded from a workflow.
type GeneratedAction struct {
	Type         string            `json:"type"`
	Description  string            `json:"description"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	Order        int               `json:"order"`
	Confirmation bool              `json:"confirmation"`
}

// ConversationContext carries cross-turn state used for inference and
// reference resolution. RecentEntities is insertion-ordered and capped.
type ConversationContext struct {
	WorkingDirectory string            `json:"working_directory,omitempty"`
	ActiveWorkflow   string            `json:"active_workflow,omitempty"`
	RecentEntities   []Entity          `json:"recent_entities,omitempty"`
	Preferences      map[string]string `json:"preferences,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// ConversationTurn is one request/response exchange within a session.
type ConversationTurn struct {
	ID        string            `json:"id"`
	Input     string            `json:"input"`
	Intent    Intent            `json:"intent"`
	Entities  []Entity          `json:"entities,omitempty"`
	Response  string            `json:"response,omitempty"`
	Actions   []GeneratedAction `json:"actions,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration,omitempty"`
}

// SessionStatus is the lifecycle state of a conversation session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionWaiting   SessionStatus = "waiting"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// ConversationState is one multi-turn session. Terminated sessions are never
// resurrected.
type ConversationState struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id,omitempty"`
	Entities  []Entity            `json:"entities,omitempty"` // accumulator across turns
	Slots     map[string]string   `json:"slots,omitempty"`
	Turns     []ConversationTurn  `json:"turns"`
	Context   ConversationContext `json:"context"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Status    SessionStatus       `json:"status"`
}

// SlotValidation constrains acceptable values for a slot.
type SlotValidation struct {
	Pattern       string   `json:"pattern,omitempty"` // regex the value must match
	MinLength     int      `json:"min_length,omitempty"`
	MaxLength     int      `json:"max_length,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// Slot is a named, typed value a workflow collects across turns.
type Slot struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Required   bool            `json:"required"`
	Value      string          `json:"value,omitempty"`
	Filled     bool            `json:"filled"`
	Prompt     string          `json:"prompt,omitempty"`
	Validation *SlotValidation `json:"validation,omitempty"`
}

// SlotFillingState tracks multi-turn collection of workflow slot values.
// Complete is true iff every required slot is filled.
type SlotFillingState struct {
	Workflow    string `json:"workflow"`
	Slots       []Slot `json:"slots"`
	CurrentSlot string `json:"current_slot,omitempty"`
	Attempts    int    `json:"attempts"`
	Complete    bool   `json:"complete"`
	NextPrompt  string `json:"next_prompt,omitempty"`
}
