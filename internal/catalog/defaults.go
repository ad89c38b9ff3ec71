package catalog

import "github.com/intentflow/intentflow/internal/models"

// Built-in tables. A fresh deployment seeds its catalog store from these;
// afterwards the store is the source of truth and these are only a fallback.
var (
	defaultIntentPatterns = []models.IntentPattern{
		{
			ID:               "deploy-application",
			Intent:           "deploy_application",
			Category:         models.CategoryCommand,
			Match:            `\b(?:deploy|release|ship)`,
			RequiredKeywords: []string{"deploy"},
			OptionalKeywords: []string{"production", "staging", "service", "application"},
			NegativeKeywords: []string{"rollback"},
			BaseConfidence:   70,
			Priority:         2,
			Examples:         []string{"Deploy to production", "Deploy api-service to staging"},
		},
		{
			ID:               "rollback-deployment",
			Intent:           "rollback_deployment",
			Category:         models.CategoryCommand,
			Match:            `\brollback|roll back`,
			RequiredKeywords: []string{"rollback"},
			OptionalKeywords: []string{"deployment", "production", "previous"},
			BaseConfidence:   70,
			Priority:         2,
			Examples:         []string{"Rollback the deployment"},
		},
		{
			ID:               "build-project",
			Intent:           "build_project",
			Category:         models.CategoryCommand,
			Match:            `\b(?:build|compile)`,
			RequiredKeywords: []string{"build"},
			OptionalKeywords: []string{"project", "image", "binary"},
			BaseConfidence:   70,
			Priority:         1,
			Examples:         []string{"Build the project"},
		},
		{
			ID:               "run-tests",
			Intent:           "run_tests",
			Category:         models.CategoryCommand,
			Match:            `\b(?:test|verify)`,
			RequiredKeywords: []string{"test"},
			OptionalKeywords: []string{"suite", "coverage", "unit", "integration"},
			BaseConfidence:   70,
			Priority:         1,
			Examples:         []string{"Run the tests", "Now test it"},
		},
		{
			ID:               "review-code",
			Intent:           "review_code",
			Category:         models.CategoryCommand,
			Match:            `\breview`,
			RequiredKeywords: []string{"review"},
			OptionalKeywords: []string{"code", "pull", "request", "changes"},
			BaseConfidence:   70,
			Priority:         1,
			Examples:         []string{"Review main.go"},
		},
		{
			ID:               "create-resource",
			Intent:           "create_resource",
			Category:         models.CategoryCommand,
			Match:            `\b(?:create|provision)`,
			RequiredKeywords: []string{"create"},
			OptionalKeywords: []string{"new", "database", "cluster"},
			BaseConfidence:   65,
			Priority:         1,
			Examples:         []string{"Create a database in staging"},
		},
		{
			ID:               "update-resource",
			Intent:           "update_resource",
			Category:         models.CategoryCommand,
			Match:            `\bupdate|upgrade`,
			RequiredKeywords: []string{"update"},
			OptionalKeywords: []string{"config", "version"},
			BaseConfidence:   65,
			Priority:         1,
			Examples:         []string{"Update the cache settings"},
		},
		{
			ID:               "delete-resource",
			Intent:           "delete_resource",
			Category:         models.CategoryCommand,
			Match:            `\b(?:delete|remove|destroy)`,
			RequiredKeywords: []string{"delete"},
			OptionalKeywords: []string{"old", "stale"},
			NegativeKeywords: []string{"create"},
			BaseConfidence:   65,
			Priority:         1,
			Examples:         []string{"Delete the staging database"},
		},
		{
			ID:               "configure-environment",
			Intent:           "configure_environment",
			Category:         models.CategoryConfiguration,
			Match:            `\b(?:configure|config|set)\b`,
			RequiredKeywords: []string{"configure"},
			OptionalKeywords: []string{"environment", "setting", "default"},
			BaseConfidence:   65,
			Priority:         1,
			Examples:         []string{"Configure the default environment"},
		},
		{
			ID:               "check-status",
			Intent:           "check_status",
			Category:         models.CategoryStatus,
			Match:            `\b(?:status|health|running)`,
			RequiredKeywords: []string{"status"},
			OptionalKeywords: []string{"service", "deployment", "pipeline"},
			BaseConfidence:   65,
			Priority:         1,
			Examples:         []string{"What's the status of api-service?"},
		},
		{
			ID:               "list-workflows",
			Intent:           "list_workflows",
			Category:         models.CategoryQuery,
			Match:            `\b(?:list|show|what)`,
			RequiredKeywords: []string{"list"},
			OptionalKeywords: []string{"workflows", "sessions", "available"},
			BaseConfidence:   60,
			Priority:         1,
			Examples:         []string{"List available workflows"},
		},
		{
			ID:             "greeting",
			Intent:         "greeting",
			Category:       models.CategoryConversation,
			Match:          `^(?:hi|hello|hey)\b`,
			BaseConfidence: 60,
			Priority:       0,
			Examples:       []string{"Hello"},
		},
		{
			ID:             "farewell",
			Intent:         "farewell",
			Category:       models.CategoryConversation,
			Match:          `^(?:bye|goodbye|thanks|thank you)\b`,
			BaseConfidence: 60,
			Priority:       0,
			Examples:       []string{"Thanks, bye"},
		},
	}

	// Definition order is extraction order. The overlap policy is
	// first-found-wins, so earlier types shadow later ones on the same span
	// (file before identifier, date before number).
	defaultEntityDefinitions = []models.EntityDefinition{
		{
			Type:        models.EntityEnvironment,
			Patterns:    []string{`\b(?:production|prod|staging|stg|development|dev)\b`},
			KnownValues: []string{"development", "staging", "production"},
			Normalizer:  "environment",
			Validator:   "environment",
		},
		{
			Type: models.EntityService,
			Patterns: []string{
				`\b[a-z][a-z0-9]*(?:-[a-z0-9]+)*-(?:service|api|app|worker)\b`,
				`\b(?:api|auth|web|payment|user)-[a-z0-9]+\b`,
			},
			KnownValues: []string{"api-service", "auth-service", "web-app", "payment-service"},
			Normalizer:  "slug",
		},
		{
			Type:        models.EntityWorkflow,
			Patterns:    []string{`\b[a-z][a-z0-9-]*-workflow\b`},
			KnownValues: []string{"deploy-workflow", "build-workflow", "test-workflow", "review-workflow"},
			Normalizer:  "slug",
		},
		{
			Type:       models.EntityAgent,
			Patterns:   []string{`\b[a-z][a-z0-9-]*-agent\b`, `\bagent-[a-z0-9-]+\b`},
			Normalizer: "slug",
		},
		{
			Type:       models.EntityCommand,
			Patterns:   []string{`\b(?:kubectl|docker|git|npm|make|terraform|helm)(?:\s+[a-z][a-z-]*)?\b`},
			Normalizer: "slug",
		},
		{
			Type:       models.EntityFile,
			Patterns:   []string{`\b[\w./-]*\w\.(?:go|ts|tsx|js|jsx|json|ya?ml|md|txt|py|sql|sh|toml|env)\b`},
			Normalizer: "path",
			Validator:  "path",
		},
		{
			Type: models.EntityDirectory,
			Patterns: []string{
				`\b(?:src|cmd|internal|pkg|docs|scripts)/[\w/-]*\b`,
				`~?/[\w.-]+(?:/[\w.-]+)+/?`,
			},
			Normalizer: "path",
			Validator:  "path",
		},
		{
			Type:        models.EntityResource,
			Patterns:    []string{`\b(?:database|cache|queue|bucket|cluster|repository)\b`},
			KnownValues: []string{"database", "cache", "queue", "bucket", "cluster", "repository"},
			Validator:   "known",
		},
		{
			Type:        models.EntityTechnology,
			Patterns:    []string{`\b(?:docker|kubernetes|redis|postgres|golang|typescript|python|react)\b`},
			KnownValues: []string{"docker", "kubernetes", "redis", "postgres", "golang", "typescript", "python", "react"},
			Validator:   "known",
		},
		{
			Type:       models.EntityModel,
			Patterns:   []string{`\b(?:gpt|claude|gemini|llama|qwen)[\w.-]*\b`},
			Normalizer: "model",
		},
		{
			Type: models.EntityDate,
			Patterns: []string{
				`\b(?:today|tomorrow|yesterday)\b`,
				`\bin \d+ (?:day|hour|minute|week)s?\b`,
				`\b\d{4}-\d{2}-\d{2}\b`,
			},
			Normalizer: "date",
		},
		{
			Type:       models.EntityIdentifier,
			Patterns:   []string{`\b[A-Z]{2,}-\d+\b`, `\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`, `\b[A-Za-z][\w-]*\.[A-Za-z][\w-]*\b`},
			Normalizer: "lowercase",
		},
		{
			Type:       models.EntityNumber,
			Patterns:   []string{`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b`, `\b\d+(?:\.\d+)?\b`},
			Normalizer: "number",
			Validator:  "number",
		},
		{
			Type:       models.EntityParameter,
			Patterns:   []string{`--[a-z][\w-]*(?:=\S+)?`},
			Normalizer: "lowercase",
		},
	}

	defaultWorkflowMappings = []models.WorkflowMapping{
		{
			Intent:           "deploy_application",
			Workflow:         "deploy-workflow",
			RequiredEntities: []models.EntityType{models.EntityEnvironment},
			OptionalEntities: []models.EntityType{models.EntityService, models.EntityWorkflow, models.EntityTechnology},
			ParameterNames: map[models.EntityType]string{
				models.EntityEnvironment: "environment",
				models.EntityService:     "service",
				models.EntityWorkflow:    "workflow",
				models.EntityTechnology:  "technology",
			},
			Confirmation: true,
		},
		{
			Intent:           "rollback_deployment",
			Workflow:         "rollback-workflow",
			RequiredEntities: []models.EntityType{models.EntityEnvironment},
			OptionalEntities: []models.EntityType{models.EntityService},
			ParameterNames: map[models.EntityType]string{
				models.EntityEnvironment: "environment",
				models.EntityService:     "service",
			},
			Confirmation: true,
		},
		{
			Intent:           "build_project",
			Workflow:         "build-workflow",
			OptionalEntities: []models.EntityType{models.EntityService, models.EntityDirectory, models.EntityFile},
			ParameterNames: map[models.EntityType]string{
				models.EntityService:   "service",
				models.EntityDirectory: "directory",
				models.EntityFile:      "file",
			},
		},
		{
			Intent:           "run_tests",
			Workflow:         "test-workflow",
			OptionalEntities: []models.EntityType{models.EntityService, models.EntityFile, models.EntityEnvironment},
			ParameterNames: map[models.EntityType]string{
				models.EntityService:     "service",
				models.EntityFile:        "file",
				models.EntityEnvironment: "environment",
			},
		},
		{
			Intent:           "review_code",
			Workflow:         "review-workflow",
			OptionalEntities: []models.EntityType{models.EntityFile, models.EntityIdentifier},
			ParameterNames: map[models.EntityType]string{
				models.EntityFile:       "file",
				models.EntityIdentifier: "reference",
			},
		},
		{
			Intent:           "create_resource",
			Workflow:         "create-workflow",
			RequiredEntities: []models.EntityType{models.EntityResource},
			OptionalEntities: []models.EntityType{models.EntityEnvironment, models.EntityTechnology},
			ParameterNames: map[models.EntityType]string{
				models.EntityResource:    "resource",
				models.EntityEnvironment: "environment",
				models.EntityTechnology:  "technology",
			},
			Confirmation: true,
		},
		{
			Intent:           "update_resource",
			Workflow:         "update-workflow",
			RequiredEntities: []models.EntityType{models.EntityResource},
			OptionalEntities: []models.EntityType{models.EntityEnvironment, models.EntityParameter},
			ParameterNames: map[models.EntityType]string{
				models.EntityResource:    "resource",
				models.EntityEnvironment: "environment",
				models.EntityParameter:   "setting",
			},
			Confirmation: true,
		},
		{
			Intent:           "delete_resource",
			Workflow:         "delete-workflow",
			RequiredEntities: []models.EntityType{models.EntityResource},
			OptionalEntities: []models.EntityType{models.EntityEnvironment},
			ParameterNames: map[models.EntityType]string{
				models.EntityResource:    "resource",
				models.EntityEnvironment: "environment",
			},
			Confirmation: true,
		},
		{
			Intent:           "configure_environment",
			Workflow:         "configure-workflow",
			RequiredEntities: []models.EntityType{models.EntityEnvironment},
			OptionalEntities: []models.EntityType{models.EntityParameter},
			ParameterNames: map[models.EntityType]string{
				models.EntityEnvironment: "environment",
				models.EntityParameter:   "setting",
			},
			Defaults: map[string]string{"scope": "session"},
		},
		{
			Intent:           "check_status",
			Workflow:         "status-workflow",
			OptionalEntities: []models.EntityType{models.EntityService, models.EntityEnvironment},
			ParameterNames: map[models.EntityType]string{
				models.EntityService:     "service",
				models.EntityEnvironment: "environment",
			},
		},
		{
			Intent:   "list_workflows",
			Workflow: "query-workflow",
		},
	}
)

// DefaultIntentPatterns returns a copy of the built-in intent patterns.
func DefaultIntentPatterns() []models.IntentPattern {
	out := make([]models.IntentPattern, len(defaultIntentPatterns))
	for i, p := range defaultIntentPatterns {
		p.RequiredKeywords = cloneStrings(p.RequiredKeywords)
		p.OptionalKeywords = cloneStrings(p.OptionalKeywords)
		p.NegativeKeywords = cloneStrings(p.NegativeKeywords)
		p.Examples = cloneStrings(p.Examples)
		out[i] = p
	}
	return out
}

// DefaultEntityDefinitions returns a copy of the built-in entity definitions.
func DefaultEntityDefinitions() []models.EntityDefinition {
	out := make([]models.EntityDefinition, len(defaultEntityDefinitions))
	for i, d := range defaultEntityDefinitions {
		d.Patterns = cloneStrings(d.Patterns)
		d.KnownValues = cloneStrings(d.KnownValues)
		out[i] = d
	}
	return out
}

// DefaultWorkflowMappings returns a copy of the built-in workflow mappings.
func DefaultWorkflowMappings() []models.WorkflowMapping {
	out := make([]models.WorkflowMapping, len(defaultWorkflowMappings))
	for i, m := range defaultWorkflowMappings {
		m.RequiredEntities = cloneEntityTypes(m.RequiredEntities)
		m.OptionalEntities = cloneEntityTypes(m.OptionalEntities)
		m.ParameterNames = cloneParamNames(m.ParameterNames)
		m.Defaults = cloneStringMap(m.Defaults)
		out[i] = m
	}
	return out
}

func cloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

func cloneEntityTypes(src []models.EntityType) []models.EntityType {
	if src == nil {
		return nil
	}
	dst := make([]models.EntityType, len(src))
	copy(dst, src)
	return dst
}

func cloneParamNames(src map[models.EntityType]string) map[models.EntityType]string {
	if src == nil {
		return nil
	}
	dst := make(map[models.EntityType]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
