package workflow

import (
	"github.com/intentflow/intentflow/internal/models"
)

// actionStep is one template entry in the per-workflow action tables.
type actionStep struct {
	action       string
	description  string
	confirmation bool
}

// actionTemplates maps workflow names to their ordered step templates. A
// workflow without an entry gets the generic single-step fallback.
var actionTemplates = map[string][]actionStep{
	"deploy-workflow": {
		{action: "build", description: "Build the deployment artifact"},
		{action: "test", description: "Run the test suite against the artifact"},
		{action: "deploy", description: "Deploy the artifact to the target environment", confirmation: true},
		{action: "verify", description: "Verify the deployment is healthy"},
	},
	"rollback-workflow": {
		{action: "rollback", description: "Roll back to the previous deployed version", confirmation: true},
		{action: "verify", description: "Verify the rollback restored service health"},
	},
	"build-workflow": {
		{action: "build", description: "Build the project"},
	},
	"test-workflow": {
		{action: "test", description: "Run the test suite"},
	},
	"review-workflow": {
		{action: "review", description: "Review the target code"},
	},
	"create-workflow": {
		{action: "create", description: "Create the resource", confirmation: true},
	},
	"update-workflow": {
		{action: "update", description: "Update the resource", confirmation: true},
	},
	"delete-workflow": {
		{action: "delete", description: "Delete the resource", confirmation: true},
	},
	"configure-workflow": {
		{action: "configure", description: "Apply the configuration change"},
	},
	"status-workflow": {
		{action: "status", description: "Report current status"},
	},
}

// Actions expands a generated workflow into its ordered action list. Every
// action carries the full parameter set; order is 1-based. Workflows that are
// not ready still expand, so callers can preview what would run.
func Actions(wf *models.GeneratedWorkflow) []models.GeneratedAction {
	if wf == nil {
		return nil
	}

	params := make(map[string]string, len(wf.Parameters))
	for _, p := range wf.Parameters {
		params[p.Name] = p.Value
	}

	steps, ok := actionTemplates[wf.Name]
	if !ok {
		steps = []actionStep{
			{action: "execute_workflow", description: "Execute workflow " + wf.Name, confirmation: true},
		}
	}

	actions := make([]models.GeneratedAction, len(steps))
	for i, s := range steps {
		actions[i] = models.GeneratedAction{
			Type:         s.action,
			Description:  s.description,
			Parameters:   cloneParams(params),
			Order:        i + 1,
			Confirmation: s.confirmation,
		}
	}
	return actions
}

func cloneParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
