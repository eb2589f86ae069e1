package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/zhenwang/tripflow/internal/llm"
	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/prompts"
	"github.com/zhenwang/tripflow/internal/tools"
)

// Team runs the per-domain specialist agents.
type Team struct {
	model         ToolCaller
	prompts       *prompts.Set
	registry      *tools.Registry
	maxIterations int
	now           func() time.Time
}

// NewTeam creates the specialist team.
func NewTeam(model ToolCaller, p *prompts.Set, registry *tools.Registry, maxIterations int) *Team {
	return &Team{
		model:         model,
		prompts:       p,
		registry:      registry,
		maxIterations: maxIterations,
		now:           time.Now,
	}
}

// ResolveBudget runs the budget specialist and normalizes its output.
// The normalized form (when parseable) is what downstream specialists see.
func (t *Team) ResolveBudget(ctx context.Context, task models.SubTask) (result any, budgetContext string) {
	raw, err := t.model.GenerateWithSystem(ctx, prompts.WithQuestion(t.prompts.Budget, task.Description), task.Description)
	if err != nil {
		slog.Warn("budget specialist failed", "error", err)
		return nil, ""
	}

	normalized := models.Normalize(raw)
	if len(normalized) == 0 {
		return raw, raw
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return raw, raw
	}
	return normalized, string(data)
}

// Run dispatches one non-budget task to its specialist. The budget context,
// when present, is appended to the task description so every specialist
// plans within the same cost envelope. Failures and unknown kinds return a
// nil result; they never abort sibling tasks.
func (t *Team) Run(ctx context.Context, task models.SubTask, budgetContext string) (key string, result any) {
	kind := task.Kind()
	description := task.Description
	if budgetContext != "" {
		description += fmt.Sprintf("，预算信息：%s", budgetContext)
	}

	var (
		raw string
		err error
	)
	switch kind {
	case models.TaskAttraction:
		raw, err = t.runToolAgent(ctx, t.prompts.Attraction, description, t.registry.SearchTools())
	case models.TaskTraffic:
		raw, err = t.runToolAgent(ctx, t.prompts.Traffic, description, t.registry.TrafficTools())
	case models.TaskDining:
		raw, err = t.runToolAgent(ctx, t.prompts.Dining, description, t.registry.SearchTools())
	default:
		slog.Warn("unhandled task type", "type", task.Type)
		return task.Type, nil
	}
	if err != nil {
		slog.Warn("specialist failed", "kind", kind, "error", err)
		return kind.OutputKey(), nil
	}
	return kind.OutputKey(), raw
}

func (t *Team) runToolAgent(ctx context.Context, prompt, userMessage string, toolSet []llms.Tool) (string, error) {
	system := prompts.WithTime(prompt, t.now().Format("2006-01-02 15:04:05"))
	return t.model.RunWithTools(ctx, system, userMessage, toolSet, t.registry, t.maxIterations)
}

var _ llm.ToolExecutor = (*tools.Registry)(nil)
