package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/prompts"
)

// Decomposer splits a trip request into typed specialist sub-tasks.
type Decomposer struct {
	model  Generator
	prompt string
}

// NewDecomposer creates a task decomposer.
func NewDecomposer(model Generator, p *prompts.Set) *Decomposer {
	return &Decomposer{model: model, prompt: p.Decompose}
}

// Decompose asks the model for a task list. A model transport error is
// returned to the caller; malformed output degrades to an empty task list.
func (d *Decomposer) Decompose(ctx context.Context, userMessage string) ([]models.SubTask, error) {
	raw, err := d.model.GenerateWithSystem(ctx, d.prompt, userMessage)
	if err != nil {
		return nil, fmt.Errorf("任务分析失败: %w", err)
	}

	normalized := models.Normalize(raw)
	rawTasks, ok := normalized["tasks"]
	if !ok {
		slog.Warn("decomposition produced no task list", "output_len", len(raw))
		return nil, nil
	}

	data, err := json.Marshal(rawTasks)
	if err != nil {
		return nil, nil
	}
	var tasks []models.SubTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		slog.Warn("decomposition task list malformed", "error", err)
		return nil, nil
	}

	slog.Info("request decomposed", "tasks", len(tasks))
	return tasks, nil
}
