package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/prompts"
)

// ErrSynthesis marks a plan synthesis failure: the synthesizer's output
// could not be turned into a plan document.
var ErrSynthesis = errors.New("计划数据格式错误")

// Planner merges the specialist outputs into the final itinerary.
type Planner struct {
	model  Generator
	prompt string
}

// NewPlanner creates the plan synthesizer.
func NewPlanner(model Generator, p *prompts.Set) *Planner {
	return &Planner{model: model, prompt: p.Plan}
}

// planInput is the synthesis payload handed to the model.
type planInput struct {
	Destination string         `json:"destination"`
	Days        int            `json:"days"`
	BudgetLevel string         `json:"budget_level"`
	Preferences []string       `json:"preferences"`
	StartDate   string         `json:"start_date"`
	AgentsData  map[string]any `json:"agents_data"`
}

// Synthesize runs the plan agent over the trip parameters and collected
// specialist outputs. The raw answer may arrive fenced or double-encoded;
// both are unwrapped. Anything that does not end up as a JSON object is a
// synthesis failure.
func (p *Planner) Synthesize(ctx context.Context, req models.TripRequest, outputs map[string]any) (models.PlanDocument, error) {
	input, err := json.Marshal(planInput{
		Destination: req.Destination,
		Days:        req.Days,
		BudgetLevel: req.BudgetLevel,
		Preferences: req.Preferences,
		StartDate:   req.StartDate,
		AgentsData:  outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal plan input: %w", err)
	}

	raw, err := p.model.GenerateWithSystem(ctx, p.prompt, string(input))
	if err != nil {
		return nil, fmt.Errorf("行程生成失败: %w", err)
	}

	return parsePlan(raw)
}

// parsePlan unwraps fences and double encoding, then requires a JSON object.
func parsePlan(raw string) (models.PlanDocument, error) {
	cleaned := models.CleanFences(raw)

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		// Recovery pass for near-JSON output
		if m := models.Normalize(cleaned); len(m) > 0 {
			return models.PlanDocument(m), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	// LLMs sometimes return the plan JSON serialized once more as a string
	if s, ok := value.(string); ok {
		if err := json.Unmarshal([]byte(s), &value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
	}

	doc, ok := value.(map[string]any)
	if !ok {
		return nil, ErrSynthesis
	}
	return models.PlanDocument(doc), nil
}
