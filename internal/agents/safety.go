package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/prompts"
)

// Decision is the safety gate's verdict on a request.
type Decision struct {
	Allowed  bool
	Category string
	Raw      any // normalized classifier output, kept for the rejection response
}

// Gate classifies requests as travel-related before any planning work runs.
type Gate struct {
	model  Generator
	prompt string
}

// NewGate creates a safety gate with the given classifier model.
func NewGate(model Generator, p *prompts.Set) *Gate {
	return &Gate{model: model, prompt: p.Safety}
}

// Check runs the classifier. The gate fails open: when the classifier call
// itself errors the request is allowed and the error is only logged, so an
// unavailable classifier never blocks planning.
func (g *Gate) Check(ctx context.Context, userMessage string) Decision {
	raw, err := g.model.GenerateWithSystem(ctx, prompts.WithQuestion(g.prompt, userMessage), userMessage)
	if err != nil {
		slog.Warn("safety check failed, allowing request", "error", err)
		return Decision{Allowed: true}
	}
	return evaluate(raw)
}

// evaluate applies the decision rules to raw classifier output. Structured
// output is preferred; free-text output falls back to keyword matching.
func evaluate(raw string) Decision {
	normalized := models.Normalize(raw)
	if len(normalized) > 0 {
		allowed, _ := normalized["is_allowed"].(bool)
		category, _ := normalized["category"].(string)
		lower := strings.ToLower(category)
		if allowed || containsTravelKeyword(lower) {
			return Decision{Allowed: true, Category: category, Raw: normalized}
		}
		return Decision{Allowed: false, Category: category, Raw: normalized}
	}

	lower := strings.ToLower(raw)
	if containsTravelKeyword(lower) || strings.Contains(lower, `"is_allowed": true`) {
		return Decision{Allowed: true, Raw: raw}
	}
	return Decision{Allowed: false, Raw: raw}
}

func containsTravelKeyword(s string) bool {
	return strings.Contains(s, "旅游") || strings.Contains(s, "旅行") || strings.Contains(s, "travel")
}
