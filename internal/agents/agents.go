// Package agents implements the planning agents: the safety gate, the task
// decomposer, the per-domain specialists and the plan synthesizer.
package agents

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/zhenwang/tripflow/internal/llm"
)

// Generator is the plain chat surface the agents need.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ToolCaller extends Generator with the bounded agent tool loop.
type ToolCaller interface {
	Generator
	RunWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []llms.Tool, exec llm.ToolExecutor, maxIterations int) (string, error)
}
