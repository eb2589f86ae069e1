package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
)

// DefaultMaxToolIterations bounds the tool loop when no override is configured.
const DefaultMaxToolIterations = 6

// ToolExecutor runs a named tool with its JSON-encoded arguments and
// returns the result fed back to the model.
type ToolExecutor interface {
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// RunWithTools drives a bounded agent loop: the model may request tool calls,
// their results are appended to the conversation, and the loop repeats until
// the model answers with plain text. When the iteration cap is hit the last
// text content is returned as the final answer.
func (m *Model) RunWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []llms.Tool, exec ToolExecutor, maxIterations int) (string, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxToolIterations
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	lastContent := ""
	for i := 0; i < maxIterations; i++ {
		response, err := m.llm.GenerateContent(ctx, messages, llms.WithTools(tools))
		if err != nil {
			return "", fmt.Errorf("generate (iteration %d): %w", i+1, wrapFatalError(err))
		}
		if len(response.Choices) == 0 {
			return "", fmt.Errorf("no response choices")
		}

		choice := response.Choices[0]
		if choice.Content != "" {
			lastContent = choice.Content
		}
		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}

		// Echo the assistant turn including its tool calls
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			assistant.Parts = append(assistant.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, call := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, call)
		}
		messages = append(messages, assistant)

		for _, call := range choice.ToolCalls {
			result, err := exec.Execute(ctx, call.FunctionCall.Name, call.FunctionCall.Arguments)
			if err != nil {
				slog.Warn("tool call failed", "tool", call.FunctionCall.Name, "error", err)
				result = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       call.FunctionCall.Name,
					Content:    result,
				}},
			})
		}
	}

	slog.Warn("tool loop iteration cap reached", "max_iterations", maxIterations)
	return lastContent, nil
}
