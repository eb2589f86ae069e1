package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

// fakeLLM replays scripted responses and records the conversation.
type fakeLLM struct {
	responses []*llms.ContentResponse
	calls     int
	messages  [][]llms.MessageContent
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = append(f.messages, messages)
	if f.calls >= len(f.responses) {
		return nil, errors.New("no scripted response")
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// fakeExecutor records tool invocations.
type fakeExecutor struct {
	invocations []string
	result      string
	err         error
}

func (f *fakeExecutor) Execute(ctx context.Context, name, arguments string) (string, error) {
	f.invocations = append(f.invocations, name)
	return f.result, f.err
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolResponse(content, id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: content,
			ToolCalls: []llms.ToolCall{{
				ID:   id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: args,
				},
			}},
		}},
	}
}

func TestRunWithToolsDirectAnswer(t *testing.T) {
	fake := &fakeLLM{responses: []*llms.ContentResponse{textResponse("最终答案")}}
	model := NewModelWithLLM(fake, "test")

	got, err := model.RunWithTools(context.Background(), "系统", "问题", nil, &fakeExecutor{}, 6)
	if err != nil {
		t.Fatalf("RunWithTools() error: %v", err)
	}
	if got != "最终答案" {
		t.Errorf("got %q, want %q", got, "最终答案")
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 generate call, got %d", fake.calls)
	}
}

func TestRunWithToolsExecutesTools(t *testing.T) {
	fake := &fakeLLM{responses: []*llms.ContentResponse{
		toolResponse("", "call_1", "web_search", `{"query": "兴义景点"}`),
		textResponse("景点推荐"),
	}}
	exec := &fakeExecutor{result: "马岭河峡谷"}
	model := NewModelWithLLM(fake, "test")

	got, err := model.RunWithTools(context.Background(), "系统", "问题", nil, exec, 6)
	if err != nil {
		t.Fatalf("RunWithTools() error: %v", err)
	}
	if got != "景点推荐" {
		t.Errorf("got %q, want %q", got, "景点推荐")
	}
	if len(exec.invocations) != 1 || exec.invocations[0] != "web_search" {
		t.Errorf("unexpected tool invocations: %v", exec.invocations)
	}

	// The second generate call carries the assistant turn and tool result
	second := fake.messages[1]
	if len(second) != 4 {
		t.Fatalf("expected 4 messages on second call, got %d", len(second))
	}
	if second[3].Role != llms.ChatMessageTypeTool {
		t.Errorf("expected tool message, got role %s", second[3].Role)
	}
}

func TestRunWithToolsToolErrorFedBack(t *testing.T) {
	fake := &fakeLLM{responses: []*llms.ContentResponse{
		toolResponse("", "call_1", "transit_route", `{}`),
		textResponse("改用火车"),
	}}
	exec := &fakeExecutor{err: errors.New("amap unreachable")}
	model := NewModelWithLLM(fake, "test")

	got, err := model.RunWithTools(context.Background(), "系统", "问题", nil, exec, 6)
	if err != nil {
		t.Fatalf("tool failure must not abort the loop: %v", err)
	}
	if got != "改用火车" {
		t.Errorf("got %q, want %q", got, "改用火车")
	}
}

func TestRunWithToolsIterationCap(t *testing.T) {
	// Every response asks for another tool call; the cap must end the loop
	// and return the last text content.
	responses := make([]*llms.ContentResponse, 3)
	for i := range responses {
		responses[i] = toolResponse("中间结果", "call_x", "web_search", `{}`)
	}
	fake := &fakeLLM{responses: responses}
	exec := &fakeExecutor{result: "ok"}
	model := NewModelWithLLM(fake, "test")

	got, err := model.RunWithTools(context.Background(), "系统", "问题", nil, exec, 3)
	if err != nil {
		t.Fatalf("RunWithTools() error: %v", err)
	}
	if got != "中间结果" {
		t.Errorf("got %q, want %q", got, "中间结果")
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 generate calls, got %d", fake.calls)
	}
}

func TestRunWithToolsGenerateError(t *testing.T) {
	fake := &fakeLLM{}
	model := NewModelWithLLM(fake, "test")

	_, err := model.RunWithTools(context.Background(), "系统", "问题", nil, &fakeExecutor{}, 6)
	if err == nil {
		t.Fatal("expected error from failing generation")
	}
}
