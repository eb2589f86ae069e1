package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/zhenwang/tripflow/internal/llm"
	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/tools"
)

// fakeToolCaller scripts both plain generation and the tool loop.
type fakeToolCaller struct {
	fakeGenerator

	toolResponse string
	toolErr      error
	toolSystems  []string
	toolUsers    []string
	toolSets     [][]llms.Tool
}

func (f *fakeToolCaller) RunWithTools(ctx context.Context, systemPrompt, userPrompt string, toolSet []llms.Tool, exec llm.ToolExecutor, maxIterations int) (string, error) {
	f.toolSystems = append(f.toolSystems, systemPrompt)
	f.toolUsers = append(f.toolUsers, userPrompt)
	f.toolSets = append(f.toolSets, toolSet)
	return f.toolResponse, f.toolErr
}

func newTestTeam(model ToolCaller) *Team {
	return NewTeam(model, testPrompts(), tools.NewRegistry(nil, nil, nil), 6)
}

func TestResolveBudget(t *testing.T) {
	fake := &fakeToolCaller{fakeGenerator: fakeGenerator{
		response: `{"total_estimated_cost": 1500, "daily_estimated_cost": 500}`,
	}}
	team := newTestTeam(fake)

	result, budgetContext := team.ResolveBudget(context.Background(), models.SubTask{
		Type:        "budget",
		Description: "估算3天预算",
	})

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected normalized map result, got %T", result)
	}
	if m["total_estimated_cost"] != float64(1500) {
		t.Errorf("unexpected budget result: %v", m)
	}
	if !strings.Contains(budgetContext, "total_estimated_cost") {
		t.Errorf("budget context %q missing cost data", budgetContext)
	}
}

func TestResolveBudgetUnparseable(t *testing.T) {
	fake := &fakeToolCaller{fakeGenerator: fakeGenerator{response: "预算大约1500元左右"}}
	team := newTestTeam(fake)

	result, budgetContext := team.ResolveBudget(context.Background(), models.SubTask{Type: "budget"})
	if result != "预算大约1500元左右" {
		t.Errorf("raw text should pass through, got %v", result)
	}
	if budgetContext != "预算大约1500元左右" {
		t.Errorf("raw text should become the context, got %q", budgetContext)
	}
}

func TestResolveBudgetError(t *testing.T) {
	fake := &fakeToolCaller{fakeGenerator: fakeGenerator{err: errors.New("timeout")}}
	team := newTestTeam(fake)

	result, budgetContext := team.ResolveBudget(context.Background(), models.SubTask{Type: "budget"})
	if result != nil || budgetContext != "" {
		t.Errorf("failed budget must yield nil result and empty context, got %v / %q", result, budgetContext)
	}
}

func TestRunAppendsBudgetContext(t *testing.T) {
	fake := &fakeToolCaller{toolResponse: "景点列表"}
	team := newTestTeam(fake)

	key, result := team.Run(context.Background(), models.SubTask{
		Type:        "attraction",
		Description: "查询兴义景点",
	}, `{"total_estimated_cost": 1500}`)

	if key != "attractions" {
		t.Errorf("key = %q, want attractions", key)
	}
	if result != "景点列表" {
		t.Errorf("result = %v", result)
	}
	if len(fake.toolUsers) != 1 {
		t.Fatalf("expected 1 tool agent call, got %d", len(fake.toolUsers))
	}
	want := `查询兴义景点，预算信息：{"total_estimated_cost": 1500}`
	if fake.toolUsers[0] != want {
		t.Errorf("user message = %q, want %q", fake.toolUsers[0], want)
	}
}

func TestRunWithoutBudgetContext(t *testing.T) {
	fake := &fakeToolCaller{toolResponse: "ok"}
	team := newTestTeam(fake)

	team.Run(context.Background(), models.SubTask{Type: "dining", Description: "查询美食"}, "")

	if fake.toolUsers[0] != "查询美食" {
		t.Errorf("empty budget context must not alter the description, got %q", fake.toolUsers[0])
	}
}

func TestRunSubstitutesTime(t *testing.T) {
	fake := &fakeToolCaller{toolResponse: "ok"}
	team := newTestTeam(fake)

	team.Run(context.Background(), models.SubTask{Type: "traffic", Description: "重庆到兴义"}, "")

	if strings.Contains(fake.toolSystems[0], "{time}") {
		t.Errorf("time placeholder survived: %q", fake.toolSystems[0])
	}
}

func TestRunToolSetsPerKind(t *testing.T) {
	tests := []struct {
		taskType  string
		wantKey   string
		wantTools int
	}{
		{"attraction", "attractions", 2},
		{"dining", "dining", 2},
		{"traffic", "traffic", 3},
	}

	for _, tt := range tests {
		t.Run(tt.taskType, func(t *testing.T) {
			fake := &fakeToolCaller{toolResponse: "ok"}
			team := newTestTeam(fake)

			key, _ := team.Run(context.Background(), models.SubTask{Type: tt.taskType}, "")
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if len(fake.toolSets[0]) != tt.wantTools {
				t.Errorf("got %d tools, want %d", len(fake.toolSets[0]), tt.wantTools)
			}
		})
	}
}

func TestRunUnknownKind(t *testing.T) {
	fake := &fakeToolCaller{toolResponse: "ok"}
	team := newTestTeam(fake)

	key, result := team.Run(context.Background(), models.SubTask{Type: "hotel", Description: "订酒店"}, "")
	if key != "hotel" || result != nil {
		t.Errorf("unknown kind: key=%q result=%v, want hotel/nil", key, result)
	}
	if len(fake.toolUsers) != 0 {
		t.Error("unknown kind must not invoke the model")
	}
}

func TestRunSpecialistFailure(t *testing.T) {
	fake := &fakeToolCaller{toolErr: errors.New("provider down")}
	team := newTestTeam(fake)

	key, result := team.Run(context.Background(), models.SubTask{Type: "attraction"}, "")
	if key != "attractions" {
		t.Errorf("key = %q, want attractions", key)
	}
	if result != nil {
		t.Errorf("failed specialist must yield nil, got %v", result)
	}
}
