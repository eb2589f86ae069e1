package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/zhenwang/tripflow/internal/agents"
	"github.com/zhenwang/tripflow/internal/llm"
	"github.com/zhenwang/tripflow/internal/metrics"
	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/prompts"
	"github.com/zhenwang/tripflow/internal/tools"
)

// scriptedModel answers each pipeline stage by matching the role marker in
// the system prompt.
type scriptedModel struct {
	mu sync.Mutex

	safety       string
	safetyErr    error
	decompose    string
	decomposeErr error
	budget       string
	budgetErr    error
	plan         string
	planErr      error

	toolResponse string
	toolErr      error
	toolUsers    []string
	planInputs   []string
}

func (m *scriptedModel) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case strings.HasPrefix(systemPrompt, "SAFETY"):
		return m.safety, m.safetyErr
	case strings.HasPrefix(systemPrompt, "DECOMPOSE"):
		return m.decompose, m.decomposeErr
	case strings.HasPrefix(systemPrompt, "BUDGET"):
		return m.budget, m.budgetErr
	case strings.HasPrefix(systemPrompt, "PLAN"):
		m.planInputs = append(m.planInputs, userPrompt)
		return m.plan, m.planErr
	}
	return "", errors.New("unexpected system prompt")
}

func (m *scriptedModel) RunWithTools(ctx context.Context, systemPrompt, userPrompt string, toolSet []llms.Tool, exec llm.ToolExecutor, maxIterations int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolUsers = append(m.toolUsers, userPrompt)
	return m.toolResponse, m.toolErr
}

func pipelinePrompts() *prompts.Set {
	return &prompts.Set{
		Safety:           "SAFETY {question}",
		Decompose:        "DECOMPOSE",
		Attraction:       "AGENT attraction {time}",
		Traffic:          "AGENT traffic {time}",
		Dining:           "AGENT dining {time}",
		Budget:           "BUDGET {question}",
		Hotel:            "HOTEL {question}",
		Plan:             "PLAN",
		SingleAttraction: "SINGLE {question}",
	}
}

// fakeRenderer scripts poster rendering.
type fakeRenderer struct {
	posters []models.Poster
	err     error
	calls   int
}

func (f *fakeRenderer) RenderAll(ctx context.Context, dailyPlans any) ([]models.Poster, error) {
	f.calls++
	return f.posters, f.err
}

func newTestPipeline(t *testing.T, model *scriptedModel, renderer Renderer) (*Pipeline, *metrics.Collector) {
	t.Helper()
	p := pipelinePrompts()
	collector := metrics.NewCollector()
	manager := NewManager(nil, t.TempDir())
	pipeline := NewPipeline(
		agents.NewGate(model, p),
		agents.NewDecomposer(model, p),
		agents.NewTeam(model, p, tools.NewRegistry(nil, nil, nil), 6),
		agents.NewPlanner(model, p),
		renderer,
		manager,
		collector,
		3,
	)
	return pipeline, collector
}

func waitTerminal(t *testing.T, task *Task) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := task.Snapshot()
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", task.ID)
	return Task{}
}

const fullDecomposition = `{"tasks": [
	{"type": "budget", "description": "估算3天预算"},
	{"type": "attraction", "description": "查询兴义景点"},
	{"type": "traffic", "description": "重庆到兴义交通"},
	{"type": "dining", "description": "兴义美食"}
]}`

const threeDayPlan = `{"daily_plans": [
	{"day": 1, "date": "2026-09-01", "activities": [{"time": "09:00", "activity": "马岭河峡谷"}]},
	{"day": 2, "date": "2026-09-02", "activities": []},
	{"day": 3, "date": "2026-09-03", "activities": []}
], "total_cost": 1500}`

func TestPipelineCompletes(t *testing.T) {
	model := &scriptedModel{
		safety:       `{"is_allowed": true, "category": "旅游"}`,
		decompose:    fullDecomposition,
		budget:       `{"total_estimated_cost": 1500}`,
		toolResponse: "专家结果",
		plan:         threeDayPlan,
	}
	pipeline, collector := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", snap.Status, snap.Error)
	}
	if got := len(snap.Result.DailyPlans()); got != 3 {
		t.Errorf("day plans = %d, want 3", got)
	}
	if snap.Result.TotalCost() != 1500 {
		t.Errorf("total cost = %v, want 1500", snap.Result.TotalCost())
	}

	// Three non-budget specialists ran, each with the budget context appended
	if len(model.toolUsers) != 3 {
		t.Fatalf("specialist calls = %d, want 3", len(model.toolUsers))
	}
	for _, user := range model.toolUsers {
		if !strings.Contains(user, "预算信息") {
			t.Errorf("specialist input missing budget context: %q", user)
		}
	}

	// The synthesizer received the collected outputs
	if len(model.planInputs) != 1 {
		t.Fatalf("synthesis calls = %d, want 1", len(model.planInputs))
	}
	for _, key := range []string{"attractions", "traffic", "dining", "budget", "total_estimated_cost"} {
		if !strings.Contains(model.planInputs[0], key) {
			t.Errorf("synthesis input missing %q", key)
		}
	}

	stats := collector.Snapshot()
	if stats.Pipeline == nil || stats.Pipeline.Count != 1 {
		t.Error("pipeline timing not recorded")
	}
	if stats.Specialist == nil || stats.Specialist.Count != 4 {
		t.Errorf("expected 4 specialist timings, got %+v", stats.Specialist)
	}
}

func TestPipelineDuplicateBudgetTasksStaySerial(t *testing.T) {
	model := &scriptedModel{
		safety: `{"is_allowed": true}`,
		decompose: `{"tasks": [
			{"type": "budget", "description": "估算预算"},
			{"type": "budget", "description": "再次估算预算"},
			{"type": "attraction", "description": "查询兴义景点"}
		]}`,
		budget:       `{"total_estimated_cost": 1500}`,
		toolResponse: "专家结果",
		plan:         threeDayPlan,
	}
	pipeline, collector := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", snap.Status, snap.Error)
	}
	// Only the attraction specialist reaches the pool; the surplus budget
	// task is dropped rather than dispatched
	if len(model.toolUsers) != 1 {
		t.Fatalf("specialist calls = %d, want 1: %v", len(model.toolUsers), model.toolUsers)
	}
	stats := collector.Snapshot()
	if stats.Specialist == nil || stats.Specialist.Count != 2 {
		t.Errorf("expected 2 specialist timings (budget + attraction), got %+v", stats.Specialist)
	}
}

func TestPipelineRejectsUnsafeRequest(t *testing.T) {
	model := &scriptedModel{
		safety: `{"is_allowed": false, "category": "政治敏感"}`,
	}
	pipeline, _ := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusRejected {
		t.Fatalf("status = %s, want rejected", snap.Status)
	}
	if snap.Error != RejectionReason {
		t.Errorf("error = %q, want %q", snap.Error, RejectionReason)
	}
	if snap.SafetyInfo == nil {
		t.Error("classifier output missing from rejection")
	}
	if len(model.toolUsers) != 0 || len(model.planInputs) != 0 {
		t.Error("rejected request must not reach later stages")
	}
}

func TestPipelineDecompositionFailure(t *testing.T) {
	model := &scriptedModel{
		safety:       `{"is_allowed": true}`,
		decomposeErr: errors.New("provider timeout"),
	}
	pipeline, _ := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if !strings.Contains(snap.Error, "任务分析失败") {
		t.Errorf("error = %q, missing decomposition failure prefix", snap.Error)
	}
	if len(model.toolUsers) != 0 {
		t.Error("no specialist may run after decomposition failure")
	}
}

func TestPipelineSynthesisFailure(t *testing.T) {
	model := &scriptedModel{
		safety:       `{"is_allowed": true}`,
		decompose:    fullDecomposition,
		budget:       `{"total_estimated_cost": 1500}`,
		toolResponse: "专家结果",
		plan:         "抱歉，我无法生成行程。",
	}
	pipeline, _ := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if !strings.Contains(snap.Error, "计划数据格式错误") {
		t.Errorf("error = %q, want synthesis failure", snap.Error)
	}
}

func TestPipelineSpecialistFailureDoesNotAbort(t *testing.T) {
	model := &scriptedModel{
		safety:       `{"is_allowed": true}`,
		decompose:    fullDecomposition,
		budget:       `{"total_estimated_cost": 1500}`,
		toolErr:      errors.New("all providers down"),
		toolResponse: "",
		plan:         threeDayPlan,
	}
	pipeline, _ := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	// Failed specialists leave nil slots; synthesis still runs
	if snap.Status != TaskStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", snap.Status, snap.Error)
	}
	if !strings.Contains(model.planInputs[0], `"attractions":null`) {
		t.Errorf("failed specialist slot not nil in synthesis input: %s", model.planInputs[0])
	}
}

func TestPipelineEmptyDecomposition(t *testing.T) {
	model := &scriptedModel{
		safety:    `{"is_allowed": true}`,
		decompose: "好的，我来规划行程。",
		plan:      threeDayPlan,
	}
	pipeline, _ := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	// Malformed decomposition degrades to zero tasks, synthesis still runs
	if snap.Status != TaskStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", snap.Status, snap.Error)
	}
	if len(model.toolUsers) != 0 {
		t.Error("no specialists expected for an empty task list")
	}
}

func TestPipelineRendersPosters(t *testing.T) {
	model := &scriptedModel{
		safety:    `{"is_allowed": true}`,
		decompose: `{"tasks": []}`,
		plan:      threeDayPlan,
	}
	renderer := &fakeRenderer{posters: []models.Poster{{Day: 1}, {Day: 2}, {Day: 3}}}
	pipeline, _ := newTestPipeline(t, model, renderer)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if len(snap.Posters) != 3 {
		t.Errorf("posters = %d, want 3", len(snap.Posters))
	}
	if renderer.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", renderer.calls)
	}
}

func TestPipelinePosterFailureDegrades(t *testing.T) {
	model := &scriptedModel{
		safety:    `{"is_allowed": true}`,
		decompose: `{"tasks": []}`,
		plan:      threeDayPlan,
	}
	renderer := &fakeRenderer{err: errors.New("renderer offline")}
	pipeline, _ := newTestPipeline(t, model, renderer)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusCompleted {
		t.Fatalf("poster failure must not fail the task: %s (%q)", snap.Status, snap.Error)
	}
	if len(snap.Posters) != 0 {
		t.Errorf("expected no posters, got %d", len(snap.Posters))
	}
}

func TestPipelineSafetyErrorFailsOpen(t *testing.T) {
	model := &scriptedModel{
		safetyErr: errors.New("classifier unreachable"),
		decompose: `{"tasks": []}`,
		plan:      threeDayPlan,
	}
	pipeline, _ := newTestPipeline(t, model, nil)

	task := pipeline.Submit(testRequest())
	snap := waitTerminal(t, task)

	if snap.Status != TaskStatusCompleted {
		t.Fatalf("classifier error must fail open: %s (%q)", snap.Status, snap.Error)
	}
}
