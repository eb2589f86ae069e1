package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zhenwang/tripflow/internal/agents"
	"github.com/zhenwang/tripflow/internal/metrics"
	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/poster"
)

// RejectionReason is the user-facing error set on requests the safety gate
// turns away.
const RejectionReason = "输入内容不符合旅游相关要求"

// Renderer is the poster rendering surface the pipeline needs.
type Renderer interface {
	RenderAll(ctx context.Context, dailyPlans any) ([]models.Poster, error)
}

var _ Renderer = (*poster.Renderer)(nil)

// Pipeline runs a trip request through the full agent sequence:
// safety gate, decomposition, budget-first specialist dispatch, synthesis
// and poster rendering.
type Pipeline struct {
	gate       *agents.Gate
	decomposer *agents.Decomposer
	team       *agents.Team
	planner    *agents.Planner
	renderer   Renderer // nil when poster rendering is disabled
	manager    *Manager
	collector  *metrics.Collector
	poolSize   int
}

// NewPipeline wires the pipeline. renderer may be nil.
func NewPipeline(gate *agents.Gate, decomposer *agents.Decomposer, team *agents.Team, planner *agents.Planner, renderer Renderer, manager *Manager, collector *metrics.Collector, poolSize int) *Pipeline {
	if poolSize <= 0 {
		poolSize = 3
	}
	return &Pipeline{
		gate:       gate,
		decomposer: decomposer,
		team:       team,
		planner:    planner,
		renderer:   renderer,
		manager:    manager,
		collector:  collector,
		poolSize:   poolSize,
	}
}

// Manager exposes the task registry.
func (p *Pipeline) Manager() *Manager {
	return p.manager
}

// Submit registers a task and starts planning in the background. The task
// is visible to status queries immediately.
func (p *Pipeline) Submit(req models.TripRequest) *Task {
	task := p.manager.Create(context.Background(), req)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("planning goroutine panicked", "task_id", task.ID, "panic", r)
				p.manager.Fail(context.Background(), task, fmt.Errorf("internal panic: %v", r))
			}
		}()
		p.run(context.Background(), task)
	}()

	return task
}

// run drives one task to a terminal state.
func (p *Pipeline) run(ctx context.Context, task *Task) {
	start := time.Now()
	defer func() {
		p.collector.RecordTiming(metrics.OpPipeline, time.Since(start))
	}()

	req := task.Params
	userMessage := req.UserMessage()

	// Stage 1: safety gate. Fails open inside Check.
	gateStart := time.Now()
	decision := p.gate.Check(ctx, userMessage)
	p.collector.RecordTiming(metrics.OpSafetyCheck, time.Since(gateStart))
	if !decision.Allowed {
		p.manager.Reject(ctx, task, RejectionReason, decision.Raw)
		return
	}

	// Stage 2: decomposition. The only early stage whose failure is fatal.
	decomposeStart := time.Now()
	subTasks, err := p.decomposer.Decompose(ctx, userMessage)
	p.collector.RecordTiming(metrics.OpDecompose, time.Since(decomposeStart))
	if err != nil {
		p.manager.Fail(ctx, task, err)
		return
	}

	outputs := models.NewAgentOutputs()

	// Stage 3: budget first, so every other specialist plans against it.
	// Budget tasks never enter the parallel pool; only the first one runs.
	var budgetTask *models.SubTask
	var others []models.SubTask
	for _, st := range subTasks {
		if st.Kind() == models.TaskBudget {
			if budgetTask == nil {
				t := st
				budgetTask = &t
			}
			continue
		}
		others = append(others, st)
	}

	var budgetContext string
	if budgetTask != nil {
		budgetStart := time.Now()
		result, bctx := p.team.ResolveBudget(ctx, *budgetTask)
		p.collector.RecordTiming(metrics.OpSpecialist, time.Since(budgetStart))
		if result != nil {
			outputs["budget"] = result
		}
		budgetContext = bctx
	}

	// Stage 4: remaining specialists fan out on a bounded pool.
	if len(others) > 0 {
		workers := min(len(others), p.poolSize)
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		var outputsMu sync.Mutex

		for _, st := range others {
			wg.Add(1)
			go func(st models.SubTask) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				specialistStart := time.Now()
				key, result := p.team.Run(ctx, st, budgetContext)
				p.collector.RecordTiming(metrics.OpSpecialist, time.Since(specialistStart))

				if result != nil {
					outputsMu.Lock()
					outputs[key] = result
					outputsMu.Unlock()
				}
			}(st)
		}
		wg.Wait()
	}

	// Stage 5: synthesis.
	synthStart := time.Now()
	plan, err := p.planner.Synthesize(ctx, req, outputs)
	p.collector.RecordTiming(metrics.OpSynthesize, time.Since(synthStart))
	if err != nil {
		p.manager.Fail(ctx, task, err)
		return
	}

	// Stage 6: posters. Rendering failure degrades the task, not fails it.
	var posters []models.Poster
	if p.renderer != nil {
		posters, err = p.renderer.RenderAll(ctx, plan["daily_plans"])
		if err != nil {
			slog.Warn("poster rendering failed", "task_id", task.ID, "error", err)
			posters = nil
		}
	}

	p.manager.Complete(ctx, task, plan, posters)
}

// RenderPosters re-renders posters for edited day plans. Returns nil
// posters when rendering is disabled.
func (p *Pipeline) RenderPosters(ctx context.Context, dailyPlans any) ([]models.Poster, error) {
	if p.renderer == nil {
		return nil, nil
	}
	return p.renderer.RenderAll(ctx, dailyPlans)
}
