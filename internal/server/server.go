// Package server exposes the planning service over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zhenwang/tripflow/internal/metrics"
	"github.com/zhenwang/tripflow/internal/models"
	"github.com/zhenwang/tripflow/internal/service"
	"github.com/zhenwang/tripflow/internal/session"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	pipeline  *service.Pipeline
	sessions  *session.Store
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates the HTTP server front end.
func New(pipeline *service.Pipeline, sessions *session.Store, collector *metrics.Collector, logger *slog.Logger) *Server {
	return &Server{
		pipeline:  pipeline,
		sessions:  sessions,
		collector: collector,
		logger:    logger,
	}
}

// Handler returns the routed handler with logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/generate-plan", s.handleGeneratePlan)
	// Legacy alias used by the mini-program client
	mux.HandleFunc("POST /api/chat", s.handleGeneratePlan)
	mux.HandleFunc("GET /api/task-status", s.handleTaskStatus)
	mux.HandleFunc("POST /api/update-plan", s.handleUpdatePlan)
	mux.HandleFunc("GET /api/task-events", s.handleTaskEvents)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)

	return LoggingMiddleware(s.logger)(mux)
}

// generatePlanRequest is the submit payload.
type generatePlanRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Days        int      `json:"days"`
	BudgetLevel string   `json:"budget_level"`
	Preferences []string `json:"preferences"`
	StartDate   string   `json:"start_date"`
	SessionID   string   `json:"session_id,omitempty"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "无效的请求数据"})
		return
	}
	if req.Days <= 0 {
		req.Days = 3
	}
	if req.StartDate == "" {
		req.StartDate = time.Now().Format("2006-01-02")
	}

	params := models.TripRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Days:        req.Days,
		BudgetLevel: req.BudgetLevel,
		Preferences: req.Preferences,
		StartDate:   req.StartDate,
	}

	task := s.pipeline.Submit(params)

	if req.SessionID != "" && s.sessions != nil {
		s.sessions.GetOrCreate(req.SessionID)
		s.sessions.AddMessage(req.SessionID, "user", params.UserMessage())
		s.sessions.MergeEntities(req.SessionID, map[string]string{
			"origin":      params.Origin,
			"destination": params.Destination,
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": task.ID,
		"status":  string(service.TaskStatusPending),
		"message": "任务已提交，正在生成旅游攻略...",
	})
}

// taskStatusResponse is the polling payload.
type taskStatusResponse struct {
	TaskID      string               `json:"task_id"`
	Status      string               `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	Result      models.PlanDocument  `json:"result,omitempty"`
	Posters     []models.Poster      `json:"posters,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Error       string               `json:"error,omitempty"`
	SafetyCheck any                  `json:"safety_check_result,omitempty"`
}

func taskResponse(t service.Task) taskStatusResponse {
	resp := taskStatusResponse{
		TaskID:    t.ID,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
	switch t.Status {
	case service.TaskStatusCompleted:
		resp.Result = t.Result
		resp.Posters = t.Posters
		resp.CompletedAt = t.CompletedAt
	case service.TaskStatusFailed:
		resp.Error = t.Error
		resp.CompletedAt = t.CompletedAt
	case service.TaskStatusRejected:
		resp.Error = t.Error
		resp.SafetyCheck = t.SafetyInfo
		resp.CompletedAt = t.CompletedAt
	}
	return resp
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "缺少 task_id 参数"})
		return
	}

	manager := s.pipeline.Manager()
	task := manager.Get(taskID)
	if task == nil {
		// Tasks from before a restart are only in the database
		if snap, ok := manager.Recover(r.Context(), taskID); ok {
			writeJSON(w, http.StatusOK, taskResponse(snap))
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "任务不存在"})
		return
	}

	writeJSON(w, http.StatusOK, taskResponse(task.Snapshot()))
}

// updatePlanRequest edits the day plans of an existing task.
type updatePlanRequest struct {
	TaskID     string `json:"task_id"`
	DailyPlans []any  `json:"daily_plans"`
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "无效的请求数据"})
		return
	}
	if req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "缺少 task_id 参数"})
		return
	}
	if len(req.DailyPlans) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "缺少 daily_plans 参数"})
		return
	}

	manager := s.pipeline.Manager()
	task := manager.UpdateDailyPlans(req.TaskID, req.DailyPlans)
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "任务不存在"})
		return
	}

	posters, err := s.pipeline.RenderPosters(r.Context(), req.DailyPlans)
	if err != nil {
		s.logger.Error("poster re-render failed", "task_id", req.TaskID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	manager.SetPosters(task, posters)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "海报更新成功",
		"posters": posters,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
