// Package models defines the core data types for trip planning.
package models

import (
	"fmt"
	"strings"
)

// TripRequest holds the user's trip parameters.
type TripRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Days        int      `json:"days"`
	BudgetLevel string   `json:"budget_level"`
	Preferences []string `json:"preferences"`
	StartDate   string   `json:"start_date"`
}

// UserMessage renders the request as the natural-language message fed to the agents.
func (r TripRequest) UserMessage() string {
	return fmt.Sprintf("出发地是%s，我要去%s，计划%d天，预算%s，偏好%s",
		r.Origin, r.Destination, r.Days, r.BudgetLevel, strings.Join(r.Preferences, "、"))
}

// TaskKind classifies a decomposed sub-task.
type TaskKind string

const (
	TaskAttraction TaskKind = "attraction"
	TaskTraffic    TaskKind = "traffic"
	TaskDining     TaskKind = "dining"
	TaskBudget     TaskKind = "budget"
	TaskUnknown    TaskKind = "unknown"
)

// ParseTaskKind maps a raw task type string to a TaskKind.
// Unrecognized values map to TaskUnknown.
func ParseTaskKind(s string) TaskKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attraction", "attractions":
		return TaskAttraction
	case "traffic", "transport":
		return TaskTraffic
	case "dining", "food":
		return TaskDining
	case "budget":
		return TaskBudget
	default:
		return TaskUnknown
	}
}

// OutputKey is the slot name a task kind writes to in the specialist outputs.
// The attraction kind writes to the plural "attractions" slot.
func (k TaskKind) OutputKey() string {
	if k == TaskAttraction {
		return "attractions"
	}
	return string(k)
}

// SubTask is a single decomposed unit of work for a specialist agent.
type SubTask struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Kind returns the parsed task kind.
func (t SubTask) Kind() TaskKind {
	return ParseTaskKind(t.Type)
}

// NewAgentOutputs returns the output map with all specialist slots preset
// to nil. A slot stays nil when its specialist never ran or failed.
func NewAgentOutputs() map[string]any {
	return map[string]any{
		"attractions": nil,
		"traffic":     nil,
		"dining":      nil,
		"budget":      nil,
	}
}
