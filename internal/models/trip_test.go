package models

import "testing"

func TestUserMessage(t *testing.T) {
	req := TripRequest{
		Origin:      "重庆",
		Destination: "兴义",
		Days:        3,
		BudgetLevel: "中等",
		Preferences: []string{"自然风光", "美食"},
		StartDate:   "2026-09-01",
	}

	want := "出发地是重庆，我要去兴义，计划3天，预算中等，偏好自然风光、美食"
	if got := req.UserMessage(); got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestParseTaskKind(t *testing.T) {
	tests := []struct {
		input string
		want  TaskKind
	}{
		{"attraction", TaskAttraction},
		{"attractions", TaskAttraction},
		{"traffic", TaskTraffic},
		{"transport", TaskTraffic},
		{"dining", TaskDining},
		{"food", TaskDining},
		{"budget", TaskBudget},
		{"  Budget  ", TaskBudget},
		{"hotel", TaskUnknown},
		{"", TaskUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseTaskKind(tt.input); got != tt.want {
				t.Errorf("ParseTaskKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestOutputKey(t *testing.T) {
	tests := []struct {
		kind TaskKind
		want string
	}{
		{TaskAttraction, "attractions"},
		{TaskTraffic, "traffic"},
		{TaskDining, "dining"},
		{TaskBudget, "budget"},
	}

	for _, tt := range tests {
		if got := tt.kind.OutputKey(); got != tt.want {
			t.Errorf("%q.OutputKey() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestNewAgentOutputs(t *testing.T) {
	outputs := NewAgentOutputs()

	for _, key := range []string{"attractions", "traffic", "dining", "budget"} {
		v, ok := outputs[key]
		if !ok {
			t.Errorf("missing slot %q", key)
		}
		if v != nil {
			t.Errorf("slot %q should start nil, got %v", key, v)
		}
	}
	if len(outputs) != 4 {
		t.Errorf("expected 4 slots, got %d", len(outputs))
	}
}
