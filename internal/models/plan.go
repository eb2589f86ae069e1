package models

import "encoding/json"

// PlanDocument is the synthesized travel plan. The synthesizer guarantees it
// is a JSON object; the known fields below are decoded on demand since the
// LLM may attach extra keys.
type PlanDocument map[string]any

// Activity is one scheduled item inside a day plan.
type Activity struct {
	Time     string  `json:"time"`
	Activity string  `json:"activity"`
	Location string  `json:"location"`
	Duration float64 `json:"duration"`
	Cost     float64 `json:"cost"`
}

// DayPlan is a single day of the itinerary.
type DayPlan struct {
	Day          int        `json:"day"`
	Date         string     `json:"date"`
	TotalDayCost float64    `json:"total_day_cost"`
	Activities   []Activity `json:"activities"`
}

// DailyPlans decodes the daily_plans field into typed day plans.
// Returns nil when the field is missing or malformed.
func (p PlanDocument) DailyPlans() []DayPlan {
	raw, ok := p["daily_plans"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var plans []DayPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil
	}
	return plans
}

// TotalCost returns the total_cost field, or 0 when absent.
func (p PlanDocument) TotalCost() float64 {
	if v, ok := p["total_cost"].(float64); ok {
		return v
	}
	return 0
}

// SetDailyPlans replaces only the daily_plans field, leaving every other
// key of the document untouched.
func (p PlanDocument) SetDailyPlans(dailyPlans []any) {
	p["daily_plans"] = dailyPlans
}

// Poster is a rendered per-day itinerary image.
type Poster struct {
	Day   int    `json:"day"`
	Date  string `json:"date"`
	Image string `json:"image"` // base64-encoded PNG
}
