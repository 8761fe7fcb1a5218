package simulation

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

const (
	// EventTickBudgetOverrun is emitted when the simulation loop exceeds the allotted tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventTaskSpilled is emitted when the loop's task ring is full and
	// hand-offs overflow into the spill list.
	EventTaskSpilled logging.EventType = "simulation.task_spilled"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	SkipAdvisory   bool    `json:"skipAdvisory"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// TaskSpilledPayload reports queue saturation.
type TaskSpilledPayload struct {
	Capacity int    `json:"capacity"`
	Spilled  uint64 `json:"spilled"`
}

// TaskSpilled publishes a warning when a hand-off overflowed the task ring.
func TaskSpilled(ctx context.Context, pub logging.Publisher, tick uint64, payload TaskSpilledPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTaskSpilled,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
