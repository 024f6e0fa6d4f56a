package admin

import (
	"context"
	"fmt"

	"lordre.org/internal/obs"
)

// Step is one forward action with an optional compensating action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Compensate undoes Run. Nil when the step needs no rollback.
	Compensate func(ctx context.Context) error
}

// Saga executes steps in order. On the first failure it runs the
// compensations of the completed steps in reverse and returns the
// original error. Compensations are best-effort: a failed rollback is
// logged, never retried, and never masks the original error.
type Saga struct {
	steps []Step
}

// Add appends a step.
func (s *Saga) Add(step Step) {
	s.steps = append(s.steps, step)
}

// Run executes the saga.
func (s *Saga) Run(ctx context.Context) error {
	var completed []Step
	for _, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			s.compensate(ctx, completed)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			obs.LogEvent(map[string]any{
				"level": "warn",
				"msg":   "saga compensation failed",
				"step":  step.Name,
				"error": err.Error(),
			})
		}
	}
}
