package core

import (
	"context"
)

// Environment defines the rules and mechanics of a single-hero grid episode
type Environment interface {
	// Reset starts a new episode and returns the initial observation
	Reset() (Observation, error)
	// Step applies one action and advances the episode by one timestep
	Step(action Action) (StepResult, error)
	// RenderState returns a read-only snapshot of entity positions
	RenderState() RenderState
}

// Policy chooses the next action from an observation.
// Implementations may be learned models, heuristics or remote services.
type Policy interface {
	SelectAction(ctx context.Context, obs Observation) (Action, error)
}

// StepObserver is implemented by policies that keep per-episode state
type StepObserver interface {
	// BeginEpisode is called after every reset
	BeginEpisode()
	// ObserveStep receives the action taken and its outcome
	ObserveStep(action Action, result StepResult)
}
