package experiment

import (
	"context"
	"fmt"

	"github.com/boristopalov/gridhunt/pkg/core"
)

// DefaultMaxStepsPerEpisode caps an episode when nothing else ends it. The
// environment itself has no step limit.
const DefaultMaxStepsPerEpisode = 500

// EpisodeResult is the outcome of one rollout
type EpisodeResult struct {
	Reward    float64
	Length    int
	Success   bool
	Truncated bool
	Final     core.RenderState
}

// StepFunc is called after every transition of a rollout. It is also called
// once with step 0 right after the reset; the result then only carries the
// initial observation and action is meaningless.
type StepFunc func(step int, action core.Action, result core.StepResult)

// RunEpisode resets env and lets policy act until the episode terminates or
// maxSteps transitions have been taken. Policies implementing
// core.StepObserver are told about the reset and every step.
func RunEpisode(ctx context.Context, env core.Environment, policy core.Policy, maxSteps int, onStep StepFunc) (EpisodeResult, error) {
	if maxSteps < 1 {
		maxSteps = DefaultMaxStepsPerEpisode
	}
	obs, err := env.Reset()
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("failed to reset environment: %w", err)
	}
	observer, _ := policy.(core.StepObserver)
	if observer != nil {
		observer.BeginEpisode()
	}
	if onStep != nil {
		onStep(0, core.ActionStay, core.StepResult{Observation: obs})
	}

	var res EpisodeResult
	for res.Length < maxSteps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		action, err := policy.SelectAction(ctx, obs)
		if err != nil {
			return res, fmt.Errorf("failed to select action: %w", err)
		}
		result, err := env.Step(action)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", res.Length+1, err)
		}
		res.Length++
		res.Reward += result.Reward
		obs = result.Observation

		if observer != nil {
			observer.ObserveStep(action, result)
		}
		if onStep != nil {
			onStep(res.Length, action, result)
		}
		if result.Done {
			res.Success = result.Info.IsSuccess
			res.Final = env.RenderState()
			return res, nil
		}
	}
	res.Truncated = true
	res.Final = env.RenderState()
	return res, nil
}
