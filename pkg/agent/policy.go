package agent

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/boristopalov/gridhunt/pkg/core"
)

var (
	_ core.Policy = (*RandomPolicy)(nil)
	_ core.Policy = (*GreedyPolicy)(nil)
)

// RandomPolicy picks uniformly among all actions
type RandomPolicy struct {
	rng *rand.Rand
}

func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{rng: rng}
}

func (p *RandomPolicy) SelectAction(ctx context.Context, obs core.Observation) (core.Action, error) {
	return core.Action(p.rng.Intn(core.NumActions)), nil
}

const (
	reachBonus      = 100.0
	contactPenalty  = 50.0
	approachPenalty = 2.0
)

// GreedyPolicy walks toward the treasure while keeping clear of monsters it
// can see on the occupancy map. With probability epsilon it explores instead.
type GreedyPolicy struct {
	rng      *rand.Rand
	gridSize int
	epsilon  float64
}

func NewGreedyPolicy(gridSize int, epsilon float64, rng *rand.Rand) *GreedyPolicy {
	if epsilon < 0 {
		epsilon = 0
	}
	if epsilon > 1 {
		epsilon = 1
	}
	return &GreedyPolicy{rng: rng, gridSize: gridSize, epsilon: epsilon}
}

func (p *GreedyPolicy) SelectAction(ctx context.Context, obs core.Observation) (core.Action, error) {
	view, err := core.DecodeObservation(obs, p.gridSize)
	if err != nil {
		return core.ActionStay, fmt.Errorf("greedy policy: %w", err)
	}
	if p.epsilon > 0 && p.rng.Float64() < p.epsilon {
		return core.Action(p.rng.Intn(core.NumActions)), nil
	}

	target := core.Position{Row: view.Hero.Row + view.TreasureRow, Col: view.Hero.Col + view.TreasureCol}
	bestAction := core.ActionStay
	bestScore := math.Inf(-1)
	countBest := 0
	for a := core.ActionUp; a <= core.ActionStay; a++ {
		score := p.score(view, target, a)
		if score > bestScore {
			bestScore = score
			bestAction = a
			countBest = 1
		} else if score == bestScore {
			countBest++
			if p.rng.Intn(countBest) == 0 {
				bestAction = a
			}
		}
	}
	return bestAction, nil
}

// score rates the cell an action leads to. Monsters move one cell after the
// hero, so a monster within two cells of the destination can end the episode.
func (p *GreedyPolicy) score(view core.ObservationView, target core.Position, a core.Action) float64 {
	dr, dc := a.Delta()
	next := core.Position{
		Row: clampInt(view.Hero.Row+dr, 0, p.gridSize-1),
		Col: clampInt(view.Hero.Col+dc, 0, p.gridSize-1),
	}
	score := -next.Euclidean(target)
	if next.Equal(target) {
		score += reachBonus
	}
	for _, m := range view.Monsters {
		switch d := next.Manhattan(m); {
		case d <= 2:
			score -= contactPenalty
		case d == 3:
			score -= approachPenalty
		}
	}
	return score
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
