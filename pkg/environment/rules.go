package environment

import (
	"fmt"
	"log"

	"github.com/boristopalov/gridhunt/pkg/core"
)

const (
	MonsterCount = core.MonsterSlots
	// MonsterMoveAttempts is how many random candidates a monster tries per step
	MonsterMoveAttempts = 10
	// MinMonsterDistance is the Manhattan spacing monsters keep from the
	// treasure, and from the hero at spawn time
	MinMonsterDistance = 3
	// DangerRadius is the Manhattan distance at which a monster costs DangerPenalty
	DangerRadius = 2
)

const (
	StepCost       = -0.1
	CaughtReward   = -10.0
	DangerPenalty  = -5.0
	ApproachBonus  = 3.0
	RetreatPenalty = -1.0
	TreasureReward = 30.0
)

var _ core.Environment = (*GridWorld)(nil)

func (g *GridWorld) randomPosition() core.Position {
	row := g.rng.Intn(g.gridSize)
	col := g.rng.Intn(g.gridSize)
	return core.Position{Row: row, Col: col}
}

// validSpawn is the acceptance predicate of the monster rejection sampler
func (g *GridWorld) validSpawn(p core.Position) bool {
	return !p.Equal(g.hero) &&
		!p.Equal(g.treasure) &&
		p.Manhattan(g.hero) >= MinMonsterDistance &&
		p.Manhattan(g.treasure) >= MinMonsterDistance
}

func (g *GridWorld) spawnMonsters() error {
	for len(g.monsters) < MonsterCount {
		placed := false
		for attempt := 0; attempt < g.maxSpawnAttempts; attempt++ {
			candidate := g.randomPosition()
			if g.validSpawn(candidate) {
				g.monsters = append(g.monsters, candidate)
				g.prevMonsters = append(g.prevMonsters, candidate)
				placed = true
				break
			}
		}
		if !placed {
			log.Printf("monster %d not placed after %d attempts (grid %d, hero %s, treasure %s)",
				len(g.monsters), g.maxSpawnAttempts, g.gridSize, g.hero, g.treasure)
			return fmt.Errorf("%w: placed %d of %d monsters on a %dx%d grid",
				ErrUnsatisfiableSpawnConstraints, len(g.monsters), MonsterCount, g.gridSize, g.gridSize)
		}
	}
	return nil
}

func (g *GridWorld) moveHero(action core.Action) {
	dr, dc := action.Delta()
	g.hero = g.clamp(core.Position{Row: g.hero.Row + dr, Col: g.hero.Col + dc})
}

// moveMonsters moves each monster independently in index order. A monster
// only checks the hero and the treasure, never the other monsters.
func (g *GridWorld) moveMonsters() {
	for i, current := range g.monsters {
		g.prevMonsters[i] = current
		for attempt := 0; attempt < MonsterMoveAttempts; attempt++ {
			dr := g.rng.Intn(3) - 1
			dc := g.rng.Intn(3) - 1
			candidate := g.clamp(core.Position{Row: current.Row + dr, Col: current.Col + dc})
			if g.validMonsterMove(current, candidate) {
				g.monsters[i] = candidate
				break
			}
		}
	}
}

func (g *GridWorld) validMonsterMove(from, to core.Position) bool {
	return from.Manhattan(to) == 1 &&
		!to.Equal(g.hero) &&
		!to.Equal(g.treasure) &&
		to.Manhattan(g.treasure) >= MinMonsterDistance
}

// score evaluates the reward rules in priority order. Adjacency to a monster
// ends the episode before any other shaping is applied.
func (g *GridWorld) score() (float64, bool, core.Info) {
	for _, m := range g.monsters {
		if g.hero.Manhattan(m) == 1 {
			return CaughtReward, true, core.Info{IsSuccess: false}
		}
	}

	reward := StepCost
	for _, m := range g.monsters {
		if g.hero.Manhattan(m) <= DangerRadius {
			reward += DangerPenalty
		}
	}

	if g.hero.Euclidean(g.treasure) < g.prevHero.Euclidean(g.treasure) {
		reward += ApproachBonus
	} else {
		reward += RetreatPenalty
	}

	if g.hero.Equal(g.treasure) {
		return TreasureReward, true, core.Info{IsSuccess: true}
	}
	return reward, false, core.Info{}
}

func (g *GridWorld) clamp(p core.Position) core.Position {
	return core.Position{Row: clampInt(p.Row, 0, g.gridSize-1), Col: clampInt(p.Col, 0, g.gridSize-1)}
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
