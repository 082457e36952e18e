package environment

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/boristopalov/gridhunt/pkg/core"
)

// zeroSource makes every Intn(3) draw return 0, i.e. a (-1,-1) diagonal
// candidate, so monsters away from the top and left edges never move.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func newFrozenWorld(t *testing.T, hero, treasure core.Position, monsters ...core.Position) *GridWorld {
	t.Helper()
	g, err := NewGridWorld(WithRand(rand.New(zeroSource{})))
	if err != nil {
		t.Fatalf("Failed to create world: %v", err)
	}
	g.hero = hero
	g.prevHero = hero
	g.treasure = treasure
	g.monsters = append([]core.Position(nil), monsters...)
	g.prevMonsters = append([]core.Position(nil), monsters...)
	g.status = core.StatusActive
	return g
}

func assertReward(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("reward = %v, want %v", got, want)
	}
}

func TestResetSpawnInvariants(t *testing.T) {
	for seed := int64(1); seed <= 300; seed++ {
		g, err := NewGridWorld(WithSeed(seed))
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		obs, err := g.Reset()
		if err != nil {
			t.Fatalf("seed %d: reset failed: %v", seed, err)
		}
		if len(obs) != 106 {
			t.Fatalf("seed %d: observation length = %d, want 106", seed, len(obs))
		}
		state := g.RenderState()
		if state.Step != 0 || state.Status != core.StatusActive {
			t.Fatalf("seed %d: unexpected state after reset: %+v", seed, state)
		}
		if !state.Hero.InBounds(10) || !state.Treasure.InBounds(10) {
			t.Fatalf("seed %d: hero or treasure out of bounds: %+v", seed, state)
		}
		if len(state.Monsters) != MonsterCount {
			t.Fatalf("seed %d: got %d monsters, want %d", seed, len(state.Monsters), MonsterCount)
		}
		for _, m := range state.Monsters {
			if !m.InBounds(10) {
				t.Errorf("seed %d: monster %s out of bounds", seed, m)
			}
			if m.Equal(state.Hero) || m.Equal(state.Treasure) {
				t.Errorf("seed %d: monster %s spawned on hero or treasure", seed, m)
			}
			if m.Manhattan(state.Hero) < MinMonsterDistance || m.Manhattan(state.Treasure) < MinMonsterDistance {
				t.Errorf("seed %d: monster %s spawned too close (hero %s, treasure %s)", seed, m, state.Hero, state.Treasure)
			}
		}
	}
}

func TestStepInvariants(t *testing.T) {
	for seed := int64(1); seed <= 60; seed++ {
		g, err := NewGridWorld(WithSeed(seed))
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		if _, err := g.Reset(); err != nil {
			t.Fatalf("seed %d: reset failed: %v", seed, err)
		}
		actions := rand.New(rand.NewSource(seed * 7))
		for i := 0; i < 300; i++ {
			before := g.RenderState()
			action := core.Action(actions.Intn(core.NumActions))
			result, err := g.Step(action)
			if err != nil {
				t.Fatalf("seed %d step %d: %v", seed, i, err)
			}
			after := g.RenderState()

			if !after.Hero.InBounds(10) {
				t.Fatalf("seed %d: hero left the grid: %s", seed, after.Hero)
			}
			moved := before.Hero.Manhattan(after.Hero)
			if action == core.ActionStay && moved != 0 {
				t.Fatalf("seed %d: STAY moved the hero from %s to %s", seed, before.Hero, after.Hero)
			}
			if moved > 1 {
				t.Fatalf("seed %d: hero jumped from %s to %s", seed, before.Hero, after.Hero)
			}
			for j, m := range after.Monsters {
				d := before.Monsters[j].Manhattan(m)
				if d > 1 {
					t.Fatalf("seed %d: monster %d jumped from %s to %s", seed, j, before.Monsters[j], m)
				}
				if d == 1 && (m.Equal(after.Hero) || m.Equal(after.Treasure)) {
					t.Fatalf("seed %d: monster %d moved onto hero or treasure at %s", seed, j, m)
				}
				if m.Manhattan(after.Treasure) < MinMonsterDistance {
					t.Fatalf("seed %d: monster %d at %s too close to treasure %s", seed, j, m, after.Treasure)
				}
				if !m.InBounds(10) {
					t.Fatalf("seed %d: monster %d out of bounds at %s", seed, j, m)
				}
			}
			if len(result.Observation) != core.ObservationLen(10) {
				t.Fatalf("seed %d: observation length changed to %d", seed, len(result.Observation))
			}
			if after.Step != i+1 {
				t.Fatalf("seed %d: step counter = %d, want %d", seed, after.Step, i+1)
			}
			if result.Done {
				break
			}
		}
	}
}

func TestStepFirstMoveTowardTreasure(t *testing.T) {
	g := newFrozenWorld(t,
		core.Position{Row: 0, Col: 0},
		core.Position{Row: 5, Col: 5},
		core.Position{Row: 9, Col: 9}, core.Position{Row: 8, Col: 2}, core.Position{Row: 2, Col: 8},
	)
	result, err := g.Step(core.ActionRight)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if got := g.RenderState().Hero; got != (core.Position{Row: 0, Col: 1}) {
		t.Errorf("hero = %s, want (0,1)", got)
	}
	assertReward(t, result.Reward, 2.9)
	if result.Done {
		t.Error("episode should not be done")
	}
	if result.Info.IsSuccess {
		t.Error("info should not report success")
	}
}

func TestRewardRules(t *testing.T) {
	far := []core.Position{{Row: 9, Col: 9}, {Row: 9, Col: 5}, {Row: 5, Col: 9}}

	t.Run("retreating costs one", func(t *testing.T) {
		g := newFrozenWorld(t, core.Position{Row: 2, Col: 5}, core.Position{Row: 2, Col: 9}, far...)
		result, err := g.Step(core.ActionLeft)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		assertReward(t, result.Reward, -1.1)
	})

	t.Run("blocked move counts as no progress", func(t *testing.T) {
		g := newFrozenWorld(t, core.Position{Row: 0, Col: 0}, core.Position{Row: 0, Col: 4}, far...)
		result, err := g.Step(core.ActionUp)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if got := g.RenderState().Hero; got != (core.Position{Row: 0, Col: 0}) {
			t.Errorf("hero moved off the grid edge to %s", got)
		}
		assertReward(t, result.Reward, -1.1)
	})

	t.Run("each nearby monster costs five", func(t *testing.T) {
		g := newFrozenWorld(t,
			core.Position{Row: 5, Col: 5},
			core.Position{Row: 0, Col: 0},
			core.Position{Row: 5, Col: 7}, core.Position{Row: 7, Col: 5}, core.Position{Row: 9, Col: 9},
		)
		result, err := g.Step(core.ActionStay)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		assertReward(t, result.Reward, -0.1-5-5-1)
		if result.Done {
			t.Error("distance two should not end the episode")
		}
	})

	t.Run("adjacent monster ends the episode", func(t *testing.T) {
		g := newFrozenWorld(t,
			core.Position{Row: 5, Col: 5},
			core.Position{Row: 0, Col: 0},
			core.Position{Row: 5, Col: 7}, core.Position{Row: 9, Col: 9}, core.Position{Row: 9, Col: 2},
		)
		result, err := g.Step(core.ActionRight)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		assertReward(t, result.Reward, CaughtReward)
		if !result.Done {
			t.Error("expected done")
		}
		if result.Info.IsSuccess {
			t.Error("failure should report IsSuccess=false")
		}
		if g.Status() != core.StatusFailure {
			t.Errorf("status = %s, want %s", g.Status(), core.StatusFailure)
		}
	})

	t.Run("adjacency takes priority over the treasure", func(t *testing.T) {
		g := newFrozenWorld(t,
			core.Position{Row: 5, Col: 5},
			core.Position{Row: 5, Col: 6},
			core.Position{Row: 5, Col: 7}, core.Position{Row: 9, Col: 9}, core.Position{Row: 9, Col: 2},
		)
		result, err := g.Step(core.ActionRight)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		assertReward(t, result.Reward, CaughtReward)
		if result.Info.IsSuccess {
			t.Error("adjacency must not report success")
		}
	})

	t.Run("reaching the treasure succeeds", func(t *testing.T) {
		g := newFrozenWorld(t, core.Position{Row: 5, Col: 5}, core.Position{Row: 5, Col: 6}, far...)
		result, err := g.Step(core.ActionRight)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		assertReward(t, result.Reward, TreasureReward)
		if !result.Done || !result.Info.IsSuccess {
			t.Errorf("expected successful termination, got %+v", result.Info)
		}
		if g.Status() != core.StatusSuccess {
			t.Errorf("status = %s, want %s", g.Status(), core.StatusSuccess)
		}
	})
}

func TestFrozenMonstersStayPut(t *testing.T) {
	monsters := []core.Position{{Row: 9, Col: 9}, {Row: 9, Col: 5}, {Row: 5, Col: 9}}
	g := newFrozenWorld(t, core.Position{Row: 1, Col: 1}, core.Position{Row: 1, Col: 3}, monsters...)
	if _, err := g.Step(core.ActionStay); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if got := g.RenderState().Monsters; !reflect.DeepEqual(got, monsters) {
		t.Errorf("monsters = %v, want %v", got, monsters)
	}
}

func TestStepErrors(t *testing.T) {
	t.Run("step before reset", func(t *testing.T) {
		g, err := NewGridWorld(WithSeed(1))
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		if _, err := g.Step(core.ActionUp); !errors.Is(err, ErrEpisodeNotStarted) {
			t.Errorf("expected ErrEpisodeNotStarted, got %v", err)
		}
	})

	t.Run("invalid action", func(t *testing.T) {
		g, err := NewGridWorld(WithSeed(1))
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		if _, err := g.Reset(); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		for _, a := range []core.Action{-1, 5, 42} {
			if _, err := g.Step(a); !errors.Is(err, ErrInvalidAction) {
				t.Errorf("action %d: expected ErrInvalidAction, got %v", a, err)
			}
		}
		if g.StepCount() != 0 {
			t.Errorf("rejected actions advanced the step counter to %d", g.StepCount())
		}
	})

	t.Run("step after termination", func(t *testing.T) {
		g := newFrozenWorld(t,
			core.Position{Row: 5, Col: 5},
			core.Position{Row: 5, Col: 6},
			core.Position{Row: 9, Col: 9}, core.Position{Row: 9, Col: 5}, core.Position{Row: 5, Col: 9},
		)
		if _, err := g.Step(core.ActionRight); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if _, err := g.Step(core.ActionStay); !errors.Is(err, ErrEpisodeAlreadyDone) {
			t.Errorf("expected ErrEpisodeAlreadyDone, got %v", err)
		}
		g.rng = rand.New(rand.NewSource(1))
		if _, err := g.Reset(); err != nil {
			t.Fatalf("reset after termination failed: %v", err)
		}
		if _, err := g.Step(core.ActionStay); err != nil {
			t.Errorf("step after reset failed: %v", err)
		}
	})

	t.Run("unsatisfiable spawn", func(t *testing.T) {
		g, err := NewGridWorld(WithGridSize(2), WithSeed(3), WithMaxSpawnAttempts(50))
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		if _, err := g.Reset(); !errors.Is(err, ErrUnsatisfiableSpawnConstraints) {
			t.Fatalf("expected ErrUnsatisfiableSpawnConstraints, got %v", err)
		}
		if _, err := g.Step(core.ActionStay); !errors.Is(err, ErrEpisodeNotStarted) {
			t.Errorf("expected ErrEpisodeNotStarted after failed reset, got %v", err)
		}
	})

	t.Run("invalid construction", func(t *testing.T) {
		if _, err := NewGridWorld(WithGridSize(0)); err == nil {
			t.Error("expected error for zero grid size")
		}
		if _, err := NewGridWorld(WithMaxSpawnAttempts(0)); err == nil {
			t.Error("expected error for zero spawn attempts")
		}
	})
}

func TestObservationEncoding(t *testing.T) {
	g := newFrozenWorld(t,
		core.Position{Row: 2, Col: 3},
		core.Position{Row: 7, Col: 1},
		core.Position{Row: 9, Col: 9}, core.Position{Row: 5, Col: 5}, core.Position{Row: 0, Col: 9},
	)
	obs := g.Observe()
	if len(obs) != 106 {
		t.Fatalf("observation length = %d, want 106", len(obs))
	}

	want := map[int]float64{23: 1, 71: 0.5, 99: -1, 55: -1, 9: -1}
	ones := 0
	for i := 0; i < 100; i++ {
		if obs[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, obs[i], want[i])
		}
		if obs[i] == 1 {
			ones++
		}
	}
	if ones != 1 {
		t.Errorf("occupancy map has %d hero cells, want 1", ones)
	}

	tail := []float64{0.5, -0.2, 1.3, 0.5, 0.8, 0}
	if got := []float64(obs[100:]); !reflect.DeepEqual(got, tail) {
		t.Errorf("features = %v, want %v", got, tail)
	}

	t.Run("proximity flag", func(t *testing.T) {
		g := newFrozenWorld(t, core.Position{Row: 4, Col: 4}, core.Position{Row: 4, Col: 5}, core.Position{Row: 9, Col: 9})
		if got := g.Observe()[105]; got != 1 {
			t.Errorf("proximity flag = %v, want 1", got)
		}
	})

	t.Run("missing monsters are padded", func(t *testing.T) {
		g := newFrozenWorld(t, core.Position{Row: 0, Col: 0}, core.Position{Row: 5, Col: 5}, core.Position{Row: 3, Col: 4})
		obs := g.Observe()
		if got := []float64(obs[102:105]); !reflect.DeepEqual(got, []float64{0.7, 1, 1}) {
			t.Errorf("monster distances = %v, want [0.7 1 1]", got)
		}
	})

	t.Run("overlaps resolve by write order", func(t *testing.T) {
		g := newFrozenWorld(t, core.Position{Row: 1, Col: 1}, core.Position{Row: 1, Col: 1}, core.Position{Row: 6, Col: 6})
		obs := g.Observe()
		if obs[11] != core.TreasureCell {
			t.Errorf("hero/treasure overlap = %v, want %v", obs[11], core.TreasureCell)
		}
		g = newFrozenWorld(t, core.Position{Row: 0, Col: 0}, core.Position{Row: 6, Col: 6}, core.Position{Row: 6, Col: 6})
		obs = g.Observe()
		if obs[66] != core.MonsterCell {
			t.Errorf("treasure/monster overlap = %v, want %v", obs[66], core.MonsterCell)
		}
	})
}

func TestDeterministicEpisodes(t *testing.T) {
	run := func() ([]core.Observation, []float64, []bool) {
		g, err := NewGridWorld(WithSeed(42))
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		var (
			observations []core.Observation
			rewards      []float64
			dones        []bool
		)
		actions := []core.Action{core.ActionRight, core.ActionDown, core.ActionStay, core.ActionLeft, core.ActionUp}
		for episode := 0; episode < 3; episode++ {
			obs, err := g.Reset()
			if err != nil {
				t.Fatalf("reset failed: %v", err)
			}
			observations = append(observations, obs)
			for i := 0; i < 40; i++ {
				result, err := g.Step(actions[i%len(actions)])
				if err != nil {
					t.Fatalf("step failed: %v", err)
				}
				observations = append(observations, result.Observation)
				rewards = append(rewards, result.Reward)
				dones = append(dones, result.Done)
				if result.Done {
					break
				}
			}
		}
		return observations, rewards, dones
	}

	obs1, rewards1, dones1 := run()
	obs2, rewards2, dones2 := run()
	if !reflect.DeepEqual(obs1, obs2) {
		t.Error("observations differ between identically seeded runs")
	}
	if !reflect.DeepEqual(rewards1, rewards2) {
		t.Error("rewards differ between identically seeded runs")
	}
	if !reflect.DeepEqual(dones1, dones2) {
		t.Error("done flags differ between identically seeded runs")
	}
}
