package environment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/boristopalov/gridhunt/pkg/core"
)

const (
	DefaultGridSize         = 10
	DefaultMaxSpawnAttempts = 10000
)

// GridWorld owns all simulation state for one hero, one treasure and
// MonsterCount monsters. It is not safe for concurrent use.
type GridWorld struct {
	gridSize         int
	maxSpawnAttempts int
	rng              *rand.Rand

	hero         core.Position
	prevHero     core.Position
	treasure     core.Position
	monsters     []core.Position
	prevMonsters []core.Position
	step         int
	status       core.Status
}

type worldParams struct {
	gridSize         int
	maxSpawnAttempts int
	rng              *rand.Rand
}

type Option func(*worldParams)

func WithGridSize(n int) Option {
	return func(p *worldParams) {
		p.gridSize = n
	}
}

// WithRand sets the random source. Every draw made by Reset and Step comes
// from it, so a seeded source makes episodes reproducible.
func WithRand(r *rand.Rand) Option {
	return func(p *worldParams) {
		p.rng = r
	}
}

func WithSeed(seed int64) Option {
	return func(p *worldParams) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

// WithMaxSpawnAttempts bounds the rejection sampler per monster
func WithMaxSpawnAttempts(n int) Option {
	return func(p *worldParams) {
		p.maxSpawnAttempts = n
	}
}

func defaultWorldParams() *worldParams {
	return &worldParams{
		gridSize:         DefaultGridSize,
		maxSpawnAttempts: DefaultMaxSpawnAttempts,
	}
}

// NewGridWorld creates an idle world; call Reset before the first Step
func NewGridWorld(opts ...Option) (*GridWorld, error) {
	params := defaultWorldParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.gridSize < 1 {
		return nil, fmt.Errorf("grid size must be positive (got %d)", params.gridSize)
	}
	if params.maxSpawnAttempts < 1 {
		return nil, fmt.Errorf("max spawn attempts must be positive (got %d)", params.maxSpawnAttempts)
	}
	if params.rng == nil {
		params.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GridWorld{
		gridSize:         params.gridSize,
		maxSpawnAttempts: params.maxSpawnAttempts,
		rng:              params.rng,
		monsters:         make([]core.Position, 0, MonsterCount),
		prevMonsters:     make([]core.Position, 0, MonsterCount),
		status:           core.StatusIdle,
	}, nil
}

func (g *GridWorld) GridSize() int {
	return g.gridSize
}

func (g *GridWorld) Status() core.Status {
	return g.status
}

func (g *GridWorld) StepCount() int {
	return g.step
}

// Reset places the hero, the treasure and the monsters for a new episode.
// No state carries over from the previous episode.
func (g *GridWorld) Reset() (core.Observation, error) {
	g.status = core.StatusIdle
	g.step = 0
	g.hero = g.randomPosition()
	g.prevHero = g.hero
	g.treasure = g.randomPosition()
	g.monsters = g.monsters[:0]
	g.prevMonsters = g.prevMonsters[:0]

	if err := g.spawnMonsters(); err != nil {
		return nil, err
	}
	g.status = core.StatusActive
	return g.Observe(), nil
}

// Step moves the hero, then each monster, then scores the new state.
// Terminal states are absorbing: stepping again returns ErrEpisodeAlreadyDone.
func (g *GridWorld) Step(action core.Action) (core.StepResult, error) {
	if !action.Valid() {
		return core.StepResult{}, fmt.Errorf("%w: %d", ErrInvalidAction, int(action))
	}
	switch {
	case g.status == core.StatusIdle:
		return core.StepResult{}, ErrEpisodeNotStarted
	case g.status.Terminal():
		return core.StepResult{}, ErrEpisodeAlreadyDone
	}

	g.step++
	g.prevHero = g.hero
	g.moveHero(action)
	g.moveMonsters()

	reward, done, info := g.score()
	if done {
		if info.IsSuccess {
			g.status = core.StatusSuccess
		} else {
			g.status = core.StatusFailure
		}
	}
	return core.StepResult{
		Observation: g.Observe(),
		Reward:      reward,
		Done:        done,
		Info:        info,
	}, nil
}

// Observe encodes the current state. The layout is a contract with trained
// policies: occupancy map, treasure offset, monster distances, proximity flag.
func (g *GridWorld) Observe() core.Observation {
	n := g.gridSize
	obs := make(core.Observation, core.ObservationLen(n))

	// write order hero, treasure, monsters: later entities overwrite earlier ones
	obs[g.cellIndex(g.hero)] = core.HeroCell
	obs[g.cellIndex(g.treasure)] = core.TreasureCell
	for _, m := range g.monsters {
		obs[g.cellIndex(m)] = core.MonsterCell
	}

	scale := float64(n)
	i := n * n
	obs[i] = float64(g.treasure.Row-g.hero.Row) / scale
	obs[i+1] = float64(g.treasure.Col-g.hero.Col) / scale
	i += 2
	for slot := 0; slot < core.MonsterSlots; slot++ {
		if slot < len(g.monsters) {
			obs[i+slot] = float64(g.hero.Manhattan(g.monsters[slot])) / scale
		} else {
			obs[i+slot] = 1.0
		}
	}
	i += core.MonsterSlots
	if g.hero.Manhattan(g.treasure) <= 1 {
		obs[i] = 1
	}
	return obs
}

func (g *GridWorld) RenderState() core.RenderState {
	monsters := make([]core.Position, len(g.monsters))
	copy(monsters, g.monsters)
	return core.RenderState{
		GridSize: g.gridSize,
		Step:     g.step,
		Status:   g.status,
		Hero:     g.hero,
		Treasure: g.treasure,
		Monsters: monsters,
	}
}

func (g *GridWorld) cellIndex(p core.Position) int {
	return p.Row*g.gridSize + p.Col
}
