package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/boristopalov/gridhunt/pkg/core"
	"github.com/boristopalov/gridhunt/pkg/memory"
	"github.com/google/uuid"
)

const (
	SYSTEM_PROMPT = `You control a hero on a square grid. Your goal is to reach the treasure. Three monsters wander the grid one cell at a time. If a monster ends a turn next to you (one step away, not diagonal) you lose immediately. Being two cells from a monster costs points. Every move costs a little, moving closer to the treasure earns points, and reaching the treasure wins the game.`

	ACTION_PROMPT_TEMPLATE = `Your name is %s. This is turn %d.

Board (row 0 is the top; H = you, T = treasure, M = monster, . = empty):
%s
The treasure is %d rows and %d columns away from you (positive means down/right).
Distances from you to each monster (in steps): %s.

Your recent turns:
%s

Choose one move: UP, DOWN, LEFT, RIGHT or STAY. Very briefly think step by step about which move keeps you safe and gets you closer to the treasure, then give your answer after the string "ANSWER" like so: ANSWER: RIGHT`
)

var answerPattern = regexp.MustCompile(`(?i)ANSWER:\s*\**\s*([A-Za-z]+)`)

var (
	_ core.Policy       = (*LLMPolicy)(nil)
	_ core.StepObserver = (*LLMPolicy)(nil)
)

// LLMClient is the subset of a model provider the policy needs
type LLMClient interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type ModelInfo struct {
	Id     string         // e.g. "gpt-4o-mini"
	Config map[string]any // model-specific configuration
}

// LLMPolicy asks a language model for each move. It remembers recent turns
// of the current episode and feeds them back into the prompt.
type LLMPolicy struct {
	id       string
	model    ModelInfo
	client   LLMClient
	gridSize int
	memory   *memory.Memory
	turn     int
}

type PolicyParams struct {
	Client         LLMClient
	Model          ModelInfo
	PolicyID       string
	GridSize       int
	MemoryCapacity int
}

type PolicyOption func(*PolicyParams)

func WithClient(c LLMClient) PolicyOption {
	return func(p *PolicyParams) {
		p.Client = c
	}
}

func WithModel(model ModelInfo) PolicyOption {
	return func(p *PolicyParams) {
		p.Model = model
	}
}

func WithPolicyID(id string) PolicyOption {
	return func(p *PolicyParams) {
		p.PolicyID = id
	}
}

func WithGridSize(n int) PolicyOption {
	return func(p *PolicyParams) {
		p.GridSize = n
	}
}

func WithMemoryCapacity(n int) PolicyOption {
	return func(p *PolicyParams) {
		p.MemoryCapacity = n
	}
}

func defaultPolicyParams() *PolicyParams {
	return &PolicyParams{
		Model: ModelInfo{
			Id:     "gpt-4o-mini",
			Config: make(map[string]any),
		},
		PolicyID:       "policy-" + uuid.New().String(),
		GridSize:       10,
		MemoryCapacity: 8,
	}
}

// NewLLMPolicy creates a policy backed by a model provider
func NewLLMPolicy(opts ...PolicyOption) (*LLMPolicy, error) {
	params := defaultPolicyParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Client == nil {
		return nil, errors.New("llm policy requires a client")
	}
	if params.GridSize < 1 {
		return nil, fmt.Errorf("invalid grid size %d", params.GridSize)
	}

	return &LLMPolicy{
		id:       params.PolicyID,
		model:    params.Model,
		client:   params.Client,
		gridSize: params.GridSize,
		memory:   memory.NewMemory(params.MemoryCapacity),
	}, nil
}

func (p *LLMPolicy) GetID() string {
	return p.id
}

func (p *LLMPolicy) GetModel() ModelInfo {
	return p.model
}

func (p *LLMPolicy) GetMemory() *memory.Memory {
	return p.memory
}

// SelectAction prompts the model with the decoded board. Answers that cannot
// be parsed fall back to STAY; provider errors are returned.
func (p *LLMPolicy) SelectAction(ctx context.Context, obs core.Observation) (core.Action, error) {
	view, err := core.DecodeObservation(obs, p.gridSize)
	if err != nil {
		return core.ActionStay, fmt.Errorf("llm policy: %w", err)
	}
	prompt := SYSTEM_PROMPT + "\n\n" + p.buildPrompt(view)

	response, err := p.client.Complete(ctx, p.model.Id, prompt)
	if err != nil {
		return core.ActionStay, fmt.Errorf("failed to generate response: %w", err)
	}

	action, err := parseActionResponse(response)
	if err != nil {
		log.Printf("Warning: policy %s: %v; staying put", p.id, err)
		return core.ActionStay, nil
	}
	return action, nil
}

func (p *LLMPolicy) BeginEpisode() {
	p.memory.Reset()
	p.turn = 0
}

func (p *LLMPolicy) ObserveStep(action core.Action, result core.StepResult) {
	p.turn++
	entry := fmt.Sprintf("Turn %d: I moved %s and received %.2f points", p.turn, action, result.Reward)
	if result.Done {
		if result.Info.IsSuccess {
			entry += ", reaching the treasure"
		} else {
			entry += ", and a monster caught me"
		}
	}
	if err := p.memory.Store(entry); err != nil {
		log.Printf("Warning: Failed to store memory for policy %s: %v", p.id, err)
	}
}

func (p *LLMPolicy) buildPrompt(view core.ObservationView) string {
	history := p.memory.GetAllMessages()
	recent := "This is the first turn, so there is no history yet."
	if len(history) > 0 {
		recent = strings.Join(history, "\n")
	}

	distances := make([]string, 0, core.MonsterSlots)
	for _, d := range view.MonsterDistances {
		distances = append(distances, fmt.Sprintf("%d", d))
	}

	return fmt.Sprintf(ACTION_PROMPT_TEMPLATE,
		p.id,
		p.turn+1,
		boardText(view),
		view.TreasureRow,
		view.TreasureCol,
		strings.Join(distances, ", "),
		recent,
	)
}

func boardText(view core.ObservationView) string {
	n := view.GridSize
	cells := make([][]byte, n)
	for r := range cells {
		cells[r] = []byte(strings.Repeat(".", n))
	}
	set := func(p core.Position, c byte) {
		if p.InBounds(n) {
			cells[p.Row][p.Col] = c
		}
	}
	set(view.Treasure, 'T')
	set(view.Hero, 'H')
	for _, m := range view.Monsters {
		set(m, 'M')
	}

	var sb strings.Builder
	for _, row := range cells {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// parseActionResponse finds the move named after "ANSWER:"
func parseActionResponse(response string) (core.Action, error) {
	matches := answerPattern.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return core.ActionStay, fmt.Errorf("could not find answer in response: %s", response)
	}
	// the last answer wins when the model restates itself
	last := matches[len(matches)-1]
	action, err := core.ParseAction(last[1])
	if err != nil {
		return core.ActionStay, fmt.Errorf("could not parse action: %w", err)
	}
	return action, nil
}
