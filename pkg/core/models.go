package core

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Position is a cell on the grid; Row grows downwards, Col grows rightwards
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) Equal(other Position) bool {
	return p.Row == other.Row && p.Col == other.Col
}

// Manhattan returns the sum of absolute coordinate differences
func (p Position) Manhattan(other Position) int {
	return absInt(p.Row-other.Row) + absInt(p.Col-other.Col)
}

// Euclidean returns the straight-line distance between two cells
func (p Position) Euclidean(other Position) float64 {
	return floats.Distance(
		[]float64{float64(p.Row), float64(p.Col)},
		[]float64{float64(other.Row), float64(other.Col)},
		2,
	)
}

func (p Position) InBounds(gridSize int) bool {
	return p.Row >= 0 && p.Row < gridSize && p.Col >= 0 && p.Col < gridSize
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	ActionStay
)

// NumActions is the size of the discrete action space
const NumActions = 5

var actionNames = [NumActions]string{"UP", "DOWN", "LEFT", "RIGHT", "STAY"}

func (a Action) Valid() bool {
	return a >= ActionUp && a <= ActionStay
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// Delta returns the row and column offset of the action
func (a Action) Delta() (int, int) {
	switch a {
	case ActionUp:
		return -1, 0
	case ActionDown:
		return 1, 0
	case ActionLeft:
		return 0, -1
	case ActionRight:
		return 0, 1
	}
	return 0, 0
}

// ParseAction accepts action names (case-insensitive) and single-letter forms
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP", "U":
		return ActionUp, nil
	case "DOWN", "D":
		return ActionDown, nil
	case "LEFT", "L":
		return ActionLeft, nil
	case "RIGHT", "R":
		return ActionRight, nil
	case "STAY", "S", "WAIT":
		return ActionStay, nil
	}
	return ActionStay, fmt.Errorf("unknown action %q", s)
}

// Observation is the fixed-length feature vector handed to a policy
type Observation []float64

// Info carries auxiliary step data. IsSuccess is always set so trackers
// can read it on every terminal step.
type Info struct {
	IsSuccess bool `json:"is_success"`
}

type StepResult struct {
	Observation Observation `json:"observation"`
	Reward      float64     `json:"reward"`
	Done        bool        `json:"done"`
	Info        Info        `json:"info"`
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusActive  Status = "active"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Terminal reports whether no further steps are allowed
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// RenderState is the snapshot consumed by display sinks
type RenderState struct {
	GridSize int        `json:"grid_size"`
	Step     int        `json:"step"`
	Status   Status     `json:"status"`
	Hero     Position   `json:"hero"`
	Treasure Position   `json:"treasure"`
	Monsters []Position `json:"monsters"`
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
