package core

import "fmt"

// Cell values written into the occupancy map
const (
	HeroCell     = 1.0
	TreasureCell = 0.5
	MonsterCell  = -1.0
)

// MonsterSlots is the number of monster distance features in an observation
const MonsterSlots = 3

// ObservationLen returns gridSize² occupancy cells plus 2 treasure offsets,
// MonsterSlots distances and the proximity flag.
func ObservationLen(gridSize int) int {
	return gridSize*gridSize + 2 + MonsterSlots + 1
}

// ObservationView is a decoded observation
type ObservationView struct {
	GridSize int
	// Hero is read from the map when HeroVisible, otherwise derived from
	// the treasure cell and the treasure offset
	Hero            Position
	HeroVisible     bool
	Treasure        Position
	TreasureVisible bool
	Monsters        []Position
	// TreasureRow and TreasureCol are (treasure - hero) in cells
	TreasureRow      int
	TreasureCol      int
	MonsterDistances [MonsterSlots]int
	NearTreasure     bool
}

// DecodeObservation reverses the observation encoding for a known grid size
func DecodeObservation(obs Observation, gridSize int) (ObservationView, error) {
	if gridSize <= 0 {
		return ObservationView{}, fmt.Errorf("invalid grid size %d", gridSize)
	}
	if len(obs) != ObservationLen(gridSize) {
		return ObservationView{}, fmt.Errorf("observation length %d does not match grid size %d", len(obs), gridSize)
	}
	view := ObservationView{GridSize: gridSize}
	cells := gridSize * gridSize
	for i := 0; i < cells; i++ {
		pos := Position{Row: i / gridSize, Col: i % gridSize}
		switch obs[i] {
		case HeroCell:
			view.Hero = pos
			view.HeroVisible = true
		case TreasureCell:
			view.Treasure = pos
			view.TreasureVisible = true
		case MonsterCell:
			view.Monsters = append(view.Monsters, pos)
		}
	}
	scale := float64(gridSize)
	view.TreasureRow = roundInt(obs[cells] * scale)
	view.TreasureCol = roundInt(obs[cells+1] * scale)
	for i := 0; i < MonsterSlots; i++ {
		view.MonsterDistances[i] = roundInt(obs[cells+2+i] * scale)
	}
	view.NearTreasure = obs[cells+2+MonsterSlots] == 1
	switch {
	case !view.HeroVisible && view.TreasureVisible:
		view.Hero = Position{Row: view.Treasure.Row - view.TreasureRow, Col: view.Treasure.Col - view.TreasureCol}
	case view.HeroVisible && !view.TreasureVisible:
		view.Treasure = Position{Row: view.Hero.Row + view.TreasureRow, Col: view.Hero.Col + view.TreasureCol}
	}
	return view, nil
}

func roundInt(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
