package viewer

import (
	"fmt"
	"strings"

	"github.com/boristopalov/gridhunt/pkg/core"
)

// Frame draws state as text: H hero, T treasure, M monster, . empty.
// Monsters are drawn last, so a monster on the hero's cell shows as M.
func Frame(state core.RenderState) string {
	n := state.GridSize
	if n < 1 {
		return ""
	}
	cells := make([][]byte, n)
	for r := range cells {
		cells[r] = []byte(strings.Repeat(".", n))
	}
	put := func(p core.Position, c byte) {
		if p.InBounds(n) {
			cells[p.Row][p.Col] = c
		}
	}
	put(state.Hero, 'H')
	put(state.Treasure, 'T')
	for _, m := range state.Monsters {
		put(m, 'M')
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "step %d  %s\n", state.Step, state.Status)
	border := "+" + strings.Repeat("-", n) + "+\n"
	sb.WriteString(border)
	for _, row := range cells {
		sb.WriteByte('|')
		sb.Write(row)
		sb.WriteString("|\n")
	}
	sb.WriteString(border)
	return sb.String()
}
