package overlay

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// DumpAreas renders a per-blue-face accounting of the refinement's
// subface areas, the diagnostic used to eyeball where an area-
// conservation failure comes from before the invariant check aborts a
// run.
func DumpAreas(w io.Writer, blue Surface, subfaces []Subface) {
	type key struct{ pane, face int }
	byBlue := make(map[key]float64)
	count := make(map[key]int)
	for _, sf := range subfaces {
		k := key{sf.BluePane, sf.BlueFace}
		byBlue[k] += sf.Area()
		count[k]++
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Blue Face", "Face Area", "Subface Area", "Subfaces"})
	var faceTotal, subTotal float64
	for _, m := range blue.Panes {
		for i, f := range m.Faces {
			k := key{m.PaneID, i}
			area := PolygonArea(f)
			faceTotal += area
			subTotal += byBlue[k]
			t.AppendRow(table.Row{fmt.Sprintf("%d/%d", m.PaneID, i), area, byBlue[k], count[k]})
		}
	}
	t.AppendFooter(table.Row{"total", faceTotal, subTotal, len(subfaces)})
	t.Render()
}
