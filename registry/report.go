package registry

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintProfileReport renders the accumulated per-function profiling
// data as a table.
func (r *Registry) PrintProfileReport() {
	r.mu.Lock()
	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	snapshot := make(map[string]*profile, len(r.profiles))
	for _, k := range keys {
		p := *r.profiles[k]
		snapshot[k] = &p
	}
	r.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Function", "Calls", "Self", "Tree"})
	for _, k := range keys {
		p := snapshot[k]
		t.AppendRow(table.Row{k, p.Calls, p.Self, p.Tree})
	}
	t.Render()
}
