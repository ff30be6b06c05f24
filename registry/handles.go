package registry

import "sync"

// handleSpace allocates stable, never-reused small integers for one
// class of name (windows, data items, functions, or modules): a
// name-to-id map plus its inverse, with a monotonically increasing
// distribution counter.
type handleSpace struct {
	mu          sync.Mutex
	distributed int
	nameToID    map[string]int
	idToName    map[int]string
}

func newHandleSpace() *handleSpace {
	return &handleSpace{
		nameToID: make(map[string]int),
		idToName: make(map[int]string),
	}
}

// register assigns a fresh handle to name, or returns the existing one
// if name was already registered. Registration is idempotent by name so
// that repeated lookups of the same window/function do not burn through
// the handle space.
func (h *handleSpace) register(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id, ok := h.nameToID[name]; ok {
		return id
	}
	id := h.distributed
	h.distributed++
	h.nameToID[name] = id
	h.idToName[id] = name
	return id
}

// lookup returns the handle for name and whether it is still live.
func (h *handleSpace) lookup(name string) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.nameToID[name]
	return id, ok
}

// name returns the name last registered under id, even if it has since
// been released, for diagnostics and for resolving a handle back to a
// "window.thing" key.
func (h *handleSpace) name(id int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.idToName[id]
	return n, ok
}

// release invalidates name's handle. The integer itself is never
// reused within a run: it is simply removed
// from nameToID so future lookups of that name fail, while idToName
// keeps the historical mapping for diagnostics.
func (h *handleSpace) release(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.nameToID, name)
}
