// Package registry implements the process-wide catalog:
// window/data item/function/module handles, the
// init/finalize lifecycle, module load/unload with nested windows, the
// error-policy toggle, and per-function profiling.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/window"
)

// LevelTrace is a custom slog level for dispatch/profiling tracing,
// sitting just above Info so hosts can enable it without debug noise.
const LevelTrace = slog.LevelInfo + 1

// ErrorMode selects whether public operations throw (panic with a
// *errs.Error) or return an error code, process-wide.
type ErrorMode int

const (
	// ErrorCodeMode returns errors normally; this is the default.
	ErrorCodeMode ErrorMode = iota
	// ExceptionMode panics with the *errs.Error on any failure; callers
	// are expected to recover() at a boundary they control.
	ExceptionMode
)

// Communicator is the message-passing group bound to a window.
type Communicator struct {
	name string
	rank int
	size int
}

// NewCommunicator creates a communicator for a group of the given size,
// with this process occupying rank.
func NewCommunicator(name string, rank, size int) Communicator {
	return Communicator{name: name, rank: rank, size: size}
}

func (c Communicator) Rank() int    { return c.rank }
func (c Communicator) Size() int    { return c.size }
func (c Communicator) Name() string { return c.name }

// profile accumulates per-function call counts and self/tree wall-clock
// time, maintained by a depth counter and a stack of entry timestamps.
type profile struct {
	Calls int
	Self  time.Duration
	Tree  time.Duration
}

// Registry is the process-wide singleton. Exactly one instance may be
// initialized per process; double-init fails.
type Registry struct {
	mu sync.Mutex

	windows     map[string]*window.Window
	windowH     *handleSpace
	dataitemH   *handleSpace
	functionH   *handleSpace
	moduleH     *handleSpace
	modules     map[string]*loadedModule
	defaultComm Communicator

	errorMode ErrorMode

	profilingEnabled bool
	barrierOnEntry   map[string]bool
	profiles         map[string]*profile
	callStack        []string
	monitor          *monitoring.Monitor

	initialized bool
	lastError   error
}

var (
	singleton     *Registry
	singletonOnce sync.Mutex
)

// Init creates the process-wide registry singleton and captures the
// default communicator (the world group). Calling Init twice fails.
func Init(argv []string) (*Registry, error) {
	singletonOnce.Lock()
	defer singletonOnce.Unlock()

	if singleton != nil {
		return nil, errs.New(errs.AlreadyInitialized, "registry.init", "registry already initialized")
	}

	r := &Registry{
		windows:        make(map[string]*window.Window),
		windowH:        newHandleSpace(),
		dataitemH:      newHandleSpace(),
		functionH:      newHandleSpace(),
		moduleH:        newHandleSpace(),
		modules:        make(map[string]*loadedModule),
		defaultComm:    NewCommunicator("world", 0, 1),
		barrierOnEntry: make(map[string]bool),
		profiles:       make(map[string]*profile),
		initialized:    true,
	}
	singleton = r

	atexit.Register(func() {
		_ = r.Finalize()
	})

	return r, nil
}

// Finalize tears down every window: it unloads every module first, then
// deletes the remaining windows. It makes no check for outstanding
// requests and leaves the default communicator as it is. It is safe to
// call more than once.
func (r *Registry) Finalize() error {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return nil
	}
	moduleNames := make([]string, 0, len(r.modules))
	for name := range r.modules {
		moduleNames = append(moduleNames, name)
	}
	r.mu.Unlock()

	for _, name := range moduleNames {
		_ = r.unloadModule(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.windows {
		delete(r.windows, name)
		r.windowH.release(name)
	}

	r.initialized = false
	singletonOnce.Lock()
	if singleton == r {
		singleton = nil
	}
	singletonOnce.Unlock()
	return nil
}

// SetDefaultCommunicator rebinds the communicator used by subsequent
// window creations that omit one.
func (r *Registry) SetDefaultCommunicator(c Communicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultComm = c
}

// SetErrorMode toggles throwing mode vs. error-code mode.
func (r *Registry) SetErrorMode(m ErrorMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorMode = m
}

// fail is the single point every public operation funnels errors
// through: it records the last error for get_last_error/get_error_code,
// and panics in exception mode.
func (r *Registry) fail(err error) error {
	if err == nil {
		return nil
	}
	r.lastError = err
	if r.errorMode == ExceptionMode {
		panic(err)
	}
	return err
}

// GetLastError returns the trace string of the last recorded failure.
func (r *Registry) GetLastError() string {
	return errs.Trace(r.lastError)
}

// GetErrorCode returns the Kind of the last recorded failure.
func (r *Registry) GetErrorCode() (errs.Kind, bool) {
	var ce *errs.Error
	if r.lastError == nil {
		return 0, false
	}
	if e, ok := r.lastError.(*errs.Error); ok {
		ce = e
		return ce.Kind, true
	}
	return 0, false
}

// NewWindow creates a window with the given name and optional
// communicator (the default communicator is used when comm is nil).
func (r *Registry) NewWindow(name string, comm *Communicator) (*window.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := "registry.new_window"
	if _, exists := r.windows[name]; exists {
		return nil, r.fail(errs.New(errs.NameInUse, op, name))
	}

	c := r.defaultComm
	if comm != nil {
		c = *comm
	}

	w := window.New(name, c)
	r.windows[name] = w
	r.windowH.register(name)
	return w, nil
}

// DeleteWindow destroys the window and every data item it owns.
func (r *Registry) DeleteWindow(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := "registry.delete_window"
	if _, exists := r.windows[name]; !exists {
		return r.fail(errs.New(errs.NotFound, op, name))
	}
	delete(r.windows, name)
	r.windowH.release(name)
	return nil
}

// GetWindow looks up a window by name.
func (r *Registry) GetWindow(name string) (*window.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[name]
	if !ok {
		return nil, r.fail(errs.New(errs.NotFound, "registry.get_window", name))
	}
	return w, nil
}

// GetWindowHandle returns the stable handle for a window name.
func (r *Registry) GetWindowHandle(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.windowH.lookup(name)
	if !ok {
		return 0, r.fail(errs.New(errs.NotFound, "registry.get_window_handle", name))
	}
	return id, nil
}

// GetDataItemHandle returns the stable handle for "window.dataitem".
func (r *Registry) GetDataItemHandle(windowName, dataitemName string) (int, error) {
	r.mu.Lock()
	w, ok := r.windows[windowName]
	r.mu.Unlock()
	if !ok {
		return 0, r.fail(errs.New(errs.NotFound, "registry.get_dataitem_handle", windowName))
	}
	id, err := w.GetDataItemHandle(dataitemName)
	if err != nil {
		return 0, r.fail(err)
	}

	key := windowName + "." + dataitemName
	r.mu.Lock()
	r.dataitemH.register(key)
	r.mu.Unlock()
	return id, nil
}

// GetFunctionHandle returns the stable handle for "window.function".
func (r *Registry) GetFunctionHandle(windowName, functionName string) (int, error) {
	r.mu.Lock()
	w, ok := r.windows[windowName]
	r.mu.Unlock()
	if !ok {
		return 0, r.fail(errs.New(errs.NotFound, "registry.get_function_handle", windowName))
	}
	if _, err := w.GetFunction(functionName); err != nil {
		return 0, r.fail(err)
	}

	key := windowName + "." + functionName
	r.mu.Lock()
	id := r.functionH.register(key)
	r.mu.Unlock()
	return id, nil
}

// ResolveFunctionHandle maps a function handle back to its
// "window.function" name split, for package dispatch's call_function.
func (r *Registry) ResolveFunctionHandle(handle int) (windowName, funcName string, ok bool) {
	r.mu.Lock()
	key, found := r.functionH.name(handle)
	r.mu.Unlock()
	if !found {
		return "", "", false
	}
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

// GetStatus reports the initialization state code across the whole
// registry: -1 for a missing window, otherwise the data item's own
// status code.
func (r *Registry) GetStatus(windowName string, paneID, dataitemID int) int {
	w, err := r.GetWindow(windowName)
	if err != nil {
		return -1
	}
	status, err := w.GetStatus(paneID, dataitemID)
	if err != nil {
		return -1
	}
	return status
}

// EnableProfiling turns on per-function call counting and self/tree
// wall-clock accumulation. The monitor is stored and returned by
// Monitor; the registry registers no components with it.
func (r *Registry) EnableProfiling(monitor *monitoring.Monitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profilingEnabled = true
	r.monitor = monitor
}

// Monitor returns the akita monitor threaded through EnableProfiling,
// or nil if profiling is off or no monitor was supplied.
func (r *Registry) Monitor() *monitoring.Monitor {
	return r.monitor
}

// SetBarrierOnEntry records whether a function is marked for a
// synchronized-timing barrier at call entry. The setting is only
// stored: Call performs no barrier.
func (r *Registry) SetBarrierOnEntry(functionKey string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.barrierOnEntry[functionKey] = on
}

// enterCall and exitCall implement the depth-counter-plus-timestamp
// bookkeeping: self-time excludes nested calls,
// and a trailing adjustment removes the callee's time from the
// caller's self bucket while still counting it in the caller's tree.
func (r *Registry) enterCall(key string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.profilingEnabled {
		return time.Time{}
	}
	if _, ok := r.profiles[key]; !ok {
		r.profiles[key] = &profile{}
	}
	r.profiles[key].Calls++
	r.callStack = append(r.callStack, key)
	return time.Now()
}

func (r *Registry) exitCall(key string, start time.Time) {
	if !r.profilingEnabled {
		return
	}
	elapsed := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.profiles[key]
	p.Self += elapsed
	p.Tree += elapsed

	if len(r.callStack) > 0 {
		r.callStack = r.callStack[:len(r.callStack)-1]
	}
	if len(r.callStack) > 0 {
		caller := r.callStack[len(r.callStack)-1]
		if cp, ok := r.profiles[caller]; ok {
			cp.Self -= elapsed
		}
	}

	slog.Log(context.Background(), LevelTrace, "function call", "key", key, "calls", p.Calls, "self", p.Self, "tree", p.Tree)
}

// Profile returns the accumulated call count and self/tree time for a
// function key ("window.function"), or ok=false if it has never been
// profiled.
func (r *Registry) Profile(key string) (calls int, self, tree time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, found := r.profiles[key]
	if !found {
		return 0, 0, 0, false
	}
	return p.Calls, p.Self, p.Tree, true
}

// Call wraps fn with profiling bookkeeping under key, suitable for use
// by package dispatch around every call_function invocation.
func (r *Registry) Call(key string, fn func() error) error {
	start := r.enterCall(key)
	err := fn()
	r.exitCall(key, start)
	return err
}
