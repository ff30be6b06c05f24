package registry

import (
	"sync"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/window"
)

// Module is a dynamically loadable unit exposing Load/Unload. Go has
// no portable dlopen; resolution is
// "static link" in the sense database/sql drivers are statically
// linked and self-register via RegisterModule from an init() function.
// A host program that genuinely needs to resolve a module from a path
// at runtime can still do so with the standard "plugin" package and
// call RegisterModule from the loaded plugin's init().
type Module interface {
	// Load creates the module's primary window (ctx.WindowName()),
	// registers data items and functions on it, and may open further
	// nested windows via ctx.NewWindow.
	Load(ctx *ModuleContext) error
	// Unload is Load's inverse. The registry automatically deletes
	// every window opened through ctx.NewWindow after Unload returns,
	// so Unload only needs to release module-private state (e.g. a
	// bound ".global" state object).
	Unload(ctx *ModuleContext) error
}

// ModuleContext is handed to a module's Load/Unload so it can create
// windows (tracked for automatic nested teardown) without reaching for
// the registry singleton directly.
type ModuleContext struct {
	reg        *Registry
	windowName string
	children   []string
}

// Registry returns the owning registry.
func (c *ModuleContext) Registry() *Registry { return c.reg }

// WindowName returns the name this module was asked to load/unload.
func (c *ModuleContext) WindowName() string { return c.windowName }

// NewWindow creates a window and tracks it as owned by this module
// load, so unloading the module implicitly deletes it.
func (c *ModuleContext) NewWindow(name string, comm *Communicator) (*window.Window, error) {
	w, err := c.reg.NewWindow(name, comm)
	if err != nil {
		return nil, err
	}
	c.children = append(c.children, name)
	return w, nil
}

type loadedModule struct {
	mod        Module
	windowName string
	ctx        *ModuleContext
}

var (
	moduleRegistryMu sync.Mutex
	moduleFactories  = map[string]func() Module{}
)

// RegisterModule statically links a module constructor under libName,
// the name LoadModule will later resolve.
func RegisterModule(libName string, factory func() Module) {
	moduleRegistryMu.Lock()
	defer moduleRegistryMu.Unlock()
	moduleFactories[libName] = factory
}

// LoadModule resolves lib's constructor and invokes Load with
// windowName. A module may itself open further windows under other
// names (nested loads); UnloadModule tears all of them down.
func (r *Registry) LoadModule(lib, windowName string) error {
	op := "registry.load_module"

	moduleRegistryMu.Lock()
	factory, ok := moduleFactories[lib]
	moduleRegistryMu.Unlock()
	if !ok {
		return r.fail(errs.New(errs.NotFound, op, lib))
	}

	r.mu.Lock()
	if _, exists := r.modules[windowName]; exists {
		r.mu.Unlock()
		return r.fail(errs.New(errs.NameInUse, op, windowName))
	}
	r.mu.Unlock()

	mod := factory()
	ctx := &ModuleContext{reg: r, windowName: windowName}
	if err := mod.Load(ctx); err != nil {
		return r.fail(errs.Wrap(op, err))
	}

	r.mu.Lock()
	r.modules[windowName] = &loadedModule{mod: mod, windowName: windowName, ctx: ctx}
	r.moduleH.register(windowName)
	r.mu.Unlock()
	return nil
}

// UnloadModule invokes the module's Unload and deletes every window it
// opened, including nested ones.
func (r *Registry) UnloadModule(windowName string) error {
	op := "registry.unload_module"

	err := r.unloadModule(windowName)
	if err != nil {
		return r.fail(errs.Wrap(op, err))
	}
	return nil
}

// unloadModule does the actual work without holding r.mu while calling
// into module code, so a module's Unload may itself call back into the
// registry (e.g. to delete_window one of its own children) without
// deadlocking.
func (r *Registry) unloadModule(windowName string) error {
	r.mu.Lock()
	lm, ok := r.modules[windowName]
	r.mu.Unlock()
	if !ok {
		return errs.New(errs.NotFound, "registry.unload_module", windowName)
	}

	err := lm.mod.Unload(lm.ctx)

	r.mu.Lock()
	for _, child := range lm.ctx.children {
		delete(r.windows, child)
		r.windowH.release(child)
	}
	delete(r.modules, windowName)
	r.moduleH.release(windowName)
	r.mu.Unlock()

	return err
}
