// Package moduleapi implements the stable, C-callable-shaped external
// surface of the runtime: every handle lookup and data-item binding
// addressed by a dotted "window.name" identifier, the way an embedding
// host program calls in rather than how Go code inside the process
// talks to package registry directly. Callers never see a
// *dataitem.DataItem, only handles and raw buffers.
package moduleapi

import (
	"strings"

	"github.com/sarchlab/concom/dispatch"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/registry"
)

// API is the dotted-name façade bound to one registry. A host embedding
// this module holds exactly one API, matching the registry's own
// one-per-process contract.
type API struct {
	reg  *registry.Registry
	disp *dispatch.Dispatcher
}

// New binds an API surface to reg.
func New(reg *registry.Registry) *API {
	return &API{reg: reg, disp: dispatch.New(reg)}
}

func splitDotted(op, name string) (first, second string, err error) {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return "", "", errs.New(errs.InvalidArgument, op, "expected dotted \"window.name\" identifier")
	}
	return name[:i], name[i+1:], nil
}

// GetWindowHandle resolves a bare window name.
func (a *API) GetWindowHandle(name string) (int, error) {
	return a.reg.GetWindowHandle(name)
}

// GetDataItemHandle resolves "window.dataitem" to its stable handle.
func (a *API) GetDataItemHandle(dotted string) (int, error) {
	w, d, err := splitDotted("moduleapi.get_dataitem_handle", dotted)
	if err != nil {
		return 0, err
	}
	return a.reg.GetDataItemHandle(w, d)
}

// GetFunctionHandle resolves "window.function" to its stable handle.
func (a *API) GetFunctionHandle(dotted string) (int, error) {
	w, f, err := splitDotted("moduleapi.get_function_handle", dotted)
	if err != nil {
		return 0, err
	}
	return a.reg.GetFunctionHandle(w, f)
}

// CallFunction dispatches through a function handle returned by
// GetFunctionHandle.
func (a *API) CallFunction(handle int, args []any, lengths []int) error {
	return a.disp.CallFunction(handle, args, lengths)
}

// ICallFunction reserves a request id; see package dispatch for the
// current synchronous contract.
func (a *API) ICallFunction(handle int, args []any, lengths []int) (dispatch.RequestID, error) {
	return a.disp.ICallFunction(handle, args, lengths)
}

// Wait blocks until a request completes.
func (a *API) Wait(id dispatch.RequestID) error {
	return a.disp.Wait(id)
}

// GetStatus reports the initialization state code of data item
// dataitemID on pane paneID of the window named before the dot in
// dotted; the name after the dot is not used. It returns -1 on any
// resolution failure rather
// than an error, matching the C surface's sentinel-return convention.
func (a *API) GetStatus(dotted string, paneID, dataitemID int) int {
	w, _, err := splitDotted("moduleapi.get_status", dotted)
	if err != nil {
		return -1
	}
	return a.reg.GetStatus(w, paneID, dataitemID)
}

// SetArray binds an external buffer to "window.dataitem" on paneID,
// exposing the native layer's richer option set (an explicit is_const
// flag) that the plain C surface collapses into separate
// external/const entry points.
func (a *API) SetArray(dotted string, paneID int, buf []byte, stride, capacity int, isConst bool) error {
	op := "moduleapi.set_array"
	w, dname, err := splitDotted(op, dotted)
	if err != nil {
		return err
	}
	win, err := a.reg.GetWindow(w)
	if err != nil {
		return errs.Wrap(op, err)
	}
	id, err := win.GetDataItemHandle(dname)
	if err != nil {
		return errs.Wrap(op, err)
	}
	p, err := win.GetPane(paneID, true)
	if err != nil {
		return errs.Wrap(op, err)
	}
	item, err := p.GetDataItem(id)
	if err != nil {
		return errs.Wrap(op, err)
	}
	return item.SetArray(buf, stride, capacity, isConst)
}

// GetArray returns the raw backing bytes for one element/node's value
// of "window.dataitem" on paneID, the dotted-name equivalent of
// dataitem.DataItem.Raw.
func (a *API) GetArray(dotted string, paneID, item, comp int) ([]byte, error) {
	op := "moduleapi.get_array"
	w, dname, err := splitDotted(op, dotted)
	if err != nil {
		return nil, err
	}
	win, err := a.reg.GetWindow(w)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	id, err := win.GetDataItemHandle(dname)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	p, err := win.GetPane(paneID, true)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	d, err := p.GetDataItem(id)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return d.Raw(item, comp)
}

// GetLastError and GetErrorCode expose the registry's error-policy
// toggle through the dotted surface.
func (a *API) GetLastError() string { return a.reg.GetLastError() }

func (a *API) GetErrorCode() (errs.Kind, bool) { return a.reg.GetErrorCode() }
