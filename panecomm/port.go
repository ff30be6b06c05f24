// Package panecomm implements the pane communicator: shared-node
// reduction across panes that alias the same global node, and
// ghost-region synchronization over message passing.
package panecomm

import (
	"fmt"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
)

// HookPosGhostRecvd marks a ghost-update FieldMsg arriving at a port.
var HookPosGhostRecvd = &sim.HookPos{Name: "Ghost Update Recv"}

// HookPosContributionRecvd marks a shared-node contribution arriving
// at a port.
var HookPosContributionRecvd = &sim.HookPos{Name: "Shared Contribution Recv"}

// HookPosMsgSend marks a FieldMsg leaving a port.
var HookPosMsgSend = &sim.HookPos{Name: "Field Msg Send"}

// Port is a pane communicator's endpoint on an akita connection. The
// first three method groups are the connection contract every akita
// port must satisfy; the lane accessors below them are what Exchange
// actually drains: incoming traffic is held per kind so ghost
// refreshes can be applied before the reduction contributions that
// arrived in the same tick fold into them.
type Port interface {
	sim.Named
	sim.Hookable

	AsRemote() sim.RemotePort
	SetConnection(conn sim.Connection)
	Component() sim.Component

	// For the connection.
	Deliver(msg sim.Msg) *sim.SendError
	NotifyAvailable()
	RetrieveOutgoing() sim.Msg
	PeekOutgoing() sim.Msg

	// For the owning component, generic form.
	CanSend() bool
	Send(msg sim.Msg) *sim.SendError
	RetrieveIncoming() sim.Msg
	PeekIncoming() sim.Msg

	// Kind-segregated incoming lanes.
	RetrieveGhost() *FieldMsg
	RetrieveContribution() *FieldMsg
}

// fieldPort transports FieldMsg and nothing else. Delivery of any
// other message type is refused, incoming traffic is split into a
// ghost lane and a reduction lane (each FIFO in arrival order, which
// the connection guarantees equals send order per sending pane), and
// the outgoing side is a single bounded FIFO drained by the
// connection.
type fieldPort struct {
	sim.HookableBase

	lock sync.Mutex
	name string
	comp sim.Component
	conn sim.Connection

	capacity      int
	ghosts        []*FieldMsg
	contributions []*FieldMsg
	outgoing      []*FieldMsg
}

func (p *fieldPort) AsRemote() sim.RemotePort { return sim.RemotePort(p.name) }

func (p *fieldPort) SetConnection(conn sim.Connection) {
	if p.conn != nil {
		panic(fmt.Sprintf("connection already set to %s, now connecting to %s", p.conn.Name(), conn.Name()))
	}
	p.conn = conn
}

func (p *fieldPort) Component() sim.Component { return p.comp }
func (p *fieldPort) Name() string             { return p.name }

func (p *fieldPort) incomingLen() int {
	return len(p.ghosts) + len(p.contributions)
}

func (p *fieldPort) CanSend() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.outgoing) < p.capacity
}

// Send queues a FieldMsg for the connection to pick up. The queue is
// FIFO by send order, which is the ordering guarantee the pane
// communicator gives for a single pane pair.
func (p *fieldPort) Send(msg sim.Msg) *sim.SendError {
	fm, ok := msg.(*FieldMsg)
	if !ok {
		return sim.NewSendError()
	}

	p.lock.Lock()
	if len(p.outgoing) >= p.capacity {
		p.lock.Unlock()
		return sim.NewSendError()
	}
	wasEmpty := len(p.outgoing) == 0
	p.outgoing = append(p.outgoing, fm)
	p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosMsgSend, Item: fm})
	p.lock.Unlock()

	if wasEmpty {
		p.conn.NotifySend()
	}
	return nil
}

// Deliver accepts an inbound FieldMsg into the lane its kind selects.
// Anything that is not a FieldMsg is refused: a pane communicator
// port carries field traffic only.
func (p *fieldPort) Deliver(msg sim.Msg) *sim.SendError {
	fm, ok := msg.(*FieldMsg)
	if !ok {
		return sim.NewSendError()
	}

	p.lock.Lock()
	if p.incomingLen() >= p.capacity {
		p.lock.Unlock()
		return sim.NewSendError()
	}

	wasEmpty := p.incomingLen() == 0
	switch fm.Kind {
	case SharedContribution:
		p.contributions = append(p.contributions, fm)
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosContributionRecvd, Item: fm})
	default:
		p.ghosts = append(p.ghosts, fm)
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosGhostRecvd, Item: fm})
	}
	p.lock.Unlock()

	if p.comp != nil && wasEmpty {
		p.comp.NotifyRecv(p)
	}
	return nil
}

// RetrieveGhost pops the oldest pending ghost update, or nil.
func (p *fieldPort) RetrieveGhost() *FieldMsg {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.ghosts) == 0 {
		return nil
	}
	return p.popIncoming(&p.ghosts)
}

// RetrieveContribution pops the oldest pending shared-node
// contribution, or nil.
func (p *fieldPort) RetrieveContribution() *FieldMsg {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.contributions) == 0 {
		return nil
	}
	return p.popIncoming(&p.contributions)
}

// popIncoming removes the head of one incoming lane and releases
// connection backpressure if the port just stopped being full. The
// caller holds the lock.
func (p *fieldPort) popIncoming(lane *[]*FieldMsg) *FieldMsg {
	wasFull := p.incomingLen() == p.capacity
	fm := (*lane)[0]
	*lane = (*lane)[1:]
	if wasFull && p.conn != nil {
		p.conn.NotifyAvailable(p)
	}
	return fm
}

// RetrieveIncoming drains the ghost lane before the reduction lane:
// the generic view of the same ordering Exchange.Tick applies.
func (p *fieldPort) RetrieveIncoming() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.ghosts) > 0 {
		return p.popIncoming(&p.ghosts)
	}
	if len(p.contributions) > 0 {
		return p.popIncoming(&p.contributions)
	}
	return nil
}

func (p *fieldPort) PeekIncoming() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.ghosts) > 0 {
		return p.ghosts[0]
	}
	if len(p.contributions) > 0 {
		return p.contributions[0]
	}
	return nil
}

func (p *fieldPort) RetrieveOutgoing() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.outgoing) == 0 {
		return nil
	}
	wasFull := len(p.outgoing) == p.capacity
	fm := p.outgoing[0]
	p.outgoing = p.outgoing[1:]
	if wasFull && p.comp != nil {
		p.comp.NotifyPortFree(p)
	}
	return fm
}

func (p *fieldPort) PeekOutgoing() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.outgoing) == 0 {
		return nil
	}
	return p.outgoing[0]
}

func (p *fieldPort) NotifyAvailable() {
	if p.comp != nil {
		p.comp.NotifyPortFree(p)
	}
}

// NewPort creates a field port attached to comp, with bufCap bounding
// both the outgoing queue and the two incoming lanes combined.
func NewPort(comp sim.Component, bufCap int, name string) Port {
	return &fieldPort{
		comp:     comp,
		name:     name,
		capacity: bufCap,
	}
}
