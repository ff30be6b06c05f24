package panecomm

import "github.com/sarchlab/akita/v4/sim"

// Kind discriminates the two transport uses of FieldMsg: a
// ghost-region refresh, and a partial contribution towards a
// shared-node reduction.
type Kind int

const (
	GhostUpdate Kind = iota
	SharedContribution
)

// FieldMsg carries a strided field payload between pane communicators:
// a variable-length, typed, indexed batch of scalars.
type FieldMsg struct {
	sim.MsgMeta

	Kind Kind

	// DataItemID identifies the destination data item on the receiving
	// end, resolved against that rank's own handle space.
	DataItemID int

	// Indices names which local node/element slots each encoded value
	// corresponds to, in payload order.
	Indices []int

	// Components is the per-index element count packed into Payload.
	Components int

	// Payload is the raw little-endian encoding of len(Indices) *
	// Components scalars, in the destination item's own type.
	Payload []byte

	// Op is set only for SharedContribution messages.
	Op ReduceOp
}

// Meta returns the message's akita metadata.
func (m *FieldMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// FieldMsgBuilder is a fluent builder for FieldMsg.
type FieldMsgBuilder struct {
	src, dst   sim.RemotePort
	sendTime   sim.VTimeInSec
	kind       Kind
	dataItemID int
	indices    []int
	components int
	payload    []byte
	op         ReduceOp
}

func (b FieldMsgBuilder) WithSrc(src sim.RemotePort) FieldMsgBuilder { b.src = src; return b }
func (b FieldMsgBuilder) WithDst(dst sim.RemotePort) FieldMsgBuilder { b.dst = dst; return b }

func (b FieldMsgBuilder) WithSendTime(t sim.VTimeInSec) FieldMsgBuilder {
	b.sendTime = t
	return b
}

func (b FieldMsgBuilder) WithKind(k Kind) FieldMsgBuilder { b.kind = k; return b }

func (b FieldMsgBuilder) WithDataItemID(id int) FieldMsgBuilder {
	b.dataItemID = id
	return b
}

func (b FieldMsgBuilder) WithIndices(idx []int) FieldMsgBuilder { b.indices = idx; return b }

func (b FieldMsgBuilder) WithComponents(n int) FieldMsgBuilder { b.components = n; return b }

func (b FieldMsgBuilder) WithPayload(p []byte) FieldMsgBuilder { b.payload = p; return b }

func (b FieldMsgBuilder) WithOp(op ReduceOp) FieldMsgBuilder { b.op = op; return b }

// Build creates a FieldMsg.
func (b FieldMsgBuilder) Build() *FieldMsg {
	return &FieldMsg{
		MsgMeta: sim.MsgMeta{
			ID:       sim.GetIDGenerator().Generate(),
			Src:      b.src,
			Dst:      b.dst,
			SendTime: b.sendTime,
		},
		Kind:       b.kind,
		DataItemID: b.dataItemID,
		Indices:    b.indices,
		Components: b.components,
		Payload:    b.payload,
		Op:         b.op,
	}
}
