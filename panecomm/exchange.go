package panecomm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/typetag"
)

// Exchange is a ticking component that owns one port per peer rank
// and applies incoming FieldMsg traffic to the local data items it has
// been told about: the transport half of the pane communicator.
type Exchange struct {
	*sim.TickingComponent

	ports  map[int]Port
	remote map[int]sim.RemotePort
	items  map[int]*dataitem.DataItem

	staging    *mem.Storage
	stagingOff uint64

	sendTime sim.VTimeInSec
}

// NewExchange creates an Exchange bound to engine/freq.
func NewExchange(name string, engine sim.Engine, freq sim.Freq) *Exchange {
	e := &Exchange{
		ports:  make(map[int]Port),
		remote: make(map[int]sim.RemotePort),
		items:  make(map[int]*dataitem.DataItem),
	}
	e.TickingComponent = sim.NewTickingComponent(name, engine, freq, e)
	return e
}

// ConnectPeer registers the local port used to reach rank, and that
// peer's own port identity, so outgoing messages name the right
// destination.
func (e *Exchange) ConnectPeer(rank int, port Port, peerRemote sim.RemotePort) {
	e.ports[rank] = port
	e.remote[rank] = peerRemote
	e.AddPort(fmt.Sprintf("Peer%d", rank), port)
}

// RegisterItem tells the Exchange which local data item a given item
// id (as seen on the wire) resolves to, so incoming messages know
// where to write.
func (e *Exchange) RegisterItem(id int, item *dataitem.DataItem) {
	e.items[id] = item
}

// AttachStagingMemory gives the Exchange a memory-controller-backed
// store: every received payload is journaled into it before being
// applied, so a host can replay or audit the traffic a pane saw. The
// storage comes from the idealmemcontroller a TopologyBuilder memory
// mode wires up.
func (e *Exchange) AttachStagingMemory(storage *mem.Storage) {
	e.staging = storage
	e.stagingOff = 0
}

// SendGhostUpdate ships the real values at srcIndices on src to peer
// rank, to be written into dstItemID's ghost slots at dstIndices
// (index-for-index, same order and length).
func (e *Exchange) SendGhostUpdate(peerRank int, dstItemID int, dstIndices []int, src *dataitem.DataItem, srcIndices []int) error {
	op := "panecomm.send_ghost_update"
	port, ok := e.ports[peerRank]
	if !ok {
		return errs.New(errs.NotFound, op, "no port registered for peer rank")
	}
	if len(dstIndices) != len(srcIndices) {
		return errs.New(errs.InvalidArgument, op, "index length mismatch")
	}

	payload, err := encodePayload(src, srcIndices)
	if err != nil {
		return errs.Wrap(op, err)
	}

	msg := FieldMsgBuilder{}.
		WithSrc(port.AsRemote()).
		WithDst(e.remote[peerRank]).
		WithSendTime(e.sendTime).
		WithKind(GhostUpdate).
		WithDataItemID(dstItemID).
		WithIndices(dstIndices).
		WithComponents(src.ComponentCount).
		WithPayload(payload).
		Build()

	if sendErr := port.Send(msg); sendErr != nil {
		return errs.New(errs.ConnectionFailure, op, "port could not accept ghost update")
	}
	return nil
}

// ContributeShared ships this rank's partial value at srcIndices for a
// shared-node reduction to peer rank; the peer combines it into its own
// copy using op once received.
func (e *Exchange) ContributeShared(peerRank int, dstItemID int, dstIndices []int, op ReduceOp, src *dataitem.DataItem, srcIndices []int) error {
	opName := "panecomm.contribute_shared"
	port, ok := e.ports[peerRank]
	if !ok {
		return errs.New(errs.NotFound, opName, "no port registered for peer rank")
	}
	payload, err := encodePayload(src, srcIndices)
	if err != nil {
		return errs.Wrap(opName, err)
	}
	msg := FieldMsgBuilder{}.
		WithSrc(port.AsRemote()).
		WithDst(e.remote[peerRank]).
		WithSendTime(e.sendTime).
		WithKind(SharedContribution).
		WithDataItemID(dstItemID).
		WithIndices(dstIndices).
		WithComponents(src.ComponentCount).
		WithPayload(payload).
		WithOp(op).
		Build()
	if sendErr := port.Send(msg); sendErr != nil {
		return errs.New(errs.ConnectionFailure, opName, "port could not accept contribution")
	}
	return nil
}

func encodePayload(item *dataitem.DataItem, indices []int) ([]byte, error) {
	size := item.Type.ByteSize()
	buf := make([]byte, len(indices)*item.ComponentCount*size)
	off := 0
	for _, idx := range indices {
		for c := 0; c < item.ComponentCount; c++ {
			raw, err := item.Raw(idx, c)
			if err != nil {
				return nil, err
			}
			copy(buf[off:], raw)
			off += size
		}
	}
	return buf, nil
}

// Tick drains every port's incoming lanes, ghost updates first so the
// shared-node contributions that arrived in the same tick fold into
// already-refreshed values.
func (e *Exchange) Tick(now sim.VTimeInSec) (madeProgress bool) {
	for _, port := range e.ports {
		for fm := port.RetrieveGhost(); fm != nil; fm = port.RetrieveGhost() {
			e.apply(fm)
			madeProgress = true
		}
	}
	for _, port := range e.ports {
		for fm := port.RetrieveContribution(); fm != nil; fm = port.RetrieveContribution() {
			e.apply(fm)
			madeProgress = true
		}
	}
	return madeProgress
}

func (e *Exchange) apply(fm *FieldMsg) {
	if e.staging != nil {
		if err := e.staging.Write(e.stagingOff, fm.Payload); err == nil {
			e.stagingOff += uint64(len(fm.Payload))
		}
	}
	dst, ok := e.items[fm.DataItemID]
	if !ok {
		return
	}
	size := dst.Type.ByteSize()
	off := 0
	for _, idx := range fm.Indices {
		for c := 0; c < fm.Components; c++ {
			v := decodeScalar(dst.Type, fm.Payload[off:off+size])
			off += size
			switch fm.Kind {
			case GhostUpdate:
				_ = dst.SetFloat64(idx, c, v)
			case SharedContribution:
				cur, err := dst.Float64(idx, c)
				if err != nil {
					continue
				}
				combined, err := combine(fm.Op, []float64{cur, v})
				if err != nil {
					continue
				}
				_ = dst.SetFloat64(idx, c, combined)
			}
		}
	}
}

func decodeScalar(tag typetag.Tag, raw []byte) float64 {
	switch tag {
	case typetag.F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	case typetag.F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	default:
		return 0
	}
}
