package access

import (
	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
	"github.com/go-ble/meshaccess/wire"
)

// Fixed group addresses every primary element answers to without an
// explicit subscription (§4.5 step 4 "fixed-group on primary element:
// always match").
const (
	GroupAllProxies uint16 = 0xFFFC
	GroupAllFriends uint16 = 0xFFFD
	GroupAllRelays  uint16 = 0xFFFE
	GroupAllNodes   uint16 = 0xFFFF
)

func isFixedGroup(addr uint16) bool {
	switch addr {
	case GroupAllProxies, GroupAllFriends, GroupAllRelays, GroupAllNodes:
		return true
	default:
		return false
	}
}

// Dispatcher is the inbound half of the access layer (C5): it owns the
// composition, the virtual-address resolver, and the strict-CID policy
// for vendor opcode matching.
type Dispatcher struct {
	comp      *composition.Composition
	vaStore   ports.VirtualAddressStore
	strictCID bool
	RawRecv   func(ctx *composition.MessageContext, opcode uint32, buf []byte)
	log       clog.Clog
}

// NewDispatcher builds a Dispatcher over comp. vaStore may be nil if no
// model on this node subscribes to virtual addresses.
func NewDispatcher(comp *composition.Composition, vaStore ports.VirtualAddressStore, strictCID bool, log clog.Clog) *Dispatcher {
	return &Dispatcher{comp: comp, vaStore: vaStore, strictCID: strictCID, log: log}
}

// Dispatch routes one inbound SDU to its destination(s) (§4.5 "Dispatch
// for destination dst"): a unicast destination goes to exactly one
// element, anything else is offered to every element and the results
// aggregated; a registered raw-message callback always sees the
// message too.
func (d *Dispatcher) Dispatch(ctx *composition.MessageContext, raw []byte) Status {
	buf := wire.NewCursor(raw)
	decoded, err := DecodeOpcode(buf)
	if err != nil {
		d.log.Debug("opcode decode failed", map[string]any{"err": err.Error()})
		return StatusMessageNotUnderstood
	}
	ctx.Opcode = decoded.Opcode

	var status Status
	if idx, ok := d.comp.ElemIndex(ctx.Dst); ok {
		status = d.elementRecv(d.comp.Elements[idx], idx, decoded, ctx, buf)
	} else {
		status = StatusInvalidAddress
		for i, elem := range d.comp.Elements {
			mark := buf.Mark()
			s := d.elementRecv(elem, i, decoded, ctx, buf)
			buf.Restore(mark)
			if s == StatusSuccess {
				status = StatusSuccess
			} else if status != StatusSuccess {
				status = s
			}
		}
	}

	if d.RawRecv != nil {
		d.RawRecv(ctx, decoded.Opcode, raw)
	}
	return status
}

// elementRecv implements §4.5 "Per-element delivery element_recv".
func (d *Dispatcher) elementRecv(elem *composition.Element, elemIdx int, decoded DecodedOpcode, ctx *composition.MessageContext, buf *wire.Cursor) Status {
	candidates := elem.SigModels
	if decoded.Octets == 3 {
		candidates = elem.VendorModels
	}

	var company uint16
	if decoded.Octets == 3 {
		company = uint16(decoded.Opcode & 0xFFFF)
	}

	var matched *composition.Model
	var entry composition.OpcodeEntry
	for _, m := range candidates {
		if decoded.Octets == 3 && d.strictCID && m.ID.Company != company {
			continue
		}
		for _, e := range m.Opcodes {
			if e.Opcode == decoded.Opcode {
				matched, entry = m, e
				break
			}
		}
		if matched != nil {
			break
		}
	}
	if matched == nil {
		return StatusWrongOpcode
	}

	if !matched.HasKey(ctx.AppKeyIdx) {
		return StatusWrongKey
	}

	if !d.destinationValid(matched, elem, elemIdx, ctx) {
		return StatusInvalidAddress
	}

	if !entry.Matches(buf.Len()) {
		return StatusMessageNotUnderstood
	}

	mark := buf.Mark()
	err := entry.Handler(matched, ctx, buf)
	buf.Restore(mark)
	if err != nil {
		d.log.Debug("handler error", map[string]any{"opcode": decoded.Opcode, "err": err.Error()})
		return StatusMessageNotUnderstood
	}
	return StatusSuccess
}

// destinationValid implements §4.5 step 4's destination-validity rules,
// including the extension-ring walk for group/virtual subscriptions
// ("a group/virtual subscription on any model in the ring satisfies the
// test, but only if the found model is on the same element as the
// dispatched one").
func (d *Dispatcher) destinationValid(m *composition.Model, elem *composition.Element, elemIdx int, ctx *composition.MessageContext) bool {
	dst := ctx.Dst
	switch {
	case dst == elem.Addr() && dst != composition.UnassignedAddr:
		return true
	case ctx.HasUUID:
		idx, err := d.vaStore.IndexByUUID(ctx.UUID)
		if err != nil {
			return false
		}
		return d.ringHasVirtual(m, elemIdx, idx)
	case isFixedGroup(dst):
		if elemIdx == 0 {
			return true
		}
		return d.ringHasGroup(m, elemIdx, dst)
	case dst >= 0xC000 && dst <= 0xFEFF: // assigned group range
		return d.ringHasGroup(m, elemIdx, dst)
	default:
		return false
	}
}

func (d *Dispatcher) ringHasGroup(m *composition.Model, elemIdx int, addr uint16) bool {
	for _, ring := range d.comp.RingMembers(m) {
		if ring.ElemIdx() != elemIdx {
			continue
		}
		if ring.HasGroup(addr) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) ringHasVirtual(m *composition.Model, elemIdx int, labelIdx uint16) bool {
	for _, ring := range d.comp.RingMembers(m) {
		if ring.ElemIdx() != elemIdx {
			continue
		}
		if ring.HasVirtual(labelIdx) {
			return true
		}
	}
	return false
}
