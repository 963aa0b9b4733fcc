package composition

import "github.com/go-ble/meshaccess/wire"

// ModelID identifies a model: either a 16-bit SIG-defined id or a
// {company, id} vendor pair (§3 "Model").
type ModelID struct {
	Vendor  bool
	SigID   uint16
	Company uint16
	VndID   uint16
}

// SIG constructs a SIG model identity.
func SIG(id uint16) ModelID { return ModelID{SigID: id} }

// Vendor constructs a vendor model identity.
func Vendor(company, id uint16) ModelID { return ModelID{Vendor: true, Company: company, VndID: id} }

// BoundKey is the tagged value a model's bound-key slot holds (design
// note 9): none, a wildcard device-key match, or a concrete app-key
// index.
type BoundKey int32

const (
	// KeyUnused marks an empty bound-key slot.
	KeyUnused BoundKey = -1
	// KeyAnyDevKey matches any device-key send context.
	KeyAnyDevKey BoundKey = -2
)

// App reports the bound app-key index and whether this slot holds one.
func (k BoundKey) App() (int, bool) {
	if k >= 0 {
		return int(k), true
	}
	return 0, false
}

const (
	// UnassignedAddr is the group/unicast sentinel address 0x0000.
	UnassignedAddr uint16 = 0x0000
	// unassignedLabel marks an empty virtual-subscription slot; the
	// label-index space is 16 bits so the top value is reserved.
	unassignedLabel uint16 = 0xFFFF
)

// MessageContext is what the dispatcher hands a model's handler: the
// opcode, addressing, and key-binding facts needed to act on one
// inbound message (§4.5).
type MessageContext struct {
	Opcode    uint32
	Src       uint16
	Dst       uint16
	AppKeyIdx int16 // -1 selects the device key
	NetKeyIdx uint16
	RecvTTL   uint8
	UUID      [16]byte
	HasUUID   bool
}

// HandlerFunc is invoked once the dispatcher has matched an opcode,
// verified key binding, and validated the destination.
type HandlerFunc func(m *Model, ctx *MessageContext, buf *wire.Cursor) error

// OpcodeEntry binds one opcode to its handler and payload length
// contract (§4.5 step 5): LenContract >= 0 means "at least that many
// bytes", LenContract < 0 means "exactly -LenContract bytes".
type OpcodeEntry struct {
	Opcode      uint32
	LenContract int
	Handler     HandlerFunc
}

// Matches reports whether payloadLen satisfies this entry's contract.
func (e OpcodeEntry) Matches(payloadLen int) bool {
	if e.LenContract >= 0 {
		return payloadLen >= e.LenContract
	}
	return payloadLen == -e.LenContract
}

// MetadataEntry is one {id, data} record a model exposes on Metadata
// Page 0 (§4.3).
type MetadataEntry struct {
	ID   uint16
	Data []byte
}

// InitFunc runs once per model at register time, in element/model
// iteration order; an error aborts registration (§4.1).
type InitFunc func(m *Model) error

const (
	// MaxBoundKeys is the bound-app-key slot count per model.
	MaxBoundKeys = 4
	// MaxGroups is the group-subscription slot count per model.
	MaxGroups = 4
	// MaxVirtualLabels is the virtual-address subscription slot count.
	MaxVirtualLabels = 2
)

// flags on Model.status
const (
	statusExtended uint8 = 1 << iota
	statusHasPub
)

// Model is one element's protocol object (§3 "Model"). Runtime fields
// (ElemIdx, ModIdx, status, nextIdx) are populated by
// Composition.Register and must not be set by callers.
type Model struct {
	ID       ModelID
	Opcodes  []OpcodeEntry
	Init     InitFunc
	Metadata []MetadataEntry

	boundKeys [MaxBoundKeys]BoundKey
	groups    [MaxGroups]uint16
	vlabels   [MaxVirtualLabels]uint16

	// Pub is present (non-nil) only for models that publish.
	Pub *PublicationState

	elemIdx int
	modIdx  int
	status  uint8
	nextIdx int // index into Composition.arena, ring link; -1 = none
	arena   int // this model's own index into Composition.arena

	userData any
}

// ElemIdx returns the owning element's position (§8 invariant).
func (m *Model) ElemIdx() int { return m.elemIdx }

// ModIdx returns this model's index within its element: a SIG model's
// position in SigModels, or, for a vendor model, the element's SIG
// model count plus its position in VendorModels. It is not the vendor
// model's position within VendorModels alone.
func (m *Model) ModIdx() int { return m.modIdx }

// Extended reports whether extend() has marked this model as a base.
func (m *Model) Extended() bool { return m.status&statusExtended != 0 }

// HasPub reports whether this model owns a publication state.
func (m *Model) HasPub() bool { return m.status&statusHasPub != 0 }

// NextIdx returns the extension-ring link (an arena index, or -1).
func (m *Model) NextIdx() int { return m.nextIdx }

// ArenaIdx returns this model's own arena slot.
func (m *Model) ArenaIdx() int { return m.arena }

// UserData returns the opaque value set by SetUserData, or nil.
func (m *Model) UserData() any { return m.userData }

// SetUserData stashes an opaque pointer models can retrieve from their
// handlers (e.g. a per-model state struct).
func (m *Model) SetUserData(v any) { m.userData = v }

// HasKey reports whether idx is bound to this model, honoring the
// device-key wildcard (appIdx < 0 means "device key").
func (m *Model) HasKey(appIdx int16) bool {
	for _, k := range m.boundKeys {
		if k == KeyUnused {
			continue
		}
		if k == KeyAnyDevKey {
			if appIdx < 0 {
				return true
			}
			continue
		}
		if idx, ok := k.App(); ok && appIdx >= 0 && idx == int(appIdx) {
			return true
		}
	}
	return false
}

// Bind adds key (an app-key index, or KeyAnyDevKey) to the first free
// slot. Returns ErrNoBuffer if the bound-key array is full.
func (m *Model) Bind(key BoundKey) error {
	for _, k := range m.boundKeys {
		if k == key {
			return nil
		}
	}
	for i, k := range m.boundKeys {
		if k == KeyUnused {
			m.boundKeys[i] = key
			return nil
		}
	}
	return ErrNoBuffer
}

// Unbind clears key's slot, if bound.
func (m *Model) Unbind(key BoundKey) {
	for i, k := range m.boundKeys {
		if k == key {
			m.boundKeys[i] = KeyUnused
			return
		}
	}
}

// BoundKeys returns the non-empty bound-key slots in storage order.
func (m *Model) BoundKeys() []BoundKey {
	out := make([]BoundKey, 0, MaxBoundKeys)
	for _, k := range m.boundKeys {
		if k != KeyUnused {
			out = append(out, k)
		}
	}
	return out
}

// SubscribeGroup adds addr to the first free group slot.
func (m *Model) SubscribeGroup(addr uint16) error {
	if m.HasGroup(addr) {
		return nil
	}
	for i, g := range m.groups {
		if g == UnassignedAddr {
			m.groups[i] = addr
			return nil
		}
	}
	return ErrNoBuffer
}

// UnsubscribeGroup clears addr's slot, if present.
func (m *Model) UnsubscribeGroup(addr uint16) {
	for i, g := range m.groups {
		if g == addr {
			m.groups[i] = UnassignedAddr
			return
		}
	}
}

// HasGroup reports a direct (non-ring) group match.
func (m *Model) HasGroup(addr uint16) bool {
	for _, g := range m.groups {
		if g == addr {
			return true
		}
	}
	return false
}

// Groups returns the non-empty group subscriptions in storage order.
func (m *Model) Groups() []uint16 {
	out := make([]uint16, 0, MaxGroups)
	for _, g := range m.groups {
		if g != UnassignedAddr {
			out = append(out, g)
		}
	}
	return out
}

// SubscribeVirtual adds a virtual-label index to the first free slot.
func (m *Model) SubscribeVirtual(labelIdx uint16) error {
	if m.HasVirtual(labelIdx) {
		return nil
	}
	for i, v := range m.vlabels {
		if v == unassignedLabel {
			m.vlabels[i] = labelIdx
			return nil
		}
	}
	return ErrNoBuffer
}

// UnsubscribeVirtual clears labelIdx's slot, if present.
func (m *Model) UnsubscribeVirtual(labelIdx uint16) {
	for i, v := range m.vlabels {
		if v == labelIdx {
			m.vlabels[i] = unassignedLabel
			return
		}
	}
}

// HasVirtual reports a direct (non-ring) virtual-label match.
func (m *Model) HasVirtual(labelIdx uint16) bool {
	for _, v := range m.vlabels {
		if v == labelIdx {
			return true
		}
	}
	return false
}

// VirtualLabels returns the non-empty virtual-address subscriptions.
func (m *Model) VirtualLabels() []uint16 {
	out := make([]uint16, 0, MaxVirtualLabels)
	for _, v := range m.vlabels {
		if v != unassignedLabel {
			out = append(out, v)
		}
	}
	return out
}

func newModel(id ModelID) *Model {
	m := &Model{ID: id, nextIdx: -1}
	for i := range m.boundKeys {
		m.boundKeys[i] = KeyUnused
	}
	for i := range m.groups {
		m.groups[i] = UnassignedAddr
	}
	for i := range m.vlabels {
		m.vlabels[i] = unassignedLabel
	}
	return m
}
