package composition

// Feature bits for Page 0's features bitmap (§4.3).
const (
	FeatureRelay    uint16 = 1 << 0
	FeatureProxy    uint16 = 1 << 1
	FeatureFriend   uint16 = 1 << 2
	FeatureLowPower uint16 = 1 << 3
)

// Element is one addressable grouping of models (§3 "Element"). Addr is
// UnassignedAddr until Provision assigns it.
type Element struct {
	Location     uint16
	SigModels    []*Model
	VendorModels []*Model

	addr uint16
}

// Addr returns the element's current unicast address (UnassignedAddr
// before provisioning).
func (e *Element) Addr() uint16 { return e.addr }

// IsVirtualAddr reports whether addr falls in the virtual-address range
// (0x8000-0xBFFF), used by persistence to decide whether a publication
// record carries a trailing uuidx field (§4.7).
func IsVirtualAddr(addr uint16) bool {
	return addr >= 0x8000 && addr <= 0xBFFF
}

// Page2Record is one entry of the optional Composition Data Page 2
// (§4.3): a profile id, a semantic version, element offsets, and
// opaque additional data.
type Page2Record struct {
	ProfileID  uint16
	VersionX   uint8
	VersionY   uint8
	VersionZ   uint8
	ElemOffset []uint8
	AdditData  []byte
}

// Composition is the immutable node description registered once at
// boot (§3 "Lifecycle"). PrimaryAddr is UnassignedAddr until Provision
// is called.
type Composition struct {
	CID      uint16
	PID      uint16
	VID      uint16
	CRPL     uint16
	Features uint16
	Elements []*Element

	Page2 []Page2Record

	PrimaryAddr uint16

	arena    []*Model
	relation relationTable
}

// New builds an empty Composition. relationCapacity bounds the
// extension/correspondence table (§4.2); 0 disables relations entirely
// ("relations disabled at build", §4.2).
func New(cid, pid, vid, crpl, features uint16, relationCapacity int) *Composition {
	return &Composition{
		CID: cid, PID: pid, VID: vid, CRPL: crpl, Features: features,
		PrimaryAddr: UnassignedAddr,
		relation:    newRelationTable(relationCapacity),
	}
}

// RegisterPage2 installs the optional Page 2 descriptor (§4.1
// register_page2; "optional, only if page 2 compiled in").
func (c *Composition) RegisterPage2(records []Page2Record) {
	c.Page2 = records
}

// Register finalizes the composition: assigns element/model runtime
// indices, resets bound keys, arms publication timers in stopped state,
// and runs every model's Init callback in iteration order. It fails
// fast on the first Init error, leaving composition state as it was at
// the point of failure (§4.1).
func (c *Composition) Register() error {
	if len(c.Elements) == 0 {
		return ErrInvalidArgument
	}
	c.arena = c.arena[:0]
	for ei, elem := range c.Elements {
		nSig := len(elem.SigModels)
		for mi, m := range elem.SigModels {
			c.installRuntime(m, ei, mi)
		}
		for vi, m := range elem.VendorModels {
			c.installRuntime(m, ei, nSig+vi)
		}
	}
	for _, elem := range c.Elements {
		for _, m := range elem.SigModels {
			if m.Init != nil {
				if err := m.Init(m); err != nil {
					return err
				}
			}
		}
		for _, m := range elem.VendorModels {
			if m.Init != nil {
				if err := m.Init(m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Composition) installRuntime(m *Model, elemIdx, modIdx int) {
	m.elemIdx = elemIdx
	m.modIdx = modIdx
	m.nextIdx = -1
	m.arena = len(c.arena)
	for i := range m.boundKeys {
		m.boundKeys[i] = KeyUnused
	}
	if m.Pub != nil {
		m.Pub.arenaIdx = m.arena
		m.Pub.stopped = true
		m.status |= statusHasPub
	}
	c.arena = append(c.arena, m)
}

// Provision assigns addr+i to element i (§4.1; design note (c):
// elements are assumed contiguous starting at addr, sparse addressing
// is unsupported).
func (c *Composition) Provision(addr uint16) {
	c.PrimaryAddr = addr
	for i, e := range c.Elements {
		e.addr = addr + uint16(i)
	}
}

// Unprovision resets every element address and PrimaryAddr to
// UnassignedAddr.
func (c *Composition) Unprovision() {
	c.PrimaryAddr = UnassignedAddr
	for _, e := range c.Elements {
		e.addr = UnassignedAddr
	}
}

// ElemFind returns the element whose unicast address equals addr.
// Non-unicast or out-of-range addresses return (nil, false). Address
// arithmetic assumes contiguous element addresses (design note (c)).
func (c *Composition) ElemFind(addr uint16) (*Element, bool) {
	if addr == UnassignedAddr || addr >= 0x8000 {
		return nil, false
	}
	if c.PrimaryAddr == UnassignedAddr || addr < c.PrimaryAddr {
		return nil, false
	}
	idx := int(addr - c.PrimaryAddr)
	if idx < 0 || idx >= len(c.Elements) {
		return nil, false
	}
	return c.Elements[idx], true
}

// ElemIndex returns the position of addr's element, with the same
// checks as ElemFind: non-unicast or out-of-range addresses return
// (0, false) (used by the dispatcher, §4.5 step 1).
func (c *Composition) ElemIndex(addr uint16) (int, bool) {
	if addr == UnassignedAddr || addr >= 0x8000 {
		return 0, false
	}
	if c.PrimaryAddr == UnassignedAddr || addr < c.PrimaryAddr {
		return 0, false
	}
	idx := int(addr - c.PrimaryAddr)
	if idx < 0 || idx >= len(c.Elements) {
		return 0, false
	}
	return idx, true
}

// ModelAt resolves an arena index back to its Model, for relation-table
// consumers (page 1 serialization, extension-ring walks).
func (c *Composition) ModelAt(idx int) *Model {
	if idx < 0 || idx >= len(c.arena) {
		return nil
	}
	return c.arena[idx]
}

// sigModelCountOf returns the number of SIG models on the element owning
// m; used to compute the vendor-index shift relation records apply
// (§3 "Relation record").
func (c *Composition) sigModelCountOf(m *Model) int {
	return len(c.Elements[m.elemIdx].SigModels)
}

// LocalIndex returns the element-local, SIG/vendor-shifted index used
// in relation records (§4.2 "Encoding offsets").
func (c *Composition) LocalIndex(m *Model) int {
	nSig := c.sigModelCountOf(m)
	for i, sm := range c.Elements[m.elemIdx].SigModels {
		if sm == m {
			return i
		}
	}
	for i, vm := range c.Elements[m.elemIdx].VendorModels {
		if vm == m {
			return nSig + i
		}
	}
	return m.modIdx
}

// NewSigModel allocates a SIG model with id; the caller adds it to an
// element's SigModels.
func NewSigModel(id uint16) *Model { return newModel(SIG(id)) }

// NewVendorModel allocates a vendor model with {company, id}.
func NewVendorModel(company, id uint16) *Model { return newModel(Vendor(company, id)) }
