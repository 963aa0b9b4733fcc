package composition

// relationRecord is one extension or correspondence tuple (§3
// "Relation record"). Type 0xFF marks extension; 0x00-0xFE is a
// correspondence-group id.
type relationRecord struct {
	elemBase, idxBase uint8
	elemExt, idxExt   uint8
	typ               uint8
}

const relationExtend uint8 = 0xFF

type relationTable struct {
	records []relationRecord
	cap     int
}

func newRelationTable(capacity int) relationTable {
	return relationTable{records: make([]relationRecord, 0, capacity), cap: capacity}
}

func (c *Composition) localAddr(m *Model) (elem, idx uint8) {
	return uint8(m.elemIdx), uint8(c.LocalIndex(m))
}

func ensureRing(m *Model) {
	if m.nextIdx == -1 {
		m.nextIdx = m.arena
	}
}

// ringReaches reports whether target is reachable by walking start's
// extension ring, start included.
func ringReaches(c *Composition, start, target *Model) bool {
	if start == target {
		return true
	}
	if start.nextIdx == -1 {
		return false
	}
	for idx := start.nextIdx; idx != start.arena; idx = c.arena[idx].nextIdx {
		if c.arena[idx] == target {
			return true
		}
	}
	return false
}

// Extend merges extending's and base's extension rings, marks base as
// EXTENDED, and records a relationExtend tuple. Re-extending the same
// pair is a no-op (§4.2). If base is already reachable from extending's
// own ring (the two are already on the same ring), the swap-merge is
// skipped — applying it again would split the ring instead of leaving
// it intact.
func (c *Composition) Extend(extending, base *Model) error {
	if extending == nil || base == nil {
		return ErrInvalidArgument
	}
	eE, iE := c.localAddr(extending)
	eB, iB := c.localAddr(base)
	for _, r := range c.relation.records {
		if r.typ == relationExtend && r.elemExt == eE && r.idxExt == iE && r.elemBase == eB && r.idxBase == iB {
			return nil // already extended
		}
	}
	if len(c.relation.records) >= c.relation.cap {
		return ErrOutOfMemory
	}

	ensureRing(extending)
	ensureRing(base)
	if !ringReaches(c, extending, base) {
		extending.nextIdx, base.nextIdx = base.nextIdx, extending.nextIdx
	}

	base.status |= statusExtended
	c.relation.records = append(c.relation.records, relationRecord{
		elemBase: eB, idxBase: iB, elemExt: eE, idxExt: iE, typ: relationExtend,
	})
	return nil
}

// Correspond registers a symmetric correspondence between a and b,
// reusing an existing group id if either model already participates in
// one, otherwise allocating max_id+1 (§4.2).
func (c *Composition) Correspond(a, b *Model) error {
	if c.relation.cap == 0 {
		return ErrNotSupported
	}
	if a == nil || b == nil {
		return ErrInvalidArgument
	}
	eA, iA := c.localAddr(a)
	eB, iB := c.localAddr(b)

	var (
		maxID      int16 = -1
		reuseID    uint8
		foundReuse bool
	)
	for _, r := range c.relation.records {
		if r.typ == relationExtend {
			continue
		}
		if int16(r.typ) > maxID {
			maxID = int16(r.typ)
		}
		if !foundReuse {
			if (r.elemBase == eA && r.idxBase == iA) || (r.elemExt == eA && r.idxExt == iA) ||
				(r.elemBase == eB && r.idxBase == iB) || (r.elemExt == eB && r.idxExt == iB) {
				reuseID = r.typ
				foundReuse = true
			}
		}
	}

	groupID := reuseID
	if !foundReuse {
		if maxID+1 > 0xFE {
			return ErrOutOfMemory
		}
		groupID = uint8(maxID + 1)
	}

	if len(c.relation.records) >= c.relation.cap {
		return ErrOutOfMemory
	}
	c.relation.records = append(c.relation.records, relationRecord{
		elemBase: eA, idxBase: iA, elemExt: eB, idxExt: iB, typ: groupID,
	})
	return nil
}

// ExtensionsOf returns, in table order, the relation records whose
// extending side is m — the set Page 1 serializes as m's extension list
// (§4.3).
func (c *Composition) ExtensionsOf(m *Model) []ExtensionRef {
	e, i := c.localAddr(m)
	var out []ExtensionRef
	for _, r := range c.relation.records {
		if r.typ == relationExtend && r.elemExt == e && r.idxExt == i {
			out = append(out, ExtensionRef{
				RelElem: int(r.elemBase) - int(e),
				BaseIdx: int(r.idxBase),
			})
		}
	}
	return out
}

// ExtensionRef is one decoded extension entry: the base model's
// relative element offset and its local index (§4.3).
type ExtensionRef struct {
	RelElem int
	BaseIdx int
}

// CorrespondenceOf returns the correspondence-group id of m, if any.
func (c *Composition) CorrespondenceOf(m *Model) (uint8, bool) {
	e, i := c.localAddr(m)
	for _, r := range c.relation.records {
		if r.typ == relationExtend {
			continue
		}
		if (r.elemBase == e && r.idxBase == i) || (r.elemExt == e && r.idxExt == i) {
			return r.typ, true
		}
	}
	return 0, false
}

// RingMembers walks the circular extension ring starting at m and
// returns every model on it, including m itself. A model never linked
// by Extend forms a ring of one.
func (c *Composition) RingMembers(m *Model) []*Model {
	if m.nextIdx == -1 {
		return []*Model{m}
	}
	out := []*Model{m}
	for idx := m.nextIdx; idx != m.arena; idx = c.arena[idx].nextIdx {
		out = append(out, c.arena[idx])
	}
	return out
}
