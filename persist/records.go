package persist

import (
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/wire"
)

// devKeySentinel is the /pub "key" field value meaning "device key", the
// wire-level counterpart of composition's in-memory AppKeyIdx == -1
// convention (§4.7 "/pub").
const devKeySentinel = 0xFFFF

// pubCredBit marks PublicationState.Cred in the period_div|cred|rsvd
// byte (§4.7 "/pub": "period_div:4|cred:1|rsvd:3").
const pubCredBit = 1 << 4

// encodeU16Array packs vs as a little-endian uint16 array (§4.7 "/bind",
// "/sub", "/subv": "packed LE array ... skipping UNUSED"/"UNASSIGNED" —
// callers already filter those out via BoundKeys/Groups/VirtualLabels).
func encodeU16Array(vs []uint16) []byte {
	c := wire.NewEncoder()
	for _, v := range vs {
		c.AppendU16(v)
	}
	return c.Bytes()
}

func decodeU16Array(buf []byte) ([]uint16, error) {
	c := wire.NewCursor(buf)
	out := make([]uint16, 0, c.Len()/2)
	for c.Len() > 0 {
		v, err := c.DecodeU16()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func encodeBind(m *composition.Model) []byte {
	vs := make([]uint16, 0, composition.MaxBoundKeys)
	for _, k := range m.BoundKeys() {
		if idx, ok := k.App(); ok {
			vs = append(vs, uint16(idx))
		}
	}
	return encodeU16Array(vs)
}

func encodeSub(m *composition.Model) []byte {
	return encodeU16Array(m.Groups())
}

func encodeSubV(m *composition.Model) []byte {
	return encodeU16Array(m.VirtualLabels())
}

// pubRecord mirrors the fixed layout of §4.7's "/pub" record, carried
// separately from composition.PublicationState so the wire shape and the
// runtime shape stay independently editable.
type pubRecord struct {
	Addr       uint16
	AppKeyIdx  int16
	TTL        uint8
	Retransmit uint8
	Period     uint8
	PeriodDiv  uint8
	Cred       bool
	VirtualIdx uint16
}

func encodePub(p *composition.PublicationState) []byte {
	c := wire.NewEncoder()
	c.AppendU16(p.Addr)
	key := uint16(devKeySentinel)
	if p.AppKeyIdx >= 0 {
		key = uint16(p.AppKeyIdx)
	}
	c.AppendU16(key)
	c.AppendByte(p.TTL)
	c.AppendByte(p.Retransmit)
	c.AppendByte(p.Period)
	bitfield := p.PeriodDiv & 0x0F
	if p.Cred {
		bitfield |= pubCredBit
	}
	c.AppendByte(bitfield)
	if composition.IsVirtualAddr(p.Addr) {
		c.AppendU16(p.VirtualIdx)
	}
	return c.Bytes()
}

func decodePub(buf []byte) (pubRecord, error) {
	c := wire.NewCursor(buf)
	var rec pubRecord
	var err error
	if rec.Addr, err = c.DecodeU16(); err != nil {
		return rec, err
	}
	key, err := c.DecodeU16()
	if err != nil {
		return rec, err
	}
	if key == devKeySentinel {
		rec.AppKeyIdx = -1
	} else {
		rec.AppKeyIdx = int16(key)
	}
	if rec.TTL, err = c.DecodeByte(); err != nil {
		return rec, err
	}
	if rec.Retransmit, err = c.DecodeByte(); err != nil {
		return rec, err
	}
	if rec.Period, err = c.DecodeByte(); err != nil {
		return rec, err
	}
	bitfield, err := c.DecodeByte()
	if err != nil {
		return rec, err
	}
	rec.PeriodDiv = bitfield & 0x0F
	rec.Cred = bitfield&pubCredBit != 0
	if composition.IsVirtualAddr(rec.Addr) {
		if rec.VirtualIdx, err = c.DecodeU16(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// applyPub copies a decoded record onto p, leaving runtime-only fields
// (Count, PeriodStart, Update, UpdateOnRetransmit, FastPeriod, Delayable,
// Msg) untouched — those are model-capability or in-flight state, not
// part of the persisted record (§4.7 "/pub" lists exactly these fields).
func applyPub(p *composition.PublicationState, rec pubRecord) {
	p.Addr = rec.Addr
	p.AppKeyIdx = rec.AppKeyIdx
	p.TTL = rec.TTL
	p.Retransmit = rec.Retransmit
	p.Period = rec.Period
	p.PeriodDiv = rec.PeriodDiv
	p.Cred = rec.Cred
	p.VirtualIdx = rec.VirtualIdx
}
