package access

import "github.com/go-ble/meshaccess/wire"

// ErrReservedOpcode flags the reserved single-octet opcode 0x7F (§4.5).
type opcodeError string

func (e opcodeError) Error() string { return string(e) }

const ErrReservedOpcode = opcodeError("access: opcode 0x7F is reserved")

// DecodedOpcode is one decoded opcode plus the octet count it consumed,
// which the dispatcher needs to choose between the SIG and vendor model
// lists (§4.5 step 1 of element_recv).
type DecodedOpcode struct {
	Opcode uint32
	Octets int
}

// DecodeOpcode consumes the leading 1, 2, or 3 octets of buf per the
// class encoded in the first byte's top bits (§4.5):
//
//	0b00xxxxxx / 0b01xxxxxx (not 0x7F): 1-octet opcode.
//	0x7F: reserved, rejected.
//	0b10xxxxxx: 2-octet opcode, big-endian.
//	0b11xxxxxx: 3-octet opcode; byte0<<16 | company-id, where the
//	  company id occupies bytes 1-2 little-endian — intentionally
//	  asymmetric with the big-endian 2-octet case, to match the
//	  model-layer encoding.
func DecodeOpcode(buf *wire.Cursor) (DecodedOpcode, error) {
	b0, err := buf.DecodeByte()
	if err != nil {
		return DecodedOpcode{}, err
	}
	if b0 == 0x7F {
		return DecodedOpcode{}, ErrReservedOpcode
	}
	switch b0 >> 6 {
	case 0b00, 0b01:
		return DecodedOpcode{Opcode: uint32(b0), Octets: 1}, nil
	case 0b10:
		b1, err := buf.DecodeByte()
		if err != nil {
			return DecodedOpcode{}, err
		}
		return DecodedOpcode{Opcode: uint32(b0)<<8 | uint32(b1), Octets: 2}, nil
	default: // 0b11
		cid, err := buf.DecodeU16()
		if err != nil {
			return DecodedOpcode{}, err
		}
		return DecodedOpcode{Opcode: uint32(b0)<<16 | uint32(cid), Octets: 3}, nil
	}
}
