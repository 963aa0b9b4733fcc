package access

import (
	"testing"

	"github.com/go-ble/meshaccess/wire"
)

func TestDecodeOpcode1Octet(t *testing.T) {
	got, err := DecodeOpcode(wire.NewCursor([]byte{0x01}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Opcode != 0x01 || got.Octets != 1 {
		t.Fatalf("got %+v", got)
	}
}

// §8: opcode 0x7F is always rejected.
func TestDecodeOpcode7FRejected(t *testing.T) {
	_, err := DecodeOpcode(wire.NewCursor([]byte{0x7F}))
	if err != ErrReservedOpcode {
		t.Fatalf("err = %v, want ErrReservedOpcode", err)
	}
}

func TestDecodeOpcode2Octet(t *testing.T) {
	got, err := DecodeOpcode(wire.NewCursor([]byte{0x82, 0x01}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Octets != 2 || got.Opcode != 0x8201 {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeOpcode3OctetLittleEndianCompany(t *testing.T) {
	// byte0=0xC1, company bytes 0x59,0x00 (LE -> 0x0059).
	got, err := DecodeOpcode(wire.NewCursor([]byte{0xC1, 0x59, 0x00}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Octets != 3 {
		t.Fatalf("octets = %d, want 3", got.Octets)
	}
	wantOpcode := uint32(0xC1)<<16 | 0x0059
	if got.Opcode != wantOpcode {
		t.Fatalf("opcode = 0x%06x, want 0x%06x", got.Opcode, wantOpcode)
	}
}

// §8: a 3-octet opcode with < 3 bytes of payload is rejected.
func TestDecodeOpcode3OctetShortBuffer(t *testing.T) {
	_, err := DecodeOpcode(wire.NewCursor([]byte{0xC1, 0x59}))
	if err != wire.ErrShortBuffer {
		t.Fatalf("err = %v, want ErrShortBuffer", err)
	}
}
