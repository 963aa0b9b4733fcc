// Package wire holds the little-endian byte-cursor primitives shared by
// every bit-exact encoder/decoder in the access layer (composition
// pages, opcodes, publication records). It plays the role the
// teacher's asdu.ASDU Append*/Decode* methods play for ASDU fields,
// generalized to a standalone cursor instead of one tied to a single
// message type.
package wire

import "errors"

// ErrShortBuffer is returned by Decode* helpers when fewer bytes remain
// than the field being decoded requires.
var ErrShortBuffer = errors.New("wire: short buffer")

// Cursor reads and writes a byte slice incrementally, consuming bytes
// from the front on decode and appending on encode.
type Cursor struct {
	buf []byte
}

// NewCursor wraps buf for decoding.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// NewEncoder returns an empty Cursor for building a message.
func NewEncoder() *Cursor { return &Cursor{} }

// Bytes returns the cursor's current remaining (decode) or accumulated
// (encode) content.
func (c *Cursor) Bytes() []byte { return c.buf }

// Len returns the number of bytes remaining.
func (c *Cursor) Len() int { return len(c.buf) }

// AppendByte appends a single octet.
func (c *Cursor) AppendByte(b byte) *Cursor {
	c.buf = append(c.buf, b)
	return c
}

// AppendBytes appends raw bytes verbatim.
func (c *Cursor) AppendBytes(b ...byte) *Cursor {
	c.buf = append(c.buf, b...)
	return c
}

// AppendU16 appends v little-endian.
func (c *Cursor) AppendU16(v uint16) *Cursor {
	c.buf = append(c.buf, byte(v), byte(v>>8))
	return c
}

// AppendU32 appends v little-endian.
func (c *Cursor) AppendU32(v uint32) *Cursor {
	c.buf = append(c.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	return c
}

// DecodeByte consumes and returns one octet.
func (c *Cursor) DecodeByte() (byte, error) {
	if len(c.buf) < 1 {
		return 0, ErrShortBuffer
	}
	v := c.buf[0]
	c.buf = c.buf[1:]
	return v, nil
}

// DecodeU16 consumes a little-endian uint16.
func (c *Cursor) DecodeU16() (uint16, error) {
	if len(c.buf) < 2 {
		return 0, ErrShortBuffer
	}
	v := uint16(c.buf[0]) | uint16(c.buf[1])<<8
	c.buf = c.buf[2:]
	return v, nil
}

// DecodeU32 consumes a little-endian uint32.
func (c *Cursor) DecodeU32() (uint32, error) {
	if len(c.buf) < 4 {
		return 0, ErrShortBuffer
	}
	v := uint32(c.buf[0]) | uint32(c.buf[1])<<8 | uint32(c.buf[2])<<16 | uint32(c.buf[3])<<24
	c.buf = c.buf[4:]
	return v, nil
}

// DecodeBytes consumes and returns the next n bytes.
func (c *Cursor) DecodeBytes(n int) ([]byte, error) {
	if len(c.buf) < n {
		return nil, ErrShortBuffer
	}
	v := c.buf[:n]
	c.buf = c.buf[n:]
	return v, nil
}

// Mark returns a snapshot of the cursor's position so a handler can
// restore it on the way out (§4.5 step 6: "save buffer read cursor,
// invoke handler, restore cursor").
func (c *Cursor) Mark() []byte { return c.buf }

// Restore resets the cursor to a previously captured Mark.
func (c *Cursor) Restore(mark []byte) { c.buf = mark }

// Window copies min(len(dst), len(src)-offset) bytes of src starting at
// offset into dst, returning the count written. StreamCopy uses it for
// partial reads (§4.3); src is the fully encoded page.
func Window(dst []byte, src []byte, offset int) int {
	if offset >= len(src) {
		return 0
	}
	n := copy(dst, src[offset:])
	return n
}
