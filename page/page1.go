package page

import (
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/wire"
)

const (
	page1HdrCorrespondence = 1 << 0
	page1HdrLongFormat     = 1 << 1
	page1HdrExtShift       = 2
)

// useLongFormat decides short vs long extension-entry format (§4.3):
// short requires fewer than 32 entries and every relative element
// offset within [-4, 3].
func useLongFormat(exts []composition.ExtensionRef) bool {
	if len(exts) >= 32 {
		return true
	}
	for _, e := range exts {
		if e.RelElem < -4 || e.RelElem > 3 {
			return true
		}
	}
	return false
}

func encodeShortExtension(e composition.ExtensionRef) byte {
	off := e.RelElem
	if off < 0 {
		off += 8
	}
	return byte(e.BaseIdx<<3) | byte(off&0x07)
}

func encodeLongExtension(e composition.ExtensionRef) (byte, byte) {
	off := e.RelElem
	if off < 0 {
		off += 256
	}
	return byte(off), byte(e.BaseIdx)
}

func encodeModelItem(c *wire.Cursor, comp *composition.Composition, m *composition.Model) {
	exts := comp.ExtensionsOf(m)
	long := useLongFormat(exts)
	corrID, hasCorr := comp.CorrespondenceOf(m)

	hdr := byte(len(exts)&0x3F) << page1HdrExtShift
	if hasCorr {
		hdr |= page1HdrCorrespondence
	}
	if long {
		hdr |= page1HdrLongFormat
	}
	c.AppendByte(hdr)
	if hasCorr {
		c.AppendByte(corrID)
	}
	for _, e := range exts {
		if long {
			b0, b1 := encodeLongExtension(e)
			c.AppendBytes(b0, b1)
		} else {
			c.AppendByte(encodeShortExtension(e))
		}
	}
}

// encodePage1 builds Composition Data Page 1 in full (§4.3 "Page 1
// layout") along with per-element boundary cut points.
func encodePage1(comp *composition.Composition) ([]byte, []int) {
	c := wire.NewEncoder()
	boundaries := []int{0}
	for _, elem := range comp.Elements {
		c.AppendByte(byte(len(elem.SigModels)))
		c.AppendByte(byte(len(elem.VendorModels)))
		for _, m := range elem.SigModels {
			encodeModelItem(c, comp, m)
		}
		for _, m := range elem.VendorModels {
			encodeModelItem(c, comp, m)
		}
		boundaries = append(boundaries, len(c.Bytes()))
	}
	return c.Bytes(), boundaries
}

// Page1Size returns the exact byte length of Page 1.
func Page1Size(comp *composition.Composition) int {
	full, _ := encodePage1(comp)
	return len(full)
}

// GetPage1 writes up to len(dst) bytes of Page 1 starting at offset.
func GetPage1(comp *composition.Composition, offset int, dst []byte, allowPartial bool) (n int, truncated bool) {
	full, boundaries := encodePage1(comp)
	return streamCopy(dst, full, offset, allowPartial, boundaries)
}
