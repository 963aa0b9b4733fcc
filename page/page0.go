package page

import (
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/wire"
)

// encodePage0 builds Composition Data Page 0 in full (§4.3 "Page 0
// layout") and returns the element-boundary cut points alongside it
// (index 0 is 0, index 1 is the end of the fixed header, each later
// entry is the end of one element, the last is the full page length).
func encodePage0(comp *composition.Composition) ([]byte, []int) {
	c := wire.NewEncoder()
	c.AppendU16(comp.CID)
	c.AppendU16(comp.PID)
	c.AppendU16(comp.VID)
	c.AppendU16(comp.CRPL)
	c.AppendU16(comp.Features)

	boundaries := []int{0, len(c.Bytes())}
	for _, elem := range comp.Elements {
		c.AppendU16(elem.Location)
		c.AppendByte(byte(len(elem.SigModels)))
		c.AppendByte(byte(len(elem.VendorModels)))
		for _, m := range elem.SigModels {
			c.AppendU16(m.ID.SigID)
		}
		for _, m := range elem.VendorModels {
			c.AppendU16(m.ID.Company)
			c.AppendU16(m.ID.VndID)
		}
		boundaries = append(boundaries, len(c.Bytes()))
	}
	return c.Bytes(), boundaries
}

// Page0Size returns the exact byte length of Page 0.
func Page0Size(comp *composition.Composition) int {
	full, _ := encodePage0(comp)
	return len(full)
}

// GetPage0 writes up to len(dst) bytes of Page 0 starting at offset,
// honoring the element-boundary/MIC-reservation discipline when
// allowPartial is false (§4.3 "Streaming discipline").
func GetPage0(comp *composition.Composition, offset int, dst []byte, allowPartial bool) (n int, truncated bool) {
	full, boundaries := encodePage0(comp)
	return streamCopy(dst, full, offset, allowPartial, boundaries)
}
