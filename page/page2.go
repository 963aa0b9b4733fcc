package page

import (
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/wire"
)

// encodePage2 builds Composition Data Page 2 in full (§4.3 "Page 2
// layout") along with per-record boundary cut points.
func encodePage2(comp *composition.Composition) ([]byte, []int) {
	c := wire.NewEncoder()
	boundaries := []int{0}
	for _, rec := range comp.Page2 {
		c.AppendU16(rec.ProfileID)
		c.AppendBytes(rec.VersionX, rec.VersionY, rec.VersionZ)
		c.AppendByte(byte(len(rec.ElemOffset)))
		c.AppendBytes(rec.ElemOffset...)
		c.AppendU16(uint16(len(rec.AdditData)))
		c.AppendBytes(rec.AdditData...)
		boundaries = append(boundaries, len(c.Bytes()))
	}
	return c.Bytes(), boundaries
}

// Page2Size returns the exact byte length of Page 2.
func Page2Size(comp *composition.Composition) int {
	full, _ := encodePage2(comp)
	return len(full)
}

// GetPage2 writes up to len(dst) bytes of Page 2 starting at offset.
func GetPage2(comp *composition.Composition, offset int, dst []byte, allowPartial bool) (n int, truncated bool) {
	full, boundaries := encodePage2(comp)
	return streamCopy(dst, full, offset, allowPartial, boundaries)
}
