package page

import (
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/wire"
)

func modelsWithMetadata(models []*composition.Model) []*composition.Model {
	var out []*composition.Model
	for _, m := range models {
		if len(m.Metadata) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func encodeMetadataModel(c *wire.Cursor, m *composition.Model) {
	if m.ID.Vendor {
		c.AppendU16(m.ID.Company)
		c.AppendU16(m.ID.VndID)
	} else {
		c.AppendU16(m.ID.SigID)
	}
	c.AppendByte(byte(len(m.Metadata)))
	for _, e := range m.Metadata {
		c.AppendU16(uint16(len(e.Data)))
		c.AppendU16(e.ID)
		c.AppendBytes(e.Data...)
	}
}

// encodeMetadata0 builds Models Metadata Page 0 in full (§4.3
// "Metadata page 0") along with per-element boundary cut points.
func encodeMetadata0(comp *composition.Composition) ([]byte, []int) {
	c := wire.NewEncoder()
	boundaries := []int{0}
	for _, elem := range comp.Elements {
		sigWithMeta := modelsWithMetadata(elem.SigModels)
		vndWithMeta := modelsWithMetadata(elem.VendorModels)
		c.AppendByte(byte(len(sigWithMeta)))
		c.AppendByte(byte(len(vndWithMeta)))
		for _, m := range sigWithMeta {
			encodeMetadataModel(c, m)
		}
		for _, m := range vndWithMeta {
			encodeMetadataModel(c, m)
		}
		boundaries = append(boundaries, len(c.Bytes()))
	}
	return c.Bytes(), boundaries
}

// Metadata0Size returns the exact byte length of Metadata Page 0.
func Metadata0Size(comp *composition.Composition) int {
	full, _ := encodeMetadata0(comp)
	return len(full)
}

// GetMetadata0 writes up to len(dst) bytes of Metadata Page 0 starting
// at offset.
func GetMetadata0(comp *composition.Composition, offset int, dst []byte, allowPartial bool) (n int, truncated bool) {
	full, boundaries := encodeMetadata0(comp)
	return streamCopy(dst, full, offset, allowPartial, boundaries)
}
