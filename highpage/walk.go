package highpage

import (
	"fmt"

	"github.com/go-ble/meshaccess/wire"
)

const micReserve = 4

func streamCopy(dst []byte, full []byte, offset int, allowPartial bool, boundaries []int) (n int, truncated bool) {
	return wire.StreamCopy(dst, full, offset, allowPartial, boundaries, micReserve)
}

// elementBoundaries walks a staged composition-data blob element by
// element, using the format-specific sizing routine for page (§4.4):
// page 128 mirrors Page 0's "4 + 2*nSIG + 4*nVnd" per-element layout,
// page 129 walks each Page-1 model item via its flags byte, page 130
// walks each Page-2 record's 8-byte fixed prefix plus its variable
// parts.
func elementBoundaries(page int, blob []byte) ([]int, error) {
	switch page {
	case 128:
		return walkPage128(blob)
	case 129:
		return walkPage129(blob)
	case 130:
		return walkPage130(blob)
	default:
		return nil, fmt.Errorf("highpage: unsupported page %d", page)
	}
}

func walkPage128(blob []byte) ([]int, error) {
	boundaries := []int{0}
	off := 0
	for off < len(blob) {
		if off+4 > len(blob) {
			return nil, fmt.Errorf("highpage: page 128 truncated element header at %d", off)
		}
		nSig := int(blob[off+2])
		nVnd := int(blob[off+3])
		size := 4 + 2*nSig + 4*nVnd
		off += size
		if off > len(blob) {
			return nil, fmt.Errorf("highpage: page 128 element overruns blob")
		}
		boundaries = append(boundaries, off)
	}
	return boundaries, nil
}

// modelItemSize decodes one Page-1-format model item's total byte
// length from its leading flags byte (§4.3 "Page 1 layout").
func modelItemSize(blob []byte, off int) (int, error) {
	if off >= len(blob) {
		return 0, fmt.Errorf("highpage: page 129 item header out of range at %d", off)
	}
	hdr := blob[off]
	hasCorr := hdr&0x01 != 0
	long := hdr&0x02 != 0
	extCount := int(hdr >> 2)

	size := 1
	if hasCorr {
		size++
	}
	if long {
		size += extCount * 2
	} else {
		size += extCount
	}
	return size, nil
}

func walkPage129(blob []byte) ([]int, error) {
	boundaries := []int{0}
	off := 0
	for off < len(blob) {
		if off+2 > len(blob) {
			return nil, fmt.Errorf("highpage: page 129 truncated element header at %d", off)
		}
		nSig := int(blob[off])
		nVnd := int(blob[off+1])
		off += 2
		for i := 0; i < nSig+nVnd; i++ {
			size, err := modelItemSize(blob, off)
			if err != nil {
				return nil, err
			}
			off += size
			if off > len(blob) {
				return nil, fmt.Errorf("highpage: page 129 model item overruns blob")
			}
		}
		boundaries = append(boundaries, off)
	}
	return boundaries, nil
}

func walkPage130(blob []byte) ([]int, error) {
	boundaries := []int{0}
	off := 0
	for off < len(blob) {
		if off+6 > len(blob) {
			return nil, fmt.Errorf("highpage: page 130 truncated record prefix at %d", off)
		}
		k := int(blob[off+5])
		additLenOff := off + 6 + k
		if additLenOff+2 > len(blob) {
			return nil, fmt.Errorf("highpage: page 130 record overruns blob at %d", off)
		}
		additLen := int(blob[additLenOff]) | int(blob[additLenOff+1])<<8
		recSize := 8 + k + additLen
		off += recSize
		if off > len(blob) {
			return nil, fmt.Errorf("highpage: page 130 record overruns blob")
		}
		boundaries = append(boundaries, off)
	}
	return boundaries, nil
}

// metadataElementBoundaries walks a staged metadata-128 blob the same
// way the live Metadata Page 0 serializer lays elements out.
func metadataElementBoundaries(blob []byte) ([]int, error) {
	boundaries := []int{0}
	off := 0
	for off < len(blob) {
		if off+2 > len(blob) {
			return nil, fmt.Errorf("highpage: metadata-128 truncated element header at %d", off)
		}
		nSig := int(blob[off])
		nVnd := int(blob[off+1])
		off += 2
		for i := 0; i < nSig+nVnd; i++ {
			size, err := metadataModelSize(blob, off, i >= nSig)
			if err != nil {
				return nil, err
			}
			off += size
			if off > len(blob) {
				return nil, fmt.Errorf("highpage: metadata-128 model item overruns blob")
			}
		}
		boundaries = append(boundaries, off)
	}
	return boundaries, nil
}

// metadataModelSize returns the byte length of one model's metadata
// item, starting with its id (2 bytes for a SIG model, 4 bytes
// company+id for a vendor model, per page.encodeMetadataModel).
func metadataModelSize(blob []byte, off int, vendor bool) (int, error) {
	idWidth := 2
	if vendor {
		idWidth = 4
	}
	if off+idWidth+1 > len(blob) {
		return 0, fmt.Errorf("highpage: metadata-128 item header out of range at %d", off)
	}
	entryCount := int(blob[off+idWidth])
	size := idWidth + 1
	p := off + idWidth + 1
	for i := 0; i < entryCount; i++ {
		if p+4 > len(blob) {
			return 0, fmt.Errorf("highpage: metadata-128 entry header out of range at %d", p)
		}
		entryLen := int(blob[p]) | int(blob[p+1])<<8
		p += 4 + entryLen
	}
	size = p - off
	return size, nil
}
