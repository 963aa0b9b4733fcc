// Package compdata is the composition-data facade exposed to models
// (§6 "Exposed to models"): comp_data_get_page, comp_page_size,
// comp_128_changed, comp_128_elem_count, plus the Large Composition
// Data Server / Models Metadata Server opcode handlers that ride on
// top of it. It composes composition, page and highpage without those
// packages knowing about each other.
package compdata

import (
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/highpage"
	"github.com/go-ble/meshaccess/page"
)

// FeatureGates mirrors the compile-time feature gates the
// configuration server's page parser checks (§4.8 parse_page).
type FeatureGates struct {
	HighPages bool
	Page2     bool
}

func gateEnabled(p uint8, gates FeatureGates) bool {
	switch p {
	case 130:
		return gates.HighPages && gates.Page2
	case 129, 128:
		return gates.HighPages
	case 2:
		return gates.Page2
	default:
		return true
	}
}

// ParsePage returns the highest page the node supports that is <=
// requested (§4.8 parse_page): clamp order 130 -> 129 -> 128 -> 2 -> 1
// -> 0.
func ParsePage(requested uint8, gates FeatureGates) uint8 {
	for _, p := range [...]uint8{130, 129, 128, 2, 1, 0} {
		if requested >= p && gateEnabled(p, gates) {
			return p
		}
	}
	return 0
}

// ClampHighOrZero implements the binary clamp the Models Metadata Get
// opcode applies to its wire page byte (§6 "Wire constants"): the
// value collapses to 128 when high-pages are supported and it is
// >= 128, else to 0. Large Composition Data Get uses ParsePage instead.
//
// Design note / open question (a): handle_models_metadata_get clamps
// this way regardless of intermediate page numbers, asymmetric with
// ParsePage's graduated fallback for Composition Data Get — preserved
// intentionally per §9.
func ClampHighOrZero(requested uint8, highPagesSupported bool) uint8 {
	if requested >= 128 && highPagesSupported {
		return 128
	}
	return 0
}

// GetCompPage serves one Composition Data Page. Pages >= 128 prefer a
// staged high-page record; a missing or sentinel record falls back to
// the live page %128 (§4.4 get_contents).
func GetCompPage(comp *composition.Composition, high *highpage.Store, pg int, offset int, dst []byte, allowPartial bool) (n int, truncated bool, err error) {
	if pg >= 128 {
		n, truncated, found, rerr := high.Read(pg, offset, dst, allowPartial)
		if rerr != nil && rerr != composition.ErrNotFound {
			return 0, false, rerr
		}
		if found && (n > 0 || truncated) {
			return n, truncated, nil
		}
		return GetCompPage(comp, high, pg-128, offset, dst, allowPartial)
	}
	switch pg {
	case 0:
		n, truncated = page.GetPage0(comp, offset, dst, allowPartial)
	case 1:
		n, truncated = page.GetPage1(comp, offset, dst, allowPartial)
	case 2:
		n, truncated = page.GetPage2(comp, offset, dst, allowPartial)
	default:
		return 0, false, composition.ErrNotSupported
	}
	return n, truncated, nil
}

// CompPageSize returns the live or staged size of a composition page
// (§4.4 page_size: "if page >= 128 and a stored non-sentinel exists,
// return its length; else return the live size of page % 128").
func CompPageSize(comp *composition.Composition, high *highpage.Store, pg int) int {
	if pg >= 128 {
		if size := high.Size(pg); size > 0 {
			return size
		}
		return CompPageSize(comp, high, pg-128)
	}
	switch pg {
	case 0:
		return page.Page0Size(comp)
	case 1:
		return page.Page1Size(comp)
	case 2:
		return page.Page2Size(comp)
	default:
		return 0
	}
}

// GetMetadataPage serves Models Metadata Page 0 or its staged
// successor 128, with the same fallback rule as GetCompPage.
func GetMetadataPage(comp *composition.Composition, high *highpage.Store, pg int, offset int, dst []byte, allowPartial bool) (n int, truncated bool, err error) {
	if pg == 128 {
		n, truncated, found, rerr := high.ReadMetadata128(offset, dst, allowPartial)
		if rerr != nil && rerr != composition.ErrNotFound {
			return 0, false, rerr
		}
		if found && (n > 0 || truncated) {
			return n, truncated, nil
		}
		return GetMetadataPage(comp, high, 0, offset, dst, allowPartial)
	}
	n, truncated = page.GetMetadata0(comp, offset, dst, allowPartial)
	return n, truncated, nil
}

// MetadataPageSize is CompPageSize's metadata-page counterpart.
func MetadataPageSize(comp *composition.Composition, high *highpage.Store, pg int) int {
	if pg == 128 {
		if size := high.SizeMetadata128(); size > 0 {
			return size
		}
		return MetadataPageSize(comp, high, 0)
	}
	return page.Metadata0Size(comp)
}

// Changed128 reports whether a page-128 record (sentinel or not) has
// been staged.
func Changed128(high *highpage.Store) bool { return high.Changed128() }

// Elem128Count reports the element count the staged page-128 blob
// describes, for a configuration server tracking a composition-change
// rollout.
func Elem128Count(high *highpage.Store) int { return high.Elem128Count() }
