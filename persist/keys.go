package persist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ble/meshaccess/composition"
)

// Root prefixes for the two per-model key families (§4.7): "s" for SIG
// models, "v" for vendor models.
const (
	rootSig    = "bt/mesh/s"
	rootVendor = "bt/mesh/v"
)

func kindRoot(vendor bool) string {
	if vendor {
		return rootVendor
	}
	return rootSig
}

// localIndex returns m's position within its own element's SIG or
// vendor list, independent of the nSig-shifted index
// Composition.installRuntime assigns to Model.ModIdx — the settings
// path keys a vendor model by its position among vendor models, not
// its shifted combined index.
func localIndex(comp *composition.Composition, m *composition.Model) int {
	if !m.ID.Vendor {
		return m.ModIdx()
	}
	return m.ModIdx() - len(comp.Elements[m.ElemIdx()].SigModels)
}

func modelPrefix(comp *composition.Composition, m *composition.Model) string {
	idx := localIndex(comp, m)
	return fmt.Sprintf("%s/%02x%02x", kindRoot(m.ID.Vendor), m.ElemIdx(), idx)
}

func bindKey(comp *composition.Composition, m *composition.Model) string {
	return modelPrefix(comp, m) + "/bind"
}

func subKey(comp *composition.Composition, m *composition.Model) string {
	return modelPrefix(comp, m) + "/sub"
}

func subvKey(comp *composition.Composition, m *composition.Model) string {
	return modelPrefix(comp, m) + "/subv"
}

func pubKey(comp *composition.Composition, m *composition.Model) string {
	return modelPrefix(comp, m) + "/pub"
}

func dataKeyPath(comp *composition.Composition, m *composition.Model, name string) string {
	return modelPrefix(comp, m) + "/data/" + name
}

// parsedKey is one decoded per-model settings path.
type parsedKey struct {
	elemIdx int
	modIdx  int // local to the element's SIG or vendor list
	vendor  bool
	section string // "bind", "sub", "subv", "pub", "data"
	name    string // set only when section == "data"
}

// parseKey decodes a settings path produced by modelPrefix back into
// its (element, model, section) components, used by Load to restore
// state on boot. Returns ok=false for any path that isn't a
// recognized per-model key.
func parseKey(key string) (parsedKey, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 5 || parts[0] != "bt" || parts[1] != "mesh" {
		return parsedKey{}, false
	}
	var vendor bool
	switch parts[2] {
	case "s":
		vendor = false
	case "v":
		vendor = true
	default:
		return parsedKey{}, false
	}
	idxHex := parts[3]
	if len(idxHex) != 4 {
		return parsedKey{}, false
	}
	elemIdx, err := strconv.ParseUint(idxHex[0:2], 16, 8)
	if err != nil {
		return parsedKey{}, false
	}
	modIdx, err := strconv.ParseUint(idxHex[2:4], 16, 8)
	if err != nil {
		return parsedKey{}, false
	}
	section := parts[4]
	name := ""
	if section == "data" {
		if len(parts) < 6 {
			return parsedKey{}, false
		}
		name = strings.Join(parts[5:], "/")
	}
	return parsedKey{
		elemIdx: int(elemIdx),
		modIdx:  int(modIdx),
		vendor:  vendor,
		section: section,
		name:    name,
	}, true
}

// modelAt resolves a parsedKey's (element, local index, vendor) triple
// back to the Model it names, or false if the composition no longer has
// a model at that slot (a stale settings record left by a composition
// change).
func modelAt(comp *composition.Composition, k parsedKey) (*composition.Model, bool) {
	if k.elemIdx < 0 || k.elemIdx >= len(comp.Elements) {
		return nil, false
	}
	elem := comp.Elements[k.elemIdx]
	if k.vendor {
		if k.modIdx < 0 || k.modIdx >= len(elem.VendorModels) {
			return nil, false
		}
		return elem.VendorModels[k.modIdx], true
	}
	if k.modIdx < 0 || k.modIdx >= len(elem.SigModels) {
		return nil, false
	}
	return elem.SigModels[k.modIdx], true
}

func allModels(comp *composition.Composition) []*composition.Model {
	out := make([]*composition.Model, 0)
	for _, elem := range comp.Elements {
		out = append(out, elem.SigModels...)
		out = append(out, elem.VendorModels...)
	}
	return out
}
