// Package highpage implements the pending-successor-page store (§4.4,
// "High pages (128+)"): pages 128/129/130 and metadata page 128 staged
// by a firmware update, served alongside the active composition until
// the update commits.
package highpage

import (
	"bytes"
	"fmt"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
)

// sentinel marks "staged content is byte-identical to the live page" —
// written instead of the real bytes to save flash (§4.4 "write").
var sentinel = []byte{0x00}

// Store is the high-pages persistence front for pages 128/129/130 and
// metadata-128. It keeps an in-memory copy of every staged blob: each
// write goes straight through to settings, Load restores the blobs
// once at boot, and Read/Size are served from RAM.
type Store struct {
	settings ports.Settings
	log      clog.Clog
	blobs    map[string][]byte
}

// NewStore wires settings as the persistence backend.
func NewStore(settings ports.Settings, log clog.Clog) *Store {
	return &Store{settings: settings, log: log, blobs: make(map[string][]byte)}
}

func cmpKey(page int) string { return fmt.Sprintf("bt/mesh/cmp/%d", page) }
func metadataKey() string    { return "bt/mesh/metadata/128" }

// Load restores every staged blob from settings at boot.
func (s *Store) Load() error {
	read := func(key string, totalLen int, readFn func([]byte) (int, error)) error {
		buf := make([]byte, totalLen)
		if totalLen > 0 {
			if _, err := readFn(buf); err != nil {
				return err
			}
		}
		s.blobs[key] = buf
		return nil
	}
	if err := s.settings.LoadSubtreeDirect("bt/mesh/cmp", read); err != nil {
		return err
	}
	return s.settings.LoadSubtreeDirect("bt/mesh/metadata", read)
}

func isSentinel(blob []byte) bool {
	return len(blob) == 1 && blob[0] == 0x00
}

// Write stages data for page (composition pages 128/129/130). If data
// is empty, or byte-identical to currentLive (the corresponding active
// page's current bytes), a 1-byte sentinel is written instead (§4.4).
func (s *Store) Write(page int, currentLive, data []byte) error {
	key := cmpKey(page)
	payload := data
	if len(data) == 0 || bytes.Equal(data, currentLive) {
		payload = sentinel
	}
	s.blobs[key] = payload
	if err := s.settings.SaveOne(key, payload); err != nil {
		s.log.Error("high-page write failed", map[string]any{"page": page, "err": err.Error()})
		return err
	}
	return nil
}

// WriteMetadata128 stages metadata-128, with the same sentinel-collapse
// rule as Write.
func (s *Store) WriteMetadata128(currentLive, data []byte) error {
	key := metadataKey()
	payload := data
	if len(data) == 0 || bytes.Equal(data, currentLive) {
		payload = sentinel
	}
	s.blobs[key] = payload
	return s.settings.SaveOne(key, payload)
}

// Read serves a staged page. found is false if no record exists at
// all; a sentinel record reads as found=true, n=0 ("fall back to
// current"). When allowPartial is false, reads stop at the last whole
// element the format-specific walker can identify.
func (s *Store) Read(page, offset int, dst []byte, allowPartial bool) (n int, truncated bool, found bool, err error) {
	blob, ok := s.blobs[cmpKey(page)]
	if !ok {
		return 0, false, false, composition.ErrNotFound
	}
	if isSentinel(blob) {
		return 0, false, true, nil
	}
	boundaries, werr := elementBoundaries(page, blob)
	if werr != nil {
		return 0, false, true, werr
	}
	n, truncated = streamCopy(dst, blob, offset, allowPartial, boundaries)
	return n, truncated, true, nil
}

// ReadMetadata128 serves staged metadata-128 with the same shape as Read.
func (s *Store) ReadMetadata128(offset int, dst []byte, allowPartial bool) (n int, truncated bool, found bool, err error) {
	blob, ok := s.blobs[metadataKey()]
	if !ok {
		return 0, false, false, composition.ErrNotFound
	}
	if isSentinel(blob) {
		return 0, false, true, nil
	}
	boundaries, werr := metadataElementBoundaries(blob)
	if werr != nil {
		return 0, false, true, werr
	}
	n, truncated = streamCopy(dst, blob, offset, allowPartial, boundaries)
	return n, truncated, true, nil
}

// Size returns 0 for a sentinel or missing record, the stored length
// otherwise (§4.4 "size").
func (s *Store) Size(page int) int {
	blob, ok := s.blobs[cmpKey(page)]
	if !ok || isSentinel(blob) {
		return 0
	}
	return len(blob)
}

// SizeMetadata128 is Size's metadata-128 counterpart.
func (s *Store) SizeMetadata128() int {
	blob, ok := s.blobs[metadataKey()]
	if !ok || isSentinel(blob) {
		return 0
	}
	return len(blob)
}

// Changed128 reports whether a page-128 record (sentinel or not)
// exists, used by comp_128_changed (§4.4).
func (s *Store) Changed128() bool {
	_, ok := s.blobs[cmpKey(128)]
	return ok
}

// Elem128Count walks the staged page-128 blob and counts elements
// (§4.4 bt_mesh_comp_128_elem_count), used by the configuration server
// to learn the post-rollout element count. Returns 0 if nothing is
// staged or the stage is a sentinel.
func (s *Store) Elem128Count() int {
	blob, ok := s.blobs[cmpKey(128)]
	if !ok || isSentinel(blob) {
		return 0
	}
	boundaries, err := elementBoundaries(128, blob)
	if err != nil {
		return 0
	}
	return len(boundaries) - 1
}
