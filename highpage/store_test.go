package highpage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
)

type fakeSettings struct {
	records map[string][]byte
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{records: make(map[string][]byte)}
}

func (f *fakeSettings) SaveOne(path string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.records[path] = cp
	return nil
}

func (f *fakeSettings) Delete(path string) error {
	delete(f.records, path)
	return nil
}

func (f *fakeSettings) LoadSubtreeDirect(prefix string, cb ports.ReadCallback) error {
	for key, data := range f.records {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		blob := data
		readFn := func(buf []byte) (int, error) { return copy(buf, blob), nil }
		if err := cb(key, len(data), readFn); err != nil {
			return err
		}
	}
	return nil
}

func newTestStore() (*Store, *fakeSettings) {
	fs := newFakeSettings()
	return NewStore(fs, clog.NewLogger("highpage-test")), fs
}

// §8: writing page 128 equal to the current page 0 contents collapses
// to the sentinel, and reads back zero bytes with size == 0.
func TestWriteSentinelCollapse(t *testing.T) {
	store, _ := newTestStore()
	live := []byte{0x01, 0x02, 0x03}
	if err := store.Write(128, live, live); err != nil {
		t.Fatalf("write: %v", err)
	}
	if size := store.Size(128); size != 0 {
		t.Fatalf("size = %d, want 0", size)
	}
	dst := make([]byte, 16)
	n, truncated, found, err := store.Read(128, 0, dst, true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found {
		t.Fatalf("expected found=true for sentinel record")
	}
	if n != 0 || truncated {
		t.Fatalf("expected zero bytes, untruncated; got n=%d truncated=%v", n, truncated)
	}
}

func TestWriteEmptyCollapsesToSentinel(t *testing.T) {
	store, _ := newTestStore()
	if err := store.Write(129, []byte{0xAA}, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if size := store.Size(129); size != 0 {
		t.Fatalf("size = %d, want 0", size)
	}
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	store, _ := newTestStore()
	dst := make([]byte, 16)
	_, _, found, err := store.Read(130, 0, dst, true)
	if found {
		t.Fatalf("expected found=false")
	}
	if err != composition.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func page128Blob() []byte {
	// two elements: first has 1 SIG, 0 Vnd; second has 0 SIG, 1 Vnd.
	var blob []byte
	blob = append(blob, 0x00, 0x00, 0x01, 0x00) // loc, loc, nSig=1, nVnd=0
	blob = append(blob, 0x00, 0x10)             // model id 0x1000
	blob = append(blob, 0x01, 0x00, 0x00, 0x01) // loc, loc, nSig=0, nVnd=1
	blob = append(blob, 0x59, 0x00, 0x01, 0x00) // vendor model CID 0x0059, id 0x0001
	return blob
}

// §4.4 bt_mesh_comp_128_elem_count: walking page 128 reports the
// element count of the staged composition.
func TestElem128Count(t *testing.T) {
	store, _ := newTestStore()
	blob := page128Blob()
	if err := store.Write(128, nil, blob); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := store.Elem128Count(); got != 2 {
		t.Fatalf("Elem128Count = %d, want 2", got)
	}
}

// Reading page 128 byte-for-byte across chunk sizes reproduces the
// staged blob, mirroring the Page 0 round-trip property.
func TestReadPage128RoundTrip(t *testing.T) {
	store, _ := newTestStore()
	blob := page128Blob()
	if err := store.Write(128, nil, blob); err != nil {
		t.Fatalf("write: %v", err)
	}
	for chunkSize := 1; chunkSize <= len(blob)+2; chunkSize++ {
		var got []byte
		offset := 0
		for {
			dst := make([]byte, chunkSize)
			n, truncated, _, err := store.Read(128, offset, dst, true)
			if err != nil {
				t.Fatalf("read at %d: %v", offset, err)
			}
			got = append(got, dst[:n]...)
			offset += n
			if !truncated || n == 0 {
				break
			}
		}
		if !bytes.Equal(got, blob) {
			t.Fatalf("chunkSize=%d: got % x, want % x", chunkSize, got, blob)
		}
	}
}

// Non-partial reads never split a page-128 element, matching the Page
// 0 truncation discipline.
func TestReadPage128NonPartialTruncation(t *testing.T) {
	store, _ := newTestStore()
	blob := page128Blob()
	if err := store.Write(128, nil, blob); err != nil {
		t.Fatalf("write: %v", err)
	}
	boundaries, err := elementBoundaries(128, blob)
	if err != nil {
		t.Fatalf("elementBoundaries: %v", err)
	}
	firstEnd := boundaries[1]
	dst := make([]byte, firstEnd+micReserve)
	n, truncated, _, err := store.Read(128, 0, dst, false)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != firstEnd || !truncated {
		t.Fatalf("n=%d truncated=%v, want n=%d truncated=true", n, truncated, firstEnd)
	}
}

// Load restores previously written records from settings across a
// fresh Store instance, the same recovery path C7 uses for model state.
func TestLoadRestoresStagedRecords(t *testing.T) {
	store, fs := newTestStore()
	blob := page128Blob()
	if err := store.Write(128, nil, blob); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.WriteMetadata128(nil, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	restored := NewStore(fs, clog.NewLogger("highpage-test"))
	if err := restored.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if size := restored.Size(128); size != len(blob) {
		t.Fatalf("restored size = %d, want %d", size, len(blob))
	}
	if size := restored.SizeMetadata128(); size != 2 {
		t.Fatalf("restored metadata size = %d, want 2", size)
	}
	if !restored.Changed128() {
		t.Fatalf("expected Changed128 = true after restore")
	}
}
