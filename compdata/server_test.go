package compdata

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/highpage"
	"github.com/go-ble/meshaccess/page"
	"github.com/go-ble/meshaccess/ports"
	"github.com/go-ble/meshaccess/wire"
)

type fakeSettings struct{ records map[string][]byte }

func newFakeSettings() *fakeSettings { return &fakeSettings{records: make(map[string][]byte)} }

func (f *fakeSettings) SaveOne(path string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.records[path] = cp
	return nil
}
func (f *fakeSettings) Delete(path string) error { delete(f.records, path); return nil }
func (f *fakeSettings) LoadSubtreeDirect(prefix string, cb ports.ReadCallback) error {
	for key, data := range f.records {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		blob := data
		if err := cb(key, len(data), func(buf []byte) (int, error) { return copy(buf, blob), nil }); err != nil {
			return err
		}
	}
	return nil
}

type captureResponder struct {
	msg []byte
}

func (c *captureResponder) SendStatus(m *composition.Model, ctx *composition.MessageContext, msg []byte) error {
	c.msg = msg
	return nil
}

func oneElementComp() *composition.Composition {
	comp := composition.New(0x01AB, 0x0002, 0x0003, 5, composition.FeatureRelay, 8)
	elem := &composition.Element{Location: 0x0000}
	elem.SigModels = append(elem.SigModels, composition.NewSigModel(0x1000))
	comp.Elements = append(comp.Elements, elem)
	return comp
}

func TestHandleLargeCompDataGetPage0(t *testing.T) {
	comp := oneElementComp()
	if err := comp.Register(); err != nil {
		t.Fatalf("register: %v", err)
	}
	high := highpage.NewStore(newFakeSettings(), clog.NewLogger("test"))
	responder := &captureResponder{}
	srv := &Server{comp: comp, high: high, gates: FeatureGates{}, responder: responder, log: clog.NewLogger("test")}

	req := wire.NewEncoder()
	req.AppendByte(0x00)
	req.AppendU16(0)
	ctx := &composition.MessageContext{}
	dummyModel := composition.NewSigModel(0x1412)

	if err := srv.handleLargeCompDataGet(dummyModel, ctx, wire.NewCursor(req.Bytes())); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := wire.NewCursor(responder.msg)
	opByte, _ := got.DecodeByte()
	if opByte != 0x06 {
		t.Fatalf("status opcode = 0x%02x, want 0x06", opByte)
	}
	page, _ := got.DecodeByte()
	if page != 0 {
		t.Fatalf("page = %d, want 0", page)
	}
	offset, _ := got.DecodeU16()
	if offset != 0 {
		t.Fatalf("offset = %d, want 0", offset)
	}
	total, _ := got.DecodeU16()
	wantTotal := CompPageSize(comp, high, 0)
	if int(total) != wantTotal {
		t.Fatalf("total = %d, want %d", total, wantTotal)
	}
	want := []byte{0xAB, 0x01, 0x02, 0x00, 0x03, 0x00, 0x05, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x10}
	if !bytes.Equal(got.Bytes(), want) {
		t.Fatalf("payload = % x, want % x", got.Bytes(), want)
	}
}

// Open question (a): Models Metadata Get clamps requested page to
// 128-or-0 only, never falling through 2/1 like ParsePage does.
func TestModelsMetadataGetClamp(t *testing.T) {
	if got := ClampHighOrZero(65, true); got != 0 {
		t.Fatalf("ClampHighOrZero(65, true) = %d, want 0", got)
	}
	if got := ClampHighOrZero(128, false); got != 0 {
		t.Fatalf("ClampHighOrZero(128, false) = %d, want 0", got)
	}
	if got := ClampHighOrZero(130, true); got != 128 {
		t.Fatalf("ClampHighOrZero(130, true) = %d, want 128", got)
	}
}

func TestParsePageGraduatedClamp(t *testing.T) {
	gates := FeatureGates{HighPages: true, Page2: true}
	if got := ParsePage(200, gates); got != 130 {
		t.Fatalf("ParsePage(200, full gates) = %d, want 130", got)
	}
	gates = FeatureGates{HighPages: true, Page2: false}
	if got := ParsePage(200, gates); got != 129 {
		t.Fatalf("ParsePage(200, no page2) = %d, want 129", got)
	}
	gates = FeatureGates{}
	if got := ParsePage(200, gates); got != 0 {
		t.Fatalf("ParsePage(200, no gates) = %d, want 0", got)
	}
	if got := ParsePage(1, gates); got != 1 {
		t.Fatalf("ParsePage(1, no gates) = %d, want 1", got)
	}
}

func TestSentinelFallsBackToLivePage(t *testing.T) {
	comp := oneElementComp()
	if err := comp.Register(); err != nil {
		t.Fatalf("register: %v", err)
	}
	high := highpage.NewStore(newFakeSettings(), clog.NewLogger("test"))
	live := make([]byte, 64)
	n, _ := page.GetPage0(comp, 0, live, true)
	if err := high.Write(128, live[:n], live[:n]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if size := CompPageSize(comp, high, 128); size != n {
		t.Fatalf("CompPageSize(128) = %d, want %d (fallback to live)", size, n)
	}
}
