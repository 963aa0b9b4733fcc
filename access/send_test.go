package access

import (
	"context"
	"testing"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
)

type fakeTransport struct {
	lastTx  ports.TxContext
	lastMsg []byte
	calls   int
}

func (f *fakeTransport) Send(ctx context.Context, tx ports.TxContext, sdu []byte, cb ports.SendCallback, userData any) error {
	f.calls++
	f.lastTx = tx
	f.lastMsg = append([]byte(nil), sdu...)
	return nil
}

type fakeDelayable struct {
	lastTx ports.TxContext
	calls  int
}

func (f *fakeDelayable) Enqueue(ctx context.Context, tx ports.TxContext, sdu []byte, cb ports.SendCallback, userData any) error {
	f.calls++
	f.lastTx = tx
	return nil
}

type fakeAggregator struct {
	accept  bool
	sent    bool
	elemIdx int
	modIdx  int
}

func (f *fakeAggregator) Accept(ctx ports.TxContext, opcode uint32) bool { return f.accept }

func (f *fakeAggregator) Send(elemIdx, modIdx int, msg []byte) error {
	f.sent = true
	f.elemIdx = elemIdx
	f.modIdx = modIdx
	return nil
}

func oneElementModel() (*composition.Composition, *composition.Model) {
	comp := composition.New(1, 1, 1, 1, 0, 0)
	m := composition.NewSigModel(0x1000)
	comp.Elements = append(comp.Elements, &composition.Element{SigModels: []*composition.Model{m}})
	comp.Register()
	comp.Provision(0x0010)
	return comp, m
}

func TestModelSendAggregatorInterception(t *testing.T) {
	comp, m := oneElementModel()
	agg := &fakeAggregator{accept: true}
	transport := &fakeTransport{}
	sp := NewSendPath(comp, transport, nil, agg, clog.NewLogger("test"))

	err := sp.ModelSend(context.Background(), m, ports.TxContext{Dst: 0x0020}, []byte{0x01}, ports.SendCallback{}, nil)
	if err != nil {
		t.Fatalf("ModelSend: %v", err)
	}
	if !agg.sent {
		t.Fatalf("aggregator did not receive the message")
	}
	if transport.calls != 0 {
		t.Fatalf("transport should not have been used, got %d calls", transport.calls)
	}
}

func TestModelSendRejectsUnboundKey(t *testing.T) {
	comp, m := oneElementModel()
	transport := &fakeTransport{}
	sp := NewSendPath(comp, transport, nil, nil, clog.NewLogger("test"))

	err := sp.ModelSend(context.Background(), m, ports.TxContext{Dst: 0x0020, AppKeyIdx: 3}, []byte{0x01}, ports.SendCallback{}, nil)
	if err != composition.ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestModelSendDelayableDiversion(t *testing.T) {
	comp, m := oneElementModel()
	if err := m.Bind(0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	transport := &fakeTransport{}
	delayable := &fakeDelayable{}
	sp := NewSendPath(comp, transport, delayable, nil, clog.NewLogger("test"))

	tx := ports.TxContext{Dst: 0x0099, AppKeyIdx: 0, RndDelay: true}
	if err := sp.ModelSend(context.Background(), m, tx, []byte{0x01}, ports.SendCallback{}, nil); err != nil {
		t.Fatalf("ModelSend: %v", err)
	}
	if delayable.calls != 1 {
		t.Fatalf("delayable.calls = %d, want 1", delayable.calls)
	}
	if transport.calls != 0 {
		t.Fatalf("transport should not have been used")
	}
}

// A loopback send (dst == own element address) bypasses the delayable
// queue even when RndDelay is set.
func TestModelSendLoopbackSkipsDelayable(t *testing.T) {
	comp, m := oneElementModel()
	if err := m.Bind(0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	transport := &fakeTransport{}
	delayable := &fakeDelayable{}
	sp := NewSendPath(comp, transport, delayable, nil, clog.NewLogger("test"))

	tx := ports.TxContext{Dst: comp.Elements[0].Addr(), AppKeyIdx: 0, RndDelay: true}
	if err := sp.ModelSend(context.Background(), m, tx, []byte{0x01}, ports.SendCallback{}, nil); err != nil {
		t.Fatalf("ModelSend: %v", err)
	}
	if delayable.calls != 0 {
		t.Fatalf("delayable should not have been used on loopback")
	}
	if transport.calls != 1 {
		t.Fatalf("transport.calls = %d, want 1", transport.calls)
	}
}

func TestModelSendDelayableUnavailable(t *testing.T) {
	comp, m := oneElementModel()
	if err := m.Bind(0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	sp := NewSendPath(comp, &fakeTransport{}, nil, nil, clog.NewLogger("test"))

	tx := ports.TxContext{Dst: 0x0099, AppKeyIdx: 0, RndDelay: true}
	err := sp.ModelSend(context.Background(), m, tx, []byte{0x01}, ports.SendCallback{}, nil)
	if err != composition.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestModelSendTransportHandoffSetsSrc(t *testing.T) {
	comp, m := oneElementModel()
	if err := m.Bind(0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	transport := &fakeTransport{}
	sp := NewSendPath(comp, transport, nil, nil, clog.NewLogger("test"))

	tx := ports.TxContext{Dst: 0x0030, AppKeyIdx: 0}
	if err := sp.ModelSend(context.Background(), m, tx, []byte{0xAA, 0xBB}, ports.SendCallback{}, nil); err != nil {
		t.Fatalf("ModelSend: %v", err)
	}
	if transport.lastTx.Src != comp.Elements[0].Addr() {
		t.Fatalf("Src = %#x, want %#x", transport.lastTx.Src, comp.Elements[0].Addr())
	}
	if transport.lastTx.Dst != 0x0030 {
		t.Fatalf("Dst = %#x, want 0x0030", transport.lastTx.Dst)
	}
	if string(transport.lastMsg) != string([]byte{0xAA, 0xBB}) {
		t.Fatalf("msg mismatch: %v", transport.lastMsg)
	}
}

func TestSendStatusRepliesToSender(t *testing.T) {
	comp, m := oneElementModel()
	if err := m.Bind(0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	transport := &fakeTransport{}
	sp := NewSendPath(comp, transport, nil, nil, clog.NewLogger("test"))

	msgCtx := &composition.MessageContext{
		Src:       0x0050,
		Dst:       comp.Elements[0].Addr(),
		AppKeyIdx: 0,
		NetKeyIdx: 2,
		RecvTTL:   4,
	}
	if err := sp.SendStatus(m, msgCtx, []byte{0x06, 0x00}); err != nil {
		t.Fatalf("SendStatus: %v", err)
	}
	if transport.lastTx.Dst != 0x0050 {
		t.Fatalf("Dst = %#x, want 0x0050 (reply to sender)", transport.lastTx.Dst)
	}
	if transport.lastTx.NetKeyIdx != 2 {
		t.Fatalf("NetKeyIdx = %d, want 2", transport.lastTx.NetKeyIdx)
	}
	if transport.lastTx.TTL != 4 {
		t.Fatalf("TTL = %d, want 4", transport.lastTx.TTL)
	}
}
