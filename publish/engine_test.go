package publish

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
)

// recordingTransport is a synchronous fake: Send records the call time
// and invokes cb.End before returning, matching §5's "transport send
// is assumed synchronous" assumption.
type recordingTransport struct {
	mu    sync.Mutex
	sends []time.Time
	fail  bool
}

func (r *recordingTransport) Send(_ context.Context, _ ports.TxContext, _ []byte, cb ports.SendCallback, userData any) error {
	r.mu.Lock()
	r.sends = append(r.sends, time.Now())
	fail := r.fail
	r.mu.Unlock()
	if cb.End != nil {
		cb.End(nil, userData)
	}
	if fail {
		return composition.ErrNotSupported
	}
	return nil
}

func (r *recordingTransport) times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.sends))
	copy(out, r.sends)
	return out
}

func newTestComposition(t *testing.T) (*composition.Composition, *composition.Model) {
	t.Helper()
	comp := composition.New(0x01AB, 0x0002, 0x0003, 5, 0, 8)
	m := composition.NewSigModel(0x1000)
	m.Pub = &composition.PublicationState{}
	elem := &composition.Element{Location: 0, SigModels: []*composition.Model{m}}
	comp.Elements = []*composition.Element{elem}
	if err := comp.Register(); err != nil {
		t.Fatalf("register: %v", err)
	}
	comp.Provision(0x0001)
	return comp, m
}

// TestEngine_PublishRetransmission is §8 scenario 4 byte-for-byte:
// period 0x41 (1000ms), retransmit 0x2A (count=2, interval=300ms) →
// sends at t=0,300,600 (3 total), next period at t≈1000.
func TestEngine_PublishRetransmission(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		comp, m := newTestComposition(t)
		tr := &recordingTransport{}
		e := NewEngine(comp, tr, clog.Clog{})

		m.Pub.Addr = 0xC000
		m.Pub.Period = 0x41
		m.Pub.Retransmit = 0x2A
		m.Pub.Msg = []byte{0x01, 0x02}

		start := time.Now()
		if err := e.Publish(m); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		time.Sleep(1100 * time.Millisecond)
		synctest.Wait()

		times := tr.times()
		if len(times) < 4 {
			t.Fatalf("expected at least 4 sends (3 burst + 1 period), got %d", len(times))
		}
		want := []time.Duration{0, 300 * time.Millisecond, 600 * time.Millisecond, 1000 * time.Millisecond}
		for i, w := range want {
			if got := times[i].Sub(start); got != w {
				t.Errorf("send[%d] offset = %v, want %v", i, got, w)
			}
		}
	})
}

// TestEngine_RetransmitIntervalLongerThanPeriod: a retransmit interval
// that exceeds the base period still fires every interval; the base
// period does not cut the retransmission series short.
func TestEngine_RetransmitIntervalLongerThanPeriod(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		comp, m := newTestComposition(t)
		tr := &recordingTransport{}
		e := NewEngine(comp, tr, clog.Clog{})

		m.Pub.Addr = 0xC000
		m.Pub.Period = 0x01     // 100ms base period
		m.Pub.Retransmit = 0x19 // count=1, steps=3 -> interval 200ms: total duration 400ms > 100ms period
		m.Pub.Msg = []byte{0xAA}

		start := time.Now()
		if err := e.Publish(m); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		time.Sleep(250 * time.Millisecond)
		synctest.Wait()

		times := tr.times()
		if len(times) < 2 {
			t.Fatalf("expected at least 2 sends, got %d", len(times))
		}
		if got := times[1].Sub(start); got != 200*time.Millisecond {
			t.Errorf("retransmit offset = %v, want 200ms", got)
		}
	})
}

func TestEngine_Publish_AddressUnassigned(t *testing.T) {
	_, m := newTestComposition(t)
	e := NewEngine(nil, &recordingTransport{}, clog.Clog{})
	if err := e.Publish(m); err != composition.ErrAddressUnassigned {
		t.Fatalf("err = %v, want ErrAddressUnassigned", err)
	}
}

func TestEngine_Publish_MessageTooLarge(t *testing.T) {
	comp, m := newTestComposition(t)
	e := NewEngine(comp, &recordingTransport{}, clog.Clog{})
	m.Pub.Addr = 0xC000
	m.Pub.Msg = make([]byte, MaxSDU) // +4 MIC overflows MaxSDU
	if err := e.Publish(m); err != composition.ErrMessageTooLarge {
		t.Fatalf("err = %v, want ErrMessageTooLarge", err)
	}
}

// TestEngine_ArmOnCommit_PeriodZeroNeverSchedules covers §8 "period ==
// 0 never schedules": a model with no retransmit/period configured but
// an assigned publish address must not fire on commit.
func TestEngine_ArmOnCommit_PeriodZeroNeverSchedules(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		comp, m := newTestComposition(t)
		tr := &recordingTransport{}
		e := NewEngine(comp, tr, clog.Clog{})

		m.Pub.Addr = 0xC000
		m.Pub.Period = 0

		e.ArmOnCommit(m)
		time.Sleep(time.Hour)
		synctest.Wait()

		if n := len(tr.times()); n != 0 {
			t.Fatalf("expected no sends for period=0, got %d", n)
		}
		if m.Pub.Stopped() {
			t.Error("ArmOnCommit should clear the stopped flag even with period=0")
		}
	})
}

// TestEngine_ArmOnCommit_CallsUpdate verifies periodic (not
// explicitly Published) models get their message refreshed via the
// update callback at each new period.
func TestEngine_ArmOnCommit_CallsUpdate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		comp, m := newTestComposition(t)
		tr := &recordingTransport{}
		e := NewEngine(comp, tr, clog.Clog{})
		e.SetRandIntn(func(int) int { return 0 }) // deterministic long delay = 20ms

		var updates int
		m.Pub.Addr = 0xC000
		m.Pub.Period = 0x02 // 200ms
		m.Pub.Update = func(mm *composition.Model) error {
			updates++
			mm.Pub.Msg = []byte{byte(updates)}
			return nil
		}

		e.ArmOnCommit(m)
		time.Sleep(250 * time.Millisecond)
		synctest.Wait()

		if updates == 0 {
			t.Fatal("expected Update to be called at least once")
		}
		if len(tr.times()) == 0 {
			t.Fatal("expected at least one send once Update supplied a message")
		}
	})
}

func TestEngine_Suspend_AbandonsFiring(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		comp, m := newTestComposition(t)
		tr := &recordingTransport{}
		e := NewEngine(comp, tr, clog.Clog{})

		m.Pub.Addr = 0xC000
		m.Pub.Period = 0x01 // 100ms
		m.Pub.Msg = []byte{0x01}

		e.Suspend()
		if err := e.Publish(m); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		time.Sleep(500 * time.Millisecond)
		synctest.Wait()

		if n := len(tr.times()); n != 0 {
			t.Fatalf("expected no sends while suspended, got %d", n)
		}
	})
}

func TestEngine_DelayablePublish_UsesLongWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		comp, m := newTestComposition(t)
		tr := &recordingTransport{}
		e := NewEngine(comp, tr, clog.Clog{})
		e.SetRandIntn(func(n int) int { return n - 1 }) // pin to the top of the window

		m.Pub.Addr = 0xC000
		m.Pub.Delayable = true
		m.Pub.Msg = []byte{0x01}

		start := time.Now()
		if err := e.Publish(m); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		time.Sleep(time.Second)
		synctest.Wait()

		times := tr.times()
		if len(times) == 0 {
			t.Fatal("expected one send")
		}
		if got := times[0].Sub(start); got != 519*time.Millisecond {
			t.Errorf("delayable first send offset = %v, want 519ms", got)
		}
	})
}
