package access

import (
	"context"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
	"github.com/go-ble/meshaccess/wire"
)

// SendPath is the Access Send Path (C8): the single entry point every
// outbound model message passes through on its way to the
// op-aggregator, the delayable-message manager, or the transport.
type SendPath struct {
	comp       *composition.Composition
	transport  ports.Transport
	delayable  ports.DelayableQueue
	aggregator ports.OpAggregator
	log        clog.Clog
}

// NewSendPath wires the send path's collaborators. aggregator and
// delayable may be nil when the corresponding feature isn't compiled
// in.
func NewSendPath(comp *composition.Composition, transport ports.Transport, delayable ports.DelayableQueue, aggregator ports.OpAggregator, log clog.Clog) *SendPath {
	return &SendPath{comp: comp, transport: transport, delayable: delayable, aggregator: aggregator, log: log}
}

func leadingOpcode(msg []byte) uint32 {
	decoded, err := DecodeOpcode(wire.NewCursor(msg))
	if err != nil {
		return 0
	}
	return decoded.Opcode
}

// ModelSend implements §4.8 model_send: op-aggregation interception,
// key-binding verification, delayable-message diversion, then transport
// handoff.
func (s *SendPath) ModelSend(ctx context.Context, m *composition.Model, tx ports.TxContext, msg []byte, cb ports.SendCallback, userData any) error {
	if s.aggregator != nil && s.aggregator.Accept(tx, leadingOpcode(msg)) {
		return s.aggregator.Send(m.ElemIdx(), m.ModIdx(), msg)
	}

	if !m.HasKey(tx.AppKeyIdx) {
		return composition.ErrInvalidArgument
	}

	tx.Src = s.comp.Elements[m.ElemIdx()].Addr()
	loopback := tx.Dst == tx.Src

	if tx.RndDelay && !loopback {
		if s.delayable == nil {
			return composition.ErrNotSupported
		}
		return s.delayable.Enqueue(ctx, tx, msg, cb, userData)
	}

	return s.transport.Send(ctx, tx, msg, cb, userData)
}

// SendStatus satisfies compdata.Responder: it replies to the sender of
// msgCtx using the same key/TTL the request arrived with, on the
// requesting model's own send path.
func (s *SendPath) SendStatus(m *composition.Model, msgCtx *composition.MessageContext, msg []byte) error {
	tx := ports.TxContext{
		Dst:       msgCtx.Src,
		AppKeyIdx: msgCtx.AppKeyIdx,
		NetKeyIdx: msgCtx.NetKeyIdx,
		TTL:       msgCtx.RecvTTL,
	}
	return s.ModelSend(context.Background(), m, tx, msg, ports.SendCallback{}, nil)
}
