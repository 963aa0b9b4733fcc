// Package ports collects the interfaces the access layer consumes from
// its neighbors: transport, virtual-address resolution, settings
// persistence, the low-power subsystem, the opcode aggregator and the
// delayable-message queue. None
// of these are implemented here — access only depends on the shapes,
// the same way github.com/go-ble/meshaccess's teacher keeps its
// connection contract (asdu.Connect) separate from any one transport.
package ports

import "context"

// TxContext carries the addressing and security parameters for one
// outbound SDU.
type TxContext struct {
	Src        uint16
	Dst        uint16
	AppKeyIdx  int16 // -1 selects the device key
	TTL        uint8
	FriendCred bool
	NetKeyIdx  uint16
	// RndDelay requests the send path divert this message through the
	// delayable-message manager instead of sending immediately (§4.8
	// step 3).
	RndDelay bool
}

// SendCallback reports the lifecycle of one transport send.
type SendCallback struct {
	// Start is invoked once the transport has queued the SDU; err is
	// non-nil if queuing itself failed.
	Start func(dur int64, err error, userData any)
	// End is invoked when the transport has finished transmitting
	// (success or final failure).
	End func(err error, userData any)
}

// Transport is the access layer's only way to put bytes on the air.
type Transport interface {
	Send(ctx context.Context, tx TxContext, sdu []byte, cb SendCallback, userData any) error
}

// VirtualAddressStore resolves virtual-address label UUIDs to/from the
// small integer indices models keep in their subscription lists.
type VirtualAddressStore interface {
	UUIDByIndex(idx uint16) ([16]byte, bool)
	IndexByUUID(uuid [16]byte) (uint16, error)
}

// ReadCallback streams one settings record back to the caller of
// LoadSubtreeDirect without requiring the whole record to be buffered.
type ReadCallback func(key string, totalLen int, read func(buf []byte) (int, error)) error

// Settings is the key/value persistence backend. Paths are
// slash-separated, rooted at "bt/mesh/...".
type Settings interface {
	SaveOne(path string, data []byte) error
	Delete(path string) error
	LoadSubtreeDirect(prefix string, cb ReadCallback) error
}

// LowPower is consumed on commit: every subscribed group a model holds
// is replayed through GroupAdd so a low-power node can register them
// with its friend.
type LowPower interface {
	Enabled() bool
	GroupAdd(addr uint16)
}

// DelayableQueue defers an outbound send by a jittered interval instead
// of handing it straight to Transport (§4.8 step 3, the
// delayable-message manager).
type DelayableQueue interface {
	Enqueue(ctx context.Context, tx TxContext, sdu []byte, cb SendCallback, userData any) error
}

// OpAggregator lets a server or client model batch several responses
// into one aggregated-opcode reply. Access hands outbound sends to it
// first; a true result means the aggregator took ownership of the
// message.
type OpAggregator interface {
	Accept(ctx TxContext, opcode uint32) bool
	Send(elemIdx, modIdx int, msg []byte) error
}
