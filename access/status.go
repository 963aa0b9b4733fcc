// Package access implements the Opcode Decoder & Dispatcher (C5) and
// the Access Send Path (C8): decoding 1/2/3-octet opcodes, routing an
// inbound message to the right model, and handing an outbound message
// to the op-aggregator or transport.
package access

// Status is the access-status code surfaced to the response path after
// one element's dispatch attempt (§7).
type Status uint8

const (
	StatusSuccess Status = iota
	StatusWrongOpcode
	StatusWrongKey
	StatusInvalidAddress
	StatusMessageNotUnderstood
)

const _statusName = "SUCCESSWRONG_OPCODEWRONG_KEYINVALID_ADDRESSMESSAGE_NOT_UNDERSTOOD"

var _statusIndex = [...]uint8{0, 7, 19, 28, 43, 65}

// String renders the status the way the teacher's TypeID.String() does:
// a table lookup over a single concatenated constant, no per-value
// switch body.
func (s Status) String() string {
	if int(s) >= len(_statusIndex)-1 {
		return "STATUS<unknown>"
	}
	return _statusName[_statusIndex[s]:_statusIndex[s+1]]
}
