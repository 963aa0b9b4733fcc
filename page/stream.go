// Package page serializes Composition Data Pages 0/1/2 and Metadata
// Page 0 to their bit-exact wire formats (§4.3), with resumable
// offset-based streaming for callers (the configuration server) that
// can only move one PDU's worth of bytes at a time.
package page

import "github.com/go-ble/meshaccess/wire"

// micReserve is the trailing MIC reservation (§4.3): non-partial reads
// must leave this much room after the last whole element they emit.
const micReserve = 4

func streamCopy(dst []byte, full []byte, offset int, allowPartial bool, boundaries []int) (n int, truncated bool) {
	return wire.StreamCopy(dst, full, offset, allowPartial, boundaries, micReserve)
}
