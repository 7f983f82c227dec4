// Package wamp implements the optional WAMP peer fronting a Battle as a
// transport-level service (spec.md §5b): a single session actor owning
// Caller/Callee/Publisher/Subscriber state, fed by a reader goroutine over
// a framed transport (outbound frames are sent on the transport directly),
// filling in standard WAMP peer behavior around that session state machine.
package wamp

import "fmt"

// PeerNotConnected is returned by every pending operation when the
// session is not Established — on initial dial failure, or after a
// session loss before a reconnect completes (spec.md §7).
type PeerNotConnected struct {
	Detail string
}

func (e *PeerNotConnected) Error() string {
	if e.Detail == "" {
		return "wamp: peer not connected"
	}
	return fmt.Sprintf("wamp: peer not connected: %s", e.Detail)
}

// ProtocolError marks a framing or session-sequencing violation from the
// router side (unexpected message type for the current state, a GOODBYE
// with wrong session, etc).
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string { return "wamp: protocol error: " + e.Detail }
