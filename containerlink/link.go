// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package containerlink

// Message is an outbound payload with delivery targeting.
type Message struct {
	// Payload is the JSON-encoded envelope.
	Payload []byte

	// TargetOrigin restricts delivery to a peer with exactly this
	// origin. Empty means broadcast: deliver regardless of the peer's
	// origin. Mirrors the postMessage targetOrigin contract: a
	// mismatch drops the message silently rather than erroring.
	TargetOrigin string
}

// Inbound is a received payload annotated with its provenance. The
// annotations are recorded by the link, not claimed by the payload; the
// router's trust decisions rest on them.
type Inbound struct {
	// Payload is the raw message body.
	Payload []byte

	// Sender identifies which peer of the link sent the message. The
	// router discards anything not from the container peer.
	Sender string

	// Origin is the sender's origin as observed by the link.
	Origin string
}

// Link is a bidirectional message channel to the hosting container.
// Implementations must keep Inbound ordered: messages are delivered in
// arrival order and the consumer handles each to completion before the
// next, preserving the cooperative single-threaded model of the frame
// boundary.
type Link interface {
	// Deliver sends an outbound message. Target-origin mismatches are
	// silent drops, not errors; errors report transport failure only.
	Deliver(message Message) error

	// Inbound returns the channel of received messages. The channel is
	// closed when the link closes.
	Inbound() <-chan Inbound

	// ContainerPeer returns the sender identity the container's
	// messages carry on this link.
	ContainerPeer() string

	// Close shuts the link down. Idempotent.
	Close() error
}
