// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package containerlink

import "sync"

// Compile-time interface check.
var _ Link = (*MemoryLink)(nil)

// MemoryLink is one end of an in-process link pair. It plays the role the
// frame boundary plays in production: each end delivers into the other
// end's inbound channel, tagging messages with the sending end's identity
// and origin. Tests drive the container end directly, including forging
// provenance with SendAs to exercise the router's filters.
type MemoryLink struct {
	name   string
	origin string

	mu     sync.Mutex
	peer   *MemoryLink
	closed bool

	inbound chan Inbound
}

// memoryInboundBuffer sizes each end's inbound channel. Tests never keep
// more than a handful of messages in flight.
const memoryInboundBuffer = 64

// NewMemoryPair creates a connected bridge/container link pair. The
// container end sends with containerOrigin; the bridge end sends with an
// empty origin (reports carry no origin of their own).
func NewMemoryPair(containerOrigin string) (bridgeEnd, containerEnd *MemoryLink) {
	bridgeEnd = &MemoryLink{
		name:    "bridge",
		inbound: make(chan Inbound, memoryInboundBuffer),
	}
	containerEnd = &MemoryLink{
		name:    "container",
		origin:  containerOrigin,
		inbound: make(chan Inbound, memoryInboundBuffer),
	}
	bridgeEnd.peer = containerEnd
	containerEnd.peer = bridgeEnd
	return bridgeEnd, containerEnd
}

// Deliver sends to the peer end, honoring target-origin filtering.
func (l *MemoryLink) Deliver(message Message) error {
	return l.deliverAs(l.name, l.origin, message)
}

// SendAs delivers a payload to the peer with forged provenance. Test-only
// escape hatch for exercising sender and origin validation; production
// links have no equivalent.
func (l *MemoryLink) SendAs(sender, origin string, payload []byte) error {
	return l.deliverAs(sender, origin, Message{Payload: payload})
}

func (l *MemoryLink) deliverAs(sender, origin string, message Message) error {
	l.mu.Lock()
	peer := l.peer
	closed := l.closed
	l.mu.Unlock()

	if closed || peer == nil {
		return nil
	}
	if message.TargetOrigin != "" && message.TargetOrigin != peer.origin {
		// Target-origin mismatch is a silent drop, as on the frame
		// boundary.
		return nil
	}

	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return nil
	}
	peer.inbound <- Inbound{
		Payload: message.Payload,
		Sender:  sender,
		Origin:  origin,
	}
	return nil
}

// Inbound returns this end's receive channel.
func (l *MemoryLink) Inbound() <-chan Inbound {
	return l.inbound
}

// ContainerPeer returns the identity container messages carry.
func (l *MemoryLink) ContainerPeer() string { return "container" }

// Close shuts this end down and closes its inbound channel. Idempotent.
func (l *MemoryLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.inbound)
	return nil
}
