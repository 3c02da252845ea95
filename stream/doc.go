// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream implements the peer-connection streaming bridge: under
// container control, the game's rendered output is forwarded to a remote
// viewer over a WebRTC peer connection.
//
// [Streamer] is an explicit state machine (Idle → Capturing → Negotiating
// → Connected → Idle) driven by a single event loop goroutine. External
// inputs (container control commands via [Streamer.HandleCommand], pion
// callbacks, gathering completions) become typed events consumed by the
// loop, so handlers never interleave and asynchronous completions are
// ordinary events rather than nested closures. Every event carries the
// generation of the session it belongs to; a completion that outlives its
// session is a no-op, not an error.
//
// The bridge is always the answering side. Sessions use vanilla ICE: the
// local answer is relayed once, after candidate gathering completes, with
// all candidates folded in. One pre-agreed data channel ("control",
// negotiated ID 0) avoids a channel-negotiation round trip; it carries
// CBOR control messages (candidate acknowledgements, renegotiation and
// ICE-restart requests, close notices) encoded via lib/codec.
//
// At most one peer session exists at a time. An init command while a
// session is live tears the old session down completely, with the same
// ordered, idempotent sequence used for close and failure, before a new
// capturing phase begins. On ICE failure the streamer requests an ICE
// restart in place instead of tearing down; only fatal negotiation
// errors, an explicit close, or connection loss end the session. No
// failure in this package propagates to the embedding game.
//
// [FrameSource] abstracts capture: a pull source of encoded video
// samples, pumped onto the outgoing track at a fixed frame rate.
// [TestPattern] is the in-tree implementation used by tests and the
// simulator binary.
package stream
