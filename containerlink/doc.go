// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package containerlink abstracts the message channel between an embedded
// bridge and its hosting container.
//
// In the browser embedding this channel is the cross-origin frame
// boundary: the container posts commands into the game frame and the
// bridge posts reports back, each message tagged with the sender's
// origin. [Link] captures exactly that contract and nothing more: deliver
// an outbound payload to a target origin (or broadcast), consume inbound
// payloads annotated with sender identity and origin, and close.
//
// Validation is deliberately not the link's job. The link records origins
// faithfully, including hostile ones; the bridge's protocol router is the
// single place trust decisions happen. Keeping the link dumb means a
// compromised or misconfigured link implementation can forge nothing the
// router would not catch.
//
// Two implementations exist: [WebSocketLink] serves one container
// connection over a WebSocket (the production shape when the container is
// a native shell or a remote dashboard), and the pair returned by
// [NewMemoryPair] connects a bridge to an in-process fake container for
// tests.
package containerlink
