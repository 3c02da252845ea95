// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the embeddable core a game links against: it reports
// progress to the hosting container, receives control commands from it,
// and hands streaming control off to the stream package.
//
// [Bridge] is the explicit per-game context object: one instance owns
// the session state (score, level, state label, banked continue score,
// integrity token), the protocol router, the command dispatcher, and the
// hook registry. There is no package-level state: "exactly one session"
// is a property of the one Bridge the game creates, not of a hidden
// singleton.
//
// The router applies a three-stage filter to every inbound message
// (sender must be the container peer, payload must carry the controller
// tag, command must be in the fixed vocabulary) plus the origin check
// against the allowed-origin set. The first validated origin is pinned
// and becomes the target of all subsequent outbound reports; until then
// reports are broadcast. Every drop is silent toward the container and
// at most a debug log locally; no condition in this package interrupts
// the host game.
//
// All external calls, before and after readiness, funnel through
// [Bridge.Process] with an enumerated [Op]: the queue adapter's calling
// convention is an exhaustive switch over a closed type rather than
// dispatch-by-name. [Bridge.Replay] replays calls buffered before the
// bridge was constructed, in order, with the same semantics as direct
// calls.
//
// Game-side hooks (start, pause, start-from-zero, continue-with-score)
// are registered through typed methods returning a [HookHandle]
// capability; the string-keyed [Bridge.SetCallback] survives for the
// legacy façade. [Bridge.Legacy] exposes the old API shape (Init,
// SendData, writable hook properties) as pure forwarders into the
// dispatcher, with the modern init side effects still firing exactly
// once across both surfaces.
//
// Concurrency model: one mutex serializes every inbound message and
// public setter, giving handlers cooperative run-to-completion
// semantics. Hooks fire synchronously but outside the lock, so a hook
// may call back into the bridge freely.
package bridge
