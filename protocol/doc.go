// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the message vocabulary exchanged between an
// embedded game bridge and its hosting container.
//
// Every message is a JSON object carrying the [Controller] discriminator;
// objects without it belong to some other occupant of the shared channel
// and are ignored. Three message families exist:
//
//   - Commands (container → bridge): game control. The current spellings
//     are [CommandStart], [CommandPause], [CommandStartFromZero] and
//     [CommandContinue]; a deprecated vocabulary from the v1 embed script
//     maps onto the same commands via [CanonicalCommand].
//   - Reports (bridge → container): the full progress record, sent after
//     every state mutation. [Report] carries score, level, state label,
//     the banked continue score, and the opaque integrity token.
//   - Streaming control (both directions): [TypeWebRTC] envelopes carrying
//     an action plus an encoded session description, used to drive the
//     peer-connection streaming session.
//
// [Envelope] is the lenient inbound decoder: unknown fields are ignored
// for forward compatibility, and the two failure modes a router cares
// about are distinguished by [ErrMalformed] (not a JSON object) and
// [ErrForeign] (valid JSON, wrong or missing controller tag).
//
// [AllowedOrigins] is the static trust anchor shared by command and
// streaming validation: an ordered, immutable list of container origins.
package protocol
