// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides playbridge's standard CBOR encoding configuration.
//
// Playbridge uses two serialization formats with a clear boundary:
//
//   - JSON for the container channel: command, report, and streaming
//     control envelopes that cross the frame boundary and must be
//     readable by embed scripts.
//   - CBOR for the peer data channel: candidate acknowledgements,
//     renegotiation requests, and close notices exchanged with the
//     remote viewer, where compactness matters and no script ever
//     inspects the bytes.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes, which keeps control
// messages byte-comparable in tests.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that are only ever CBOR (the data-channel control messages) use
// `cbor` struct tags; types that serve both formats rely on fxamacker's
// `json` tag fallback.
package codec
