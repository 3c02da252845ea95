// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package token supplies the integrity token attached to every progress
// report. The token is an opaque collaborator value: the bridge recomputes
// it on each state mutation and forwards it verbatim, and the container
// treats it as a tamper check on the reported score. It is not a
// cryptographic commitment (there is no independently verifiable input
// log behind it), so implementations only need to be deterministic and
// key-dependent.
package token

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
)

// Source produces the integrity token for a score value.
type Source interface {
	Token(score int) string
}

// derivationContext namespaces key derivation so that key material shared
// with other subsystems cannot produce colliding token keys.
const derivationContext = "playbridge 2026 progress token v1"

// KeyedSource computes tokens as the keyed BLAKE3 hash of the decimal
// score. Arbitrary-length key material is accepted; it is stretched to
// the 32-byte hash key via BLAKE3 key derivation.
type KeyedSource struct {
	key [32]byte
}

// NewKeyedSource derives a token source from the given key material.
func NewKeyedSource(material []byte) *KeyedSource {
	source := &KeyedSource{}
	blake3.DeriveKey(derivationContext, material, source.key[:])
	return source
}

// Token returns the hex-encoded keyed hash of score.
func (s *KeyedSource) Token(score int) string {
	hasher, err := blake3.NewKeyed(s.key[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes, which the
		// fixed-size array rules out.
		panic("token: keyed hasher initialization failed: " + err.Error())
	}
	hasher.Write([]byte(strconv.Itoa(score)))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Static is a Source returning a fixed token regardless of score.
// Intended for tests and for containers that ignore the token.
type Static string

// Token returns the fixed token.
func (s Static) Token(int) string { return string(s) }
