// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "slices"

// AllowedOrigins is the static, ordered, immutable set of container
// origins the bridge trusts. It is consulted by both command routing and
// streaming control; a message from any other origin is dropped with no
// state change. The zero value trusts nothing.
type AllowedOrigins struct {
	origins []string
}

// NewAllowedOrigins builds the trust set from the given origins,
// preserving order. The input slice is copied; later mutation of the
// caller's slice has no effect.
func NewAllowedOrigins(origins ...string) AllowedOrigins {
	return AllowedOrigins{origins: slices.Clone(origins)}
}

// Contains reports whether origin is trusted.
func (a AllowedOrigins) Contains(origin string) bool {
	return slices.Contains(a.origins, origin)
}

// List returns a copy of the trusted origins in their configured order.
func (a AllowedOrigins) List() []string {
	return slices.Clone(a.origins)
}
