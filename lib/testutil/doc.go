// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for playbridge packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Bridge and
// stream tests lean on them heavily: almost every assertion in those
// suites is "a report/reply arrives on this channel" or "this channel
// stays quiet".
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no playbridge-internal dependencies.
package testutil
