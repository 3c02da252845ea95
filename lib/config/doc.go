// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the playbridge host.
//
// Configuration is loaded from a single YAML file specified by:
//   - PLAYBRIDGE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides. The
// allowed-origins list in particular is a security boundary: it must be
// exactly what the file says, never something a stray environment
// variable widened.
package config
