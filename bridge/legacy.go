// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

// LegacyConfig is the old-shaped Init argument.
type LegacyConfig struct {
	ShowScore     bool
	ShowHighScore bool
}

// LegacyAPI is the backward-compatible surface: the v1 embed object with
// an Init/SendData pair and writable hook properties. Every member is a
// pure forwarder into the modern dispatcher, so games written against
// the v1 script keep working unmodified.
//
// The hook properties are read at invocation time, so assigning them
// after Init behaves exactly like overwriting the v1 object's
// properties did.
type LegacyAPI struct {
	bridge *Bridge

	// OnStartGame fires after a start command.
	OnStartGame func()
	// OnPauseGame fires after a pause command.
	OnPauseGame func()
	// OnStartGameFromZero fires after a start-from-zero command or a
	// failure reset.
	OnStartGameFromZero func()
	// OnContinueWithCurrentScore fires after a continue command with
	// the restored score and current level.
	OnContinueWithCurrentScore func(score, level int)
}

// Legacy returns the old-shaped API for this bridge. The forwarding
// hooks are attached by LegacyAPI.Init, not here, so merely obtaining
// the façade never displaces hooks registered through the modern
// surface.
func (b *Bridge) Legacy() *LegacyAPI {
	return &LegacyAPI{bridge: b}
}

// Init forwards into the modern Init and wires the hook properties into
// the dispatcher. The modern side effects still fire exactly once even
// when both the legacy and current entry points are invoked.
func (l *LegacyAPI) Init(config LegacyConfig) {
	l.bridge.OnStart(func() {
		if l.OnStartGame != nil {
			l.OnStartGame()
		}
	})
	l.bridge.OnPause(func() {
		if l.OnPauseGame != nil {
			l.OnPauseGame()
		}
	})
	l.bridge.OnStartFromZero(func() {
		if l.OnStartGameFromZero != nil {
			l.OnStartGameFromZero()
		}
	})
	l.bridge.OnContinue(func(score, level int) {
		if l.OnContinueWithCurrentScore != nil {
			l.OnContinueWithCurrentScore(score, level)
		}
	})

	l.bridge.Init(config.ShowScore, config.ShowHighScore)
}

// SendData accepts the v1 single-entry progress map and forwards to the
// matching modern setter:
//
//   - {"failed": true, "state": ...}      → SetPlayerFailed
//   - {"level": n} without a score        → SetLevelUp
//   - anything else                       → SetProgress
//
// Unknown keys are ignored; missing values degrade to zeroes, matching
// the tolerance of the v1 script.
func (l *LegacyAPI) SendData(data map[string]any) {
	if data == nil {
		return
	}

	state, _ := data["state"].(string)

	if failed, _ := data["failed"].(bool); failed {
		l.bridge.SetPlayerFailed(state)
		return
	}

	score, hasScore := legacyNumber(data, "score")
	level, hasLevel := legacyNumber(data, "level")

	if hasLevel && !hasScore {
		l.bridge.SetLevelUp(level)
		return
	}
	l.bridge.SetProgress(state, score, level)
}

// legacyNumber reads a numeric field the way the v1 script's untyped
// payloads deliver it.
func legacyNumber(data map[string]any, key string) (int, bool) {
	switch value := data[key].(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	}
	return 0, false
}
