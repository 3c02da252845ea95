// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

// Hook identifies one of the four developer-overridable hook slots.
type Hook int

const (
	// HookStartFromZero fires after a start-from-zero command and after
	// a player failure; the game resets its run.
	HookStartFromZero Hook = iota + 1
	// HookContinue fires after a continue-with-score command, with the
	// restored score and current level.
	HookContinue
	// HookStart fires after a start command.
	HookStart
	// HookPause fires after a pause command.
	HookPause
)

// hookSet holds the installed hooks. Slots are never nil: clearing
// restores the no-op default, so dispatch never branches on presence.
type hookSet struct {
	startFromZero     func()
	continueWithScore func(score, level int)
	start             func()
	pause             func()
}

func defaultHooks() hookSet {
	return hookSet{
		startFromZero:     func() {},
		continueWithScore: func(int, int) {},
		start:             func() {},
		pause:             func() {},
	}
}

// HookHandle is the capability returned by hook registration. It is
// bound to one slot of one bridge: holding a handle proves the caller
// registered that hook, and Clear only ever clears that slot.
type HookHandle struct {
	bridge *Bridge
	hook   Hook
}

// Hook returns which slot this handle controls.
func (h HookHandle) Hook() Hook { return h.hook }

// Clear restores the slot's no-op default.
func (h HookHandle) Clear() {
	if h.bridge == nil {
		return
	}
	h.bridge.mu.Lock()
	defer h.bridge.mu.Unlock()
	switch h.hook {
	case HookStartFromZero:
		h.bridge.hooks.startFromZero = func() {}
	case HookContinue:
		h.bridge.hooks.continueWithScore = func(int, int) {}
	case HookStart:
		h.bridge.hooks.start = func() {}
	case HookPause:
		h.bridge.hooks.pause = func() {}
	}
}

// OnStartFromZero installs the start-from-zero hook, replacing any
// previous registration.
func (b *Bridge) OnStartFromZero(fn func()) HookHandle {
	b.mu.Lock()
	b.hooks.startFromZero = fn
	b.mu.Unlock()
	return HookHandle{bridge: b, hook: HookStartFromZero}
}

// OnContinue installs the continue-with-score hook, replacing any
// previous registration.
func (b *Bridge) OnContinue(fn func(score, level int)) HookHandle {
	b.mu.Lock()
	b.hooks.continueWithScore = fn
	b.mu.Unlock()
	return HookHandle{bridge: b, hook: HookContinue}
}

// OnStart installs the start hook, replacing any previous registration.
func (b *Bridge) OnStart(fn func()) HookHandle {
	b.mu.Lock()
	b.hooks.start = fn
	b.mu.Unlock()
	return HookHandle{bridge: b, hook: HookStart}
}

// OnPause installs the pause hook, replacing any previous registration.
func (b *Bridge) OnPause(fn func()) HookHandle {
	b.mu.Lock()
	b.hooks.pause = fn
	b.mu.Unlock()
	return HookHandle{bridge: b, hook: HookPause}
}

// Legacy hook slot names accepted by SetCallback.
const (
	callbackStartFromZero = "afterStartGameFromZero"
	callbackContinue      = "afterContinueWithCurrentScore"
	callbackStart         = "afterStartGame"
	callbackPause         = "afterPauseGame"
)

// setCallback implements OpSetCallback: the string-keyed registration
// kept for the legacy façade. Unknown names and mismatched function
// types are logged no-ops, never errors.
func (b *Bridge) setCallback(hookName string, fn any) {
	switch hookName {
	case callbackStartFromZero, callbackStart, callbackPause:
		hook, ok := fn.(func())
		if !ok {
			b.logger.Debug("callback has wrong type, ignored",
				"hook", hookName,
			)
			return
		}
		switch hookName {
		case callbackStartFromZero:
			b.OnStartFromZero(hook)
		case callbackStart:
			b.OnStart(hook)
		case callbackPause:
			b.OnPause(hook)
		}

	case callbackContinue:
		hook, ok := fn.(func(int, int))
		if !ok {
			b.logger.Debug("callback has wrong type, ignored",
				"hook", hookName,
			)
			return
		}
		b.OnContinue(hook)

	default:
		b.logger.Debug("unknown callback name, ignored", "hook", hookName)
	}
}
