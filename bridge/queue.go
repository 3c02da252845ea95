// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "fmt"

// Op enumerates the bridge operations reachable through the queued-call
// convention. A closed enum instead of dispatch-by-name: the switch in
// Process covers every operation, and an out-of-range value is a silent
// no-op for forward compatibility with queues written by newer embed
// scripts.
type Op int

const (
	// OpInit is Init(hasScore, hasHighScore).
	OpInit Op = iota + 1
	// OpSetProgress is SetProgress(state, score, level).
	OpSetProgress
	// OpSetLevelUp is SetLevelUp(level).
	OpSetLevelUp
	// OpSetPlayerFailed is SetPlayerFailed(state).
	OpSetPlayerFailed
	// OpSetCallback is SetCallback(hookName, fn).
	OpSetCallback
)

// String implements fmt.Stringer for log output.
func (op Op) String() string {
	switch op {
	case OpInit:
		return "init"
	case OpSetProgress:
		return "set-progress"
	case OpSetLevelUp:
		return "set-level-up"
	case OpSetPlayerFailed:
		return "set-player-failed"
	case OpSetCallback:
		return "set-callback"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Call is one queued operation: the op plus its positional arguments.
// Embed scripts buffer Calls before the bridge exists and hand the
// queue to Replay once it does.
type Call struct {
	Op   Op
	Args []any
}

// Process executes one call synchronously. Every public setter routes
// through here, giving callers a single calling convention before and
// after readiness. Missing or mistyped arguments degrade to zero values:
// queues come from untyped embed scripts, and a malformed call must not
// take the bridge down.
func (b *Bridge) Process(call Call) {
	switch call.Op {
	case OpInit:
		b.init(argBool(call.Args, 0), argBool(call.Args, 1))
	case OpSetProgress:
		b.setProgress(argString(call.Args, 0), argInt(call.Args, 1), argInt(call.Args, 2))
	case OpSetLevelUp:
		b.setLevelUp(argInt(call.Args, 0))
	case OpSetPlayerFailed:
		b.setPlayerFailed(argString(call.Args, 0))
	case OpSetCallback:
		b.setCallback(argString(call.Args, 0), argAny(call.Args, 1))
	default:
		b.logger.Debug("unrecognized queued call dropped", "op", call.Op)
	}
}

// Replay executes buffered calls in order. A nil or empty queue is a
// no-op. Replaying a queue is equivalent to making the same calls
// directly in the same order.
func (b *Bridge) Replay(calls []Call) {
	for _, call := range calls {
		b.Process(call)
	}
}

func argAny(args []any, index int) any {
	if index >= len(args) {
		return nil
	}
	return args[index]
}

func argBool(args []any, index int) bool {
	value, _ := argAny(args, index).(bool)
	return value
}

func argString(args []any, index int) string {
	value, _ := argAny(args, index).(string)
	return value
}

// argInt accepts the numeric types a JSON-decoded queue produces.
func argInt(args []any, index int) int {
	switch value := argAny(args, index).(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return 0
}
