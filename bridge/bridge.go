// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/playbridge-foundation/playbridge/containerlink"
	"github.com/playbridge-foundation/playbridge/protocol"
	"github.com/playbridge-foundation/playbridge/stream"
	"github.com/playbridge-foundation/playbridge/token"
)

// Options configures a Bridge.
type Options struct {
	// Link is the container channel. Required.
	Link containerlink.Link

	// AllowedOrigins is the set of container origins to trust. Messages
	// from any other origin are dropped with no state change.
	AllowedOrigins protocol.AllowedOrigins

	// Tokens computes the integrity token attached to progress reports.
	// Defaults to a keyed source with empty key material.
	Tokens token.Source

	// Streamer receives validated streaming control commands. Nil
	// disables streaming: webrtc envelopes are dropped.
	Streamer *stream.Streamer

	// Logger receives structured log output. If nil, slog.Default().
	Logger *slog.Logger
}

// progressRecord is the authoritative session state. Created zero-valued
// with the Bridge, mutated only by the dispatcher, reset to zero on
// start-from-zero, never destroyed.
type progressRecord struct {
	state         *string
	score         int
	level         int
	continueScore int
	token         string
}

// Progress is a snapshot of the session state, exposed for the embedding
// game and for tests.
type Progress struct {
	State         *string
	Score         int
	Level         int
	ContinueScore int
	Token         string
}

// Bridge is the embeddable game bridge. Create one per game with New.
type Bridge struct {
	link     containerlink.Link
	allowed  protocol.AllowedOrigins
	tokens   token.Source
	streamer *stream.Streamer
	logger   *slog.Logger

	// mu serializes every inbound message and public setter; handlers
	// run to completion before the next begins. Hooks are invoked
	// outside the lock.
	mu           sync.Mutex
	record       progressRecord
	pinnedOrigin string
	hooks        hookSet
	hasScore     bool
	hasHighScore bool

	initOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Bridge. The bridge is passive until Init attaches it to
// the link.
func New(options Options) (*Bridge, error) {
	if options.Link == nil {
		return nil, errors.New("bridge: Link is required")
	}
	tokens := options.Tokens
	if tokens == nil {
		tokens = token.NewKeyedSource(nil)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		link:     options.Link,
		allowed:  options.AllowedOrigins,
		tokens:   tokens,
		streamer: options.Streamer,
		logger:   logger,
		hooks:    defaultHooks(),
		done:     make(chan struct{}),
	}, nil
}

// Init announces the game's settings to the container and attaches the
// router (and streamer, when configured) to the link. The side effects
// run at most once per bridge lifetime; later calls are no-ops.
func (b *Bridge) Init(hasScore, hasHighScore bool) {
	b.Process(Call{Op: OpInit, Args: []any{hasScore, hasHighScore}})
}

// SetProgress recomputes the integrity token from score, overwrites the
// progress record, and reports the update to the container.
func (b *Bridge) SetProgress(state string, score, level int) {
	b.Process(Call{Op: OpSetProgress, Args: []any{state, score, level}})
}

// SetLevelUp mutates only the level and reports a level-up. The token is
// recomputed from the unchanged score.
func (b *Bridge) SetLevelUp(level int) {
	b.Process(Call{Op: OpSetLevelUp, Args: []any{level}})
}

// SetPlayerFailed banks the pre-failure score into the continue score,
// zeroes the live score, reports the failure, and synchronously fires
// the start-from-zero hook so the game resets without waiting on a
// container round trip. An empty state defaults to "FAIL".
func (b *Bridge) SetPlayerFailed(state string) {
	b.Process(Call{Op: OpSetPlayerFailed, Args: []any{state}})
}

// SetCallback installs fn into the named hook slot. Part of the frozen
// surface for the legacy façade; new code uses the typed On* methods.
// Unknown names and mismatched function types are logged no-ops.
func (b *Bridge) SetCallback(hookName string, fn any) {
	b.Process(Call{Op: OpSetCallback, Args: []any{hookName, fn}})
}

// Progress returns a snapshot of the session state.
func (b *Bridge) Progress() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Progress{
		State:         b.record.state,
		Score:         b.record.score,
		Level:         b.record.level,
		ContinueScore: b.record.continueScore,
		Token:         b.record.token,
	}
}

// PinnedOrigin returns the origin outbound reports target, or empty if
// no inbound message has validated yet.
func (b *Bridge) PinnedOrigin() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinnedOrigin
}

// Close detaches the bridge: the streamer is shut down and the link is
// closed, ending the router loop. Idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return b.link.Close()
}

// init performs the one-shot Init side effects.
func (b *Bridge) init(hasScore, hasHighScore bool) {
	b.initOnce.Do(func() {
		b.mu.Lock()
		b.hasScore = hasScore
		b.hasHighScore = hasHighScore
		b.mu.Unlock()

		b.announceSettings(hasScore, hasHighScore)

		ctx, cancel := context.WithCancel(context.Background())
		b.mu.Lock()
		b.cancel = cancel
		b.mu.Unlock()

		if b.streamer != nil {
			b.streamer.Start(ctx, b.sendStreamReply)
		}
		go b.readLoop()

		b.logger.Info("bridge initialized",
			"has_score", hasScore,
			"has_high_score", hasHighScore,
		)
	})
}

// announceSettings broadcasts the settings message. Broadcast is correct
// here: no origin can be pinned before the container's first command.
func (b *Bridge) announceSettings(hasScore, hasHighScore bool) {
	settings := protocol.Settings{
		Controller:   protocol.Controller,
		Type:         protocol.TypeSettings,
		HasScore:     hasScore,
		HasHighScore: hasHighScore,
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		b.logger.Error("encoding settings failed", "error", err)
		return
	}
	if err := b.link.Deliver(containerlink.Message{Payload: payload}); err != nil {
		b.logger.Warn("announcing settings failed", "error", err)
	}
}

// readLoop consumes the link until it closes. Each inbound message is
// routed to completion before the next is read.
func (b *Bridge) readLoop() {
	defer close(b.done)
	for inbound := range b.link.Inbound() {
		b.routeInbound(inbound)
	}
}

// routeInbound applies the router's filters and dispatches. Every drop
// is silent toward the sender; at most a debug log locally.
func (b *Bridge) routeInbound(inbound containerlink.Inbound) {
	// Stage 1: only the container peer may command the bridge.
	if inbound.Sender != b.link.ContainerPeer() {
		b.logger.Debug("message from non-container sender dropped",
			"sender", inbound.Sender,
		)
		return
	}

	// Stage 2: payload must be an envelope carrying our controller tag.
	envelope, err := protocol.ParseEnvelope(inbound.Payload)
	if err != nil {
		b.logger.Debug("unparseable message dropped", "error", err)
		return
	}

	// Origin gate, shared by commands and streaming control. Nothing
	// below this line runs for an untrusted origin.
	if !b.allowed.Contains(inbound.Origin) {
		b.logger.Debug("message from unauthorized origin dropped",
			"origin", inbound.Origin,
		)
		return
	}

	// The first validated origin is pinned as the outbound target.
	b.mu.Lock()
	if b.pinnedOrigin == "" {
		b.pinnedOrigin = inbound.Origin
		b.logger.Info("container origin pinned", "origin", inbound.Origin)
	}
	b.mu.Unlock()

	if envelope.Type == protocol.TypeWebRTC {
		if b.streamer == nil {
			b.logger.Debug("streaming control dropped, streaming disabled")
			return
		}
		b.streamer.HandleCommand(stream.Command{
			Action:    envelope.Action,
			Offer:     envelope.Offer,
			Candidate: envelope.Candidate,
			SessionID: envelope.SessionID,
			UserID:    envelope.UserID,
		})
		return
	}

	// Stage 3: the command must be in the fixed vocabulary, current or
	// deprecated.
	command, ok := protocol.CanonicalCommand(envelope.Type)
	if !ok {
		b.logger.Debug("unknown command dropped", "type", envelope.Type)
		return
	}
	b.dispatchCommand(command)
}

// dispatchCommand maps a validated container command onto session-state
// mutation plus a hook. Replaying the same command is idempotent with
// respect to session state.
func (b *Bridge) dispatchCommand(command protocol.Command) {
	b.mu.Lock()
	var fire func()
	switch command {
	case protocol.CommandStart:
		fire = b.hooks.start

	case protocol.CommandPause:
		fire = b.hooks.pause

	case protocol.CommandStartFromZero:
		b.record.score = 0
		b.record.level = 0
		b.record.continueScore = 0
		fire = b.hooks.startFromZero

	case protocol.CommandContinue:
		b.record.score = b.record.continueScore
		score, level := b.record.score, b.record.level
		hook := b.hooks.continueWithScore
		fire = func() { hook(score, level) }
	}
	b.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// setProgress implements OpSetProgress. Negative inputs clamp to zero;
// scores and levels are non-negative by contract.
func (b *Bridge) setProgress(state string, score, level int) {
	score = max(score, 0)
	level = max(level, 0)

	b.mu.Lock()
	b.record.state = stateLabel(state)
	b.record.score = score
	b.record.level = level
	b.record.token = b.tokens.Token(score)
	b.sendReportLocked(protocol.ReportScoreUpdate)
	b.mu.Unlock()
}

// setLevelUp implements OpSetLevelUp: a partial update touching only the
// level and the message type.
func (b *Bridge) setLevelUp(level int) {
	level = max(level, 0)

	b.mu.Lock()
	b.record.level = level
	b.record.token = b.tokens.Token(b.record.score)
	b.sendReportLocked(protocol.ReportLevelUp)
	b.mu.Unlock()
}

// setPlayerFailed implements OpSetPlayerFailed. The token covers the
// pre-failure score, not the zeroed live score.
func (b *Bridge) setPlayerFailed(state string) {
	if state == "" {
		state = "FAIL"
	}

	b.mu.Lock()
	preFailureScore := b.record.score
	b.record.continueScore = preFailureScore
	b.record.score = 0
	b.record.state = stateLabel(state)
	b.record.token = b.tokens.Token(preFailureScore)
	b.sendReportLocked(protocol.ReportPlayerFailed)
	hook := b.hooks.startFromZero
	b.mu.Unlock()

	// The game resets immediately rather than waiting on a container
	// round trip.
	hook()
}

// sendReportLocked delivers the current progress record to the pinned
// origin (broadcast if none pinned yet). Caller holds b.mu; delivery
// order therefore matches mutation order.
func (b *Bridge) sendReportLocked(reportType protocol.ReportType) {
	report := protocol.Report{
		Controller:    protocol.Controller,
		Type:          reportType,
		State:         b.record.state,
		Score:         b.record.score,
		Level:         b.record.level,
		ContinueScore: b.record.continueScore,
		Token:         b.record.token,
	}
	payload, err := json.Marshal(report)
	if err != nil {
		b.logger.Error("encoding report failed", "error", err)
		return
	}
	message := containerlink.Message{
		Payload:      payload,
		TargetOrigin: b.pinnedOrigin,
	}
	if err := b.link.Deliver(message); err != nil {
		b.logger.Warn("delivering report failed",
			"type", reportType,
			"error", err,
		)
	}
}

// sendStreamReply delivers a streaming reply to the pinned origin. Given
// to the streamer at Start.
func (b *Bridge) sendStreamReply(reply protocol.StreamReply) {
	b.mu.Lock()
	origin := b.pinnedOrigin
	b.mu.Unlock()

	payload, err := json.Marshal(reply)
	if err != nil {
		b.logger.Error("encoding streaming reply failed", "error", err)
		return
	}
	message := containerlink.Message{
		Payload:      payload,
		TargetOrigin: origin,
	}
	if err := b.link.Deliver(message); err != nil {
		b.logger.Warn("delivering streaming reply failed",
			"action", reply.Action,
			"error", err,
		)
	}
}

// stateLabel converts the wire convention (empty string means no label)
// into the record's nullable form.
func stateLabel(state string) *string {
	if state == "" {
		return nil
	}
	return &state
}
