// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Controller is the discriminator tag carried by every playbridge message.
// Inbound objects without it are not ours and are discarded without logging.
const Controller = "playbridge"

// Command identifies a container → bridge game-control command in its
// canonical (current) spelling.
type Command string

const (
	// CommandStart resumes or begins play.
	CommandStart Command = "start"
	// CommandPause suspends play.
	CommandPause Command = "pause"
	// CommandStartFromZero resets score, level and the banked continue
	// score before starting a fresh run.
	CommandStartFromZero Command = "start_from_zero"
	// CommandContinue restores the banked continue score and resumes.
	CommandContinue Command = "continue_with_score"
)

// commandVocabulary maps every accepted command spelling, current and
// deprecated, onto its canonical command. The deprecated spellings come
// from the v1 embed script and must keep working indefinitely: containers
// in the field are never updated in lockstep with games.
var commandVocabulary = map[string]Command{
	string(CommandStart):         CommandStart,
	string(CommandPause):         CommandPause,
	string(CommandStartFromZero): CommandStartFromZero,
	string(CommandContinue):      CommandContinue,

	// Deprecated v1 spellings.
	"startGame":         CommandStart,
	"pauseGame":         CommandPause,
	"startFromZero":     CommandStartFromZero,
	"continueWithScore": CommandContinue,
}

// CanonicalCommand resolves a wire-level command name to its canonical
// command. The second return value is false for names outside the fixed
// vocabulary; callers drop those (unknown commands are diagnostic-only,
// never an error).
func CanonicalCommand(name string) (Command, bool) {
	command, ok := commandVocabulary[name]
	return command, ok
}

// ReportType identifies which mutation produced a progress report.
type ReportType string

const (
	// ReportScoreUpdate is a full progress overwrite.
	ReportScoreUpdate ReportType = "score_update"
	// ReportLevelUp is a partial update touching only the level.
	ReportLevelUp ReportType = "level_up"
	// ReportPlayerFailed announces a failure: the live score has been
	// banked into ContinueScore and zeroed.
	ReportPlayerFailed ReportType = "player_failed"
)

// Report is the progress record sent to the container after every state
// mutation. State is a pointer so that "no state label" serializes as
// JSON null, matching what container dashboards expect.
type Report struct {
	Controller    string     `json:"controller"`
	Type          ReportType `json:"type"`
	State         *string    `json:"state"`
	Score         int        `json:"score"`
	Level         int        `json:"level"`
	ContinueScore int        `json:"continueScore"`
	Token         string     `json:"token"`
}

// Settings is announced once, when the bridge initializes, so the
// container can decide which chrome (score counter, high-score table)
// to render around the game.
type Settings struct {
	Controller   string `json:"controller"`
	Type         string `json:"type"`
	HasScore     bool   `json:"hasScore"`
	HasHighScore bool   `json:"hasHighScore"`
}

// TypeSettings is the message type of the one-shot Settings announcement.
const TypeSettings = "settings"

// TypeWebRTC marks an envelope as streaming control rather than a game
// command.
const TypeWebRTC = "webrtc"

// StreamAction is the verb of a streaming control message or reply.
type StreamAction string

const (
	// StreamInit asks the bridge to start a streaming session from the
	// enclosed encoded offer.
	StreamInit StreamAction = "init"
	// StreamOffer carries a renegotiation offer for the live session
	// (ICE restarts, track changes). Dropped while negotiation is
	// already in flight.
	StreamOffer StreamAction = "offer"
	// StreamCandidate carries one remote ICE candidate, applied on
	// arrival and acknowledged over the session data channel.
	StreamCandidate StreamAction = "candidate"
	// StreamClose tears the streaming session down.
	StreamClose StreamAction = "close"

	// StreamAnswer is the bridge's encoded answer to an offer.
	StreamAnswer StreamAction = "answer"
	// StreamConnected is emitted exactly once when the peer connection
	// reaches the connected state.
	StreamConnected StreamAction = "connected"
	// StreamDisconnected is emitted exactly once when a session is torn
	// down, whether by command, remote hangup, or failure.
	StreamDisconnected StreamAction = "disconnected"
)

// StreamReply is a bridge → container streaming notification.
type StreamReply struct {
	Controller string       `json:"controller"`
	Type       string       `json:"type"`
	Action     StreamAction `json:"action"`
	Answer     string       `json:"answer,omitempty"`
	SessionID  string       `json:"sessionId,omitempty"`
}

// Envelope is the lenient inbound decoding of a container message. It is
// the union of the command and streaming-control shapes; unknown fields
// are ignored for forward compatibility.
type Envelope struct {
	Controller string `json:"controller"`
	Type       string `json:"type"`

	// Streaming control fields, meaningful when Type == TypeWebRTC.
	Action    StreamAction `json:"action,omitempty"`
	Offer     string       `json:"offer,omitempty"`
	Candidate string       `json:"candidate,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	UserID    string       `json:"userId,omitempty"`
}

// ErrMalformed reports a payload that is not a JSON object.
var ErrMalformed = errors.New("protocol: malformed message")

// ErrForeign reports a well-formed object that does not carry the
// playbridge controller tag. Routers drop these silently: the channel is
// shared with whatever else the page embeds.
var ErrForeign = errors.New("protocol: not a playbridge message")

// ParseEnvelope decodes an inbound payload. It returns ErrMalformed for
// non-object payloads and ErrForeign when the controller tag is absent or
// wrong. Both are drop-and-forget conditions for the router.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if envelope.Controller != Controller {
		return Envelope{}, ErrForeign
	}
	return envelope, nil
}
