// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"github.com/pion/webrtc/v4"

	"github.com/playbridge-foundation/playbridge/lib/codec"
)

// Control messages travel over the session's pre-agreed data channel as
// deterministic CBOR. Both sides ignore unknown types, so vocabularies
// can grow without lockstep upgrades.
const (
	// controlCandidateAck acknowledges one applied remote candidate.
	controlCandidateAck = "candidate-ack"
	// controlCandidate carries a remote candidate trickled over the
	// data channel once it is open (instead of the container channel).
	controlCandidate = "candidate"
	// controlClosing announces an imminent teardown to the remote side.
	controlClosing = "closing"
	// controlRenegotiate asks the offering side to send a fresh offer.
	controlRenegotiate = "renegotiate"
	// controlRestart asks the offering side for an offer with an ICE
	// restart. Sent on ICE failure; the session stays up while waiting.
	controlRestart = "restart"
)

// controlMessage is the data-channel control frame.
type controlMessage struct {
	Type      string `cbor:"type"`
	Candidate string `cbor:"candidate,omitempty"`
}

// sendControl encodes and sends a control message on the session's data
// channel. A channel that is absent or not yet open makes this a logged
// no-op: control traffic is advisory and never worth failing a session
// over.
func (s *Streamer) sendControl(session *peerSession, message controlMessage) {
	if session.control == nil || session.control.ReadyState() != webrtc.DataChannelStateOpen {
		s.logger.Debug("control channel not open, dropping control message",
			"type", message.Type,
		)
		return
	}
	data, err := codec.Marshal(message)
	if err != nil {
		s.logger.Error("encoding control message failed",
			"type", message.Type,
			"error", err,
		)
		return
	}
	if err := session.control.Send(data); err != nil {
		s.logger.Debug("sending control message failed",
			"type", message.Type,
			"error", err,
		)
	}
}

// handleControlData decodes an inbound control frame and turns it into a
// loop event. Runs on pion's callback goroutine, so it must not touch
// loop state directly.
func (s *Streamer) handleControlData(generation uint64, data []byte) {
	var message controlMessage
	if err := codec.Unmarshal(data, &message); err != nil {
		s.logger.Debug("malformed control message dropped", "error", err)
		return
	}
	switch message.Type {
	case controlClosing:
		s.postEvent(remoteClosingEvent{generation: generation})
	case controlCandidate:
		s.postEvent(remoteCandidateEvent{
			generation: generation,
			candidate:  message.Candidate,
		})
	default:
		s.logger.Debug("unknown control message dropped", "type", message.Type)
	}
}
