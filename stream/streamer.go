// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/playbridge-foundation/playbridge/protocol"
)

// State is the streaming session lifecycle phase.
type State int32

const (
	// StateIdle means no peer session exists.
	StateIdle State = iota
	// StateCapturing means frames are being captured onto the outgoing
	// track but negotiation has not started.
	StateCapturing
	// StateNegotiating means an offer/answer exchange is in flight.
	StateNegotiating
	// StateConnected means the peer connection is established and the
	// viewer is receiving the stream.
	StateConnected
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Command is a streaming control command forwarded by the bridge router.
// The router has already validated sender, controller tag, and origin.
type Command struct {
	Action    protocol.StreamAction
	Offer     string
	Candidate string
	SessionID string
	UserID    string
}

// ReplyFunc delivers a streaming reply to the container. Supplied by the
// bridge at Start; it targets the pinned origin.
type ReplyFunc func(reply protocol.StreamReply)

// Options configures a Streamer.
type Options struct {
	// Frames is the capture collaborator. Required.
	Frames FrameSource

	// ICE is the ICE server configuration for peer connections.
	ICE ICEConfig

	// FrameRate is the capture rate in frames per second. Defaults to 30.
	FrameRate int

	// Logger receives structured log output. If nil, slog.Default().
	Logger *slog.Logger
}

// eventQueueSize bounds the loop's event queue. Control traffic is
// low-rate; a full queue means the loop is wedged and dropping is the
// only non-blocking option left.
const eventQueueSize = 64

// stateChangeBuffer sizes the observer channel. Observers that fall
// behind miss transitions rather than block the loop.
const stateChangeBuffer = 16

// Streamer owns at most one concurrent peer session and drives it
// through capture, negotiation, connection, and teardown. All session
// state is confined to the event loop goroutine.
type Streamer struct {
	frames        FrameSource
	ice           ICEConfig
	frameInterval time.Duration
	logger        *slog.Logger

	events    chan event
	startOnce sync.Once
	done      chan struct{}

	stateValue   atomic.Int32
	stateChanges chan State

	// Loop-owned fields. Only the run goroutine touches these.
	reply      ReplyFunc
	session    *peerSession
	generation uint64
}

// peerSession is the single live streaming session.
type peerSession struct {
	generation uint64
	sessionID  string

	connection *webrtc.PeerConnection
	control    *webrtc.DataChannel
	track      *webrtc.TrackLocalStaticSample
	pumpCancel context.CancelFunc

	negotiating      bool
	connected        bool
	restartRequested bool
	disconnectSent   bool
}

// event is a typed input to the streamer loop. Variants carry the
// generation of the session they belong to; the loop discards events
// whose generation is stale, which is how completions racing a teardown
// become no-ops.
type event interface{ isEvent() }

type commandEvent struct{ command Command }

type connectionStateEvent struct {
	generation uint64
	state      webrtc.PeerConnectionState
}

type iceStateEvent struct {
	generation uint64
	state      webrtc.ICEConnectionState
}

type localCandidateEvent struct {
	generation uint64
	candidate  *webrtc.ICECandidate
}

type gatherCompleteEvent struct{ generation uint64 }

type negotiationNeededEvent struct{ generation uint64 }

type remoteClosingEvent struct{ generation uint64 }

type remoteCandidateEvent struct {
	generation uint64
	candidate  string
}

func (commandEvent) isEvent()           {}
func (connectionStateEvent) isEvent()   {}
func (iceStateEvent) isEvent()          {}
func (localCandidateEvent) isEvent()    {}
func (gatherCompleteEvent) isEvent()    {}
func (negotiationNeededEvent) isEvent() {}
func (remoteClosingEvent) isEvent()     {}
func (remoteCandidateEvent) isEvent()   {}

// New creates a Streamer. Call Start before handing it commands.
func New(options Options) (*Streamer, error) {
	if options.Frames == nil {
		return nil, errors.New("stream: Frames is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	frameRate := options.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}
	streamer := &Streamer{
		frames:        options.Frames,
		ice:           options.ICE,
		frameInterval: time.Second / time.Duration(frameRate),
		logger:        logger,
		events:        make(chan event, eventQueueSize),
		done:          make(chan struct{}),
		stateChanges:  make(chan State, stateChangeBuffer),
	}
	return streamer, nil
}

// Start launches the event loop. reply delivers streaming replies to the
// container. Later calls are no-ops; the loop runs until ctx is
// cancelled, at which point any live session is torn down.
func (s *Streamer) Start(ctx context.Context, reply ReplyFunc) {
	s.startOnce.Do(func() {
		s.reply = reply
		go s.run(ctx)
	})
}

// Done returns a channel closed when the event loop has exited.
func (s *Streamer) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle phase.
func (s *Streamer) State() State { return State(s.stateValue.Load()) }

// StateChanges returns a channel receiving each state transition. The
// channel is buffered; a slow observer misses transitions rather than
// stalling the session.
func (s *Streamer) StateChanges() <-chan State { return s.stateChanges }

// HandleCommand submits a container streaming command to the loop. Never
// blocks: with the loop gone or the queue full the command is dropped,
// matching the failure contract (the stream simply never arrives).
func (s *Streamer) HandleCommand(command Command) {
	s.postEvent(commandEvent{command: command})
}

// postEvent enqueues an event without blocking.
func (s *Streamer) postEvent(e event) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn("streamer event queue full, dropping event",
			"event", fmt.Sprintf("%T", e),
		)
	}
}

func (s *Streamer) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.teardown("shutdown")
			return
		case e := <-s.events:
			s.handleEvent(ctx, e)
		}
	}
}

func (s *Streamer) handleEvent(ctx context.Context, e event) {
	switch event := e.(type) {
	case commandEvent:
		s.handleCommand(ctx, event.command)
	case connectionStateEvent:
		if s.stale(event.generation) {
			return
		}
		s.handleConnectionState(event.state)
	case iceStateEvent:
		if s.stale(event.generation) {
			return
		}
		s.handleICEState(event.state)
	case localCandidateEvent:
		if s.stale(event.generation) {
			return
		}
		// Individual local candidates are never relayed on their own;
		// gathering completion folds them into the local description,
		// which is relayed once. The event is debug visibility only.
		if event.candidate != nil {
			s.logger.Debug("local candidate gathered",
				"candidate", event.candidate.String(),
			)
		}
	case gatherCompleteEvent:
		if s.stale(event.generation) {
			return
		}
		s.handleGatherComplete()
	case negotiationNeededEvent:
		if s.stale(event.generation) {
			return
		}
		s.handleNegotiationNeeded()
	case remoteClosingEvent:
		if s.stale(event.generation) {
			return
		}
		s.logger.Info("remote viewer closed the session")
		s.teardown("remote closed")
	case remoteCandidateEvent:
		if s.stale(event.generation) {
			return
		}
		s.applyRemoteCandidate(event.candidate)
	}
}

// stale reports whether an event belongs to a session that no longer
// exists. Teardown bumps the generation, so every callback registered on
// the dead session fails this check.
func (s *Streamer) stale(generation uint64) bool {
	return s.session == nil || generation != s.session.generation
}

func (s *Streamer) handleCommand(ctx context.Context, command Command) {
	switch command.Action {
	case protocol.StreamInit:
		// One session at a time: a live session is fully torn down
		// before the new capturing phase begins.
		if s.session != nil {
			s.logger.Info("streaming init while session active, replacing session")
			s.teardown("replaced by new init")
		}
		s.startSession(ctx, command)

	case protocol.StreamOffer:
		if s.session == nil {
			s.logger.Debug("renegotiation offer without a session, dropped")
			return
		}
		if s.session.negotiating {
			// Renegotiation guard: one exchange in flight at a time.
			s.logger.Debug("renegotiation offer while negotiating, dropped")
			return
		}
		s.session.restartRequested = false
		if err := s.negotiate(command.Offer); err != nil {
			s.logger.Error("renegotiation failed", "error", err)
			s.teardown("renegotiation failure")
		}

	case protocol.StreamCandidate:
		if s.session == nil {
			s.logger.Debug("remote candidate without a session, dropped")
			return
		}
		s.applyRemoteCandidate(command.Candidate)

	case protocol.StreamClose:
		// Close is idempotent; already idle means nothing to do.
		s.teardown("close command")

	default:
		s.logger.Debug("unknown streaming action dropped", "action", command.Action)
	}
}

// startSession drives Idle → Capturing → Negotiating. Any failure along
// the way tears the partial session down; nothing propagates.
func (s *Streamer) startSession(ctx context.Context, command Command) {
	s.generation++
	session := &peerSession{
		generation: s.generation,
		sessionID:  command.SessionID,
	}
	generation := session.generation

	connection, err := s.newPeerConnection()
	if err != nil {
		s.logger.Error("creating peer connection failed", "error", err)
		return
	}
	session.connection = connection
	s.session = session

	connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.postEvent(connectionStateEvent{generation: generation, state: state})
	})
	connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		s.postEvent(iceStateEvent{generation: generation, state: state})
	})
	connection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		s.postEvent(localCandidateEvent{generation: generation, candidate: candidate})
	})
	connection.OnNegotiationNeeded(func() {
		s.postEvent(negotiationNeededEvent{generation: generation})
	})

	// Capturing: attach the render surface as a continuous media track.
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"render", "playbridge",
	)
	if err != nil {
		s.logger.Error("creating video track failed", "error", err)
		s.teardown("capture failure")
		return
	}
	if _, err := connection.AddTrack(track); err != nil {
		s.logger.Error("attaching video track failed", "error", err)
		s.teardown("capture failure")
		return
	}
	session.track = track

	// Pre-agreed control channel: both sides create it with the same
	// negotiated ID, so no channel negotiation crosses the wire.
	negotiated := true
	var channelID uint16
	control, err := connection.CreateDataChannel("control", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &channelID,
	})
	if err != nil {
		s.logger.Error("creating control channel failed", "error", err)
		s.teardown("capture failure")
		return
	}
	control.OnMessage(func(message webrtc.DataChannelMessage) {
		s.handleControlData(generation, message.Data)
	})
	session.control = control

	pumpCtx, pumpCancel := context.WithCancel(ctx)
	session.pumpCancel = pumpCancel
	go s.framePump(pumpCtx, track)

	s.setState(StateCapturing)
	s.logger.Info("streaming session capturing",
		"session_id", session.sessionID,
		"user_id", command.UserID,
	)

	if err := s.negotiate(command.Offer); err != nil {
		s.logger.Error("negotiation failed", "error", err)
		s.teardown("negotiation failure")
	}
}

// negotiate applies the remote's encoded offer and produces a local
// answer. The bridge is always the answering side. The answer is relayed
// by handleGatherComplete once candidate gathering finishes (vanilla
// ICE: one signaling round trip).
func (s *Streamer) negotiate(encodedOffer string) error {
	session := s.session
	connection := session.connection

	offer, err := DecodeDescription(encodedOffer)
	if err != nil {
		return fmt.Errorf("decoding offer: %w", err)
	}
	if err := connection.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	answer, err := connection.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(connection)
	if err := connection.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}

	session.negotiating = true
	s.setState(StateNegotiating)

	// Waiting for gathering would stall the loop; a completion event
	// re-enters it instead. The generation check makes a completion that
	// outlives its session a no-op.
	generation := session.generation
	go func() {
		<-gatherComplete
		s.postEvent(gatherCompleteEvent{generation: generation})
	}()
	return nil
}

// handleGatherComplete relays the full local description, all candidates
// folded in, exactly once per negotiation.
func (s *Streamer) handleGatherComplete() {
	session := s.session
	session.negotiating = false

	description := session.connection.LocalDescription()
	if description == nil {
		s.logger.Error("gathering completed without a local description")
		s.teardown("negotiation failure")
		return
	}
	encoded, err := EncodeDescription(*description)
	if err != nil {
		s.logger.Error("encoding answer failed", "error", err)
		s.teardown("negotiation failure")
		return
	}

	s.sendReply(protocol.StreamReply{
		Controller: protocol.Controller,
		Type:       protocol.TypeWebRTC,
		Action:     protocol.StreamAnswer,
		Answer:     encoded,
		SessionID:  session.sessionID,
	})

	// An ICE restart renegotiation finishes here while the connection is
	// already established; only a first-time exchange stays in
	// Negotiating until the connected event.
	if session.connected {
		s.setState(StateConnected)
	}
}

func (s *Streamer) handleConnectionState(state webrtc.PeerConnectionState) {
	session := s.session
	s.logger.Info("peer connection state change", "state", state.String())

	switch state {
	case webrtc.PeerConnectionStateConnected:
		if !session.connected {
			session.connected = true
			s.setState(StateConnected)
			// Exactly one connected notification per session.
			s.sendReply(protocol.StreamReply{
				Controller: protocol.Controller,
				Type:       protocol.TypeWebRTC,
				Action:     protocol.StreamConnected,
				SessionID:  session.sessionID,
			})
		}

	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		s.teardown("connection lost")

	case webrtc.PeerConnectionStateFailed:
		if session.restartRequested {
			// An ICE restart is pending; give the offerer a chance to
			// re-offer instead of tearing down.
			s.logger.Warn("peer connection failed, awaiting ICE restart offer")
			return
		}
		s.teardown("connection failed")
	}
}

// handleICEState attempts an in-place ICE restart on failure rather than
// tearing the whole session down. Answering side cannot restart
// unilaterally, so it asks the offerer over the control channel.
func (s *Streamer) handleICEState(state webrtc.ICEConnectionState) {
	if state != webrtc.ICEConnectionStateFailed {
		return
	}
	session := s.session
	if session.restartRequested {
		return
	}
	session.restartRequested = true
	s.logger.Warn("ICE failed, requesting restart from offerer")
	s.sendControl(session, controlMessage{Type: controlRestart})
}

// handleNegotiationNeeded fires when pion wants a new offer/answer
// exchange (track or channel changes). A request while negotiation is in
// flight is dropped; otherwise the offerer is asked to re-offer.
func (s *Streamer) handleNegotiationNeeded() {
	session := s.session
	if session.negotiating {
		s.logger.Debug("negotiation needed while negotiating, dropped")
		return
	}
	s.sendControl(session, controlMessage{Type: controlRenegotiate})
}

// applyRemoteCandidate applies a trickled remote candidate immediately
// and acknowledges it over the control channel.
func (s *Streamer) applyRemoteCandidate(candidate string) {
	session := s.session
	if candidate == "" {
		return
	}
	init := webrtc.ICECandidateInit{Candidate: candidate}
	if err := session.connection.AddICECandidate(init); err != nil {
		s.logger.Debug("applying remote candidate failed", "error", err)
		return
	}
	s.sendControl(session, controlMessage{
		Type:      controlCandidateAck,
		Candidate: candidate,
	})
}

// teardown destroys the live session: stop forwarding frames, discard
// the captured track, notify the remote side, close the control channel,
// close the connection, detach every listener (generation bump), clear
// the session fields, and return to Idle. Safe to call in any state;
// already-idle teardown is a no-op, and calling it twice is harmless.
func (s *Streamer) teardown(reason string) {
	session := s.session
	if session == nil {
		return
	}

	s.logger.Info("tearing down streaming session",
		"session_id", session.sessionID,
		"reason", reason,
	)

	if session.pumpCancel != nil {
		session.pumpCancel()
	}
	session.track = nil

	s.sendControl(session, controlMessage{Type: controlClosing})
	if session.control != nil {
		session.control.Close()
	}
	if session.connection != nil {
		session.connection.Close()
	}

	// Listener detach: callbacks registered on the dead connection still
	// fire during close, but they carry the old generation and fall to
	// the stale check.
	s.generation++
	s.session = nil

	if !session.disconnectSent {
		session.disconnectSent = true
		s.sendReply(protocol.StreamReply{
			Controller: protocol.Controller,
			Type:       protocol.TypeWebRTC,
			Action:     protocol.StreamDisconnected,
			SessionID:  session.sessionID,
		})
	}

	s.setState(StateIdle)
}

// framePump forwards frames from the capture source onto the outgoing
// track at the configured rate. It stops when its context is cancelled
// at teardown.
func (s *Streamer) framePump(ctx context.Context, track *webrtc.TrackLocalStaticSample) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sample, err := s.frames.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("capturing frame failed", "error", err)
			continue
		}
		if err := track.WriteSample(sample); err != nil {
			// Expected while the connection is still negotiating or
			// going down; the pump keeps pacing.
			s.logger.Debug("writing frame failed", "error", err)
		}
	}
}

func (s *Streamer) sendReply(reply protocol.StreamReply) {
	if s.reply == nil {
		return
	}
	s.reply(reply)
}

func (s *Streamer) setState(state State) {
	if State(s.stateValue.Swap(int32(state))) == state {
		return
	}
	select {
	case s.stateChanges <- state:
	default:
	}
}

// newPeerConnection creates a pion PeerConnection with the configured
// ICE servers. Loopback candidates are enabled so same-machine viewers
// and tests work without any STUN server.
func (s *Streamer) newPeerConnection() (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: s.ice.Servers,
	})
}
