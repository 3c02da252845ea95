// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/playbridge-foundation/playbridge/lib/codec"
	"github.com/playbridge-foundation/playbridge/lib/testutil"
	"github.com/playbridge-foundation/playbridge/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// offerer is the viewer side of a loopback session: a real pion peer
// connection that offers to receive video, with the pre-agreed control
// channel.
type offerer struct {
	connection *webrtc.PeerConnection
	control    *webrtc.DataChannel

	controlOpen     chan struct{}
	controlMessages chan []byte
	trackArrived    chan struct{}
}

func newOfferer(t *testing.T) *offerer {
	t.Helper()

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	connection, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("creating offerer peer connection: %v", err)
	}
	t.Cleanup(func() { connection.Close() })

	if _, err := connection.AddTransceiverFromKind(
		webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
	); err != nil {
		t.Fatalf("adding video transceiver: %v", err)
	}

	negotiated := true
	var channelID uint16
	control, err := connection.CreateDataChannel("control", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &channelID,
	})
	if err != nil {
		t.Fatalf("creating control channel: %v", err)
	}

	o := &offerer{
		connection:      connection,
		control:         control,
		controlOpen:     make(chan struct{}),
		controlMessages: make(chan []byte, 16),
		trackArrived:    make(chan struct{}, 1),
	}
	control.OnOpen(func() { close(o.controlOpen) })
	control.OnMessage(func(message webrtc.DataChannelMessage) {
		o.controlMessages <- message.Data
	})
	connection.OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
		select {
		case o.trackArrived <- struct{}{}:
		default:
		}
	})
	return o
}

// offer produces the encoded offer after candidate gathering completes.
func (o *offerer) offer(t *testing.T) string {
	t.Helper()
	offer, err := o.connection.CreateOffer(nil)
	if err != nil {
		t.Fatalf("creating offer: %v", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(o.connection)
	if err := o.connection.SetLocalDescription(offer); err != nil {
		t.Fatalf("setting offerer local description: %v", err)
	}
	select {
	case <-gatherComplete:
	case <-time.After(10 * time.Second):
		t.Fatal("offerer candidate gathering timed out")
	}
	encoded, err := EncodeDescription(*o.connection.LocalDescription())
	if err != nil {
		t.Fatalf("encoding offer: %v", err)
	}
	return encoded
}

// accept applies an encoded answer.
func (o *offerer) accept(t *testing.T, encoded string) {
	t.Helper()
	answer, err := DecodeDescription(encoded)
	if err != nil {
		t.Fatalf("decoding answer: %v", err)
	}
	if err := o.connection.SetRemoteDescription(answer); err != nil {
		t.Fatalf("setting offerer remote description: %v", err)
	}
}

// newTestStreamer builds a started streamer whose replies land on the
// returned channel.
func newTestStreamer(t *testing.T) (*Streamer, chan protocol.StreamReply) {
	t.Helper()
	streamer, err := New(Options{
		Frames:    NewTestPattern(30),
		FrameRate: 30,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	replies := make(chan protocol.StreamReply, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-streamer.Done()
	})
	streamer.Start(ctx, func(reply protocol.StreamReply) { replies <- reply })
	return streamer, replies
}

// receiveReply waits for the next reply and checks its action.
func receiveReply(t *testing.T, replies chan protocol.StreamReply, want protocol.StreamAction) protocol.StreamReply {
	t.Helper()
	reply := testutil.RequireReceive(t, replies, 20*time.Second, "waiting for %s reply", want)
	if reply.Action != want {
		t.Fatalf("reply action = %q, want %q", reply.Action, want)
	}
	return reply
}

// waitForState drains state transitions until want appears.
func waitForState(t *testing.T, streamer *Streamer, want State) {
	t.Helper()
	deadline := time.After(20 * time.Second)
	for {
		select {
		case state := <-streamer.StateChanges():
			if state == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v, current %v", want, streamer.State())
		}
	}
}

func TestStreamer_LoopbackLifecycle(t *testing.T) {
	streamer, replies := newTestStreamer(t)
	viewer := newOfferer(t)

	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     viewer.offer(t),
		SessionID: "session-1",
		UserID:    "viewer-1",
	})
	waitForState(t, streamer, StateCapturing)
	waitForState(t, streamer, StateNegotiating)

	answer := receiveReply(t, replies, protocol.StreamAnswer)
	if answer.SessionID != "session-1" {
		t.Errorf("answer session = %q", answer.SessionID)
	}
	viewer.accept(t, answer.Answer)

	receiveReply(t, replies, protocol.StreamConnected)
	waitForState(t, streamer, StateConnected)

	// Frames flow to the viewer once connected.
	testutil.RequireReceive(t, viewer.trackArrived, 20*time.Second, "remote track")

	// Exactly one answer per negotiation and one connected notification
	// per session.
	streamer.HandleCommand(Command{Action: protocol.StreamClose})
	disconnected := receiveReply(t, replies, protocol.StreamDisconnected)
	if disconnected.SessionID != "session-1" {
		t.Errorf("disconnected session = %q", disconnected.SessionID)
	}
	waitForState(t, streamer, StateIdle)

	// A second close against an idle streamer stays silent.
	streamer.HandleCommand(Command{Action: protocol.StreamClose})
	testutil.RequireNoReceive(t, replies, 200*time.Millisecond,
		"close must be idempotent")
}

func TestStreamer_RemoteClosingTearsDown(t *testing.T) {
	streamer, replies := newTestStreamer(t)
	viewer := newOfferer(t)

	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     viewer.offer(t),
		SessionID: "session-1",
	})
	viewer.accept(t, receiveReply(t, replies, protocol.StreamAnswer).Answer)
	receiveReply(t, replies, protocol.StreamConnected)

	// The viewer announces teardown over the control channel.
	testutil.RequireClosed(t, viewer.controlOpen, 20*time.Second, "control channel open")
	closing, err := codec.Marshal(controlMessage{Type: controlClosing})
	if err != nil {
		t.Fatalf("encoding closing message: %v", err)
	}
	if err := viewer.control.Send(closing); err != nil {
		t.Fatalf("sending closing message: %v", err)
	}

	receiveReply(t, replies, protocol.StreamDisconnected)
	waitForState(t, streamer, StateIdle)
}

func TestStreamer_InitReplacesActiveSession(t *testing.T) {
	streamer, replies := newTestStreamer(t)

	first := newOfferer(t)
	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     first.offer(t),
		SessionID: "session-1",
	})
	first.accept(t, receiveReply(t, replies, protocol.StreamAnswer).Answer)
	receiveReply(t, replies, protocol.StreamConnected)

	// A fresh init while connected: the old session is gone before the
	// new one answers.
	second := newOfferer(t)
	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     second.offer(t),
		SessionID: "session-2",
	})

	disconnected := receiveReply(t, replies, protocol.StreamDisconnected)
	if disconnected.SessionID != "session-1" {
		t.Errorf("disconnected session = %q, want session-1", disconnected.SessionID)
	}
	answer := receiveReply(t, replies, protocol.StreamAnswer)
	if answer.SessionID != "session-2" {
		t.Errorf("answer session = %q, want session-2", answer.SessionID)
	}
	second.accept(t, answer.Answer)
	receiveReply(t, replies, protocol.StreamConnected)
}

func TestStreamer_MalformedOfferFailsNegotiation(t *testing.T) {
	streamer, replies := newTestStreamer(t)

	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     "not an encoded offer",
		SessionID: "session-1",
	})

	// The partial session is torn down; no answer ever goes out.
	reply := testutil.RequireReceive(t, replies, 20*time.Second, "teardown reply")
	if reply.Action != protocol.StreamDisconnected {
		t.Errorf("reply action = %q, want %q", reply.Action, protocol.StreamDisconnected)
	}
	waitForState(t, streamer, StateIdle)
	testutil.RequireNoReceive(t, replies, 200*time.Millisecond,
		"no answer after a failed negotiation")
}

func TestNew_RequiresFrameSource(t *testing.T) {
	if _, err := New(Options{Logger: testLogger()}); err == nil {
		t.Fatal("New accepted a nil frame source")
	}
}

func TestStreamer_CloseDuringNegotiation(t *testing.T) {
	streamer, replies := newTestStreamer(t)
	viewer := newOfferer(t)

	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     viewer.offer(t),
		SessionID: "session-1",
	})
	// The answer goes out but is never applied to the viewer, so the
	// connection can never reach connected on its own.
	receiveReply(t, replies, protocol.StreamAnswer)

	streamer.HandleCommand(Command{Action: protocol.StreamClose})
	disconnected := receiveReply(t, replies, protocol.StreamDisconnected)
	if disconnected.SessionID != "session-1" {
		t.Errorf("disconnected session = %q", disconnected.SessionID)
	}
	waitForState(t, streamer, StateIdle)
	testutil.RequireNoReceive(t, replies, 300*time.Millisecond,
		"no connected reply after close during negotiation")
}

func TestStreamer_CommandsWithoutSessionAreSafe(t *testing.T) {
	streamer, replies := newTestStreamer(t)

	streamer.HandleCommand(Command{Action: protocol.StreamClose})
	streamer.HandleCommand(Command{Action: protocol.StreamCandidate, Candidate: "candidate:0 1 UDP 1 127.0.0.1 9 typ host"})
	streamer.HandleCommand(Command{Action: protocol.StreamOffer, Offer: "irrelevant"})
	streamer.HandleCommand(Command{Action: protocol.StreamAction("bogus")})

	testutil.RequireNoReceive(t, replies, 200*time.Millisecond,
		"sessionless commands must be silent")
	if streamer.State() != StateIdle {
		t.Errorf("state = %v, want idle", streamer.State())
	}
}

func TestStreamer_ShutdownTearsDownSession(t *testing.T) {
	streamer, err := New(Options{
		Frames: NewTestPattern(30),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	replies := make(chan protocol.StreamReply, 16)
	ctx, cancel := context.WithCancel(context.Background())
	streamer.Start(ctx, func(reply protocol.StreamReply) { replies <- reply })

	viewer := newOfferer(t)
	streamer.HandleCommand(Command{
		Action:    protocol.StreamInit,
		Offer:     viewer.offer(t),
		SessionID: "session-1",
	})
	viewer.accept(t, receiveReply(t, replies, protocol.StreamAnswer).Answer)
	receiveReply(t, replies, protocol.StreamConnected)

	cancel()
	testutil.RequireClosed(t, streamer.Done(), 20*time.Second, "event loop exit")
	receiveReply(t, replies, protocol.StreamDisconnected)

	// Commands after shutdown are dropped without blocking.
	streamer.HandleCommand(Command{Action: protocol.StreamClose})
}
