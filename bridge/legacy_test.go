// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"
	"time"

	"github.com/playbridge-foundation/playbridge/lib/testutil"
	"github.com/playbridge-foundation/playbridge/protocol"
)

func TestLegacy_InitOnceAcrossSurfaces(t *testing.T) {
	b, containerEnd := newTestBridge(t)

	legacy := b.Legacy()
	legacy.Init(LegacyConfig{ShowScore: true})
	b.Init(false, true) // already attached, must not re-announce

	inbound := testutil.RequireReceive(t, containerEnd.Inbound(), 5*time.Second, "settings")
	settings := decodeSettings(t, inbound.Payload)
	if !settings.HasScore || settings.HasHighScore {
		t.Errorf("settings = %+v, want the legacy Init's arguments", settings)
	}
	testutil.RequireNoReceive(t, containerEnd.Inbound(), 100*time.Millisecond,
		"settings announced once across both surfaces")
}

func TestLegacy_SendDataMapping(t *testing.T) {
	b, containerEnd := newTestBridge(t)
	legacy := b.Legacy()
	legacy.Init(LegacyConfig{ShowScore: true})
	testutil.RequireReceive(t, containerEnd.Inbound(), 5*time.Second, "settings")

	tests := []struct {
		name string
		data map[string]any
		want protocol.ReportType
	}{
		{"progress", map[string]any{"state": "PLAY", "score": 15, "level": 1}, protocol.ReportScoreUpdate},
		{"level without score", map[string]any{"level": 2}, protocol.ReportLevelUp},
		{"failed", map[string]any{"failed": true}, protocol.ReportPlayerFailed},
		{"json numbers", map[string]any{"state": "PLAY", "score": float64(7), "level": float64(1)}, protocol.ReportScoreUpdate},
	}
	for _, tt := range tests {
		legacy.SendData(tt.data)
		report := receiveReport(t, containerEnd)
		if report.Type != tt.want {
			t.Errorf("%s: report type = %q, want %q", tt.name, report.Type, tt.want)
		}
	}

	legacy.SendData(nil) // tolerated no-op
	testutil.RequireNoReceive(t, containerEnd.Inbound(), 100*time.Millisecond,
		"nil data must not report")
}

func TestLegacy_FailedBanksContinueScore(t *testing.T) {
	b, containerEnd := newTestBridge(t)
	legacy := b.Legacy()
	legacy.Init(LegacyConfig{ShowScore: true})
	testutil.RequireReceive(t, containerEnd.Inbound(), 5*time.Second, "settings")

	legacy.SendData(map[string]any{"state": "PLAY", "score": 25, "level": 1})
	receiveReport(t, containerEnd)
	legacy.SendData(map[string]any{"failed": true})

	report := receiveReport(t, containerEnd)
	if report.Score != 0 || report.ContinueScore != 25 {
		t.Errorf("failure report = %+v, want score 0, continueScore 25", report)
	}
	if report.State == nil || *report.State != "FAIL" {
		t.Errorf("failure state = %v, want the FAIL default", report.State)
	}
}

func TestLegacy_HookPropertiesReadAtInvocation(t *testing.T) {
	b, containerEnd := newTestBridge(t)
	legacy := b.Legacy()
	legacy.Init(LegacyConfig{})

	// Assigned after Init, like overwriting the v1 object's properties.
	started := make(chan struct{}, 1)
	legacy.OnStartGame = func() { started <- struct{}{} }
	continued := make(chan [2]int, 1)
	legacy.OnContinueWithCurrentScore = func(score, level int) {
		continued <- [2]int{score, level}
	}

	sendCommand(t, containerEnd, "startGame")
	testutil.RequireReceive(t, started, 5*time.Second, "legacy start hook")

	legacy.SendData(map[string]any{"state": "PLAY", "score": 9, "level": 2})
	legacy.SendData(map[string]any{"failed": true})
	sendCommand(t, containerEnd, "continueWithScore")
	values := testutil.RequireReceive(t, continued, 5*time.Second, "legacy continue hook")
	if values != [2]int{9, 2} {
		t.Errorf("continue hook got %v, want (9, 2)", values)
	}

	// Unassigned properties stay safe no-ops.
	sendCommand(t, containerEnd, "pauseGame")
	sendCommand(t, containerEnd, "startGame")
	testutil.RequireReceive(t, started, 5*time.Second, "bridge alive after nil property")
}
