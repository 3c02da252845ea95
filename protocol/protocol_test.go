// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEnvelope_Malformed(t *testing.T) {
	for _, payload := range []string{
		`"just a string"`,
		`[1, 2, 3]`,
		`42`,
		`{truncated`,
	} {
		_, err := ParseEnvelope([]byte(payload))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseEnvelope(%s): got %v, want ErrMalformed", payload, err)
		}
	}
}

func TestParseEnvelope_Foreign(t *testing.T) {
	for _, payload := range []string{
		`{}`,
		`null`,
		`{"controller": "someone-else", "type": "start"}`,
		`{"type": "start"}`,
	} {
		_, err := ParseEnvelope([]byte(payload))
		if !errors.Is(err, ErrForeign) {
			t.Errorf("ParseEnvelope(%s): got %v, want ErrForeign", payload, err)
		}
	}
}

func TestParseEnvelope_IgnoresUnknownFields(t *testing.T) {
	envelope, err := ParseEnvelope([]byte(
		`{"controller": "playbridge", "type": "start", "futureField": {"nested": true}}`,
	))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if envelope.Type != "start" {
		t.Errorf("Type = %q, want %q", envelope.Type, "start")
	}
}

func TestCanonicalCommand(t *testing.T) {
	cases := []struct {
		name string
		want Command
		ok   bool
	}{
		{"start", CommandStart, true},
		{"pause", CommandPause, true},
		{"start_from_zero", CommandStartFromZero, true},
		{"continue_with_score", CommandContinue, true},

		// Deprecated v1 spellings map onto the same commands.
		{"startGame", CommandStart, true},
		{"pauseGame", CommandPause, true},
		{"startFromZero", CommandStartFromZero, true},
		{"continueWithScore", CommandContinue, true},

		{"restart", "", false},
		{"START", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		command, ok := CanonicalCommand(c.name)
		if ok != c.ok || command != c.want {
			t.Errorf("CanonicalCommand(%q) = (%q, %v), want (%q, %v)",
				c.name, command, ok, c.want, c.ok)
		}
	}
}

func TestReport_NilStateSerializesAsNull(t *testing.T) {
	report := Report{
		Controller: Controller,
		Type:       ReportScoreUpdate,
		Score:      10,
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	value, present := decoded["state"]
	if !present || value != nil {
		t.Errorf("state field = %v (present=%v), want explicit null", value, present)
	}
}

func TestAllowedOrigins(t *testing.T) {
	input := []string{"https://games.example.com", "https://staging.example.com"}
	origins := NewAllowedOrigins(input...)

	// Mutating the input slice must not affect the set.
	input[0] = "https://evil.example.com"

	if !origins.Contains("https://games.example.com") {
		t.Error("configured origin not trusted")
	}
	if origins.Contains("https://evil.example.com") {
		t.Error("mutated input leaked into the trust set")
	}
	if origins.Contains("") {
		t.Error("empty origin must never be trusted")
	}

	list := origins.List()
	if len(list) != 2 || list[0] != "https://games.example.com" {
		t.Errorf("List() = %v, want original order preserved", list)
	}
}

func TestAllowedOrigins_ZeroValue(t *testing.T) {
	var origins AllowedOrigins
	if origins.Contains("https://games.example.com") {
		t.Error("zero-value trust set must trust nothing")
	}
}
