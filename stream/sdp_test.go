// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/pion/webrtc/v4"
)

// sampleSDP is a minimal but realistic offer body.
const sampleSDP = `v=0
o=- 4611731400430051336 2 IN IP4 127.0.0.1
s=-
t=0 0
a=group:BUNDLE 0
m=video 9 UDP/TLS/RTP/SAVPF 96
c=IN IP4 0.0.0.0
a=mid:0
a=recvonly
a=rtpmap:96 VP8/90000
`

func TestDescriptionRoundTrip(t *testing.T) {
	original := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sampleSDP,
	}

	encoded, err := EncodeDescription(original)
	if err != nil {
		t.Fatalf("EncodeDescription: %v", err)
	}
	// The encoding must survive a JSON string field.
	if strings.ContainsAny(encoded, "\"\n") {
		t.Errorf("encoded description is not JSON-string safe: %q", encoded)
	}

	decoded, err := DecodeDescription(encoded)
	if err != nil {
		t.Fatalf("DecodeDescription: %v", err)
	}
	if decoded.Type != original.Type || decoded.SDP != original.SDP {
		t.Errorf("round trip changed the description: %+v", decoded)
	}
}

func TestEncodeDescription_Compresses(t *testing.T) {
	description := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  strings.Repeat(sampleSDP, 20),
	}
	encoded, err := EncodeDescription(description)
	if err != nil {
		t.Fatalf("EncodeDescription: %v", err)
	}
	if len(encoded) >= len(description.SDP) {
		t.Errorf("encoded length %d not smaller than SDP length %d",
			len(encoded), len(description.SDP))
	}
}

func TestDecodeDescription_Errors(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "!!!not base64!!!"},
		{"not deflate", base64.StdEncoding.EncodeToString([]byte("plain text"))},
		{"empty input", ""},
		{"empty description", mustEncodeRaw(t, `{"type":"offer","sdp":""}`)},
		{"not a description", mustEncodeRaw(t, `[1, 2, 3]`)},
	}
	for _, tt := range tests {
		if _, err := DecodeDescription(tt.encoded); err == nil {
			t.Errorf("%s: DecodeDescription accepted invalid input", tt.name)
		}
	}
}

// mustEncodeRaw compresses and encodes an arbitrary JSON body, bypassing
// EncodeDescription's marshaling.
func mustEncodeRaw(t *testing.T, body string) string {
	t.Helper()
	var compressed bytes.Buffer
	writer, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		t.Fatalf("creating compressor: %v", err)
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		t.Fatalf("compressing body: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("flushing compressor: %v", err)
	}
	return base64.StdEncoding.EncodeToString(compressed.Bytes())
}
