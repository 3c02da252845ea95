// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pion/webrtc/v4"
)

// Session descriptions cross the container channel inside JSON envelopes,
// so they travel as strings: DEFLATE-compressed (SDP is highly
// repetitive) and base64-encoded. Offers arrive in this encoding and
// answers are relayed in it.

// EncodeDescription encodes a session description for the container
// channel.
func EncodeDescription(description webrtc.SessionDescription) (string, error) {
	data, err := json.Marshal(description)
	if err != nil {
		return "", fmt.Errorf("marshaling session description: %w", err)
	}

	var compressed bytes.Buffer
	writer, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return "", fmt.Errorf("compressing session description: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("flushing compressor: %w", err)
	}

	return base64.StdEncoding.EncodeToString(compressed.Bytes()), nil
}

// DecodeDescription reverses EncodeDescription. Bad base64, a corrupt
// DEFLATE stream, or non-description JSON comes back as an error for the
// caller to treat as a failed negotiation.
func DecodeDescription(encoded string) (webrtc.SessionDescription, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decoding base64: %w", err)
	}

	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decompressing session description: %w", err)
	}

	var description webrtc.SessionDescription
	if err := json.Unmarshal(data, &description); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("unmarshaling session description: %w", err)
	}
	if description.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("empty session description")
	}
	return description, nil
}
