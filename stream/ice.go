// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"github.com/pion/webrtc/v4"

	"github.com/playbridge-foundation/playbridge/lib/config"
)

// ICEConfig holds ICE server configuration for the streaming peer
// connection.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. Order matters: pion tries them in sequence.
	// Empty means host candidates only, sufficient for same-machine and
	// same-LAN viewers.
	Servers []webrtc.ICEServer
}

// ICEConfigFromSettings converts the host config's ICE server entries
// into pion ICE servers.
func ICEConfigFromSettings(servers []config.ICEServer) ICEConfig {
	if len(servers) == 0 {
		return ICEConfig{}
	}
	converted := make([]webrtc.ICEServer, 0, len(servers))
	for _, server := range servers {
		entry := webrtc.ICEServer{URLs: server.URLs}
		if server.Username != "" {
			entry.Username = server.Username
			entry.Credential = server.Credential
		}
		converted = append(converted, entry)
	}
	return ICEConfig{Servers: converted}
}
