// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the host configuration.
type Config struct {
	// Listen is the address the container link listens on
	// (e.g. "127.0.0.1:8731").
	Listen string `yaml:"listen"`

	// AllowedOrigins is the ordered list of container origins the bridge
	// trusts. Messages from any other origin are dropped. At least one
	// entry is required.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TokenKey is the key material for the integrity-token source. May be
	// empty, in which case reports carry tokens derived from an empty key
	// (acceptable for containers that ignore the token).
	TokenKey string `yaml:"token_key"`

	// Stream configures the optional streaming bridge. A nil section
	// disables streaming: webrtc control messages are dropped.
	Stream *StreamConfig `yaml:"stream,omitempty"`
}

// StreamConfig configures the peer-connection streaming bridge.
type StreamConfig struct {
	// FrameRate is the capture rate in frames per second. Defaults to 30.
	FrameRate int `yaml:"frame_rate"`

	// ICEServers lists STUN/TURN servers for candidate gathering, in
	// priority order. Empty means host candidates only, which is
	// sufficient for same-machine and same-LAN viewers.
	ICEServers []ICEServer `yaml:"ice_servers"`
}

// ICEServer is one STUN or TURN server entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// defaultFrameRate is used when the stream section omits frame_rate.
const defaultFrameRate = 30

// maxFrameRate bounds frame_rate; capture above this is a config typo,
// not a real deployment.
const maxFrameRate = 120

// Load loads configuration from the PLAYBRIDGE_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults beyond per-field ones applied in
// Validate - if PLAYBRIDGE_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("PLAYBRIDGE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PLAYBRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your playbridge.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path and validates it.
// The config file is the single source of truth; environment variables do
// not override values in it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and applies per-field defaults.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins must contain at least one origin")
	}
	for i, origin := range c.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("allowed_origins[%d] is empty", i)
		}
	}

	if c.Stream != nil {
		if c.Stream.FrameRate == 0 {
			c.Stream.FrameRate = defaultFrameRate
		}
		if c.Stream.FrameRate < 0 || c.Stream.FrameRate > maxFrameRate {
			return fmt.Errorf("stream.frame_rate %d out of range (1-%d)",
				c.Stream.FrameRate, maxFrameRate)
		}
		for i, server := range c.Stream.ICEServers {
			if len(server.URLs) == 0 {
				return fmt.Errorf("stream.ice_servers[%d] has no urls", i)
			}
		}
	}
	return nil
}
