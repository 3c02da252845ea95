// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// playbridge-sim plays the container role against a running
// playbridge-host: it connects to the bridge's WebSocket link, sends a
// scripted command sequence, and prints every message the bridge
// reports. Useful for exercising a host without a browser embed.
//
//	playbridge-sim --url ws://127.0.0.1:8731/bridge \
//	    --origin https://games.example.com start pause start
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/playbridge-foundation/playbridge/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var url string
	var origin string
	var interval time.Duration

	flagSet := pflag.NewFlagSet("playbridge-sim", pflag.ContinueOnError)
	flagSet.StringVar(&url, "url", "ws://127.0.0.1:8731/bridge", "bridge WebSocket URL")
	flagSet.StringVar(&origin, "origin", "", "Origin header to present (must be on the host's allowlist)")
	flagSet.DurationVar(&interval, "interval", 2*time.Second, "delay between scripted commands")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if origin == "" {
		return fmt.Errorf("--origin is required")
	}

	commands := flagSet.Args()
	if len(commands) == 0 {
		commands = []string{"start_from_zero", "pause", "continue_with_score"}
	}
	for _, command := range commands {
		if _, ok := protocol.CanonicalCommand(command); !ok {
			return fmt.Errorf("unknown command %q", command)
		}
	}

	header := http.Header{"Origin": {origin}}
	connection, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", url, err)
	}
	defer connection.Close()
	fmt.Printf("connected to %s as %s\n", url, origin)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := connection.ReadMessage()
			if err != nil {
				return
			}
			printReport(payload)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for _, command := range commands {
		payload, err := json.Marshal(map[string]string{
			"controller": protocol.Controller,
			"type":       command,
		})
		if err != nil {
			return err
		}
		if err := connection.WriteMessage(websocket.TextMessage, payload); err != nil {
			return fmt.Errorf("sending %q: %w", command, err)
		}
		fmt.Printf("-> %s\n", command)

		select {
		case <-ticker.C:
		case <-interrupt:
			return nil
		case <-done:
			return fmt.Errorf("connection closed by host")
		}
	}

	// Keep printing reports until interrupted.
	select {
	case <-interrupt:
	case <-done:
	}
	return nil
}

// printReport renders one bridge message. Unknown shapes print as raw
// JSON rather than failing.
func printReport(payload []byte) {
	var report protocol.Report
	err := json.Unmarshal(payload, &report)
	known := report.Type == protocol.ReportScoreUpdate ||
		report.Type == protocol.ReportLevelUp ||
		report.Type == protocol.ReportPlayerFailed
	if err == nil && known {
		state := "-"
		if report.State != nil {
			state = *report.State
		}
		fmt.Printf("<- %-14s state=%-6s score=%-6d level=%-3d continue=%-6d token=%s\n",
			report.Type, state, report.Score, report.Level,
			report.ContinueScore, report.Token)
		return
	}
	fmt.Printf("<- %s\n", payload)
}
