// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

// playbridge-host serves a game bridge over a WebSocket container link.
// It stands in for the production frame boundary: a container (or the
// playbridge-sim tool) connects to /bridge and exchanges the same JSON
// messages that cross the frame boundary in a browser embed.
//
// The hosted game is a demo loop that reacts to container commands and
// reports synthetic progress; with a stream section in the config, the
// host also answers WebRTC offers with a test-pattern video track.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/playbridge-foundation/playbridge/bridge"
	"github.com/playbridge-foundation/playbridge/containerlink"
	"github.com/playbridge-foundation/playbridge/lib/config"
	"github.com/playbridge-foundation/playbridge/protocol"
	"github.com/playbridge-foundation/playbridge/stream"
	"github.com/playbridge-foundation/playbridge/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// version is stamped by the release build; "dev" otherwise.
var version = "dev"

func run() error {
	var configPath string
	var listenOverride string
	var verbose bool
	var showVersion bool

	flagSet := pflag.NewFlagSet("playbridge-host", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to playbridge.yaml (default: $PLAYBRIDGE_CONFIG)")
	flagSet.StringVar(&listenOverride, "listen", "", "listen address, overriding the config file")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("playbridge-host %s\n", version)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}

	link := containerlink.NewWebSocketLink(logger)

	var streamer *stream.Streamer
	if cfg.Stream != nil {
		streamer, err = stream.New(stream.Options{
			Frames:    stream.NewTestPattern(cfg.Stream.FrameRate),
			ICE:       stream.ICEConfigFromSettings(cfg.Stream.ICEServers),
			FrameRate: cfg.Stream.FrameRate,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
	}

	b, err := bridge.New(bridge.Options{
		Link:           link,
		AllowedOrigins: protocol.NewAllowedOrigins(cfg.AllowedOrigins...),
		Tokens:         token.NewKeyedSource([]byte(cfg.TokenKey)),
		Streamer:       streamer,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	attachDemoGame(b, logger)
	b.Init(true, false)

	mux := http.NewServeMux()
	mux.Handle("/bridge", link)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.Listen,
			"streaming", streamer != nil,
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	return b.Close()
}

// attachDemoGame wires a minimal game loop to the bridge: commands drive
// a score that climbs while playing, with a failure every fifty points
// to exercise the continue flow end to end.
func attachDemoGame(b *bridge.Bridge, logger *slog.Logger) {
	game := &demoGame{bridge: b, logger: logger}
	b.OnStart(game.start)
	b.OnPause(game.pause)
	b.OnStartFromZero(game.reset)
	b.OnContinue(game.continueFrom)
}

type demoGame struct {
	bridge *bridge.Bridge
	logger *slog.Logger

	// mu guards cancel: hooks fire from the router goroutine and from
	// the game's own play goroutine on failure.
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (g *demoGame) start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}
	progress := g.bridge.Progress()
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go g.play(ctx, progress.Score, progress.Level)
}

func (g *demoGame) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	g.logger.Info("demo game paused")
}

func (g *demoGame) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	g.logger.Info("demo game reset")
}

func (g *demoGame) continueFrom(score, level int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	g.logger.Info("demo game continuing", "score", score, "level", level)
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go g.play(ctx, score, level)
}

func (g *demoGame) stopLocked() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// play ticks the score upward until cancelled, leveling up every twenty
// points and failing every fifty.
func (g *demoGame) play(ctx context.Context, score, level int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		score++
		switch {
		case score%50 == 0:
			g.bridge.SetPlayerFailed("")
			return
		case score%20 == 0:
			level++
			g.bridge.SetLevelUp(level)
		default:
			g.bridge.SetProgress("PLAY", score, level)
		}
	}
}
