// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package containerlink

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Compile-time interface check.
var _ Link = (*WebSocketLink)(nil)

// writeTimeout bounds a single outbound frame write. A container that
// stops draining its socket must not wedge the bridge's handler path.
const writeTimeout = 10 * time.Second

// WebSocketLink serves the container channel over a WebSocket. At most
// one container connection is live at a time; a new connection replaces
// the old one (the container page reloaded). Message bodies are JSON
// text frames.
//
// The link records each connection's Origin header and stamps it onto
// inbound messages. It performs no origin checking itself; the bridge's
// router owns that decision, so the upgrader accepts any origin.
type WebSocketLink struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu         sync.Mutex
	connection *websocket.Conn
	connOrigin string

	inbound   chan Inbound
	closed    chan struct{}
	closeOnce sync.Once
	pumps     sync.WaitGroup
}

// inboundBuffer sizes the inbound channel. The bridge consumes promptly;
// the buffer only absorbs scheduling jitter.
const inboundBuffer = 64

// NewWebSocketLink creates a link. If logger is nil, slog.Default() is
// used.
func NewWebSocketLink(logger *slog.Logger) *WebSocketLink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketLink{
		logger: logger,
		upgrader: websocket.Upgrader{
			// Origin validation happens in the bridge router, which
			// needs to observe untrusted origins to drop them; refusing
			// the upgrade here would hide them from it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		inbound: make(chan Inbound, inboundBuffer),
		closed:  make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and installs the connection as the
// current container channel, replacing any previous one.
func (l *WebSocketLink) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	select {
	case <-l.closed:
		http.Error(writer, "link closed", http.StatusServiceUnavailable)
		return
	default:
	}

	connection, err := l.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		l.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	origin := request.Header.Get("Origin")

	l.mu.Lock()
	previous := l.connection
	l.connection = connection
	l.connOrigin = origin
	l.mu.Unlock()

	if previous != nil {
		l.logger.Info("container reconnected, replacing previous connection")
		previous.Close()
	}

	l.logger.Info("container connected",
		"origin", origin,
		"remote_addr", request.RemoteAddr,
	)

	l.pumps.Add(1)
	go func() {
		defer l.pumps.Done()
		l.readPump(connection, origin)
	}()
}

// readPump feeds frames from one connection into the inbound channel
// until the connection dies or the link closes.
func (l *WebSocketLink) readPump(connection *websocket.Conn, origin string) {
	for {
		_, payload, err := connection.ReadMessage()
		if err != nil {
			l.mu.Lock()
			if l.connection == connection {
				l.connection = nil
				l.connOrigin = ""
			}
			l.mu.Unlock()
			select {
			case <-l.closed:
			default:
				l.logger.Info("container disconnected", "error", err)
			}
			return
		}

		select {
		case l.inbound <- Inbound{Payload: payload, Sender: l.ContainerPeer(), Origin: origin}:
		case <-l.closed:
			return
		}
	}
}

// Deliver writes a text frame to the current container connection. With
// no container attached, or on a target-origin mismatch, the message is
// silently dropped.
func (l *WebSocketLink) Deliver(message Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connection == nil {
		return nil
	}
	if message.TargetOrigin != "" && message.TargetOrigin != l.connOrigin {
		return nil
	}

	l.connection.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := l.connection.WriteMessage(websocket.TextMessage, message.Payload); err != nil {
		l.logger.Warn("delivering to container failed", "error", err)
		return err
	}
	return nil
}

// Inbound returns the receive channel, closed when the link closes.
func (l *WebSocketLink) Inbound() <-chan Inbound {
	return l.inbound
}

// ContainerPeer returns the identity container messages carry.
func (l *WebSocketLink) ContainerPeer() string { return "container" }

// Close shuts the link down: the current connection is closed, read
// pumps drain, and the inbound channel is closed. Idempotent.
func (l *WebSocketLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)

		l.mu.Lock()
		connection := l.connection
		l.connection = nil
		l.mu.Unlock()
		if connection != nil {
			connection.Close()
		}

		l.pumps.Wait()
		close(l.inbound)
	})
	return nil
}
