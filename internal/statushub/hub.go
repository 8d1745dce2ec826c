package statushub

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeDeadline bounds a single WebSocket write; localhost writes that take
// longer than this indicate a dead or frozen client.
const writeDeadline = 5 * time.Second

// readDeadline/pingInterval: same keepalive shape as the teacher's pane
// stream — extend on pong, ping every pingInterval, give up after three
// missed pings.
const (
	readDeadline = 90 * time.Second
	pingInterval = 30 * time.Second
)

const maxReadMessageSize = 4 * 1024

var upgrader = websocket.Upgrader{
	// Localhost-only binding (see HubOptions.Addr) makes origin checking
	// redundant; kept permissive so any local tool can connect.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// HubOptions configures the Hub.
type HubOptions struct {
	// Addr is the listen address. Empty defaults to "127.0.0.1:0"
	// (OS-assigned port) — this is an observability side-channel, never a
	// control surface, so binding to localhost only is mandatory.
	Addr string
}

// Hub broadcasts supervisor lifecycle Events to every currently connected
// WebSocket client. Unlike the teacher's single-client pane stream, this
// hub expects zero-or-more observers and simply drops a client that falls
// behind or disconnects — there is no subscription model, every client
// gets every event.
type Hub struct {
	opts HubOptions

	mu    sync.RWMutex
	conns map[*websocket.Conn]*sync.Mutex // conn -> its own write-serializing mutex

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

// NewHub creates a Hub; it is not listening until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{
		opts:  opts,
		conns: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Start begins listening and serving WebSocket connections at /events.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("statushub: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("statushub: listen: %w", err)
	}
	h.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/events", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.handleWS)

	h.server = &http.Server{
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("[statushub] server error", "error", serveErr)
		}
	}()

	slog.Info("[statushub] server started", "url", h.url)
	return nil
}

// Stop closes every connection and shuts the server down. Idempotent.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conns := h.conns
		h.conns = make(map[*websocket.Conn]*sync.Mutex)
		h.mu.Unlock()

		for conn := range conns {
			_ = conn.Close()
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("statushub: shutdown: %w", err)
			}
		}
		slog.Info("[statushub] server stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL clients should connect to, or "" if Start
// hasn't run yet.
func (h *Hub) URL() string { return h.url }

// ConnectionCount reports how many clients are currently connected.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends e to every connected client. A client whose write fails
// or times out is dropped; Broadcast itself never returns an error since no
// single client's failure should affect the caller (a rebuild notification
// must not block on a stalled dev-tools tab).
func (h *Hub) Broadcast(e Event) {
	frame, err := EncodeEvent(e)
	if err != nil {
		slog.Warn("[statushub] failed to encode event", "error", err, "type", e.Type)
		return
	}

	h.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for conn, wmu := range h.conns {
		targets[conn] = wmu
	}
	h.mu.RUnlock()

	for conn, wmu := range targets {
		h.writeTo(conn, wmu, frame)
	}
}

func (h *Hub) writeTo(conn *websocket.Conn, wmu *sync.Mutex, frame []byte) {
	wmu.Lock()
	defer wmu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.drop(conn)
		return
	}
	err := conn.WriteMessage(websocket.TextMessage, frame)
	_ = conn.SetWriteDeadline(time.Time{})
	if err != nil {
		slog.Debug("[statushub] write failed, dropping client", "error", err)
		h.drop(conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if present {
		_ = conn.Close()
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[statushub] upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		_ = conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	h.conns[conn] = &sync.Mutex{}
	h.mu.Unlock()
	slog.Info("[statushub] client connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[statushub] handleWS recovered", "panic", rec, "stack", string(debug.Stack()))
		}
		close(pingDone)
		h.drop(conn)
		slog.Info("[statushub] client disconnected")
	}()

	for {
		// This hub has no client->server messages of its own; reads exist
		// only to drive the pong handler and notice disconnects.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[statushub] pingLoop recovered", "panic", rec, "stack", string(debug.Stack()))
			h.drop(conn)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	h.mu.RLock()
	wmu := h.conns[conn]
	h.mu.RUnlock()
	if wmu == nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			wmu.Lock()
			setErr := conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			var pingErr error
			if setErr == nil {
				pingErr = conn.WriteMessage(websocket.PingMessage, nil)
			}
			_ = conn.SetWriteDeadline(time.Time{})
			wmu.Unlock()
			if setErr != nil || pingErr != nil {
				h.drop(conn)
				return
			}
		}
	}
}
