// SPDX-License-Identifier: MPL-2.0

package reloadserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"simwatch/internal/livereload"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultHost and DefaultPort match the conventional livereload endpoint.
	DefaultHost = "127.0.0.1"
	DefaultPort = 35729
	// DefaultPath is the WebSocket endpoint.
	DefaultPath = "/livereload"
	// HealthPath reports server status as JSON.
	HealthPath = "/healthz"

	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 16
	readHeaderTimeout   = 10 * time.Second

	// MessageTypeHello is sent once to each client after it is registered.
	MessageTypeHello = "hello"
)

var (
	// ErrNotStartable is returned by Start on a server that is not in the
	// Created state.
	ErrNotStartable = errors.New("server cannot be started")
	// ErrListen is returned by Start when the address cannot be bound.
	ErrListen = errors.New("listen failed")
)

type (
	// Config configures a Server. Zero values fall back to the defaults.
	Config struct {
		Host string
		// Port 0 binds a free port; see Server.Addr.
		Port int
		Path string
		// AllowedOrigins restricts WebSocket upgrades. Empty accepts clients
		// from the server's own host.
		AllowedOrigins []string
		// WriteTimeout bounds each message write.
		WriteTimeout time.Duration
		// SendBuffer is the per-client queue length. A client whose queue is
		// full is disconnected.
		SendBuffer int
		Logger     *log.Logger
	}

	// Message is the JSON payload sent to clients.
	Message struct {
		Type string `json:"type"`
		Path string `json:"path,omitempty"`
		Root string `json:"root,omitempty"`
		ID   string `json:"id,omitempty"`
	}

	// Health is the /healthz response body.
	Health struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}

	// Server broadcasts change events to WebSocket clients.
	Server struct {
		cfg    Config
		logger *log.Logger

		state   atomic.Int32
		stateMu sync.Mutex
		lastErr error
		addr    string

		httpServer *http.Server
		upgrader   websocket.Upgrader
		wg         sync.WaitGroup

		mu      sync.Mutex
		clients map[uuid.UUID]*client
	}
)

// NewFileChanged builds the message for a watcher event.
func NewFileChanged(ev livereload.Event) Message {
	return Message{
		Type: ev.Type(),
		Path: filepath.ToSlash(ev.Path),
		Root: ev.Root.String(),
	}
}

// New creates a Server in the Created state.
func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "reload"})
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[uuid.UUID]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, cfg.AllowedOrigins)
		},
	}
	s.state.Store(int32(StateCreated))
	return s
}

// Start binds the listener and serves in the background. It returns once
// the server accepts connections.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transitionToStarting(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.transitionToFailed(fmt.Errorf("%w on %s: %w", ErrListen, addr, err))
		return s.LastError()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.stateMu.Lock()
	s.addr = listener.Addr().String()
	s.httpServer = srv
	s.stateMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve", "error", err)
			s.transitionToFailed(err)
		}
	}()

	s.transitionToRunning()
	s.logger.Info("live reload server listening", "addr", s.Addr(), "path", s.cfg.Path)
	return nil
}

// Stop disconnects every client and shuts the HTTP server down, waiting for
// in-flight requests until ctx is done. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	if !s.transitionToStopping() {
		return nil
	}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "server stopping")
	}

	s.stateMu.Lock()
	srv := s.httpServer
	s.stateMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	s.logger.Debug("live reload server stopped")
	return err
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// LastError returns the error that failed the server, or nil.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Addr returns the bound host:port, or "" before Start.
func (s *Server) Addr() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.addr
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler returns the HTTP handler serving the WebSocket endpoint and
// /healthz. It is usable without Start, e.g. with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.serveWebSocket)
	mux.HandleFunc(HealthPath, s.serveHealth)
	return mux
}

// Broadcast queues ev for every client and returns how many accepted it.
func (s *Server) Broadcast(ev livereload.Event) int {
	msg := NewFileChanged(ev)

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range clients {
		if c.enqueue(msg) {
			sent++
			continue
		}
		if c.closed() {
			// Disconnected; unregister is on its way.
			continue
		}
		s.logger.Warn("client too slow, disconnecting", "client", c.id, "path", msg.Path)
		c.shutdown(websocket.CloseTryAgainLater, "too slow")
	}
	s.logger.Debug("broadcast", "path", msg.Path, "root", msg.Root, "clients", sent)
	return sent
}

// Forward broadcasts every event from events until the channel is closed or
// ctx is done.
func (s *Server) Forward(ctx context.Context, events <-chan livereload.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Broadcast(ev)
		}
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Health{Status: "ok", Clients: s.Clients()})
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.State() != StateRunning && s.State() != StateCreated {
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	c := newClient(conn, s.cfg.SendBuffer, s.cfg.WriteTimeout)
	s.register(c)
	defer s.unregister(c)

	c.enqueue(Message{Type: MessageTypeHello, ID: c.id.String()})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := c.writeLoop(); err != nil {
			s.logger.Debug("client write failed", "client", c.id, "error", err)
		}
		c.shutdown(websocket.CloseNormalClosure, "")
	}()

	// Clients only send control frames; reading drives ping/close handling.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	c.shutdown(websocket.CloseNormalClosure, "")
	<-writerDone
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	n := len(s.clients)
	s.mu.Unlock()

	// A client that raced with Stop missed the shutdown sweep.
	if state := s.State(); state == StateStopping || state.IsTerminal() {
		c.shutdown(websocket.CloseGoingAway, "server stopping")
	}
	s.logger.Info("client connected", "client", c.id, "remote_addr", c.conn.RemoteAddr(), "clients", n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client disconnected", "client", c.id, "clients", n)
}
