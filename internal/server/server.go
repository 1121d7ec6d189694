// Package server serves the story index and bridges the preview channel to
// browsers over a websocket and server-sent events.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/channel"
	"github.com/grovetools/storybook/internal/htmlview"
	"github.com/grovetools/storybook/internal/index"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 20
)

//go:embed shell.html
var shell []byte

// RunningConfig is the active configuration, exposed via /api/config so
// clients can verify what the server runs with.
type RunningConfig struct {
	Addr            string    `json:"addr"`
	ConfigFile      string    `json:"config_file,omitempty"`
	Stories         []string  `json:"stories"`
	V2Compatibility bool      `json:"v2_compatibility"`
	PlayFunctions   bool      `json:"play_functions"`
	DebounceMs      int       `json:"debounce_ms"`
	StartedAt       time.Time `json:"started_at"`
}

// IndexSource builds the story index.
type IndexSource interface {
	GetIndex(ctx context.Context) (*index.StoryIndex, error)
}

// FrameSource returns the preview's current frame.
type FrameSource interface {
	Snapshot() htmlview.Frame
}

// Server serves the storybook HTTP API.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	index         IndexSource
	bus           *channel.Bus
	frames        FrameSource
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetIndexSource sets where /stories.json comes from.
func (s *Server) SetIndexSource(src IndexSource) { s.index = src }

// SetBus sets the channel bridged to browsers.
func (s *Server) SetBus(bus *channel.Bus) { s.bus = bus }

// SetFrameSource sets the view whose snapshot new clients receive.
func (s *Server) SetFrameSource(src FrameSource) { s.frames = src }

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) { s.runningConfig = cfg }

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stories.json", s.handleGetIndex)
	mux.HandleFunc("/index.json", s.handleGetIndex)
	mux.HandleFunc("/channel", s.handleChannel)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/frame", s.handleGetFrame)
	mux.HandleFunc("/api/config", s.handleGetConfig)
	mux.HandleFunc("/", s.handleShell)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener. It blocks until the server stops.
func (s *Server) Serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("Storybook listening")
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleGetIndex serves the story index. A failed extraction is reported
// as a 500 with the structured error.
func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		http.Error(w, "index not initialized", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idx, err := s.index.GetIndex(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to build story index")
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(idx)
}

func writeError(w http.ResponseWriter, err error) {
	sbErr, ok := errors.As(err)
	if !ok {
		sbErr = errors.Wrap(err, errors.ErrCodeInternal, err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(sbErr.ToJSON()))
}

// handleChannel bridges the bus to a websocket. Outbound events are
// written by a single writer goroutine; inbound events are dispatched to
// the preview.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "channel not initialized", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	logger := s.logger.WithField("remote", r.RemoteAddr)
	logger.Debug("Channel client connected")

	sub := s.bus.Subscribe()
	done := make(chan struct{})
	go s.writeLoop(conn, sub, done)

	defer func() {
		s.bus.Unsubscribe(sub)
		<-done
		_ = conn.Close()
		logger.Debug("Channel client disconnected")
	}()

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev channel.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.WithError(err).Warn("Ignoring malformed channel message")
			continue
		}
		if !channel.IsInbound(ev.Type) {
			logger.WithField("event", ev.Type).Warn("Ignoring event the preview does not accept")
			continue
		}
		s.bus.Dispatch(ev)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, sub chan channel.Event, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if s.frames != nil {
		initial := channel.Event{Type: channel.PreviewFrame, Args: []any{s.frames.Snapshot()}}
		if !writeJSON(conn, initial) {
			return
		}
	}

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !writeJSON(conn, ev) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// writeJSON writes a JSON message and reports whether the connection is usable.
func writeJSON(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		_ = conn.Close()
		return false
	}
	return true
}

// handleStream provides Server-Sent Events of every outbound channel event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "channel not initialized", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	if s.frames != nil {
		if data, err := json.Marshal(channel.Event{Type: channel.PreviewFrame, Args: []any{s.frames.Snapshot()}}); err == nil {
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).WithField("event", ev.Type).Error("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

// handleGetFrame returns the preview's current frame.
func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if s.frames == nil {
		http.Error(w, "preview not initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s.frames.Snapshot())
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.runningConfig)
}

// handleShell serves the browser shell that renders frames and forwards
// navigation to the channel.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/iframe.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(shell)
}
