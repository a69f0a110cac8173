// Package bridge is the daemon's edge to the browser: a websocket endpoint
// the extension keeps open (tab/window lifecycle events in, overlay updates
// and tab commands out) and a small REST API for the popup UI surfaces.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tabwarden/tabwarden/internal/settings"
	"github.com/tabwarden/tabwarden/internal/tracker"
)

// ErrNoClient is returned when no extension client is connected to receive
// a pushed message.
var ErrNoClient = errors.New("bridge: no extension client connected")

// Config holds the bridge server configuration.
type Config struct {
	ListenAddr string
}

// Server hosts the websocket bridge and the UI REST API. It implements
// tracker.Browser by forwarding to the connected extension client.
type Server struct {
	config   Config
	tracker  *tracker.Tracker
	settings *settings.Service
	logger   zerolog.Logger

	server   *http.Server
	listener net.Listener

	mu     sync.Mutex
	client *client
}

// NewServer creates a bridge server.
func NewServer(cfg Config, trk *tracker.Tracker, svc *settings.Service, logger zerolog.Logger) *Server {
	s := &Server{
		config:   cfg,
		tracker:  trk,
		settings: svc,
		logger:   logger.With().Str("component", "bridge").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket)
	s.registerAPI(r.PathPrefix("/api").Subrouter())

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  0, // websocket connections are long-lived
		WriteTimeout: 0,
	}
	return s
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the bridge server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting bridge server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated bridge listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Bridge server error")
		}
	}()
	return nil
}

// Stop stops the bridge server and disconnects any client.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping bridge server")

	s.mu.Lock()
	if s.client != nil {
		s.client.close()
		s.client = nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// SendUpdate implements tracker.Browser.
func (s *Server) SendUpdate(tabID int, update tracker.Update) error {
	return s.push(tabUpdate{Update: update, TabID: tabID})
}

// CloseTab implements tracker.Browser.
func (s *Server) CloseTab(tabID int) error {
	return s.push(command{Type: msgCloseTab, TabID: tabID})
}

// RequestActiveTab implements tracker.Browser.
func (s *Server) RequestActiveTab() error {
	return s.push(command{Type: msgQueryActiveTab})
}

func (s *Server) push(msg any) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	if c == nil {
		return ErrNoClient
	}
	return c.send(msg)
}
