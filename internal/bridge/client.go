package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabwarden/tabwarden/internal/metrics"
	"github.com/tabwarden/tabwarden/internal/tracker"
)

// Message types on the wire. Inbound are the browser lifecycle events the
// extension forwards; outbound are core commands and overlay updates.
const (
	msgTabActivated   = "TAB_ACTIVATED"
	msgTabUpdated     = "TAB_UPDATED"
	msgTabRemoved     = "TAB_REMOVED"
	msgFocusChanged   = "WINDOW_FOCUS_CHANGED"
	msgActiveTab      = "ACTIVE_TAB"
	msgCloseTab       = "CLOSE_TAB"
	msgQueryActiveTab = "QUERY_ACTIVE_TAB"
	msgHello          = "HELLO"
)

var (
	writeWait    = 10 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge binds to loopback; the extension's origin is a browser
	// extension URL, so origin checking buys nothing here.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 3 * time.Second,
}

// event is an inbound browser lifecycle event.
type event struct {
	Type     string `json:"type"`
	TabID    int    `json:"tabId"`
	URL      string `json:"url"`
	WindowID int    `json:"windowId"`
}

// tabUpdate is an Update targeted at one tab's overlay.
type tabUpdate struct {
	tracker.Update
	TabID int `json:"tabId"`
}

// command is an outbound instruction to the extension.
type command struct {
	Type  string `json:"type"`
	TabID int    `json:"tabId,omitempty"`
}

// hello is sent once after connect so the overlay knows the core-owned
// warning threshold.
type hello struct {
	Type             string `json:"type"`
	WarningThreshold int64  `json:"warningThreshold"`
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
}

// handleWebsocket upgrades the extension connection. Only one client is
// served at a time; a new connection replaces the previous one.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.client != nil {
		s.logger.Info().Msg("Replacing existing extension client")
		s.client.close()
	}
	s.client = c
	s.mu.Unlock()

	metrics.BridgeClientsConnected.Set(1)
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("Extension client connected")

	go c.writePump()
	_ = c.send(hello{Type: msgHello, WarningThreshold: tracker.WarningThresholdSeconds})

	s.readPump(c)
}

// readPump dispatches inbound events into the tracker, one at a time. This
// loop is the daemon's single event dispatcher: handlers never run
// concurrently for one client.
func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		if s.client == c {
			s.client = nil
			metrics.BridgeClientsConnected.Set(0)
		}
		s.mu.Unlock()
		c.close()
		s.logger.Info().Msg("Extension client disconnected")
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Websocket read error")
			}
			return
		}

		var ev event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed bridge event")
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Server) dispatch(ev event) {
	metrics.BridgeEventsTotal.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case msgTabActivated, msgActiveTab:
		s.tracker.OnTabActivated(ev.TabID, ev.URL)
	case msgTabUpdated:
		s.tracker.OnTabUpdated(ev.TabID, ev.URL)
	case msgTabRemoved:
		s.tracker.OnTabRemoved(ev.TabID)
	case msgFocusChanged:
		s.tracker.OnFocusChanged(ev.WindowID)
	default:
		s.logger.Debug().Str("type", ev.Type).Msg("Unknown bridge event type")
	}
}

func (c *client) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bridge message: %w", err)
	}

	select {
	case c.out <- payload:
		return nil
	case <-c.done:
		return ErrNoClient
	default:
		return fmt.Errorf("bridge: client send buffer full")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	_ = c.conn.Close()
}
