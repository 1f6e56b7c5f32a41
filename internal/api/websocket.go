package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/smartgarage/garage-core/internal/auth"
	"github.com/smartgarage/garage-core/internal/garage"
	"github.com/smartgarage/garage-core/internal/relay"
)

// observerPrefix marks a client id as a browser observer session.
// Anything without the prefix is treated as a controller's device id.
const observerPrefix = "web_"

// errSessionClosed is returned by writes on a closed session.
var errSessionClosed = errors.New("api: session closed")

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsSession wraps a WebSocket connection as a relay.Transport.
//
// A mutex serialises data writes so the relay and the broadcaster can
// share a session, and every write carries a deadline so a dead peer
// fails the write instead of blocking the caller. Close is idempotent.
type wsSession struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
}

func newWSSession(conn *websocket.Conn, writeTimeout time.Duration) *wsSession {
	return &wsSession{conn: conn, writeTimeout: writeTimeout}
}

// WriteMessage writes a single text frame with a write deadline.
func (c *wsSession) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errSessionClosed
	}
	//nolint:errcheck // Best-effort deadline; write error caught below
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the underlying connection. Safe to call more than once
// and concurrently with writes.
func (c *wsSession) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// handleSession upgrades /ws/{client_id} and classifies the session.
// Client ids with the "web_" prefix are observers; anything else is
// treated as a controller's device id.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	if clientID == "" {
		writeBadRequest(w, "client_id is required")
		return
	}

	if strings.HasPrefix(clientID, observerPrefix) {
		s.handleObserver(w, r, clientID)
		return
	}
	s.handleDevice(w, r, clientID)
}

// handleObserver authenticates and runs a browser observer session.
//
// Observers present a short-lived ticket as a query parameter because
// browsers cannot set headers on the upgrade request. Inbound frames
// from observers are read and discarded; all traffic to them flows
// through the broadcaster.
func (s *Server) handleObserver(w http.ResponseWriter, r *http.Request, clientID string) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}

	claims, err := auth.ParseToken(ticket, s.secCfg.JWT.Secret, auth.TokenKindTicket)
	if err != nil {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}

	session := newWSSession(conn, s.writeTimeout())
	s.broadcaster.Subscribe(session)
	s.logger.Info("observer connected", "client_id", clientID, "user_id", claims.Subject)

	done := make(chan struct{})
	go s.pingLoop(conn, done)

	// Observers are write-only from the server's point of view; the
	// read loop exists to detect disconnects and service pongs.
	s.discardLoop(conn)

	close(done)
	s.broadcaster.Unsubscribe(session)
	_ = session.Close() //nolint:errcheck // Best-effort close of finished session
	s.logger.Info("observer disconnected", "client_id", clientID, "user_id", claims.Subject)
}

// handleDevice registers and runs a controller session.
//
// The first connect from an unseen device id auto-creates an unapproved
// registration; the session itself is always accepted so the controller
// can report state, but commands are refused until an admin approves.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request, deviceID string) {
	if _, err := s.garages.GetByDeviceID(r.Context(), deviceID); err != nil {
		if !errors.Is(err, garage.ErrNotFound) {
			s.logger.Error("device lookup failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "device lookup failed")
			return
		}
		reg := &garage.Registration{
			Name:     deviceID,
			DeviceID: deviceID,
			Approved: false,
		}
		if err := s.garages.Create(r.Context(), reg); err != nil && !errors.Is(err, garage.ErrExists) {
			s.logger.Error("device registration failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "device registration failed")
			return
		}
		s.logger.Info("new device registered", "device_id", deviceID, "garage_id", reg.ID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "device_id", deviceID, "error", err)
		return
	}

	session := newWSSession(conn, s.writeTimeout())
	deviceConn := s.registry.Register(deviceID, session)

	done := make(chan struct{})
	go s.pingLoop(conn, done)

	s.deviceReadLoop(conn, deviceID)

	close(done)
	s.registry.Unregister(deviceID, deviceConn)
	_ = session.Close() //nolint:errcheck // Best-effort close of finished session
}

// deviceReadLoop consumes frames from a controller until the connection
// dies. Status frames update the registry; malformed and unknown frames
// are logged and dropped without tearing down the session.
func (s *Server) deviceReadLoop(conn *websocket.Conn, deviceID string) {
	s.prepareRead(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("device read error", "device_id", deviceID, "error", err)
			} else {
				s.logger.Debug("device session closed", "device_id", deviceID, "error", err)
			}
			return
		}
		s.resetReadDeadline(conn)

		var msg relay.StatusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed device frame dropped", "device_id", deviceID, "error", err)
			continue
		}

		if msg.Type != relay.MsgTypeStatus {
			s.logger.Warn("unknown device frame type dropped", "device_id", deviceID, "type", msg.Type)
			continue
		}

		s.registry.UpdateStatus(deviceID, garage.Status{
			DeviceID:    deviceID,
			State:       garage.ParseState(msg.State),
			Temperature: msg.Temperature,
			Humidity:    msg.Humidity,
			ObservedAt:  time.Now().UTC(),
		})
	}
}

// discardLoop reads and discards frames until the connection dies.
func (s *Server) discardLoop(conn *websocket.Conn) {
	s.prepareRead(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		s.resetReadDeadline(conn)
	}
}

// pingLoop sends protocol-level pings until done is closed or a ping
// write fails. WriteControl is safe to call concurrently with data
// writes on the session.
func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout())); err != nil {
				return
			}
		}
	}
}

// prepareRead sets the read limit, initial read deadline, and pong handler.
func (s *Server) prepareRead(conn *websocket.Conn) {
	conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(s.readWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.readWait()))
	})
}

// resetReadDeadline extends the read deadline after any inbound frame.
// Keeps the connection alive even if the peer never answers pings.
func (s *Server) resetReadDeadline(conn *websocket.Conn) {
	//nolint:errcheck // Best-effort deadline reset
	conn.SetReadDeadline(time.Now().Add(s.readWait()))
}

func (s *Server) pingInterval() time.Duration {
	return time.Duration(s.wsCfg.PingInterval) * time.Second
}

func (s *Server) writeTimeout() time.Duration {
	return time.Duration(s.wsCfg.WriteTimeout) * time.Second
}

// readWait is how long a session may go silent before it is presumed dead.
func (s *Server) readWait() time.Duration {
	return s.pingInterval() + time.Duration(s.wsCfg.PongTimeout)*time.Second
}
