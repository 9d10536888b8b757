package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chalk-box/app/hub"
	"github.com/chalk-box/app/internal/config"
	"github.com/chalk-box/app/hub/telemetry"
)

// Server owns the single producer websocket. A new connection replaces the
// previous one; the producer software reconnects aggressively and the newest
// socket is always the live one.
type Server struct {
	hub       *hub.Hub
	logger    hub.Logger
	telemetry *telemetry.Recorder
	upgrader  websocket.Upgrader

	mu   sync.Mutex
	conn *producerConn
}

type producerConn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex
	authed  bool
}

// Options configures the transport server.
type Options struct {
	Hub       *hub.Hub
	Logger    hub.Logger
	Telemetry *telemetry.Recorder
	// CheckOrigin overrides the upgrader origin policy; by default all
	// origins are accepted, producers are authenticated by update key.
	CheckOrigin func(*http.Request) bool
}

// NewServer builds the producer endpoint handler.
func NewServer(opts Options) *Server {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = hub.DefaultLogger()
	}
	return &Server{
		hub:       opts.Hub,
		logger:    logger,
		telemetry: opts.Telemetry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   config.ProducerReadBufferSize,
			WriteBufferSize:  config.ProducerWriteBufferSize,
			HandshakeTimeout: config.ProducerHandshakeTimeout,
			CheckOrigin:      checkOrigin,
		},
	}
}

func (s *Server) log() hub.Logger {
	return s.logger
}

// ServeHTTP upgrades the producer connection and runs its read loop until the
// socket closes or is replaced.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn(fmt.Sprintf("upgrade failed: %v", err), "Transport")
		return
	}

	conn := &producerConn{id: uuid.NewString(), ws: ws}
	replaced := s.install(conn)
	s.telemetry.RecordConnect(replaced)
	s.log().Info(fmt.Sprintf("producer connected (%s)", conn.id), "Transport")

	s.hub.FirstConnectionReset()
	s.hub.SetRequestResourcesSender(func(resp hub.Response) error {
		return conn.writeResponse(resp)
	})

	s.readLoop(conn)
	s.teardown(conn)
}

// install makes conn the live producer, closing any previous socket.
func (s *Server) install(conn *producerConn) bool {
	s.mu.Lock()
	previous := s.conn
	s.conn = conn
	s.mu.Unlock()
	if previous == nil {
		return false
	}
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced by new connection")
	_ = previous.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	previous.ws.Close()
	return true
}

// teardown runs when the read loop exits. Only the live connection moves the
// hub to the waiting state; a replaced socket exits silently.
func (s *Server) teardown(conn *producerConn) {
	conn.ws.Close()
	s.mu.Lock()
	live := s.conn == conn
	if live {
		s.conn = nil
	}
	s.mu.Unlock()
	if !live {
		return
	}
	s.telemetry.RecordDisconnect()
	s.hub.SetRequestResourcesSender(nil)
	s.hub.EnterWaitingState()
	s.log().Info(fmt.Sprintf("producer disconnected (%s)", conn.id), "Transport")
}

func (s *Server) readLoop(conn *producerConn) {
	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log().Warn(fmt.Sprintf("read error (%s): %v", conn.id, err), "Transport")
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			if !s.handleText(conn, data) {
				return
			}
		case websocket.BinaryMessage:
			s.handleBinary(conn, data)
		}
	}
}

// handleText processes one text frame. Returns false when the connection must
// close (failed authentication).
func (s *Server) handleText(conn *producerConn, data []byte) bool {
	env, err := DecodeTextFrame(data)
	if err != nil {
		s.telemetry.RecordProtocolError()
		s.log().Warn(fmt.Sprintf("dropping text frame (%s): %v", conn.id, err), "Transport")
		_ = conn.writeResponse(hub.Response{Status: 400, Message: "undecodable frame", Reason: "protocol_error"})
		return true
	}

	if key := s.hub.UpdateKey(); key != "" && env.UpdateKey != key {
		s.telemetry.RecordAuthFailure()
		s.log().Warn(fmt.Sprintf("rejecting frame with bad update key (%s)", conn.id), "Transport")
		_ = conn.writeResponse(hub.Response{Status: 401, Message: "invalid update key", Reason: "unauthorized"})
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid update key")
		_ = conn.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		return false
	}

	if err := hub.CheckProtocolVersion(env.Version); err != nil {
		_ = conn.writeResponse(hub.VersionRejection(env.Version, err))
		return true
	}
	conn.authed = true

	var resp hub.Response
	switch env.Type {
	case "update", "timer", "decision":
		resp = s.hub.ApplyFrame(env.Type, env.Fields)
	case "database":
		resp = s.hub.IngestDatabase(env.Fields)
	default:
		resp = hub.Response{Status: 400, Message: "unknown frame type", Reason: env.Type}
	}
	_ = conn.writeResponse(resp)
	return true
}

// handleBinary processes one binary frame. Binary frames carry no update key,
// so when authentication is on they are only accepted after a text frame has
// proven the key on this connection.
func (s *Server) handleBinary(conn *producerConn, data []byte) {
	if s.hub.UpdateKey() != "" && !conn.authed {
		s.telemetry.RecordAuthFailure()
		s.log().Warn(fmt.Sprintf("dropping binary frame before authentication (%s)", conn.id), "Transport")
		_ = conn.writeResponse(hub.Response{Status: 401, Message: "binary frame before authentication", Reason: "unauthorized"})
		return
	}

	frame, err := DecodeBinaryFrame(data)
	if err != nil {
		s.telemetry.RecordProtocolError()
		s.log().Warn(fmt.Sprintf("dropping binary frame (%s): %v", conn.id, err), "Transport")
		_ = conn.writeResponse(hub.Response{Status: 400, Message: "undecodable frame", Reason: "protocol_error"})
		return
	}
	// Binary frames from an outdated producer are dropped silently; the
	// version rejection envelope is a text-frame concern.
	if frame.Version != "" {
		if err := hub.CheckProtocolVersion(frame.Version); err != nil {
			s.log().Warn(fmt.Sprintf("dropping binary %s frame (%s): %v", frame.Type, conn.id, err), "Transport")
			return
		}
	}

	resp := s.hub.IngestBinary(frame.Type, frame.Payload)
	_ = conn.writeResponse(resp)
}

var errNoConnection = errors.New("no producer connection")

func (c *producerConn) writeResponse(resp hub.Response) error {
	if c == nil {
		return errNoConnection
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(config.ProducerWriteTimeout))
	return c.ws.WriteJSON(resp)
}
