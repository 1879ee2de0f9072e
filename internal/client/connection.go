package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"qwikchat/internal/models"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = int64(64 << 10)
	eventBuffer  = 64
)

// Status is the lifecycle state of the push channel.
type Status int

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	default:
		return "closed"
	}
}

// ConnectionState is a point-in-time view of the push channel.
// JoinedRoomID is only set while Status is StatusOpen.
type ConnectionState struct {
	Status       Status
	JoinedRoomID string
}

// Channel is the push channel as seen by a Session.
type Channel interface {
	Open(ctx context.Context, userID string) error
	JoinRoom(roomID string) error
	Send(roomID, userID, content, clientID string) error
	Events() <-chan models.ChatEvent
	State() ConnectionState
	Close() error
}

// ConnectionManager owns one push channel connection at a time and
// mediates join, send and receive traffic over it.
type ConnectionManager struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	// dialMu serializes Open so concurrent callers share one dial.
	dialMu sync.Mutex

	mu     sync.RWMutex
	conn   *websocket.Conn
	status Status
	userID string
	joined string
	// closes counts Close calls; a dial that spans one is abandoned.
	closes uint64

	writeMu sync.Mutex
	events  chan models.ChatEvent
}

// ConnectionOption customizes a ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithConnectionLogger sets the logger used for dropped frames and transport errors.
func WithConnectionLogger(l *slog.Logger) ConnectionOption {
	return func(m *ConnectionManager) { m.logger = l }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) ConnectionOption {
	return func(m *ConnectionManager) { m.dialer = d }
}

// NewConnectionManager creates a closed manager for the channel at url.
func NewConnectionManager(url string, opts ...ConnectionOption) *ConnectionManager {
	m := &ConnectionManager{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: slog.Default(),
		events: make(chan models.ChatEvent, eventBuffer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open dials the channel and announces userID with a CONNECT frame.
// It is a no-op when the channel is already open for userID; an open
// channel announced for another user is re-announced and loses its room.
// A Close while the dial is in flight wins: the new connection is
// discarded and ErrNotConnected returned.
func (m *ConnectionManager) Open(ctx context.Context, userID string) error {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	if m.status == StatusOpen {
		if m.userID == userID {
			m.mu.Unlock()
			return nil
		}
		m.userID = userID
		m.joined = ""
		m.mu.Unlock()
		return m.write(connectFrame(userID))
	}
	m.status = StatusConnecting
	closes := m.closes
	m.mu.Unlock()

	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		m.mu.Lock()
		m.status = StatusClosed
		m.mu.Unlock()
		m.logger.Warn("push channel dial failed", "url", m.url, "error", err)
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, m.url, err)
	}
	conn.SetReadLimit(readLimit)

	m.mu.Lock()
	if m.closes != closes {
		m.mu.Unlock()
		_ = conn.Close()
		m.logger.Info("push channel closed during dial", "url", m.url)
		return ErrNotConnected
	}
	m.conn = conn
	m.status = StatusOpen
	m.userID = userID
	m.joined = ""
	m.mu.Unlock()

	go m.readLoop(conn)

	return m.write(connectFrame(userID))
}

func connectFrame(userID string) models.ChatEvent {
	return models.ChatEvent{
		ChatType: models.ChatConnect,
		Value:    []string{},
		RoomID:   models.ConnectRoom,
		UserID:   userID,
	}
}

// JoinRoom announces membership of roomID, superseding any previous room.
func (m *ConnectionManager) JoinRoom(roomID string) error {
	m.mu.Lock()
	if m.status != StatusOpen {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.joined = roomID
	userID := m.userID
	m.mu.Unlock()

	return m.write(models.ChatEvent{
		ChatType: models.ChatJoin,
		Value:    []string{roomID},
		RoomID:   roomID,
		UserID:   userID,
	})
}

// Send transmits a TEXT frame. clientID may be empty.
func (m *ConnectionManager) Send(roomID, userID, content, clientID string) error {
	return m.write(models.ChatEvent{
		ChatType: models.ChatText,
		Value:    []string{content},
		RoomID:   roomID,
		UserID:   userID,
		ClientID: clientID,
	})
}

// Events is the single inbound stream: TEXT frames for the joined room.
// The channel is never closed and survives reconnects.
func (m *ConnectionManager) Events() <-chan models.ChatEvent {
	return m.events
}

// State returns the current status and joined room.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ConnectionState{Status: m.status, JoinedRoomID: m.joined}
}

// Close terminates the connection, including one still being dialed.
// Later sends fail with ErrNotConnected until Open is called again.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	m.closes++
	conn := m.conn
	m.conn = nil
	m.status = StatusClosed
	m.joined = ""
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()
	return conn.Close()
}

func (m *ConnectionManager) write(ev models.ChatEvent) error {
	m.mu.RLock()
	conn, status := m.conn, m.status
	m.mu.RUnlock()
	if status != StatusOpen || conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(ev)
	m.writeMu.Unlock()
	if err != nil {
		m.drop(conn, err)
		return fmt.Errorf("%w: write %s: %v", ErrTransport, ev.ChatType, err)
	}
	return nil
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.drop(conn, err)
			return
		}
		m.dispatch(data)
	}
}

// drop moves to Closed after a transport error on conn. Errors from a
// connection that was already replaced or closed are ignored.
func (m *ConnectionManager) drop(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.status = StatusClosed
	m.joined = ""
	m.mu.Unlock()

	_ = conn.Close()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("push channel closed by peer")
		return
	}
	m.logger.Warn("push channel dropped", "error", fmt.Errorf("%w: %v", ErrTransport, err))
}

func (m *ConnectionManager) dispatch(data []byte) {
	var ev models.ChatEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		m.logger.Warn("dropping inbound frame", "error", fmt.Errorf("%w: %v", ErrParse, err))
		return
	}
	if ev.ChatType != models.ChatText {
		m.logger.Debug("ignoring non-text frame", "chat_type", ev.ChatType, "room_id", ev.RoomID)
		return
	}
	if len(ev.Value) == 0 {
		m.logger.Warn("dropping inbound frame", "error", fmt.Errorf("%w: text frame without value", ErrParse))
		return
	}

	m.mu.RLock()
	joined := m.joined
	m.mu.RUnlock()
	if ev.RoomID == "" || ev.RoomID != joined {
		m.logger.Debug("ignoring frame for other room", "room_id", ev.RoomID, "joined", joined)
		return
	}

	select {
	case m.events <- ev:
	default:
		m.logger.Warn("event buffer full, dropping frame", "room_id", ev.RoomID)
	}
}
