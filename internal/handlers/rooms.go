package handlers

import (
	"sync"

	"qwikchat/internal/utils"

	"github.com/gofiber/websocket/v2"
)

// Peer is one websocket connection. Writes are serialized because the
// underlying connection does not allow concurrent writers.
type Peer struct {
	ID   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (p *Peer) Send(payload interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return utils.SendJSON(p.conn, payload)
}

type peerMeta struct {
	peer   *Peer
	userID string
	room   string
}

// RoomManager tracks which room each connection has joined. A connection
// is in at most one room; joining another leaves the previous one.
type RoomManager struct {
	mu sync.RWMutex
	// roomID -> connID -> peer
	rooms map[string]map[string]*Peer
	peers map[string]*peerMeta
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]*Peer),
		peers: make(map[string]*peerMeta),
	}
}

// Register adds a connection that has not announced a user yet.
func (m *RoomManager) Register(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[p.ID] = &peerMeta{peer: p}
}

// Identify binds a connection to the user from its CONNECT frame.
func (m *RoomManager) Identify(connID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta, ok := m.peers[connID]; ok {
		meta.userID = userID
	}
}

// UserID returns the user a connection announced.
func (m *RoomManager) UserID(connID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if meta, ok := m.peers[connID]; ok {
		return meta.userID
	}
	return ""
}

// Join moves a connection into room and returns the room it left.
func (m *RoomManager) Join(room string, connID string) (previous string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.peers[connID]
	if !ok {
		return ""
	}
	previous = meta.room
	if previous != "" {
		m.leaveLocked(previous, connID)
	}
	if _, ok := m.rooms[room]; !ok {
		m.rooms[room] = make(map[string]*Peer)
	}
	m.rooms[room][connID] = meta.peer
	meta.room = room
	return previous
}

// CurrentRoom returns the room a connection has joined.
func (m *RoomManager) CurrentRoom(connID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if meta, ok := m.peers[connID]; ok {
		return meta.room
	}
	return ""
}

// Unregister removes a connection from its room and forgets it.
func (m *RoomManager) Unregister(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.peers[connID]
	if !ok {
		return
	}
	if meta.room != "" {
		m.leaveLocked(meta.room, connID)
	}
	delete(m.peers, connID)
}

func (m *RoomManager) leaveLocked(room, connID string) {
	if conns, ok := m.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.rooms, room)
		}
	}
}

// Broadcast sends message to every connection in room, the sender included.
func (m *RoomManager) Broadcast(room string, message interface{}) {
	m.mu.RLock()
	peers := make([]*Peer, 0, len(m.rooms[room]))
	for _, p := range m.rooms[room] {
		peers = append(peers, p)
	}
	m.mu.RUnlock()

	for _, p := range peers {
		if err := p.Send(message); err != nil {
			// The read loop notices the broken connection and unregisters it.
			utils.LogError(err, "Broadcast")
		}
	}
}

// IsUserOnline checks if any active connection belongs to the given user
func (m *RoomManager) IsUserOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, meta := range m.peers {
		if meta.userID == userID {
			return true
		}
	}
	return false
}

// RoomSize returns the number of connections in room.
func (m *RoomManager) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}
