package models

import "time"

// Origin says where a timeline entry came from.
type Origin string

const (
	OriginRemote       Origin = "remote"
	OriginLocalPending Origin = "local-pending"
	// OriginConfirmed marks a local entry whose server echo has arrived.
	OriginConfirmed Origin = "confirmed"
)

// Message is one entry of a room timeline. History records from
// GET /conversations/:room_id decode straight into it.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ClientID  string    `json:"client_id,omitempty"`
	Origin    Origin    `json:"-"`
}

// ChatType discriminates push channel frames.
type ChatType string

const (
	ChatConnect ChatType = "CONNECT"
	ChatJoin    ChatType = "JOIN"
	ChatText    ChatType = "TEXT"
)

// ConnectRoom is the room_id carried by CONNECT frames.
const ConnectRoom = "main"

// ChatEvent is the push channel wire frame, used in both directions.
// ClientID correlates a TEXT frame with the sender's optimistic entry; peers
// that do not know it leave it empty.
type ChatEvent struct {
	ChatType ChatType `json:"chat_type"`
	Value    []string `json:"value"`
	RoomID   string   `json:"room_id"`
	UserID   string   `json:"user_id"`
	ID       int64    `json:"id"`
	ClientID string   `json:"client_id,omitempty"`
}

// Text returns the message body of a TEXT frame.
func (e ChatEvent) Text() string {
	if len(e.Value) == 0 {
		return ""
	}
	return e.Value[0]
}
