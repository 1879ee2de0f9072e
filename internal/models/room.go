package models

import (
	"strings"
	"time"
)

// Room mirrors the room records of the HTTP API. ParticipantIDs is a comma
// separated list of user ids.
type Room struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	LastMessage    string    `json:"last_message"`
	ParticipantIDs string    `json:"participant_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

// Participants splits ParticipantIDs.
func (r Room) Participants() []string {
	if r.ParticipantIDs == "" {
		return nil
	}
	parts := strings.Split(r.ParticipantIDs, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// HasParticipant reports whether userID belongs to the room.
func (r Room) HasParticipant(userID string) bool {
	for _, id := range r.Participants() {
		if id == userID {
			return true
		}
	}
	return false
}

type CreateRoomRequest struct {
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participant_ids"`
}

// RoomMembership is a room together with its resolved participants.
type RoomMembership struct {
	Room  Room   `json:"room"`
	Users []User `json:"users"`
}

// Counterpart returns the other user of a direct (two participant) room.
func (m RoomMembership) Counterpart(currentUserID string) (User, bool) {
	if len(m.Users) != 2 {
		return User{}, false
	}
	for _, u := range m.Users {
		if u.ID != currentUserID {
			return u, true
		}
	}
	return User{}, false
}

// DisplayName is the counterpart's username for direct rooms and the room
// name otherwise.
func (m RoomMembership) DisplayName(currentUserID string) string {
	if u, ok := m.Counterpart(currentUserID); ok {
		return u.Username
	}
	return m.Room.Name
}
