package client

import (
	"context"
	"fmt"
	"sync"

	"qwikchat/internal/models"
)

// RoomLister lists the rooms a user belongs to.
type RoomLister interface {
	GetRooms(ctx context.Context, userID string) ([]models.RoomMembership, error)
}

// RoomDirectory is the room list for the logged-in user. It keeps
// last-message previews current from RoomTouched notifications instead of
// refetching after every message.
type RoomDirectory struct {
	lister RoomLister
	userID string

	mu    sync.RWMutex
	rooms []models.RoomMembership
}

func NewRoomDirectory(lister RoomLister, userID string) *RoomDirectory {
	return &RoomDirectory{lister: lister, userID: userID}
}

// Refresh reloads the room list.
func (d *RoomDirectory) Refresh(ctx context.Context) error {
	rooms, err := d.lister.GetRooms(ctx, d.userID)
	if err != nil {
		return fmt.Errorf("refresh rooms: %w", err)
	}
	d.mu.Lock()
	d.rooms = rooms
	d.mu.Unlock()
	return nil
}

// Rooms returns a copy of the current list.
func (d *RoomDirectory) Rooms() []models.RoomMembership {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.RoomMembership, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Find returns the room with the given id.
func (d *RoomDirectory) Find(roomID string) (models.RoomMembership, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if r.Room.ID == roomID {
			return r, true
		}
	}
	return models.RoomMembership{}, false
}

// DisplayName resolves how a room is shown to the logged-in user.
func (d *RoomDirectory) DisplayName(room models.RoomMembership) string {
	return room.DisplayName(d.userID)
}

// Apply updates the preview of the touched room. It reports whether the
// room is known.
func (d *RoomDirectory) Apply(t RoomTouched) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rooms {
		if d.rooms[i].Room.ID == t.RoomID {
			d.rooms[i].Room.LastMessage = t.LastMessage
			return true
		}
	}
	return false
}

// Watch applies notifications from touched until ctx is done. Unknown
// rooms trigger a Refresh so newly created rooms show up.
func (d *RoomDirectory) Watch(ctx context.Context, touched <-chan RoomTouched) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-touched:
			if !d.Apply(t) {
				_ = d.Refresh(ctx)
			}
		}
	}
}
