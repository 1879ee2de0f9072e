package services

import (
	"context"
	"errors"

	"qwikchat/internal/models"
)

var (
	ErrUserExists = errors.New("user already exists")
	ErrNotFound   = errors.New("not found")
	ErrInvalid    = errors.New("invalid request")
)

// Store persists users, rooms and messages for the relay.
type Store interface {
	CreateUser(ctx context.Context, username, phone string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	CreateRoom(ctx context.Context, name string, participantIDs []string) (*models.Room, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	// FindDirectRoom returns the two-participant room shared by a and b.
	FindDirectRoom(ctx context.Context, a, b string) (*models.Room, error)
	// ListRooms lists rooms newest first; a non-empty userID restricts the
	// list to that user's rooms.
	ListRooms(ctx context.Context, userID string) ([]models.RoomMembership, error)

	// SaveMessage assigns ID and CreatedAt and updates the room's last message.
	SaveMessage(ctx context.Context, msg *models.Message) error
	// GetRecentMessages returns up to limit messages of a room, oldest first.
	GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}
