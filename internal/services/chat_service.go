package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qwikchat/internal/models"
)

const (
	defaultRoomName     = "New Chat"
	defaultHistoryLimit = 200
)

type ChatService struct {
	store        Store
	historyLimit int
}

func NewChatService(store Store, historyLimit int) *ChatService {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &ChatService{store: store, historyLimit: historyLimit}
}

// CreateRoom creates a room for the given participants. For two
// participants an existing direct room is returned instead of a new one.
func (s *ChatService) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	ids := uniqueIDs(req.ParticipantIDs)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: a room needs at least two participants", ErrInvalid)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultRoomName
	}

	if len(ids) == 2 {
		room, err := s.store.FindDirectRoom(ctx, ids[0], ids[1])
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return s.store.CreateRoom(ctx, name, ids)
}

func (s *ChatService) ListRooms(ctx context.Context, userID string) ([]models.RoomMembership, error) {
	return s.store.ListRooms(ctx, userID)
}

func (s *ChatService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

// History returns the most recent messages of a room, oldest first.
func (s *ChatService) History(ctx context.Context, roomID string) ([]models.Message, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.GetRecentMessages(ctx, roomID, s.historyLimit)
}

// PostMessage persists a message sent over the push channel.
func (s *ChatService) PostMessage(ctx context.Context, roomID, userID, content, clientID string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalid)
	}
	if roomID == "" || userID == "" {
		return nil, fmt.Errorf("%w: room and user are required", ErrInvalid)
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: user %s is not in room %s", ErrInvalid, userID, roomID)
	}
	msg := &models.Message{
		RoomID:   roomID,
		UserID:   userID,
		Content:  content,
		ClientID: clientID,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
