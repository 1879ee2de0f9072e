package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"qwikchat/internal/models"
)

// MemoryStore keeps everything in process memory. It backs the relay when
// no database is configured and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	phones   map[string]string
	rooms    map[string]models.Room
	messages map[string][]models.Message
	nextID   int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		phones:   make(map[string]string),
		rooms:    make(map[string]models.Room),
		messages: make(map[string][]models.Message),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, username, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.phones[phone]; ok {
		return nil, ErrUserExists
	}
	user := models.User{ID: uuid.New().String(), Username: username, Phone: phone, CreatedAt: s.now()}
	s.users[user.ID] = user
	s.phones[phone] = user.ID
	return &user, nil
}

func (s *MemoryStore) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.phones[phone]
	if !ok {
		return nil, ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryStore) CreateRoom(_ context.Context, name string, participantIDs []string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range participantIDs {
		if _, ok := s.users[id]; !ok {
			return nil, ErrNotFound
		}
	}
	room := models.Room{
		ID:             uuid.New().String(),
		Name:           name,
		ParticipantIDs: strings.Join(participantIDs, ","),
		CreatedAt:      s.now(),
	}
	s.rooms[room.ID] = room
	return &room, nil
}

func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (s *MemoryStore) FindDirectRoom(_ context.Context, a, b string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, room := range s.rooms {
		ids := room.Participants()
		if len(ids) == 2 && room.HasParticipant(a) && room.HasParticipant(b) {
			return &room, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListRooms(_ context.Context, userID string) ([]models.RoomMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []models.RoomMembership{}
	for _, room := range s.rooms {
		if userID != "" && !room.HasParticipant(userID) {
			continue
		}
		m := models.RoomMembership{Room: room}
		for _, id := range room.Participants() {
			if u, ok := s.users[id]; ok {
				m.Users = append(m.Users, u)
			}
		}
		rooms = append(rooms, m)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].Room.CreatedAt.After(rooms[j].Room.CreatedAt)
	})
	return rooms, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return ErrNotFound
	}
	s.nextID++
	msg.ID = strconv.FormatInt(s.nextID, 10)
	msg.CreatedAt = s.now()
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)

	room.LastMessage = msg.Content
	s.rooms[room.ID] = room
	return nil
}

func (s *MemoryStore) GetRecentMessages(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Message, len(all))
	copy(out, all)
	return out, nil
}
