package services

import (
	"context"
	"fmt"
	"strings"

	"qwikchat/internal/models"
)

type UserService struct {
	store Store
}

func NewUserService(store Store) *UserService {
	return &UserService{store: store}
}

// Register creates a user identified by phone.
func (s *UserService) Register(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	phone := NormalizePhone(req.Phone)
	if username == "" || phone == "" {
		return nil, fmt.Errorf("%w: username and phone are required", ErrInvalid)
	}
	return s.store.CreateUser(ctx, username, phone)
}

// GetByPhone looks a user up by phone, the only login the client has.
func (s *UserService) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalid)
	}
	return s.store.GetUserByPhone(ctx, phone)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '\t':
			return -1
		}
		return r
	}, phone)
}
