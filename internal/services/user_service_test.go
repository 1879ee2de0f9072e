package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwikchat/internal/models"
)

func TestRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(NewMemoryStore())

	user, err := svc.Register(ctx, models.CreateUserRequest{Username: " alice ", Phone: "(555) 010-0000"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "5550100000", user.Phone)

	_, err = svc.Register(ctx, models.CreateUserRequest{Username: "other", Phone: "555 010 0000"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Register(ctx, models.CreateUserRequest{Username: "", Phone: "1"})
	assert.ErrorIs(t, err, ErrInvalid)

	found, err := svc.GetByPhone(ctx, "555-010-0000")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.GetByPhone(ctx, "999")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetByPhone(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalid)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+1 (555) 010-0000": "+15550100000",
		"5550100000":        "5550100000",
		" \t":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}
