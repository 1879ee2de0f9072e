package api_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwikchat/internal/api"
	"qwikchat/internal/app"
	"qwikchat/internal/models"
	"qwikchat/internal/services"
)

func newClient(t *testing.T) (*api.Client, *services.MemoryStore) {
	t.Helper()
	store := services.NewMemoryStore()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := app.New(store, 0)
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.ShutdownWithTimeout(2 * time.Second) })
	return api.New("http://"+ln.Addr().String()+"/", time.Second), store
}

func TestClientUsersAndRooms(t *testing.T) {
	c, store := newClient(t)
	ctx := context.Background()

	_, err := c.GetUserByPhone(ctx, "100")
	assert.ErrorIs(t, err, api.ErrNotFound)

	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.Code)

	_, err = c.Login(ctx, "100", "")
	assert.ErrorIs(t, err, api.ErrNotFound)

	alice, err := c.Login(ctx, "100", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Username)

	again, err := c.Login(ctx, "100", "ignored")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)

	_, err = c.CreateUser(ctx, "dup", "100")
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 409, statusErr.Code)
	assert.NotErrorIs(t, err, api.ErrNotFound)

	bob, err := c.CreateUser(ctx, "bob", "200")
	require.NoError(t, err)

	users, err := c.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	room, err := c.CreateRoom(ctx, "", []string{alice.ID, bob.ID})
	require.NoError(t, err)

	rooms, err := c.GetRooms(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].Room.ID)
	assert.Equal(t, "bob", rooms[0].DisplayName(alice.ID))

	all, err := c.GetRooms(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.SaveMessage(ctx, &models.Message{RoomID: room.ID, UserID: bob.ID, Content: "hi", ClientID: "c-9"}))
	msgs, err := c.GetConversations(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "c-9", msgs[0].ClientID)
	assert.Equal(t, models.OriginRemote, msgs[0].Origin)

	_, err = c.GetConversations(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestClientHonoursContext(t *testing.T) {
	c, _ := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetAllUsers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := api.New("http://"+addr, 200*time.Millisecond)
	_, err = c.GetAllUsers(context.Background())
	require.Error(t, err)
	var statusErr *api.StatusError
	assert.False(t, errors.As(err, &statusErr))
}
