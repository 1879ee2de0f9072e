package client_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwikchat/internal/api"
	"qwikchat/internal/app"
	"qwikchat/internal/client"
	"qwikchat/internal/models"
	"qwikchat/internal/services"
)

type relayFixture struct {
	base  string
	store *services.MemoryStore
	alice *models.User
	bob   *models.User
	room  *models.Room
}

func startRelay(t *testing.T) relayFixture {
	t.Helper()
	ctx := context.Background()

	store := services.NewMemoryStore()
	alice, err := store.CreateUser(ctx, "alice", "100")
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, "bob", "200")
	require.NoError(t, err)
	room, err := store.CreateRoom(ctx, "direct", []string{alice.ID, bob.ID})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := app.New(store, 0)
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.ShutdownWithTimeout(2 * time.Second) })

	return relayFixture{
		base:  "127.0.0.1:" + portOf(ln),
		store: store,
		alice: alice,
		bob:   bob,
		room:  room,
	}
}

func portOf(ln net.Listener) string {
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	return port
}

func newManager(f relayFixture) *client.ConnectionManager {
	return client.NewConnectionManager("ws://"+f.base+"/ws",
		client.WithConnectionLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func nextEvent(t *testing.T, m *client.ConnectionManager) models.ChatEvent {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event from relay")
		return models.ChatEvent{}
	}
}

func TestConnectionManagerAgainstRelay(t *testing.T) {
	f := startRelay(t)
	ctx := context.Background()

	bobConn := newManager(f)
	require.NoError(t, bobConn.Open(ctx, f.bob.ID))
	t.Cleanup(func() { _ = bobConn.Close() })
	require.NoError(t, bobConn.JoinRoom(f.room.ID))
	assert.Equal(t, client.ConnectionState{Status: client.StatusOpen, JoinedRoomID: f.room.ID}, bobConn.State())

	// Bob's own echo proves the relay has processed his join.
	require.NoError(t, bobConn.Send(f.room.ID, f.bob.ID, "ready", ""))
	assert.Equal(t, "ready", nextEvent(t, bobConn).Text())

	aliceConn := newManager(f)
	require.NoError(t, aliceConn.Open(ctx, f.alice.ID))
	t.Cleanup(func() { _ = aliceConn.Close() })
	require.NoError(t, aliceConn.Open(ctx, f.alice.ID))
	require.NoError(t, aliceConn.JoinRoom(f.room.ID))
	require.NoError(t, aliceConn.Send(f.room.ID, f.alice.ID, "hello", "c-1"))

	echo := nextEvent(t, aliceConn)
	assert.Equal(t, "hello", echo.Text())
	assert.Equal(t, "c-1", echo.ClientID)
	assert.Equal(t, f.alice.ID, echo.UserID)
	assert.NotZero(t, echo.ID)

	got := nextEvent(t, bobConn)
	assert.Equal(t, echo, got)

	history, err := f.store.GetRecentMessages(ctx, f.room.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[1].Content)
	assert.Equal(t, "c-1", history[1].ClientID)

	require.NoError(t, aliceConn.Close())
	assert.Equal(t, client.StatusClosed, aliceConn.State().Status)
	assert.ErrorIs(t, aliceConn.Send(f.room.ID, f.alice.ID, "late", ""), client.ErrNotConnected)
}

func TestSessionAgainstRelay(t *testing.T) {
	f := startRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, f.store.SaveMessage(ctx, &models.Message{RoomID: f.room.ID, UserID: f.bob.ID, Content: "hi"}))

	httpClient := api.New("http://"+f.base, time.Second)
	rooms, err := httpClient.GetRooms(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	conn := newManager(f)
	s := client.NewSession(conn, httpClient, client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.SelectRoom(ctx, rooms[0], *f.alice))
	require.Eventually(t, func() bool { return len(s.Timeline()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hi", s.Timeline()[0].Content)

	other, ok := s.Counterpart()
	require.True(t, ok)
	assert.Equal(t, "bob", other.Username)

	require.Eventually(t, func() bool {
		return conn.State() == client.ConnectionState{Status: client.StatusOpen, JoinedRoomID: f.room.ID}
	}, 3*time.Second, 10*time.Millisecond)

	_, err = s.SendMessage(ctx, "hello")
	require.NoError(t, err)
	require.Len(t, s.Timeline(), 2)

	require.Eventually(t, func() bool {
		got := s.Timeline()
		return len(got) == 2 && got[1].Origin == models.OriginConfirmed
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", s.Timeline()[1].Content)
}
