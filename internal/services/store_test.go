package services

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwikchat/internal/db"
	"qwikchat/internal/models"
)

// testStores returns the in-memory store and, when TEST_DATABASE_URL is
// set, a migrated PostgreSQL store.
func testStores(t *testing.T) map[string]Store {
	stores := map[string]Store{"memory": NewMemoryStore()}

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		return stores
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	stores["postgres"] = NewPostgresStore(pool)
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			phone := func() string { return "+1" + uuid.NewString()[:8] }

			a, err := store.CreateUser(ctx, "alice", phone())
			require.NoError(t, err)
			b, err := store.CreateUser(ctx, "bob", phone())
			require.NoError(t, err)

			_, err = store.CreateUser(ctx, "copy", a.Phone)
			assert.ErrorIs(t, err, ErrUserExists)

			got, err := store.GetUserByPhone(ctx, b.Phone)
			require.NoError(t, err)
			assert.Equal(t, b.ID, got.ID)
			_, err = store.GetUserByPhone(ctx, phone())
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.CreateRoom(ctx, "broken", []string{a.ID, uuid.NewString()})
			assert.ErrorIs(t, err, ErrNotFound)

			room, err := store.CreateRoom(ctx, "direct", []string{a.ID, b.ID})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{a.ID, b.ID}, room.Participants())

			direct, err := store.FindDirectRoom(ctx, b.ID, a.ID)
			require.NoError(t, err)
			assert.Equal(t, room.ID, direct.ID)
			_, err = store.GetRoom(ctx, uuid.NewString())
			assert.ErrorIs(t, err, ErrNotFound)

			for i, body := range []string{"one", "two", "three"} {
				msg := &models.Message{RoomID: room.ID, UserID: a.ID, Content: body}
				if i == 2 {
					msg.ClientID = "c-3"
				}
				require.NoError(t, store.SaveMessage(ctx, msg))
				assert.NotEmpty(t, msg.ID)
				assert.False(t, msg.CreatedAt.IsZero())
			}
			err = store.SaveMessage(ctx, &models.Message{RoomID: uuid.NewString(), UserID: a.ID, Content: "x"})
			assert.ErrorIs(t, err, ErrNotFound)

			recent, err := store.GetRecentMessages(ctx, room.ID, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "two", recent[0].Content)
			assert.Equal(t, "three", recent[1].Content)
			assert.Equal(t, "c-3", recent[1].ClientID)

			rooms, err := store.ListRooms(ctx, a.ID)
			require.NoError(t, err)
			var mine *models.RoomMembership
			for i := range rooms {
				if rooms[i].Room.ID == room.ID {
					mine = &rooms[i]
				}
			}
			require.NotNil(t, mine)
			assert.Equal(t, "three", mine.Room.LastMessage)
			assert.Len(t, mine.Users, 2)
		})
	}
}
