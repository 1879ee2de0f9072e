package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwikchat/internal/models"
	"qwikchat/internal/services"
)

func call(t *testing.T, srv *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestRelayHTTP(t *testing.T) {
	srv := New(services.NewMemoryStore(), 0)

	code, body := call(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	code, body = call(t, srv, http.MethodPost, "/users/create", `{"username":"alice","phone":"100"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	var alice models.User
	require.NoError(t, json.Unmarshal(body, &alice))

	code, _ = call(t, srv, http.MethodPost, "/users/create", `{"username":"again","phone":"100"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = call(t, srv, http.MethodPost, "/users/create", `{"username":"","phone":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, srv, http.MethodPost, "/users/create", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, srv, http.MethodPost, "/users/create", `{"username":"bob","phone":"200"}`)
	require.Equal(t, http.StatusCreated, code)
	var bob models.User
	require.NoError(t, json.Unmarshal(body, &bob))

	code, body = call(t, srv, http.MethodGet, "/users/phone/100", "")
	require.Equal(t, http.StatusOK, code)
	var found models.User
	require.NoError(t, json.Unmarshal(body, &found))
	assert.Equal(t, alice.ID, found.ID)

	code, body = call(t, srv, http.MethodGet, "/users/phone/999", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))

	code, body = call(t, srv, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, code)
	var users []models.User
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Len(t, users, 2)

	code, body = call(t, srv, http.MethodPost, "/rooms/create",
		`{"name":"","participant_ids":["`+alice.ID+`","`+bob.ID+`"]}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	var room models.Room
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "New Chat", room.Name)

	code, _ = call(t, srv, http.MethodPost, "/rooms/create", `{"participant_ids":["`+alice.ID+`"]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, srv, http.MethodGet, "/rooms?user_id="+bob.ID, "")
	require.Equal(t, http.StatusOK, code)
	var rooms []models.RoomMembership
	require.NoError(t, json.Unmarshal(body, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "alice", rooms[0].DisplayName(bob.ID))

	code, body = call(t, srv, http.MethodGet, "/conversations/"+room.ID, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))

	code, _ = call(t, srv, http.MethodGet, "/conversations/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	srv := New(services.NewMemoryStore(), 0)
	code, _ := call(t, srv, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}
