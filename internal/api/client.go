// Package api is the HTTP client for the users, rooms and conversations
// endpoints of the chat server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"qwikchat/internal/models"
)

const defaultTimeout = 10 * time.Second

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == fasthttp.StatusNotFound
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client for the API at baseURL. timeout bounds each request
// when the caller's context has no earlier deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "qwikchat",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// GetRooms lists rooms with their participants. An empty userID lists all rooms.
func (c *Client) GetRooms(ctx context.Context, userID string) ([]models.RoomMembership, error) {
	path := "/rooms"
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}
	var rooms []models.RoomMembership
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, fasthttp.MethodGet, "/users/phone/"+url.PathEscape(phone), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, username, phone string) (*models.User, error) {
	var user models.User
	req := models.CreateUserRequest{Username: username, Phone: phone}
	if err := c.do(ctx, fasthttp.MethodPost, "/users/create", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, fasthttp.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateRoom(ctx context.Context, name string, participantIDs []string) (*models.Room, error) {
	var room models.Room
	req := models.CreateRoomRequest{Name: name, ParticipantIDs: participantIDs}
	if err := c.do(ctx, fasthttp.MethodPost, "/rooms/create", req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetConversations returns a room's history, oldest first.
func (c *Client) GetConversations(ctx context.Context, roomID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, fasthttp.MethodGet, "/conversations/"+url.PathEscape(roomID), nil, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Origin = models.OriginRemote
	}
	return msgs, nil
}

// Login returns the user registered with phone, creating it with username
// when the phone is unknown and a username is given.
func (c *Client) Login(ctx context.Context, phone, username string) (*models.User, error) {
	user, err := c.GetUserByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) || username == "" {
		return nil, err
	}
	return c.CreateUser(ctx, username, phone)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &e)
		return &StatusError{Method: method, Path: path, Code: code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
