package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"qwikchat/internal/api"
	"qwikchat/internal/client"
	"qwikchat/internal/config"
	"qwikchat/internal/models"

	"github.com/fasthttp/websocket"
	gfshutdown "github.com/gelmium/graceful-shutdown"
)

const clientHelp = `commands:
  /rooms          list rooms
  /join <n>       open room n from /rooms
  /new <phone>    start a direct chat with the user registered under phone
  /quit           exit
anything else is sent to the open room`

// RunClient runs the terminal client against the configured server.
func RunClient() {
	var cfg config.Client
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	channelURL, err := cfg.ChannelURL()
	if err != nil {
		log.Fatalf("Invalid base url: %v", err)
	}

	in := bufio.NewScanner(os.Stdin)
	apiClient := api.New(cfg.HTTPURL(), cfg.RequestTimeout)
	user, err := login(context.Background(), apiClient, cfg, in, os.Stdout)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	conn := client.NewConnectionManager(channelURL,
		client.WithConnectionLogger(logger),
		client.WithDialer(&websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}),
	)
	session := client.NewSession(conn, apiClient, client.WithLogger(logger))
	rooms := client.NewRoomDirectory(apiClient, user.ID)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = session.Run(ctx) }()
	go rooms.Watch(ctx, session.Touched())

	t := &terminal{
		out:     os.Stdout,
		api:     apiClient,
		session: session,
		rooms:   rooms,
		user:    *user,
	}
	go t.render(ctx)

	if err := rooms.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "could not load rooms: %v\n", err)
	}
	fmt.Fprintf(os.Stdout, "logged in as %s\n%s\n", user.Username, clientHelp)
	t.listRooms()

	quit := make(chan struct{})
	go func() {
		t.readCommands(ctx, in)
		close(quit)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"session": func(ctx context.Context) error {
				cancel()
				return session.Close()
			},
		},
	)

	select {
	case <-quit:
		cancel()
		_ = session.Close()
		os.Exit(0)
	case code := <-wait:
		os.Exit(code)
	}
}

func login(ctx context.Context, c *api.Client, cfg config.Client, in *bufio.Scanner, out io.Writer) (*models.User, error) {
	phone := cfg.Phone
	if phone == "" {
		phone = prompt(in, out, "phone: ")
	}
	user, err := c.GetUserByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return nil, err
	}
	username := cfg.Username
	if username == "" {
		username = prompt(in, out, "new account, username: ")
	}
	return c.Login(ctx, phone, username)
}

func prompt(in *bufio.Scanner, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

// terminal is the line-oriented presentation layer over a Session.
type terminal struct {
	out     io.Writer
	api     *api.Client
	session *client.Session
	rooms   *client.RoomDirectory
	user    models.User

	shownRoom string
	shown     []string
}

func (t *terminal) readCommands(ctx context.Context, in *bufio.Scanner) {
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit":
			return
		case "/rooms":
			if err := t.rooms.Refresh(ctx); err != nil {
				fmt.Fprintf(t.out, "could not load rooms: %v\n", err)
			}
			t.listRooms()
		case "/join":
			t.join(ctx, fields[1:])
		case "/new":
			t.newRoom(ctx, fields[1:])
		case "/help":
			fmt.Fprintln(t.out, clientHelp)
		default:
			if _, err := t.session.SendMessage(ctx, line); err != nil {
				fmt.Fprintf(t.out, "! %v\n", err)
			}
		}
	}
}

func (t *terminal) listRooms() {
	rooms := t.rooms.Rooms()
	if len(rooms) == 0 {
		fmt.Fprintln(t.out, "no conversations yet, start one with /new <phone>")
		return
	}
	for i, r := range rooms {
		preview := r.Room.LastMessage
		if preview == "" {
			preview = "No messages yet"
		}
		fmt.Fprintf(t.out, "%2d. %s  %s\n", i+1, t.rooms.DisplayName(r), preview)
	}
}

func (t *terminal) join(ctx context.Context, args []string) {
	rooms := t.rooms.Rooms()
	if len(args) != 1 {
		fmt.Fprintln(t.out, "usage: /join <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(rooms) {
		fmt.Fprintf(t.out, "no room %q\n", args[0])
		return
	}
	if err := t.session.SelectRoom(ctx, rooms[n-1], t.user); err != nil {
		fmt.Fprintf(t.out, "! %v\n", err)
	}
}

func (t *terminal) newRoom(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(t.out, "usage: /new <phone>")
		return
	}
	other, err := t.api.GetUserByPhone(ctx, args[0])
	if err != nil {
		fmt.Fprintf(t.out, "! %v\n", err)
		return
	}
	room, err := t.api.CreateRoom(ctx, other.Username, []string{t.user.ID, other.ID})
	if err != nil {
		fmt.Fprintf(t.out, "! %v\n", err)
		return
	}
	if err := t.rooms.Refresh(ctx); err != nil {
		fmt.Fprintf(t.out, "! %v\n", err)
		return
	}
	if m, ok := t.rooms.Find(room.ID); ok {
		if err := t.session.SelectRoom(ctx, m, t.user); err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
		}
	}
}

func (t *terminal) render(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-t.session.Errors():
			fmt.Fprintf(t.out, "! %v\n", err)
		case u := <-t.session.Updates():
			t.show(u)
		}
	}
}

// show prints the new tail of the timeline, or all of it after a room
// switch or a snapshot that changed what was already printed.
func (t *terminal) show(u client.TimelineUpdate) {
	if u.Room.Room.ID != t.shownRoom || !t.extends(u.Messages) {
		t.shownRoom = u.Room.Room.ID
		t.shown = t.shown[:0]
		header := u.Room.DisplayName(t.user.ID)
		if other, ok := u.Room.Counterpart(t.user.ID); ok && other.Phone != "" {
			header += " (" + other.Phone + ")"
		}
		fmt.Fprintf(t.out, "== %s ==\n", header)
	}
	for _, m := range u.Messages[len(t.shown):] {
		who := "them"
		if m.UserID == t.user.ID {
			who = "me"
		}
		fmt.Fprintf(t.out, "[%s] %s: %s\n", m.CreatedAt.Format("15:04"), who, m.Content)
		t.shown = append(t.shown, entryKey(m))
	}
}

func (t *terminal) extends(msgs []models.Message) bool {
	if len(msgs) < len(t.shown) {
		return false
	}
	for i, key := range t.shown {
		if entryKey(msgs[i]) != key {
			return false
		}
	}
	return true
}

// entryKey survives the promotion of a local entry, which changes its ID.
func entryKey(m models.Message) string {
	if m.ClientID != "" {
		return m.ClientID
	}
	return m.ID
}
