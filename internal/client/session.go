package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"qwikchat/internal/models"
)

// TimelineUpdate is the active room's timeline after a mutation.
type TimelineUpdate struct {
	Room     models.RoomMembership
	Messages []models.Message
}

// RoomTouched tells the room list that a room's timeline grew.
type RoomTouched struct {
	RoomID      string
	LastMessage string
}

type sessionView struct {
	room     models.RoomMembership
	userID   string
	active   bool
	messages []models.Message
}

// Session binds the selected room to a Channel and a Reconciler. All state
// is owned by the Run loop; the exported methods are commands executed on it,
// so Run must be running for them to complete.
type Session struct {
	channel  Channel
	timeline *Reconciler
	logger   *slog.Logger

	cmds    chan func()
	done    chan struct{}
	updates chan TimelineUpdate
	touched chan RoomTouched
	errs    chan error
	view    atomic.Pointer[sessionView]

	// Loop-owned.
	ctx    context.Context
	room   models.RoomMembership
	user   models.User
	active bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session over channel that loads history from fetcher.
func NewSession(channel Channel, fetcher HistoryFetcher, opts ...SessionOption) *Session {
	s := &Session{
		channel:  channel,
		timeline: NewReconciler(fetcher),
		logger:   slog.Default(),
		cmds:     make(chan func()),
		done:     make(chan struct{}),
		updates:  make(chan TimelineUpdate, 1),
		touched:  make(chan RoomTouched, 16),
		errs:     make(chan error, 8),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view.Store(&sessionView{})
	return s
}

// Run processes commands, fetch and join completions and inbound events
// until ctx is done. It must be called once.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)

	events := s.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.cmds:
			fn()
		case ev := <-events:
			s.handleEvent(ev)
		}
	}
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Updates delivers the latest timeline after each mutation. Only the most
// recent undelivered update is kept.
func (s *Session) Updates() <-chan TimelineUpdate { return s.updates }

// Touched delivers a notification whenever the active room is appended to.
func (s *Session) Touched() <-chan RoomTouched { return s.touched }

// Errors delivers non-fatal fetch and transport errors for the UI to show.
func (s *Session) Errors() <-chan error { return s.errs }

// SelectRoom makes room the active room for user. The previous binding is
// replaced; the shared connection stays open and only its membership moves.
func (s *Session) SelectRoom(ctx context.Context, room models.RoomMembership, user models.User) error {
	if room.Room.ID == "" {
		return fmt.Errorf("select room: missing room id")
	}
	return s.do(ctx, func() { s.bind(room, user) })
}

// SendMessage appends content to the active timeline and sends it. The
// entry stays visible when the send fails.
func (s *Session) SendMessage(ctx context.Context, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	var (
		msg    models.Message
		userID string
		active bool
	)
	err := s.do(ctx, func() {
		if !s.active {
			return
		}
		active = true
		userID = s.user.ID
		msg = s.timeline.AppendOptimistic(content, userID)
		s.publish()
		s.touch(msg)
	})
	if err != nil {
		return models.Message{}, err
	}
	if !active {
		return models.Message{}, ErrNoActiveRoom
	}

	if err := s.channel.Send(msg.RoomID, userID, content, msg.ClientID); err != nil {
		s.logger.Warn("send failed, keeping local entry", "room_id", msg.RoomID, "error", err)
		return msg, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// Timeline returns the active room's timeline as of the last mutation.
func (s *Session) Timeline() []models.Message {
	v := s.view.Load()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// ActiveRoom returns the selected room, if any.
func (s *Session) ActiveRoom() (models.RoomMembership, bool) {
	v := s.view.Load()
	return v.room, v.active
}

// Counterpart returns the other participant of a direct active room.
func (s *Session) Counterpart() (models.User, bool) {
	v := s.view.Load()
	if !v.active {
		return models.User{}, false
	}
	return v.room.Counterpart(v.userID)
}

// Close tears down the push channel.
func (s *Session) Close() error {
	return s.channel.Close()
}

func (s *Session) bind(room models.RoomMembership, user models.User) {
	roomID := room.Room.ID
	s.room, s.user, s.active = room, user, true
	s.timeline.Reset(roomID)
	s.publish()

	go s.fetch(s.ctx, roomID)
	go s.connect(s.ctx, user.ID, roomID)
}

func (s *Session) fetch(ctx context.Context, roomID string) {
	msgs, err := s.timeline.Fetch(ctx, roomID)
	s.post(func() {
		if !s.isCurrent(roomID) {
			s.logger.Debug("discarding stale snapshot", "room_id", roomID)
			return
		}
		if err != nil {
			s.logger.Warn("snapshot fetch failed", "room_id", roomID, "error", err)
			s.report(err)
			return
		}
		if s.timeline.ApplySnapshot(roomID, msgs) {
			s.publish()
		}
	})
}

func (s *Session) connect(ctx context.Context, userID, roomID string) {
	err := s.channel.Open(ctx, userID)
	if err == nil {
		err = s.channel.JoinRoom(roomID)
	}
	s.post(func() { s.joined(roomID, err) })
}

// joined runs when a connect+join attempt for roomID finishes. A join that
// completes after the selection moved on is followed by a join of the
// current room, so membership ends on the selected room.
func (s *Session) joined(roomID string, err error) {
	if err != nil {
		s.logger.Warn("join failed", "room_id", roomID, "error", err)
		if s.isCurrent(roomID) {
			s.report(err)
		}
		return
	}
	if !s.active || s.isCurrent(roomID) {
		return
	}
	current := s.room.Room.ID
	s.logger.Debug("re-joining selected room after stale join", "stale", roomID, "room_id", current)
	if err := s.channel.JoinRoom(current); err != nil {
		s.logger.Warn("join failed", "room_id", current, "error", err)
		s.report(err)
	}
}

func (s *Session) handleEvent(ev models.ChatEvent) {
	if !s.isCurrent(ev.RoomID) {
		s.logger.Debug("ignoring event for unselected room", "room_id", ev.RoomID)
		return
	}
	msg, change := s.timeline.AppendRemote(ev)
	switch change {
	case ChangeAppended:
		s.publish()
		s.touch(msg)
	case ChangeConfirmed:
		s.publish()
	}
}

func (s *Session) isCurrent(roomID string) bool {
	return s.active && s.room.Room.ID == roomID
}

func (s *Session) publish() {
	v := &sessionView{
		room:     s.room,
		userID:   s.user.ID,
		active:   s.active,
		messages: s.timeline.Messages(),
	}
	s.view.Store(v)

	// Latest wins: the loop is the only sender, so after draining there is room.
	select {
	case <-s.updates:
	default:
	}
	s.updates <- TimelineUpdate{Room: v.room, Messages: s.timeline.Messages()}
}

func (s *Session) touch(msg models.Message) {
	select {
	case s.touched <- RoomTouched{RoomID: msg.RoomID, LastMessage: msg.Content}:
	default:
		s.logger.Debug("room touched notification dropped", "room_id", msg.RoomID)
	}
}

func (s *Session) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands fn to the loop from a background goroutine.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}
