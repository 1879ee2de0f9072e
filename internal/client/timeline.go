package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"qwikchat/internal/models"
)

// HistoryFetcher returns a room's message history, oldest first.
type HistoryFetcher interface {
	GetConversations(ctx context.Context, roomID string) ([]models.Message, error)
}

// Change describes what AppendRemote did to the timeline.
type Change int

const (
	ChangeNone Change = iota
	ChangeAppended
	// ChangeConfirmed means a pending local entry was promoted in place.
	ChangeConfirmed
)

// Reconciler merges a room's history snapshot, live events and optimistic
// local entries into one ordered timeline. It is not safe for concurrent
// use; a Session drives it from its loop.
type Reconciler struct {
	fetcher HistoryFetcher
	now     func() time.Time

	roomID  string
	entries []models.Message
	// base is the length of the snapshot prefix; entries after it arrived live.
	base    int
	ids     map[string]struct{}
	pending map[string]int
}

// NewReconciler creates a reconciler that loads snapshots from fetcher.
func NewReconciler(fetcher HistoryFetcher) *Reconciler {
	r := &Reconciler{fetcher: fetcher, now: time.Now}
	r.Reset("")
	return r
}

// Reset empties the timeline and binds it to roomID.
func (r *Reconciler) Reset(roomID string) {
	r.roomID = roomID
	r.entries = nil
	r.base = 0
	r.ids = make(map[string]struct{})
	r.pending = make(map[string]int)
}

// RoomID is the room the timeline is bound to.
func (r *Reconciler) RoomID() string { return r.roomID }

// Len is the number of timeline entries.
func (r *Reconciler) Len() int { return len(r.entries) }

// Messages returns a copy of the timeline in order.
func (r *Reconciler) Messages() []models.Message {
	out := make([]models.Message, len(r.entries))
	copy(out, r.entries)
	return out
}

// Fetch retrieves the snapshot for roomID without touching the timeline.
func (r *Reconciler) Fetch(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs, err := r.fetcher.GetConversations(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room %s: %v", ErrFetch, roomID, err)
	}
	return msgs, nil
}

// LoadSnapshot fetches roomID's history and applies it.
func (r *Reconciler) LoadSnapshot(ctx context.Context, roomID string) error {
	msgs, err := r.Fetch(ctx, roomID)
	if err != nil {
		return err
	}
	r.ApplySnapshot(roomID, msgs)
	return nil
}

// ApplySnapshot replaces the timeline with snapshot, in the given order.
// Entries that arrived live since the previous snapshot (or Reset) are kept
// after it unless the snapshot already holds them. A snapshot for a room
// other than the bound one is discarded and false is returned.
func (r *Reconciler) ApplySnapshot(roomID string, snapshot []models.Message) bool {
	if roomID != r.roomID {
		return false
	}

	live := r.entries[r.base:]
	entries := make([]models.Message, 0, len(snapshot)+len(live))
	ids := make(map[string]struct{}, len(snapshot)+len(live))
	clientIDs := make(map[string]struct{})
	for _, m := range snapshot {
		if m.RoomID == "" {
			m.RoomID = roomID
		}
		m.Origin = models.OriginRemote
		if m.ClientID != "" {
			if _, ok := r.pending[m.ClientID]; ok {
				m.Origin = models.OriginConfirmed
			}
			clientIDs[m.ClientID] = struct{}{}
		}
		if m.ID != "" {
			ids[m.ID] = struct{}{}
		}
		entries = append(entries, m)
	}

	pending := make(map[string]int)
	for _, m := range live {
		if _, dup := ids[m.ID]; m.ID != "" && dup {
			continue
		}
		if _, dup := clientIDs[m.ClientID]; m.ClientID != "" && dup {
			continue
		}
		if m.Origin == models.OriginLocalPending {
			pending[m.ClientID] = len(entries)
		}
		if m.ID != "" {
			ids[m.ID] = struct{}{}
		}
		entries = append(entries, m)
	}

	r.entries = entries
	r.base = len(snapshot)
	r.ids = ids
	r.pending = pending
	return true
}

// AppendRemote applies an inbound TEXT event for the bound room. An event
// whose client id matches a pending local entry confirms that entry instead
// of appending a duplicate.
func (r *Reconciler) AppendRemote(ev models.ChatEvent) (models.Message, Change) {
	if ev.ChatType != models.ChatText || ev.RoomID != r.roomID {
		return models.Message{}, ChangeNone
	}

	var id string
	if ev.ID != 0 {
		id = strconv.FormatInt(ev.ID, 10)
	}

	if ev.ClientID != "" {
		if i, ok := r.pending[ev.ClientID]; ok {
			delete(r.pending, ev.ClientID)
			m := &r.entries[i]
			m.Origin = models.OriginConfirmed
			if id != "" {
				delete(r.ids, m.ID)
				m.ID = id
				r.ids[id] = struct{}{}
			}
			return *m, ChangeConfirmed
		}
	}

	if id != "" {
		if _, dup := r.ids[id]; dup {
			return models.Message{}, ChangeNone
		}
	} else {
		id = uuid.NewString()
	}

	msg := models.Message{
		ID:        id,
		RoomID:    ev.RoomID,
		UserID:    ev.UserID,
		Content:   ev.Text(),
		CreatedAt: r.now(),
		ClientID:  ev.ClientID,
		Origin:    models.OriginRemote,
	}
	r.ids[id] = struct{}{}
	r.entries = append(r.entries, msg)
	return msg, ChangeAppended
}

// AppendOptimistic appends the local user's message before it is sent.
func (r *Reconciler) AppendOptimistic(content, userID string) models.Message {
	clientID := uuid.NewString()
	msg := models.Message{
		ID:        clientID,
		RoomID:    r.roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: r.now(),
		ClientID:  clientID,
		Origin:    models.OriginLocalPending,
	}
	r.pending[clientID] = len(r.entries)
	r.ids[msg.ID] = struct{}{}
	r.entries = append(r.entries, msg)
	return msg
}
