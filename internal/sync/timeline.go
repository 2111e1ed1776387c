package sync

import (
	gosync "sync"
	"time"

	"github.com/merchbot/console/internal/api"
)

type idKind int

const (
	idProvisional idKind = iota
	idConfirmed
)

// MessageID is a tagged message identity: either a client-generated
// provisional id awaiting server confirmation, or a server-assigned id.
// Resolution swaps the tag, not a string prefix.
type MessageID struct {
	kind  idKind
	value string
}

// ProvisionalID tags a client-generated id.
func ProvisionalID(localID string) MessageID {
	return MessageID{kind: idProvisional, value: localID}
}

// ConfirmedID tags a server-assigned id.
func ConfirmedID(serverID string) MessageID {
	return MessageID{kind: idConfirmed, value: serverID}
}

// IsProvisional reports whether the id still awaits server confirmation.
func (id MessageID) IsProvisional() bool {
	return id.kind == idProvisional
}

// Value returns the raw id string.
func (id MessageID) Value() string {
	return id.value
}

func (id MessageID) String() string {
	if id.kind == idProvisional {
		return "provisional:" + id.value
	}
	return id.value
}

// Entry is one message in the timeline.
type Entry struct {
	ID         MessageID
	PeerID     string
	Direction  api.Direction
	Text       string
	SentAt     time.Time
	ReadByPeer bool
}

// Timeline is the in-memory ordered message list for the selected
// conversation. Ordering is arrival/append order; a full load replaces the
// slice and is authoritative for order. Provisional entries are always at the
// tail because the only mutation that adds one is an append.
type Timeline struct {
	mu      gosync.RWMutex
	peerID  string
	entries []Entry
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Load replaces the timeline with an authoritative history fetch. Lingering
// provisional entries from a previous selection are discarded with the rest.
func (t *Timeline) Load(peerID string, messages []api.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.peerID = peerID
	t.entries = make([]Entry, 0, len(messages))
	for _, msg := range messages {
		t.entries = append(t.entries, Entry{
			ID:         ConfirmedID(msg.ID),
			PeerID:     msg.PeerID,
			Direction:  msg.Direction,
			Text:       msg.Text,
			SentAt:     msg.SentAt,
			ReadByPeer: msg.ReadByPeer,
		})
	}
}

// AppendProvisional adds an optimistic outgoing entry at the tail.
func (t *Timeline) AppendProvisional(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
}

// ResolveProvisional replaces a provisional id with the confirmed server id
// in place, keeping the entry's position and content. Returns false when the
// provisional entry is gone (e.g. displaced by a concurrent full load).
func (t *Timeline) ResolveProvisional(localID, serverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].ID.IsProvisional() && t.entries[i].ID.Value() == localID {
			t.entries[i].ID = ConfirmedID(serverID)
			return true
		}
	}
	return false
}

// DropProvisional removes a failed optimistic entry and returns it so the
// caller can restore the typed text.
func (t *Timeline) DropProvisional(localID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].ID.IsProvisional() && t.entries[i].ID.Value() == localID {
			dropped := t.entries[i]
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return dropped, true
		}
	}
	return Entry{}, false
}

// Clear empties the timeline and forgets the peer.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerID = ""
	t.entries = nil
}

// PeerID returns the conversation the timeline currently holds.
func (t *Timeline) PeerID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peerID
}

// Entries returns a snapshot of the timeline.
func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
