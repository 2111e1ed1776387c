package sync

import (
	gosync "sync"
	"time"

	"github.com/merchbot/console/internal/api"
)

// ConversationPatch is an in-place partial update of a conversation summary.
// Nil fields are left untouched.
type ConversationPatch struct {
	LastMessagePreview *string
	LastMessageAt      *time.Time
	UnreadCount        *int
}

// Store is the in-memory table of conversation summaries. The list order of
// the last ReplaceAll is preserved; patches and removals never reorder.
type Store struct {
	mu     gosync.RWMutex
	order  []string
	byPeer map[string]api.Conversation
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		byPeer: make(map[string]api.Conversation),
	}
}

// ReplaceAll swaps the table wholesale with a fresh authoritative list.
func (s *Store) ReplaceAll(conversations []api.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = make([]string, 0, len(conversations))
	s.byPeer = make(map[string]api.Conversation, len(conversations))
	for _, conv := range conversations {
		if _, ok := s.byPeer[conv.PeerID]; ok {
			continue
		}
		s.order = append(s.order, conv.PeerID)
		s.byPeer[conv.PeerID] = conv
	}
}

// Patch applies an in-place partial update. Patching an unknown peer is a
// no-op, not an error: the conversation may have been removed by a concurrent
// full refresh.
func (s *Store) Patch(peerID string, patch ConversationPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byPeer[peerID]
	if !ok {
		return
	}

	if patch.LastMessagePreview != nil {
		conv.LastMessagePreview = *patch.LastMessagePreview
	}
	if patch.LastMessageAt != nil {
		conv.LastMessageAt = *patch.LastMessageAt
	}
	if patch.UnreadCount != nil {
		conv.UnreadCount = clampNonNegative(*patch.UnreadCount)
	}
	s.byPeer[peerID] = conv
}

// Remove deletes a conversation. Removing an unknown peer is a no-op.
func (s *Store) Remove(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPeer[peerID]; !ok {
		return
	}
	delete(s.byPeer, peerID)
	for i, id := range s.order {
		if id == peerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns a conversation summary by peer id.
func (s *Store) Get(peerID string) (api.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.byPeer[peerID]
	return conv, ok
}

// List returns a snapshot of all conversations in list order.
func (s *Store) List() []api.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byPeer[id])
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPeer)
}
