package sync

import (
	"testing"
	"time"

	"github.com/merchbot/console/internal/api"
)

func TestStoreReplaceAllPreservesOrder(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]api.Conversation{
		{PeerID: "P3"},
		{PeerID: "P1"},
		{PeerID: "P2"},
	})

	list := store.List()
	if len(list) != 3 {
		t.Fatalf("length = %d, want 3", len(list))
	}
	want := []string{"P3", "P1", "P2"}
	for i, id := range want {
		if list[i].PeerID != id {
			t.Errorf("list[%d] = %q, want %q", i, list[i].PeerID, id)
		}
	}
}

func TestStoreReplaceAllDropsDuplicates(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]api.Conversation{
		{PeerID: "P1", UnreadCount: 1},
		{PeerID: "P1", UnreadCount: 9},
	})

	if store.Len() != 1 {
		t.Fatalf("length = %d, want 1", store.Len())
	}
	conv, _ := store.Get("P1")
	if conv.UnreadCount != 1 {
		t.Errorf("first occurrence should win, got unread %d", conv.UnreadCount)
	}
}

func TestStorePatch(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]api.Conversation{
		{PeerID: "P1", LastMessagePreview: "old", UnreadCount: 2},
	})

	preview := "new preview"
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.Patch("P1", ConversationPatch{
		LastMessagePreview: &preview,
		LastMessageAt:      &at,
	})

	conv, _ := store.Get("P1")
	if conv.LastMessagePreview != "new preview" {
		t.Errorf("LastMessagePreview = %q", conv.LastMessagePreview)
	}
	if !conv.LastMessageAt.Equal(at) {
		t.Errorf("LastMessageAt = %v", conv.LastMessageAt)
	}
	if conv.UnreadCount != 2 {
		t.Errorf("untouched field changed: unread = %d", conv.UnreadCount)
	}
}

func TestStorePatchUnknownPeerIsNoop(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]api.Conversation{{PeerID: "P1"}})

	zero := 0
	store.Patch("ghost", ConversationPatch{UnreadCount: &zero})

	if store.Len() != 1 {
		t.Errorf("patching an unknown peer must not create an entry")
	}
	if _, ok := store.Get("ghost"); ok {
		t.Error("ghost entry appeared")
	}
}

func TestStorePatchClampsNegativeUnread(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]api.Conversation{{PeerID: "P1", UnreadCount: 1}})

	negative := -5
	store.Patch("P1", ConversationPatch{UnreadCount: &negative})

	conv, _ := store.Get("P1")
	if conv.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", conv.UnreadCount)
	}
}

func TestStoreRemove(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]api.Conversation{
		{PeerID: "P1"},
		{PeerID: "P2"},
		{PeerID: "P3"},
	})

	store.Remove("P2")
	store.Remove("unknown") // no-op

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("length = %d, want 2", len(list))
	}
	if list[0].PeerID != "P1" || list[1].PeerID != "P3" {
		t.Errorf("order disturbed: %q, %q", list[0].PeerID, list[1].PeerID)
	}
}
