package archive

import (
	"context"
	"testing"
	"time"

	"github.com/merchbot/console/internal/api"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRecordAndFetchMessages(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	sentAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	err := a.RecordMessages(ctx, "P1", []api.Message{
		{ID: "m-1", PeerID: "P1", Direction: api.DirectionIncoming, Text: "hi", SentAt: sentAt},
		{ID: "m-2", PeerID: "P1", Direction: api.DirectionOutgoing, Text: "hello", SentAt: sentAt.Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("RecordMessages: %v", err)
	}

	messages, err := a.MessagesFor(ctx, "P1", 0)
	if err != nil {
		t.Fatalf("MessagesFor: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("length = %d, want 2", len(messages))
	}
	if messages[0].ID != "m-1" || messages[1].ID != "m-2" {
		t.Errorf("sent order not preserved: %q, %q", messages[0].ID, messages[1].ID)
	}
	if messages[1].Direction != api.DirectionOutgoing || messages[1].Text != "hello" {
		t.Errorf("unexpected message: %+v", messages[1])
	}
	if !messages[0].SentAt.Equal(sentAt) {
		t.Errorf("SentAt = %v, want %v", messages[0].SentAt, sentAt)
	}
}

func TestRecordMessagesIdempotent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	msg := api.Message{ID: "m-1", PeerID: "P1", Direction: api.DirectionIncoming, Text: "hi", SentAt: time.Now()}
	if err := a.RecordMessages(ctx, "P1", []api.Message{msg}); err != nil {
		t.Fatalf("first RecordMessages: %v", err)
	}

	// A later history fetch replays the same message with updated read state.
	msg.ReadByPeer = true
	if err := a.RecordMessages(ctx, "P1", []api.Message{msg}); err != nil {
		t.Fatalf("second RecordMessages: %v", err)
	}

	count, err := a.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (upsert)", count)
	}

	messages, err := a.MessagesFor(ctx, "P1", 0)
	if err != nil {
		t.Fatalf("MessagesFor: %v", err)
	}
	if !messages[0].ReadByPeer {
		t.Error("read state not updated on replay")
	}
}

func TestRecordMessagesSkipsEmptyIDs(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	err := a.RecordMessages(ctx, "P1", []api.Message{
		{ID: "", Text: "provisional leftover"},
		{ID: "m-1", Text: "real"},
	})
	if err != nil {
		t.Fatalf("RecordMessages: %v", err)
	}

	count, _ := a.Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSearch(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := a.RecordMessages(ctx, "P1", []api.Message{
		{ID: "m-1", Text: "where is my order", SentAt: base},
		{ID: "m-2", Text: "thanks", SentAt: base.Add(time.Minute)},
	}); err != nil {
		t.Fatalf("RecordMessages: %v", err)
	}
	if err := a.RecordMessages(ctx, "P2", []api.Message{
		{ID: "m-3", Text: "order update please", SentAt: base.Add(2 * time.Minute)},
	}); err != nil {
		t.Fatalf("RecordMessages: %v", err)
	}

	results, err := a.Search(ctx, "order", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	// Newest first.
	if results[0].ID != "m-3" || results[1].ID != "m-1" {
		t.Errorf("order: %q, %q", results[0].ID, results[1].ID)
	}

	if _, err := a.Search(ctx, "   ", 0); err == nil {
		t.Error("empty query should error")
	}
}

func TestSearchEscapesWildcards(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	if err := a.RecordMessages(ctx, "P1", []api.Message{
		{ID: "m-1", Text: "100% cotton", SentAt: time.Now()},
		{ID: "m-2", Text: "100 units", SentAt: time.Now()},
	}); err != nil {
		t.Fatalf("RecordMessages: %v", err)
	}

	results, err := a.Search(ctx, "100%", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m-1" {
		t.Errorf("wildcard not escaped: %+v", results)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty path")
	}
}
