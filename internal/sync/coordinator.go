package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/merchbot/console/internal/api"
	"github.com/merchbot/console/internal/logging"
)

// Transport is the remote capability surface the engine depends on. It is
// implemented by api.Client; tests substitute fakes.
type Transport interface {
	Conversations(ctx context.Context, unreadOnly bool) ([]api.Conversation, error)
	Messages(ctx context.Context, peerID string) ([]api.Message, error)
	SendMessage(ctx context.Context, peerID, text string) (string, error)
	MarkAsRead(ctx context.Context, peerID string) error
	DeleteConversation(ctx context.Context, peerID string) error
	WaitForMessages(ctx context.Context, wait time.Duration) (api.WaitResult, error)
	UnreadCount(ctx context.Context, resource api.UnreadResource) (int, error)
}

// Notifier is the attention-signal collaborator, invoked when a notification
// concerns a conversation the operator is not currently viewing. Best-effort;
// implementations must not block.
type Notifier interface {
	Notify()
}

// Archiver records confirmed messages locally. Failures are logged and never
// surfaced to the operator.
type Archiver interface {
	RecordMessages(ctx context.Context, peerID string, messages []api.Message) error
}

// SendFailedError wraps a failed send and carries the typed text so the
// caller can restore it to the input.
type SendFailedError struct {
	Text string
	Err  error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendFailedError) Unwrap() error {
	return e.Err
}

// CoordinatorConfig configures the sync coordinator and its background tasks.
type CoordinatorConfig struct {
	Transport Transport
	Notifier  Notifier
	Archive   Archiver

	// UnreadOnly starts the conversation list filtered to unread conversations.
	UnreadOnly bool

	// LongPollWait is the server-side wait budget per poll cycle.
	LongPollWait time.Duration

	// PollBackoff is the fixed delay after a failed poll cycle.
	PollBackoff time.Duration

	// UnreadInterval is the unread aggregator tick interval.
	UnreadInterval time.Duration
}

// Coordinator orchestrates the conversation store, the message timeline, and
// the background pollers. It exclusively owns the session and mediates every
// mutation, so the poller and operator actions cannot lose updates to each
// other.
type Coordinator struct {
	transport Transport
	notifier  Notifier
	archive   Archiver
	logger    zerolog.Logger

	session  *Session
	store    *Store
	timeline *Timeline

	poller     *Poller
	aggregator *UnreadAggregator

	// mu linearizes compound mutations (fetch results applied to store and
	// timeline together with identity checks).
	mu         gosync.Mutex
	unreadOnly bool
}

// NewCoordinator creates a coordinator. Start must be called before the
// background tasks run.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	c := &Coordinator{
		transport:  cfg.Transport,
		notifier:   cfg.Notifier,
		archive:    cfg.Archive,
		logger:     logging.Component("sync"),
		session:    NewSession(),
		store:      NewStore(),
		timeline:   NewTimeline(),
		unreadOnly: cfg.UnreadOnly,
	}

	c.poller = NewPoller(PollerConfig{
		Wait:    cfg.LongPollWait,
		Backoff: cfg.PollBackoff,
	}, c)
	c.aggregator = NewUnreadAggregator(cfg.UnreadInterval, c)

	return c, nil
}

// Start enables polling, performs the initial conversation refresh, and
// launches the notification poller and unread aggregator.
func (c *Coordinator) Start(ctx context.Context) error {
	c.session.setPolling(true)

	if err := c.Refresh(ctx); err != nil {
		// A failed initial load is non-fatal: the poller will refresh on the
		// next notification and the operator can retry manually.
		c.logger.Warn().Err(err).Msg("initial conversation refresh failed")
		c.observeError(err)
	}

	if err := c.poller.Start(ctx); err != nil {
		return err
	}
	if err := c.aggregator.Start(ctx); err != nil {
		_ = c.poller.Stop()
		return err
	}
	return nil
}

// Stop disables polling and waits for the background tasks to observe it.
func (c *Coordinator) Stop() {
	c.session.setPolling(false)
	_ = c.poller.Stop()
	_ = c.aggregator.Stop()
}

// Session exposes read access to the sync session.
func (c *Coordinator) Session() *Session {
	return c.session
}

// Conversations returns a snapshot of the conversation store.
func (c *Coordinator) Conversations() []api.Conversation {
	return c.store.List()
}

// Conversation returns one conversation summary.
func (c *Coordinator) Conversation(peerID string) (api.Conversation, bool) {
	return c.store.Get(peerID)
}

// Timeline returns a snapshot of the message timeline.
func (c *Coordinator) Timeline() []Entry {
	return c.timeline.Entries()
}

// UnreadOnly reports whether the conversation list is filtered to unread.
func (c *Coordinator) UnreadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unreadOnly
}

// SetUnreadOnly toggles the unread-only filter and refreshes the list.
func (c *Coordinator) SetUnreadOnly(ctx context.Context, unreadOnly bool) error {
	c.mu.Lock()
	c.unreadOnly = unreadOnly
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh replaces the conversation store with a fresh authoritative list.
func (c *Coordinator) Refresh(ctx context.Context) error {
	conversations, err := c.transport.Conversations(ctx, c.UnreadOnly())
	if err != nil {
		c.observeError(err)
		return err
	}
	c.store.ReplaceAll(conversations)
	return nil
}

// HandleNotification reacts to a long-poll report of a new message:
// the conversation list is refreshed unconditionally, the timeline only when
// the notification concerns the selected conversation, and the attention
// signal fires only when it does not.
func (c *Coordinator) HandleNotification(ctx context.Context, peerID string) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("conversation refresh after notification failed")
	}

	// Read the selection fresh: it may have changed while the long-poll
	// response was in flight.
	if peerID != "" && peerID == c.session.SelectedPeer() {
		if err := c.loadTimeline(ctx, peerID); err != nil {
			c.logger.Warn().Err(err).Str("peer_id", peerID).Msg("timeline refresh after notification failed")
		}
		return
	}

	// The operator is not looking at this conversation.
	if c.notifier != nil {
		c.notifier.Notify()
	}
}

// SelectConversation makes peerID the active conversation, loads its history,
// and marks it read when it had unread messages. A failed mark-as-read is
// returned but does not prevent the timeline from displaying.
func (c *Coordinator) SelectConversation(ctx context.Context, peerID string) error {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return &api.ValidationError{Msg: "no conversation selected"}
	}

	c.session.setSelectedPeer(peerID)

	if err := c.loadTimeline(ctx, peerID); err != nil {
		c.observeError(err)
		return err
	}

	conv, ok := c.store.Get(peerID)
	if !ok || conv.UnreadCount == 0 {
		return nil
	}

	previousUnread := conv.UnreadCount
	if err := c.transport.MarkAsRead(ctx, peerID); err != nil {
		// Leave counters untouched; the badge stays until a later retry.
		c.observeError(err)
		return err
	}

	zero := 0
	c.store.Patch(peerID, ConversationPatch{UnreadCount: &zero})
	c.session.decrementUnreadMessages(previousUnread)
	return nil
}

// SendMessage performs an optimistic local send and reconciles it with the
// authoritative server record. On failure the provisional entry is removed
// and the typed text is recoverable from the returned SendFailedError.
func (c *Coordinator) SendMessage(ctx context.Context, peerID, text string) error {
	if strings.TrimSpace(text) == "" {
		return &api.ValidationError{Msg: "message text is empty"}
	}
	peerID = strings.TrimSpace(peerID)
	if peerID == "" || c.session.SelectedPeer() != peerID {
		return &api.ValidationError{Msg: "no conversation selected"}
	}

	localID := uuid.New().String()
	now := time.Now()

	c.mu.Lock()
	if c.timeline.PeerID() == peerID {
		c.timeline.AppendProvisional(Entry{
			ID:        ProvisionalID(localID),
			PeerID:    peerID,
			Direction: api.DirectionOutgoing,
			Text:      text,
			SentAt:    now,
		})
	}
	c.store.Patch(peerID, ConversationPatch{
		LastMessagePreview: &text,
		LastMessageAt:      &now,
	})
	c.mu.Unlock()

	serverID, err := c.transport.SendMessage(ctx, peerID, text)
	if err != nil {
		c.timeline.DropProvisional(localID)
		c.observeError(err)
		return &SendFailedError{Text: text, Err: err}
	}

	c.timeline.ResolveProvisional(localID, serverID)

	if c.archive != nil {
		confirmed := api.Message{
			ID:        serverID,
			PeerID:    peerID,
			Direction: api.DirectionOutgoing,
			Text:      text,
			SentAt:    now,
		}
		if err := c.archive.RecordMessages(ctx, peerID, []api.Message{confirmed}); err != nil {
			c.logger.Warn().Err(err).Str("peer_id", peerID).Msg("archive write failed")
		}
	}
	return nil
}

// DeleteConversation removes a conversation on the server and locally. When
// the deleted conversation was selected, the selection and timeline are
// cleared.
func (c *Coordinator) DeleteConversation(ctx context.Context, peerID string) error {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return &api.ValidationError{Msg: "no conversation selected"}
	}

	if err := c.transport.DeleteConversation(ctx, peerID); err != nil {
		c.observeError(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Remove(peerID)
	if c.session.SelectedPeer() == peerID {
		c.session.setSelectedPeer("")
		c.timeline.Clear()
	}
	return nil
}

// loadTimeline fetches the authoritative history for peerID and applies it
// only if the selection still matches when the response lands.
func (c *Coordinator) loadTimeline(ctx context.Context, peerID string) error {
	messages, err := c.transport.Messages(ctx, peerID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	stale := c.session.SelectedPeer() != peerID
	if !stale {
		c.timeline.Load(peerID, messages)
	}
	c.mu.Unlock()

	if stale {
		c.logger.Debug().Str("peer_id", peerID).Msg("discarding stale timeline response")
		return nil
	}

	if c.archive != nil && len(messages) > 0 {
		if err := c.archive.RecordMessages(ctx, peerID, messages); err != nil {
			c.logger.Warn().Err(err).Str("peer_id", peerID).Msg("archive write failed")
		}
	}
	return nil
}

// observeError disables all background polling when the backend rejects the
// operator credential. All other errors are left to the caller.
func (c *Coordinator) observeError(err error) {
	if err == nil {
		return
	}
	if api.IsAuth(err) && c.session.PollingEnabled() {
		c.logger.Warn().Msg("credential rejected, disabling background polling")
		c.session.setPolling(false)
	}
}
