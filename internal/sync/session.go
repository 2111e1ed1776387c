// Package sync implements the realtime conversation synchronization engine:
// a notification poller, an unread aggregator, and the coordinator that keeps
// the operator's conversation list and message timeline consistent with the
// bot backend over request/response and long-poll primitives.
package sync

import (
	gosync "sync"
)

// AggregateUnread holds the two independently polled unread counters shown on
// the navigation badges.
type AggregateUnread struct {
	Messages int
	Requests int
}

// Session is the process-wide sync state for one authenticated operator
// session. The Coordinator exclusively owns all writes; background tasks read
// the selection and polling flag fresh at each use, never capturing them at
// task start.
type Session struct {
	mu             gosync.RWMutex
	selectedPeer   string
	pollingEnabled bool
	unread         AggregateUnread
}

// NewSession creates a session with polling disabled and nothing selected.
func NewSession() *Session {
	return &Session{}
}

// SelectedPeer returns the currently selected conversation, or "" when none
// is selected.
func (s *Session) SelectedPeer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedPeer
}

// PollingEnabled reports whether background polling may run. Loops observe
// this at each iteration boundary.
func (s *Session) PollingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollingEnabled
}

// Unread returns the aggregate unread counters.
func (s *Session) Unread() AggregateUnread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *Session) setSelectedPeer(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedPeer = peerID
}

func (s *Session) setPolling(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollingEnabled = enabled
}

func (s *Session) setUnreadMessages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.Messages = clampNonNegative(n)
}

func (s *Session) setUnreadRequests(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.Requests = clampNonNegative(n)
}

// decrementUnreadMessages lowers the messages counter by n, floored at 0.
func (s *Session) decrementUnreadMessages(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.Messages = clampNonNegative(s.unread.Messages - n)
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
