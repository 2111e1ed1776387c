package api

import (
	"strings"
	"time"
)

// Direction indicates who authored a message.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Conversation is a conversation summary as returned by the backend.
type Conversation struct {
	PeerID             string    `json:"peer_id"`
	DisplayName        string    `json:"display_name,omitempty"`
	LastMessagePreview string    `json:"last_message_preview"`
	LastMessageAt      time.Time `json:"last_message_at"`
	UnreadCount        int       `json:"unread_count"`
}

// Label returns the operator-facing name for the conversation, falling back
// to a label derived from the peer id when no display name is set.
func (c Conversation) Label() string {
	if name := strings.TrimSpace(c.DisplayName); name != "" {
		return name
	}
	return "Customer " + c.PeerID
}

// Message is an authoritative message record as returned by the backend.
type Message struct {
	ID         string    `json:"id"`
	PeerID     string    `json:"peer_id"`
	Direction  Direction `json:"direction"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
	ReadByPeer bool      `json:"read_by_peer"`
}

// WaitResult is the outcome of one long-poll cycle. NewMessage false means
// the server-side wait timed out with nothing new, which is the common case.
type WaitResult struct {
	NewMessage bool   `json:"new_message"`
	PeerID     string `json:"peer_id,omitempty"`
}

// UnreadResource selects which unread counter to query.
type UnreadResource string

const (
	ResourceMessages UnreadResource = "messages"
	ResourceRequests UnreadResource = "requests"
)
