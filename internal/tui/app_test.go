package tui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/merchbot/console/internal/api"
	syncengine "github.com/merchbot/console/internal/sync"
)

// stubTransport satisfies the coordinator's transport with canned data.
type stubTransport struct {
	conversations []api.Conversation
}

func (s *stubTransport) Conversations(context.Context, bool) ([]api.Conversation, error) {
	return s.conversations, nil
}

func (s *stubTransport) Messages(context.Context, string) ([]api.Message, error) {
	return nil, nil
}

func (s *stubTransport) SendMessage(context.Context, string, string) (string, error) {
	return "m-1", nil
}

func (s *stubTransport) MarkAsRead(context.Context, string) error { return nil }

func (s *stubTransport) DeleteConversation(context.Context, string) error { return nil }

func (s *stubTransport) WaitForMessages(context.Context, time.Duration) (api.WaitResult, error) {
	return api.WaitResult{}, nil
}

func (s *stubTransport) UnreadCount(context.Context, api.UnreadResource) (int, error) {
	return 0, nil
}

func newTestModel(t *testing.T, conversations []api.Conversation) *Model {
	t.Helper()

	coord, err := syncengine.NewCoordinator(syncengine.CoordinatorConfig{
		Transport: &stubTransport{conversations: conversations},
	})
	require.NoError(t, err)
	require.NoError(t, coord.Refresh(context.Background()))

	model, err := NewModel(coord, Config{})
	require.NoError(t, err)
	model.width = 80
	model.height = 24
	return model
}

func TestNewModelRejectsInvalidTheme(t *testing.T) {
	coord, err := syncengine.NewCoordinator(syncengine.CoordinatorConfig{Transport: &stubTransport{}})
	require.NoError(t, err)

	_, err = NewModel(coord, Config{Theme: "neon"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid theme")

	_, err = NewModel(coord, Config{Theme: "high-contrast"})
	require.NoError(t, err)

	_, err = NewModel(nil, Config{})
	require.Error(t, err)
}

func TestListNavigationClamps(t *testing.T) {
	model := newTestModel(t, []api.Conversation{
		{PeerID: "P1"}, {PeerID: "P2"},
	})

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	require.Equal(t, 0, model.selIndex, "must not move above the top")

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	require.Equal(t, 1, model.selIndex, "must not move below the bottom")
}

func TestComposeEditing(t *testing.T) {
	model := newTestModel(t, []api.Conversation{{PeerID: "P1"}})
	model.focus = focusCompose

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	model.handleKey(tea.KeyMsg{Type: tea.KeySpace})
	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("åäö")})
	require.Equal(t, "hi åäö", model.compose)

	model.handleKey(tea.KeyMsg{Type: tea.KeyBackspace})
	require.Equal(t, "hi åä", model.compose, "backspace must remove one rune, not one byte")

	model.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, focusList, model.focus)
}

func TestComposeRequiresSelection(t *testing.T) {
	model := newTestModel(t, []api.Conversation{{PeerID: "P1"}})

	model.handleKey(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusList, model.focus, "compose needs a selected conversation")
}

func TestSendFailureRestoresText(t *testing.T) {
	model := newTestModel(t, []api.Conversation{{PeerID: "P1"}})

	failure := &syncengine.SendFailedError{
		Text: "draft",
		Err:  &api.NetworkError{Op: "send", Err: errors.New("down")},
	}
	model.Update(sendDoneMsg{err: failure, restoredText: failure.Text})

	require.Equal(t, "draft", model.compose)
	require.NotEmpty(t, model.statusErr)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	model := newTestModel(t, []api.Conversation{{PeerID: "P1"}})

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.Equal(t, "P1", model.confirmDelete)

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.Empty(t, model.confirmDelete)

	_, ok := model.coord.Conversation("P1")
	require.True(t, ok, "declining must keep the conversation")
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "auth", err: &api.AuthError{Status: 401}, want: "credential rejected; polling stopped"},
		{name: "network", err: &api.NetworkError{Op: "get", Err: errors.New("refused")}, want: "backend unreachable"},
		{name: "server", err: &api.ServerError{Status: 502}, want: "server error (502)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, friendlyError(tt.err))
		})
	}
}

func TestBellNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &BellNotifier{out: &buf}
	n.Notify()
	n.Notify()
	require.Equal(t, "\a\a", buf.String())

	var nilNotifier *BellNotifier
	nilNotifier.Notify() // must not panic
}

func TestViewRenders(t *testing.T) {
	model := newTestModel(t, []api.Conversation{
		{PeerID: "P1", DisplayName: "Alice", UnreadCount: 2, LastMessagePreview: "hello"},
	})

	out := model.View()
	require.NotEmpty(t, out)
	require.Contains(t, out, "merchbot console")
	require.Contains(t, out, "Alice")
}
