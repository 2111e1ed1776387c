// Package tui implements the interactive operator console on top of the sync
// engine: a conversation list, the selected conversation's timeline, and a
// compose line, refreshed from the coordinator's snapshots.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/merchbot/console/internal/api"
	syncengine "github.com/merchbot/console/internal/sync"
)

const snapshotInterval = time.Second

// Theme selects a color palette.
type Theme string

// Available themes.
const (
	ThemeDefault      Theme = "default"
	ThemeHighContrast Theme = "high-contrast"
)

type focusArea int

const (
	focusList focusArea = iota
	focusCompose
)

// Config configures the console UI.
type Config struct {
	Theme          string
	ShowTimestamps bool
}

// Model is the root bubbletea model.
type Model struct {
	coord *syncengine.Coordinator

	theme          Theme
	showTimestamps bool

	width  int
	height int

	focus    focusArea
	selIndex int

	compose string

	confirmDelete string // peer id awaiting delete confirmation, "" when none
	statusErr     string
	statusInfo    string
}

type tickMsg struct{}

type actionDoneMsg struct {
	err error
}

type sendDoneMsg struct {
	err          error
	restoredText string
}

// NewModel creates the root model. The coordinator must already be started.
func NewModel(coord *syncengine.Coordinator, cfg Config) (*Model, error) {
	if coord == nil {
		return nil, errors.New("coordinator is required")
	}

	theme := Theme(strings.TrimSpace(cfg.Theme))
	if theme == "" {
		theme = ThemeDefault
	}
	switch theme {
	case ThemeDefault, ThemeHighContrast:
	default:
		return nil, fmt.Errorf("invalid theme %q", cfg.Theme)
	}

	return &Model{
		coord:          coord,
		theme:          theme,
		showTimestamps: cfg.ShowTimestamps,
	}, nil
}

// Run starts the interactive console and blocks until it exits.
func Run(coord *syncengine.Coordinator, cfg Config) error {
	model, err := NewModel(coord, cfg)
	if err != nil {
		return err
	}

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(snapshotInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case tickMsg:
		m.clampSelection()
		return m, tickCmd()
	case actionDoneMsg:
		if typed.err != nil {
			m.statusErr = friendlyError(typed.err)
		} else {
			m.statusErr = ""
		}
		return m, nil
	case sendDoneMsg:
		if typed.err != nil {
			m.statusErr = friendlyError(typed.err)
			// The typed text survives a failed send.
			m.compose = typed.restoredText
		} else {
			m.statusErr = ""
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirmDelete != "" {
		return m.handleConfirmKey(msg)
	}

	switch m.focus {
	case focusCompose:
		return m.handleComposeKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.selIndex > 0 {
			m.selIndex--
		}
		return m, nil
	case "down", "j":
		if m.selIndex < len(m.coord.Conversations())-1 {
			m.selIndex++
		}
		return m, nil
	case "enter":
		conversations := m.coord.Conversations()
		if m.selIndex >= len(conversations) {
			return m, nil
		}
		peerID := conversations[m.selIndex].PeerID
		return m, m.selectCmd(peerID)
	case "tab", "i":
		if m.coord.Session().SelectedPeer() != "" {
			m.focus = focusCompose
		}
		return m, nil
	case "u":
		return m, m.toggleUnreadCmd()
	case "r":
		return m, m.refreshCmd()
	case "x":
		conversations := m.coord.Conversations()
		if m.selIndex < len(conversations) {
			m.confirmDelete = conversations[m.selIndex].PeerID
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	peerID := m.confirmDelete
	m.confirmDelete = ""
	if msg.String() == "y" {
		return m, m.deleteCmd(peerID)
	}
	return m, nil
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = focusList
		return m, nil
	case tea.KeyEnter:
		text := m.compose
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.compose = ""
		return m, m.sendCmd(text)
	case tea.KeyBackspace:
		if len(m.compose) > 0 {
			runes := []rune(m.compose)
			m.compose = string(runes[:len(runes)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.compose += " "
		return m, nil
	case tea.KeyRunes:
		m.compose += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m *Model) selectCmd(peerID string) tea.Cmd {
	return func() tea.Msg {
		err := m.coord.SelectConversation(context.Background(), peerID)
		return actionDoneMsg{err: err}
	}
}

func (m *Model) sendCmd(text string) tea.Cmd {
	peerID := m.coord.Session().SelectedPeer()
	return func() tea.Msg {
		err := m.coord.SendMessage(context.Background(), peerID, text)
		if err != nil {
			var sendErr *syncengine.SendFailedError
			if errors.As(err, &sendErr) {
				return sendDoneMsg{err: err, restoredText: sendErr.Text}
			}
			return sendDoneMsg{err: err, restoredText: text}
		}
		return sendDoneMsg{}
	}
}

func (m *Model) deleteCmd(peerID string) tea.Cmd {
	return func() tea.Msg {
		err := m.coord.DeleteConversation(context.Background(), peerID)
		return actionDoneMsg{err: err}
	}
}

func (m *Model) toggleUnreadCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.coord.SetUnreadOnly(context.Background(), !m.coord.UnreadOnly())
		return actionDoneMsg{err: err}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.coord.Refresh(context.Background())}
	}
}

func (m *Model) clampSelection() {
	count := len(m.coord.Conversations())
	if count == 0 {
		m.selIndex = 0
		return
	}
	if m.selIndex >= count {
		m.selIndex = count - 1
	}
}

// friendlyError maps transport errors to a short status-line message.
func friendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case api.IsAuth(err):
		return "credential rejected; polling stopped"
	case api.IsValidation(err):
		return err.Error()
	default:
		var netErr *api.NetworkError
		if errors.As(err, &netErr) {
			return "backend unreachable"
		}
		var srvErr *api.ServerError
		if errors.As(err, &srvErr) {
			return fmt.Sprintf("server error (%d)", srvErr.Status)
		}
		return err.Error()
	}
}
