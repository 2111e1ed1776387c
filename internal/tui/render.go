package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/merchbot/console/internal/api"
	syncengine "github.com/merchbot/console/internal/sync"
)

func (m *Model) View() string {
	if m.width <= 0 {
		return "loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	leftWidth := clampInt(m.width*35/100, 24, 48)
	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
		leftWidth = m.width - rightWidth - 1
	}

	left := m.renderConversationList(leftWidth, bodyHeight)
	right := m.renderTimeline(rightWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	palette := paletteFor(m.theme)
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(palette.Foreground)).
		Background(lipgloss.Color(palette.Header)).
		Bold(true).
		Padding(0, 1)

	left := "merchbot console"
	center := ""
	if peerID := m.coord.Session().SelectedPeer(); peerID != "" {
		if conv, ok := m.coord.Conversation(peerID); ok {
			center = conv.Label()
		} else {
			center = peerID
		}
	}
	right := m.renderBadges()
	return style.Width(maxInt(0, m.width)).Render(joinThree(left, center, right, m.width-2))
}

// renderBadges shows the aggregate unread counters and the polling state.
func (m *Model) renderBadges() string {
	unread := m.coord.Session().Unread()
	parts := []string{
		fmt.Sprintf("msgs:%d", unread.Messages),
		fmt.Sprintf("reqs:%d", unread.Requests),
	}
	if m.coord.UnreadOnly() {
		parts = append(parts, "unread-only")
	}
	if !m.coord.Session().PollingEnabled() {
		parts = append(parts, "polling off")
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderFooter() string {
	palette := paletteFor(m.theme)
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(palette.Foreground)).
		Background(lipgloss.Color(palette.Footer)).
		Padding(0, 1)

	var line string
	switch {
	case m.confirmDelete != "":
		line = fmt.Sprintf("delete conversation with %s? [y/n]", m.confirmDelete)
	case m.statusErr != "":
		line = lipgloss.NewStyle().
			Foreground(lipgloss.Color(palette.ErrorText)).
			Render("error: " + m.statusErr)
	case m.focus == focusCompose:
		line = "> " + m.compose + "█  (enter send, esc back)"
	default:
		line = "[enter] open  [i] reply  [u] unread filter  [x] delete  [r] refresh  [q] quit"
	}
	return style.Width(maxInt(0, m.width)).Render(truncate(line, maxInt(0, m.width-2)))
}

func (m *Model) renderConversationList(width, height int) string {
	palette := paletteFor(m.theme)
	conversations := m.coord.Conversations()
	selectedPeer := m.coord.Session().SelectedPeer()

	lines := make([]string, 0, height)
	if len(conversations) == 0 {
		empty := "no conversations"
		if m.coord.UnreadOnly() {
			empty = "no unread conversations"
		}
		lines = append(lines, lipgloss.NewStyle().
			Foreground(lipgloss.Color(palette.Dim)).
			Render(empty))
	}

	start := 0
	if m.selIndex >= height {
		start = m.selIndex - height + 1
	}
	for i := start; i < len(conversations) && len(lines) < height; i++ {
		conv := conversations[i]
		line := conversationLine(conv.Label(), conv.LastMessagePreview, conv.UnreadCount, width-2)

		style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Foreground))
		if conv.UnreadCount > 0 {
			style = style.Bold(true)
		}
		if i == m.selIndex {
			style = style.Background(lipgloss.Color(palette.SelectedBack))
		}
		if conv.PeerID == selectedPeer {
			style = style.Foreground(lipgloss.Color(palette.Accent))
		}
		lines = append(lines, style.Width(width).Render(line))
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTimeline(width, height int) string {
	palette := paletteFor(m.theme)
	entries := m.coord.Timeline()

	if m.coord.Session().SelectedPeer() == "" {
		return lipgloss.NewStyle().
			Width(width).
			Height(height).
			Foreground(lipgloss.Color(palette.Dim)).
			Render("select a conversation")
	}

	lines := make([]string, 0, height)
	start := 0
	if len(entries) > height {
		start = len(entries) - height
	}
	for _, entry := range entries[start:] {
		lines = append(lines, m.renderEntry(entry, width, palette))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderEntry(entry syncengine.Entry, width int, palette Palette) string {
	prefix := "<"
	color := palette.Incoming
	if entry.Direction == api.DirectionOutgoing {
		prefix = ">"
		color = palette.Outgoing
	}
	if entry.ID.IsProvisional() {
		prefix = "…"
		color = palette.Provisional
	}

	line := prefix + " " + entry.Text
	if m.showTimestamps && !entry.SentAt.IsZero() {
		line = entry.SentAt.Local().Format("15:04") + " " + line
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Render(truncate(line, width))
}

// conversationLine lays out one list row: label, unread badge, preview.
func conversationLine(label, preview string, unread, width int) string {
	badge := ""
	if unread > 0 {
		badge = fmt.Sprintf(" (%d)", unread)
	}

	line := label + badge
	if preview != "" {
		line += "  " + preview
	}
	return truncate(line, width)
}

// joinThree spreads three segments across the width, collapsing gracefully
// when space runs out.
func joinThree(left, center, right string, width int) string {
	if width <= 0 {
		return left
	}

	space := width - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if space < 2 {
		line := left
		if right != "" {
			line = left + "  " + right
		}
		return truncate(line, width)
	}

	leftGap := space / 2
	rightGap := space - leftGap
	return truncate(left+strings.Repeat(" ", leftGap)+center+strings.Repeat(" ", rightGap)+right, width)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
