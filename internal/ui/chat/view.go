package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmiller-dev/folio/internal/domain/conversation"
)

var (
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	inputBorder    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
	plainText      = lipgloss.NewStyle().PaddingLeft(2)
)

const typingCursor = "▌"

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(inputBorder.Width(max(m.width-2, 10)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(m.footerLine()))
	return b.String()
}

func (m *Model) footerLine() string {
	if m.footer == "" {
		return footerHint
	}
	return footerHint + "  ·  " + m.footer
}

// resize lays the viewport out above the input box and footer.
func (m *Model) resize(width, height int) {
	m.height = height
	m.setWidth(width)
	m.viewport.Height = max(height-inputHeight-3, 3)
	m.refresh()
}

func (m *Model) setWidth(width int) {
	if width == m.width && m.markdown != nil {
		return
	}
	m.width = width
	m.viewport.Width = width
	m.input.SetWidth(max(width-4, 10))
	m.rendered = make(map[int]string)

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		m.logger.Warn().Err(err).Msg("markdown renderer unavailable, showing plain text")
		md = nil
	}
	m.markdown = md
}

// refresh rebuilds the viewport content. It scrolls to the bottom only when
// the number of turns grew since the last refresh.
func (m *Model) refresh() {
	turns := m.store.All()

	var b strings.Builder
	for i, t := range turns {
		b.WriteString(m.label(t.Role))
		b.WriteString("\n")
		if i == m.revealIdx && m.Revealing() {
			b.WriteString(plainText.Width(max(m.width-4, 10)).Render(m.renderer.Visible() + typingCursor))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(m.renderTurn(i, t))
		b.WriteString("\n")
	}

	switch {
	case m.streaming && m.renderer != nil:
		b.WriteString(m.label(conversation.RoleAssistant))
		b.WriteString("\n")
		b.WriteString(plainText.Width(max(m.width-4, 10)).Render(m.renderer.Visible() + typingCursor))
		b.WriteString("\n")
	case m.busy:
		b.WriteString(m.label(conversation.RoleAssistant))
		b.WriteString("\n  ")
		b.WriteString(m.spinner.View())
		b.WriteString(" Thinking...\n")
	}

	m.viewport.SetContent(b.String())
	if len(turns) > m.prevTurns {
		m.viewport.GotoBottom()
	}
	m.prevTurns = len(turns)
}

func (m *Model) label(role conversation.Role) string {
	if role == conversation.RoleUser {
		return userLabel.Render("You")
	}
	return assistantLabel.Render(m.name)
}

// renderTurn renders settled markdown once per turn and width.
func (m *Model) renderTurn(i int, t conversation.Turn) string {
	if out, ok := m.rendered[i]; ok {
		return out
	}
	out := plainText.Width(max(m.width-4, 10)).Render(t.Content) + "\n"
	if m.markdown != nil {
		if md, err := m.markdown.Render(t.Content); err == nil {
			out = md
		}
	}
	m.rendered[i] = out
	return out
}

func (m *Model) dropRendered(i int) {
	delete(m.rendered, i)
}
