// Package chat is the terminal chat surface: it renders the conversation as
// markdown, reveals assistant turns with the typewriter, and sends the visitor's
// questions to a folio server.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/conversation"
	"github.com/mmiller-dev/folio/internal/domain/reply"
	"github.com/mmiller-dev/folio/internal/domain/typewriter"
	"github.com/mmiller-dev/folio/internal/infra/llm"
)

const (
	placeholderIntro = "Please wait for the introduction to complete..."
	placeholderReady = "Ask me about my professional experience..."
	footerHint       = "Press Enter to send"
	streamErrorNote  = "Stream error occurred. Please try again."

	// ErrorReply replaces an answer that could not be fetched.
	ErrorReply = "Sorry, I encountered an error. Please try again."

	// frameInterval caps redraws while revealing; faster speeds reveal several characters per frame.
	frameInterval = 16 * time.Millisecond

	inputHeight = 3
)

// Sender delivers the conversation so far and returns the assistant's reply.
type Sender interface {
	Send(ctx context.Context, history []llm.Message) (*reply.Reply, error)
}

// Options configure a Model.
type Options struct {
	Context context.Context
	Sender  Sender
	Store   *conversation.Store
	Logger  zerolog.Logger

	// Name labels assistant turns. Empty means "Assistant".
	Name string
	// Footer is shown under the input, typically contact links.
	Footer string
	// MarkdownStyle is a glamour standard style name; empty means "dark".
	MarkdownStyle string
}

// Model implements tea.Model.
type Model struct {
	ctx    context.Context
	sender Sender
	store  *conversation.Store
	logger zerolog.Logger

	name   string
	footer string
	style  string

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer
	rendered map[int]string

	width, height int
	prevTurns     int

	// renderer reveals the turn at revealIdx, or the reply still streaming in.
	renderer  *typewriter.Renderer
	revealIdx int
	ticking   bool

	busy      bool
	streaming bool
	seq       uint64
	current   *reply.Reply
	fragments <-chan reply.Fragment
}

type tickMsg struct {
	renderer *typewriter.Renderer
	gen      uint64
}

type replyMsg struct {
	seq   uint64
	reply *reply.Reply
	err   error
}

type fragmentMsg struct {
	seq  uint64
	frag reply.Fragment
	ok   bool
}

// New restores the session from opts.Store and prepares the intro reveal when
// this is a first visit.
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	name := opts.Name
	if name == "" {
		name = "Assistant"
	}
	style := opts.MarkdownStyle
	if style == "" {
		style = "dark"
	}

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Cursor.SetMode(cursor.CursorStatic)

	m := &Model{
		ctx:       ctx,
		sender:    opts.Sender,
		store:     opts.Store,
		logger:    opts.Logger,
		name:      name,
		footer:    opts.Footer,
		style:     style,
		input:     ta,
		viewport:  viewport.New(80, 20),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		rendered:  make(map[int]string),
		revealIdx: -1,
	}
	m.setWidth(80)

	turns := m.store.Restore()
	if len(turns) > 0 && !turns[len(turns)-1].Revealed {
		last := len(turns) - 1
		m.setRenderer(typewriter.New(turns[last].Content, turns[last].Speed(), true), last)
	}
	m.syncInput()
	return m
}

// Init starts the intro reveal, if any.
func (m *Model) Init() tea.Cmd {
	return m.startReveal()
}

// Busy reports whether a request is in flight.
func (m *Model) Busy() bool { return m.busy }

// CanSend reports whether input is accepted right now.
func (m *Model) CanSend() bool {
	return !m.busy && m.store.IntroComplete()
}

// Revealing reports whether an assistant turn is still being typed out.
func (m *Model) Revealing() bool {
	return m.renderer != nil && m.renderer.State() != typewriter.Done
}

// Run drives m as a full-screen program until the visitor quits.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	m.shutdown()
	return err
}

func (m *Model) shutdown() {
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.persist()
}
