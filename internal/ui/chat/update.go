package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmiller-dev/folio/internal/domain/conversation"
	"github.com/mmiller-dev/folio/internal/domain/typewriter"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, m.handleTick(msg)

	case replyMsg:
		return m, m.handleReply(msg)

	case fragmentMsg:
		return m, m.handleFragment(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyCtrlR:
		return m, m.clear()
	case tea.KeyEnter:
		return m, m.submit()
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if !m.CanSend() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as a user turn. A reply still revealing is shown in
// full first so only the newest assistant turn ever animates.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || !m.CanSend() {
		return nil
	}
	m.input.Reset()

	if m.renderer != nil {
		m.renderer.Finish()
		m.dropRendered(m.revealIdx)
		m.revealIdx = -1
	}
	m.store.RevealAll()
	m.store.Append(conversation.Turn{Role: conversation.RoleUser, Content: text, Revealed: true})
	m.persist()

	m.busy = true
	m.seq++
	m.syncInput()
	m.refresh()
	return tea.Batch(m.spinner.Tick, m.send(m.seq))
}

func (m *Model) send(seq uint64) tea.Cmd {
	history := m.store.History()
	return func() tea.Msg {
		rep, err := m.sender.Send(m.ctx, history)
		return replyMsg{seq: seq, reply: rep, err: err}
	}
}

func (m *Model) handleReply(msg replyMsg) tea.Cmd {
	if msg.seq != m.seq {
		if msg.reply != nil {
			msg.reply.Close()
		}
		return nil
	}
	if msg.err != nil {
		m.logger.Error().Err(msg.err).Msg("chat request failed")
		m.settle(ErrorReply, true)
		return nil
	}

	if msg.reply.Batched() {
		text, err := msg.reply.Collect(m.ctx)
		if err != nil {
			m.logger.Error().Err(err).Msg("chat reply failed")
			m.settle(ErrorReply, true)
			return nil
		}
		if msg.reply.Notice {
			m.logger.Info().Str("notice", text).Msg("rate limited")
		}
		m.settle(text, false)
		return m.startReveal()
	}

	m.current = msg.reply
	m.fragments = msg.reply.Fragments()
	m.streaming = true
	m.setRenderer(typewriter.NewStreaming(typewriter.DefaultSpeed), -1)
	m.renderer.Start()
	m.refresh()
	return m.nextFragment(msg.seq)
}

func (m *Model) nextFragment(seq uint64) tea.Cmd {
	frags := m.fragments
	return func() tea.Msg {
		f, ok := <-frags
		return fragmentMsg{seq: seq, frag: f, ok: ok}
	}
}

func (m *Model) handleFragment(msg fragmentMsg) tea.Cmd {
	if msg.seq != m.seq || !m.streaming {
		return nil
	}

	switch {
	case msg.ok && msg.frag.Err == nil:
		m.renderer.Append(msg.frag.Text)
		return tea.Batch(m.scheduleTick(), m.nextFragment(msg.seq))

	case msg.ok:
		partial := m.renderer.Text()
		m.renderer.Finish()
		m.endStream()
		m.logger.Error().Err(msg.frag.Err).Int("partial_runes", len([]rune(partial))).Msg("chat stream failed")
		m.settle(streamFailureText(partial), true)
		return nil

	default:
		m.endStream()
		text := m.renderer.Text()
		events := m.renderer.Seal()
		m.revealIdx = m.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: text})
		m.busy = false
		m.syncInput()
		m.persist()
		m.apply(events)
		m.refresh()
		if m.renderer.State() == typewriter.Done && m.revealIdx >= 0 {
			m.revealed()
		}
		return m.scheduleTick()
	}
}

// streamFailureText keeps whatever arrived before the stream broke.
func streamFailureText(partial string) string {
	if partial == "" {
		return ErrorReply
	}
	return partial + "\n\n*" + streamErrorNote + "*"
}

func (m *Model) endStream() {
	m.streaming = false
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.fragments = nil
}

// settle appends an assistant turn and ends the request. Instant turns are
// stored revealed and never animate.
func (m *Model) settle(text string, instant bool) {
	idx := m.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: text, Revealed: instant})
	m.busy = false
	if instant {
		m.setRenderer(nil, -1)
	} else {
		m.setRenderer(typewriter.New(text, typewriter.DefaultSpeed, true), idx)
	}
	m.syncInput()
	m.persist()
	m.refresh()
}

// startReveal starts the renderer and schedules its first tick.
func (m *Model) startReveal() tea.Cmd {
	if m.renderer == nil {
		return nil
	}
	m.apply(m.renderer.Start())
	if m.renderer.State() == typewriter.Done && m.revealIdx >= 0 {
		// Empty text never emits a completion event.
		m.revealed()
	}
	m.refresh()
	return m.scheduleTick()
}

func (m *Model) scheduleTick() tea.Cmd {
	if m.ticking || m.renderer == nil || !m.renderer.Pending() {
		return nil
	}
	m.ticking = true
	r, gen := m.renderer, m.renderer.Generation()
	return tea.Tick(max(r.Speed(), frameInterval), func(time.Time) tea.Msg {
		return tickMsg{renderer: r, gen: gen}
	})
}

// setRenderer replaces the active renderer. Ticks scheduled for the previous
// one are dropped when they arrive.
func (m *Model) setRenderer(r *typewriter.Renderer, idx int) {
	m.renderer = r
	m.revealIdx = idx
	m.ticking = false
}

func (m *Model) handleTick(msg tickMsg) tea.Cmd {
	if m.renderer == nil || msg.renderer != m.renderer || msg.gen != m.renderer.Generation() {
		return nil
	}
	m.ticking = false

	steps := charsPerFrame(m.renderer.Speed())
	for i := 0; i < steps && m.renderer.Pending(); i++ {
		m.apply(m.renderer.TickFor(msg.gen))
	}
	m.refresh()
	return m.scheduleTick()
}

// charsPerFrame is how many ticks fit in one redraw at speed.
func charsPerFrame(speed time.Duration) int {
	if speed <= 0 {
		return 64
	}
	return max(1, int(frameInterval/speed))
}

func (m *Model) apply(events []typewriter.Event) {
	for _, ev := range events {
		if ev.Kind == typewriter.EventComplete {
			m.revealed()
		}
	}
}

// revealed records that the animating turn has been fully shown.
func (m *Model) revealed() {
	idx := m.revealIdx
	if idx < 0 {
		return
	}
	m.revealIdx = -1
	if err := m.store.MarkRevealed(idx); err != nil {
		m.logger.Warn().Err(err).Int("index", idx).Msg("mark revealed")
		return
	}
	m.dropRendered(idx)
	m.syncInput()
	m.persist()
}

// clear forgets the session and replays the intro.
func (m *Model) clear() tea.Cmd {
	if m.current != nil {
		m.current.Close()
	}
	m.current = nil
	m.fragments = nil
	m.streaming = false
	m.busy = false
	m.seq++

	turns, err := m.store.Clear()
	if err != nil {
		m.logger.Warn().Err(err).Msg("clear session")
	}
	m.rendered = make(map[int]string)
	m.prevTurns = 0
	m.setRenderer(typewriter.New(turns[0].Content, turns[0].Speed(), true), 0)
	m.input.Reset()
	m.syncInput()
	return m.startReveal()
}

func (m *Model) persist() {
	if err := m.store.Persist(); err != nil {
		m.logger.Warn().Err(err).Msg("persist conversation")
	}
}

// syncInput gates the textarea on the intro and on requests in flight.
func (m *Model) syncInput() {
	if m.store.IntroComplete() {
		m.input.Placeholder = placeholderReady
	} else {
		m.input.Placeholder = placeholderIntro
	}
	if m.CanSend() {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

var _ tea.Model = (*Model)(nil)
