package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/llmchat/internal/chat"
	"github.com/diogo/llmchat/internal/config"
	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/models"
	"github.com/diogo/llmchat/internal/render"
)

type mode int

const (
	modeChat mode = iota
	modeHistory
	modeConfigs
)

// loopMsg carries a closure posted by a session worker.
// Running it inside Update makes Update the owner of the chat state.
type loopMsg func()

func waitForLoop(l *chat.Loop) tea.Cmd {
	return func() tea.Msg {
		return loopMsg(<-l.C())
	}
}

// StatusLine receives notices for the status bar. It is shared by
// pointer because bubbletea copies the model on every update.
type StatusLine struct {
	text string
}

// NewStatusLine creates an empty status line
func NewStatusLine() *StatusLine { return &StatusLine{} }

// Notify implements config.Notifier
func (s *StatusLine) Notify(msg string) { s.text = msg }

// Text returns the latest notice
func (s *StatusLine) Text() string { return s.text }

func (s *StatusLine) clear() { s.text = "" }

var _ config.Notifier = (*StatusLine)(nil)

// Options wires the chat screen
type Options struct {
	Controller *chat.Controller
	Loop       *chat.Loop
	Configs    *config.APIConfigStore
	// History is nil when saving is disabled
	History *history.History
	Render  render.Options
	Status  *StatusLine
}

type cachedRender struct {
	text  string
	width int
	out   string
}

// Model is the chat screen
type Model struct {
	ctrl    *chat.Controller
	state   *chat.State
	loop    *chat.Loop
	configs *config.APIConfigStore
	history *history.History
	opts    render.Options
	status  *StatusLine
	cache   map[string]cachedRender

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	mode   mode
	picker picker
	ready  bool
	quit   bool

	width  int
	height int
}

// NewModel creates the chat screen
func NewModel(o Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.CharLimit = 16000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	status := o.Status
	if status == nil {
		status = NewStatusLine()
	}

	return Model{
		ctrl:     o.Controller,
		state:    o.Controller.State(),
		loop:     o.Loop,
		configs:  o.Configs,
		history:  o.History,
		opts:     o.Render,
		status:   status,
		cache:    make(map[string]cachedRender),
		textarea: ta,
		spinner:  s,
	}
}

// Init starts draining the session loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		waitForLoop(m.loop),
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case loopMsg:
		msg()
		m.refresh()
		return m, waitForLoop(m.loop)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.IsCalling() {
			m.refresh()
		}
		return m, cmd

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		m.state.SetUserScrolledAway(!m.viewport.AtBottom())
		return m, cmd

	case tea.KeyMsg:
		if m.mode != modeChat {
			m.updatePicker(msg)
			return m, nil
		}

		m.status.clear()
		switch msg.String() {
		case "ctrl+c":
			return m.exit()

		case "esc":
			if m.state.IsCalling() {
				m.ctrl.Stop()
				m.refresh()
				return m, nil
			}
			return m.exit()

		case "enter":
			m.submit()
			if m.quit {
				return m.exit()
			}
			m.refresh()
			return m, nil

		case "ctrl+r":
			if _, err := m.ctrl.Regenerate(); err != nil && !errors.Is(err, apierrors.ErrNoActiveConfig) {
				m.status.Notify(err.Error())
			}
			m.refresh()
			return m, nil

		case "ctrl+n":
			m.ctrl.NewConversation()
			m.refresh()
			return m, nil

		case "ctrl+h":
			m.openHistory()
			return m, nil

		case "ctrl+k":
			m.openConfigs()
			return m, nil

		case "ctrl+t":
			if id := m.lastAssistantID(); id != "" {
				m.state.ToggleReasoning(id)
				m.refresh()
			}
			return m, nil

		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
			m.state.SetUserScrolledAway(!m.viewport.AtBottom())
			return m, cmd
		}

		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) exit() (tea.Model, tea.Cmd) {
	m.ctrl.Close()
	return m, tea.Quit
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3
	inputHeight := 5
	statusHeight := 1
	vpHeight := max(height-headerHeight-inputHeight-statusHeight-2, 5)
	contentWidth := max(width-4, 20)

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
	m.refresh()
}

// submit handles the text in the input box
func (m *Model) submit() {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return
	}

	switch input {
	case "/exit", "/quit", "exit", "quit":
		m.quit = true
		return
	case "/new":
		m.textarea.Reset()
		m.ctrl.NewConversation()
		return
	case "/history":
		m.textarea.Reset()
		m.openHistory()
		return
	case "/api":
		m.textarea.Reset()
		m.openConfigs()
		return
	}

	if _, err := m.ctrl.Start(input); err != nil {
		if !errors.Is(err, apierrors.ErrNoActiveConfig) {
			m.status.Notify(err.Error())
		}
		return
	}
	m.textarea.Reset()
}

func (m *Model) openHistory() {
	if m.history == nil {
		m.status.Notify("History is disabled")
		return
	}
	m.ctrl.Flush()
	m.picker = picker{title: "Saved conversations"}
	m.picker.setItems(m.historyItems())
	if loaded := m.history.Loaded(); loaded >= 0 {
		m.picker.cursor = loaded
	}
	m.mode = modeHistory
}

func (m *Model) openConfigs() {
	m.picker = picker{title: "API configurations"}
	items := m.configItems()
	m.picker.setItems(items)
	for i, it := range items {
		if it.active {
			m.picker.cursor = i
		}
	}
	m.mode = modeConfigs
}

func (m Model) historyItems() []pickerItem {
	records := m.history.Records()
	loaded := m.history.Loaded()
	items := make([]pickerItem, len(records))
	for i, r := range records {
		items[i] = pickerItem{
			id:     r.ID,
			title:  r.Title,
			detail: fmt.Sprintf("%s · %d messages", r.UpdatedAt.Format("2006-01-02 15:04"), len(r.Messages)),
			active: i == loaded,
		}
	}
	return items
}

func (m Model) configItems() []pickerItem {
	selected := m.configs.SelectedID()
	list := m.configs.List()
	items := make([]pickerItem, len(list))
	for i, c := range list {
		items[i] = pickerItem{
			id:     c.ID,
			title:  c.Label(),
			detail: fmt.Sprintf("%s · %s", c.Provider, c.Model),
			active: c.ID == selected,
		}
	}
	return items
}

func (m *Model) updatePicker(msg tea.KeyMsg) {
	switch msg.String() {
	case "esc", "ctrl+c", "q":
		m.mode = modeChat
	case "up", "k":
		m.picker.move(-1)
	case "down", "j":
		m.picker.move(1)
	case "enter":
		it, ok := m.picker.selected()
		if !ok {
			return
		}
		var err error
		if m.mode == modeHistory {
			err = m.ctrl.OpenConversation(m.picker.cursor)
		} else {
			err = m.configs.Select(it.id)
		}
		if err != nil {
			m.status.Notify(err.Error())
		}
		m.mode = modeChat
		m.refresh()
	case "d", "delete":
		it, ok := m.picker.selected()
		if !ok {
			return
		}
		if m.mode == modeHistory {
			if err := m.history.Delete(m.picker.cursor); err != nil {
				m.status.Notify(err.Error())
			}
			m.picker.setItems(m.historyItems())
		} else {
			if err := m.configs.Delete(it.id); err != nil {
				m.status.Notify(err.Error())
			}
			m.picker.setItems(m.configItems())
		}
	}
}

func (m Model) lastAssistantID() string {
	msgs := m.state.Snapshot()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == models.SenderAssistant {
			return msgs[i].ID
		}
	}
	return ""
}

// refresh re-renders the transcript into the viewport
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	if !m.state.UserScrolledAway() {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessages() string {
	bubbleWidth := max(m.viewport.Width-6, 20)
	streaming := m.state.StreamingID()

	var sb strings.Builder
	for i, msg := range m.state.Snapshot() {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch msg.Sender {
		case models.SenderUser:
			sb.WriteString(userLabelStyle.Render("● You"))
			sb.WriteString("\n")
			sb.WriteString(userBubbleStyle.Width(bubbleWidth).Render(msg.Text))

		case models.SenderSystem:
			sb.WriteString(systemStyle.Render(msg.Text))

		default:
			sb.WriteString(assistantLabelStyle.Render("✦ Assistant"))
			sb.WriteString("\n")
			sb.WriteString(m.renderAssistant(msg, bubbleWidth, msg.ID == streaming))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderAssistant(msg models.Message, width int, streaming bool) string {
	if msg.IsUntouchedPlaceholder() {
		return m.spinner.View() + loadingStyle.Render(" waiting for the model")
	}
	if msg.IsError {
		return errorBubbleStyle.Width(width).Render(msg.Text)
	}

	var sb strings.Builder
	flags := m.state.Flags(msg.ID)
	if msg.Reasoning != "" {
		if flags.ReasoningExpanded || (streaming && !flags.ReasoningComplete) {
			sb.WriteString(reasoningStyle.Width(width - 4).Render(msg.Reasoning))
		} else {
			sb.WriteString(hintStyle.Render("  reasoning hidden (ctrl+t to show)"))
		}
		sb.WriteString("\n")
	}

	if msg.Text != "" {
		body := m.markdown(msg.ID, msg.Text, width-4)
		if streaming {
			body += " " + m.spinner.View()
		}
		sb.WriteString(assistantBubbleStyle.Width(width).Render(body))
	} else if streaming {
		sb.WriteString(m.spinner.View() + loadingStyle.Render(" thinking"))
	}
	return sb.String()
}

// markdown renders text once per content and width
func (m *Model) markdown(id, text string, width int) string {
	if c, ok := m.cache[id]; ok && c.text == text && c.width == width {
		return c.out
	}
	out := render.MarkdownOrPlain(text, m.opts.WithWidth(width))
	m.cache[id] = cachedRender{text: text, width: width, out: out}
	return out
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.mode != modeChat {
		return m.picker.view(m.width)
	}

	contentWidth := max(m.width-4, 20)
	sections := []string{
		headerStyle.Width(contentWidth).Render(m.renderHeader()),
	}

	content := m.viewport.View()
	if m.state.Len() == 0 {
		content = m.renderWelcome()
	}
	sections = append(sections, messagesAreaStyle.Width(contentWidth).Height(m.viewport.Height).Render(content))

	input := lipgloss.JoinVertical(lipgloss.Left, inputLabelStyle.Render("You"), m.textarea.View())
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))
	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	parts := []string{titleStyle.Render("✦ llmchat")}
	if cfg, ok := m.configs.Selected(); ok {
		parts = append(parts, hintStyle.Render("  •  "), subtitleStyle.Render(cfg.Label()+" · "+cfg.Model))
	} else {
		parts = append(parts, hintStyle.Render("  •  "), noticeStyle.Render("no API configuration (ctrl+k)"))
	}
	if m.state.IsCalling() {
		parts = append(parts, hintStyle.Render("  •  "), loadingStyle.Render("streaming"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (m Model) renderWelcome() string {
	lines := []string{
		titleStyle.Render("✦ Start a conversation"),
		"",
		subtitleStyle.Render("Type a message below and press Enter"),
	}
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (m Model) renderStatusBar(width int) string {
	if text := m.status.Text(); text != "" {
		return statusBarStyle.Width(width).Render(noticeStyle.Render(text))
	}
	keys := [][2]string{{"Enter", "Send"}, {"Esc", "Quit"}}
	if m.state.IsCalling() {
		keys[1] = [2]string{"Esc", "Stop"}
	}
	keys = append(keys,
		[2]string{"^R", "Regenerate"},
		[2]string{"^N", "New"},
		[2]string{"^H", "History"},
		[2]string{"^K", "API"},
		[2]string{"^T", "Reasoning"},
	)
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(shortcuts(keys))
}

// Run starts the chat TUI and returns when the user quits
func Run(o Options) error {
	p := tea.NewProgram(
		NewModel(o),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	o.Controller.Close()
	return err
}
