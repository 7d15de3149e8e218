package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/reasonchat/reasonchat/internal/chat"
)

// tuiMessage is a rendered chat entry in the interactive UI.
type tuiMessage struct {
	// Role labels the message origin (user, assistant, system).
	Role string
	// Content is the message text displayed in the chat viewport.
	Content string
}

// streamEventMsg carries one chat event into the TUI event loop.
type streamEventMsg struct {
	Event chat.StreamEvent
}

// streamDoneMsg signals that the turn finished, successfully or not.
type streamDoneMsg struct {
	// Result is the finished turn when Err is nil.
	Result chat.Result
	// Err is the cause of a failed turn.
	Err error
}

// tuiModel drives the interactive terminal UI.
type tuiModel struct {
	// conv runs turns and owns the history.
	conv *conversation
	// chatMessages holds display-friendly message entries.
	chatMessages []tuiMessage
	// inputHistory stores prior user inputs for recall.
	inputHistory []string
	// historyIndex tracks the active position in inputHistory.
	historyIndex int
	// historyDraft preserves the in-progress input when browsing history.
	historyDraft string
	// chatView renders the conversation.
	chatView viewport.Model
	// reasoningView renders the reasoning of the latest turn.
	reasoningView viewport.Model
	// input collects user input for new turns.
	input textarea.Model
	// markdownRenderer formats assistant output when available.
	markdownRenderer *glamour.TermRenderer
	// statusText is the bottom status line.
	statusText string
	// chatAutoScroll keeps the chat viewport pinned to the bottom.
	chatAutoScroll bool
	// reasoningAutoScroll keeps the reasoning viewport pinned to the bottom.
	reasoningAutoScroll bool
	// width tracks the terminal width.
	width int
	// height tracks the terminal height.
	height int
	// activePane identifies which pane is focused.
	activePane string
	// running indicates an in-flight request.
	running bool
	// reasoningText and responseText hold the turn being streamed.
	reasoningText string
	responseText  string
	// streamCh delivers stream messages into the update loop.
	streamCh chan tea.Msg
	// cancel cancels the current request when present.
	cancel context.CancelFunc
	// turns counts completed turns; conv.history is owned by the stream
	// goroutine while a turn runs.
	turns int
	// pending is sent as soon as the program starts.
	pending string
	// quitting indicates a user-requested exit.
	quitting bool
}

// runInteractiveTUI starts the full-screen terminal UI for interactive sessions.
func runInteractiveTUI(conv *conversation, initial string) error {
	modelState := newTUIModel(conv, initial)
	program := tea.NewProgram(modelState, tea.WithAltScreen())
	_, err := program.Run()
	if modelState.cancel != nil {
		modelState.cancel()
	}
	return err
}

// newTUIModel constructs the initial TUI model state.
func newTUIModel(conv *conversation, initial string) *tuiModel {
	input := textarea.New()
	input.Placeholder = "Ask something..."
	input.Focus()
	input.CharLimit = 0
	input.Prompt = "> "
	input.SetHeight(3)
	input.SetWidth(20)

	chatView := viewport.New(20, 10)
	reasoningView := viewport.New(20, 10)
	reasoningView.SetContent("No reasoning yet.")

	var renderer *glamour.TermRenderer
	if glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
		renderer = glam
	}

	modelState := &tuiModel{
		conv:                conv,
		chatView:            chatView,
		reasoningView:       reasoningView,
		input:               input,
		markdownRenderer:    renderer,
		statusText:          "Enter: send | Alt+Enter: newline | Ctrl+P/N: history | Tab: panes | Ctrl+C: cancel | Ctrl+Q: quit",
		activePane:          "input",
		chatAutoScroll:      true,
		reasoningAutoScroll: true,
		pending:             strings.TrimSpace(initial),
	}
	modelState.bootstrapHistory()
	return modelState
}

// Init starts the blinking cursor and sends a prompt given on the command line.
func (m *tuiModel) Init() tea.Cmd {
	if m.pending == "" {
		return textarea.Blink
	}
	value := m.pending
	m.pending = ""
	return tea.Batch(textarea.Blink, m.submit(value))
}

// Update handles UI events and streaming updates.
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.applyWindowSize(typed)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case streamEventMsg:
		m.applyEvent(typed.Event)
		return m, m.listenStream()
	case streamDoneMsg:
		m.finishRun(typed)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the full UI layout.
func (m *tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.renderBody(), m.renderInput(), m.renderStatus())
}

// handleKey routes keyboard input and command submission.
func (m *tuiModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		if m.running {
			m.cancelRun("Cancelled.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	case "ctrl+q":
		m.cancelRun("")
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.cyclePane(1)
		return m, nil
	case "shift+tab":
		m.cyclePane(-1)
		return m, nil
	case "esc":
		m.setActivePane("input")
		return m, nil
	case "pgup":
		m.scrollActivePane(-10)
		return m, nil
	case "pgdown":
		m.scrollActivePane(10)
		return m, nil
	case "home":
		m.gotoActivePane(true)
		return m, nil
	case "end":
		m.gotoActivePane(false)
		return m, nil
	case "ctrl+p":
		if m.activePane == "input" {
			m.cycleInputHistory(-1)
			return m, nil
		}
	case "ctrl+n":
		if m.activePane == "input" {
			m.cycleInputHistory(1)
			return m, nil
		}
	}

	if key.Type == tea.KeyEnter {
		if key.Alt {
			m.input.InsertString("\n")
			return m, nil
		}
		return m.submitInput()
	}

	if key.String() == "ctrl+j" {
		m.input.InsertString("\n")
		return m, nil
	}

	if m.activePane != "input" {
		switch key.String() {
		case "up":
			m.scrollActivePane(-1)
			return m, nil
		case "down":
			m.scrollActivePane(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

// submitInput sends the current input as a new user message.
func (m *tuiModel) submitInput() (tea.Model, tea.Cmd) {
	if m.running {
		m.statusText = "Wait for the current response or cancel with Ctrl+C."
		return m, nil
	}
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.statusText = ""
	m.appendInputHistory(value)

	if handled, result := handleSlashCommand(value, m.conv); handled {
		if result.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		if strings.HasPrefix(value, "/clear") {
			m.chatMessages = nil
			m.reasoningText = ""
			m.turns = 0
			m.refreshReasoning()
		}
		m.appendMessage("system", result.Output)
		m.refreshChat()
		return m, nil
	}
	return m, m.submit(value)
}

// submit starts a turn for value.
func (m *tuiModel) submit(value string) tea.Cmd {
	m.appendMessage("user", value)
	m.running = true
	m.reasoningText = ""
	m.responseText = ""
	m.refreshChat()
	m.refreshReasoning()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.statusText = "Thinking..."
	m.streamCh = make(chan tea.Msg, 128)
	return tea.Batch(m.startStream(ctx, value), m.listenStream())
}

// appendInputHistory records an input line for history navigation.
func (m *tuiModel) appendInputHistory(value string) {
	m.inputHistory = append(m.inputHistory, value)
	if len(m.inputHistory) > 200 {
		m.inputHistory = m.inputHistory[len(m.inputHistory)-200:]
	}
	m.historyIndex = len(m.inputHistory)
	m.historyDraft = ""
}

// cycleInputHistory moves the input buffer through stored history entries.
func (m *tuiModel) cycleInputHistory(delta int) {
	if len(m.inputHistory) == 0 {
		return
	}
	if m.historyIndex == len(m.inputHistory) {
		m.historyDraft = m.input.Value()
	}
	next := min(max(m.historyIndex+delta, 0), len(m.inputHistory))
	m.historyIndex = next
	if m.historyIndex == len(m.inputHistory) {
		m.input.SetValue(m.historyDraft)
		return
	}
	m.input.SetValue(m.inputHistory[m.historyIndex])
}

// startStream runs the turn on its own goroutine and feeds events into the
// stream channel. Cancelling ctx stops the stream and closes the connection.
func (m *tuiModel) startStream(ctx context.Context, value string) tea.Cmd {
	conv := m.conv
	streamCh := m.streamCh

	return func() tea.Msg {
		result, err := conv.Turn(ctx, value, func(event chat.StreamEvent) {
			if event.Terminal() {
				return
			}
			select {
			case <-ctx.Done():
			case streamCh <- streamEventMsg{Event: event}:
			}
		})
		streamCh <- streamDoneMsg{Result: result, Err: err}
		close(streamCh)
		return nil
	}
}

// listenStream waits for the next streaming message.
func (m *tuiModel) listenStream() tea.Cmd {
	streamCh := m.streamCh
	if streamCh == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-streamCh
		if !ok {
			return nil
		}
		return msg
	}
}

// applyEvent updates the in-flight reasoning or answer.
func (m *tuiModel) applyEvent(event chat.StreamEvent) {
	switch event.Kind {
	case chat.EventReasoning:
		m.reasoningText = applyText(m.reasoningText, event)
		m.refreshReasoning()
	case chat.EventResponse:
		m.responseText = applyText(m.responseText, event)
		m.refreshChat()
	}
}

func applyText(current string, event chat.StreamEvent) string {
	if event.Replace {
		return event.Text
	}
	return current + event.Text
}

// finishRun appends the final answer, or reports the failure.
func (m *tuiModel) finishRun(done streamDoneMsg) {
	m.running = false
	m.cancel = nil
	m.responseText = ""
	if done.Err != nil {
		m.statusText = formatInteractiveError(done.Err)
		m.refreshChat()
		return
	}
	m.statusText = ""
	m.turns++
	m.reasoningText = done.Result.Reasoning
	m.appendMessage("assistant", done.Result.Response)
	m.refreshChat()
	m.refreshReasoning()
}

// cancelRun cancels an in-flight request and updates status.
func (m *tuiModel) cancelRun(reason string) {
	if m.cancel != nil {
		m.cancel()
	}
	if reason != "" {
		m.statusText = reason
	}
}

// appendMessage adds a new chat message to the display list.
func (m *tuiModel) appendMessage(role string, content string) {
	m.chatMessages = append(m.chatMessages, tuiMessage{Role: role, Content: content})
}

// refreshChat rebuilds the chat viewport content.
func (m *tuiModel) refreshChat() {
	var builder strings.Builder
	for _, msg := range m.chatMessages {
		builder.WriteString(m.renderMessage(msg, false))
		builder.WriteString("\n\n")
	}
	if m.running && m.responseText != "" {
		builder.WriteString(m.renderMessage(tuiMessage{Role: "assistant", Content: m.responseText}, true))
		builder.WriteString("\n\n")
	}
	m.chatView.SetContent(builder.String())
	if m.chatAutoScroll {
		m.chatView.GotoBottom()
	}
}

// refreshReasoning rebuilds the reasoning viewport content.
func (m *tuiModel) refreshReasoning() {
	if m.reasoningText == "" {
		m.reasoningView.SetContent("No reasoning yet.")
		return
	}
	style := lipgloss.NewStyle().Faint(true).Width(max(m.reasoningView.Width, 1))
	m.reasoningView.SetContent(style.Render(m.reasoningText))
	if m.reasoningAutoScroll {
		m.reasoningView.GotoBottom()
	}
}

// bootstrapHistory seeds the chat view with previous session messages.
func (m *tuiModel) bootstrapHistory() {
	history := m.conv.History()
	m.turns = len(history) / 2
	for _, message := range history {
		m.appendMessage(string(message.Role), message.Text())
		if reasoning := message.Reasoning(); reasoning != "" {
			m.reasoningText = reasoning
		}
	}
	m.refreshChat()
	m.refreshReasoning()
}

// applyWindowSize recalculates the layout for a new window size.
func (m *tuiModel) applyWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height() + 2
	bodyHeight := max(m.height-headerHeight-statusHeight-inputHeight, 4)

	reasoningWidth := min(max(28, m.width/3), 72)
	chatWidth := m.width - reasoningWidth - 3
	if chatWidth < 20 {
		chatWidth = 20
		reasoningWidth = max(20, m.width-chatWidth-3)
	}

	m.chatView.Width = chatWidth - 2
	m.chatView.Height = bodyHeight - 3
	m.reasoningView.Width = reasoningWidth - 2
	m.reasoningView.Height = bodyHeight - 3
	m.input.SetWidth(m.width - 4)

	m.refreshChat()
	m.refreshReasoning()
}

// renderHeader builds the top status line.
func (m *tuiModel) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true)
	header := fmt.Sprintf("reasonchat | session %s | model %s", m.conv.sessionID, m.conv.Model())
	if m.running {
		header += " | running"
	}
	return style.Render(padRight(header, m.width))
}

// renderBody composes the conversation and reasoning panes.
func (m *tuiModel) renderBody() string {
	conversationPane := m.renderPane("Conversation", m.chatView.View(), m.chatView.Width+2, m.activePane == "chat")
	reasoningPane := m.renderPane("Reasoning", m.reasoningView.View(), m.reasoningView.Width+2, m.activePane == "reasoning")
	return lipgloss.JoinHorizontal(lipgloss.Top, conversationPane, reasoningPane)
}

// setActivePane updates focus and input state for the requested pane.
func (m *tuiModel) setActivePane(pane string) {
	switch pane {
	case "chat", "reasoning":
		m.activePane = pane
		m.input.Blur()
	default:
		m.activePane = "input"
		m.input.Focus()
	}
}

// cyclePane moves focus between input, chat, and reasoning.
func (m *tuiModel) cyclePane(delta int) {
	order := []string{"input", "chat", "reasoning"}
	index := 0
	for i, name := range order {
		if name == m.activePane {
			index = i
			break
		}
	}
	next := (index + delta) % len(order)
	if next < 0 {
		next += len(order)
	}
	m.setActivePane(order[next])
}

// activeView returns the focused viewport and its auto-scroll flag.
func (m *tuiModel) activeView() (*viewport.Model, *bool) {
	switch m.activePane {
	case "chat":
		return &m.chatView, &m.chatAutoScroll
	case "reasoning":
		return &m.reasoningView, &m.reasoningAutoScroll
	default:
		return nil, nil
	}
}

// scrollActivePane scrolls the currently focused pane.
func (m *tuiModel) scrollActivePane(delta int) {
	view, autoScroll := m.activeView()
	if view == nil {
		return
	}
	*autoScroll = false
	if delta > 0 {
		view.LineDown(delta)
	} else {
		view.LineUp(-delta)
	}
}

// gotoActivePane jumps the focused pane to its top or bottom.
func (m *tuiModel) gotoActivePane(top bool) {
	view, autoScroll := m.activeView()
	if view == nil {
		return
	}
	if top {
		view.GotoTop()
		*autoScroll = false
		return
	}
	view.GotoBottom()
	*autoScroll = true
}

// renderInput returns the input box rendering.
func (m *tuiModel) renderInput() string {
	style := lipgloss.NewStyle().Border(m.border()).Padding(0, 1)
	return style.Render(m.input.View())
}

// renderStatus returns the bottom status line.
func (m *tuiModel) renderStatus() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	text := m.statusText
	if text == "" {
		text = "Ready"
	}
	text = fmt.Sprintf("%s | turns:%d focus:%s", text, m.turns, m.activePane)
	return style.Render(padRight(text, m.width))
}

// renderPane formats a bordered pane with a title.
func (m *tuiModel) renderPane(title string, content string, width int, focused bool) string {
	style := lipgloss.NewStyle().Border(m.border()).Padding(0, 1)
	if focused {
		style = style.BorderForeground(lipgloss.Color("39"))
	}
	header := fmt.Sprintf("[%s]", title)
	pane := lipgloss.JoinVertical(lipgloss.Left, header, content)
	return style.Width(width).Render(pane)
}

// renderMessage formats a chat message for display.
func (m *tuiModel) renderMessage(message tuiMessage, streaming bool) string {
	label := strings.ToUpper(message.Role)
	content := message.Content
	style := lipgloss.NewStyle()
	switch message.Role {
	case "user":
		style = style.Foreground(lipgloss.Color("39")).Bold(true)
		label = "YOU"
	case "assistant":
		style = style.Foreground(lipgloss.Color("10")).Bold(true)
		label = "ASSISTANT"
	case "system":
		style = style.Foreground(lipgloss.Color("3"))
		label = "SYSTEM"
	}
	if !streaming && message.Role == "assistant" {
		content = m.renderMarkdown(content)
	}
	return fmt.Sprintf("%s\n%s", style.Render(label+":"), content)
}

// renderMarkdown converts markdown into terminal-friendly output when possible.
func (m *tuiModel) renderMarkdown(content string) string {
	if m.markdownRenderer == nil {
		return content
	}
	rendered, err := m.markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

// border defines a simple ASCII border.
func (m *tuiModel) border() lipgloss.Border {
	return lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}
}

// padRight pads a string with spaces to the target width.
func padRight(value string, width int) string {
	runes := []rune(value)
	if len(runes) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(runes))
}
