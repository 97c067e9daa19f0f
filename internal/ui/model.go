package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/reinhart/taskAgent/internal/assistant"
)

// --- Mocha Palette & Styles ---

var (
	mochaText    = lipgloss.Color("#cdd6f4") // Main text
	colorSubtext = lipgloss.Color("#9399b2")

	colorCream  = lipgloss.Color("#f5e0dc")
	colorLatte  = lipgloss.Color("#ef9f76") // User
	colorMatcha = lipgloss.Color("#a6e3a1") // Agent
	colorCoffee = lipgloss.Color("#fab387")
	colorMauve  = lipgloss.Color("#cba6f7") // Tools

	colorBorder = lipgloss.Color("#45475a")
	colorActive = lipgloss.Color("#f9e2af")

	styleBase = lipgloss.NewStyle().Foreground(mochaText)

	styleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	styleFocusBorder = styleBorder.
				BorderForeground(colorActive)

	styleUserHeader = lipgloss.NewStyle().
			Foreground(colorLatte).
			Bold(true).
			MarginTop(1)

	styleAgentHeader = lipgloss.NewStyle().
				Foreground(colorMatcha).
				Bold(true).
				MarginTop(1)

	styleTool = lipgloss.NewStyle().
			Foreground(colorMauve)

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f38ba8")).
			Bold(true)

	styleStatus = lipgloss.NewStyle().
			Foreground(colorSubtext).
			Italic(true)
)

const (
	agentName      = "taskAgent"
	requestTimeout = 5 * time.Minute
	maxToolPreview = 200
)

type State int

const (
	StateReady State = iota
	StateThinking
)

// Model is the chat screen. Finished turns are kept in content; the turn in
// flight is rendered from live, which grows as fragments arrive.
type Model struct {
	agent         *assistant.Agent
	textarea      textarea.Model
	viewport      viewport.Model
	spinner       spinner.Model
	state         State
	statusHistory []string

	content *strings.Builder
	live    *strings.Builder
	// stream carries fragments, tool events and the final answer in the
	// order the loop produced them.
	stream chan tea.Msg

	// Layout
	width  int
	height int
}

func NewModel(agent *assistant.Agent) Model {
	vp := viewport.New(80, 20)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorMauve)

	m := Model{
		agent:         agent,
		textarea:      newTextarea(80),
		viewport:      vp,
		spinner:       s,
		state:         StateReady,
		statusHistory: []string{},
		content:       &strings.Builder{},
		live:          &strings.Builder{},
		stream:        make(chan tea.Msg, 128),
	}
	m.content.WriteString(welcome())

	// The loop runs in a tea.Cmd goroutine; hand its output to the UI.
	stream := m.stream
	agent.OnFragment = func(f assistant.Fragment) { stream <- fragmentMsg(f) }
	agent.OnMessage = func(msg assistant.Message) {
		if msg.Role == assistant.RoleTool || len(msg.ToolCalls) > 0 {
			stream <- transcriptMsg(msg)
		}
	}

	m.refresh()
	return m
}

func welcome() string {
	return styleAgentHeader.Render(agentName) + "\n" +
		styleBase.Render("Welcome! Ask me to create, list, update or delete tasks, search your notes, or post to Slack. Type /reset to start over.") + "\n"
}

func newTextarea(width int) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your tasks..."
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 2000

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorSubtext)
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(colorCoffee)
	ta.FocusedStyle.Text = lipgloss.NewStyle().Foreground(colorCream)
	if width > 0 {
		ta.SetWidth(width)
	}
	return ta
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		listenForUpdates(m.agent.Updates()),
		listen(m.stream),
	)
}

type agentMsg struct {
	response string
	err      error
}

type statusMsg string

type fragmentMsg assistant.Fragment

type transcriptMsg assistant.Message

func listenForUpdates(sub <-chan assistant.StatusUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-sub
		if !ok {
			return nil
		}
		return statusMsg(update.Message)
	}
}

func listen(sub <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// processInput runs one turn. The answer goes through the stream so it
// arrives after every fragment of the turn.
func (m Model) processInput(input string) tea.Cmd {
	agent, stream := m.agent, m.stream
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := agent.ProcessMessage(ctx, input)
		stream <- agentMsg{response: resp, err: err}
		return nil
	}
}

// refresh re-renders the viewport from the finished and in-flight text.
func (m *Model) refresh() {
	text := m.content.String()
	if m.live.Len() > 0 {
		text += styleBase.Render(m.live.String()) + "\n"
	}
	m.viewport.SetContent(text)
	m.viewport.GotoBottom()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Viewport border (2) + status (1) + input (3 + 2 border)
		viewportHeight := msg.Height - 9
		if viewportHeight < 5 {
			viewportHeight = 5
		}
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = viewportHeight
		m.textarea.SetWidth(msg.Width - 6)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if msg.Alt || m.state != StateReady {
				break
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				break
			}
			// Recreate the textarea so it does not keep the old line position.
			m.textarea = newTextarea(m.width - 6)

			if input == "/reset" {
				m.agent.Reset()
				m.content.Reset()
				m.content.WriteString(welcome())
				m.refresh()
				return m, nil
			}

			m.content.WriteString(styleUserHeader.Render("You") + "\n" + styleBase.Render(input) + "\n")
			m.live.Reset()
			m.refresh()

			m.state = StateThinking
			m.statusHistory = []string{"Working on it..."}

			return m, m.processInput(input)
		}

	case statusMsg:
		m.statusHistory = append(m.statusHistory, string(msg))
		if len(m.statusHistory) > 3 {
			m.statusHistory = m.statusHistory[len(m.statusHistory)-3:]
		}
		cmds = append(cmds, listenForUpdates(m.agent.Updates()))

	case fragmentMsg:
		m.live.WriteString(msg.Content)
		m.refresh()
		cmds = append(cmds, listen(m.stream))

	case transcriptMsg:
		// Text streamed before a tool call belongs to that assistant message.
		event := assistant.Message(msg)
		if m.live.Len() > 0 {
			m.content.WriteString(styleBase.Render(m.live.String()) + "\n")
			m.live.Reset()
			event.Content = ""
		}
		m.content.WriteString(renderToolEvent(event))
		m.refresh()
		cmds = append(cmds, listen(m.stream))

	case agentMsg:
		m.state = StateReady
		m.live.Reset()

		header := styleAgentHeader.Render(agentName)
		if msg.err != nil {
			m.content.WriteString(header + "\n" + styleError.Render(fmt.Sprintf("Error: %v", msg.err)) + "\n")
		} else {
			m.content.WriteString(header + "\n" + styleBase.Render(msg.response) + "\n")
		}
		width := m.width / 2
		if width < 1 {
			width = 1
		}
		m.content.WriteString("\n" + lipgloss.NewStyle().Foreground(colorBorder).Render(strings.Repeat("─", width)) + "\n")
		m.refresh()
		m.textarea.Focus()
		return m, listen(m.stream)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	// Ignore typing while a request is in flight
	if m.state == StateReady {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func renderToolEvent(msg assistant.Message) string {
	var b strings.Builder
	if msg.Role == assistant.RoleTool {
		b.WriteString(styleTool.Render(fmt.Sprintf("  ← %s: %s", msg.Name, preview(msg.Content))))
		b.WriteString("\n")
		return b.String()
	}
	// Text the model sent alongside the calls.
	if msg.Content != "" {
		b.WriteString(styleBase.Render(msg.Content) + "\n")
	}
	for _, tc := range msg.ToolCalls {
		b.WriteString(styleTool.Render(fmt.Sprintf("  → %s(%s)", tc.Function.Name, preview(tc.Function.Arguments))))
		b.WriteString("\n")
	}
	return b.String()
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxToolPreview {
		return string(r[:maxToolPreview]) + "…"
	}
	return s
}

func (m Model) View() string {
	chatView := styleBorder.Width(m.width - 2).Height(m.viewport.Height + 2).Render(m.viewport.View())

	var statusStr string
	if m.state == StateThinking {
		fullStatus := strings.Join(m.statusHistory, "  ➜  ")
		statusStr = fmt.Sprintf(" %s %s", m.spinner.View(), styleStatus.Render(fullStatus))
	} else {
		statusStr = styleStatus.Render(" Ready.")
	}
	statusView := lipgloss.NewStyle().Width(m.width).PaddingLeft(1).Render(statusStr)

	// The prompt sits outside the textarea so it shows once, not per line.
	prompt := lipgloss.NewStyle().Foreground(colorCoffee).Render("› ")
	inputContent := lipgloss.JoinHorizontal(lipgloss.Top, prompt, m.textarea.View())
	inputView := styleFocusBorder.Width(m.width - 2).Render(inputContent)

	return lipgloss.JoinVertical(lipgloss.Left,
		chatView,
		statusView,
		inputView,
	)
}
