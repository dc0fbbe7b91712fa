package tui

import (
	"context"
	"fmt"
	"strings"

	"nexus/internal/index"
	"nexus/internal/llm"
	"nexus/internal/rag"
	"nexus/internal/router"
	"nexus/internal/search"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type chatState int

const (
	chatIdle chatState = iota
	chatSearching
	chatGenerating
)

const chatHelp = "Commands:\n  /clear  - clear conversation history\n  /exit   - quit\n  /help   - show this help"

type chatModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	history     []llm.Message
	idx         *index.Indexer
	searcher    *search.Searcher
	router      *router.Router
	overview    string
	pending     string
	provider    string
	state       chatState
	k           int
	budget      int
	width       int
	height      int
	initialized bool
}

type chatMessage struct {
	role    string
	content string
}

// retrievedMsg is sent when context retrieval for a question completes.
type retrievedMsg struct {
	chunks []search.Result
	err    error
}

// answerMsg is sent when the provider answers.
type answerMsg struct {
	answer   string
	provider string
	err      error
}

func newChatModel(idx *index.Indexer, s *search.Searcher, r *router.Router, k, budget int) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about your codebase..."
	ti.CharLimit = 2000
	ti.Focus()

	if budget <= 0 {
		budget = rag.DefaultBudget
	}
	m := chatModel{
		spinner:  sp,
		input:    ti,
		idx:      idx,
		searcher: s,
		router:   r,
		k:        k,
		budget:   budget,
		state:    chatIdle,
	}
	if idx != nil {
		m.overview = idx.Overview()
	}
	return m
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Welcome to NEXUS chat! Ask a question about your codebase.\n\nCommands: /help, /clear, /exit"))

	m.input.Width = width - 4

	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func retrieve(s *search.Searcher, question string, k, budget int) tea.Cmd {
	return func() tea.Msg {
		if s == nil {
			return retrievedMsg{}
		}
		results, err := rag.Retrieve(context.Background(), s, question, k)
		if err != nil {
			return retrievedMsg{err: err}
		}
		return retrievedMsg{chunks: rag.Pack(results, budget)}
	}
}

func generate(r *router.Router, req llm.Request) tea.Cmd {
	return func() tea.Msg {
		if r == nil {
			return answerMsg{err: fmt.Errorf("no provider configured")}
		}
		resp, err := r.Complete(context.Background(), req)
		if err != nil {
			return answerMsg{err: err}
		}
		return answerMsg{answer: resp.Text, provider: resp.Provider}
	}
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case retrievedMsg:
		if msg.err != nil {
			m.state = chatIdle
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
			m.refresh()
			return m, nil
		}
		m.state = chatGenerating
		m.refresh()
		req := rag.BuildRequest(llm.OpChat, msg.chunks, m.history, m.pending, m.overview)
		return m, generate(m.router, req)

	case answerMsg:
		m.state = chatIdle
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.provider = msg.provider
			m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.answer})
			m.history = rag.AppendHistory(m.history, m.pending, msg.answer)
		}
		m.pending = ""
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.state != chatIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.state != chatIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.history = nil
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			case "/help":
				m.messages = append(m.messages, chatMessage{role: "system", content: chatHelp})
				m.refresh()
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: question})
			m.pending = question
			m.state = chatSearching
			m.refresh()

			return m, tea.Batch(m.spinner.Tick, retrieve(m.searcher, question, m.k, m.budget))
		}
	}

	if m.state == chatIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *chatModel) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.state != chatIdle {
		label := "Searching..."
		if m.state == chatGenerating {
			label = "Generating..."
		}
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render(label) + "\n")
	}

	return sb.String()
}

func (m chatModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	switch m.state {
	case chatSearching:
		statusText = "searching..."
	case chatGenerating:
		statusText = "generating..."
	}
	if m.provider != "" {
		statusText += " • " + m.provider
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" nexus chat • %s", statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
