package tui

import (
	"context"

	"nexus/internal/index"
	"nexus/internal/llm"
	"nexus/internal/router"
	"nexus/internal/search"

	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSetup
	ViewIndexing
	ViewChat
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Config holds configuration passed from the CLI layer.
type Config struct {
	// Index configures the repository index. Its Router is replaced when
	// the user picks a local model during setup.
	Index index.Config
	// Search tunes retrieval for chat answers.
	Search search.Options
	// K is the number of chunks retrieved per question.
	K int
	// Budget caps the estimated tokens of packed context.
	Budget int
	// Router answers chat questions.
	Router *router.Router
	// Ollama lists local models for setup. Nil skips model selection.
	Ollama *llm.OllamaChat
	// LocalModel is the Ollama chat model currently configured.
	LocalModel string
	// NewRouter rebuilds the router for a different local model.
	NewRouter func(localModel string) *router.Router

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	welcome  welcomeModel
	setup    setupModel
	indexing indexingModel
	chat     chatModel
	err      error
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	if cfg.K <= 0 {
		cfg.K = 10
	}
	return Model{
		state:  ViewWelcome,
		config: cfg,
	}
}

func (m Model) Init() tea.Cmd {
	return checkIndex(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewChat {
			var c tea.Cmd
			m.chat, c = m.chat.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewChat {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.welcome.ready {
			if m.welcome.status == indexReady {
				return m, m.transitionToChat()
			}
			m.state = ViewSetup
			m.setup = setupModel{}
			return m, fetchModels(m.config.Ollama)
		}

	case ViewSetup:
		m.setup, cmd = m.setup.Update(msg, m.config)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.setup.loaded {
			if m.setup.advancePage() {
				return m, nil
			}
			if sel := m.setup.selectedModel(); sel != "" && sel != m.config.LocalModel && m.config.NewRouter != nil {
				m.config.LocalModel = sel
				m.config.Router = m.config.NewRouter(sel)
				m.config.Index.Router = m.config.Router
			}
			m.state = ViewIndexing
			m.indexing = newIndexingModel()
			return m, tea.Batch(m.indexing.spinner.Tick, runIndex(m.config, m.setup.summarize()))
		}

	case ViewIndexing:
		m.indexing, cmd = m.indexing.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.indexing.done {
			return m, m.transitionToChat()
		}

	case ViewChat:
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) transitionToChat() tea.Cmd {
	idx, err := index.Open(context.Background(), m.config.Index)
	if err != nil {
		m.err = err
		return nil
	}

	s := search.New(idx.Store(), idx.Embedder(), m.config.Search)
	m.chat = newChatModel(idx, s, m.config.Router, m.config.K, m.config.Budget)
	m.chat.initViewport(m.width, m.height)
	m.state = ViewChat
	return nil
}

func (m Model) close() {
	if m.chat.idx != nil {
		m.chat.idx.Close()
	}
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewSetup:
		return m.setup.View(m.width, m.height)
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	case ViewChat:
		return m.chat.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program.
func Run(cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.close()
	}
	return err
}
