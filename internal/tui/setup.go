package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nexus/internal/llm"

	tea "github.com/charmbracelet/bubbletea"
)

type setupPage int

const (
	setupPageModel setupPage = iota
	setupPageSummaries
)

var summaryChoices = []string{
	"No, index code only",
	"Yes, summarize files and write overview.md",
}

type setupModel struct {
	models        []string
	modelCursor   int
	summaryCursor int
	page          setupPage
	loaded        bool
	err           error
}

// fetchModelsMsg is sent when models have been fetched from Ollama.
type fetchModelsMsg struct {
	models []string
	err    error
}

var errNoOllama = errors.New("local models not configured")

func fetchModels(ollama *llm.OllamaChat) tea.Cmd {
	return func() tea.Msg {
		if ollama == nil {
			return fetchModelsMsg{err: errNoOllama}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		models, err := ollama.ListModels(ctx)
		return fetchModelsMsg{models: models, err: err}
	}
}

func (m setupModel) Update(msg tea.Msg, cfg Config) (setupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchModelsMsg:
		m.loaded = true
		m.err = msg.err
		m.models = msg.models
		for i, name := range m.models {
			if name == cfg.LocalModel {
				m.modelCursor = i
				break
			}
		}
		if m.err != nil || len(m.models) == 0 {
			m.page = setupPageSummaries
		}

	case tea.KeyMsg:
		if !m.loaded {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.page == setupPageModel && m.modelCursor > 0 {
				m.modelCursor--
			} else if m.page == setupPageSummaries && m.summaryCursor > 0 {
				m.summaryCursor--
			}
		case "down", "j":
			if m.page == setupPageModel && m.modelCursor < len(m.models)-1 {
				m.modelCursor++
			} else if m.page == setupPageSummaries && m.summaryCursor < len(summaryChoices)-1 {
				m.summaryCursor++
			}
		}
	}
	return m, nil
}

// advancePage moves from the model page to the summaries page. Returns true
// if it advanced.
func (m *setupModel) advancePage() bool {
	if m.page == setupPageModel {
		m.page = setupPageSummaries
		return true
	}
	return false
}

func (m setupModel) View(width, height int) string {
	s := "\n"

	if !m.loaded {
		s += titleStyle.Render("  Setup") + "\n\n"
		s += dimStyle.Render("  Fetching models from Ollama...") + "\n"
		return s
	}

	if m.page == setupPageModel {
		s += titleStyle.Render("  Select Local Model") + "\n"
		s += dimStyle.Render("  Used when no API key is set or local models are preferred") + "\n\n"
		for i, name := range m.models {
			cursor := "  "
			style := listItemStyle
			if i == m.modelCursor {
				cursor = "▸ "
				style = selectedStyle
			}
			s += fmt.Sprintf("  %s%s\n", cursor, style.Render(name))
		}
		s += "\n"
		s += helpStyle.Render("  ↑/↓ navigate • Enter select") + "\n"
		return s
	}

	s += titleStyle.Render("  Summaries") + "\n"
	switch {
	case errors.Is(m.err, errNoOllama):
	case m.err != nil:
		s += dimStyle.Render(fmt.Sprintf("  Ollama unavailable (%v); hosted providers will be used.", m.err)) + "\n"
	case len(m.models) == 0:
		s += dimStyle.Render("  No local models installed. Pull one with: ollama pull codellama") + "\n"
	}
	s += dimStyle.Render("  Generate per-file summaries and a project overview? This calls the AI provider once per file.") + "\n\n"
	for i, choice := range summaryChoices {
		cursor := "  "
		style := listItemStyle
		if i == m.summaryCursor {
			cursor = "▸ "
			style = selectedStyle
		}
		s += fmt.Sprintf("  %s%s\n", cursor, style.Render(choice))
	}
	s += "\n"
	s += helpStyle.Render("  ↑/↓ navigate • Enter start indexing") + "\n"
	return s
}

func (m setupModel) selectedModel() string {
	if len(m.models) > 0 && m.modelCursor < len(m.models) {
		return m.models[m.modelCursor]
	}
	return ""
}

func (m setupModel) summarize() bool {
	return m.summaryCursor == 1
}
