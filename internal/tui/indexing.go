package tui

import (
	"context"
	"errors"
	"fmt"

	"nexus/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type indexingModel struct {
	spinner   spinner.Model
	phase     string
	processed int
	total     int
	done      bool
	stats     *index.Stats
	err       error
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner: sp,
		phase:   "scanning",
	}
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	stats *index.Stats
	err   error
}

// indexProgressMsg is sent periodically during indexing.
type indexProgressMsg struct {
	phase     string
	processed int
	total     int
}

func runIndex(cfg Config, summarize bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		idx, err := index.Open(ctx, cfg.Index)
		if err != nil {
			return indexDoneMsg{err: err}
		}
		defer idx.Close()

		stats, err := idx.Index(ctx, index.Options{
			Summarize: summarize,
			OnProgress: func(phase string, processed, total int) {
				cfg.program.send(indexProgressMsg{phase: phase, processed: processed, total: total})
			},
		})
		return indexDoneMsg{stats: stats, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.phase = msg.phase
		m.processed = msg.processed
		m.total = msg.total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Indexing") + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n"
			var ie *index.IndexError
			if errors.As(m.err, &ie) && ie.Hint() != "" {
				s += dimStyle.Render("  hint: "+ie.Hint()) + "\n"
			}
			s += "\n" + dimStyle.Render("  Press Enter to continue to chat anyway, or q to quit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Indexing complete!") + "\n\n"
		if m.stats != nil {
			s += fmt.Sprintf("  Files: %d total, %d indexed, %d unchanged, %d removed\n",
				m.stats.FilesTotal, m.stats.FilesIndexed, m.stats.FilesUnchanged, m.stats.FilesDeleted)
			s += fmt.Sprintf("  Chunks: %d\n", m.stats.ChunksTotal)
			if n := m.stats.RecoverableErrors + m.stats.FatalErrors; n > 0 {
				s += warnStyle.Render(fmt.Sprintf("  %d files had errors", n)) + "\n"
			}
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter to start chatting") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d files processed\n", m.processed, m.total)
	}
	s += "\n"
	s += dimStyle.Render("  This may take a while for large codebases...") + "\n"
	return s
}
