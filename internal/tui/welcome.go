package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nexus/internal/index"
	"nexus/internal/llm"

	tea "github.com/charmbracelet/bubbletea"
)

type indexStatus int

const (
	indexNotFound indexStatus = iota
	indexReady
	indexStale
)

type welcomeModel struct {
	status      indexStatus
	staleReason string
	summary     *index.Summary
	provider    string
	providerErr error
	err         error
	ready       bool
}

// checkIndexMsg is sent after checking the index status.
type checkIndexMsg struct {
	status      indexStatus
	staleReason string
	summary     *index.Summary
	provider    string
	providerErr error
	err         error
}

func checkIndex(cfg Config) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg := checkIndexMsg{status: indexNotFound}
		if cfg.Router != nil {
			msg.provider, msg.providerErr = cfg.Router.Select(ctx, llm.Request{Op: llm.OpChat})
		}

		dir := cfg.Index.Dir
		if dir == "" {
			dir = index.DefaultDir(cfg.Index.Root)
		}
		if _, err := os.Stat(filepath.Join(dir, index.DBFile)); os.IsNotExist(err) {
			return msg
		}

		idx, err := index.Open(ctx, cfg.Index)
		if err != nil {
			msg.err = err
			return msg
		}
		defer idx.Close()

		sum, err := idx.Describe(ctx)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.summary = sum
		if sum.Model == "" || sum.Files == 0 {
			return msg
		}

		if want := idx.Embedder().Model(); sum.Model != want {
			msg.status = indexStale
			msg.staleReason = fmt.Sprintf("embedding model changed: %s → %s", sum.Model, want)
			return msg
		}
		msg.status = indexReady
		return msg
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkIndexMsg:
		m.status = msg.status
		m.staleReason = msg.staleReason
		m.summary = msg.summary
		m.provider = msg.provider
		m.providerErr = msg.providerErr
		m.err = msg.err
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ NEXUS") + "\n"
	s += subtitleStyle.Render("  AI code assistant with semantic search over your repository") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking index...") + "\n"
		return s
	}

	switch m.status {
	case indexReady:
		s += successStyle.Render("  ✓ Index ready") + "\n"
		if m.summary != nil {
			s += dimStyle.Render(fmt.Sprintf("    %d files, %d chunks, indexed %s", m.summary.Files, m.summary.Chunks, m.summary.IndexedAt)) + "\n"
		}
	case indexNotFound:
		s += warnStyle.Render("  ✗ No index found") + "\n"
		if m.err != nil {
			s += dimStyle.Render("    "+m.err.Error()) + "\n"
		}
	case indexStale:
		s += warnStyle.Render("  ⚠ Index stale") + "\n"
		s += dimStyle.Render("    "+m.staleReason) + "\n"
	}

	switch {
	case m.providerErr != nil:
		s += errorStyle.Render("  ✗ No provider available") + "\n"
		s += dimStyle.Render("    "+m.providerErr.Error()) + "\n"
	case m.provider != "":
		s += successStyle.Render("  ✓ Provider: "+m.provider) + "\n"
	}

	s += "\n"
	s += dimStyle.Render("  Press Enter to continue") + "\n"
	return s
}
