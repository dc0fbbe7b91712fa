package cmd

import (
	"context"
	"fmt"
	"strings"

	"nexus/internal/index"
	"nexus/internal/llm"
	"nexus/internal/rag"
	"nexus/internal/router"
	"nexus/internal/search"

	"github.com/spf13/cobra"
)

var flagK int

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat about your codebase",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess := newSession(ctx)
		defer sess.close()

		out.Header("Chat")
		out.Status("type /help for commands, /exit to quit")

		if len(args) > 0 {
			if err := sess.ask(ctx, llm.OpChat, strings.Join(args, " ")); err != nil {
				return err
			}
		}

		for {
			fmt.Fprint(out.Out, "> ")
			line, err := stdin.ReadString('\n')
			if err != nil && line == "" {
				return nil
			}
			switch line = strings.TrimSpace(line); line {
			case "":
				continue
			case "/exit", "/quit":
				return nil
			case "/clear":
				sess.history = nil
				out.Status("Conversation cleared.")
				continue
			case "/help":
				out.Markdown("Commands:\n\n- `/clear` clear conversation history\n- `/exit` quit\n- `/help` show this help")
				continue
			}
			if err := sess.ask(ctx, llm.OpChat, line); err != nil {
				if ctx.Err() != nil {
					return err
				}
				kind, hint := classify(err)
				out.Error(kind, err.Error(), hint)
			}
		}
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question about your codebase",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess := newSession(ctx)
		defer sess.close()
		return sess.ask(ctx, llm.OpAsk, strings.Join(args, " "))
	},
}

// session holds retrieval state for ask and chat. Without an index, the
// questions go to the provider without code context.
type session struct {
	idx      *index.Indexer
	searcher *search.Searcher
	router   *router.Router
	history  []llm.Message
}

func newSession(ctx context.Context) *session {
	s := &session{router: sharedRouter()}
	idx, err := openIndex(ctx)
	if err != nil {
		out.Warn("no code context: %v (run 'nexus index')", err)
		return s
	}
	s.idx = idx
	s.searcher = search.New(idx.Store(), idx.Embedder(), searchOptions())
	return s
}

func (s *session) ask(ctx context.Context, op llm.Op, question string) error {
	var (
		chunks   []search.Result
		overview string
	)
	if s.searcher != nil {
		results, err := rag.Retrieve(ctx, s.searcher, question, flagK)
		if err != nil {
			return err
		}
		chunks = rag.Pack(results, rag.DefaultBudget)
		overview = s.idx.Overview()
		out.Status("%d relevant chunk(s)", len(chunks))
	}

	resp, err := streamWith(ctx, s.router, rag.BuildRequest(op, chunks, s.history, question, overview))
	if err != nil {
		return err
	}
	s.history = rag.AppendHistory(s.history, question, resp.Text)
	return nil
}

func (s *session) close() {
	if s.idx != nil {
		s.idx.Close()
	}
}

func init() {
	chatCmd.Flags().IntVar(&flagK, "k", 10, "number of chunks to retrieve per question")
	askCmd.Flags().IntVar(&flagK, "k", 10, "number of chunks to retrieve")
	rootCmd.AddCommand(chatCmd, askCmd)
}
