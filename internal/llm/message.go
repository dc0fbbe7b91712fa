package llm

import (
	"context"
	"strings"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Op is the logical operation a request performs.
type Op string

const (
	OpGenerate  Op = "generate"
	OpChat      Op = "chat"
	OpAsk       Op = "ask"
	OpExplain   Op = "explain"
	OpReview    Op = "review"
	OpFix       Op = "fix"
	OpTest      Op = "test"
	OpCommit    Op = "commit"
	OpDoc       Op = "doc"
	OpRefactor  Op = "refactor"
	OpConvert   Op = "convert"
	OpOptimize  Op = "optimize"
	OpDiff      Op = "diff"
	OpSummarize Op = "summarize"
)

// Generative reports whether the operation produces code rather than prose.
func (o Op) Generative() bool {
	switch o {
	case OpGenerate, OpFix, OpTest, OpDoc, OpRefactor, OpConvert, OpOptimize:
		return true
	}
	return false
}

// Request is a provider-neutral model request.
type Request struct {
	Op       Op
	System   string
	Messages []Message
	// Context is optional code context attached to the last user message.
	Context string
	// Language is the desired output language, if any.
	Language  string
	MaxTokens int
}

// Prompt returns the content of the last user message.
func (r Request) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Size returns the number of prompt bytes the request sends.
func (r Request) Size() int {
	n := len(r.System) + len(r.Context)
	for _, m := range r.Messages {
		n += len(m.Content)
	}
	return n
}

// EstimateTokens approximates a token count at four bytes per token.
func EstimateTokens(n int) int {
	return (n + 3) / 4
}

// withContext returns the messages with Context folded into the last user
// message, for backends that have no separate context field.
func (r Request) withContext() []Message {
	msgs := make([]Message, 0, len(r.Messages))
	msgs = append(msgs, r.Messages...)
	if r.Context == "" {
		return msgs
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "user" {
			continue
		}
		var b strings.Builder
		b.WriteString(msgs[i].Content)
		b.WriteString("\n\nContext:\n```")
		b.WriteString(r.Language)
		b.WriteString("\n")
		b.WriteString(r.Context)
		b.WriteString("\n```")
		msgs[i].Content = b.String()
		break
	}
	return msgs
}

// Usage reports token counts when the backend provides them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// FragmentReader yields response text incrementally. Next returns io.EOF
// only after the backend's end marker; a body that ends first yields a
// retryable *ProviderError wrapping ErrTruncated.
type FragmentReader interface {
	Next() (string, error)
	Usage() Usage
	Close() error
}

// Backend is one AI provider.
type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (FragmentReader, error)
}
