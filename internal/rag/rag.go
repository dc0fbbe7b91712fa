// Package rag turns search results into model requests for ask and chat.
package rag

import (
	"context"
	"fmt"
	"strings"

	"nexus/internal/llm"
	"nexus/internal/search"
)

// DefaultBudget is the token budget for retrieved context.
const DefaultBudget = 6000

// maxHistory is the number of chat messages kept, five exchanges.
const maxHistory = 10

const systemPrompt = `You are NEXUS, a code intelligence assistant. You answer questions about a codebase using the retrieved source code context provided below.

Focus on how, why, and where questions about the code. Explain architecture, data flow, and relationships between components. Reference specific file paths and line numbers when relevant.

Do not generate new code unless explicitly asked. Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// Retrieve runs a similarity query for question.
func Retrieve(ctx context.Context, s *search.Searcher, question string, k int) ([]search.Result, error) {
	results, err := s.Query(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return results, nil
}

// Pack keeps the highest-scoring results whose estimated token cost fits in
// budget. Results arrive sorted by score; packing stops at the first one
// that would overflow so lower-ranked chunks never displace better ones.
func Pack(results []search.Result, budget int) []search.Result {
	used := 0
	for i, r := range results {
		cost := llm.EstimateTokens(len(r.Chunk.Content))
		if used+cost > budget {
			return results[:i]
		}
		used += cost
	}
	return results
}

// BuildRequest constructs the request for op from retrieved chunks,
// conversation history, and the current question.
func BuildRequest(op llm.Op, chunks []search.Result, history []llm.Message, question, overview string) llm.Request {
	sys := systemPrompt
	if overview != "" {
		sys += "\n\n## Project Overview\n\n" + overview
	}

	var msgs []llm.Message
	if len(chunks) > 0 {
		var ctx strings.Builder
		ctx.WriteString("Here is the relevant source code context:\n\n")
		for i, r := range chunks {
			c := r.Chunk
			name := c.Name
			if name == "" {
				name = "(anonymous)"
			}
			fmt.Fprintf(&ctx, "--- Chunk %d: %s [%s %s] (lines %d-%d, %s, score %.2f) ---\n",
				i+1, c.FilePath, c.Kind, name, c.StartLine, c.EndLine, c.Language, r.Score)
			ctx.WriteString(c.Content)
			ctx.WriteString("\n\n")
		}
		msgs = append(msgs,
			llm.Message{Role: "user", Content: ctx.String()},
			llm.Message{Role: "assistant", Content: "I've reviewed the code context. What would you like to know?"},
		)
	}

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})
	return llm.Request{Op: op, System: sys, Messages: msgs}
}

// AppendHistory records one exchange and trims the oldest messages.
func AppendHistory(history []llm.Message, question, answer string) []llm.Message {
	history = append(history,
		llm.Message{Role: "user", Content: question},
		llm.Message{Role: "assistant", Content: answer},
	)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	return history
}
