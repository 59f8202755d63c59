package agent

import (
	"github.com/talgya/vendbench/internal/llm"
)

// logEntry is one message in the append-only conversation log.
type logEntry struct {
	Seq       int
	Msg       llm.Message
	DayReport bool
}

// window maintains the bounded active view over the append-only log.
// Eviction drops the oldest non-system messages first and never drops
// the most recent day report. The system prompt lives outside the window
// entirely (it rides the request's SystemPrompt field).
type window struct {
	budget  int // token budget
	entries []logEntry
	tokens  int
}

// estimateTokens approximates token count at ~4 characters per token.
func estimateTokens(m llm.Message) int {
	n := len(m.Content)
	for _, tc := range m.ToolCalls {
		n += len(tc.Name) + len(tc.Input)
	}
	if m.ToolResult != nil {
		n += len(m.ToolResult.Content)
	}
	return n/4 + 4
}

func newWindow(budget int) *window {
	return &window{budget: budget}
}

// append adds an entry and evicts from the front until the window fits
// the budget again.
func (w *window) append(e logEntry) {
	w.entries = append(w.entries, e)
	w.tokens += estimateTokens(e.Msg)
	w.evict()
}

func (w *window) evict() {
	latestReport := -1
	for i := len(w.entries) - 1; i >= 0; i-- {
		if w.entries[i].DayReport {
			latestReport = i
			break
		}
	}

	for w.tokens > w.budget {
		idx := 0
		if idx == latestReport {
			idx++
		}
		// Only the protected report and the newest entry left: running
		// over budget beats dropping the message just appended.
		if idx >= len(w.entries)-1 {
			return
		}
		w.tokens -= estimateTokens(w.entries[idx].Msg)
		w.entries = append(w.entries[:idx], w.entries[idx+1:]...)
		if latestReport > idx {
			latestReport--
		}
	}
}

// messages returns the active window as a model-ready message slice.
// Dangling tool results whose originating assistant turn was evicted are
// rewritten as plain user text so the wire format stays valid.
func (w *window) messages() []llm.Message {
	out := make([]llm.Message, 0, len(w.entries))
	calls := make(map[string]bool)
	for _, e := range w.entries {
		m := e.Msg
		if m.Role == llm.RoleAssistant {
			for _, tc := range m.ToolCalls {
				calls[tc.ID] = true
			}
		}
		if m.Role == llm.RoleTool && m.ToolResult != nil && !calls[m.ToolResult.ToolCallID] {
			m = llm.Message{
				Role:    llm.RoleUser,
				Content: "[earlier tool result]\n" + m.ToolResult.Content,
			}
		}
		out = append(out, m)
	}
	return out
}
