package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vendbench/internal/llm"
)

func userEntry(seq int, content string, dayReport bool) logEntry {
	return logEntry{Seq: seq, Msg: llm.Message{Role: llm.RoleUser, Content: content}, DayReport: dayReport}
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := newWindow(70)
	filler := strings.Repeat("x", 100) // ~29 tokens each

	w.append(userEntry(1, "A"+filler, false))
	w.append(userEntry(2, "B"+filler, false))
	w.append(userEntry(3, "C"+filler, false))

	msgs := w.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "B")
	assert.Contains(t, msgs[1].Content, "C")
}

func TestWindowProtectsLatestDayReport(t *testing.T) {
	w := newWindow(70)
	filler := strings.Repeat("x", 100)

	w.append(userEntry(1, "report"+filler, true))
	w.append(userEntry(2, "B"+filler, false))
	w.append(userEntry(3, "C"+filler, false))

	var contents []string
	for _, m := range w.messages() {
		contents = append(contents, m.Content[:1])
	}
	assert.Contains(t, contents, "r", "the most recent day report must survive eviction")

	// A newer report releases the old one.
	w.append(userEntry(4, "fresh-report"+filler, true))
	w.append(userEntry(5, "E"+filler, false))
	fresh, stale := false, false
	for _, m := range w.messages() {
		if strings.HasPrefix(m.Content, "fresh-report") {
			fresh = true
		} else if strings.HasPrefix(m.Content, "report") {
			stale = true
		}
	}
	assert.True(t, fresh, "the newest day report must survive")
	assert.False(t, stale, "a superseded report is ordinary evictable history")
}

func TestWindowNeverEvictsNewestEntry(t *testing.T) {
	w := newWindow(30)
	filler := strings.Repeat("x", 100)

	w.append(userEntry(1, "report"+filler, true))
	w.append(userEntry(2, "old"+filler, false))
	w.append(userEntry(3, "new"+filler, false))

	// Tiny budget with the protected report at the front: older history
	// goes first, and the just-appended message survives even over budget.
	msgs := w.messages()
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "report"))
	assert.True(t, strings.HasPrefix(msgs[1].Content, "new"))
}

func TestWindowKeepsAtLeastOneEntry(t *testing.T) {
	w := newWindow(1)
	w.append(userEntry(1, strings.Repeat("x", 400), false))
	w.append(userEntry(2, strings.Repeat("y", 400), false))
	require.Len(t, w.messages(), 1)
}

func TestWindowRewritesDanglingToolResults(t *testing.T) {
	w := newWindow(100000)
	w.append(logEntry{Seq: 1, Msg: llm.Message{
		Role: llm.RoleTool,
		ToolResult: &llm.ToolResult{ToolCallID: "evicted-call", Content: "balance is $500"},
	}})
	w.append(logEntry{Seq: 2, Msg: llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "live-call", Name: "get_money_balance"}},
	}})
	w.append(logEntry{Seq: 3, Msg: llm.Message{
		Role: llm.RoleTool,
		ToolResult: &llm.ToolResult{ToolCallID: "live-call", Content: "balance is $498"},
	}})

	msgs := w.messages()
	require.Len(t, msgs, 3)

	// The orphaned result becomes plain user text.
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "balance is $500")
	assert.Nil(t, msgs[0].ToolResult)

	// The paired result keeps its wire shape.
	assert.Equal(t, llm.RoleTool, msgs[2].Role)
	require.NotNil(t, msgs[2].ToolResult)
	assert.Equal(t, "live-call", msgs[2].ToolResult.ToolCallID)
}
