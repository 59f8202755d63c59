package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/vendbench/internal/llm"
)

// Recorder persists conversation messages as they are appended. The log
// is append-only; the recorder never sees evictions because evictions
// only shrink the active window, not the log.
type Recorder interface {
	RecordMessage(seq int, role, content string, dayReport bool) error
}

// Config tunes one agent loop instance.
type Config struct {
	Name          string // for log lines
	SystemPrompt  string
	Model         string
	MaxTokens     int    // completion budget per call
	ContextBudget int    // active window token budget
	MaxMessages   int    // hard cap on log length
	LoopPrompt    string // nudge sent when the model stops calling tools
	// StopOnIdle ends the loop when a response carries no tool calls
	// instead of nudging. Sub-agents run this way: a plain answer is
	// their terminal summary.
	StopOnIdle bool
}

// Loop is one conversational agent: an append-only message log, a bounded
// active window, a tool registry, and a termination condition.
type Loop struct {
	cfg      Config
	provider llm.Provider
	registry *Registry
	recorder Recorder

	log    []logEntry
	window *window
	seq    int

	// done is consulted between turns; when it reports true the loop
	// finishes with the given reason.
	done func() (bool, string)

	stopReason string
}

// NewLoop creates a loop. recorder and done may be nil.
func NewLoop(cfg Config, provider llm.Provider, registry *Registry, recorder Recorder, done func() (bool, string)) *Loop {
	if cfg.LoopPrompt == "" {
		cfg.LoopPrompt = "Continue on your mission by using your tools."
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 30000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Loop{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		recorder: recorder,
		window:   newWindow(cfg.ContextBudget),
		done:     done,
	}
}

// append adds a message to the log, the window, and the recorder.
func (l *Loop) append(m llm.Message, dayReport bool) {
	l.seq++
	e := logEntry{Seq: l.seq, Msg: m, DayReport: dayReport}
	l.log = append(l.log, e)
	l.window.append(e)

	if l.recorder != nil {
		content := m.Content
		if m.ToolResult != nil {
			content = m.ToolResult.Content
		}
		if err := l.recorder.RecordMessage(e.Seq, string(m.Role), content, dayReport); err != nil {
			slog.Warn("record message failed", "agent", l.cfg.Name, "seq", e.Seq, "error", err)
		}
	}
}

// AppendUser injects a user-role message (initial instructions, day
// reports delivered outside a tool result).
func (l *Loop) AppendUser(content string, dayReport bool) {
	l.append(llm.Message{Role: llm.RoleUser, Content: content}, dayReport)
}

// MessageCount returns the append-only log length.
func (l *Loop) MessageCount() int {
	return len(l.log)
}

// Transcript returns a copy of the full message log in order.
func (l *Loop) Transcript() []llm.Message {
	out := make([]llm.Message, 0, len(l.log))
	for _, e := range l.log {
		out = append(out, e.Msg)
	}
	return out
}

// StopReason reports why Run finished.
func (l *Loop) StopReason() string {
	return l.stopReason
}

// Run drives the loop to termination and returns the agent's final
// assistant message as a summary.
func (l *Loop) Run(ctx context.Context) (string, error) {
	lastAssistant := ""

	for {
		if stop, reason := l.checkDone(); stop {
			l.stopReason = reason
			slog.Info("agent loop finished", "agent", l.cfg.Name, "reason", reason, "messages", len(l.log))
			return lastAssistant, nil
		}

		resp, err := llm.CompleteWithRetry(ctx, l.provider, llm.CompletionRequest{
			Model:        l.cfg.Model,
			SystemPrompt: l.cfg.SystemPrompt,
			Messages:     l.window.messages(),
			Tools:        l.registry.Definitions(),
			MaxTokens:    l.cfg.MaxTokens,
		})
		if err != nil {
			return lastAssistant, fmt.Errorf("model call: %w", err)
		}

		l.append(llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}, false)
		if resp.Content != "" {
			lastAssistant = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			if l.cfg.StopOnIdle {
				l.stopReason = "completed"
				slog.Info("agent loop finished", "agent", l.cfg.Name, "reason", l.stopReason, "messages", len(l.log))
				return lastAssistant, nil
			}
			// No action taken; nudge the agent back to its tools.
			l.AppendUser(l.cfg.LoopPrompt, false)
			continue
		}

		for _, call := range resp.ToolCalls {
			result := l.dispatch(ctx, call)
			l.append(llm.Message{
				Role:       llm.RoleTool,
				ToolResult: &result.res,
			}, result.dayReport)
		}
	}
}

type dispatched struct {
	res       llm.ToolResult
	dayReport bool
}

// dispatch executes one tool call. Every failure becomes legible text for
// the model rather than an aborted loop.
func (l *Loop) dispatch(ctx context.Context, call llm.ToolCall) dispatched {
	tool, ok := l.registry.Lookup(call.Name)
	if !ok {
		return dispatched{res: llm.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("unknown tool %q", call.Name),
			IsError:    true,
		}}
	}

	result, err := tool.Run(ctx, call.Input)
	if err != nil {
		slog.Debug("tool failed", "agent", l.cfg.Name, "tool", call.Name, "error", err)
		return dispatched{res: llm.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("tool %s failed: %s", call.Name, err),
			IsError:    true,
		}}
	}

	slog.Debug("tool executed", "agent", l.cfg.Name, "tool", call.Name)
	return dispatched{
		res: llm.ToolResult{
			ToolCallID: call.ID,
			Content:    result.Content,
		},
		dayReport: result.IsDayReport,
	}
}

func (l *Loop) checkDone() (bool, string) {
	if l.cfg.MaxMessages > 0 && len(l.log) >= l.cfg.MaxMessages {
		return true, "message limit reached"
	}
	if l.done != nil {
		if stop, reason := l.done(); stop {
			return true, reason
		}
	}
	return false, ""
}
