// Package llm wraps the language-model collaborator behind a narrow
// provider interface. The simulation only depends on Complete; everything
// else (endpoints, retries, tool-use wire format) stays inside.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDefinition describes one callable tool for the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of a dispatched tool call, echoed back to the
// model on the next turn.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Message is one conversation entry. Assistant messages may carry tool
// calls; tool messages carry exactly one result.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// CompletionRequest is a full model invocation.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionResponse is the model's reply: text, zero or more tool calls,
// and the stop reason.
type CompletionResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// Provider is the model inference collaborator.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// retry policy for collaborator failures: bounded attempts with doubling
// backoff, then the error surfaces to the caller as a tool failure.
const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
)

// CompleteWithRetry calls provider.Complete with the standard retry policy.
func CompleteWithRetry(ctx context.Context, p Provider, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return CompletionResponse{}, lastErr
}
