package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/talgya/vendbench/internal/llm"
)

// ChatOverTranscript answers one question from a sub-agent's retained
// transcript without re-running any of its actions. The transcript is
// flattened to text and presented as context for a single exchange.
func ChatOverTranscript(ctx context.Context, provider llm.Provider, model string, transcript []llm.Message, question string) (string, error) {
	if len(transcript) == 0 {
		return "", fmt.Errorf("no sub-agent transcript available")
	}

	resp, err := llm.CompleteWithRetry(ctx, provider, llm.CompletionRequest{
		Model: model,
		SystemPrompt: "You are a sub-agent being interviewed about work you already completed. " +
			"Answer only from your transcript below. Do not invent actions you did not take.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "YOUR TRANSCRIPT:\n" + FlattenTranscript(transcript)},
			{Role: llm.RoleUser, Content: question},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("sub-agent chat: %w", err)
	}
	return resp.Content, nil
}

// FlattenTranscript renders a message log as readable text.
func FlattenTranscript(transcript []llm.Message) string {
	var b strings.Builder
	for _, m := range transcript {
		switch {
		case m.ToolResult != nil:
			fmt.Fprintf(&b, "TOOL RESULT: %s\n", m.ToolResult.Content)
		case len(m.ToolCalls) > 0:
			if m.Content != "" {
				fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
			}
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "TOOL CALL: %s(%s)\n", tc.Name, string(tc.Input))
			}
		default:
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
		}
	}
	return b.String()
}
