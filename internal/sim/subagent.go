package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/talgya/vendbench/internal/agent"
)

const subAgentPrompt = `You are a vending machine operations sub-agent. You were delegated a specific task by the business operator. Carry it out using your tools, then state plainly what you did and what you observed. Do not speculate beyond your own actions.`

// SubAgentTools returns the capability-restricted registry a sub-agent
// receives: machine and storage operations plus balance and sales reads.
// No email, no web search, no memory stores, no delegation.
func (r *Run) SubAgentTools() *agent.Registry {
	specs := r.machineToolSpecs()
	specs = append(specs, toolSpec{
		name:        "get_money_balance",
		description: "Check cash on hand and cash in the machine.",
		schema:      agent.NoArgsSchema,
		cost:        DurShort,
		handler: func(_ context.Context, _ json.RawMessage) (string, error) {
			return fmt.Sprintf("Cash on hand: $%.2f\nCash in machine: $%.2f", r.cashOnHand, r.cashInMachine), nil
		},
	}, toolSpec{
		name:        "get_recent_sales",
		description: "Report units sold in the most recently settled day.",
		schema:      agent.NoArgsSchema,
		cost:        DurShort,
		handler: func(_ context.Context, _ json.RawMessage) (string, error) {
			return fmt.Sprintf("Units sold in the last settled day: %d.", r.lastUnitsSold), nil
		},
	})

	tools := make([]agent.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, r.makeTool(s, false))
	}
	return agent.NewRegistry(tools)
}

// RunSubAgent spawns a fresh restricted loop seeded with instructions,
// runs it to termination, retains its transcript for later querying, and
// returns its terminal summary. The transcript is never injected into the
// primary loop's context.
func (r *Run) RunSubAgent(ctx context.Context, instructions string) (string, error) {
	r.subCount++
	name := fmt.Sprintf("sub-%d", r.subCount)
	slog.Info("sub-agent spawned", "run", r.ID, "agent", name)

	var recorder agent.Recorder
	if r.db != nil {
		recorder = r.db.Recorder(r.ID, name)
	}

	loop := agent.NewLoop(agent.Config{
		Name:          name,
		SystemPrompt:  subAgentPrompt,
		Model:         r.cfg.Model,
		ContextBudget: r.cfg.ContextBudget / 2,
		MaxMessages:   r.cfg.SubAgentMaxMessages,
		StopOnIdle:    true,
	}, r.provider, r.SubAgentTools(), recorder, r.Done)

	loop.AppendUser("TASK:\n"+instructions, false)

	summary, err := loop.Run(ctx)
	r.subTranscript = loop.Transcript()
	if err != nil {
		return "", fmt.Errorf("sub-agent failed: %w", err)
	}
	if summary == "" {
		summary = "Sub-agent finished without a summary (" + loop.StopReason() + ")."
	}
	slog.Info("sub-agent finished", "run", r.ID, "agent", name, "messages", loop.MessageCount())
	return summary, nil
}
