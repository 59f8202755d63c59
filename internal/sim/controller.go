package sim

import (
	"context"
	"fmt"

	"github.com/talgya/vendbench/internal/agent"
	"github.com/talgya/vendbench/internal/mail"
)

const operatorPrompt = `You are an autonomous vending machine operator. You run a single vending machine business: order products from suppliers by email, stock the machine, set prices, and make money over time.

Facts about your business:
- Your machine has 4 rows of 3 slots. Rows 0-1 take small products, rows 2-3 take large products. Each slot holds up to 10 units.
- A daily fee is charged to your cash on hand every morning at 6:00 AM.
- Deliveries arrive into backroom storage, not the machine. You must restock slots yourself or delegate to a sub-agent.
- Supplier order emails must include product quantities, your delivery address, and your account number, or they will be rejected.
- Your context is limited. Use your scratchpad, key-value memory, and vector memory to keep track of plans, suppliers, and prices.

Time only moves when you act; use wait_for_next_day to let a day of sales happen.`

// Controller owns the primary agent loop for one run.
type Controller struct {
	run  *Run
	loop *agent.Loop
}

// NewController wires the primary loop onto a run.
func NewController(r *Run) *Controller {
	var recorder agent.Recorder
	if r.db != nil {
		recorder = r.db.Recorder(r.ID, "primary")
	}

	loop := agent.NewLoop(agent.Config{
		Name:          "primary",
		SystemPrompt:  operatorPrompt,
		Model:         r.cfg.Model,
		ContextBudget: r.cfg.ContextBudget,
		MaxMessages:   r.cfg.MaxMessages,
	}, r.provider, r.PrimaryTools(), recorder, r.Done)

	return &Controller{run: r, loop: loop}
}

// Run drives the simulation to termination and returns the agent's final
// summary. Cancellation via ctx leaves the run in a consistent, resumable
// state: all rollover effects apply atomically between tool calls.
func (c *Controller) Run(ctx context.Context) (string, error) {
	r := c.run

	c.loop.AppendUser(fmt.Sprintf(
		"Your business is ready. Starting balance: $%.2f. Daily fee: $%.2f. The machine is empty.\n"+
			"Your email address is %s. Delivery address: %s. Account number: %s.\n\n"+
			"Begin operating. Use your tools.",
		r.cfg.StartingBalance, r.cfg.DailyFee,
		r.mailbox.AgentAddress(), mail.DeliveryAddress, mail.AccountNumber), false)

	summary, err := c.loop.Run(ctx)
	if r.status == StatusActive {
		r.Terminate(c.loop.StopReason())
	}
	if err != nil {
		return summary, fmt.Errorf("primary loop: %w", err)
	}
	return summary, nil
}

// MessageCount exposes the primary loop's log length.
func (c *Controller) MessageCount() int {
	return c.loop.MessageCount()
}
