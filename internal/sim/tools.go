package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/vendbench/internal/agent"
	"github.com/talgya/vendbench/internal/llm"
	"github.com/talgya/vendbench/internal/mail"
	"github.com/talgya/vendbench/internal/memory"
)

// toolSpec pairs a tool definition with its simulated duration and
// handler. The wrapper in makeTool centralizes the two cross-cutting
// effects of every call: advancing the clock and delivering any day
// reports produced by boundaries the advance crossed.
type toolSpec struct {
	name        string
	description string
	schema      json.RawMessage
	cost        time.Duration
	handler     func(ctx context.Context, args json.RawMessage) (string, error)
}

// makeTool wraps a spec for one loop. Day reports belong to the primary
// loop: only its tools drain the pending queue (deliverReports). A
// sub-agent tool that crosses a boundary still fires the rollover, but
// the report stays queued until the primary's next tool result.
func (r *Run) makeTool(s toolSpec, deliverReports bool) agent.Tool {
	return agent.Tool{
		Def: llm.ToolDefinition{
			Name:        s.name,
			Description: s.description,
			InputSchema: s.schema,
		},
		Run: func(ctx context.Context, args json.RawMessage) (agent.ToolResult, error) {
			r.toolCounts[s.name]++
			content, err := s.handler(ctx, args)
			r.Advance(ctx, s.cost)
			if err != nil {
				return agent.ToolResult{}, err
			}
			if deliverReports {
				if reports := r.TakePendingReports(); len(reports) > 0 {
					content = strings.TrimSpace(content + "\n\n" + strings.Join(reports, "\n\n"))
					return agent.ToolResult{Content: content, IsDayReport: true}, nil
				}
			}
			return agent.ToolResult{Content: content}, nil
		},
	}
}

// PrimaryTools returns the full tool surface of the primary agent.
func (r *Run) PrimaryTools() *agent.Registry {
	specs := []toolSpec{
		{
			name:        "wait_for_next_day",
			description: "Advance simulation time to 6:00 AM of the next day. Processes the daily fee, yesterday's sales, shipment arrivals, and supplier replies, and returns the new day report.",
			schema:      agent.NoArgsSchema,
			handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
				r.WaitForNextDay(ctx)
				return "", nil
			},
		},
		{
			name:        "write_scratchpad",
			description: "Write to your persistent scratchpad. Mode 'append' (default) adds to the end; 'overwrite' replaces the whole pad.",
			schema:      agent.Schema(`{"type":"object","properties":{"text":{"type":"string"},"mode":{"type":"string","enum":["append","overwrite"]}},"required":["text"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Text string `json:"text"`
					Mode string `json:"mode"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				r.scratch.Write(in.Text, memory.WriteMode(in.Mode))
				return "Scratchpad updated.", nil
			},
		},
		{
			name:        "read_scratchpad",
			description: "Read the full contents of your scratchpad.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				text := r.scratch.Read()
				if text == "" {
					return "Scratchpad is empty.", nil
				}
				return text, nil
			},
		},
		{
			name:        "clear_scratchpad",
			description: "Erase the scratchpad. This is irreversible.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				r.scratch.Clear()
				return "Scratchpad cleared.", nil
			},
		},
		{
			name:        "set_kv",
			description: "Store a value under a key in your key-value memory.",
			schema:      agent.Schema(`{"type":"object","properties":{"key":{"type":"string"},"value":{"type":"string"}},"required":["key","value"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct{ Key, Value string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				r.kv.Set(in.Key, in.Value)
				return fmt.Sprintf("Stored %q.", in.Key), nil
			},
		},
		{
			name:        "get_kv",
			description: "Retrieve the value stored under a key.",
			schema:      agent.Schema(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct{ Key string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				return r.kv.Get(in.Key)
			},
		},
		{
			name:        "delete_kv",
			description: "Delete a key from key-value memory. Deleting a missing key is a no-op.",
			schema:      agent.Schema(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct{ Key string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				r.kv.Delete(in.Key)
				return fmt.Sprintf("Deleted %q.", in.Key), nil
			},
		},
		{
			name:        "add_vector",
			description: "Store a text note in vector memory for later similarity search.",
			schema:      agent.Schema(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct{ Text string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				id := r.vectors.Add(in.Text)
				return fmt.Sprintf("Stored vector entry %d.", id), nil
			},
		},
		{
			name:        "search_vector",
			description: "Search vector memory for the k entries most similar to a query.",
			schema:      agent.Schema(`{"type":"object","properties":{"query":{"type":"string"},"k":{"type":"integer","minimum":1}},"required":["query"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Query string `json:"query"`
					K     int    `json:"k"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				if in.K <= 0 {
					in.K = 3
				}
				hits := r.vectors.Search(in.Query, in.K)
				if len(hits) == 0 {
					return "No entries in vector memory.", nil
				}
				var lines []string
				for _, h := range hits {
					lines = append(lines, fmt.Sprintf("[%d] (%.3f) %s", h.Entry.ID, h.Score, h.Entry.Text))
				}
				return strings.Join(lines, "\n"), nil
			},
		},
		{
			name:        "delete_vector",
			description: "Delete an entry from vector memory by its ID.",
			schema:      agent.Schema(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct{ ID int }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				if err := r.vectors.Delete(in.ID); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted vector entry %d.", in.ID), nil
			},
		},
		{
			name:        "send_email",
			description: fmt.Sprintf("Send an email to a supplier or business contact. Order emails must include product quantities (e.g. \"20 units of Cola\"), your delivery address (%s), and your account number (%s).", mail.DeliveryAddress, mail.AccountNumber),
			schema:      agent.Schema(`{"type":"object","properties":{"to":{"type":"string"},"subject":{"type":"string"},"body":{"type":"string"}},"required":["to","subject","body"]}`),
			cost:        DurMedium,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct{ To, Subject, Body string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				_, orderErr := mail.ParseOrder(in.Body)
				msg := r.mailbox.Send(in.To, in.Subject, in.Body, r.Now(), orderErr)
				if msg.Malformed {
					return fmt.Sprintf("Email sent to %s (thread %s). Warning — %s. The supplier is likely to reject this order.", in.To, msg.ThreadID, msg.OrderError), nil
				}
				return fmt.Sprintf("Email sent to %s (thread %s).", in.To, msg.ThreadID), nil
			},
		},
		{
			name:        "read_email",
			description: "Read email. With no arguments, returns all unread messages. With thread_id, returns that full conversation.",
			schema:      agent.Schema(`{"type":"object","properties":{"thread_id":{"type":"string"}},"required":[]}`),
			cost:        DurShort,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					ThreadID string `json:"thread_id"`
				}
				if len(args) > 0 {
					if err := json.Unmarshal(args, &in); err != nil {
						return "", fmt.Errorf("bad arguments: %w", err)
					}
				}
				if in.ThreadID != "" {
					return r.mailbox.ReadThread(in.ThreadID), nil
				}
				return r.mailbox.ReadUnread(), nil
			},
		},
		{
			name:        "search_web",
			description: "Search the web for suppliers, products, or pricing information.",
			schema:      agent.Schema(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
			cost:        DurMedium,
			handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct{ Query string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				if r.searcher == nil {
					return "", fmt.Errorf("web search is not available in this run")
				}
				return r.searcher.Search(ctx, in.Query)
			},
		},
		{
			name:        "get_money_balance",
			description: "Check cash on hand, cash in the machine, and net worth.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				return fmt.Sprintf("Cash on hand: $%s\nCash in machine: $%s\nNet worth (incl. inventory at cost): $%s",
					humanize.FormatFloat("#,###.##", r.cashOnHand),
					humanize.FormatFloat("#,###.##", r.cashInMachine),
					humanize.FormatFloat("#,###.##", r.NetWorth())), nil
			},
		},
		{
			name:        "end_simulation",
			description: "Permanently end the simulation. Use only when you are certain you are finished.",
			schema:      agent.NoArgsSchema,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				r.Terminate("agent ended the simulation")
				return "Simulation ended.", nil
			},
		},
		{
			name:        "sub_agent_specs",
			description: "List the restricted tool set available to a delegated sub-agent.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				names := r.SubAgentTools().Names()
				return "Sub-agents can use: " + strings.Join(names, ", ") + ". They cannot touch email, web search, or your memory stores.", nil
			},
		},
		{
			name:        "run_sub_agent",
			description: "Spawn a sub-agent with machine-operation tools to carry out instructions (e.g. restocking). Returns its final summary; its full transcript is retained for chat_with_sub_agent.",
			schema:      agent.Schema(`{"type":"object","properties":{"instructions":{"type":"string"}},"required":["instructions"]}`),
			cost:        DurShort,
			handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct{ Instructions string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				return r.RunSubAgent(ctx, in.Instructions)
			},
		},
		{
			name:        "chat_with_sub_agent",
			description: "Ask the most recent sub-agent a question about the work it already did.",
			schema:      agent.Schema(`{"type":"object","properties":{"question":{"type":"string"}},"required":["question"]}`),
			cost:        DurShort,
			handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct{ Question string }
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				return agent.ChatOverTranscript(ctx, r.provider, r.cfg.Model, r.subTranscript, in.Question)
			},
		},
	}

	specs = append(specs, r.machineToolSpecs()...)
	tools := make([]agent.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, r.makeTool(s, true))
	}
	return agent.NewRegistry(tools)
}

// machineToolSpecs are the machine/storage operations shared by the
// primary agent and sub-agents.
func (r *Run) machineToolSpecs() []toolSpec {
	return []toolSpec{
		{
			name:        "get_machine_inventory",
			description: "Show the vending machine's slot grid with products, stock, and prices.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				var lines []string
				for _, s := range r.machine.Slots() {
					if s.Product == nil {
						lines = append(lines, fmt.Sprintf("slot %s (%s): EMPTY", s.ID, s.Size))
						continue
					}
					lines = append(lines, fmt.Sprintf("slot %s (%s): %s x%d @ $%.2f", s.ID, s.Size, s.Product.Name, s.Stock, s.Price))
				}
				return strings.Join(lines, "\n") + "\n\n" + r.machine.Render(), nil
			},
		},
		{
			name:        "restock_slot",
			description: "Move product from warehouse storage into a machine slot and set its price. Slot IDs are row-col, e.g. \"2-1\". Rows 0-1 take small products, rows 2-3 large.",
			schema:      agent.Schema(`{"type":"object","properties":{"slot":{"type":"string"},"product":{"type":"string"},"quantity":{"type":"integer","minimum":1},"price":{"type":"number","minimum":0}},"required":["slot","product","quantity","price"]}`),
			cost:        DurMedium,
			handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Slot     string  `json:"slot"`
					Product  string  `json:"product"`
					Quantity int     `json:"quantity"`
					Price    float64 `json:"price"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("bad arguments: %w", err)
				}
				return r.RestockSlot(in.Slot, in.Product, in.Quantity, in.Price)
			},
		},
		{
			name:        "check_storage_quantities",
			description: "Check backroom storage: every product with quantity and weighted-average cost.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				return r.ledger.Report(r.shipments.Pending()), nil
			},
		},
		{
			name:        "list_storage_products",
			description: "List the product names currently in backroom storage.",
			schema:      agent.NoArgsSchema,
			cost:        DurShort,
			handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				entries := r.ledger.Entries()
				if len(entries) == 0 {
					return "Storage is empty.", nil
				}
				var names []string
				for _, e := range entries {
					names = append(names, fmt.Sprintf("%s (%s, %d units)", e.Product.Name, e.Product.Size, e.Quantity))
				}
				return strings.Join(names, "\n"), nil
			},
		},
	}
}

// RestockSlot atomically moves stock from the warehouse into a slot. The
// machine validates first so the warehouse decrement and slot increment
// happen together or not at all.
func (r *Run) RestockSlot(slotID, productName string, quantity int, price float64) (string, error) {
	entry, ok := r.ledger.Lookup(productName)
	if !ok {
		return "", fmt.Errorf("no %q in warehouse storage", productName)
	}
	if err := r.machine.CheckStock(slotID, entry.Product, quantity); err != nil {
		return "", err
	}
	if err := r.ledger.Remove(productName, quantity); err != nil {
		return "", err
	}
	if err := r.machine.Stock(slotID, entry.Product, quantity, price); err != nil {
		// CheckStock passed, so this cannot fail; restore the ledger if it
		// somehow does.
		r.ledger.Add(entry.Product, quantity, entry.AvgUnitCost)
		return "", err
	}
	return fmt.Sprintf("Stocked slot %s with %d x %s at $%.2f.", slotID, quantity, entry.Product.Name, price), nil
}
