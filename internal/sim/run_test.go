package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vendbench/internal/agent"
	"github.com/talgya/vendbench/internal/config"
	"github.com/talgya/vendbench/internal/llm"
	"github.com/talgya/vendbench/internal/machine"
	"github.com/talgya/vendbench/internal/mail"
)

// A Monday at the rollover boundary.
var testStart = time.Date(2026, time.March, 2, RolloverHour, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		StartingBalance:     500,
		DailyFee:            2,
		MaxDays:             120,
		MaxMessages:         2000,
		SubAgentMaxMessages: 40,
		ContextBudget:       30000,
		BankruptcyGraceDays: 10,
		SupplierLatencyHrs:  12,
		Seed:                42,
	}
}

func newTestRun(t *testing.T, cfg config.Config, deps Deps) *Run {
	t.Helper()
	if deps.Start.IsZero() {
		deps.Start = testStart
	}
	if deps.Replies == nil {
		deps.Replies = mail.FallbackSupplier{}
	}
	r, err := NewRun(cfg, deps)
	require.NoError(t, err)
	return r
}

func TestRolloverFiresOncePerDay(t *testing.T) {
	ctx := context.Background()
	r := newTestRun(t, testConfig(), Deps{})

	// Hourly advances across one full day cross exactly one boundary.
	for i := 0; i < 24; i++ {
		r.Advance(ctx, time.Hour)
	}
	assert.Equal(t, 1, r.Day())
	assert.InDelta(t, 498, r.cashOnHand, 1e-9)

	// Half-hour advances straddling the next boundary still fire it once.
	for i := 0; i < 48; i++ {
		r.Advance(ctx, 30*time.Minute)
	}
	assert.Equal(t, 2, r.Day())
	assert.InDelta(t, 496, r.cashOnHand, 1e-9)

	r.WaitForNextDay(ctx)
	assert.Equal(t, 3, r.Day())
	assert.InDelta(t, 494, r.cashOnHand, 1e-9)

	reports := r.TakePendingReports()
	assert.Len(t, reports, 3)
	assert.Empty(t, r.TakePendingReports(), "reports are consumed exactly once")
}

func TestWaitForNextDayReport(t *testing.T) {
	ctx := context.Background()
	r := newTestRun(t, testConfig(), Deps{})

	r.WaitForNextDay(ctx)
	assert.Equal(t, testStart.AddDate(0, 0, 1), r.Now())

	reports := r.TakePendingReports()
	require.Len(t, reports, 1)
	assert.Contains(t, reports[0], "=== DAY REPORT — Day 1 ===")
	assert.Contains(t, reports[0], "Daily fee charged: $2.00")
	assert.Contains(t, reports[0], "Yesterday's sales: none")
	assert.Contains(t, reports[0], "Slots needing restock")
}

// nextDaySupplier accepts like the fallback but ships overnight.
type nextDaySupplier struct{}

func (nextDaySupplier) GenerateReply(ctx context.Context, msg *mail.Message, order mail.Order) (mail.Reply, error) {
	reply, err := mail.FallbackSupplier{}.GenerateReply(ctx, msg, order)
	reply.ETADays = 1
	return reply, err
}

func TestOrderToDeliveryScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRun(t, testConfig(), Deps{Replies: nextDaySupplier{}})

	r.Advance(ctx, time.Hour)
	body := fmt.Sprintf("Please send 20 units of Cola.\n\nDeliver to: %s\nAccount: %s",
		mail.DeliveryAddress, mail.AccountNumber)
	_, orderErr := mail.ParseOrder(body)
	require.NoError(t, orderErr)
	r.mailbox.Send("acme@example.com", "Restock order", body, r.Now(), orderErr)

	// Day 1: fee debited, supplier replies past its latency, shipment booked.
	r.WaitForNextDay(ctx)
	assert.InDelta(t, 498, r.cashOnHand, 1e-9)
	assert.Zero(t, r.ledger.Quantity("Cola"))
	assert.Equal(t, 1, r.shipments.Pending())
	assert.Equal(t, 1, r.mailbox.UnreadCount())

	// Day 2: fee debited and the shipment lands, billed on delivery.
	r.WaitForNextDay(ctx)
	assert.InDelta(t, 476, r.cashOnHand, 1e-9) // 500 - 2 - 2 - 20*$1.00
	assert.Equal(t, 20, r.ledger.Quantity("Cola"))
	assert.Zero(t, r.shipments.Pending())
	assert.Equal(t, 2, r.mailbox.UnreadCount(), "supplier reply plus delivery notice")

	cola, ok := r.catalog.Lookup("Cola")
	require.True(t, ok)
	assert.Equal(t, machine.SizeSmall, cola.Size)

	reports := r.TakePendingReports()
	require.Len(t, reports, 2)
	assert.Contains(t, reports[1], "Delivery arrived: PO-")
	assert.Contains(t, reports[1], "Yesterday's sales: none")
	assert.Contains(t, reports[1], "Slots needing restock: 0-0, 0-1, 0-2, 1-0, 1-1, 1-2, 2-0, 2-1, 2-2, 3-0, 3-1, 3-2")

	// Warehouse stock counts toward net worth at cost.
	assert.InDelta(t, 476+20*1.00, r.NetWorth(), 1e-9)
}

func TestMalformedOrderGetsRejection(t *testing.T) {
	ctx := context.Background()
	r := newTestRun(t, testConfig(), Deps{})

	body := fmt.Sprintf("Please send 20 units of Cola.\nDeliver to: %s", mail.DeliveryAddress)
	_, orderErr := mail.ParseOrder(body)
	require.Error(t, orderErr)
	msg := r.mailbox.Send("acme@example.com", "Order", body, r.Now(), orderErr)
	assert.True(t, msg.Malformed)

	r.WaitForNextDay(ctx)
	assert.Zero(t, r.shipments.Pending(), "rejected orders never schedule shipments")
	assert.Zero(t, r.ledger.Quantity("Cola"))

	rendered := r.mailbox.ReadThread(msg.ThreadID)
	assert.Contains(t, rendered, "cannot process this order")
	assert.Contains(t, rendered, "missing account number")
}

func TestRestockSlot(t *testing.T) {
	r := newTestRun(t, testConfig(), Deps{})
	sandwich := machine.Product{Name: "Sandwich", Size: machine.SizeLarge, UnitCost: 2.50}
	r.ledger.Add(sandwich, 5, 2.50)

	// Size mismatch: nothing moves on either side.
	_, err := r.RestockSlot("0-0", "Sandwich", 2, 4.00)
	require.ErrorIs(t, err, machine.ErrSizeMismatch)
	assert.Equal(t, 5, r.ledger.Quantity("Sandwich"))
	slot, _ := r.machine.Slot("0-0")
	assert.Nil(t, slot.Product)

	// More than the warehouse holds.
	_, err = r.RestockSlot("2-0", "Sandwich", 9, 4.00)
	require.Error(t, err)
	assert.Equal(t, 5, r.ledger.Quantity("Sandwich"))

	// Unknown product.
	_, err = r.RestockSlot("2-0", "Ghost", 1, 1.00)
	require.Error(t, err)

	out, err := r.RestockSlot("2-0", "Sandwich", 5, 4.50)
	require.NoError(t, err)
	assert.Contains(t, out, "Stocked slot 2-0 with 5 x Sandwich")
	slot, _ = r.machine.Slot("2-0")
	assert.Equal(t, 5, slot.Stock)
	assert.Equal(t, 4.50, slot.Price)
	assert.Zero(t, r.ledger.Quantity("Sandwich"))
}

func TestBankruptcyTermination(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.StartingBalance = 3
	cfg.BankruptcyGraceDays = 2
	r := newTestRun(t, cfg, Deps{})

	r.WaitForNextDay(ctx)
	status, _ := r.Status()
	assert.Equal(t, StatusActive, status, "one broke day is within the grace period")

	r.WaitForNextDay(ctx)
	status, reason := r.Status()
	assert.Equal(t, StatusTerminated, status)
	assert.Contains(t, reason, "business failure")
	assert.Less(t, r.cashOnHand, 0.0, "the fee may drive the balance negative")

	// A terminated run ignores further time.
	day := r.Day()
	r.WaitForNextDay(ctx)
	assert.Equal(t, day, r.Day())
}

func TestMaxDaysTermination(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxDays = 3
	r := newTestRun(t, cfg, Deps{})

	for i := 0; i < 5; i++ {
		r.WaitForNextDay(ctx)
	}
	assert.Equal(t, 3, r.Day())
	status, reason := r.Status()
	assert.Equal(t, StatusTerminated, status)
	assert.Equal(t, "maximum day count reached", reason)
}

func TestPrimaryToolWiring(t *testing.T) {
	ctx := context.Background()
	r := newTestRun(t, testConfig(), Deps{})
	tools := r.PrimaryTools()

	wait, ok := tools.Lookup("wait_for_next_day")
	require.True(t, ok)
	res, err := wait.Run(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.IsDayReport, "a crossed boundary rides the tool result")
	assert.Contains(t, res.Content, "=== DAY REPORT — Day 1 ===")

	balance, ok := tools.Lookup("get_money_balance")
	require.True(t, ok)
	res, err = balance.Run(ctx, nil)
	require.NoError(t, err)
	assert.False(t, res.IsDayReport)
	assert.Contains(t, res.Content, "Cash on hand: $498")

	send, ok := tools.Lookup("send_email")
	require.True(t, ok)
	res, err = send.Run(ctx, json.RawMessage(`{"to":"acme@example.com","subject":"Q","body":"got cola?"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Warning")
	assert.Contains(t, res.Content, "likely to reject")

	assert.Equal(t, 1, r.toolCounts["wait_for_next_day"])
	assert.Equal(t, 1, r.toolCounts["send_email"])
}

// scriptProvider replays fixed completions for sub-agent tests.
type scriptProvider struct {
	script []llm.CompletionResponse
	calls  int
}

func (p *scriptProvider) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	if p.calls >= len(p.script) {
		return llm.CompletionResponse{}, fmt.Errorf("script exhausted after %d calls", p.calls)
	}
	resp := p.script[p.calls]
	p.calls++
	return resp, nil
}

func TestSubAgentRestocksAndAnswers(t *testing.T) {
	ctx := context.Background()
	provider := &scriptProvider{script: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:    "tc_1",
			Name:  "restock_slot",
			Input: json.RawMessage(`{"slot":"0-0","product":"Water","quantity":5,"price":2.0}`),
		}}, StopReason: "tool_use"},
		{Content: "I restocked slot 0-0 with 5 units of Water at $2.00.", StopReason: "end_turn"},
		{Content: "Five units of Water into slot 0-0.", StopReason: "end_turn"},
	}}

	r := newTestRun(t, testConfig(), Deps{Provider: provider, Replies: mail.FallbackSupplier{}})
	r.ledger.Add(machine.Product{Name: "Water", Size: machine.SizeSmall, UnitCost: 1.00}, 10, 1.00)

	summary, err := r.RunSubAgent(ctx, "Restock slot 0-0 with 5 units of Water priced at $2.00.")
	require.NoError(t, err)
	assert.Equal(t, "I restocked slot 0-0 with 5 units of Water at $2.00.", summary)

	slot, _ := r.machine.Slot("0-0")
	assert.Equal(t, 5, slot.Stock)
	assert.Equal(t, 2.0, slot.Price)
	assert.Equal(t, 5, r.ledger.Quantity("Water"))
	assert.Equal(t, 1, r.toolCounts["restock_slot"])

	// The retained transcript answers follow-up questions without re-running.
	require.NotEmpty(t, r.subTranscript)
	answer, err := agent.ChatOverTranscript(ctx, provider, "", r.subTranscript, "What exactly did you move?")
	require.NoError(t, err)
	assert.Equal(t, "Five units of Water into slot 0-0.", answer)
}

func TestSubAgentRolloverReportGoesToPrimary(t *testing.T) {
	ctx := context.Background()
	provider := &scriptProvider{script: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:    "tc_1",
			Name:  "restock_slot",
			Input: json.RawMessage(`{"slot":"0-0","product":"Water","quantity":5,"price":2.0}`),
		}}, StopReason: "tool_use"},
		{Content: "Restocked slot 0-0 with 5 units of Water.", StopReason: "end_turn"},
	}}

	r := newTestRun(t, testConfig(), Deps{Provider: provider})
	r.ledger.Add(machine.Product{Name: "Water", Size: machine.SizeSmall, UnitCost: 1.00}, 10, 1.00)

	// Four minutes before the boundary, so the sub-agent's 30-minute
	// restock call crosses 06:00 mid-delegation.
	r.Advance(ctx, 23*time.Hour+56*time.Minute)
	require.Equal(t, 0, r.Day())

	runSub, ok := r.PrimaryTools().Lookup("run_sub_agent")
	require.True(t, ok)
	res, err := runSub.Run(ctx, json.RawMessage(`{"instructions":"Restock slot 0-0 with 5 units of Water at $2.00."}`))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Day(), "the boundary fired inside the sub-agent's call")

	// The report rides the primary's tool result, never the sub-agent's.
	assert.True(t, res.IsDayReport)
	assert.Contains(t, res.Content, "=== DAY REPORT — Day 1 ===")
	assert.Contains(t, res.Content, "Restocked slot 0-0")
	for _, m := range r.subTranscript {
		if m.ToolResult != nil {
			assert.NotContains(t, m.ToolResult.Content, "DAY REPORT")
		}
	}
	assert.Empty(t, r.TakePendingReports(), "the primary tool result consumed the report")
}

func TestSubAgentToolSurfaceIsRestricted(t *testing.T) {
	r := newTestRun(t, testConfig(), Deps{})
	names := r.SubAgentTools().Names()

	assert.Contains(t, names, "restock_slot")
	assert.Contains(t, names, "get_machine_inventory")
	assert.Contains(t, names, "get_recent_sales")
	assert.NotContains(t, names, "send_email")
	assert.NotContains(t, names, "search_web")
	assert.NotContains(t, names, "run_sub_agent")
	assert.NotContains(t, names, "write_scratchpad")
}
