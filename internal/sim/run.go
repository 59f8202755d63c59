package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/vendbench/internal/config"
	"github.com/talgya/vendbench/internal/econ"
	"github.com/talgya/vendbench/internal/llm"
	"github.com/talgya/vendbench/internal/machine"
	"github.com/talgya/vendbench/internal/mail"
	"github.com/talgya/vendbench/internal/memory"
	"github.com/talgya/vendbench/internal/persistence"
	"github.com/talgya/vendbench/internal/search"
	"github.com/talgya/vendbench/internal/warehouse"
	"github.com/talgya/vendbench/internal/weather"
)

// Status of a simulation run.
type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// Deps are the external collaborators wired into a run. Provider is
// required for live runs; Searcher, Replies and DB may be nil (replies
// fall back to the deterministic supplier).
type Deps struct {
	Provider llm.Provider
	Searcher search.Searcher
	Replies  mail.ReplyGenerator
	DB       *persistence.DB
	Start    time.Time
}

// Run is one simulation episode: a single vending machine business with
// exclusively-owned state. All mutation happens on the single logical
// thread of the agent loop; nothing here is shared across runs.
type Run struct {
	ID  string
	cfg config.Config

	clock        *Clock
	startedAt    time.Time
	day          int
	lastRollover time.Time

	cashOnHand    float64
	cashInMachine float64
	status        Status
	statusReason  string
	brokeDays     int

	catalog   *machine.Catalog
	machine   *machine.Machine
	ledger    *warehouse.Ledger
	shipments *warehouse.Scheduler
	mailbox   *mail.Mailbox
	scratch   *memory.Scratchpad
	kv        *memory.KV
	vectors   *memory.VectorStore

	weatherGen *weather.Generator
	econ       *econ.Model

	provider llm.Provider
	searcher search.Searcher
	replies  mail.ReplyGenerator
	db       *persistence.DB

	pendingReports []string
	lastUnitsSold  int
	toolCounts     map[string]int

	subTranscript []llm.Message
	subCount      int
}

// NewRun creates a run with a fresh machine, empty warehouse, and empty
// memory stores.
func NewRun(cfg config.Config, deps Deps) (*Run, error) {
	start := deps.Start
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), RolloverHour, 0, 0, 0, time.UTC)
	}

	replies := deps.Replies
	if replies == nil {
		if deps.Provider != nil {
			replies = mail.NewLLMSupplier(deps.Provider, deps.Searcher)
		} else {
			replies = mail.FallbackSupplier{}
		}
	}

	ledger := warehouse.NewLedger()
	r := &Run{
		ID:            uuid.NewString(),
		cfg:           cfg,
		clock:         NewClock(start),
		startedAt:     start,
		lastRollover:  start.AddDate(0, 0, -1),
		cashOnHand:    cfg.StartingBalance,
		status:        StatusActive,
		catalog:       machine.NewCatalog(),
		machine:       machine.New(),
		ledger:        ledger,
		shipments:     warehouse.NewScheduler(ledger),
		mailbox:       mail.NewMailbox("vending.operator@business.com"),
		scratch:       &memory.Scratchpad{},
		kv:            memory.NewKV(),
		vectors:       memory.NewVectorStore(memory.NewHashEmbedder()),
		weatherGen:    weather.NewGenerator(cfg.Seed),
		econ:          econ.NewModel(cfg.Seed, nil),
		provider:      deps.Provider,
		searcher:      deps.Searcher,
		replies:       replies,
		db:            deps.DB,
		toolCounts:    make(map[string]int),
	}

	if r.db != nil {
		if err := r.db.CreateRun(r.ID, start, cfg.Seed); err != nil {
			return nil, err
		}
	}
	slog.Info("simulation run created",
		"run", r.ID,
		"start", start.Format(time.RFC3339),
		"balance", cfg.StartingBalance,
		"seed", cfg.Seed,
	)
	return r, nil
}

// Now returns the current simulated time.
func (r *Run) Now() time.Time {
	return r.clock.Now()
}

// Day returns the number of completed day rollovers.
func (r *Run) Day() int {
	return r.day
}

// Status returns the run status and its reason when terminated.
func (r *Run) Status() (Status, string) {
	return r.status, r.statusReason
}

// NetWorth is cash plus inventory value at cost, in machine and warehouse.
func (r *Run) NetWorth() float64 {
	return r.cashOnHand + r.cashInMachine + r.ledger.TotalValue() + r.machine.StockValue()
}

// Terminate ends the run.
func (r *Run) Terminate(reason string) {
	if r.status == StatusTerminated {
		return
	}
	r.status = StatusTerminated
	r.statusReason = reason
	if r.db != nil {
		if err := r.db.SetRunStatus(r.ID, string(StatusTerminated)); err != nil {
			slog.Warn("persist run status failed", "run", r.ID, "error", err)
		}
	}
	slog.Info("simulation run terminated", "run", r.ID, "reason", reason, "day", r.day, "net_worth", r.NetWorth())
}

// Done reports whether the run is terminal, for the agent loop.
func (r *Run) Done() (bool, string) {
	if r.status == StatusTerminated {
		return true, r.statusReason
	}
	return false, ""
}

// Advance moves simulated time forward by d, firing the daily rollover
// pipeline for every 06:00 boundary crossed. A boundary fires at most
// once per calendar day no matter how advances straddle it.
func (r *Run) Advance(ctx context.Context, d time.Duration) {
	if d <= 0 || r.status == StatusTerminated {
		return
	}
	target := r.clock.Now().Add(d)
	r.advanceTo(ctx, target)
}

// WaitForNextDay jumps directly to the next 06:00 boundary.
func (r *Run) WaitForNextDay(ctx context.Context) {
	if r.status == StatusTerminated {
		return
	}
	r.advanceTo(ctx, NextRollover(r.clock.Now()))
}

func (r *Run) advanceTo(ctx context.Context, target time.Time) {
	for {
		boundary := NextRollover(r.clock.Now())
		if boundary.After(target) {
			break
		}
		r.clock.set(boundary)
		if boundary.YearDay() != r.lastRollover.YearDay() || boundary.Year() != r.lastRollover.Year() {
			r.rollover(ctx, boundary)
			r.lastRollover = boundary
		}
		if r.status == StatusTerminated {
			return
		}
	}
	r.clock.set(target)
}

// rollover runs the fixed daily pipeline: fee debit, economic settlement,
// shipment release, supplier replies, day report.
func (r *Run) rollover(ctx context.Context, boundary time.Time) {
	r.day++
	settledDay := boundary.AddDate(0, 0, -1)

	// 1. Daily fee. Insufficient cash drives the balance negative —
	// bankruptcy is a business state, not an error.
	r.cashOnHand -= r.cfg.DailyFee

	// 2. Economic settlement for the prior day.
	tag := r.weatherGen.TagFor(settledDay)
	sales, revenue := r.econ.SettleDay(r.machine, tag, settledDay.Weekday())
	r.cashInMachine += revenue
	units := 0
	for _, s := range sales {
		units += s.UnitsSold
	}
	r.lastUnitsSold = units

	// 3. Release shipments whose arrival time has passed.
	var deliveryNotes []string
	for _, d := range r.shipments.ReleaseDue(boundary) {
		r.cashOnHand -= d.Cost
		r.mailbox.Receive(d.Shipment.Supplier, "Delivery notice "+d.Shipment.Ref, d.Notice, d.Shipment.ThreadID, boundary)
		deliveryNotes = append(deliveryNotes, d.Shipment.Ref)
		slog.Info("shipment delivered", "run", r.ID, "ref", d.Shipment.Ref, "cost", d.Cost)
	}

	// 4. Supplier replies for outbound mail past its response latency.
	r.generateSupplierReplies(ctx, boundary)

	// 5. Compile the day report.
	report := DayReport{
		Day:           r.day,
		Date:          boundary,
		Weather:       r.weatherGen.TagFor(boundary),
		Season:        weather.SeasonOf(boundary),
		CashOnHand:    r.cashOnHand,
		CashInMachine: r.cashInMachine,
		NetWorth:      r.NetWorth(),
		FeeCharged:    r.cfg.DailyFee,
		Sales:         sales,
		UnitsSold:     units,
		Revenue:       revenue,
		NeedsRestock:  r.machine.EmptySlots(),
		UnreadEmails:  r.mailbox.UnreadCount(),
		Deliveries:    deliveryNotes,
	}
	r.pendingReports = append(r.pendingReports, report.Render())

	slog.Info("day rollover",
		"run", r.ID,
		"day", r.day,
		"weather", tag,
		"units_sold", units,
		"revenue", revenue,
		"cash_on_hand", r.cashOnHand,
		"net_worth", report.NetWorth,
	)

	r.persistSnapshot(boundary)
	r.checkTermination()
}

func (r *Run) generateSupplierReplies(ctx context.Context, boundary time.Time) {
	latency := time.Duration(r.cfg.SupplierLatencyHrs) * time.Hour
	for _, msg := range r.mailbox.AwaitingReply(boundary, latency) {
		reply := r.buildReply(ctx, msg)
		r.mailbox.MarkReplied(msg.ID)
		r.mailbox.Receive(msg.Recipient, "Re: "+msg.Subject, reply.Body, msg.ThreadID, boundary)

		if !reply.Accepted {
			continue
		}
		items := make([]warehouse.ShipmentItem, 0, len(reply.Items))
		for _, it := range reply.Items {
			size, err := machine.ParseSizeClass(it.Size)
			if err != nil {
				size = machine.SizeSmall
			}
			p := r.catalog.Register(machine.Product{Name: it.Name, Size: size, UnitCost: it.UnitCost})
			items = append(items, warehouse.ShipmentItem{Product: p, Quantity: it.Quantity, UnitCost: it.UnitCost})
		}
		ship := r.shipments.Schedule(msg.Recipient, msg.ThreadID, items, boundary, reply.ETADays)
		slog.Info("shipment scheduled", "run", r.ID, "ref", ship.Ref, "arrival", ship.ArrivalAt.Format(time.RFC3339))
	}
}

func (r *Run) buildReply(ctx context.Context, msg *mail.Message) mail.Reply {
	if msg.Malformed {
		return mail.RejectionReply(msg)
	}
	order, err := mail.ParseOrder(msg.Body)
	if err != nil {
		// Should not happen for a message that validated at send time.
		return mail.RejectionReply(msg)
	}
	reply, err := r.replies.GenerateReply(ctx, msg, order)
	if err != nil {
		slog.Warn("supplier reply generation failed, using fallback", "run", r.ID, "error", err)
		reply, _ = mail.FallbackSupplier{}.GenerateReply(ctx, msg, order)
	}
	return reply
}

func (r *Run) persistSnapshot(at time.Time) {
	if r.db == nil {
		return
	}
	counts := make(map[string]int, len(r.toolCounts))
	for k, v := range r.toolCounts {
		counts[k] = v
	}
	err := r.db.RecordState(r.ID, persistence.StatePoint{
		RecordedAt:    at,
		Day:           r.day,
		CashOnHand:    r.cashOnHand,
		CashInMachine: r.cashInMachine,
		UnitsSold:     r.lastUnitsSold,
		NetWorth:      r.NetWorth(),
		ToolCounts:    counts,
	})
	if err != nil {
		slog.Warn("persist state failed", "run", r.ID, "error", err)
	}
	if err := r.db.SnapshotScratchpad(r.ID, at, r.scratch.Read()); err != nil {
		slog.Warn("persist scratchpad failed", "run", r.ID, "error", err)
	}
}

func (r *Run) checkTermination() {
	if r.cashOnHand < r.cfg.DailyFee && r.cashInMachine < r.cfg.DailyFee {
		r.brokeDays++
	} else {
		r.brokeDays = 0
	}
	if r.brokeDays >= r.cfg.BankruptcyGraceDays {
		r.Terminate("business failure: balances below daily fee for too long")
		return
	}
	if r.day >= r.cfg.MaxDays {
		r.Terminate("maximum day count reached")
	}
}

// TakePendingReports returns and clears reports produced by rollovers
// since the last call. Each report is consumed exactly once.
func (r *Run) TakePendingReports() []string {
	out := r.pendingReports
	r.pendingReports = nil
	return out
}
