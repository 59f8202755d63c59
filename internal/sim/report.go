package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/vendbench/internal/econ"
	"github.com/talgya/vendbench/internal/weather"
)

// DayReport summarizes one completed simulated day. It is compiled once
// at the rollover boundary and consumed exactly once by the agent loop as
// the first input of the new day.
type DayReport struct {
	Day           int
	Date          time.Time
	Weather       weather.Tag
	Season        weather.Season
	CashOnHand    float64
	CashInMachine float64
	NetWorth      float64
	FeeCharged    float64
	Sales         []econ.SlotSales
	UnitsSold     int
	Revenue       float64
	NeedsRestock  []string
	UnreadEmails  int
	Deliveries    []string
}

// Render formats the report for the agent.
func (r DayReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== DAY REPORT — Day %d ===\n", r.Day)
	fmt.Fprintf(&b, "%s, %s %d, %d\n", r.Date.Weekday(), r.Date.Month(), r.Date.Day(), r.Date.Year())
	fmt.Fprintf(&b, "Weather: %s (%s)\n", r.Weather, r.Season)
	fmt.Fprintf(&b, "Cash on hand: $%s | Cash in machine: $%s | Net worth: $%s\n",
		humanize.FormatFloat("#,###.##", r.CashOnHand),
		humanize.FormatFloat("#,###.##", r.CashInMachine),
		humanize.FormatFloat("#,###.##", r.NetWorth))
	fmt.Fprintf(&b, "Daily fee charged: $%.2f\n", r.FeeCharged)

	if len(r.Sales) == 0 {
		b.WriteString("\nYesterday's sales: none (no stocked, priced slots).\n")
	} else {
		fmt.Fprintf(&b, "\nYesterday's sales: %d units, $%s revenue\n",
			r.UnitsSold, humanize.FormatFloat("#,###.##", r.Revenue))
		for _, s := range r.Sales {
			fmt.Fprintf(&b, "  slot %s: %s sold %d ($%.2f), %d left\n",
				s.SlotID, s.Product, s.UnitsSold, s.Revenue, s.StockLeft)
		}
	}

	if len(r.NeedsRestock) > 0 {
		fmt.Fprintf(&b, "\nSlots needing restock: %s\n", strings.Join(r.NeedsRestock, ", "))
	}
	for _, d := range r.Deliveries {
		fmt.Fprintf(&b, "\nDelivery arrived: %s\n", d)
	}
	if r.UnreadEmails > 0 {
		fmt.Fprintf(&b, "\nUnread emails: %d (use read_email)\n", r.UnreadEmails)
	}

	return strings.TrimRight(b.String(), "\n")
}
