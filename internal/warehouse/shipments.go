package warehouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/vendbench/internal/machine"
)

// ShipmentStatus tracks a shipment's lifecycle.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentDelivered ShipmentStatus = "delivered"
)

// ShipmentItem is one line of a pending shipment.
type ShipmentItem struct {
	Product  machine.Product `json:"product"`
	Quantity int             `json:"quantity"`
	UnitCost float64         `json:"unit_cost"`
}

// PendingShipment is an in-flight delivery committed by a supplier reply.
type PendingShipment struct {
	Ref       string         `json:"ref"`
	Supplier  string         `json:"supplier"`
	ThreadID  string         `json:"thread_id"`
	Items     []ShipmentItem `json:"items"`
	ArrivalAt time.Time      `json:"arrival_at"`
	Status    ShipmentStatus `json:"status"`
}

// Delivery describes one applied shipment, including the notice body the
// mail channel sends to the agent.
type Delivery struct {
	Shipment PendingShipment
	Cost     float64
	Notice   string
}

// Scheduler holds pending shipments and applies them to a ledger when the
// clock crosses their arrival time.
type Scheduler struct {
	ledger   *Ledger
	pending  []*PendingShipment
	archived []*PendingShipment
}

// NewScheduler creates a scheduler feeding the given ledger.
func NewScheduler(ledger *Ledger) *Scheduler {
	return &Scheduler{ledger: ledger}
}

// Schedule registers a shipment arriving at 06:00, daysOut days after
// replyAt. Arrival is always strictly after the reply timestamp.
func (s *Scheduler) Schedule(supplier, threadID string, items []ShipmentItem, replyAt time.Time, daysOut int) *PendingShipment {
	if daysOut < 1 {
		daysOut = 1
	}
	arrival := time.Date(replyAt.Year(), replyAt.Month(), replyAt.Day(), 6, 0, 0, 0, time.UTC).AddDate(0, 0, daysOut)
	if !arrival.After(replyAt) {
		arrival = arrival.AddDate(0, 0, 1)
	}

	ship := &PendingShipment{
		Ref:       "PO-" + uuid.NewString()[:8],
		Supplier:  supplier,
		ThreadID:  threadID,
		Items:     items,
		ArrivalAt: arrival,
		Status:    ShipmentPending,
	}
	s.pending = append(s.pending, ship)
	return ship
}

// Pending returns the number of shipments not yet delivered.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// ReleaseDue applies every shipment whose arrival time has passed. Each
// shipment is applied exactly once regardless of how many advances cross
// its arrival timestamp.
func (s *Scheduler) ReleaseDue(now time.Time) []Delivery {
	var delivered []Delivery
	var remaining []*PendingShipment

	for _, ship := range s.pending {
		if ship.ArrivalAt.After(now) {
			remaining = append(remaining, ship)
			continue
		}

		cost := 0.0
		lines := make([]string, 0, len(ship.Items))
		for _, item := range ship.Items {
			if item.Quantity <= 0 || item.Product.Name == "" {
				continue
			}
			cost += s.ledger.Add(item.Product, item.Quantity, item.UnitCost)
			lines = append(lines, fmt.Sprintf("- %s (%s) x%d @ $%.2f",
				item.Product.Name, item.Product.Size, item.Quantity, item.UnitCost))
		}

		ship.Status = ShipmentDelivered
		s.archived = append(s.archived, ship)

		notice := strings.Join([]string{
			fmt.Sprintf("Delivery has arrived from %s.", ship.Supplier),
			fmt.Sprintf("Reference: %s", ship.Ref),
			fmt.Sprintf("Arrival time (UTC): %s", ship.ArrivalAt.Format("2006-01-02 15:04")),
			"",
			"Items:",
			strings.Join(lines, "\n"),
			"",
			fmt.Sprintf("Total billed on delivery: $%.2f", cost),
		}, "\n")

		delivered = append(delivered, Delivery{Shipment: *ship, Cost: cost, Notice: notice})
	}

	s.pending = remaining
	return delivered
}
