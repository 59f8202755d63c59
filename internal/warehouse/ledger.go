// Package warehouse tracks owned-but-unshipped stock and the pending
// shipments that feed it. Warehouse stock is distinct from in-machine
// stock: deliveries land here, and the agent moves units into machine
// slots explicitly.
package warehouse

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/vendbench/internal/machine"
)

var ErrInsufficientStock = errors.New("insufficient warehouse stock")

// Entry is the ledger record for one product.
type Entry struct {
	Product     machine.Product `json:"product"`
	Quantity    int             `json:"quantity"`
	AvgUnitCost float64         `json:"avg_unit_cost"`
}

// Ledger is the backroom inventory for one run.
type Ledger struct {
	entries map[string]*Entry
}

// NewLedger creates an empty warehouse ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*Entry)}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add records arrived units, maintaining a weighted-average unit cost
// across deliveries. Returns the cost of the added batch.
func (l *Ledger) Add(p machine.Product, quantity int, unitCost float64) float64 {
	if quantity <= 0 {
		return 0
	}
	e, ok := l.entries[key(p.Name)]
	if !ok {
		e = &Entry{Product: p}
		l.entries[key(p.Name)] = e
	}
	total := e.Quantity + quantity
	e.AvgUnitCost = (e.AvgUnitCost*float64(e.Quantity) + unitCost*float64(quantity)) / float64(total)
	e.Quantity = total
	e.Product.UnitCost = e.AvgUnitCost
	return unitCost * float64(quantity)
}

// Remove takes units out of the warehouse (e.g. when restocking a slot).
func (l *Ledger) Remove(name string, quantity int) error {
	e, ok := l.entries[key(name)]
	if !ok || e.Quantity < quantity {
		have := 0
		if ok {
			have = e.Quantity
		}
		return fmt.Errorf("%w: want %d of %q, have %d", ErrInsufficientStock, quantity, name, have)
	}
	e.Quantity -= quantity
	if e.Quantity == 0 {
		delete(l.entries, key(name))
	}
	return nil
}

// Quantity returns the stored amount of a product (0 if absent).
func (l *Ledger) Quantity(name string) int {
	if e, ok := l.entries[key(name)]; ok {
		return e.Quantity
	}
	return 0
}

// Lookup returns the ledger entry for a product name.
func (l *Ledger) Lookup(name string) (Entry, bool) {
	if e, ok := l.entries[key(name)]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Entries returns all ledger entries, large products first then
// alphabetical, matching the storage report ordering.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Product.Size != out[j].Product.Size {
			return out[i].Product.Size == machine.SizeLarge
		}
		return out[i].Product.Name < out[j].Product.Name
	})
	return out
}

// TotalValue returns the ledger value at weighted-average cost.
func (l *Ledger) TotalValue() float64 {
	total := 0.0
	for _, e := range l.entries {
		total += float64(e.Quantity) * e.AvgUnitCost
	}
	return total
}

// Report renders an agent-readable storage inventory report.
func (l *Ledger) Report(pendingShipments int) string {
	if len(l.entries) == 0 {
		if pendingShipments > 0 {
			return fmt.Sprintf("Storage is currently empty. Pending deliveries: %d", pendingShipments)
		}
		return "Storage is currently empty. No items in backroom inventory."
	}

	lines := []string{"STORAGE INVENTORY REPORT", strings.Repeat("=", 50)}
	for _, e := range l.Entries() {
		value := float64(e.Quantity) * e.AvgUnitCost
		lines = append(lines, fmt.Sprintf("  [%-5s] %-20s %3d units @ $%s/unit (value $%s)",
			strings.ToUpper(string(e.Product.Size)), e.Product.Name, e.Quantity,
			humanize.FormatFloat("#,###.##", e.AvgUnitCost),
			humanize.FormatFloat("#,###.##", value)))
	}
	lines = append(lines, strings.Repeat("-", 50))
	lines = append(lines, fmt.Sprintf("Total product types: %d", len(l.entries)))
	lines = append(lines, fmt.Sprintf("Total inventory value: $%s", humanize.FormatFloat("#,###.##", l.TotalValue())))
	if pendingShipments > 0 {
		lines = append(lines, fmt.Sprintf("Pending deliveries: %d", pendingShipments))
	}
	return strings.Join(lines, "\n")
}
