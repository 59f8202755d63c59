package machine

import (
	"errors"
	"fmt"
	"sort"
)

// Grid dimensions. Rows 0-1 hold small items, rows 2-3 large items.
const (
	Rows        = 4
	SlotsPerRow = 3
	SlotCap     = 10
)

var (
	ErrNoSuchSlot      = errors.New("no such slot")
	ErrSizeMismatch    = errors.New("product size does not match row size class")
	ErrCapacity        = errors.New("quantity exceeds remaining slot capacity")
	ErrSlotOccupied    = errors.New("slot already holds a different product")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// Slot is one position in the machine grid.
type Slot struct {
	ID       string    `json:"id"` // "row-col", e.g. "2-1"
	Size     SizeClass `json:"size"`
	Product  *Product  `json:"product,omitempty"`
	Stock    int       `json:"stock"`
	Price    float64   `json:"price"`
	Capacity int       `json:"capacity"`
}

// Empty reports whether the slot has no product assigned.
func (s *Slot) Empty() bool {
	return s.Product == nil || s.Stock == 0
}

// Machine is the fixed slot grid of one vending machine.
type Machine struct {
	slots map[string]*Slot
}

// New creates a machine with the standard 4×3 grid, all slots empty.
func New() *Machine {
	m := &Machine{slots: make(map[string]*Slot, Rows*SlotsPerRow)}
	for row := 0; row < Rows; row++ {
		size := SizeSmall
		if row >= Rows/2 {
			size = SizeLarge
		}
		for col := 0; col < SlotsPerRow; col++ {
			id := fmt.Sprintf("%d-%d", row, col)
			m.slots[id] = &Slot{ID: id, Size: size, Capacity: SlotCap}
		}
	}
	return m
}

// Slot returns the slot with the given ID.
func (m *Machine) Slot(id string) (*Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchSlot, id)
	}
	return s, nil
}

// Slots returns all slots ordered by ID (row-major).
func (m *Machine) Slots() []*Slot {
	out := make([]*Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckStock validates a restock without mutating anything. Callers that
// coordinate with the warehouse ledger call this first so the warehouse
// decrement and the slot increment either both happen or neither does.
func (m *Machine) CheckStock(slotID string, p Product, quantity int) error {
	s, err := m.Slot(slotID)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.Size != s.Size {
		return fmt.Errorf("%w: %s product %q into %s slot %s", ErrSizeMismatch, p.Size, p.Name, s.Size, s.ID)
	}
	if s.Product != nil && s.Stock > 0 && s.Product.Name != p.Name {
		return fmt.Errorf("%w: slot %s holds %q", ErrSlotOccupied, s.ID, s.Product.Name)
	}
	if s.Stock+quantity > s.Capacity {
		return fmt.Errorf("%w: slot %s has %d of %d used", ErrCapacity, s.ID, s.Stock, s.Capacity)
	}
	return nil
}

// Stock places quantity units of p into the slot at the given price.
// Validates the same conditions as CheckStock.
func (m *Machine) Stock(slotID string, p Product, quantity int, price float64) error {
	if err := m.CheckStock(slotID, p, quantity); err != nil {
		return err
	}
	s := m.slots[slotID]
	prod := p
	s.Product = &prod
	s.Stock += quantity
	s.Price = price
	return nil
}

// SetPrice updates the price of an occupied slot.
func (m *Machine) SetPrice(slotID string, price float64) error {
	s, err := m.Slot(slotID)
	if err != nil {
		return err
	}
	s.Price = price
	return nil
}

// Sell removes up to quantity units from the slot and returns the number
// actually sold. Selling never drives stock negative; unmet demand is lost.
func (m *Machine) Sell(slotID string, quantity int) (int, error) {
	s, err := m.Slot(slotID)
	if err != nil {
		return 0, err
	}
	if s.Product == nil || s.Stock <= 0 || quantity <= 0 {
		return 0, nil
	}
	sold := quantity
	if sold > s.Stock {
		sold = s.Stock
	}
	s.Stock -= sold
	if s.Stock == 0 {
		s.Product = nil
	}
	return sold, nil
}

// StockValue returns the value of all in-machine stock at unit cost.
func (m *Machine) StockValue() float64 {
	total := 0.0
	for _, s := range m.slots {
		if s.Product != nil {
			total += float64(s.Stock) * s.Product.UnitCost
		}
	}
	return total
}

// EmptySlots returns the IDs of slots needing restock.
func (m *Machine) EmptySlots() []string {
	var out []string
	for _, s := range m.Slots() {
		if s.Empty() {
			out = append(out, s.ID)
		}
	}
	return out
}
