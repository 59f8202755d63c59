// Package econ computes daily customer demand and settles sales against
// the vending machine. Demand is stochastic but seeded per run so test
// replays are reproducible.
package econ

import (
	"math"
	"math/rand"
	"time"

	"github.com/talgya/vendbench/internal/machine"
	"github.com/talgya/vendbench/internal/weather"
)

// Profile holds the customer-behavior parameters for one product.
type Profile struct {
	Elasticity     float64 // negative; more negative = more price sensitive
	ReferencePrice float64 // what customers expect to pay
	BaseSales      float64 // units/day at the reference price
}

// Analyzer estimates a behavior profile for a product. Implementations may
// call out to a model; the zero default below is used when none is wired
// or the call fails.
type Analyzer interface {
	AnalyzeProduct(name string, price float64, size machine.SizeClass) (Profile, error)
}

// defaultProfiles seed plausible behavior per category when no analyzer
// responds.
var defaultProfiles = map[string]Profile{
	"drink": {Elasticity: -1.2, ReferencePrice: 2.00, BaseSales: 12},
	"snack": {Elasticity: -1.0, ReferencePrice: 1.75, BaseSales: 10},
	"candy": {Elasticity: -0.8, ReferencePrice: 1.25, BaseSales: 8},
	"meal":  {Elasticity: -1.5, ReferencePrice: 4.50, BaseSales: 5},
}

var fallbackProfile = Profile{Elasticity: -1.0, ReferencePrice: 2.00, BaseSales: 10}

// dayOfWeekMult scales demand by weekday; weekends see less office traffic.
var dayOfWeekMult = map[time.Weekday]float64{
	time.Monday:    1.00,
	time.Tuesday:   1.05,
	time.Wednesday: 1.05,
	time.Thursday:  1.00,
	time.Friday:    1.10,
	time.Saturday:  0.55,
	time.Sunday:    0.45,
}

// SlotSales is the settlement result for one slot.
type SlotSales struct {
	SlotID    string  `json:"slot_id"`
	Product   string  `json:"product"`
	UnitsSold int     `json:"units_sold"`
	Revenue   float64 `json:"revenue"`
	StockLeft int     `json:"stock_left"`
}

// Model computes daily sales for a machine.
type Model struct {
	rng      *rand.Rand
	analyzer Analyzer
	profiles map[string]Profile
}

// NewModel creates a seeded model. analyzer may be nil.
func NewModel(seed int64, analyzer Analyzer) *Model {
	return &Model{
		rng:      rand.New(rand.NewSource(seed)),
		analyzer: analyzer,
		profiles: make(map[string]Profile),
	}
}

// ProfileFor returns the cached behavior profile for a product, asking the
// analyzer once per product name.
func (m *Model) ProfileFor(p machine.Product, price float64) Profile {
	if prof, ok := m.profiles[p.Name]; ok {
		return prof
	}
	prof, ok := defaultProfiles[p.Category]
	if !ok {
		prof = fallbackProfile
		prof.ReferencePrice = math.Max(price, p.UnitCost*2)
	}
	if m.analyzer != nil {
		if analyzed, err := m.analyzer.AnalyzeProduct(p.Name, price, p.Size); err == nil {
			prof = analyzed
		}
	}
	m.profiles[p.Name] = prof
	return prof
}

// ExpectedDemand computes the expected units/day for a slot before
// stochastic sampling and stock truncation. Demand is monotonically
// non-increasing in price.
func (m *Model) ExpectedDemand(prof Profile, price float64, tag weather.Tag, day time.Weekday) float64 {
	if price <= 0 || prof.ReferencePrice <= 0 {
		return 0
	}
	pctDiff := (price - prof.ReferencePrice) / prof.ReferencePrice
	impact := 1 + prof.Elasticity*pctDiff
	if impact < 0 {
		impact = 0
	}
	expected := prof.BaseSales * impact * weather.SalesMultiplier(tag) * dayOfWeekMult[day]
	if expected < 0 {
		return 0
	}
	return expected
}

// SettleDay runs one day of customer demand against every occupied slot.
// Units sold never exceed stock; unmet demand is lost. Returns per-slot
// results and the total revenue to credit to cash-in-machine.
func (m *Model) SettleDay(mach *machine.Machine, tag weather.Tag, day time.Weekday) ([]SlotSales, float64) {
	var results []SlotSales
	totalRevenue := 0.0

	for _, s := range mach.Slots() {
		if s.Product == nil || s.Stock <= 0 || s.Price <= 0 {
			continue
		}
		prof := m.ProfileFor(*s.Product, s.Price)
		expected := m.ExpectedDemand(prof, s.Price, tag, day)

		// Sample around the expectation: ±25% uniform jitter.
		sampled := expected * (0.75 + m.rng.Float64()*0.5)
		demand := int(math.Round(sampled))
		if demand < 0 {
			demand = 0
		}

		product := s.Product.Name
		price := s.Price
		sold, _ := mach.Sell(s.ID, demand)
		revenue := float64(sold) * price
		totalRevenue += revenue

		results = append(results, SlotSales{
			SlotID:    s.ID,
			Product:   product,
			UnitsSold: sold,
			Revenue:   revenue,
			StockLeft: s.Stock,
		})
	}

	return results, totalRevenue
}
