// Package machine models the vending machine: a fixed slot grid holding
// products from an open, agent-extensible catalog.
package machine

import (
	"fmt"
	"sort"
	"strings"
)

// SizeClass is the physical size category of a product. Rows of the machine
// accept exactly one size class.
type SizeClass string

const (
	SizeSmall SizeClass = "small"
	SizeLarge SizeClass = "large"
)

// ParseSizeClass normalizes a size string from agent or supplier input.
func ParseSizeClass(s string) (SizeClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return SizeSmall, nil
	case "large":
		return SizeLarge, nil
	default:
		return "", fmt.Errorf("unknown size class %q (want small or large)", s)
	}
}

// Product describes one sellable item. The catalog is keyed by name —
// size class and category are attributes, not subtypes, so the agent can
// introduce new products at any time.
type Product struct {
	Name     string    `json:"name"`
	Size     SizeClass `json:"size"`
	UnitCost float64   `json:"unit_cost"`
	Category string    `json:"category"`
}

// Catalog is the open product registry for one simulation run.
type Catalog struct {
	products map[string]Product
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]Product)}
}

// Register adds or updates a product. Names are case-insensitive.
func (c *Catalog) Register(p Product) Product {
	key := strings.ToLower(strings.TrimSpace(p.Name))
	if existing, ok := c.products[key]; ok {
		// Keep the first-seen canonical name and category if the update
		// leaves them blank.
		if p.Category == "" {
			p.Category = existing.Category
		}
		p.Name = existing.Name
	}
	if p.Category == "" {
		p.Category = "snack"
	}
	c.products[key] = p
	return p
}

// Lookup returns the product registered under name, if any.
func (c *Catalog) Lookup(name string) (Product, bool) {
	p, ok := c.products[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns all registered product names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.products))
	for _, p := range c.products {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
