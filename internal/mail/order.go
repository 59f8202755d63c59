package mail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OrderItem is one requested line item parsed from an order email.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is the structured content of a valid outbound order email.
type Order struct {
	Items   []OrderItem `json:"items"`
	Address string      `json:"address"`
	Account string      `json:"account"`
}

// Business identity baked into each run. Supplier orders must quote both.
const (
	DeliveryAddress = "1247 Commerce Street, Suite 100, San Francisco, CA 94103"
	AccountNumber   = "VM-8675309"
)

// Patterns accepted for line items: "20 units of Cola", "20x Cola",
// "Cola x20".
var (
	qtyFirstRe = regexp.MustCompile(`(?i)\b(\d+)\s*(?:units?\s+of\s+|x\s*)([A-Za-z][A-Za-z0-9' -]*?)(?:\s*[,.;\n]|$)`)
	qtyLastRe  = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9' -]*?)\s+x\s*(\d+)\b`)
)

// ParseOrder validates that an outbound email structurally contains
// everything a supplier needs: at least one positive-quantity line item,
// the run's delivery address, and the run's account number. A non-nil
// error describes every missing piece so the rejection reply is legible.
func ParseOrder(body string) (Order, error) {
	var order Order
	var problems []string

	order.Items = parseItems(body)
	if len(order.Items) == 0 {
		problems = append(problems, "no product line items found (expected e.g. \"20 units of Cola\")")
	}

	if strings.Contains(body, DeliveryAddress) {
		order.Address = DeliveryAddress
	} else {
		problems = append(problems, fmt.Sprintf("missing delivery address (expected %q)", DeliveryAddress))
	}

	if strings.Contains(body, AccountNumber) {
		order.Account = AccountNumber
	} else {
		problems = append(problems, fmt.Sprintf("missing account number (expected %q)", AccountNumber))
	}

	if len(problems) > 0 {
		return order, fmt.Errorf("malformed order: %s", strings.Join(problems, "; "))
	}
	return order, nil
}

func parseItems(body string) []OrderItem {
	seen := make(map[string]int)
	var names []string

	record := func(name string, qty int) {
		name = strings.TrimSpace(name)
		if name == "" || qty <= 0 {
			return
		}
		k := strings.ToLower(name)
		if _, ok := seen[k]; !ok {
			names = append(names, name)
		}
		seen[k] += qty
	}

	for _, match := range qtyFirstRe.FindAllStringSubmatch(body, -1) {
		qty, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		record(match[2], qty)
	}
	for _, match := range qtyLastRe.FindAllStringSubmatch(body, -1) {
		qty, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		record(match[1], qty)
	}

	items := make([]OrderItem, 0, len(names))
	for _, name := range names {
		items = append(items, OrderItem{Name: name, Quantity: seen[strings.ToLower(name)]})
	}
	return items
}
