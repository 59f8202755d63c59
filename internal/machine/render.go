package machine

import (
	"fmt"
	"strings"
)

// Render draws an ASCII diagram of the machine for logs and day reports.
func (m *Machine) Render() string {
	var b strings.Builder
	b.WriteString("┌─────────── VENDING MACHINE ───────────┐\n")

	for row := 0; row < Rows; row++ {
		if row == 0 || row == Rows/2 {
			label := "SMALL ITEMS"
			if row >= Rows/2 {
				label = "LARGE ITEMS"
			}
			fmt.Fprintf(&b, "│  %s  │\n", center(label, 35))
			b.WriteString("│  ┌─────────┬─────────┬─────────┐  │\n")
		}

		b.WriteString("│  │")
		for col := 0; col < SlotsPerRow; col++ {
			s := m.slots[fmt.Sprintf("%d-%d", row, col)]
			content := "EMPTY"
			if s.Product != nil {
				name := []rune(s.Product.Name)
				if len(name) > 5 {
					name = name[:5]
				}
				content = fmt.Sprintf("%s(%d)", string(name), s.Stock)
			}
			b.WriteString(center(content, 9))
			b.WriteString("│")
		}
		b.WriteString("  │\n")

		if row == Rows/2-1 || row == Rows-1 {
			b.WriteString("│  └─────────┴─────────┴─────────┘  │\n")
		}
	}

	b.WriteString("└───────────────────────────────────────┘")
	return b.String()
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	left := (width - len(runes)) / 2
	right := width - len(runes) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
