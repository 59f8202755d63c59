package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/vendbench/internal/llm"
	"github.com/talgya/vendbench/internal/search"
)

// ReplyItem is one shipment line a supplier commits to.
type ReplyItem struct {
	Name     string  `json:"name"`
	Size     string  `json:"size"`
	Quantity int     `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
}

// Reply is a supplier's answer to an order email. When Accepted, ETADays
// and Items drive a pending shipment; the scheduler only depends on those
// two fields, so the generator is swappable.
type Reply struct {
	Body     string      `json:"body"`
	Accepted bool        `json:"accepted"`
	ETADays  int         `json:"days_until_delivery"`
	Items    []ReplyItem `json:"items"`
}

// ReplyGenerator authors supplier responses to outbound order emails.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, msg *Message, order Order) (Reply, error)
}

// RejectionReply composes the supplier's answer to a malformed order.
func RejectionReply(msg *Message) Reply {
	return Reply{
		Body: fmt.Sprintf(
			"Thank you for contacting us. Unfortunately we cannot process this order as submitted.\n\nProblems found:\n%s\n\nPlease resend a corrected order including product names with quantities, your delivery address, and your account number.",
			msg.OrderError),
		Accepted: false,
	}
}

const supplierPrompt = `You are a wholesale supplier responding to a purchase order email.

SUPPLIER CONTEXT:
%s

INCOMING ORDER:
FROM: %s
SUBJECT: %s
BODY:
%s

PARSED LINE ITEMS (JSON): %s

Respond with ONLY valid JSON (no markdown fences) in this exact shape:
{
  "accepted": true,
  "body": "professional email body confirming the order, wholesale pricing, and the delivery date",
  "days_until_delivery": 2,
  "items": [
    {"name": "Cola", "size": "small", "quantity": 20, "unit_cost": 0.85}
  ]
}

Rules:
- days_until_delivery must be an integer between 1 and 5.
- Quote realistic wholesale unit costs well below retail.
- size must be "small" or "large" based on the physical product.
- Echo every requested line item; adjust quantities only for plausible case-pack rounding.`

// LLMSupplier generates supplier replies with the model collaborator,
// optionally enriched with web-search context about the recipient.
type LLMSupplier struct {
	provider llm.Provider
	searcher search.Searcher
}

// NewLLMSupplier creates a generator. searcher may be nil.
func NewLLMSupplier(provider llm.Provider, searcher search.Searcher) *LLMSupplier {
	return &LLMSupplier{provider: provider, searcher: searcher}
}

// GenerateReply implements ReplyGenerator.
func (s *LLMSupplier) GenerateReply(ctx context.Context, msg *Message, order Order) (Reply, error) {
	supplierContext := "Standard wholesale distributor of vending machine products."
	if s.searcher != nil {
		query := fmt.Sprintf("wholesale supplier %s vending machine products pricing delivery terms", msg.Recipient)
		if found, err := s.searcher.Search(ctx, query); err == nil {
			supplierContext = found
		} else {
			slog.Debug("supplier context search failed", "recipient", msg.Recipient, "error", err)
		}
	}

	itemsJSON, _ := json.Marshal(order.Items)
	prompt := fmt.Sprintf(supplierPrompt, supplierContext, msg.Sender, msg.Subject, msg.Body, string(itemsJSON))

	resp, err := llm.CompleteWithRetry(ctx, s.provider, llm.CompletionRequest{
		SystemPrompt: "You respond only with valid JSON.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:    1024,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("generate supplier reply: %w", err)
	}

	reply, err := parseReply(resp.Content)
	if err != nil {
		slog.Warn("unparseable supplier reply, using fallback", "error", err)
		return FallbackSupplier{}.reply(order), nil
	}
	return reply, nil
}

func parseReply(content string) (Reply, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var reply Reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return Reply{}, fmt.Errorf("parse supplier reply: %w", err)
	}
	if reply.Accepted {
		if reply.ETADays < 1 {
			reply.ETADays = 1
		}
		if reply.ETADays > 5 {
			reply.ETADays = 5
		}
		if len(reply.Items) == 0 {
			return Reply{}, fmt.Errorf("accepted reply with no items")
		}
	}
	return reply, nil
}

// FallbackSupplier is a deterministic generator used when no model is
// configured and in tests: accepts every valid order with a 2-day ETA and
// size-based wholesale costs.
type FallbackSupplier struct{}

// GenerateReply implements ReplyGenerator.
func (f FallbackSupplier) GenerateReply(_ context.Context, _ *Message, order Order) (Reply, error) {
	return f.reply(order), nil
}

func (f FallbackSupplier) reply(order Order) Reply {
	items := make([]ReplyItem, 0, len(order.Items))
	lines := make([]string, 0, len(order.Items))
	total := 0.0
	for _, it := range order.Items {
		size := "small"
		cost := 1.00
		if looksLarge(it.Name) {
			size = "large"
			cost = 2.50
		}
		items = append(items, ReplyItem{Name: it.Name, Size: size, Quantity: it.Quantity, UnitCost: cost})
		lineTotal := cost * float64(it.Quantity)
		total += lineTotal
		lines = append(lines, fmt.Sprintf("- %s x%d @ $%.2f = $%.2f", it.Name, it.Quantity, cost, lineTotal))
	}

	body := fmt.Sprintf(
		"Thank you for your order. We confirm the following items:\n%s\n\nOrder total: $%.2f, billed on delivery.\nYour shipment will arrive in 2 business days by 6:00 AM.",
		strings.Join(lines, "\n"), total)

	return Reply{Body: body, Accepted: true, ETADays: 2, Items: items}
}

func looksLarge(name string) bool {
	n := strings.ToLower(name)
	for _, hint := range []string{"sandwich", "meal", "wrap", "burrito", "bottle", "salad"} {
		if strings.Contains(n, hint) {
			return true
		}
	}
	return false
}
