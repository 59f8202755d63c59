// Package mail implements the email channel between the agent and its
// simulated suppliers: an outbox with order validation, an inbox with
// thread continuity, and AI-authored supplier replies that commit to
// delivery dates.
package mail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one email in either direction.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
	Read      bool      `json:"read"`
	Malformed bool      `json:"malformed"`
	// OrderError holds the validation failure text for malformed orders so
	// the supplier rejection can quote it.
	OrderError string `json:"order_error,omitempty"`
}

// Mailbox holds one run's correspondence.
type Mailbox struct {
	agentAddr string
	inbox     []*Message
	outbox    []*Message
	replied   map[string]bool // outbound message ID → reply generated
	counter   int
}

// NewMailbox creates an empty mailbox for the agent address.
func NewMailbox(agentAddr string) *Mailbox {
	return &Mailbox{
		agentAddr: agentAddr,
		replied:   make(map[string]bool),
	}
}

// AgentAddress returns the agent's own address.
func (m *Mailbox) AgentAddress() string {
	return m.agentAddr
}

// Send places an outbound message into the outbox and starts a new
// thread. The order parse result is recorded on the message; malformed
// orders stay in the outbox flagged, and the supplier replies with a
// rejection rather than the message vanishing.
func (m *Mailbox) Send(recipient, subject, body string, now time.Time, orderErr error) *Message {
	m.counter++
	msg := &Message{
		ID:        fmt.Sprintf("sent_%03d", m.counter),
		ThreadID:  uuid.NewString(),
		Sender:    m.agentAddr,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    now,
	}
	if orderErr != nil {
		msg.Malformed = true
		msg.OrderError = orderErr.Error()
	}
	m.outbox = append(m.outbox, msg)
	return msg
}

// Receive places an inbound message into the inbox. threadID may be empty
// for unsolicited mail (e.g. delivery notices outside a conversation).
func (m *Mailbox) Receive(sender, subject, body, threadID string, now time.Time) *Message {
	m.counter++
	if threadID == "" {
		threadID = uuid.NewString()
	}
	msg := &Message{
		ID:        fmt.Sprintf("recv_%03d", m.counter),
		ThreadID:  threadID,
		Sender:    sender,
		Recipient: m.agentAddr,
		Subject:   subject,
		Body:      body,
		SentAt:    now,
	}
	m.inbox = append(m.inbox, msg)
	return msg
}

// AwaitingReply returns outbound messages older than latency that have no
// generated reply yet.
func (m *Mailbox) AwaitingReply(now time.Time, latency time.Duration) []*Message {
	var due []*Message
	for _, msg := range m.outbox {
		if m.replied[msg.ID] {
			continue
		}
		if now.Sub(msg.SentAt) >= latency {
			due = append(due, msg)
		}
	}
	return due
}

// MarkReplied records that a reply was generated for an outbound message.
func (m *Mailbox) MarkReplied(id string) {
	m.replied[id] = true
}

// Unread returns unread inbox messages in arrival order.
func (m *Mailbox) Unread() []*Message {
	var out []*Message
	for _, msg := range m.inbox {
		if !msg.Read {
			out = append(out, msg)
		}
	}
	return out
}

// UnreadCount returns the number of unread inbox messages.
func (m *Mailbox) UnreadCount() int {
	return len(m.Unread())
}

// Thread returns every message in a thread, both directions, ordered by
// send time.
func (m *Mailbox) Thread(threadID string) []*Message {
	var out []*Message
	for _, msg := range m.outbox {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	for _, msg := range m.inbox {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out
}

// ReadUnread formats all unread messages for the agent, grouped with
// "----" spacers, and marks them read.
func (m *Mailbox) ReadUnread() string {
	unread := m.Unread()
	if len(unread) == 0 {
		return "No unread emails."
	}
	parts := make([]string, 0, len(unread))
	for _, msg := range unread {
		parts = append(parts, formatMessage(msg))
		msg.Read = true
	}
	return strings.Join(parts, "\n----\n")
}

// ReadThread formats one conversation for the agent and marks its inbound
// messages read.
func (m *Mailbox) ReadThread(threadID string) string {
	msgs := m.Thread(threadID)
	if len(msgs) == 0 {
		return fmt.Sprintf("No conversation found for thread %s.", threadID)
	}
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, formatMessage(msg))
		if msg.Recipient == m.agentAddr {
			msg.Read = true
		}
	}
	return fmt.Sprintf("Thread %s:\n", threadID) + strings.Join(parts, "\n----\n")
}

func formatMessage(msg *Message) string {
	return fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nThread: %s\nDate: %s\n\n%s",
		msg.Sender, msg.Recipient, msg.Subject, msg.ThreadID,
		msg.SentAt.Format("2006-01-02 15:04 UTC"), msg.Body)
}
