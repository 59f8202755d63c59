package mail

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentAddr = "vending.operator@business.com"

func TestSendRecordsOrderValidation(t *testing.T) {
	m := NewMailbox(agentAddr)
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	_, orderErr := ParseOrder("do you sell cola?")
	msg := m.Send("acme@example.com", "Question", "do you sell cola?", now, orderErr)

	assert.True(t, msg.Malformed)
	assert.Contains(t, msg.OrderError, "no product line items")
	assert.NotEmpty(t, msg.ThreadID)

	_, orderErr = ParseOrder(validOrderBody())
	ok := m.Send("acme@example.com", "Order", validOrderBody(), now, orderErr)
	assert.False(t, ok.Malformed)
	assert.Empty(t, ok.OrderError)
}

func TestAwaitingReplyLatency(t *testing.T) {
	m := NewMailbox(agentAddr)
	sentAt := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	msg := m.Send("acme@example.com", "Order", validOrderBody(), sentAt, nil)

	latency := 12 * time.Hour
	assert.Empty(t, m.AwaitingReply(sentAt.Add(11*time.Hour), latency))

	due := m.AwaitingReply(sentAt.Add(12*time.Hour), latency)
	require.Len(t, due, 1)
	assert.Equal(t, msg.ID, due[0].ID)

	m.MarkReplied(msg.ID)
	assert.Empty(t, m.AwaitingReply(sentAt.Add(48*time.Hour), latency))
}

func TestThreadContinuity(t *testing.T) {
	m := NewMailbox(agentAddr)
	t0 := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	out := m.Send("acme@example.com", "Order", validOrderBody(), t0, nil)
	m.Receive("acme@example.com", "Re: Order", "Confirmed.", out.ThreadID, t0.Add(20*time.Hour))
	m.Receive("acme@example.com", "Delivery notice", "Arrived.", out.ThreadID, t0.Add(44*time.Hour))
	m.Receive("other@example.com", "Spam", "Buy now", "", t0.Add(time.Hour))

	thread := m.Thread(out.ThreadID)
	require.Len(t, thread, 3)
	assert.Equal(t, out.ID, thread[0].ID)
	assert.True(t, thread[1].SentAt.Before(thread[2].SentAt))

	rendered := m.ReadThread(out.ThreadID)
	assert.Contains(t, rendered, "Confirmed.")
	assert.Contains(t, rendered, "Arrived.")
	assert.NotContains(t, rendered, "Buy now")
}

func TestReadUnreadMarksAndSeparates(t *testing.T) {
	m := NewMailbox(agentAddr)
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	m.Receive("a@example.com", "One", "first body", "", now)
	m.Receive("b@example.com", "Two", "second body", "", now.Add(time.Minute))

	assert.Equal(t, 2, m.UnreadCount())

	rendered := m.ReadUnread()
	assert.Contains(t, rendered, "first body")
	assert.Contains(t, rendered, "second body")
	assert.Contains(t, rendered, "----")

	assert.Zero(t, m.UnreadCount())
	assert.Equal(t, "No unread emails.", m.ReadUnread())
}

func TestReadThreadUnknown(t *testing.T) {
	m := NewMailbox(agentAddr)
	assert.Contains(t, m.ReadThread("nope"), "No conversation found")
}

func TestRejectionReplyQuotesProblems(t *testing.T) {
	_, orderErr := ParseOrder(fmt.Sprintf("20 units of Cola.\n%s", DeliveryAddress))
	msg := &Message{OrderError: orderErr.Error()}

	reply := RejectionReply(msg)
	assert.False(t, reply.Accepted)
	assert.Contains(t, reply.Body, "missing account number")
}
