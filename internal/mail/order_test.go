package mail

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrderBody() string {
	return fmt.Sprintf(
		"Hello,\n\nPlease send 20 units of Cola,\n15 units of Chips,\nWrap x5.\n\nDeliver to: %s\nAccount: %s\n\nThanks",
		DeliveryAddress, AccountNumber)
}

func TestParseOrderValid(t *testing.T) {
	order, err := ParseOrder(validOrderBody())
	require.NoError(t, err)

	assert.Equal(t, DeliveryAddress, order.Address)
	assert.Equal(t, AccountNumber, order.Account)
	require.Len(t, order.Items, 3)

	byName := map[string]int{}
	for _, it := range order.Items {
		byName[it.Name] = it.Quantity
	}
	assert.Equal(t, 20, byName["Cola"])
	assert.Equal(t, 15, byName["Chips"])
	assert.Equal(t, 5, byName["Wrap"])
}

func TestParseOrderAggregatesRepeatedItems(t *testing.T) {
	body := fmt.Sprintf("5 units of Cola,\ncola x3.\n%s\n%s", DeliveryAddress, AccountNumber)
	order, err := ParseOrder(body)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 8, order.Items[0].Quantity)
}

func TestParseOrderMissingPieces(t *testing.T) {
	_, err := ParseOrder("Hi, do you sell cola?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no product line items")
	assert.Contains(t, err.Error(), "missing delivery address")
	assert.Contains(t, err.Error(), "missing account number")

	// One missing piece is still an error, and only that piece is reported.
	body := fmt.Sprintf("20 units of Cola.\n%s", DeliveryAddress)
	_, err = ParseOrder(body)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "delivery address")
	assert.Contains(t, err.Error(), "missing account number")
}
