package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusProcessing.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("confirmed").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusProcessing))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))

	// Both terminal states admit no further transitions.
	for _, from := range []Status{StatusProcessing, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusProcessing, StatusCancelled} {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
}

func TestLineItemSubtotal(t *testing.T) {
	li := LineItem{
		ProductID: "p1",
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("10.00"),
	}
	assert.True(t, decimal.RequireFromString("30.00").Equal(li.Subtotal()))
}
