package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.False(t, OrderStatusNew.IsTerminal())
	assert.False(t, OrderStatusPartiallyFilled.IsTerminal())
	assert.True(t, OrderStatusFilled.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRejected.IsTerminal())
}

func TestOrderRemaining(t *testing.T) {
	order := Order{Quantity: 10, FilledQuantity: 4}
	assert.Equal(t, 6.0, order.Remaining())
}

func TestOrderValidate(t *testing.T) {
	now := time.Now()
	order := Order{
		ID: "o1", Symbol: "AAPL", Side: OrderSideBuy, Type: OrderTypeMarket,
		Quantity: 10, Price: 100, Status: OrderStatusNew,
		CreatedAt: now, UpdatedAt: now,
	}
	assert.NoError(t, order.Validate())

	order.Quantity = -1
	assert.Error(t, order.Validate())
}

func TestFillSignedQuantity(t *testing.T) {
	buy := Fill{Side: OrderSideBuy, Quantity: 5}
	assert.Equal(t, 5.0, buy.SignedQuantity())

	sell := Fill{Side: OrderSideSell, Quantity: 5}
	assert.Equal(t, -5.0, sell.SignedQuantity())
}

func TestFillValidate(t *testing.T) {
	fill := Fill{
		OrderID: "o1", Symbol: "AAPL", Side: OrderSideBuy,
		Quantity: 5, Price: 100, Timestamp: time.Now(),
	}
	assert.NoError(t, fill.Validate())

	fill.Quantity = 0
	assert.Error(t, fill.Validate())
}

func TestMarketDataPrice(t *testing.T) {
	bar := MarketData{Open: 100, High: 104, Low: 99, Close: 102}
	assert.Equal(t, 102.0, bar.Price())
}

func TestPositionValuation(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100}

	assert.Equal(t, 1050.0, pos.MarketValue(105))
	assert.Equal(t, 50.0, pos.UnrealizedPnL(105))
	assert.False(t, pos.IsFlat())

	short := Position{Symbol: "AAPL", Quantity: -10, AvgCost: 100}
	assert.Equal(t, -1050.0, short.MarketValue(105))
	assert.Equal(t, -50.0, short.UnrealizedPnL(105))

	flat := Position{Symbol: "AAPL"}
	assert.True(t, flat.IsFlat())
}
