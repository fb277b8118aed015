package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tradecore-lab/tradecore/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
)

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether an order in this status can never change again.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// TradeIntent is what a strategy emits: a desire to trade some quantity. The
// engine binds it to the current symbol and price before admission control.
type TradeIntent struct {
	Side     OrderSide `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity float64   `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
}

// Order is a registered order. FilledQuantity is monotonically non-decreasing
// and never exceeds Quantity; Status never moves backward.
type Order struct {
	ID             string      `yaml:"id" json:"id" csv:"id" validate:"required"`
	Symbol         string      `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side           OrderSide   `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type           OrderType   `yaml:"type" json:"type" csv:"type" validate:"required,oneof=MARKET"`
	Quantity       float64     `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	Price          float64     `yaml:"price" json:"price" csv:"price" validate:"required,gt=0"`
	FilledQuantity float64     `yaml:"filled_quantity" json:"filled_quantity" csv:"filled_quantity" validate:"gte=0"`
	AvgFillPrice   float64     `yaml:"avg_fill_price" json:"avg_fill_price" csv:"avg_fill_price" validate:"gte=0"`
	Status         OrderStatus `yaml:"status" json:"status" csv:"status" validate:"required"`
	CreatedAt      time.Time   `yaml:"created_at" json:"created_at" csv:"created_at" validate:"required"`
	UpdatedAt      time.Time   `yaml:"updated_at" json:"updated_at" csv:"updated_at" validate:"required"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order", err)
	}

	return nil
}

// Rejection is one entry of the rejection log: an intent that admission
// control or the gateway refused.
type Rejection struct {
	Time     time.Time       `yaml:"time" json:"time" csv:"time"`
	Symbol   string          `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side     OrderSide       `yaml:"side" json:"side" csv:"side"`
	Quantity float64         `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price    float64         `yaml:"price" json:"price" csv:"price"`
	Code     errors.ErrorCode `yaml:"code" json:"code" csv:"code"`
	Message  string          `yaml:"message" json:"message" csv:"message"`
}
