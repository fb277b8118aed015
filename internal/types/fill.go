package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// Fill is a confirmation that some or all of an order's quantity executed at
// a price. Fills are immutable once recorded; several fills may reference the
// same order.
type Fill struct {
	OrderID   string    `yaml:"order_id" json:"order_id" csv:"order_id" validate:"required"`
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side      OrderSide `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Quantity  float64   `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	Price     float64   `yaml:"price" json:"price" csv:"price" validate:"required,gt=0"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp" validate:"required"`
}

// Validate validates the Fill struct.
func (f *Fill) Validate() error {
	validate := validator.New()
	if err := validate.Struct(f); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFill, "invalid fill", err)
	}

	return nil
}

// SignedQuantity returns the fill quantity signed by side: positive for buys,
// negative for sells.
func (f *Fill) SignedQuantity() float64 {
	if f.Side == OrderSideSell {
		return -f.Quantity
	}

	return f.Quantity
}
