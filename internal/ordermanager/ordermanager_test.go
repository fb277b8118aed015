package ordermanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/portfolio"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

type OrderManagerTestSuite struct {
	suite.Suite
	pf      *portfolio.Portfolio
	manager *OrderManager
	now     time.Time
}

func TestOrderManagerSuite(t *testing.T) {
	suite.Run(t, new(OrderManagerTestSuite))
}

func (suite *OrderManagerTestSuite) SetupTest() {
	log := logger.NewNopLogger()
	suite.pf = portfolio.New(100000, false, log)
	suite.manager = New(Config{
		MaxOrderValue:      10000,
		MaxOrdersPerMinute: 3,
		AllowNegativeCash:  false,
	}, suite.pf, log)
	suite.now = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
}

func (suite *OrderManagerTestSuite) buy(quantity, price float64) (types.Order, error) {
	return suite.manager.ValidateAndRegister(
		types.TradeIntent{Side: types.OrderSideBuy, Quantity: quantity},
		"AAPL", price, suite.now,
	)
}

func (suite *OrderManagerTestSuite) TestRegisterValidOrder() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	suite.Assert().NotEmpty(order.ID)
	suite.Assert().Equal("AAPL", order.Symbol)
	suite.Assert().Equal(types.OrderSideBuy, order.Side)
	suite.Assert().Equal(types.OrderStatusNew, order.Status)
	suite.Assert().Equal(10.0, order.Quantity)
	suite.Assert().Equal(0.0, order.FilledQuantity)
	suite.Assert().Equal(suite.now, order.CreatedAt)
}

func (suite *OrderManagerTestSuite) TestRejectsOrderValueExceeded() {
	_, err := suite.buy(200, 100)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeOrderValueExceeded))
	suite.Assert().Empty(suite.manager.Orders())
}

func (suite *OrderManagerTestSuite) TestOrderValueCheckedBeforeQuantity() {
	// A negative quantity with an excessive absolute value fails the value
	// check first.
	_, err := suite.buy(-200, 100)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeOrderValueExceeded))
}

func (suite *OrderManagerTestSuite) TestRejectsNonPositiveQuantity() {
	_, err := suite.buy(0, 100)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidQuantity))

	_, err = suite.buy(-5, 100)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidQuantity))
}

func (suite *OrderManagerTestSuite) TestRateLimitExceeded() {
	for i := 0; i < 3; i++ {
		_, err := suite.buy(1, 100)
		suite.Require().NoError(err)
	}

	_, err := suite.buy(1, 100)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeRateLimitExceeded))
}

func (suite *OrderManagerTestSuite) TestRateLimitWindowSlides() {
	for i := 0; i < 3; i++ {
		_, err := suite.buy(1, 100)
		suite.Require().NoError(err)
	}

	// Just past the window the oldest stamp expires and submission resumes.
	suite.now = suite.now.Add(time.Minute + time.Second)

	_, err := suite.buy(1, 100)
	suite.Assert().NoError(err)
}

func (suite *OrderManagerTestSuite) TestSpacedOrdersNeverRateLimited() {
	for i := 0; i < 10; i++ {
		_, err := suite.buy(1, 100)
		suite.Require().NoError(err)

		suite.now = suite.now.Add(61 * time.Second)
	}
}

func (suite *OrderManagerTestSuite) TestRejectedOrderDoesNotCountTowardRate() {
	for i := 0; i < 5; i++ {
		_, err := suite.buy(0, 100)
		suite.Require().Error(err)
	}

	for i := 0; i < 3; i++ {
		_, err := suite.buy(1, 100)
		suite.Require().NoError(err)
	}
}

func (suite *OrderManagerTestSuite) TestRejectsInsufficientCash() {
	pf := portfolio.New(500, false, logger.NewNopLogger())
	manager := New(Config{MaxOrderValue: 10000, MaxOrdersPerMinute: 10, AllowNegativeCash: false}, pf, logger.NewNopLogger())

	_, err := manager.ValidateAndRegister(
		types.TradeIntent{Side: types.OrderSideBuy, Quantity: 10},
		"AAPL", 100, suite.now,
	)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInsufficientCash))
}

func (suite *OrderManagerTestSuite) TestAllowNegativeCashSkipsCashCheck() {
	pf := portfolio.New(500, true, logger.NewNopLogger())
	manager := New(Config{MaxOrderValue: 10000, MaxOrdersPerMinute: 10, AllowNegativeCash: true}, pf, logger.NewNopLogger())

	_, err := manager.ValidateAndRegister(
		types.TradeIntent{Side: types.OrderSideBuy, Quantity: 10},
		"AAPL", 100, suite.now,
	)
	suite.Assert().NoError(err)
}

func (suite *OrderManagerTestSuite) TestSellNeverCashChecked() {
	pf := portfolio.New(1, false, logger.NewNopLogger())
	manager := New(Config{MaxOrderValue: 10000, MaxOrdersPerMinute: 10, AllowNegativeCash: false}, pf, logger.NewNopLogger())

	_, err := manager.ValidateAndRegister(
		types.TradeIntent{Side: types.OrderSideSell, Quantity: 10},
		"AAPL", 100, suite.now,
	)
	suite.Assert().NoError(err)
}

func (suite *OrderManagerTestSuite) applyFullFill(order types.Order, price float64) types.Order {
	updated, err := suite.manager.ApplyFill(types.Fill{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     price,
		Timestamp: suite.now,
	})
	suite.Require().NoError(err)

	return updated
}

func (suite *OrderManagerTestSuite) TestFullFill() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	updated := suite.applyFullFill(order, 100)

	suite.Assert().Equal(types.OrderStatusFilled, updated.Status)
	suite.Assert().Equal(10.0, updated.FilledQuantity)
	suite.Assert().Equal(100.0, updated.AvgFillPrice)
	suite.Assert().Equal(0.0, updated.Remaining())
}

func (suite *OrderManagerTestSuite) TestPartialFillsAverage() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	updated, err := suite.manager.ApplyFill(types.Fill{
		OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 5, Price: 100, Timestamp: suite.now,
	})
	suite.Require().NoError(err)
	suite.Assert().Equal(types.OrderStatusPartiallyFilled, updated.Status)
	suite.Assert().Equal(5.0, updated.FilledQuantity)

	updated, err = suite.manager.ApplyFill(types.Fill{
		OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 5, Price: 102, Timestamp: suite.now.Add(time.Second),
	})
	suite.Require().NoError(err)
	suite.Assert().Equal(types.OrderStatusFilled, updated.Status)
	suite.Assert().Equal(10.0, updated.FilledQuantity)
	suite.Assert().InDelta(101.0, updated.AvgFillPrice, 1e-9)
}

func (suite *OrderManagerTestSuite) TestFractionalChunkedFillsReachFilled() {
	order, err := suite.buy(1.0, 100)
	suite.Require().NoError(err)

	// Chunking 1.0 into 0.3 pieces leaves float residue; the accumulated
	// quantity must still terminate the order.
	var updated types.Order

	remaining := order.Quantity
	for remaining > 0 {
		quantity := remaining
		if quantity > 0.3 {
			quantity = 0.3
		}

		updated, err = suite.manager.ApplyFill(types.Fill{
			OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
			Quantity: quantity, Price: 100, Timestamp: suite.now,
		})
		suite.Require().NoError(err)

		remaining -= quantity
	}

	suite.Assert().Equal(types.OrderStatusFilled, updated.Status)
	suite.Assert().Equal(1.0, updated.FilledQuantity)
	suite.Assert().Equal(0.0, updated.Remaining())
	suite.Assert().InDelta(100.0, updated.AvgFillPrice, 1e-9)
}

func (suite *OrderManagerTestSuite) TestOverFillRejected() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	_, err = suite.manager.ApplyFill(types.Fill{
		OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 11, Price: 100, Timestamp: suite.now,
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeOverFill))

	// The order is untouched.
	current, err := suite.manager.Order(order.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(0.0, current.FilledQuantity)
	suite.Assert().Equal(types.OrderStatusNew, current.Status)
}

func (suite *OrderManagerTestSuite) TestFillForUnknownOrder() {
	_, err := suite.manager.ApplyFill(types.Fill{
		OrderID: "nope", Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 1, Price: 100, Timestamp: suite.now,
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeUnknownOrder))
}

func (suite *OrderManagerTestSuite) TestFillAfterCancelIsStale() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	_, err = suite.manager.Cancel(order.ID, suite.now)
	suite.Require().NoError(err)

	_, err = suite.manager.ApplyFill(types.Fill{
		OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 10, Price: 100, Timestamp: suite.now,
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeStaleFill))

	// The discarded fill never reached the portfolio.
	suite.Assert().Equal(100000.0, suite.pf.Cash())
}

func (suite *OrderManagerTestSuite) TestNonPositiveFillRejected() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	_, err = suite.manager.ApplyFill(types.Fill{
		OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 0, Price: 100, Timestamp: suite.now,
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidFill))

	_, err = suite.manager.ApplyFill(types.Fill{
		OrderID: order.ID, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 5, Price: -1, Timestamp: suite.now,
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidFill))
}

func (suite *OrderManagerTestSuite) TestFillUpdatesPortfolio() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	suite.applyFullFill(order, 100)

	suite.Assert().InDelta(99000.0, suite.pf.Cash(), 1e-9)
	suite.Assert().Equal(10.0, suite.pf.Position("AAPL").Quantity)
}

func (suite *OrderManagerTestSuite) TestCancelOpenOrder() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	cancelled, err := suite.manager.Cancel(order.ID, suite.now.Add(time.Second))
	suite.Require().NoError(err)
	suite.Assert().Equal(types.OrderStatusCancelled, cancelled.Status)
}

func (suite *OrderManagerTestSuite) TestCancelIsIdempotent() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	first, err := suite.manager.Cancel(order.ID, suite.now)
	suite.Require().NoError(err)

	second, err := suite.manager.Cancel(order.ID, suite.now.Add(time.Minute))
	suite.Require().NoError(err)
	suite.Assert().Equal(first.Status, second.Status)
	suite.Assert().Equal(first.UpdatedAt, second.UpdatedAt)
}

func (suite *OrderManagerTestSuite) TestCancelFilledOrderIsNoOp() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	suite.applyFullFill(order, 100)

	result, err := suite.manager.Cancel(order.ID, suite.now)
	suite.Require().NoError(err)
	suite.Assert().Equal(types.OrderStatusFilled, result.Status)
}

func (suite *OrderManagerTestSuite) TestCancelUnknownOrder() {
	_, err := suite.manager.Cancel("nope", suite.now)
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeUnknownOrder))
}

func (suite *OrderManagerTestSuite) TestMarkRejected() {
	order, err := suite.buy(10, 100)
	suite.Require().NoError(err)

	rejected, err := suite.manager.MarkRejected(order.ID, suite.now)
	suite.Require().NoError(err)
	suite.Assert().Equal(types.OrderStatusRejected, rejected.Status)

	// Terminal already, further rejection is a no-op.
	again, err := suite.manager.MarkRejected(order.ID, suite.now.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Assert().Equal(rejected.UpdatedAt, again.UpdatedAt)
}

func (suite *OrderManagerTestSuite) TestOpenOrders() {
	first, err := suite.buy(1, 100)
	suite.Require().NoError(err)

	second, err := suite.buy(2, 100)
	suite.Require().NoError(err)

	_, err = suite.manager.Cancel(first.ID, suite.now)
	suite.Require().NoError(err)

	open := suite.manager.OpenOrders()
	suite.Require().Len(open, 1)
	suite.Assert().Equal(second.ID, open[0].ID)

	suite.Assert().Len(suite.manager.Orders(), 2)
}
