package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

type RunStoreTestSuite struct {
	suite.Suite
	store *RunStore
	now   time.Time
}

func TestRunStoreSuite(t *testing.T) {
	suite.Run(t, new(RunStoreTestSuite))
}

func (suite *RunStoreTestSuite) SetupTest() {
	s, err := NewRunStore(logger.NewNopLogger())
	suite.Require().NoError(err)

	suite.store = s
	suite.now = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
}

func (suite *RunStoreTestSuite) TearDownTest() {
	suite.store.Close()
}

func (suite *RunStoreTestSuite) TestRecordOrderUpsert() {
	order := types.Order{
		ID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Quantity: 10, Price: 100, Status: types.OrderStatusNew,
		CreatedAt: suite.now, UpdatedAt: suite.now,
	}
	suite.Require().NoError(suite.store.RecordOrder(order))

	order.FilledQuantity = 10
	order.AvgFillPrice = 100
	order.Status = types.OrderStatusFilled
	order.UpdatedAt = suite.now.Add(time.Second)
	suite.Require().NoError(suite.store.RecordOrder(order))

	orders, err := suite.store.Orders()
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.Assert().Equal(types.OrderStatusFilled, orders[0].Status)
	suite.Assert().Equal(10.0, orders[0].FilledQuantity)
}

func (suite *RunStoreTestSuite) TestFillsReadBackInOrder() {
	for i := 3; i >= 1; i-- {
		suite.Require().NoError(suite.store.RecordFill(types.Fill{
			OrderID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy,
			Quantity: float64(i), Price: 100,
			Timestamp: suite.now.Add(time.Duration(i) * time.Minute),
		}))
	}

	fills, err := suite.store.Fills()
	suite.Require().NoError(err)
	suite.Require().Len(fills, 3)

	for i := 1; i < len(fills); i++ {
		suite.Assert().True(fills[i].Timestamp.After(fills[i-1].Timestamp))
	}
}

func (suite *RunStoreTestSuite) TestEquityCurveRoundTrip() {
	for i := 0; i < 3; i++ {
		suite.Require().NoError(suite.store.RecordEquity(types.EquityPoint{
			Time:   suite.now.Add(time.Duration(i) * time.Minute),
			Cash:   100000,
			Equity: 100000 + float64(i),
		}))
	}

	curve, err := suite.store.EquityCurve()
	suite.Require().NoError(err)
	suite.Require().Len(curve, 3)
	suite.Assert().Equal(100002.0, curve[2].Equity)
}

func (suite *RunStoreTestSuite) TestRejectionsRoundTrip() {
	suite.Require().NoError(suite.store.RecordRejection(types.Rejection{
		Time: suite.now, Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 500, Price: 100,
		Code: errors.ErrCodeOrderValueExceeded, Message: "too big",
	}))

	rejections, err := suite.store.Rejections()
	suite.Require().NoError(err)
	suite.Require().Len(rejections, 1)
	suite.Assert().Equal(errors.ErrCodeOrderValueExceeded, rejections[0].Code)
	suite.Assert().Equal("too big", rejections[0].Message)
}

func (suite *RunStoreTestSuite) TestExportWritesCSVs() {
	dir := suite.T().TempDir()

	suite.Require().NoError(suite.store.RecordFill(types.Fill{
		OrderID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 1, Price: 100, Timestamp: suite.now,
	}))

	suite.Require().NoError(suite.store.Export(dir))

	for _, name := range []string{"orders.csv", "fills.csv", "equity.csv", "rejections.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		suite.Assert().NoError(err, name)
	}
}

func (suite *RunStoreTestSuite) TestCleanupResetsTables() {
	suite.Require().NoError(suite.store.RecordFill(types.Fill{
		OrderID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy,
		Quantity: 1, Price: 100, Timestamp: suite.now,
	}))

	suite.Require().NoError(suite.store.Cleanup())

	fills, err := suite.store.Fills()
	suite.Require().NoError(err)
	suite.Assert().Empty(fills)
}
