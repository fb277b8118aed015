package gateway

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// fakeBarSource replays a fixed slice of bars.
type fakeBarSource struct {
	bars   []types.MarketData
	closed bool
}

func (f *fakeBarSource) Initialize(string) error {
	return nil
}

func (f *fakeBarSource) Count(optional.Option[time.Time], optional.Option[time.Time]) (int, error) {
	return len(f.bars), nil
}

func (f *fakeBarSource) ReadAll(optional.Option[time.Time], optional.Option[time.Time]) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		for _, bar := range f.bars {
			if !yield(bar, nil) {
				return
			}
		}
	}
}

func (f *fakeBarSource) Close() error {
	f.closed = true

	return nil
}

func bars(symbol string, closes ...float64) []types.MarketData {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	result := make([]types.MarketData, 0, len(closes))

	for i, c := range closes {
		result = append(result, types.MarketData{
			Symbol: symbol,
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1000,
		})
	}

	return result
}

type SimulatedGatewayTestSuite struct {
	suite.Suite
	source *fakeBarSource
	gw     *Simulated
}

func TestSimulatedGatewaySuite(t *testing.T) {
	suite.Run(t, new(SimulatedGatewayTestSuite))
}

func (suite *SimulatedGatewayTestSuite) SetupTest() {
	suite.source = &fakeBarSource{bars: bars("AAPL", 100, 101, 102)}
	suite.gw = NewSimulated(SimulatedConfig{}, suite.source, logger.NewNopLogger())
}

func (suite *SimulatedGatewayTestSuite) TestEventsReplayInOrder() {
	var seen []float64

	for bar, err := range suite.gw.Events(context.Background()) {
		suite.Require().NoError(err)
		seen = append(seen, bar.Close)
	}

	suite.Assert().Equal([]float64{100, 101, 102}, seen)
}

func (suite *SimulatedGatewayTestSuite) TestSubmitBeforeAnyDataRejected() {
	err := suite.gw.SubmitOrder(context.Background(), types.Order{ID: "o1", Symbol: "AAPL", Quantity: 1})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeGatewayRejected))
}

func (suite *SimulatedGatewayTestSuite) TestFillsAtCurrentClose() {
	ctx := context.Background()

	for bar, err := range suite.gw.Events(ctx) {
		suite.Require().NoError(err)

		if bar.Close == 101 {
			err := suite.gw.SubmitOrder(ctx, types.Order{
				ID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 5,
			})
			suite.Require().NoError(err)

			fills := suite.gw.PollFills()
			suite.Require().Len(fills, 1)
			suite.Assert().Equal("o1", fills[0].OrderID)
			suite.Assert().Equal(101.0, fills[0].Price)
			suite.Assert().Equal(5.0, fills[0].Quantity)
			suite.Assert().Equal(bar.Time, fills[0].Timestamp)
		}
	}
}

func (suite *SimulatedGatewayTestSuite) TestChunkedFills() {
	gw := NewSimulated(SimulatedConfig{FillChunk: 4}, &fakeBarSource{bars: bars("AAPL", 100)}, logger.NewNopLogger())
	ctx := context.Background()

	for range gw.Events(ctx) {
	}

	err := gw.SubmitOrder(ctx, types.Order{ID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 10})
	suite.Require().NoError(err)

	fills := gw.PollFills()
	suite.Require().Len(fills, 3)
	suite.Assert().Equal(4.0, fills[0].Quantity)
	suite.Assert().Equal(4.0, fills[1].Quantity)
	suite.Assert().Equal(2.0, fills[2].Quantity)

	total := 0.0
	for _, fill := range fills {
		suite.Assert().Equal(100.0, fill.Price)
		total += fill.Quantity
	}

	suite.Assert().Equal(10.0, total)
}

func (suite *SimulatedGatewayTestSuite) TestUnknownSymbolRejected() {
	ctx := context.Background()

	for range suite.gw.Events(ctx) {
	}

	err := suite.gw.SubmitOrder(ctx, types.Order{ID: "o1", Symbol: "TSLA", Quantity: 1})
	suite.Require().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeGatewayRejected))
}

func (suite *SimulatedGatewayTestSuite) TestPollFillsDrains() {
	ctx := context.Background()

	for range suite.gw.Events(ctx) {
	}

	err := suite.gw.SubmitOrder(ctx, types.Order{ID: "o1", Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 1})
	suite.Require().NoError(err)

	suite.Assert().Len(suite.gw.PollFills(), 1)
	suite.Assert().Empty(suite.gw.PollFills())
}

func (suite *SimulatedGatewayTestSuite) TestContextCancellationStopsEvents() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count int

	for _, err := range suite.gw.Events(ctx) {
		suite.Require().NoError(err)

		count++

		cancel()
	}

	suite.Assert().Equal(1, count)
}

func (suite *SimulatedGatewayTestSuite) TestCloseClosesSource() {
	suite.Require().NoError(suite.gw.Close())
	suite.Assert().True(suite.source.closed)
}
