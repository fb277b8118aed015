package gateway

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradecore-lab/tradecore/internal/datasource"
	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// SimulatedConfig configures the simulated market.
type SimulatedConfig struct {
	// FillChunk caps the quantity of a single simulated fill. Orders larger
	// than the chunk fill in several pieces at the same price. Zero disables
	// partial fills.
	FillChunk float64
	// StartTime and EndTime bound the replayed period.
	StartTime optional.Option[time.Time]
	EndTime   optional.Option[time.Time]
}

// Simulated replays historical bars from a BarSource and executes market
// orders synchronously at the current bar's close. It is single-threaded and
// fully deterministic: identical input data and configuration reproduce a
// run bit for bit.
type Simulated struct {
	mu sync.Mutex

	cfg    SimulatedConfig
	source datasource.BarSource
	log    *logger.Logger

	current    types.MarketData
	hasCurrent bool
	seen       map[string]struct{}
	fills      []types.Fill
}

// NewSimulated creates a simulated gateway over an initialized bar source.
func NewSimulated(cfg SimulatedConfig, source datasource.BarSource, log *logger.Logger) *Simulated {
	return &Simulated{
		cfg:        cfg,
		source:     source,
		log:        log,
		current:    types.MarketData{},
		hasCurrent: false,
		seen:       make(map[string]struct{}),
		fills:      nil,
	}
}

// Events implements Gateway. The iterator ends at end of data, which signals
// the engine to stop.
func (g *Simulated) Events(ctx context.Context) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		for bar, err := range g.source.ReadAll(g.cfg.StartTime, g.cfg.EndTime) {
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				yield(types.MarketData{}, err)

				return
			}

			g.mu.Lock()
			g.current = bar
			g.hasCurrent = true
			g.seen[bar.Symbol] = struct{}{}
			g.mu.Unlock()

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// SubmitOrder implements Gateway. Market orders fill at the current bar's
// close price, in one piece or in FillChunk-sized pieces. Orders for symbols
// the replay has never produced are rejected the way a real venue refuses an
// unknown symbol.
func (g *Simulated) SubmitOrder(_ context.Context, order types.Order) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasCurrent {
		return errors.New(errors.ErrCodeGatewayRejected, "no market data yet")
	}

	if _, ok := g.seen[order.Symbol]; !ok {
		return errors.Newf(errors.ErrCodeGatewayRejected, "unknown symbol %s", order.Symbol)
	}

	price := g.current.Price()
	timestamp := g.current.Time

	remaining := order.Quantity
	for remaining > 0 {
		quantity := remaining
		if g.cfg.FillChunk > 0 && quantity > g.cfg.FillChunk {
			quantity = g.cfg.FillChunk
		}

		g.fills = append(g.fills, types.Fill{
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Side:      order.Side,
			Quantity:  quantity,
			Price:     price,
			Timestamp: timestamp,
		})
		remaining -= quantity
	}

	g.log.Debug("simulated execution",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.Float64("quantity", order.Quantity),
		zap.Float64("price", price),
	)

	return nil
}

// PollFills implements Gateway.
func (g *Simulated) PollFills() []types.Fill {
	g.mu.Lock()
	defer g.mu.Unlock()

	fills := g.fills
	g.fills = nil

	return fills
}

// Count returns the number of bars the replay will produce.
func (g *Simulated) Count() (int, error) {
	return g.source.Count(g.cfg.StartTime, g.cfg.EndTime)
}

// Close implements Gateway.
func (g *Simulated) Close() error {
	return g.source.Close()
}

// Verify Simulated implements the Gateway interface.
var _ Gateway = (*Simulated)(nil)
