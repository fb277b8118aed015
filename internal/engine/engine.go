package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradecore-lab/tradecore/internal/gateway"
	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/ordermanager"
	"github.com/tradecore-lab/tradecore/internal/portfolio"
	"github.com/tradecore-lab/tradecore/internal/store"
	"github.com/tradecore-lab/tradecore/internal/strategy"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// defaultHistoryLimit bounds the per-symbol price history handed to the
// strategy.
const defaultHistoryLimit = 512

// Config holds the engine's run parameters.
type Config struct {
	StrategyName   string
	StrategyParams map[string]float64
	// HistoryLimit caps the per-symbol price history. Zero selects the
	// default.
	HistoryLimit int
}

// Result is everything a finished run produced.
type Result struct {
	InitialCapital float64
	FinalEquity    float64
	EquityCurve    []types.EquityPoint
	Fills          []types.Fill
	Rejections     []types.Rejection
	Orders         []types.Order
}

// Engine drives the run: it consumes gateway events one at a time and, for
// each, drains fills, marks the portfolio, consults the strategy, routes any
// intent through validation to the gateway, drains fills again and snapshots
// equity. One event in, at most one order out, exactly one equity point
// appended. A single bad order never stops the run.
type Engine struct {
	cfg      Config
	gateway  gateway.Gateway
	orders   *ordermanager.OrderManager
	pf       *portfolio.Portfolio
	registry *strategy.Registry
	runStore *store.RunStore
	log      *logger.Logger

	strategies map[string]strategy.Strategy
	histories  map[string][]types.PricePoint

	fillLog      []types.Fill
	rejectionLog []types.Rejection

	onEvent func(types.MarketData)
}

// New wires an engine from its collaborators.
func New(cfg Config, gw gateway.Gateway, orders *ordermanager.OrderManager, pf *portfolio.Portfolio,
	registry *strategy.Registry, runStore *store.RunStore, log *logger.Logger,
) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	return &Engine{
		cfg:          cfg,
		gateway:      gw,
		orders:       orders,
		pf:           pf,
		registry:     registry,
		runStore:     runStore,
		log:          log,
		strategies:   make(map[string]strategy.Strategy),
		histories:    make(map[string][]types.PricePoint),
		fillLog:      nil,
		rejectionLog: nil,
		onEvent:      nil,
	}
}

// OnEvent registers a callback invoked after each processed event, used for
// progress reporting.
func (e *Engine) OnEvent(callback func(types.MarketData)) {
	e.onEvent = callback
}

// Run processes gateway events until the stream ends or the context is
// cancelled. Queued fills are drained one last time before returning so a
// live shutdown does not lose executions already reported.
func (e *Engine) Run(ctx context.Context) error {
	var lastEventTime time.Time

	for event, err := range e.gateway.Events(ctx) {
		if err != nil {
			e.log.Error("event stream failed", zap.Error(err))
			e.finish(lastEventTime)

			return err
		}

		if err := e.process(ctx, event); err != nil {
			e.finish(lastEventTime)

			return err
		}

		lastEventTime = event.Time

		if e.onEvent != nil {
			e.onEvent(event)
		}
	}

	e.finish(lastEventTime)

	return nil
}

// process handles a single market data event.
func (e *Engine) process(ctx context.Context, event types.MarketData) error {
	e.drainFills()

	price := event.Price()
	e.pf.Mark(event.Symbol, price)

	history := e.appendHistory(event)

	strat, err := e.strategyFor(event.Symbol)
	if err != nil {
		return err
	}

	if intent := strat.OnPriceHistory(history); intent.IsSome() {
		e.routeIntent(ctx, intent.Unwrap(), event)
	}

	e.drainFills()

	point := e.pf.Snapshot(event.Time)
	if err := e.runStore.RecordEquity(point); err != nil {
		e.log.Error("failed to record equity point", zap.Error(err))
	}

	return nil
}

// routeIntent validates the intent and submits the resulting order. Both
// validation rejections and gateway rejections are logged and recorded; the
// run continues either way.
func (e *Engine) routeIntent(ctx context.Context, intent types.TradeIntent, event types.MarketData) {
	price := event.Price()

	order, err := e.orders.ValidateAndRegister(intent, event.Symbol, price, event.Time)
	if err != nil {
		e.recordRejection(intent, event, errors.GetCode(err), err.Error())
		e.log.Info("intent rejected",
			zap.String("symbol", event.Symbol),
			zap.String("side", string(intent.Side)),
			zap.Float64("quantity", intent.Quantity),
			zap.Error(err),
		)

		return
	}

	if err := e.runStore.RecordOrder(order); err != nil {
		e.log.Error("failed to record order", zap.Error(err))
	}

	if err := e.gateway.SubmitOrder(ctx, order); err != nil {
		rejected, markErr := e.orders.MarkRejected(order.ID, event.Time)
		if markErr == nil {
			order = rejected
		}

		if recordErr := e.runStore.RecordOrder(order); recordErr != nil {
			e.log.Error("failed to record order", zap.Error(recordErr))
		}

		e.recordRejection(intent, event, errors.ErrCodeGatewayRejected, err.Error())
		e.log.Warn("gateway rejected order",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// drainFills applies every queued fill. Fills the order manager refuses are
// discarded with a warning.
func (e *Engine) drainFills() {
	for _, fill := range e.gateway.PollFills() {
		order, err := e.orders.ApplyFill(fill)
		if err != nil {
			e.log.Warn("discarding fill",
				zap.String("order_id", fill.OrderID),
				zap.Float64("quantity", fill.Quantity),
				zap.Error(err),
			)

			continue
		}

		e.fillLog = append(e.fillLog, fill)

		if err := e.runStore.RecordFill(fill); err != nil {
			e.log.Error("failed to record fill", zap.Error(err))
		}

		if err := e.runStore.RecordOrder(order); err != nil {
			e.log.Error("failed to record order", zap.Error(err))
		}
	}
}

// finish drains any fills still queued after the stream ended and, if that
// moved the books, appends one closing equity point.
func (e *Engine) finish(lastEventTime time.Time) {
	before := len(e.fillLog)
	e.drainFills()

	if len(e.fillLog) == before || lastEventTime.IsZero() {
		return
	}

	point := e.pf.Snapshot(lastEventTime)
	if err := e.runStore.RecordEquity(point); err != nil {
		e.log.Error("failed to record equity point", zap.Error(err))
	}
}

// appendHistory pushes the event's price onto the symbol's history, trimming
// to the configured limit.
func (e *Engine) appendHistory(event types.MarketData) []types.PricePoint {
	history := append(e.histories[event.Symbol], types.PricePoint{
		Time:  event.Time,
		Price: event.Price(),
	})

	if len(history) > e.cfg.HistoryLimit {
		history = history[len(history)-e.cfg.HistoryLimit:]
	}

	e.histories[event.Symbol] = history

	return history
}

// strategyFor lazily creates one strategy instance per symbol so per-symbol
// state never bleeds across markets.
func (e *Engine) strategyFor(symbol string) (strategy.Strategy, error) {
	if strat, ok := e.strategies[symbol]; ok {
		return strat, nil
	}

	strat, err := e.registry.Create(e.cfg.StrategyName, e.cfg.StrategyParams)
	if err != nil {
		return nil, err
	}

	e.strategies[symbol] = strat

	return strat, nil
}

// recordRejection appends to the rejection log and the run store.
func (e *Engine) recordRejection(intent types.TradeIntent, event types.MarketData, code errors.ErrorCode, message string) {
	rejection := types.Rejection{
		Time:     event.Time,
		Symbol:   event.Symbol,
		Side:     intent.Side,
		Quantity: intent.Quantity,
		Price:    event.Price(),
		Code:     code,
		Message:  message,
	}

	e.rejectionLog = append(e.rejectionLog, rejection)

	if err := e.runStore.RecordRejection(rejection); err != nil {
		e.log.Error("failed to record rejection", zap.Error(err))
	}
}

// Result returns the run's logs and final balances.
func (e *Engine) Result() Result {
	fills := make([]types.Fill, len(e.fillLog))
	copy(fills, e.fillLog)

	rejections := make([]types.Rejection, len(e.rejectionLog))
	copy(rejections, e.rejectionLog)

	return Result{
		InitialCapital: e.pf.InitialCapital(),
		FinalEquity:    e.pf.TotalEquity(),
		EquityCurve:    e.pf.EquityCurve(),
		Fills:          fills,
		Rejections:     rejections,
		Orders:         e.orders.Orders(),
	}
}
