package ordermanager

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/portfolio"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// rateLimitWindow is the span of the orders-per-minute sliding window.
const rateLimitWindow = time.Minute

// fillEpsilon is the tolerance for comparing accumulated fill quantities
// against the requested quantity. Chunked and venue fills arrive as floats,
// so a fully executed order can come up short of the exact quantity.
const fillEpsilon = 1e-9

// Config holds the admission-control limits.
type Config struct {
	MaxOrderValue      float64
	MaxOrdersPerMinute int
	AllowNegativeCash  bool
}

// OrderManager validates trade intents against risk limits, owns the order
// table and its state machine, and merges incoming fills into order and
// portfolio state. All operations are serialized by a single mutex so the
// check-then-register sequence is one atomic step per order.
type OrderManager struct {
	mu sync.Mutex

	cfg       Config
	portfolio *portfolio.Portfolio
	orders    map[string]*types.Order
	orderIDs  []string
	window    *rateWindow
	log       *logger.Logger
}

// New creates an order manager bound to the given portfolio.
func New(cfg Config, pf *portfolio.Portfolio, log *logger.Logger) *OrderManager {
	return &OrderManager{
		cfg:       cfg,
		portfolio: pf,
		orders:    make(map[string]*types.Order),
		orderIDs:  nil,
		window:    newRateWindow(rateLimitWindow),
		log:       log,
	}
}

// ValidateAndRegister runs the admission checks in order (order value, rate
// limit, quantity, then cash) and registers a new order if all pass. The
// first failing check determines the rejection; a rejected intent is never
// stored as an order.
func (m *OrderManager) ValidateAndRegister(intent types.TradeIntent, symbol string, price float64, now time.Time) (types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orderValue, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(intent.Quantity)).Abs().Float64()
	if orderValue > m.cfg.MaxOrderValue {
		return types.Order{}, errors.Newf(errors.ErrCodeOrderValueExceeded,
			"order value %.2f exceeds limit %.2f", orderValue, m.cfg.MaxOrderValue)
	}

	if m.window.size(now) >= m.cfg.MaxOrdersPerMinute {
		return types.Order{}, errors.Newf(errors.ErrCodeRateLimitExceeded,
			"rate limit exceeded (%d orders/min)", m.cfg.MaxOrdersPerMinute)
	}

	if intent.Quantity <= 0 {
		return types.Order{}, errors.Newf(errors.ErrCodeInvalidQuantity,
			"quantity must be positive, got %f", intent.Quantity)
	}

	if intent.Side == types.OrderSideBuy && !m.cfg.AllowNegativeCash && !m.portfolio.CanAfford(orderValue) {
		return types.Order{}, errors.Newf(errors.ErrCodeInsufficientCash,
			"order cost %.2f exceeds available cash %.2f", orderValue, m.portfolio.Cash())
	}

	order := &types.Order{
		ID:             uuid.New().String(),
		Symbol:         symbol,
		Side:           intent.Side,
		Type:           types.OrderTypeMarket,
		Quantity:       intent.Quantity,
		Price:          price,
		FilledQuantity: 0,
		AvgFillPrice:   0,
		Status:         types.OrderStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m.orders[order.ID] = order
	m.orderIDs = append(m.orderIDs, order.ID)
	m.window.record(now)

	m.log.Debug("order registered",
		zap.String("order_id", order.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
		zap.Float64("price", price),
	)

	return *order, nil
}

// ApplyFill merges a fill into its order: filled quantity increments, the
// average fill price is recomputed as a weighted average, and the status
// advances to PARTIALLY_FILLED or FILLED. The fill is forwarded to the
// portfolio before returning. Fills for unknown, terminal, or already-full
// orders are rejected and must be discarded by the caller.
func (m *OrderManager) ApplyFill(fill types.Fill) (types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[fill.OrderID]
	if !ok {
		return types.Order{}, errors.Newf(errors.ErrCodeUnknownOrder, "no order with id %s", fill.OrderID)
	}

	if order.Status.IsTerminal() {
		return *order, errors.Newf(errors.ErrCodeStaleFill,
			"fill for order %s in terminal status %s", order.ID, order.Status)
	}

	if fill.Quantity <= 0 || fill.Price <= 0 {
		return *order, errors.Newf(errors.ErrCodeInvalidFill,
			"fill for order %s has non-positive quantity or price", order.ID)
	}

	if fill.Quantity > order.Remaining()+fillEpsilon {
		return *order, errors.Newf(errors.ErrCodeOverFill,
			"fill quantity %f exceeds remaining %f on order %s", fill.Quantity, order.Remaining(), order.ID)
	}

	// Weighted average over all filled quantity so far. A residual below
	// fillEpsilon snaps to the requested quantity so the order terminates.
	newFilled := order.FilledQuantity + fill.Quantity
	if order.Quantity-newFilled <= fillEpsilon {
		newFilled = order.Quantity
	}

	prevAmount := decimal.NewFromFloat(order.AvgFillPrice).Mul(decimal.NewFromFloat(order.FilledQuantity))
	fillAmount := decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromFloat(fill.Quantity))
	order.AvgFillPrice, _ = prevAmount.Add(fillAmount).Div(decimal.NewFromFloat(newFilled)).Float64()
	order.FilledQuantity = newFilled
	order.UpdatedAt = fill.Timestamp

	if order.FilledQuantity == order.Quantity {
		order.Status = types.OrderStatusFilled
	} else {
		order.Status = types.OrderStatusPartiallyFilled
	}

	// The portfolio sees the fill with the order's own symbol and side: live
	// gateways echo back only the order id.
	m.portfolio.ApplyFill(types.Fill{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  fill.Quantity,
		Price:     fill.Price,
		Timestamp: fill.Timestamp,
	})

	m.log.Debug("fill applied",
		zap.String("order_id", order.ID),
		zap.Float64("fill_quantity", fill.Quantity),
		zap.Float64("fill_price", fill.Price),
		zap.String("status", string(order.Status)),
	)

	return *order, nil
}

// Cancel transitions an order out of NEW or PARTIALLY_FILLED. Cancelling an
// order already in a terminal status is a no-op that returns the current
// state without error.
func (m *OrderManager) Cancel(orderID string, now time.Time) (types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return types.Order{}, errors.Newf(errors.ErrCodeUnknownOrder, "no order with id %s", orderID)
	}

	if order.Status.IsTerminal() {
		return *order, nil
	}

	order.Status = types.OrderStatusCancelled
	order.UpdatedAt = now

	m.log.Debug("order cancelled", zap.String("order_id", orderID))

	return *order, nil
}

// MarkRejected records a gateway-level rejection of an already-registered
// order. Terminal orders are left untouched.
func (m *OrderManager) MarkRejected(orderID string, now time.Time) (types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return types.Order{}, errors.Newf(errors.ErrCodeUnknownOrder, "no order with id %s", orderID)
	}

	if order.Status.IsTerminal() {
		return *order, nil
	}

	order.Status = types.OrderStatusRejected
	order.UpdatedAt = now

	m.log.Warn("order rejected by gateway", zap.String("order_id", orderID))

	return *order, nil
}

// Order returns a copy of the order with the given id.
func (m *OrderManager) Order(orderID string) (types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return types.Order{}, errors.Newf(errors.ErrCodeUnknownOrder, "no order with id %s", orderID)
	}

	return *order, nil
}

// Orders returns copies of all registered orders in creation order.
func (m *OrderManager) Orders() []types.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]types.Order, 0, len(m.orderIDs))
	for _, id := range m.orderIDs {
		orders = append(orders, *m.orders[id])
	}

	return orders
}

// OpenOrders returns copies of all orders not yet in a terminal status.
func (m *OrderManager) OpenOrders() []types.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open []types.Order

	for _, id := range m.orderIDs {
		if order := m.orders[id]; !order.Status.IsTerminal() {
			open = append(open, *order)
		}
	}

	return open
}
