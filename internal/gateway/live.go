package gateway

import (
	"context"
	"iter"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

const (
	defaultFillQueueSize = 256
	keepaliveInterval    = 30 * time.Minute
)

// ExchangeClient is the REST surface of the exchange the live gateway uses.
// Tests substitute a scripted implementation.
type ExchangeClient interface {
	CreateMarketOrder(ctx context.Context, symbol string, side types.OrderSide, quantity float64, clientOrderID string) error
	StartUserStream(ctx context.Context) (listenKey string, err error)
	KeepaliveUserStream(ctx context.Context, listenKey string) error
}

// binanceExchangeClient wraps *binance.Client.
type binanceExchangeClient struct {
	client *binance.Client
}

func (c *binanceExchangeClient) CreateMarketOrder(ctx context.Context, symbol string, side types.OrderSide, quantity float64, clientOrderID string) error {
	sideType := binance.SideTypeBuy
	if side == types.OrderSideSell {
		sideType = binance.SideTypeSell
	}

	_, err := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64)).
		NewClientOrderID(clientOrderID).
		Do(ctx)

	return err
}

func (c *binanceExchangeClient) StartUserStream(ctx context.Context) (string, error) {
	return c.client.NewStartUserStreamService().Do(ctx)
}

func (c *binanceExchangeClient) KeepaliveUserStream(ctx context.Context, listenKey string) error {
	return c.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
}

// LiveConfig configures the live gateway.
type LiveConfig struct {
	Symbols       []string
	Interval      string
	APIKey        string
	SecretKey     string
	Testnet       bool
	FillQueueSize int
}

// Live connects the engine to Binance. Closed klines from the market
// websocket become engine events; execution reports from the user-data
// stream become fills, correlated back to our orders through the client
// order id we submit with. Fills queue on a bounded channel the engine
// drains every cycle.
type Live struct {
	cfg    LiveConfig
	client ExchangeClient
	ws     StreamService
	log    *logger.Logger

	fills chan types.Fill
	stops []chan struct{}
}

// NewLive creates a gateway backed by the real Binance REST and websocket
// endpoints.
func NewLive(cfg LiveConfig, log *logger.Logger) *Live {
	binance.UseTestnet = cfg.Testnet

	return NewLiveWithClient(cfg, &binanceExchangeClient{client: binance.NewClient(cfg.APIKey, cfg.SecretKey)}, binanceStreamService{}, log)
}

// NewLiveWithClient creates a live gateway with injected exchange endpoints.
func NewLiveWithClient(cfg LiveConfig, client ExchangeClient, ws StreamService, log *logger.Logger) *Live {
	queueSize := cfg.FillQueueSize
	if queueSize <= 0 {
		queueSize = defaultFillQueueSize
	}

	return &Live{
		cfg:    cfg,
		client: client,
		ws:     ws,
		log:    log,
		fills:  make(chan types.Fill, queueSize),
		stops:  nil,
	}
}

// Events implements Gateway. It starts the user-data stream and one kline
// stream per configured symbol, then yields closed bars until the context is
// cancelled or connectivity is lost. A lost connection surfaces as a single
// ErrCodeGatewayUnavailable error and ends the stream.
func (g *Live) Events(ctx context.Context) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		events := make(chan types.MarketData, len(g.cfg.Symbols))
		streamErrs := make(chan error, len(g.cfg.Symbols)+1)

		if err := g.startUserStream(ctx, streamErrs); err != nil {
			yield(types.MarketData{}, err)

			return
		}

		for _, symbol := range g.cfg.Symbols {
			_, stopC, err := g.ws.WsKlineServe(symbol, g.cfg.Interval, func(event *binance.WsKlineEvent) {
				if !event.Kline.IsFinal {
					return
				}

				bar, err := convertWsKline(event)
				if err != nil {
					g.log.Warn("dropping malformed kline", zap.String("symbol", event.Symbol), zap.Error(err))

					return
				}

				select {
				case events <- bar:
				case <-ctx.Done():
				}
			}, func(err error) {
				// The websocket client may report repeatedly; only the first
				// error is consumed once Events has returned.
				select {
				case streamErrs <- err:
				default:
				}
			})
			if err != nil {
				yield(types.MarketData{}, errors.Wrapf(errors.ErrCodeGatewayUnavailable, err, "kline stream for %s failed to start", symbol))

				return
			}

			g.stops = append(g.stops, stopC)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-streamErrs:
				yield(types.MarketData{}, errors.Wrap(errors.ErrCodeGatewayUnavailable, "market connection lost", err))

				return
			case bar := <-events:
				if !yield(bar, nil) {
					return
				}
			}
		}
	}
}

func (g *Live) startUserStream(ctx context.Context, streamErrs chan error) error {
	listenKey, err := g.client.StartUserStream(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeGatewayUnavailable, "user data stream failed to start", err)
	}

	_, stopC, err := g.ws.WsUserDataServe(listenKey, g.handleUserData, func(err error) {
		select {
		case streamErrs <- err:
		default:
		}
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeGatewayUnavailable, "user data stream failed to start", err)
	}

	g.stops = append(g.stops, stopC)

	go g.keepalive(ctx, listenKey)

	return nil
}

// handleUserData turns execution reports into fills. Reports for other event
// types, and execution types other than trades, carry no fill quantity and
// are skipped.
func (g *Live) handleUserData(event *binance.WsUserDataEvent) {
	if event.Event != binance.UserDataEventTypeExecutionReport {
		return
	}

	update := event.OrderUpdate
	if update.ExecutionType != "TRADE" {
		return
	}

	quantity, err := strconv.ParseFloat(update.LatestVolume, 64)
	if err != nil {
		g.log.Warn("dropping execution report with bad quantity", zap.String("client_order_id", update.ClientOrderId), zap.Error(err))

		return
	}

	price, err := strconv.ParseFloat(update.LatestPrice, 64)
	if err != nil {
		g.log.Warn("dropping execution report with bad price", zap.String("client_order_id", update.ClientOrderId), zap.Error(err))

		return
	}

	side := types.OrderSideBuy
	if update.Side == string(binance.SideTypeSell) {
		side = types.OrderSideSell
	}

	fill := types.Fill{
		OrderID:   update.ClientOrderId,
		Symbol:    update.Symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.UnixMilli(update.TransactionTime).UTC(),
	}

	select {
	case g.fills <- fill:
	default:
		g.log.Error("fill queue full, dropping fill",
			zap.String("order_id", fill.OrderID),
			zap.Float64("quantity", fill.Quantity),
		)
	}
}

func (g *Live) keepalive(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.client.KeepaliveUserStream(ctx, listenKey); err != nil {
				g.log.Warn("user data stream keepalive failed", zap.Error(err))
			}
		}
	}
}

// SubmitOrder implements Gateway. The order's own id is sent as the client
// order id so execution reports map back to it.
func (g *Live) SubmitOrder(ctx context.Context, order types.Order) error {
	err := g.client.CreateMarketOrder(ctx, order.Symbol, order.Side, order.Quantity, order.ID)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeGatewayRejected, err, "exchange rejected order %s", order.ID)
	}

	g.log.Info("order submitted",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
	)

	return nil
}

// PollFills implements Gateway.
func (g *Live) PollFills() []types.Fill {
	var fills []types.Fill

	for {
		select {
		case fill := <-g.fills:
			fills = append(fills, fill)
		default:
			return fills
		}
	}
}

// Close implements Gateway.
func (g *Live) Close() error {
	for _, stopC := range g.stops {
		close(stopC)
	}

	g.stops = nil

	return nil
}

// convertWsKline parses a websocket kline into a bar. Binance reports prices
// and volume as strings.
func convertWsKline(event *binance.WsKlineEvent) (types.MarketData, error) {
	open, err := strconv.ParseFloat(event.Kline.Open, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeStreamFailed, "bad open price", err)
	}

	high, err := strconv.ParseFloat(event.Kline.High, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeStreamFailed, "bad high price", err)
	}

	low, err := strconv.ParseFloat(event.Kline.Low, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeStreamFailed, "bad low price", err)
	}

	closePrice, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeStreamFailed, "bad close price", err)
	}

	volume, err := strconv.ParseFloat(event.Kline.Volume, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeStreamFailed, "bad volume", err)
	}

	return types.MarketData{
		Symbol: event.Symbol,
		Time:   time.UnixMilli(event.Kline.StartTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

// Verify Live implements the Gateway interface.
var _ Gateway = (*Live)(nil)
