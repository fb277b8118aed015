package gateway

import (
	"context"
	"iter"

	"github.com/tradecore-lab/tradecore/internal/types"
)

// Gateway supplies market-data events and accepts order submissions,
// reporting fills asynchronously. The engine depends only on this contract,
// so the same order-management logic runs unmodified against a replayed CSV
// or a live exchange connection.
//
// Events terminates when the underlying stream is exhausted (normal end of a
// simulated run) or yields an error when connectivity is lost. SubmitOrder
// returning nil means accepted, not filled; fills surface later through
// PollFills. A submission refused by the venue returns an error carrying
// ErrCodeGatewayRejected and must not abort the run.
type Gateway interface {
	// Events yields market data in timestamp order until the stream ends or
	// the context is cancelled.
	Events(ctx context.Context) iter.Seq2[types.MarketData, error]
	// SubmitOrder routes an order to the execution venue.
	SubmitOrder(ctx context.Context, order types.Order) error
	// PollFills drains all fills reported since the last call. It never
	// blocks.
	PollFills() []types.Fill
	// Close releases the market connection.
	Close() error
}
