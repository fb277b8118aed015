package datasource

import (
	"iter"
	"time"

	"github.com/moznion/go-optional"

	"github.com/tradecore-lab/tradecore/internal/types"
)

// BarSource supplies historical bars in timestamp order. It backs the
// simulated gateway; live runs take their bars from the exchange stream
// instead.
type BarSource interface {
	// Initialize opens the source for the given path.
	Initialize(path string) error
	// Count returns the number of bars inside the optional time range.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// ReadAll yields bars inside the optional time range, ordered by
	// timestamp. Iteration stops at end of data.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) iter.Seq2[types.MarketData, error]
	// Close releases the underlying resources.
	Close() error
}
