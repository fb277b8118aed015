package datasource

import (
	"database/sql"
	"fmt"
	"iter"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// DuckDBSource reads CSV bar files through an in-memory duckdb instance.
// The CSV must carry symbol, time, open, high, low, close, volume columns;
// duckdb's read_csv_auto handles type inference and timestamp parsing.
type DuckDBSource struct {
	db  *sql.DB
	log *logger.Logger
}

// NewDuckDBSource creates an uninitialized DuckDB-backed bar source.
func NewDuckDBSource(log *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to open duckdb", err)
	}

	return &DuckDBSource{
		db:  db,
		log: log,
	}, nil
}

// Initialize implements BarSource. It replaces the bars view with the content
// of the given CSV file.
func (d *DuckDBSource) Initialize(path string) error {
	query := fmt.Sprintf(`
		CREATE OR REPLACE VIEW bars AS
		SELECT
			symbol,
			time,
			open,
			high,
			low,
			close,
			volume
		FROM read_csv_auto('%s')
		ORDER BY time;
	`, path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceFailed, err, "failed to load bars from %s", path)
	}

	return nil
}

// Count implements BarSource.
func (d *DuckDBSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query, args := buildRangeQuery("SELECT COUNT(*) FROM bars", start, end, false)

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to count bars", err)
	}

	return count, nil
}

// ReadAll implements BarSource. Bars stream out of the database cursor one at
// a time so arbitrarily large files replay in constant memory.
func (d *DuckDBSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		query, args := buildRangeQuery(
			"SELECT symbol, time, open, high, low, close, volume FROM bars", start, end, true)

		rows, err := d.db.Query(query, args...)
		if err != nil {
			yield(types.MarketData{}, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to query bars", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var bar types.MarketData
			if err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
				yield(types.MarketData{}, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to scan bar", err))

				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.MarketData{}, errors.Wrap(errors.ErrCodeDataSourceFailed, "bar iteration failed", err))
		}
	}
}

// Close implements BarSource.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}

func buildRangeQuery(base string, start optional.Option[time.Time], end optional.Option[time.Time], ordered bool) (string, []any) {
	query := base

	var (
		args  []any
		where []string
	)

	if start.IsSome() {
		where = append(where, "time >= ?")
		args = append(args, start.Unwrap())
	}

	if end.IsSome() {
		where = append(where, "time <= ?")
		args = append(args, end.Unwrap())
	}

	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	if ordered {
		query += " ORDER BY time"
	}

	return query, args
}

// Verify DuckDBSource implements the BarSource interface.
var _ BarSource = (*DuckDBSource)(nil)
