package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// RunStore is the append-only record of a run: every order, fill, equity
// point and rejection, kept in an in-memory duckdb so results export as flat
// files and the performance layer can read everything back in order.
type RunStore struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewRunStore opens an in-memory database and creates the run tables.
func NewRunStore(log *logger.Logger) (*RunStore, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to open database", err)
	}

	s := &RunStore{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *RunStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE,
			price DOUBLE,
			filled_quantity DOUBLE,
			avg_fill_price DOUBLE,
			status TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS fills (
			order_id TEXT,
			symbol TEXT,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			timestamp TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS equity (
			timestamp TIMESTAMP,
			cash DOUBLE,
			equity DOUBLE
		);
		CREATE TABLE IF NOT EXISTS rejections (
			timestamp TIMESTAMP,
			symbol TEXT,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			code INTEGER,
			message TEXT
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to create tables", err)
	}

	return nil
}

// RecordOrder inserts or replaces the order row, so the table always holds
// the latest state of each order.
func (s *RunStore) RecordOrder(order types.Order) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO orders (
			order_id, symbol, side, order_type, quantity, price,
			filled_quantity, avg_fill_price, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Symbol, string(order.Side), string(order.Type),
		order.Quantity, order.Price, order.FilledQuantity, order.AvgFillPrice,
		string(order.Status), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to record order %s", order.ID)
	}

	return nil
}

// RecordFill appends a fill row.
func (s *RunStore) RecordFill(fill types.Fill) error {
	_, err := s.sq.
		Insert("fills").
		Columns("order_id", "symbol", "side", "quantity", "price", "timestamp").
		Values(fill.OrderID, fill.Symbol, string(fill.Side), fill.Quantity, fill.Price, fill.Timestamp).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to record fill for order %s", fill.OrderID)
	}

	return nil
}

// RecordEquity appends an equity curve point.
func (s *RunStore) RecordEquity(point types.EquityPoint) error {
	_, err := s.sq.
		Insert("equity").
		Columns("timestamp", "cash", "equity").
		Values(point.Time, point.Cash, point.Equity).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to record equity point", err)
	}

	return nil
}

// RecordRejection appends a rejection row.
func (s *RunStore) RecordRejection(rejection types.Rejection) error {
	_, err := s.sq.
		Insert("rejections").
		Columns("timestamp", "symbol", "side", "quantity", "price", "code", "message").
		Values(rejection.Time, rejection.Symbol, string(rejection.Side),
			rejection.Quantity, rejection.Price, int(rejection.Code), rejection.Message).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to record rejection", err)
	}

	return nil
}

// Fills returns all recorded fills in timestamp order.
func (s *RunStore) Fills() ([]types.Fill, error) {
	rows, err := s.sq.
		Select("order_id", "symbol", "side", "quantity", "price", "timestamp").
		From("fills").
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query fills", err)
	}
	defer rows.Close()

	var fills []types.Fill

	for rows.Next() {
		var (
			fill types.Fill
			side string
		)

		if err := rows.Scan(&fill.OrderID, &fill.Symbol, &side, &fill.Quantity, &fill.Price, &fill.Timestamp); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan fill", err)
		}

		fill.Side = types.OrderSide(side)
		fills = append(fills, fill)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "error iterating fills", err)
	}

	return fills, nil
}

// EquityCurve returns all recorded equity points in timestamp order.
func (s *RunStore) EquityCurve() ([]types.EquityPoint, error) {
	rows, err := s.sq.
		Select("timestamp", "cash", "equity").
		From("equity").
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query equity curve", err)
	}
	defer rows.Close()

	var curve []types.EquityPoint

	for rows.Next() {
		var point types.EquityPoint

		if err := rows.Scan(&point.Time, &point.Cash, &point.Equity); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan equity point", err)
		}

		curve = append(curve, point)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "error iterating equity curve", err)
	}

	return curve, nil
}

// Rejections returns all recorded rejections in timestamp order.
func (s *RunStore) Rejections() ([]types.Rejection, error) {
	rows, err := s.sq.
		Select("timestamp", "symbol", "side", "quantity", "price", "code", "message").
		From("rejections").
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query rejections", err)
	}
	defer rows.Close()

	var rejections []types.Rejection

	for rows.Next() {
		var (
			rejection types.Rejection
			side      string
			code      int
		)

		if err := rows.Scan(&rejection.Time, &rejection.Symbol, &side,
			&rejection.Quantity, &rejection.Price, &code, &rejection.Message); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan rejection", err)
		}

		rejection.Side = types.OrderSide(side)
		rejection.Code = errors.ErrorCode(code)
		rejections = append(rejections, rejection)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "error iterating rejections", err)
	}

	return rejections, nil
}

// Orders returns the latest state of every order in creation order.
func (s *RunStore) Orders() ([]types.Order, error) {
	rows, err := s.sq.
		Select("order_id", "symbol", "side", "order_type", "quantity", "price",
			"filled_quantity", "avg_fill_price", "status", "created_at", "updated_at").
		From("orders").
		OrderBy("created_at ASC", "order_id ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query orders", err)
	}
	defer rows.Close()

	var orders []types.Order

	for rows.Next() {
		var (
			order             types.Order
			side, kind, state string
		)

		if err := rows.Scan(&order.ID, &order.Symbol, &side, &kind, &order.Quantity, &order.Price,
			&order.FilledQuantity, &order.AvgFillPrice, &state, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan order", err)
		}

		order.Side = types.OrderSide(side)
		order.Type = types.OrderType(kind)
		order.Status = types.OrderStatus(state)
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "error iterating orders", err)
	}

	return orders, nil
}

// Export writes each run table to a CSV file in the given directory.
// Squirrel has no COPY syntax, so the statements are raw SQL.
func (s *RunStore) Export(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create results directory", err)
	}

	for _, table := range []string{"orders", "fills", "equity", "rejections"} {
		path := filepath.Join(dir, table+".csv")

		_, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (HEADER)`, table, path))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s", table)
		}
	}

	s.log.Info("run results exported", zap.String("dir", dir))

	return nil
}

// Cleanup drops and recreates the run tables.
func (s *RunStore) Cleanup() error {
	_, err := s.db.Exec(`
		DROP TABLE IF EXISTS orders;
		DROP TABLE IF EXISTS fills;
		DROP TABLE IF EXISTS equity;
		DROP TABLE IF EXISTS rejections;
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to drop tables", err)
	}

	return s.initialize()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
