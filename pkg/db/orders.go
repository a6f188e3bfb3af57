package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"dealcore/internal/order"
	"dealcore/internal/store"
	"dealcore/pkg/exchange"
)

const orderColumns = `local_id, exchange_id, client_order_id, deal_id, symbol, side, type,
	price, amount, filled, cost, average, fee_cost, fee_currency,
	status, retries, error_message, metadata, created_at, last_update`

// SaveOrder inserts a new order row.
func (d *Database) SaveOrder(ctx context.Context, o *order.Order) error {
	meta, err := encodeMeta(o.Metadata)
	if err != nil {
		return err
	}
	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.LocalID, o.ExchangeID, o.ClientOrderID, o.DealID, o.Symbol, string(o.Side), string(o.Type),
		o.Price, o.Amount, o.Filled, o.Cost, o.Average, o.FeeCost, o.FeeCurrency,
		string(o.Status), o.Retries, o.ErrorMessage, meta, o.CreatedAt, o.LastUpdate,
	)
	return errors.Wrap(err, "db: insert order")
}

// UpdateOrder rewrites the mutable fields of an order row.
func (d *Database) UpdateOrder(ctx context.Context, o *order.Order) error {
	meta, err := encodeMeta(o.Metadata)
	if err != nil {
		return err
	}
	res, err := d.DB.ExecContext(ctx, `
		UPDATE orders SET
			exchange_id = ?, price = ?, amount = ?, filled = ?, cost = ?, average = ?,
			fee_cost = ?, fee_currency = ?, status = ?, retries = ?, error_message = ?,
			metadata = ?, last_update = ?
		WHERE local_id = ?
	`,
		o.ExchangeID, o.Price, o.Amount, o.Filled, o.Cost, o.Average,
		o.FeeCost, o.FeeCurrency, string(o.Status), o.Retries, o.ErrorMessage,
		meta, o.LastUpdate, o.LocalID,
	)
	if err != nil {
		return errors.Wrap(err, "db: update order")
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return errors.Wrapf(store.ErrNotFound, "order %d", o.LocalID)
	}
	return nil
}

// Order returns one order by local id.
func (d *Database) Order(ctx context.Context, localID int64) (*order.Order, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE local_id = ?`, localID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "order %d", localID)
	}
	return o, errors.Wrap(err, "db: get order")
}

// OrdersByDeal returns every order belonging to a deal.
func (d *Database) OrdersByDeal(ctx context.Context, dealID string) ([]*order.Order, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE deal_id = ? ORDER BY local_id
	`, dealID)
	if err != nil {
		return nil, errors.Wrap(err, "db: orders by deal")
	}
	defer rows.Close()
	return collectOrders(rows)
}

// OpenOrders returns all orders in a non-terminal status.
func (d *Database) OpenOrders(ctx context.Context) ([]*order.Order, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN (?, ?, ?)
		ORDER BY local_id
	`, string(order.StatusPending), string(order.StatusOpen), string(order.StatusPartiallyFilled))
	if err != nil {
		return nil, errors.Wrap(err, "db: open orders")
	}
	defer rows.Close()
	return collectOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*order.Order, error) {
	var (
		o            order.Order
		side, typ    string
		status, meta string
	)
	err := r.Scan(
		&o.LocalID, &o.ExchangeID, &o.ClientOrderID, &o.DealID, &o.Symbol, &side, &typ,
		&o.Price, &o.Amount, &o.Filled, &o.Cost, &o.Average, &o.FeeCost, &o.FeeCurrency,
		&status, &o.Retries, &o.ErrorMessage, &meta, &o.CreatedAt, &o.LastUpdate,
	)
	if err != nil {
		return nil, err
	}
	o.Side = exchange.Side(side)
	o.Type = exchange.OrderType(typ)
	o.Status = order.Status(status)
	if meta != "" && meta != "{}" {
		if uerr := json.Unmarshal([]byte(meta), &o.Metadata); uerr != nil {
			return nil, errors.Wrap(uerr, "db: decode order metadata")
		}
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]*order.Order, error) {
	var res []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db: scan order")
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func encodeMeta(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "db: encode order metadata")
	}
	return string(b), nil
}
