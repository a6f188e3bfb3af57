package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/deal"
	"dealcore/internal/store"
)

// SaveDeal inserts a new deal row.
func (d *Database) SaveDeal(ctx context.Context, dl *deal.Deal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO deals (id, symbol, status, buy_order_id, sell_order_id, sell_submitted, profit, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, dl.ID, dl.Symbol, string(dl.Status), dl.BuyOrderID, dl.SellOrderID,
		boolToInt(dl.SellSubmitted), dl.Profit, dl.CreatedAt, nullTime(dl.ClosedAt))
	return errors.Wrap(err, "db: insert deal")
}

// UpdateDeal rewrites the mutable fields of a deal row. The sell_submitted
// token is only ever raised here, never cleared; clearing happens nowhere.
func (d *Database) UpdateDeal(ctx context.Context, dl *deal.Deal) error {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE deals SET
			status = ?, buy_order_id = ?, sell_order_id = ?,
			sell_submitted = MAX(sell_submitted, ?), profit = ?, closed_at = ?
		WHERE id = ?
	`, string(dl.Status), dl.BuyOrderID, dl.SellOrderID,
		boolToInt(dl.SellSubmitted), dl.Profit, nullTime(dl.ClosedAt), dl.ID)
	if err != nil {
		return errors.Wrap(err, "db: update deal")
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return errors.Wrapf(store.ErrNotFound, "deal %s", dl.ID)
	}
	return nil
}

// Deal returns one deal by id.
func (d *Database) Deal(ctx context.Context, id string) (*deal.Deal, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, symbol, status, buy_order_id, sell_order_id, sell_submitted, profit, created_at, closed_at
		FROM deals WHERE id = ?
	`, id)
	dl, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "deal %s", id)
	}
	return dl, errors.Wrap(err, "db: get deal")
}

// OpenDeals returns all deals still OPEN, oldest first.
func (d *Database) OpenDeals(ctx context.Context) ([]*deal.Deal, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, status, buy_order_id, sell_order_id, sell_submitted, profit, created_at, closed_at
		FROM deals WHERE status = ? ORDER BY created_at
	`, string(deal.StatusOpen))
	if err != nil {
		return nil, errors.Wrap(err, "db: open deals")
	}
	defer rows.Close()

	var res []*deal.Deal
	for rows.Next() {
		dl, err := scanDeal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db: scan deal")
		}
		res = append(res, dl)
	}
	return res, rows.Err()
}

// ClaimSellSubmission atomically raises the sell-submitted token via a
// guarded UPDATE; exactly one caller per deal observes true.
func (d *Database) ClaimSellSubmission(ctx context.Context, dealID string) (bool, error) {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE deals SET sell_submitted = 1 WHERE id = ? AND sell_submitted = 0
	`, dealID)
	if err != nil {
		return false, errors.Wrap(err, "db: claim sell submission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "db: claim sell submission")
	}
	if n == 0 {
		// Either already claimed or the deal does not exist; disambiguate.
		var exists int
		if qerr := d.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM deals WHERE id = ?`, dealID).Scan(&exists); qerr != nil {
			return false, errors.Wrap(qerr, "db: claim sell submission")
		}
		if exists == 0 {
			return false, errors.Wrapf(store.ErrNotFound, "deal %s", dealID)
		}
		return false, nil
	}
	return true, nil
}

func scanDeal(r rowScanner) (*deal.Deal, error) {
	var (
		dl        deal.Deal
		status    string
		submitted int
		closedAt  sql.NullTime
	)
	err := r.Scan(&dl.ID, &dl.Symbol, &status, &dl.BuyOrderID, &dl.SellOrderID,
		&submitted, &dl.Profit, &dl.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	dl.Status = deal.Status(status)
	dl.SellSubmitted = submitted != 0
	if closedAt.Valid {
		dl.ClosedAt = closedAt.Time
	}
	return &dl, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullTime maps the zero time to NULL so "never closed" round-trips.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
