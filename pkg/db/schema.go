package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS orders (
    local_id INTEGER PRIMARY KEY,
    exchange_id TEXT NOT NULL DEFAULT '',
    client_order_id TEXT NOT NULL DEFAULT '',
    deal_id TEXT NOT NULL DEFAULT '',
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    type TEXT NOT NULL,
    price REAL NOT NULL DEFAULT 0,
    amount REAL NOT NULL,
    filled REAL NOT NULL DEFAULT 0,
    cost REAL NOT NULL DEFAULT 0,
    average REAL NOT NULL DEFAULT 0,
    fee_cost REAL NOT NULL DEFAULT 0,
    fee_currency TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    retries INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    last_update DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_deal ON orders(deal_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS deals (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    status TEXT NOT NULL,
    buy_order_id INTEGER NOT NULL DEFAULT 0,
    sell_order_id INTEGER NOT NULL DEFAULT 0,
    sell_submitted INTEGER NOT NULL DEFAULT 0,
    profit REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    closed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);
`

// Init applies the schema; safe to call repeatedly.
func (d *Database) Init() error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
