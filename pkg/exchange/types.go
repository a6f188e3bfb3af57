package exchange

import "time"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType denotes the order types the engine submits.
type OrderType string

const (
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus normalizes venue status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// OrderRequest captures an order intent to be sent to the venue.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Amount        float64
	Price         float64 // required for LIMIT
	ClientOrderID string
	Params        map[string]string // venue-specific extras
}

// OrderData is the venue's view of an order.
type OrderData struct {
	ID            string // venue order id
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Price         float64
	Amount        float64
	Filled        float64
	Remaining     float64
	Cost          float64 // cumulative quote spent/received
	Average       float64 // average fill price
	Status        OrderStatus
	Fee           Fee
	Trades        []Trade
	Timestamp     time.Time
}

// Fee is the venue fee charged on an order.
type Fee struct {
	Currency string
	Cost     float64
}

// Trade is a single fill reported by the venue.
type Trade struct {
	ID        string
	Price     float64
	Amount    float64
	Timestamp time.Time
}

// Ticker is a top-of-book snapshot.
type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Timestamp time.Time
}

// Balance holds per-currency account funds.
type Balance struct {
	Free  float64
	Used  float64
	Total float64
}

// AccountBalance maps currency code to balance.
type AccountBalance map[string]Balance
