package book

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade records one fill between a resting maker and an incoming taker.
// The price is always the maker's price. Trades are immutable once
// emitted; IDs come from a single engine-wide sequence and are strictly
// increasing, never reused.
type Trade struct {
	ID           uint64          `json:"trade_id"`
	Symbol       string          `json:"symbol"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Aggressor    Side            `json:"aggressor_side"`
	Timestamp    time.Time       `json:"timestamp"`
}
