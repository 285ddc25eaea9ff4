package book

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// MarshalJSON encodes the side as its string form ("buy"/"sell").
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Side) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"buy"`:
		*s = Buy
	case `"sell"`:
		*s = Sell
	default:
		return fmt.Errorf("invalid side %s", b)
	}
	return nil
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType int

const (
	Market OrderType = iota
	Limit
	IOC
	FOK
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	default:
		return "unknown"
	}
}

// RequiresPrice reports whether the type carries a limit price.
// Market orders never do; everything else always does.
func (t OrderType) RequiresPrice() bool {
	return t != Market
}

// Order is a single order flowing through the engine. Quantity and
// Remaining use exact decimal arithmetic; Price is meaningful only
// when Type.RequiresPrice().
//
// The intrusive prev/next pointers and the level backref are owned by
// the price level the order rests in. They are nil while the order is
// not on a book.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	CreatedAt time.Time

	level *PriceLevel
	prev  *Order
	next  *Order
}

// NewOrder builds an order with Remaining initialized to Quantity.
func NewOrder(id, symbol string, side Side, otype OrderType, price, qty decimal.Decimal, ts time.Time) *Order {
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      otype,
		Price:     price,
		Quantity:  qty,
		Remaining: qty,
		CreatedAt: ts,
	}
}

// Filled returns the cumulative executed quantity.
func (o *Order) Filled() decimal.Decimal {
	return o.Quantity.Sub(o.Remaining)
}

// Next returns the order behind o in its price level's FIFO queue,
// or nil if o is the tail or not resting.
func (o *Order) Next() *Order { return o.next }
