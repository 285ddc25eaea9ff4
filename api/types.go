package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"helix/domain/book"
)

// OrderRequest is the order-submission schema shared by the HTTP
// endpoint and the Kafka admission topic. Price and quantity travel
// as strings to keep decimal values exact in JSON.
type OrderRequest struct {
	OrderID  string `json:"order_id,omitempty"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"order_type"`
	Quantity string `json:"quantity"`
	Price    string `json:"price,omitempty"`
}

var (
	errMissingSymbol  = errors.New("symbol is required")
	errBadSide        = errors.New("side must be \"buy\" or \"sell\"")
	errBadType        = errors.New("order_type must be one of market, limit, ioc, fok")
	errBadQuantity    = errors.New("quantity must be a positive decimal")
	errPriceRequired  = errors.New("price is required for limit, ioc and fok orders")
	errPriceForbidden = errors.New("market orders cannot carry a price")
	errBadPrice       = errors.New("price must be a positive decimal")
)

// ToOrder validates the request and converts it into a domain order.
// This is the validation boundary: the engine behind it assumes well
// formed input. A missing order id gets a generated UUID.
func (r *OrderRequest) ToOrder(now time.Time) (*book.Order, error) {
	if r.Symbol == "" {
		return nil, errMissingSymbol
	}

	var side book.Side
	switch r.Side {
	case "buy":
		side = book.Buy
	case "sell":
		side = book.Sell
	default:
		return nil, errBadSide
	}

	var otype book.OrderType
	switch r.Type {
	case "market":
		otype = book.Market
	case "limit":
		otype = book.Limit
	case "ioc":
		otype = book.IOC
	case "fok":
		otype = book.FOK
	default:
		return nil, errBadType
	}

	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil || !qty.IsPositive() {
		return nil, errBadQuantity
	}

	price := decimal.Zero
	if otype.RequiresPrice() {
		if r.Price == "" {
			return nil, errPriceRequired
		}
		price, err = decimal.NewFromString(r.Price)
		if err != nil || !price.IsPositive() {
			return nil, errBadPrice
		}
	} else if r.Price != "" {
		return nil, errPriceForbidden
	}

	id := r.OrderID
	if id == "" {
		id = uuid.NewString()
	}
	return book.NewOrder(id, r.Symbol, side, otype, price, qty, now), nil
}

// SubmitOrderResponse reports the admission outcome and the trades
// the order produced, in execution order.
type SubmitOrderResponse struct {
	OrderID string       `json:"order_id"`
	Status  string       `json:"status"` // filled | partial | resting | rejected | no_fill
	Trades  []book.Trade `json:"trades"`
}

// CancelOrderRequest identifies the resting order to remove.
type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

// BBO is the best-bid/offer snapshot for one symbol. Absent sides are
// null in JSON.
type BBO struct {
	Symbol    string           `json:"symbol"`
	Bid       *decimal.Decimal `json:"bid"`
	Ask       *decimal.Decimal `json:"ask"`
	Timestamp int64            `json:"timestamp"`
}

// OrderbookSnapshot is a top-N depth view, best prices first.
type OrderbookSnapshot struct {
	Symbol    string            `json:"symbol"`
	Bids      []book.DepthEntry `json:"bids"`
	Asks      []book.DepthEntry `json:"asks"`
	Timestamp int64             `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client-to-server control message on the
// market-data socket.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // subscribe | unsubscribe
	Channels []string `json:"channels"`
}

// statusFor summarizes an admission outcome for the response body.
// The executed quantity comes from the trade list, never from the
// order's mutable remaining: a resting limit may already be matching
// against other requests by the time the response is built.
func statusFor(o *book.Order, trades []book.Trade) string {
	executed := decimal.Zero
	for _, tr := range trades {
		executed = executed.Add(tr.Quantity)
	}
	switch {
	case executed.Equal(o.Quantity):
		return "filled"
	case executed.IsPositive():
		return "partial"
	case o.Type == book.Limit:
		return "resting"
	case o.Type == book.FOK:
		return "rejected"
	default:
		// Market or IOC that crossed nothing; the order is gone.
		return "no_fill"
	}
}

func fmtChannel(kind, symbol string) string {
	return fmt.Sprintf("%s:%s", kind, symbol)
}
