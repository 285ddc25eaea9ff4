package book

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// DepthEntry is one (price, aggregate quantity) pair of a depth snapshot.
type DepthEntry struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBook holds the resting liquidity for one symbol: an ordered set
// of price levels per side plus an order-id index for O(1) cancellation.
//
// Invariant: an id is in the index iff the order rests inside exactly
// one price level's queue. A level is deleted from its side the moment
// its queue drains.
//
// The book's methods do not lock internally. The embedded RWMutex is
// the per-symbol lock: the engine holds it for writing across a whole
// order application and for reading across snapshot queries, so depth
// and best-price reads never observe a tree mid-rebalance.
type OrderBook struct {
	sync.RWMutex

	Symbol string

	bids  *rbTree
	asks  *rbTree
	index map[string]*Order
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newRBTree(),
		asks:   newRBTree(),
		index:  make(map[string]*Order),
	}
}

func (b *OrderBook) sideTree(s Side) *rbTree {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Add rests an order at the tail of its price level, creating the
// level if needed, and registers it for cancellation by id.
func (b *OrderBook) Add(o *Order) {
	if _, dup := b.index[o.ID]; dup {
		panic(fmt.Sprintf("order book %s: duplicate resting order id %s", b.Symbol, o.ID))
	}
	lvl := b.sideTree(o.Side).UpsertLevel(o.Price)
	lvl.enqueue(o)
	b.index[o.ID] = o
}

// Remove takes a resting order out of the book. Unknown ids are a
// no-op returning false, never an error.
func (b *OrderBook) Remove(orderID string) bool {
	o, ok := b.index[orderID]
	if !ok {
		return false
	}
	b.removeResting(o)
	return true
}

func (b *OrderBook) removeResting(o *Order) {
	lvl := o.level
	if lvl == nil {
		panic(fmt.Sprintf("order book %s: indexed order %s not attached to a level", b.Symbol, o.ID))
	}
	lvl.unlink(o)
	if lvl.Empty() {
		b.sideTree(o.Side).DeleteLevel(lvl.Price)
	}
	delete(b.index, o.ID)
}

// BestBid returns the highest bid price. ok is false when no bids rest.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	lvl := b.bids.MaxLevel()
	if lvl == nil {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest ask price. ok is false when no asks rest.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	lvl := b.asks.MinLevel()
	if lvl == nil {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// BestOpposing returns the level an order on side `taker` matches
// against first: lowest ask for buyers, highest bid for sellers.
// Nil when the opposing side is empty.
func (b *OrderBook) BestOpposing(taker Side) *PriceLevel {
	if taker == Buy {
		return b.asks.MinLevel()
	}
	return b.bids.MaxLevel()
}

// ApplyFill decrements a resting maker's remaining quantity and the
// level aggregate by qty, removing the maker from the book when it is
// exhausted. Returns true if the maker was removed.
func (b *OrderBook) ApplyFill(maker *Order, qty decimal.Decimal) bool {
	if qty.Cmp(maker.Remaining) > 0 {
		panic(fmt.Sprintf("order book %s: fill %s exceeds maker %s remaining %s",
			b.Symbol, qty, maker.ID, maker.Remaining))
	}
	maker.Remaining = maker.Remaining.Sub(qty)
	lvl := maker.level
	if lvl == nil {
		panic(fmt.Sprintf("order book %s: fill against detached order %s", b.Symbol, maker.ID))
	}
	lvl.reduce(qty)
	if maker.Remaining.IsZero() {
		b.removeResting(maker)
		return true
	}
	return false
}

// AvailableLiquidity sums the aggregate quantity on `side` across all
// levels priced acceptably against limitPrice (bids >= limitPrice,
// asks <= limitPrice). The walk starts at the best price and stops
// early once the running total reaches need, which is all the
// fill-or-kill pre-check requires.
func (b *OrderBook) AvailableLiquidity(side Side, limitPrice, need decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	if side == Buy {
		b.bids.ForEachDescending(func(lvl *PriceLevel) bool {
			if lvl.Price.Cmp(limitPrice) < 0 {
				return false
			}
			total = total.Add(lvl.TotalQty)
			return total.Cmp(need) < 0
		})
	} else {
		b.asks.ForEachAscending(func(lvl *PriceLevel) bool {
			if lvl.Price.Cmp(limitPrice) > 0 {
				return false
			}
			total = total.Add(lvl.TotalQty)
			return total.Cmp(need) < 0
		})
	}
	return total
}

// Depth returns up to n levels per side, best price first. n <= 0
// means all levels. The snapshot copies prices and aggregates only;
// it never exposes resting orders.
func (b *OrderBook) Depth(n int) (bids, asks []DepthEntry) {
	collect := func(out *[]DepthEntry) func(*PriceLevel) bool {
		return func(lvl *PriceLevel) bool {
			*out = append(*out, DepthEntry{Price: lvl.Price, Quantity: lvl.TotalQty})
			return n <= 0 || len(*out) < n
		}
	}
	b.bids.ForEachDescending(collect(&bids))
	b.asks.ForEachAscending(collect(&asks))
	return bids, asks
}

// LevelCount returns the number of distinct price levels on a side.
func (b *OrderBook) LevelCount(s Side) int {
	return b.sideTree(s).Size()
}

// RestingCount returns the number of indexed resting orders.
func (b *OrderBook) RestingCount() int { return len(b.index) }

// Resting looks up a resting order by id, read-only.
func (b *OrderBook) Resting(orderID string) (*Order, bool) {
	o, ok := b.index[orderID]
	return o, ok
}
