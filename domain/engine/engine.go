// Package engine matches incoming orders against resting liquidity
// under price-time priority. It is the single implementation of the
// matching rules; every transport calls in here rather than deriving
// its own copy.
//
// The engine performs no I/O and never blocks. Operations for the
// same symbol must be delivered strictly sequentially by the caller
// (the FOK pre-check/execute split depends on it); books for
// different symbols are independent, so symbol-sharded callers may
// run in parallel. Read-only queries take each book's shared lock and
// may run from any goroutine, concurrently with matching.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"helix/domain/book"
)

// Engine owns one order book per symbol and a single trade-id
// sequence shared across all symbols.
type Engine struct {
	mu    sync.RWMutex
	books map[string]*book.OrderBook

	// owner maps a resting order id to its symbol so cancellation
	// does not need the symbol on the wire.
	owner sync.Map // string -> string

	tradeSeq atomic.Uint64

	now func() time.Time
}

// New creates an engine with no books; books come into existence the
// first time a symbol is seen.
func New() *Engine {
	return &Engine{
		books: make(map[string]*book.OrderBook),
		now:   time.Now,
	}
}

// Book returns the order book for symbol, creating it on first use.
func (e *Engine) Book(symbol string) *book.OrderBook {
	e.mu.RLock()
	b, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return b
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok = e.books[symbol]; ok {
		return b
	}
	b = book.NewOrderBook(symbol)
	e.books[symbol] = b
	return b
}

// LastTradeID returns the most recently assigned trade id, 0 before
// any trade.
func (e *Engine) LastTradeID() uint64 { return e.tradeSeq.Load() }

// Process runs the incoming order against its symbol's book and
// returns the trades produced, in execution order. The order is
// assumed well formed: positive quantity, price present iff the type
// requires it. Zero trades is a normal outcome.
func (e *Engine) Process(o *book.Order) []book.Trade {
	b := e.Book(o.Symbol)
	b.Lock()
	defer b.Unlock()

	switch o.Type {
	case book.Market:
		return e.matchLoop(b, o)
	case book.Limit:
		trades := e.matchLoop(b, o)
		if o.Remaining.IsPositive() {
			e.rest(b, o)
		}
		return trades
	case book.IOC:
		// Leftover is discarded, never rests.
		return e.matchLoop(b, o)
	case book.FOK:
		return e.matchFOK(b, o)
	default:
		panic(fmt.Sprintf("engine: unknown order type %d", o.Type))
	}
}

// Cancel removes a resting order wherever it rests. Unknown ids
// return false; cancellation is idempotent and never an error.
func (e *Engine) Cancel(orderID string) bool {
	sym, ok := e.owner.Load(orderID)
	if !ok {
		return false
	}
	b := e.Book(sym.(string))
	b.Lock()
	defer b.Unlock()
	if !b.Remove(orderID) {
		panic(fmt.Sprintf("engine: owner index points at %s but book %s has no such order", orderID, sym))
	}
	e.owner.Delete(orderID)
	return true
}

// SymbolOf reports which symbol's book a resting order lives in.
func (e *Engine) SymbolOf(orderID string) (string, bool) {
	sym, ok := e.owner.Load(orderID)
	if !ok {
		return "", false
	}
	return sym.(string), true
}

// BestBid returns the highest resting bid for symbol. Safe to call
// concurrently with matching.
func (e *Engine) BestBid(symbol string) (decimal.Decimal, bool) {
	b := e.Book(symbol)
	b.RLock()
	defer b.RUnlock()
	return b.BestBid()
}

// BestAsk returns the lowest resting ask for symbol. Safe to call
// concurrently with matching.
func (e *Engine) BestAsk(symbol string) (decimal.Decimal, bool) {
	b := e.Book(symbol)
	b.RLock()
	defer b.RUnlock()
	return b.BestAsk()
}

// Depth returns the top n levels per side for symbol, best first.
// Safe to call concurrently with matching.
func (e *Engine) Depth(symbol string, n int) (bids, asks []book.DepthEntry) {
	b := e.Book(symbol)
	b.RLock()
	defer b.RUnlock()
	return b.Depth(n)
}

// matchLoop is the inner loop shared by every order type: walk the
// opposing side from the best price, fill against FIFO heads, emit a
// trade per fill at the maker's price, and remove exhausted makers.
func (e *Engine) matchLoop(b *book.OrderBook, o *book.Order) []book.Trade {
	var trades []book.Trade
	for o.Remaining.IsPositive() {
		lvl := b.BestOpposing(o.Side)
		if lvl == nil {
			break // no liquidity
		}
		if !marketable(o, lvl.Price) {
			break
		}
		maker := lvl.Head()
		if maker == nil {
			panic(fmt.Sprintf("engine: empty price level %s on book %s", lvl.Price, b.Symbol))
		}

		fill := decimal.Min(o.Remaining, maker.Remaining)
		trades = append(trades, e.emit(b.Symbol, maker, o, fill))

		o.Remaining = o.Remaining.Sub(fill)
		if b.ApplyFill(maker, fill) {
			e.owner.Delete(maker.ID)
		}
	}
	return trades
}

// matchFOK checks acceptable opposing liquidity before touching the
// book: short liquidity means zero trades and an untouched book.
// A sufficient pre-check guarantees the loop drains the order, so a
// leftover afterwards is a defect, not a data condition.
func (e *Engine) matchFOK(b *book.OrderBook, o *book.Order) []book.Trade {
	need := o.Remaining
	available := b.AvailableLiquidity(o.Side.Opposite(), o.Price, need)
	if available.Cmp(need) < 0 {
		return nil
	}
	trades := e.matchLoop(b, o)
	if o.Remaining.IsPositive() {
		panic(fmt.Sprintf("engine: FOK order %s left %s unfilled after passing liquidity check",
			o.ID, o.Remaining))
	}
	return trades
}

// marketable reports whether o may trade at the opposing best price.
// Market orders always proceed while liquidity exists.
func marketable(o *book.Order, best decimal.Decimal) bool {
	if o.Type == book.Market {
		return true
	}
	if o.Side == book.Buy {
		return o.Price.Cmp(best) >= 0
	}
	return o.Price.Cmp(best) <= 0
}

func (e *Engine) rest(b *book.OrderBook, o *book.Order) {
	b.Add(o)
	e.owner.Store(o.ID, b.Symbol)
}

func (e *Engine) emit(symbol string, maker, taker *book.Order, qty decimal.Decimal) book.Trade {
	return book.Trade{
		ID:           e.tradeSeq.Add(1),
		Symbol:       symbol,
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		Price:        maker.Price,
		Quantity:     qty,
		Aggressor:    taker.Side,
		Timestamp:    e.now(),
	}
}
