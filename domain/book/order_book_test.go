package book

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limit(id string, side Side, price, qty string) *Order {
	return NewOrder(id, "BTC-USDT", side, Limit, d(price), d(qty), time.Now())
}

func TestBestPricesTrackAddsAndRemoves(t *testing.T) {
	b := NewOrderBook("BTC-USDT")

	if _, ok := b.BestBid(); ok {
		t.Error("empty book should have no best bid")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("empty book should have no best ask")
	}

	b.Add(limit("b1", Buy, "59000", "1"))
	b.Add(limit("b2", Buy, "59500", "2"))
	b.Add(limit("a1", Sell, "60000", "1"))
	b.Add(limit("a2", Sell, "60500", "3"))

	if bid, _ := b.BestBid(); !bid.Equal(d("59500")) {
		t.Errorf("best bid = %s, want 59500", bid)
	}
	if ask, _ := b.BestAsk(); !ask.Equal(d("60000")) {
		t.Errorf("best ask = %s, want 60000", ask)
	}

	if !b.Remove("b2") {
		t.Fatal("remove of known order failed")
	}
	if bid, _ := b.BestBid(); !bid.Equal(d("59000")) {
		t.Errorf("best bid after remove = %s, want 59000", bid)
	}
}

func TestRemoveUnknownIDIsNoop(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	b.Add(limit("b1", Buy, "59000", "1"))

	if b.Remove("nope") {
		t.Error("unknown id should return false")
	}
	if b.RestingCount() != 1 {
		t.Errorf("resting count = %d, want 1", b.RestingCount())
	}
	// Idempotent: second remove of the same id is also false.
	b.Remove("b1")
	if b.Remove("b1") {
		t.Error("second remove of same id should return false")
	}
}

func TestRemoveMiddleOfLevelKeepsFIFO(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	b.Add(limit("a1", Sell, "60000", "1"))
	b.Add(limit("a2", Sell, "60000", "2"))
	b.Add(limit("a3", Sell, "60000", "3"))

	if !b.Remove("a2") {
		t.Fatal("remove a2 failed")
	}

	lvl := b.BestOpposing(Buy)
	if lvl == nil {
		t.Fatal("level missing")
	}
	if !lvl.TotalQty.Equal(d("4")) {
		t.Errorf("level aggregate = %s, want 4", lvl.TotalQty)
	}
	if lvl.OrderCount != 2 {
		t.Errorf("order count = %d, want 2", lvl.OrderCount)
	}
	if lvl.Head().ID != "a1" || lvl.Head().Next().ID != "a3" {
		t.Errorf("FIFO order after splice = %s, %s; want a1, a3",
			lvl.Head().ID, lvl.Head().Next().ID)
	}
}

func TestEmptyLevelIsDeletedImmediately(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	b.Add(limit("a1", Sell, "60000", "1"))

	b.Remove("a1")
	if b.LevelCount(Sell) != 0 {
		t.Errorf("ask level count = %d, want 0", b.LevelCount(Sell))
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("best ask should be gone")
	}
}

func TestApplyFillReducesAggregateAndRemovesExhausted(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	o := limit("a1", Sell, "60000", "1.0")
	b.Add(o)

	removed := b.ApplyFill(o, d("0.4"))
	if removed {
		t.Error("partial fill should not remove the maker")
	}
	if !o.Remaining.Equal(d("0.6")) {
		t.Errorf("remaining = %s, want 0.6", o.Remaining)
	}
	lvl := b.BestOpposing(Buy)
	if !lvl.TotalQty.Equal(d("0.6")) {
		t.Errorf("aggregate = %s, want 0.6", lvl.TotalQty)
	}

	removed = b.ApplyFill(o, d("0.6"))
	if !removed {
		t.Error("exhausting fill should remove the maker")
	}
	if b.RestingCount() != 0 || b.LevelCount(Sell) != 0 {
		t.Error("book should be empty after maker exhausted")
	}
}

func TestAvailableLiquidityRespectsLimitPrice(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	b.Add(limit("b1", Buy, "59000", "1.0"))
	b.Add(limit("b2", Buy, "58000", "2.0"))
	b.Add(limit("b3", Buy, "57000", "4.0"))

	// Seller at 58000 may hit the 59000 and 58000 bids only.
	got := b.AvailableLiquidity(Buy, d("58000"), d("10"))
	if !got.Equal(d("3.0")) {
		t.Errorf("liquidity = %s, want 3.0", got)
	}

	// Early exit: asking for 0.5 must still report at least 0.5.
	got = b.AvailableLiquidity(Buy, d("57000"), d("0.5"))
	if got.Cmp(d("0.5")) < 0 {
		t.Errorf("liquidity = %s, want >= 0.5", got)
	}
}

func TestDepthSnapshotOrderingAndTruncation(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	for i := 0; i < 5; i++ {
		b.Add(limit(fmt.Sprintf("b%d", i), Buy, fmt.Sprintf("%d", 59000-i*100), "1"))
		b.Add(limit(fmt.Sprintf("a%d", i), Sell, fmt.Sprintf("%d", 60000+i*100), "1"))
	}

	bids, asks := b.Depth(3)
	if len(bids) != 3 || len(asks) != 3 {
		t.Fatalf("depth sizes = %d/%d, want 3/3", len(bids), len(asks))
	}
	if !bids[0].Price.Equal(d("59000")) || !bids[2].Price.Equal(d("58800")) {
		t.Errorf("bid ordering wrong: %s .. %s", bids[0].Price, bids[2].Price)
	}
	if !asks[0].Price.Equal(d("60000")) || !asks[2].Price.Equal(d("60200")) {
		t.Errorf("ask ordering wrong: %s .. %s", asks[0].Price, asks[2].Price)
	}

	bids, asks = b.Depth(0)
	if len(bids) != 5 || len(asks) != 5 {
		t.Errorf("full depth sizes = %d/%d, want 5/5", len(bids), len(asks))
	}
}
