package api

import (
	"testing"
	"time"

	"helix/domain/book"
)

func TestToOrderAssignsUUIDWhenMissing(t *testing.T) {
	req := OrderRequest{Symbol: "BTC-USDT", Side: "buy", Type: "limit", Quantity: "1", Price: "100"}
	o, err := req.ToOrder(time.Now())
	if err != nil {
		t.Fatalf("ToOrder: %v", err)
	}
	if o.ID == "" {
		t.Error("missing order_id should get a generated id")
	}
	if !o.Remaining.Equal(o.Quantity) {
		t.Error("remaining should initialize to quantity")
	}

	req.OrderID = "client-42"
	o, err = req.ToOrder(time.Now())
	if err != nil {
		t.Fatalf("ToOrder: %v", err)
	}
	if o.ID != "client-42" {
		t.Errorf("id = %s, want client-42", o.ID)
	}
}

func TestToOrderMarketHasNoPrice(t *testing.T) {
	req := OrderRequest{Symbol: "BTC-USDT", Side: "sell", Type: "market", Quantity: "2"}
	o, err := req.ToOrder(time.Now())
	if err != nil {
		t.Fatalf("ToOrder: %v", err)
	}
	if o.Type != book.Market || !o.Price.IsZero() {
		t.Errorf("market order carries price %s", o.Price)
	}
}

func TestStatusFor(t *testing.T) {
	now := time.Now()
	mk := func(typ, qty string) *book.Order {
		req := OrderRequest{Symbol: "S", Side: "buy", Type: typ, Quantity: qty}
		if typ != "market" {
			req.Price = "100"
		}
		o, err := req.ToOrder(now)
		if err != nil {
			t.Fatalf("ToOrder: %v", err)
		}
		return o
	}
	fills := func(qtys ...string) []book.Trade {
		var out []book.Trade
		for _, q := range qtys {
			out = append(out, book.Trade{Quantity: d(q)})
		}
		return out
	}

	if got := statusFor(mk("limit", "1"), fills("1")); got != "filled" {
		t.Errorf("filled limit = %s", got)
	}
	if got := statusFor(mk("limit", "2"), fills("0.5", "0.5")); got != "partial" {
		t.Errorf("partial limit = %s", got)
	}
	if got := statusFor(mk("limit", "1"), nil); got != "resting" {
		t.Errorf("resting limit = %s", got)
	}
	if got := statusFor(mk("fok", "2"), nil); got != "rejected" {
		t.Errorf("rejected fok = %s", got)
	}
	if got := statusFor(mk("market", "2"), nil); got != "no_fill" {
		t.Errorf("unfilled market = %s", got)
	}
	if got := statusFor(mk("ioc", "2"), nil); got != "no_fill" {
		t.Errorf("unfilled ioc = %s", got)
	}
}

func TestStatusForIgnoresMutableRemaining(t *testing.T) {
	req := OrderRequest{Symbol: "S", Side: "buy", Type: "limit", Quantity: "2", Price: "100"}
	o, err := req.ToOrder(time.Now())
	if err != nil {
		t.Fatalf("ToOrder: %v", err)
	}
	// Once a limit rests, later takers fill it concurrently with the
	// response being built; the status must reflect the admission
	// outcome, not whatever remaining happens to hold now.
	o.Remaining = d("0")
	if got := statusFor(o, nil); got != "resting" {
		t.Errorf("status = %s, want resting regardless of remaining", got)
	}
}
