package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"helix/domain/book"
)

func BenchmarkProcessRestingLimit(b *testing.B) {
	e := New()
	qty := decimal.NewFromInt(1)
	ts := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		price := decimal.NewFromInt(int64(50000 + i%512))
		o := book.NewOrder(fmt.Sprintf("b%d", i), "BTC-USDT", book.Buy, book.Limit, price, qty, ts)
		_ = e.Process(o)
	}
}

func BenchmarkProcessCrossingLimit(b *testing.B) {
	e := New()
	qty := decimal.NewFromInt(1)
	price := decimal.NewFromInt(50000)
	ts := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		maker := book.NewOrder(fmt.Sprintf("m%d", i), "BTC-USDT", book.Sell, book.Limit, price, qty, ts)
		taker := book.NewOrder(fmt.Sprintf("t%d", i), "BTC-USDT", book.Buy, book.Limit, price, qty, ts)
		_ = e.Process(maker)
		_ = e.Process(taker)
	}
}

func BenchmarkCancel(b *testing.B) {
	e := New()
	qty := decimal.NewFromInt(1)
	ts := time.Now()

	ids := make([]string, b.N)
	for i := 0; i < b.N; i++ {
		price := decimal.NewFromInt(int64(50000 + i%512))
		o := book.NewOrder(fmt.Sprintf("b%d", i), "BTC-USDT", book.Buy, book.Limit, price, qty, ts)
		e.Process(o)
		ids[i] = o.ID
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Cancel(ids[i])
	}
}
