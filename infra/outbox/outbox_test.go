package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"helix/domain/book"
)

func trade(id uint64) book.Trade {
	return book.Trade{
		ID:           id,
		Symbol:       "BTC-USDT",
		MakerOrderID: "m",
		TakerOrderID: "t",
		Price:        decimal.RequireFromString("60000"),
		Quantity:     decimal.RequireFromString("0.5"),
		Aggressor:    book.Buy,
		Timestamp:    time.Unix(1700000000, 0).UTC(),
	}
}

func openTemp(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestAppendScanRoundTrip(t *testing.T) {
	o := openTemp(t)
	for i := uint64(1); i <= 3; i++ {
		if err := o.Append(trade(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var seen []uint64
	err := o.ScanPending(func(rec *Record) error {
		if rec.State != StateNew {
			t.Errorf("seq %d state = %s, want NEW", rec.Seq, rec.State)
		}
		var tr book.Trade
		if err := json.Unmarshal(rec.Payload, &tr); err != nil {
			t.Fatalf("payload decode: %v", err)
		}
		if tr.ID != rec.Seq || tr.Symbol != "BTC-USDT" {
			t.Errorf("payload mismatch: %+v", tr)
		}
		seen = append(seen, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("scan order = %v, want [1 2 3]", seen)
	}
}

func TestAckedRecordsSkippedAndPruned(t *testing.T) {
	o := openTemp(t)
	for i := uint64(1); i <= 3; i++ {
		o.Append(trade(i))
	}
	if err := o.MarkSent(2); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := o.MarkAcked(2); err != nil {
		t.Fatalf("mark acked: %v", err)
	}

	var pending []uint64
	o.ScanPending(func(rec *Record) error {
		pending = append(pending, rec.Seq)
		return nil
	})
	if len(pending) != 2 || pending[0] != 1 || pending[1] != 3 {
		t.Errorf("pending = %v, want [1 3]", pending)
	}

	if err := o.PruneAcked(3); err != nil {
		t.Fatalf("prune: %v", err)
	}
	// Acked record is gone; unacked ones survive the prune.
	pending = pending[:0]
	o.ScanPending(func(rec *Record) error {
		pending = append(pending, rec.Seq)
		return nil
	})
	if len(pending) != 2 {
		t.Errorf("pending after prune = %v, want [1 3]", pending)
	}
}
