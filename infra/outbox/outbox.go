// Package outbox persists the outbound trade feed until a broker
// acknowledges it. The matching core stays purely in-memory; the
// outbox exists so trades produced before a crash still reach the
// feed after restart.
package outbox

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"helix/domain/book"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

var ErrCorruptRecord = errors.New("outbox: corrupt record")

// Record is one trade awaiting delivery. Payload is the JSON-encoded
// trade as it goes onto the wire.
type Record struct {
	Seq     uint64
	State   State
	Payload []byte
}

// encoding: [state:1][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+len(r.Payload))
	buf[0] = byte(r.State)
	copy(buf[1:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < 1 {
		return Record{}, ErrCorruptRecord
	}
	return Record{
		Seq:     seq,
		State:   State(b[0]),
		Payload: append([]byte(nil), b[1:]...),
	}, nil
}

func keyFor(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Outbox is a pebble-backed store of trade records keyed by trade
// sequence, so scan order equals emission order.
type Outbox struct {
	db  *pebble.DB
	log *zap.Logger
}

func Open(dir string, log *zap.Logger) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", dir, err)
	}
	return &Outbox{db: db, log: log}, nil
}

// Append stores one trade in NEW state.
func (o *Outbox) Append(t book.Trade) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("outbox: encode trade %d: %w", t.ID, err)
	}
	rec := Record{Seq: t.ID, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(t.ID), encodeRecord(rec), pebble.Sync)
}

// PublishTrades implements service.TradeSink. Failures are logged,
// not propagated; matching must not stall on feed durability.
func (o *Outbox) PublishTrades(symbol string, trades []book.Trade) {
	for _, t := range trades {
		if err := o.Append(t); err != nil {
			o.log.Error("outbox append failed",
				zap.String("symbol", symbol),
				zap.Uint64("trade_id", t.ID),
				zap.Error(err))
		}
	}
}

// MarkSent transitions a record to SENT before the publish attempt.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.setState(seq, StateSent)
}

// MarkAcked transitions a record to ACKED after the broker confirmed.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.setState(seq, StateAcked)
}

func (o *Outbox) setState(seq uint64, s State) error {
	key := keyFor(seq)
	val, closer, err := o.db.Get(key)
	if err != nil {
		return fmt.Errorf("outbox: load seq %d: %w", seq, err)
	}
	rec, err := decodeRecord(seq, val)
	closer.Close()
	if err != nil {
		return err
	}
	rec.State = s
	return o.db.Set(key, encodeRecord(rec), pebble.Sync)
}

// ScanPending visits every record not yet ACKED, in sequence order.
// The visitor returning an error stops the scan.
func (o *Outbox) ScanPending(fn func(rec *Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("outbox: iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key())
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// PruneAcked deletes acknowledged records up to and including seq.
func (o *Outbox) PruneAcked(seq uint64) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{UpperBound: keyFor(seq + 1)})
	if err != nil {
		return fmt.Errorf("outbox: iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(binary.BigEndian.Uint64(iter.Key()), iter.Value())
		if err != nil {
			return err
		}
		if rec.State != StateAcked {
			continue
		}
		if err := o.db.Delete(append([]byte(nil), iter.Key()...), pebble.Sync); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (o *Outbox) Close() error {
	return o.db.Close()
}
