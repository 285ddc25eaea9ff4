// Package service is the only write entry point into the engine.
//
// Admission is symbol-sharded: each symbol gets one worker goroutine
// consuming a strictly-ordered command queue, so every operation for a
// symbol (including the whole fill-or-kill pre-check/execute span)
// runs as an indivisible unit against that symbol's book. Different
// symbols proceed in parallel.
package service

import (
	"sync"

	"go.uber.org/zap"

	"helix/domain/book"
	"helix/domain/engine"
)

// TradeSink receives the trades each admitted order produced, in
// execution order, after the book mutation completed.
type TradeSink interface {
	PublishTrades(symbol string, trades []book.Trade)
}

// BookWatcher is notified whenever a symbol's book changed (new
// resting order, fill, cancel) so market-data consumers can refresh.
type BookWatcher interface {
	BookChanged(symbol string)
}

type command struct {
	order   *book.Order // nil for cancels
	cancel  string
	replyTr chan []book.Trade
	replyOK chan bool
}

type shard struct {
	cmds chan command
}

// OrderService serializes admitted operations per symbol and fans
// resulting trades out to sinks.
type OrderService struct {
	engine   *engine.Engine
	log      *zap.Logger
	sinks    []TradeSink
	watchers []BookWatcher

	// sendMu fences command sends against shutdown: senders hold it
	// shared across the channel send, Close holds it exclusively while
	// closing the channels, so a send can never hit a closed channel.
	sendMu sync.RWMutex

	mu     sync.Mutex
	shards map[string]*shard
	wg     sync.WaitGroup
	closed bool
}

// NewOrderService wires the engine to its outbound sinks. Sinks and
// watchers are invoked from shard workers; they must not block for
// long or they stall that symbol's admission queue.
func NewOrderService(eng *engine.Engine, log *zap.Logger, sinks []TradeSink, watchers []BookWatcher) *OrderService {
	return &OrderService{
		engine:   eng,
		log:      log,
		sinks:    sinks,
		watchers: watchers,
		shards:   make(map[string]*shard),
	}
}

// Submit admits one already-validated order and returns the trades it
// produced, possibly none. Blocks until the symbol's worker has fully
// applied the order.
func (s *OrderService) Submit(o *book.Order) []book.Trade {
	s.sendMu.RLock()
	sh := s.shardFor(o.Symbol)
	if sh == nil {
		s.sendMu.RUnlock()
		return nil // shut down
	}
	reply := make(chan []book.Trade, 1)
	sh.cmds <- command{order: o, replyTr: reply}
	s.sendMu.RUnlock()
	return <-reply
}

// Cancel removes a resting order by id. Returns false for ids the
// engine does not know, which includes orders already fully filled.
func (s *OrderService) Cancel(orderID string) bool {
	sym, ok := s.engine.SymbolOf(orderID)
	if !ok {
		return false
	}
	s.sendMu.RLock()
	sh := s.shardFor(sym)
	if sh == nil {
		s.sendMu.RUnlock()
		return false
	}
	reply := make(chan bool, 1)
	sh.cmds <- command{cancel: orderID, replyOK: reply}
	s.sendMu.RUnlock()
	return <-reply
}

// Engine exposes the underlying engine for read-only queries (best
// bid/ask, depth snapshots). Queries never mutate book state.
func (s *OrderService) Engine() *engine.Engine { return s.engine }

// Close stops all shard workers after their queued commands drain.
// Submissions racing Close either complete normally or observe the
// shutdown and return nothing; they never panic.
func (s *OrderService) Close() {
	s.sendMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return
	}
	s.closed = true
	for _, sh := range s.shards {
		close(sh.cmds)
	}
	s.mu.Unlock()
	s.sendMu.Unlock()
	s.wg.Wait()
}

func (s *OrderService) shardFor(symbol string) *shard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	sh, ok := s.shards[symbol]
	if !ok {
		sh = &shard{cmds: make(chan command, 256)}
		s.shards[symbol] = sh
		s.wg.Add(1)
		go s.run(symbol, sh)
	}
	return sh
}

func (s *OrderService) run(symbol string, sh *shard) {
	defer s.wg.Done()
	for cmd := range sh.cmds {
		if cmd.order != nil {
			trades := s.engine.Process(cmd.order)
			cmd.replyTr <- trades
			if len(trades) > 0 {
				for _, sink := range s.sinks {
					sink.PublishTrades(symbol, trades)
				}
				s.log.Debug("order matched",
					zap.String("symbol", symbol),
					zap.String("order_id", cmd.order.ID),
					zap.Int("trades", len(trades)))
			}
			s.notifyBookChanged(symbol)
			continue
		}
		ok := s.engine.Cancel(cmd.cancel)
		cmd.replyOK <- ok
		if ok {
			s.notifyBookChanged(symbol)
		}
	}
}

func (s *OrderService) notifyBookChanged(symbol string) {
	for _, w := range s.watchers {
		w.BookChanged(symbol)
	}
}
