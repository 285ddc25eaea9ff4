package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"helix/domain/engine"
)

// Producer wraps a kafka-go writer bound to one topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds an async producer; market-data updates are fire
// and forget so a slow broker never stalls the matching path.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Send(ctx context.Context, key []byte, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// BBOPublisher pushes best-bid/offer updates onto the bus whenever a
// book changes. It implements service.BookWatcher.
type BBOPublisher struct {
	producer *Producer
	eng      *engine.Engine
	log      *zap.Logger
}

func NewBBOPublisher(producer *Producer, eng *engine.Engine, log *zap.Logger) *BBOPublisher {
	return &BBOPublisher{producer: producer, eng: eng, log: log}
}

type bboUpdate struct {
	Symbol    string `json:"symbol"`
	Bid       string `json:"bid,omitempty"`
	Ask       string `json:"ask,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (p *BBOPublisher) BookChanged(symbol string) {
	update := bboUpdate{Symbol: symbol, Timestamp: time.Now().UnixMilli()}
	if bid, ok := p.eng.BestBid(symbol); ok {
		update.Bid = bid.String()
	}
	if ask, ok := p.eng.BestAsk(symbol); ok {
		update.Ask = ask.String()
	}

	payload, err := json.Marshal(update)
	if err != nil {
		p.log.Error("bbo encode failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if err := p.producer.Send(context.Background(), []byte(symbol), payload); err != nil {
		p.log.Warn("bbo publish failed", zap.String("symbol", symbol), zap.Error(err))
	}
}
