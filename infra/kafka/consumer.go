package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"helix/api"
	"helix/service"
)

// Consumer pulls order submissions off the bus and feeds them into
// the order service. Kafka gives per-partition FIFO, which is the
// delivery-ordering contract the engine relies on; orders for one
// symbol must be keyed to one partition by the producer side.
type Consumer struct {
	reader *kafka.Reader
	svc    *service.OrderService
	log    *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc *service.OrderService, log *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  50 * time.Millisecond,
		}),
		svc: svc,
		log: log,
	}
}

// Run consumes until the context is cancelled. Messages failing
// validation are committed and dropped; an invalid order is a
// producer bug, not grounds to wedge the partition.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		c.handle(msg.Value)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("commit failed", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(value []byte) {
	var req api.OrderRequest
	if err := json.Unmarshal(value, &req); err != nil {
		c.log.Warn("order message not JSON", zap.Error(err))
		return
	}

	o, err := req.ToOrder(time.Now())
	if err != nil {
		c.log.Warn("order message rejected",
			zap.String("order_id", req.OrderID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return
	}

	trades := c.svc.Submit(o)
	c.log.Debug("bus order processed",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.Int("trades", len(trades)))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
