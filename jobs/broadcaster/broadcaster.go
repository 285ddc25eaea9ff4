// Package broadcaster drains the trade outbox onto the message bus.
// Delivery is at-least-once: a record is marked SENT before the
// publish attempt and ACKED only after the broker confirms, so a
// crash between the two replays the trade on the next pass.
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"helix/infra/outbox"
)

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

func New(ob *outbox.Outbox, brokers []string, topic string, interval time.Duration, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// Start launches the drain loop; it stops when ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("trade broadcaster started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

func (b *Broadcaster) drainOnce() {
	var lastAcked uint64

	err := b.outbox.ScanPending(func(rec *outbox.Record) error {
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("trade publish failed, will retry",
				zap.Uint64("seq", rec.Seq), zap.Error(err))
			return nil // keep scanning; retried next pass
		}

		if err := b.outbox.MarkAcked(rec.Seq); err != nil {
			return err
		}
		lastAcked = rec.Seq
		return nil
	})
	if err != nil {
		b.log.Error("outbox drain failed", zap.Error(err))
		return
	}

	if lastAcked > 0 {
		if err := b.outbox.PruneAcked(lastAcked); err != nil {
			b.log.Warn("outbox prune failed", zap.Uint64("upto", lastAcked), zap.Error(err))
		}
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
