package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"helix/api"
	"helix/config"
	"helix/domain/book"
	"helix/domain/engine"
	"helix/infra/kafka"
	"helix/infra/outbox"
	"helix/jobs/broadcaster"
	"helix/service"
	"helix/util"
)

func main() {
	cfg := config.LoadFromEnv("")

	log, err := util.NewLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// ---------------- Domain ----------------

	eng := engine.New()

	// ---------------- Trade outbox ----------------

	ob, err := outbox.Open(cfg.Outbox.Dir, log)
	if err != nil {
		log.Fatal("outbox init failed", zap.Error(err))
	}
	defer ob.Close()

	// ---------------- Market-data bus ----------------

	bboProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.BBOTopic)
	defer bboProducer.Close()
	bboPublisher := kafka.NewBBOPublisher(bboProducer, eng, log)

	// ---------------- Service + API ----------------

	// The API server is wired twice: as a trade sink (WS trades
	// channels) and a book watcher (WS orderbook/bbo channels).
	var apiServer *api.Server
	svcHolder := &sinkProxy{}
	svc := service.NewOrderService(eng, log,
		[]service.TradeSink{ob, svcHolder},
		[]service.BookWatcher{svcHolder, bboPublisher},
	)
	defer svc.Close()

	apiServer = api.NewServer(svc, log)
	svcHolder.target = apiServer

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bc, err := broadcaster.New(ob, cfg.Kafka.Brokers, cfg.Kafka.TradesTopic, cfg.Outbox.DrainInterval, log)
	if err != nil {
		log.Fatal("broadcaster init failed", zap.Error(err))
	}
	defer bc.Close()
	bc.Start(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.ConsumerGroup, svc, log)
	defer consumer.Close()
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("order consumer exited", zap.Error(err))
		}
	}()

	// ---------------- HTTP ----------------

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start(cfg.HTTP.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", zap.Error(err))
	}
}

// sinkProxy lets the order service and the API server reference each
// other without a construction cycle: the service needs the server as
// a sink, the server needs the service to submit orders.
type sinkProxy struct {
	target *api.Server
}

func (p *sinkProxy) PublishTrades(symbol string, trades []book.Trade) {
	if p.target != nil {
		p.target.PublishTrades(symbol, trades)
	}
}

func (p *sinkProxy) BookChanged(symbol string) {
	if p.target != nil {
		p.target.BookChanged(symbol)
	}
}
