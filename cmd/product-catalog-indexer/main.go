// Package main runs the search indexer: it consumes catalog events from
// RabbitMQ and projects them into Elasticsearch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/streadway/amqp"

	"github.com/fairyhunter13/product-catalog-service/internal/config"
	"github.com/fairyhunter13/product-catalog-service/internal/eventbus"
	"github.com/fairyhunter13/product-catalog-service/internal/indexer"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
	"github.com/fairyhunter13/product-catalog-service/internal/queue"
	"github.com/fairyhunter13/product-catalog-service/internal/search"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("indexer_starting", "queue", cfg.IndexerQueue, "index", cfg.ElasticsearchIndex)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	es, err := search.Connect(cfg.ElasticsearchURL)
	if err != nil {
		fatal("search_unavailable", err)
	}
	idx := search.NewIndex(es, cfg.ElasticsearchIndex)
	if err := idx.EnsureIndex(ctx); err != nil {
		fatal("search_index_unavailable", err)
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		fatal("rabbitmq_unavailable", err)
	}
	defer conn.Close()
	consumer, err := eventbus.NewRabbitConsumer(conn, eventbus.ConsumerConfig{
		Exchange:     cfg.RabbitMQExchange,
		ExchangeType: cfg.RabbitMQExchangeType,
		Queue:        cfg.IndexerQueue,
		BindingKey:   cfg.IndexerBindingKey,
		Prefetch:     cfg.IndexerPrefetch,
		Tag:          "product-catalog-indexer",
	})
	if err != nil {
		fatal("rabbitmq_consumer_failed", err)
	}

	q := queue.New(128)
	mgr := queue.NewManager(cfg, q, indexer.New(idx).Handle)
	mgr.Start(ctx)

	feedCtx, stopFeed := context.WithCancel(ctx)
	fed := make(chan error, 1)
	go func() { fed <- indexer.Feed(feedCtx, consumer, mgr) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		obs.Logger.Info("shutdown_signal", "signal", s.String())
	case err := <-fed:
		obs.Logger.Error("consumer_stopped", "error", err)
	}

	stopFeed()
	mgr.CloseIntake()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", mgr.BacklogSize(), "worker_count", mgr.WorkerCount())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}
	mgr.Stop()
	_ = consumer.Close()
	obs.Logger.Info("indexer_stopped")
}

func fatal(event string, err error) {
	obs.Logger.Error(event, "error", err)
	os.Exit(1)
}
