// Package main boots the product catalog HTTP server.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/streadway/amqp"

	"github.com/fairyhunter13/product-catalog-service/internal/assets"
	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/config"
	"github.com/fairyhunter13/product-catalog-service/internal/eventbus"
	httpapi "github.com/fairyhunter13/product-catalog-service/internal/http"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
	"github.com/fairyhunter13/product-catalog-service/internal/search"
	"github.com/fairyhunter13/product-catalog-service/internal/store"
)

type catalogStore interface {
	catalog.CatalogStore
	httpapi.Finder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting", "store", cfg.StoreBackend, "bus", cfg.EventBus, "search", cfg.SearchBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		fatal("store_unavailable", err)
	}
	if m, ok := st.(*store.Mongo); ok {
		defer func() { _ = m.Close(context.Background()) }()
	}

	ik, err := assets.NewImageKit(assets.Config{
		PublicKey:   cfg.ImageKitPublicKey,
		PrivateKey:  cfg.ImageKitPrivateKey,
		URLEndpoint: cfg.ImageKitURLEndpoint,
		UploadURL:   cfg.ImageKitUploadURL,
		APIURL:      cfg.ImageKitAPIURL,
		Folder:      cfg.ImageKitFolder,
		Timeout:     cfg.AssetTimeout,
	}, nil)
	if err != nil {
		fatal("asset_store_invalid", err)
	}

	pub, err := openPublisher(cfg, &closers)
	if err != nil {
		fatal("event_bus_unavailable", err)
	}

	var finder httpapi.Finder = st
	if cfg.SearchBackend == config.SearchElasticsearch {
		es, err := search.Connect(cfg.ElasticsearchURL)
		if err != nil {
			fatal("search_unavailable", err)
		}
		finder = search.NewIndex(es, cfg.ElasticsearchIndex)
	}

	svc := catalog.New(ik, st, pub, catalog.WithUploadConcurrency(cfg.UploadConcurrency))
	app := httpapi.NewApp(svc, finder)
	handler, err := httpapi.NewRouter(app)
	if err != nil {
		fatal("router_invalid", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http_server_error", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}

func openStore(ctx context.Context, cfg config.Config) (catalogStore, error) {
	if cfg.StoreBackend == config.StoreMemory {
		obs.Logger.Warn("store_in_memory")
		return store.NewMemory(), nil
	}
	m, err := store.ConnectMongo(ctx, store.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		Timeout:    cfg.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = m.Close(context.Background())
		return nil, err
	}
	return m, nil
}

func openPublisher(cfg config.Config, closers *[]io.Closer) (catalog.Publisher, error) {
	switch cfg.EventBus {
	case config.BusKafka:
		p, err := eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.PublishTimeout)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, p)
		return p, nil
	case config.BusLog:
		return eventbus.NewLogPublisher(), nil
	default:
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, errors.Wrap(err, "dial rabbitmq")
		}
		*closers = append(*closers, conn)
		p, err := eventbus.NewRabbitPublisher(conn, eventbus.RabbitConfig{
			Exchange:     cfg.RabbitMQExchange,
			ExchangeType: cfg.RabbitMQExchangeType,
			Timeout:      cfg.PublishTimeout,
		})
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, p)
		return p, nil
	}
}

func fatal(event string, err error) {
	obs.Logger.Error(event, "error", err)
	os.Exit(1)
}
