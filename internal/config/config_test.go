package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "WORKER_MIN", "WORKER_MAX", "WORKER_COUNT",
		"SCALE_INTERVAL_MS", "EVENT_BUS", "STORE_BACKEND", "SEARCH_BACKEND", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", c.HTTPAddr)
	require.Equal(t, 15*time.Second, c.ShutdownTimeout)
	require.Equal(t, 3, c.WorkerMin)
	require.Equal(t, 8, c.WorkerMax)
	require.Equal(t, 3, c.InitialWorkerCount)
	require.Equal(t, 500*time.Millisecond, c.ScaleInterval)
	require.Equal(t, 5000, c.QueueHighWatermark)
	require.Equal(t, BusRabbitMQ, c.EventBus)
	require.Equal(t, "catalog.events", c.RabbitMQExchange)
	require.Equal(t, "catalog.product.*", c.IndexerBindingKey)
	require.Equal(t, []string{"localhost:9092"}, c.KafkaBrokers)
	require.Equal(t, 5, c.UploadConcurrency)
	require.Equal(t, 10*time.Second, c.AssetTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("WORKER_MIN", "2")
	t.Setenv("WORKER_MAX", "3")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("SCALE_INTERVAL_MS", "250")
	t.Setenv("EVENT_BUS", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SEARCH_BACKEND", "elasticsearch")
	t.Setenv("STORE_TIMEOUT", "750ms")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", c.HTTPAddr)
	require.Equal(t, 2*time.Second, c.ShutdownTimeout)
	require.Equal(t, 2, c.WorkerMin)
	require.Equal(t, 3, c.InitialWorkerCount)
	require.Equal(t, 250*time.Millisecond, c.ScaleInterval)
	require.Equal(t, BusKafka, c.EventBus)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	require.Equal(t, SearchElasticsearch, c.SearchBackend)
	require.Equal(t, 750*time.Millisecond, c.StoreTimeout)
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("EVENT_BUS", "nats")
	_, err := Load()
	require.ErrorContains(t, err, "EVENT_BUS")

	t.Setenv("EVENT_BUS", "")
	t.Setenv("WORKER_MIN", "4")
	t.Setenv("WORKER_MAX", "2")
	_, err = Load()
	require.ErrorContains(t, err, "worker bounds")
}
