package di

import (
	"testing"

	"SpinTrack/pkg/config"
	"SpinTrack/pkg/queue"
)

func testConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestInitializeAppWithLocalBackends(t *testing.T) {
	cfg := testConfig(t, "log:\n  format: console\n")
	app, err := InitializeApp(cfg)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if app == nil {
		t.Fatal("expected an app")
	}
}

func TestOptionalProvidersAreNilWhenDisabled(t *testing.T) {
	cfg := testConfig(t, "")
	if c, err := ProvideRedisCache(cfg); c != nil || err != nil {
		t.Fatalf("redis should be off: %v %v", c, err)
	}
	if c, err := ProvideClickHouseClient(cfg); c != nil || err != nil {
		t.Fatalf("clickhouse should be off: %v %v", c, err)
	}
	if p, err := ProvideKafkaProducer(cfg); p != nil || err != nil {
		t.Fatalf("kafka should be off: %v %v", p, err)
	}
	if s, err := ProvideSpinStorage(nil, cfg); s != nil || err != nil {
		t.Fatalf("storage should be off: %v %v", s, err)
	}
	if p := ProvideSpinPublisher(nil, cfg); p != nil {
		t.Fatal("publisher should be off")
	}
	if p, err := ProvideArchivePipeline(cfg, nil, nil, nil, nil); p != nil || err != nil {
		t.Fatalf("archive should be off: %v %v", p, err)
	}
	if q := ProvideAlertQueue(cfg, nil, nil); q != nil {
		t.Fatal("webhook queue should be off")
	}
	if c := ProvideSpinCollector(cfg, nil, nil, nil); c != nil {
		t.Fatal("feed should be off")
	}
	if c, err := ProvideKafkaConsumer(cfg, nil, nil, nil, nil); c != nil || err != nil {
		t.Fatalf("consumer should be off: %v %v", c, err)
	}
}

func TestAlertQueueFallsBackToMemory(t *testing.T) {
	cfg := testConfig(t, "notify:\n  webhook_url: https://hooks.example/alerts\n")
	q := ProvideAlertQueue(cfg, nil, nil)
	if _, ok := q.(*queue.MemoryQueue); !ok {
		t.Fatalf("expected a memory queue, got %T", q)
	}
	pubs := ProvideAlertPublishers(cfg, ProvideHub(nil), nil, q)
	if len(pubs) != 2 {
		t.Fatalf("expected hub and webhook publishers, got %d", len(pubs))
	}
}

func TestKafkaConsumerNeedsAHandler(t *testing.T) {
	cfg := testConfig(t, "kafka:\n  enabled: true\n  brokers: [\"localhost:9092\"]\n")
	if c, err := ProvideKafkaConsumer(cfg, nil, nil, nil, nil); c != nil || err != nil {
		t.Fatalf("no topics to consume, got %v %v", c, err)
	}
	cfg.Kafka.Consumer.Ingest = true
	c, err := ProvideKafkaConsumer(cfg, nil, nil, nil, nil)
	if err != nil || c == nil {
		t.Fatalf("expected an ingest consumer: %v", err)
	}
	if topics := c.Topics(); len(topics) != 1 || topics[0] != "spins.ingest" {
		t.Fatalf("unexpected topics %v", topics)
	}
}
