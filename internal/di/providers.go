package di

import (
	"context"
	"fmt"
	"time"

	"SpinTrack/internal/domain/repository"
	"SpinTrack/internal/handler/api"
	"SpinTrack/internal/handler/ws"
	mid "SpinTrack/internal/middleware"
	internalrepo "SpinTrack/internal/repository"
	statsmetrics "SpinTrack/internal/service/metrics"
	"SpinTrack/internal/service/notify"
	"SpinTrack/internal/service/ratelimit"
	"SpinTrack/internal/service/spinfeed"
	"SpinTrack/internal/services/strategy"
	"SpinTrack/internal/usecase"
	"SpinTrack/pkg/cache"
	pkgch "SpinTrack/pkg/clickhouse"
	"SpinTrack/pkg/config"
	xhttp "SpinTrack/pkg/http"
	pkgkafka "SpinTrack/pkg/kafka"
	applogger "SpinTrack/pkg/logger"
	"SpinTrack/pkg/metrics"
	"SpinTrack/pkg/queue"
	"SpinTrack/pkg/server"
)

// AlertPublishers are the alert destinations in delivery order.
type AlertPublishers []repository.AlertPublisher

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	statsmetrics.Register()
	return metrics.New()
}

// ProvideRedisCache connects to Redis. It returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, cfg.Redis.Timeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

// ProvideSnapshotCache picks the cache backing the snapshot store.
func ProvideSnapshotCache(cfg *config.Config, redisCache *cache.RedisCache) cache.Service {
	if cfg.Snapshot.Backend == config.SnapshotRedis && redisCache != nil {
		return redisCache
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(16), cache.WithMemoryCleanup(time.Minute))
}

// ProvideSnapshotStore creates the tracker snapshot store.
func ProvideSnapshotStore(cfg *config.Config, c cache.Service) repository.SnapshotStore {
	return internalrepo.NewCacheSnapshotStore(c, cfg.Snapshot.Key, cfg.Snapshot.TTL)
}

// ProvideEngine creates the strategy engine.
func ProvideEngine(cfg *config.Config) *strategy.Engine {
	return strategy.New(
		strategy.WithHistoryLimit(cfg.Engine.HistoryLimit),
		strategy.WithMaxStrategies(cfg.Engine.MaxStrategies),
	)
}

// ProvideClickHouseClient creates a ClickHouse client. It returns nil when
// ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSpinStorage creates the spins table and its repository. It returns
// nil without a ClickHouse client.
func ProvideSpinStorage(client *pkgch.Client, cfg *config.Config) (repository.SpinStorage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSpinStorage(client, cfg.ClickHouse.Table)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSpinPublisher publishes recorded spins when Kafka is enabled.
func ProvideSpinPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SpinPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSpinPublisher(producer, cfg.Kafka.SpinsTopic)
}

// ProvideArchivePipeline buffers spins in front of the archive backend. It
// returns nil when archiving is off.
func ProvideArchivePipeline(
	cfg *config.Config,
	pub repository.SpinPublisher,
	store repository.SpinStorage,
	m repository.Metrics,
	log *applogger.Logger,
) (*mid.ArchivePipeline, error) {
	if cfg.Archive.Backend == config.ArchiveNone {
		return nil, nil
	}
	rec, err := usecase.NewSpinRecorder(pub, store, m, cfg.Archive.Backend)
	if err != nil {
		return nil, err
	}
	return mid.NewArchivePipeline(rec, m,
		mid.WithBufferSize(cfg.Archive.BufferSize),
		mid.WithPipelineLogger(log),
	), nil
}

// ProvideHub creates the websocket hub.
func ProvideHub(log *applogger.Logger) *ws.Hub {
	return ws.NewHub(log)
}

// ProvideAlertQueue creates the webhook delivery queue. It returns nil when
// no webhook is configured. Redis backs the queue when available.
func ProvideAlertQueue(cfg *config.Config, redisCache *cache.RedisCache, log *applogger.Logger) queue.Queue {
	if cfg.Notify.WebhookURL == "" {
		return nil
	}
	qcfg := queue.QueueConfig{
		Workers:    cfg.Notify.Workers,
		RetryLimit: cfg.Notify.Retries,
		RetryDelay: cfg.Notify.RetryDelay,
	}
	var q queue.Queue
	if redisCache != nil {
		q = queue.NewRedisQueue(log, qcfg, redisCache.Client(),
			queue.WithKeyPrefix(cfg.Redis.Prefix+"queue:"+cfg.Notify.Queue))
	} else {
		q = queue.NewMemoryQueue(log, qcfg)
	}
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Notify.Timeout),
		xhttp.WithUserAgent("spintrack-webhook"),
	)
	q.RegisterJob(notify.NewAlertJob(notify.NewWebhook(client, cfg.Notify.WebhookURL), log))
	return q
}

// ProvideAlertPublishers lists the alert destinations: the websocket hub,
// Kafka when enabled and the webhook queue when configured.
func ProvideAlertPublishers(cfg *config.Config, hub *ws.Hub, producer *pkgkafka.Producer, q queue.Queue) AlertPublishers {
	pubs := AlertPublishers{hub}
	if producer != nil {
		pubs = append(pubs, internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertsTopic))
	}
	if q != nil {
		pubs = append(pubs, notify.NewQueuedPublisher(q))
	}
	return pubs
}

// ProvideTracker creates the tracker use case.
func ProvideTracker(
	cfg *config.Config,
	engine *strategy.Engine,
	m repository.Metrics,
	log *applogger.Logger,
	store repository.SnapshotStore,
	pipeline *mid.ArchivePipeline,
	hub *ws.Hub,
	pubs AlertPublishers,
) *usecase.Tracker {
	opts := []usecase.TrackerOption{
		usecase.WithSnapshotStore(store, cfg.Snapshot.SaveTimeout),
		usecase.WithSpinListeners(hub),
		usecase.WithAlertPublishers(pubs...),
	}
	if pipeline != nil {
		opts = append(opts, usecase.WithArchiver(pipeline))
	}
	return usecase.NewTracker(engine, m, log, opts...)
}

// ProvideSpinCollector creates the live feed collector. It returns nil when
// the feed is disabled.
func ProvideSpinCollector(cfg *config.Config, tracker *usecase.Tracker, m repository.Metrics, log *applogger.Logger) *usecase.SpinCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	stream := spinfeed.New(cfg.Feed.URL, cfg.Feed.Source, cfg.Feed.ReconnectDelay, cfg.Feed.PingInterval, log)
	limiter := ratelimit.New(cfg.Feed.MaxRPS, cfg.Feed.Burst)
	return usecase.NewSpinCollector(stream, tracker, limiter, m, log)
}

// ProvideKafkaConsumer creates a consumer for the ingest topic and, when
// spins go through Kafka into ClickHouse, the spins topic. It returns nil
// when there is nothing to consume.
func ProvideKafkaConsumer(
	cfg *config.Config,
	tracker *usecase.Tracker,
	store repository.SpinStorage,
	m repository.Metrics,
	log *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	var handlers []pkgkafka.MessageHandler
	if cfg.Kafka.Consumer.Ingest {
		handlers = append(handlers, usecase.NewKafkaIngestHandler(cfg.Kafka.IngestTopic, tracker, m, log))
	}
	if cfg.Archive.Backend == config.ArchiveKafka && store != nil {
		handlers = append(handlers, usecase.NewKafkaArchiveHandler(cfg.Kafka.SpinsTopic, store, m))
	}
	if len(handlers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	for _, h := range handlers {
		consumer.RegisterHandler(h)
	}
	consumer.SetHook(pkgkafka.NewLoggingHook(log))
	return consumer, nil
}

// ProvideHTTPServer creates the echo server with the API and websocket
// routes.
func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, tracker *usecase.Tracker, hub *ws.Hub) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	handlers := xhttp.Handlers{
		api.NewTrackerEchoHandler(log, tracker),
		hub,
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(log),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	tracker *usecase.Tracker,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	collector *usecase.SpinCollector,
	consumer *pkgkafka.Consumer,
	q queue.Queue,
	pipeline *mid.ArchivePipeline,
	snapshotCache cache.Service,
	redisCache *cache.RedisCache,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	opts := []server.Option{
		server.WithHub(hub),
		server.WithCollector(collector),
		server.WithConsumer(consumer),
		server.WithQueue(q),
		server.WithPipeline(pipeline),
	}
	// typed nil pointers must not reach io.Closer
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	if redisCache != nil {
		opts = append(opts, server.WithCloser("redis", redisCache))
	}
	if snapshotCache != nil && snapshotCache != cache.Service(redisCache) {
		opts = append(opts, server.WithCloser("snapshot cache", snapshotCache))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	return server.New(cfg, log, tracker, httpServer, opts...)
}
