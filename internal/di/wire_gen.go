// Injector for the !wireinject build, kept in the layout wire emits.
// Update it together with wire.go.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"SpinTrack/pkg/config"
	"SpinTrack/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	repositoryMetrics := ProvideMetrics(cfg)
	redisCache, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	service := ProvideSnapshotCache(cfg, redisCache)
	snapshotStore := ProvideSnapshotStore(cfg, service)
	engine := ProvideEngine(cfg)
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	spinStorage, err := ProvideSpinStorage(client, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	spinPublisher := ProvideSpinPublisher(producer, cfg)
	archivePipeline, err := ProvideArchivePipeline(cfg, spinPublisher, spinStorage, repositoryMetrics, logger)
	if err != nil {
		return nil, err
	}
	hub := ProvideHub(logger)
	queue := ProvideAlertQueue(cfg, redisCache, logger)
	alertPublishers := ProvideAlertPublishers(cfg, hub, producer, queue)
	tracker := ProvideTracker(cfg, engine, repositoryMetrics, logger, snapshotStore, archivePipeline, hub, alertPublishers)
	httpServer := ProvideHTTPServer(cfg, logger, tracker, hub)
	spinCollector := ProvideSpinCollector(cfg, tracker, repositoryMetrics, logger)
	consumer, err := ProvideKafkaConsumer(cfg, tracker, spinStorage, repositoryMetrics, logger)
	if err != nil {
		return nil, err
	}
	app := ProvideApp(cfg, logger, tracker, httpServer, hub, spinCollector, consumer, queue, archivePipeline, service, redisCache, producer, client)
	return app, nil
}
