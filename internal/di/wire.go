//go:build wireinject
// +build wireinject

package di

import (
	"SpinTrack/pkg/config"
	"SpinTrack/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideSnapshotCache,
		ProvideSnapshotStore,
		ProvideSpinStorage,
		ProvideSpinPublisher,

		// Delivery
		ProvideArchivePipeline,
		ProvideHub,
		ProvideAlertQueue,
		ProvideAlertPublishers,

		// Use cases
		ProvideEngine,
		ProvideTracker,
		ProvideSpinCollector,
		ProvideKafkaConsumer,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
