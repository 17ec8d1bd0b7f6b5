//go:build wireinject
// +build wireinject

package di

import (
	"GEFlip/pkg/config"
	"GEFlip/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideWikiFeed,

		// Repositories (with business logic)
		ProvideSnapshotStorage,
		ProvideSnapshotPublisher,
		ProvidePriceStore,

		// Use cases
		ProvideSnapshotProcessor,
		ProvideSnapshotCollector,
		ProvideKafkaSnapshotsHandler,
		ProvideAnalysisUseCase,
		ProvideOpportunitiesUseCase,
		ProvidePricesUseCase,
		ProvideRiskManager,
		ProvideRiskMonitor,
		ProvidePredictor,
		ProvidePredictUseCase,

		// API surface
		ProvideRedis,
		ProvideBytesCache,
		ProvideHub,
		ProvideJobQueue,
		ProvideHandlers,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
