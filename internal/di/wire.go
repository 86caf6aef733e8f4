//go:build wireinject
// +build wireinject

package di

import (
	"SigForge/pkg/config"
	"SigForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Logging and metrics
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideActiveIndex,
		ProvideOutcomeLog,
		ProvideAuditLog,
		ProvideSnapshotStore,
		ProvidePublisher,

		// Market data
		ProvideTable,
		ProvideMarketGateway,
		ProvideStream,
		ProvideRunner,

		// Engine
		ProvideStrategies,
		ProvideTracker,
		ProvideClassifier,
		ProvideAnalyzer,
		ProvideOutcomePipeline,
		ProvideGenerator,
		ProvideResolver,

		// Use cases and handlers
		ProvideEvaluator,
		ProvideKafkaPredictionsHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
