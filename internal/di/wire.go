//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"QuantLab/pkg/config"
	"QuantLab/pkg/server"
)

// InitializeApp wires together all application components.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideBarStore,
		ProvidePublisher,
		ProvideJournal,
		ProvideBarIngestHandler,
		ProvideFeedStream,
		ProvideBarProcessor,
		ProvideFeedCollector,
		ProvideIndicatorEngine,
		ProvideFuser,
		ProvideBacktestConfig,
		ProvideAdvisor,
		ProvideMarketData,
		ProvideAnalysisPipeline,
		ProvideBacktestRunner,
		ProvideRedisClient,
		ProvideQueue,
		ProvideCache,
		ProvideRouter,
		ProvideApp,
	)
	return nil, nil
}
