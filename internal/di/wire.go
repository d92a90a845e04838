//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"QuantLab/internal/services/features"
	"QuantLab/internal/services/statarb"
	"QuantLab/internal/usecase"
	"QuantLab/pkg/config"
	"QuantLab/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Price data
		ProvidePriceBackend,
		ProvideFetcher,

		// Engines
		ProvideSimulator,
		statarb.NewEngine,
		features.NewPipeline,
		ProvidePredictor,

		// Use cases
		usecase.NewPriceUseCase,
		ProvideSimulationUseCase,
		usecase.NewStatArbUseCase,
		usecase.NewPredictUseCase,

		// Transport
		ProvideLimiter,
		ProvideAnalysisHandler,
		ProvideJobs,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeToolkit wires the use cases for command line tools.
func InitializeToolkit(cfg *config.Config) (*Toolkit, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvidePriceBackend,
		ProvideFetcher,
		ProvideSimulator,
		statarb.NewEngine,
		features.NewPipeline,
		ProvidePredictor,
		usecase.NewPriceUseCase,
		ProvideSimulationUseCase,
		usecase.NewStatArbUseCase,
		usecase.NewPredictUseCase,
		ProvideToolkit,
	)
	return nil, nil, nil
}
