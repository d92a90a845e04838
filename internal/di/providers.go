package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"QuantLab/internal/domain/repository"
	"QuantLab/internal/handler/api"
	internalrepo "QuantLab/internal/repository"
	"QuantLab/internal/service/cache"
	"QuantLab/internal/service/ratelimit"
	"QuantLab/internal/service/twelvedata"
	"QuantLab/internal/services/ml"
	"QuantLab/internal/services/montecarlo"
	"QuantLab/internal/usecase"
	pkgch "QuantLab/pkg/clickhouse"
	"QuantLab/pkg/config"
	pkgkafka "QuantLab/pkg/kafka"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/metrics"
	pkgpg "QuantLab/pkg/postgres"
	"QuantLab/pkg/server"
)

// PriceBackend is the configured price source plus the health checks and closers it owns.
type PriceBackend struct {
	Provider repository.PriceSeriesProvider
	Source   string
	Checks   map[string]api.HealthCheck
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideRegistry creates the Prometheus registry served on the metrics path.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePostgresClient creates a Postgres client.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLife),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvidePriceBackend builds the provider selected by provider.type, optionally
// wrapped in the price cache.
func ProvidePriceBackend(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*PriceBackend, func(), error) {
	b := &PriceBackend{Source: cfg.Provider.Type, Checks: map[string]api.HealthCheck{}}
	var closers []func() error

	switch cfg.Provider.Type {
	case "twelvedata":
		b.Provider = twelvedata.NewClient(twelvedata.Config{
			BaseURL:     cfg.Provider.TwelveData.BaseURL,
			APIKey:      cfg.Provider.TwelveData.APIKey,
			Timeout:     cfg.Provider.TwelveData.Timeout,
			Retries:     cfg.Provider.TwelveData.Retries,
			RoundPrices: cfg.Provider.RoundPrices,
		}, l)
	case "clickhouse", "postgres":
		store, err := provideStore(cfg, l)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("%s schema: %w", cfg.Provider.Type, err)
		}
		b.Provider = store
		b.Checks[cfg.Provider.Type] = store.Health
		closers = append(closers, store.Close)
	default:
		return nil, nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}

	if cfg.Cache.Enabled {
		var c cache.BytesCache
		switch cfg.Cache.Backend {
		case "redis", "layered":
			rc := cache.NewRedisCache(cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			b.Checks["redis"] = rc.Ping
			closers = append(closers, rc.Close)
			c = rc
			if cfg.Cache.Backend == "layered" {
				c = cache.NewLayeredCache(rc, cfg.Cache.MemoryTTL)
			}
		default:
			c = cache.NewTTLCache()
		}
		b.Provider = internalrepo.NewCachingProvider(b.Provider, c, cfg.Cache.TTL, m, l)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				l.Warn("close error", applogger.Error(err))
			}
		}
	}
	l.Info("price backend ready",
		applogger.String("provider", b.Source),
		applogger.Bool("cache", cfg.Cache.Enabled),
	)
	return b, cleanup, nil
}

func provideStore(cfg *config.Config, l *applogger.Logger) (repository.PriceStore, error) {
	if cfg.Provider.Type == "clickhouse" {
		ch, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		return internalrepo.NewCHPriceStore(ch, l), nil
	}
	pg, err := ProvidePostgresClient(cfg)
	if err != nil {
		return nil, err
	}
	return internalrepo.NewPGPriceStore(pg, l), nil
}

func ProvideFetcher(b *PriceBackend, m repository.Metrics, l *applogger.Logger) *usecase.Fetcher {
	return usecase.NewFetcher(b.Provider, b.Source, m, l)
}

func ProvideSimulator(cfg *config.Config) *montecarlo.Simulator {
	return montecarlo.NewSimulator(montecarlo.Config{
		Workers:   cfg.Engine.MonteCarlo.Workers,
		ChunkSize: cfg.Engine.MonteCarlo.ChunkSize,
	})
}

func ProvidePredictor(cfg *config.Config) *ml.Predictor {
	return ml.NewPredictor(ml.ForestConfig{
		MaxDepth:       cfg.Engine.Forest.MaxDepth,
		MinSamplesLeaf: cfg.Engine.Forest.MinSamplesLeaf,
		Workers:        cfg.Engine.Forest.Workers,
		Seed:           cfg.Engine.Forest.Seed,
	})
}

func ProvideSimulationUseCase(cfg *config.Config, f *usecase.Fetcher, sim *montecarlo.Simulator, m repository.Metrics, l *applogger.Logger) *usecase.SimulationUseCase {
	return usecase.NewSimulationUseCase(f, sim, cfg.Engine.MonteCarlo.Seed, m, l)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec, cfg.RateLimit.IdleTTL)
}

// ProvideAnalysisHandler creates the Echo handler with dependency health checks.
func ProvideAnalysisHandler(
	cfg *config.Config,
	l *applogger.Logger,
	b *PriceBackend,
	prices *usecase.PriceUseCase,
	sim *usecase.SimulationUseCase,
	pairs *usecase.StatArbUseCase,
	predict *usecase.PredictUseCase,
	limiter *ratelimit.Limiter,
) *api.AnalysisHandler {
	h := api.NewAnalysisHandler(l, prices, sim, pairs, predict, limiter, cfg.Server.RequestTimeout)
	h.SetAllowedOrigins(cfg.Server.AllowedOrigins)
	for name, check := range b.Checks {
		h.AddHealthCheck(name, check)
	}
	return h
}

// ProvideJobs creates the Kafka job worker, or nil when kafka.enabled is false.
func ProvideJobs(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	sim *usecase.SimulationUseCase,
	pairs *usecase.StatArbUseCase,
	predict *usecase.PredictUseCase,
) (*server.Jobs, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TracingHook(), pkgkafka.LoggingHook(l)))

	pub := internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
	handler := usecase.NewJobHandler(cfg.Kafka.JobsTopic, sim, pairs, predict, pub, cfg.Server.RequestTimeout, l)
	l.Info("kafka jobs configured",
		applogger.Strings("brokers", cfg.Kafka.Brokers),
		applogger.String("jobs_topic", cfg.Kafka.JobsTopic),
		applogger.String("results_topic", cfg.Kafka.ResultsTopic),
	)
	return &server.Jobs{Consumer: consumer, Handler: handler, Publisher: pub}, nil
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *api.AnalysisHandler, jobs *server.Jobs) *server.App {
	return server.New(cfg, l, reg, h, jobs)
}

// Toolkit exposes the use cases without the transport layer.
type Toolkit struct {
	Prices  *usecase.PriceUseCase
	Sim     *usecase.SimulationUseCase
	Pairs   *usecase.StatArbUseCase
	Predict *usecase.PredictUseCase
}

func ProvideToolkit(prices *usecase.PriceUseCase, sim *usecase.SimulationUseCase, pairs *usecase.StatArbUseCase, predict *usecase.PredictUseCase) *Toolkit {
	return &Toolkit{Prices: prices, Sim: sim, Pairs: pairs, Predict: predict}
}
