package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"QuantLab/internal/domain/repository"
	"QuantLab/pkg/config"
	xhttp "QuantLab/pkg/http"
	pkgkafka "QuantLab/pkg/kafka"
	applogger "QuantLab/pkg/logger"
)

// Jobs bundles the optional Kafka job worker.
type Jobs struct {
	Consumer  *pkgkafka.Consumer
	Handler   pkgkafka.MessageHandler
	Publisher repository.ResultPublisher
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	registry    *prometheus.Registry
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	jobs        *Jobs
}

// New creates a new App instance with all dependencies. jobs may be nil.
func New(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h xhttp.Handler, jobs *Jobs) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		registry:    reg,
		httpHandler: h,
		jobs:        jobs,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the HTTP server and the job consumer, then blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(a.cfg.Server.AllowedOrigins),
	}
	if a.cfg.Metrics.Enabled && a.registry != nil {
		opts = append(opts, xhttp.WithMetrics(a.registry, a.cfg.Metrics.Path))
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.l, opts...)

	if a.jobs != nil {
		a.jobs.Consumer.RegisterHandler(a.jobs.Handler)
		if err := a.jobs.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("job consumer started", applogger.String("topic", a.jobs.Handler.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains the consumer and closes the publisher.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.jobs != nil {
		if err := a.jobs.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
		if err := a.jobs.Publisher.Close(); err != nil {
			a.l.Warn("result publisher close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
