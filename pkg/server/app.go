package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"SigForge/internal/domain/repository"
	mid "SigForge/internal/middleware"
	"SigForge/internal/service/marketdata"
	"SigForge/internal/usecase"
	pkgch "SigForge/pkg/clickhouse"
	"SigForge/pkg/config"
	xhttp "SigForge/pkg/http"
	pkgkafka "SigForge/pkg/kafka"
	applogger "SigForge/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	evaluator *usecase.Evaluator
	runner    *marketdata.Runner
	pipeline  *mid.OutcomePipeline
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	handler   xhttp.Handler
	pub       repository.Publisher
	chClient  *pkgch.Client
	rdb       *redis.Client

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	evaluator *usecase.Evaluator,
	runner *marketdata.Runner,
	pipeline *mid.OutcomePipeline,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	handler xhttp.Handler,
	pub repository.Publisher,
	chClient *pkgch.Client,
	rdb *redis.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		evaluator: evaluator,
		runner:    runner,
		pipeline:  pipeline,
		consumer:  consumer,
		kh:        kh,
		handler:   handler,
		pub:       pub,
		chClient:  chClient,
		rdb:       rdb,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Background flush of buffered outcomes
	a.pipeline.Start(ctx)

	// Seed the running aggregates from the persisted log so a restart
	// does not serve zeroed stats.
	if err := a.evaluator.Warmup(ctx); err != nil {
		a.log.Error("aggregate warmup failed", applogger.Error(err))
	}

	// Market data pump with reconnect
	go a.runner.Run(ctx)
	a.log.Info("market data runner started",
		applogger.String("url", a.cfg.Gateway.WebSocketURL),
		applogger.Strings("assets", a.cfg.Gateway.Assets),
	)

	// Consume algorithm predictions if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	go a.scheduler(ctx)
	a.log.Info("scheduler started",
		applogger.Duration("generation", a.cfg.Engine.GenerationInterval),
		applogger.Duration("resolution", a.cfg.Engine.ResolutionInterval),
		applogger.Duration("evaluation", a.cfg.Engine.EvaluationInterval),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// scheduler drives the periodic lifecycle ticks. Every twelfth
// evaluation cycle cross-checks the running aggregates against a full
// recompute from the outcome log.
func (a *App) scheduler(ctx context.Context) {
	genTicker := time.NewTicker(a.cfg.Engine.GenerationInterval)
	resTicker := time.NewTicker(a.cfg.Engine.ResolutionInterval)
	evalTicker := time.NewTicker(a.cfg.Engine.EvaluationInterval)
	defer genTicker.Stop()
	defer resTicker.Stop()
	defer evalTicker.Stop()

	cycles := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-genTicker.C:
			stats := a.evaluator.GenerationTick(ctx)
			if stats.Generated > 0 || stats.Errors > 0 {
				a.log.Info("generation tick",
					applogger.Int("pairs", stats.Pairs),
					applogger.Int("generated", stats.Generated),
					applogger.Int("errors", stats.Errors),
				)
			}
		case <-resTicker.C:
			if _, err := a.evaluator.ResolutionTick(ctx); err != nil {
				a.log.Error("resolution tick error", applogger.Error(err))
			}
		case <-evalTicker.C:
			cycles++
			verify := cycles%12 == 0
			if _, err := a.evaluator.EvaluateCycle(ctx, verify); err != nil {
				a.log.Error("evaluation cycle error", applogger.Error(err))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Drain buffered outcomes before the sinks close
	a.pipeline.Stop()

	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
