package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SigForge/internal/domain/repository"
	"SigForge/internal/engine"
	"SigForge/internal/handler/api"
	mid "SigForge/internal/middleware"
	internalrepo "SigForge/internal/repository"
	icache "SigForge/internal/service/cache"
	"SigForge/internal/service/marketdata"
	"SigForge/internal/service/ratelimit"
	"SigForge/internal/service/strategies"
	"SigForge/internal/usecase"
	pkgch "SigForge/pkg/clickhouse"
	"SigForge/pkg/config"
	xhttp "SigForge/pkg/http"
	pkgkafka "SigForge/pkg/kafka"
	applogger "SigForge/pkg/logger"
	"SigForge/pkg/metrics"
	"SigForge/pkg/server"
)

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
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the schema. Returns nil when the memory backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.OutcomeSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisClient creates a Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideKafkaConsumer creates a Kafka consumer for the predictions
// topic, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.PredictionsTopic == "" {
		return nil, nil
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideActiveIndex selects the active-signal index backend. Redis
// gives the claim a TTL so a crashed resolver cannot pin a pair
// forever; the in-process index is for single-node and test runs.
func ProvideActiveIndex(cfg *config.Config, rdb *redis.Client) repository.ActiveIndex {
	if rdb != nil {
		return internalrepo.NewRedisActiveIndex(rdb, cfg.Redis.Prefix)
	}
	return internalrepo.NewMemoryActiveIndex()
}

// ProvideOutcomeLog selects the outcome history backend.
func ProvideOutcomeLog(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) repository.OutcomeLog {
	if ch != nil {
		s := internalrepo.NewCHOutcomeLog(ch, cfg.ClickHouse.Database)
		s.SetLogger(log)
		return s
	}
	return internalrepo.NewMemoryOutcomeLog()
}

// ProvideAuditLog selects the audit trail backend.
func ProvideAuditLog(cfg *config.Config, ch *pkgch.Client) repository.AuditLog {
	if ch != nil {
		return internalrepo.NewCHAuditLog(ch, cfg.ClickHouse.Database)
	}
	return internalrepo.NewMemoryAuditLog()
}

// ProvideSnapshotStore selects where the latest evaluation and
// consensus results are kept.
func ProvideSnapshotStore(cfg *config.Config, rdb *redis.Client) repository.SnapshotStore {
	if rdb != nil {
		return internalrepo.NewRedisSnapshotStore(rdb, cfg.Redis.Prefix)
	}
	return internalrepo.NewMemorySnapshotStore()
}

// ProvidePublisher creates the Kafka publisher, or a no-op when Kafka
// is disabled.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if producer != nil {
		return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.OutcomesTopic, cfg.Kafka.AuditTopic)
	}
	return internalrepo.NopPublisher{}
}

// ProvideTable creates the in-memory snapshot table fed by the stream.
func ProvideTable(cfg *config.Config) *marketdata.Table {
	return marketdata.NewTable(cfg.Gateway.Staleness)
}

// ProvideMarketGateway exposes the table as the engine's gateway.
func ProvideMarketGateway(table *marketdata.Table) repository.MarketGateway {
	return table
}

// ProvideStream creates the market data WebSocket stream.
func ProvideStream(cfg *config.Config, log *applogger.Logger) *marketdata.Stream {
	return marketdata.NewStream(
		cfg.Gateway.WebSocketURL,
		cfg.Gateway.Assets,
		cfg.Gateway.ReconnectDelay,
		cfg.Gateway.PingInterval,
		log,
	)
}

// ProvideRunner pumps stream snapshots into the table.
func ProvideRunner(stream *marketdata.Stream, table *marketdata.Table, log *applogger.Logger) *marketdata.Runner {
	return marketdata.NewRunner(stream, table, log)
}

// ProvideStrategies loads the strategy catalog and compiles entry rules.
func ProvideStrategies(cfg *config.Config, log *applogger.Logger) ([]engine.StrategySpec, error) {
	specs, err := strategies.Load(cfg.Strategies.File, log)
	if err != nil {
		return nil, fmt.Errorf("strategy catalog: %w", err)
	}
	return specs, nil
}

// ProvideTracker creates the running performance aggregates.
func ProvideTracker() *engine.Tracker {
	return engine.NewTracker()
}

// ProvideClassifier creates the verdict classifier from config thresholds.
func ProvideClassifier(cfg *config.Config) *engine.Classifier {
	return engine.NewClassifier(engine.Thresholds{
		MinDecisionSample:   cfg.Engine.MinDecisionSample,
		SurvivalWinRate:     cfg.Engine.SurvivalWinRate,
		DrawdownCap:         cfg.Engine.DrawdownCap,
		MinAvgPnl:           cfg.Engine.MinAvgPnl,
		MinSharpe:           cfg.Engine.MinSharpe,
		MinPromotionSample:  cfg.Engine.MinPromotionSample,
		PromotionWinRate:    cfg.Engine.PromotionWinRate,
		PromotionPF:         cfg.Engine.PromotionPF,
		PromotionSharpe:     cfg.Engine.PromotionSharpe,
		ChampionshipWinRate: cfg.Engine.ChampionshipWinRate,
		ChampionshipTopN:    cfg.Engine.ChampionshipTopN,
		WinRateWeight:       cfg.Engine.WinRateWeight,
		ProfitFactorWeight:  cfg.Engine.ProfitFactorWeight,
		SharpeWeight:        cfg.Engine.SharpeWeight,
	})
}

// ProvideAnalyzer creates the consensus analyzer.
func ProvideAnalyzer(cfg *config.Config) *engine.Analyzer {
	return engine.NewAnalyzer(cfg.Consensus.ClusterThreshold, cfg.Consensus.TopPairs)
}

// ProvideOutcomePipeline builds the persistence pipeline between the
// resolver and the outcome log.
func ProvideOutcomePipeline(
	outcomes repository.OutcomeLog,
	pub repository.Publisher,
	tracker *engine.Tracker,
	m repository.Metrics,
) *mid.OutcomePipeline {
	return mid.NewOutcomePipeline(outcomes, pub, tracker, m)
}

// ProvideGenerator creates the signal generator.
func ProvideGenerator(
	gateway repository.MarketGateway,
	index repository.ActiveIndex,
	m repository.Metrics,
	cfg *config.Config,
) *engine.Generator {
	return engine.NewGenerator(gateway, index, m, cfg.Engine.ValidityWindow)
}

// ProvideResolver creates the signal resolver, sinking outcomes into
// the pipeline.
func ProvideResolver(
	gateway repository.MarketGateway,
	index repository.ActiveIndex,
	pipeline *mid.OutcomePipeline,
	m repository.Metrics,
	log *applogger.Logger,
) *engine.Resolver {
	return engine.NewResolver(gateway, index, pipeline, m, log)
}

// ProvideEvaluator creates the lifecycle orchestrator.
func ProvideEvaluator(
	cfg *config.Config,
	specs []engine.StrategySpec,
	generator *engine.Generator,
	resolver *engine.Resolver,
	tracker *engine.Tracker,
	classifier *engine.Classifier,
	analyzer *engine.Analyzer,
	outcomes repository.OutcomeLog,
	audit repository.AuditLog,
	snapshots repository.SnapshotStore,
	index repository.ActiveIndex,
	pub repository.Publisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Evaluator {
	return usecase.NewEvaluator(usecase.EvaluatorDeps{
		Strategies:   specs,
		Assets:       cfg.Gateway.Assets,
		Generator:    generator,
		Resolver:     resolver,
		Tracker:      tracker,
		Classifier:   classifier,
		Analyzer:     analyzer,
		Outcomes:     outcomes,
		Audit:        audit,
		Snapshots:    snapshots,
		Index:        index,
		Publisher:    pub,
		Metrics:      m,
		Logger:       log,
		Workers:      cfg.Engine.Workers,
		FetchTimeout: cfg.Gateway.FetchTimeout,
	})
}

// ProvideKafkaPredictionsHandler registers the handler for the
// predictions topic.
func ProvideKafkaPredictionsHandler(cfg *config.Config, evaluator *usecase.Evaluator, m repository.Metrics) *usecase.KafkaPredictionsHandler {
	return usecase.NewKafkaPredictionsHandler(cfg.Kafka.PredictionsTopic, evaluator, m)
}

// ProvideHTTPHandler composes the API surface. Status and control share
// one response cache so control operations can invalidate reads.
func ProvideHTTPHandler(log *applogger.Logger, evaluator *usecase.Evaluator) xhttp.Handler {
	cache := icache.NewTTLCache()
	rl := ratelimit.New()
	return api.NewRouter(
		api.NewStatusHandler(log, evaluator, cache, rl),
		api.NewConsensusHandler(log, evaluator, rl),
		api.NewControlHandler(log, evaluator, cache),
		api.NewHealthHandler(log, evaluator),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	evaluator *usecase.Evaluator,
	runner *marketdata.Runner,
	pipeline *mid.OutcomePipeline,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaPredictionsHandler,
	handler xhttp.Handler,
	pub repository.Publisher,
	chClient *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	return server.New(cfg, log, evaluator, runner, pipeline, consumer, kh, handler, pub, chClient, rdb)
}
