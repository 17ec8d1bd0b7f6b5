package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"GEFlip/internal/domain/repository"
	domsvc "GEFlip/internal/domain/service"
	"GEFlip/internal/engine"
	"GEFlip/internal/handler/api"
	"GEFlip/internal/handler/ws"
	mid "GEFlip/internal/middleware"
	internalrepo "GEFlip/internal/repository"
	icache "GEFlip/internal/service/cache"
	"GEFlip/internal/service/osrswiki"
	"GEFlip/internal/services/predictor"
	"GEFlip/internal/usecase"
	pkgcache "GEFlip/pkg/cache"
	pkgch "GEFlip/pkg/clickhouse"
	"GEFlip/pkg/config"
	pkgkafka "GEFlip/pkg/kafka"
	applogger "GEFlip/pkg/logger"
	"GEFlip/pkg/metrics"
	"GEFlip/pkg/queue"
	"GEFlip/pkg/server"
)

// ProvideLogger creates the shared structured logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
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
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		"CREATE TABLE IF NOT EXISTS " + cfg.ClickHouse.Database + ".ge_snapshots_raw (" +
			"ts DateTime, item_id Int32, item_name String, high Float64, low Float64, " +
			"volume Float64, source String, event_id String" +
			") ENGINE=MergeTree ORDER BY (item_id, ts)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideSnapshotStorage creates the ClickHouse snapshot sink.
func ProvideSnapshotStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database+".ge_snapshots_raw")
}

// ProvideSnapshotPublisher creates the Kafka snapshot sink.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideWikiFeed creates the OSRS wiki polling feed.
func ProvideWikiFeed(cfg *config.Config) *osrswiki.Client {
	return osrswiki.New(
		cfg.Wiki.BaseURL,
		cfg.Wiki.UserAgent,
		cfg.Wiki.Timeout,
		cfg.Wiki.PollInterval,
		cfg.Wiki.Items,
	)
}

// ProvideKafkaSnapshotsHandler registers the handler for the snapshots topic.
func ProvideKafkaSnapshotsHandler(store repository.Storage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaSnapshotsHandler {
	return usecase.NewKafkaSnapshotsHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideSnapshotProcessor creates the snapshot processor use case.
func ProvideSnapshotProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.SnapshotProcessor {
	return usecase.NewSnapshotProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideSnapshotCollector creates the snapshot collector use case.
func ProvideSnapshotCollector(
	feed *osrswiki.Client,
	processor *usecase.SnapshotProcessor,
	metrics repository.Metrics,
	analysis *usecase.AnalysisUseCase,
	jobQueue *queue.RedisQueue,
	cfg *config.Config,
) *usecase.SnapshotCollector {
	// Dedupe pipeline between the wiki poll loop and the backend
	pipe := mid.NewSnapshotPipeline(processor, metrics,
		mid.WithBufferSize(2000),
	)
	c := usecase.NewSnapshotCollector(feed, processor, metrics, pipe)
	if jobQueue != nil {
		c.EnableSmartSelection(analysis, jobQueue, cfg.Wiki.TopItems, cfg.Wiki.PollInterval)
	}
	return c
}

// ProvidePriceStore creates the ClickHouse read-side price store.
func ProvidePriceStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PriceStore {
	store := internalrepo.NewCHPriceStore(chClient, cfg.ClickHouse.Database+".ge_snapshots_raw")
	store.SetLogger(l)
	return store
}

// ProvideAnalysisUseCase creates the metrics/signal analysis use case.
func ProvideAnalysisUseCase(prices repository.PriceStore, cfg *config.Config) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(prices, cfg.Engine)
}

// ProvideOpportunitiesUseCase creates the market-wide opportunity scanner.
func ProvideOpportunitiesUseCase(prices repository.PriceStore, analysis *usecase.AnalysisUseCase, l *applogger.Logger) *usecase.OpportunitiesUseCase {
	uc := usecase.NewOpportunitiesUseCase(prices, analysis)
	uc.SetLogger(l)
	return uc
}

// ProvidePricesUseCase creates the price history use case.
func ProvidePricesUseCase(prices repository.PriceStore) *usecase.PricesUseCase {
	return usecase.NewPricesUseCase(prices)
}

// ProvideRiskManager creates the portfolio risk engine with its position store.
func ProvideRiskManager(cfg *config.Config) *engine.RiskManager {
	return engine.NewRiskManager(cfg.Engine, engine.NewPositionStore())
}

// ProvideRiskMonitor creates the periodic portfolio risk monitor.
func ProvideRiskMonitor(manager *engine.RiskManager, prices repository.PriceStore, cfg *config.Config, l *applogger.Logger) *usecase.RiskMonitor {
	return usecase.NewRiskMonitor(manager, prices, cfg.Risk.MonitorInterval, l)
}

// ProvidePredictor creates the RL prediction service client.
func ProvidePredictor(cfg *config.Config) domsvc.TradePredictor {
	return predictor.NewHTTPTradePredictor(cfg)
}

// ProvidePredictUseCase creates the prediction use case.
func ProvidePredictUseCase(analysis *usecase.AnalysisUseCase, pred domsvc.TradePredictor) *usecase.PredictUseCase {
	return usecase.NewPredictUseCase(analysis, pred)
}

// ProvideRedis creates the shared Redis cache service. Nil when Redis is
// not configured; dependents fall back to in-process alternatives.
func ProvideRedis(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Predictor.Redis.Enabled {
		return nil, nil
	}
	host, port := splitHostPort(cfg.Predictor.Redis.Addr)
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Predictor.Redis.Password),
		pkgcache.WithRedisDB(cfg.Predictor.Redis.DB),
	)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideBytesCache layers an in-process L1 over Redis when available,
// in-process TTL only otherwise.
func ProvideBytesCache(redisSvc *pkgcache.RedisCache) icache.BytesCache {
	if redisSvc != nil {
		layered := pkgcache.NewLayeredCache(redisSvc, pkgcache.WithLayeredMemorySize(512))
		return icache.NewServiceCache(layered)
	}
	return icache.NewTTLCache()
}

// ProvideHub creates the WebSocket fanout hub.
func ProvideHub(monitor *usecase.RiskMonitor, opportunities *usecase.OpportunitiesUseCase, cfg *config.Config, l *applogger.Logger) *ws.Hub {
	hub := ws.NewHub(monitor, opportunities, cfg.Risk.MonitorInterval)
	hub.SetLogger(l)
	return hub
}

// ProvideJobQueue creates the Redis deep-refresh queue. Nil when Redis is
// not configured; the app skips backfills in that case.
func ProvideJobQueue(redisSvc *pkgcache.RedisCache, l *applogger.Logger, wiki *osrswiki.Client, proc *usecase.SnapshotProcessor) *queue.RedisQueue {
	if redisSvc == nil {
		return nil
	}
	job := usecase.NewBackfillJob(wiki, proc)
	job.SetLogger(l)
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, redisSvc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(job)
	return q
}

// ProvideHandlers assembles every HTTP-facing handler.
func ProvideHandlers(
	analysis *usecase.AnalysisUseCase,
	opportunities *usecase.OpportunitiesUseCase,
	prices *usecase.PricesUseCase,
	predict *usecase.PredictUseCase,
	monitor *usecase.RiskMonitor,
	hub *ws.Hub,
	cache icache.BytesCache,
	cfg *config.Config,
	l *applogger.Logger,
) server.Handlers {
	market := api.NewMarketHandler(analysis, opportunities, prices)
	market.SetCache(cache)
	market.SetLogger(l)

	positions := api.NewPositionsHandler(monitor)
	positions.SetLogger(l)

	predictH := api.NewPredictHandler(predict, cfg.Predictor.CacheTTL.Prediction)
	predictH.SetCache(cache)
	predictH.SetLogger(l)

	stream := api.NewStreamHandler(opportunities, cfg.Predictor.CacheTTL.Opportunities)
	stream.SetLogger(l)

	return server.Handlers{
		Market:    market,
		Positions: positions,
		Predict:   predictH,
		Stream:    stream,
		Hub:       hub,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSnapshotsHandler,
	chClient *pkgch.Client,
	monitor *usecase.RiskMonitor,
	hub *ws.Hub,
	jobQueue *queue.RedisQueue,
	redisSvc *pkgcache.RedisCache,
	handlers server.Handlers,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient, monitor, hub, jobQueue, handlers)
	if collector != nil {
		app.SnapProc = collector.Processor()
	}
	if redisSvc != nil {
		app.SetSeedLocker(redisSvc)
	}
	return app
}
