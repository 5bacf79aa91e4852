package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "QuantLab/internal/domain/repository"
	domsvc "QuantLab/internal/domain/service"
	"QuantLab/internal/handler/api"
	mid "QuantLab/internal/middleware"
	internalrepo "QuantLab/internal/repository"
	icache "QuantLab/internal/service/cache"
	"QuantLab/internal/service/feed"
	"QuantLab/internal/services/advisory"
	"QuantLab/internal/services/backtest"
	"QuantLab/internal/services/fusion"
	"QuantLab/internal/services/indicator"
	"QuantLab/internal/usecase"
	pkgcache "QuantLab/pkg/cache"
	pkgch "QuantLab/pkg/clickhouse"
	"QuantLab/pkg/config"
	xhttp "QuantLab/pkg/http"
	pkgkafka "QuantLab/pkg/kafka"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/metrics"
	pkgqueue "QuantLab/pkg/queue"
	"QuantLab/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "json"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideClickHouseClient connects to ClickHouse and makes sure the bars
// schema exists before anything reads or writes it.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.bars (symbol String, ts DateTime, open Float64, high Float64, low Float64, close Float64, volume Float64) ENGINE=MergeTree ORDER BY (symbol, ts)", db),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when no
// brokers are configured, which disables publishing.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
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

// ProvideKafkaConsumer builds the worker-pool consumer with its logger
// and the trace/log hook chain. Returns nil when no brokers are
// configured, which disables the ingest path.
func ProvideKafkaConsumer(cfg *config.Config, lgr *applogger.Logger) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerLogger(lgr)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}, pkgkafka.NewLogHook(lgr)))
	return consumer, nil
}

// ProvideMetrics exposes the Prometheus-backed domain metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideBarStore creates the ClickHouse bar repository.
func ProvideBarStore(chClient *pkgch.Client, cfg *config.Config, lgr *applogger.Logger) domrepo.BarStore {
	store := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database+".bars")
	store.SetLogger(lgr)
	return store
}

// ProvidePublisher creates the Kafka publisher repository. Nil when
// Kafka is not configured; callers treat a nil publisher as a no-op.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Bars:      cfg.Kafka.Topics.Bars,
		Decisions: cfg.Kafka.Topics.Decisions,
		Results:   cfg.Kafka.Topics.Results,
	})
}

// ProvideJournal opens the SQLite decision journal and creates its schema.
func ProvideJournal(cfg *config.Config) (domrepo.Journal, error) {
	j, err := internalrepo.NewSQLiteJournal(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite journal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := j.Init(ctx); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return j, nil
}

// ProvideBarIngestHandler registers the handler for the bars topic.
func ProvideBarIngestHandler(store domrepo.BarStore, metrics domrepo.Metrics, cfg *config.Config) *usecase.BarIngestHandler {
	return usecase.NewBarIngestHandler(cfg.Kafka.Topics.Bars, store, metrics)
}

// ProvideFeedStream creates the WebSocket market data stream.
func ProvideFeedStream(cfg *config.Config, lgr *applogger.Logger) domrepo.MarketStream {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		lgr,
	)
}

// ProvideBarProcessor creates the bar processor use case.
func ProvideBarProcessor(
	pub domrepo.Publisher,
	store domrepo.BarStore,
	metrics domrepo.Metrics,
	cfg *config.Config,
) *usecase.BarProcessor {
	return usecase.NewBarProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideFeedCollector creates the feed collector use case. Nil when
// the feed is disabled; the app then serves the API without live data.
func ProvideFeedCollector(
	stream domrepo.MarketStream,
	processor *usecase.BarProcessor,
	metrics domrepo.Metrics,
	cfg *config.Config,
) *usecase.FeedCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	// Build middleware pipeline between WebSocket and the backend
	pipe := mid.NewIngestPipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewFeedCollector(stream, processor, metrics, pipe)
}

// ProvideIndicatorEngine builds the indicator engine, falling back to
// standard windows for any period left unset.
func ProvideIndicatorEngine(cfg *config.Config) (*indicator.Engine, error) {
	ic := indicator.DefaultConfig()
	src := cfg.Indicators
	if src.RSIPeriod > 0 {
		ic.RSIPeriod = src.RSIPeriod
	}
	if src.MACDFast > 0 {
		ic.MACDFast = src.MACDFast
	}
	if src.MACDSlow > 0 {
		ic.MACDSlow = src.MACDSlow
	}
	if src.MACDSignal > 0 {
		ic.MACDSignal = src.MACDSignal
	}
	if src.SMAShort > 0 {
		ic.SMAShort = src.SMAShort
	}
	if src.SMALong > 0 {
		ic.SMALong = src.SMALong
	}
	if src.BollingerPeriod > 0 {
		ic.BollingerPeriod = src.BollingerPeriod
	}
	if src.BollingerK > 0 {
		ic.BollingerK = src.BollingerK
	}
	return indicator.NewEngine(ic)
}

// ProvideFuser builds the signal fuser.
func ProvideFuser(cfg *config.Config) (*fusion.Fuser, error) {
	fc := fusion.DefaultConfig()
	src := cfg.Fusion
	if src.RSIOversold > 0 {
		fc.RSIOversold = src.RSIOversold
	}
	if src.RSIOverbought > 0 {
		fc.RSIOverbought = src.RSIOverbought
	}
	if src.MinIndicators > 0 {
		fc.MinIndicators = src.MinIndicators
	}
	return fusion.NewFuser(fc)
}

// ProvideBacktestConfig maps the backtest defaults from YAML.
func ProvideBacktestConfig(cfg *config.Config) backtest.Config {
	bc := backtest.DefaultConfig()
	src := cfg.Backtest
	if src.InitialCapital > 0 {
		bc.InitialCapital = src.InitialCapital
	}
	if src.Commission > 0 {
		bc.Commission = src.Commission
	}
	if src.PeriodsPerYear > 0 {
		bc.PeriodsPerYear = src.PeriodsPerYear
	}
	if src.RiskFreeRate != 0 {
		bc.RiskFreeRate = src.RiskFreeRate
	}
	return bc
}

// ProvideAdvisor creates the external advisory client.
func ProvideAdvisor(cfg *config.Config) domsvc.Advisor {
	return advisory.NewHTTPAdvisor(cfg)
}

// ProvideMarketData creates the market data use case.
func ProvideMarketData(store domrepo.BarStore) *usecase.MarketDataUseCase {
	return usecase.NewMarketDataUseCase(store)
}

// ProvideAnalysisPipeline creates the indicator/decision pipeline.
func ProvideAnalysisPipeline(
	store domrepo.BarStore,
	engine *indicator.Engine,
	fuser *fusion.Fuser,
	advisor domsvc.Advisor,
	journal domrepo.Journal,
	pub domrepo.Publisher,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) *usecase.AnalysisPipeline {
	pipe := usecase.NewAnalysisPipeline(store, engine, fuser, advisor, journal, pub, metrics)
	pipe.SetLogger(lgr)
	return pipe
}

// ProvideBacktestRunner creates the backtest runner use case.
func ProvideBacktestRunner(
	store domrepo.BarStore,
	journal domrepo.Journal,
	pub domrepo.Publisher,
	metrics domrepo.Metrics,
	engine *indicator.Engine,
	fuser *fusion.Fuser,
	defaults backtest.Config,
	lgr *applogger.Logger,
) *usecase.BacktestRunner {
	runner := usecase.NewBacktestRunner(store, journal, pub, metrics, engine, fuser, defaults)
	runner.SetLogger(lgr)
	return runner
}

// ProvideRedisClient creates the shared Redis client. Nil when Redis
// is disabled.
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

// ProvideQueue creates the Redis-backed job queue and registers the
// backtest job on it. Nil when the queue is disabled; the backtest
// endpoint then only accepts synchronous runs.
func ProvideQueue(
	lgr *applogger.Logger,
	cfg *config.Config,
	client *redis.Client,
	runner *usecase.BacktestRunner,
) *pkgqueue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	var opts []pkgqueue.RedisQueueOption
	if cfg.Queue.Name != "" {
		opts = append(opts, pkgqueue.WithKeyPrefix("quantlab:queue:"+cfg.Queue.Name))
	}
	q := pkgqueue.NewRedisQueue(lgr, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, client, pkgqueue.ModeProducerConsumer, opts...)
	q.RegisterJob(usecase.NewBacktestJob(runner, lgr))
	runner.SetQueue(q)
	return q
}

// ProvideCache selects the response cache: layered Redis+memory when
// Redis is enabled, in-process TTL cache otherwise, nil when caching
// is off entirely.
func ProvideCache(cfg *config.Config) (icache.BytesCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache(), nil
	}

	host, port := splitAddr(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}

	var opts []pkgcache.LayeredOption
	if cfg.Cache.MemorySize > 0 {
		opts = append(opts, pkgcache.WithLayeredMemorySize(cfg.Cache.MemorySize))
	}
	return icache.NewServiceAdapter(pkgcache.NewLayeredCache(rc, opts...)), nil
}

func splitAddr(addr string) (string, int) {
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

// ProvideRouter assembles the HTTP handlers into one route registrar.
func ProvideRouter(
	cfg *config.Config,
	lgr *applogger.Logger,
	md *usecase.MarketDataUseCase,
	pipe *usecase.AnalysisPipeline,
	runner *usecase.BacktestRunner,
	store domrepo.BarStore,
	collector *usecase.FeedCollector,
	cache icache.BytesCache,
) xhttp.Handler {
	market := api.NewMarketEchoHandler(lgr, md, pipe, store)
	if cache != nil {
		market.SetCache(cache)
		market.SetCacheTTL(cfg.Cache.TTL)
	}
	if collector != nil {
		market.SetCollector(collector)
	}
	return api.NewRouter(
		market,
		api.NewStrategyEchoHandler(lgr, pipe),
		api.NewBacktestEchoHandler(lgr, runner),
	)
}

// ProvideApp assembles the lifecycle container that Run drives.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	ingest *usecase.BarIngestHandler,
	chClient *pkgch.Client,
	journal domrepo.Journal,
	q *pkgqueue.RedisQueue,
	router xhttp.Handler,
	proc *usecase.BarProcessor,
) *server.App {
	if producer != nil && cfg.Log.Aggregate.Enabled {
		lgr.AddCollector(logAggregateConfig(cfg, producer))
	}
	app := server.New(cfg, lgr, collector, consumer, ingest, chClient)
	app.SetHTTPHandler(router)
	app.SetJournal(journal)
	app.SetQueue(q)
	// attach bar processor to app so shutdown can release its backends
	app.BarProc = proc
	return app
}

// logAggregateConfig maps the log aggregation section onto the
// collector, shipping deduplicated error logs to a Kafka topic.
func logAggregateConfig(cfg *config.Config, producer *pkgkafka.Producer) *applogger.CollectionConfig {
	cc := &applogger.CollectionConfig{
		TimeInterval:   cfg.Log.Aggregate.Interval,
		CountThreshold: cfg.Log.Aggregate.Threshold,
		Topic:          cfg.Log.Aggregate.Topic,
		Publisher:      producer,
	}
	if cc.TimeInterval <= 0 {
		cc.TimeInterval = 30 * time.Second
	}
	if cc.CountThreshold <= 0 {
		cc.CountThreshold = 100
	}
	if cc.Topic == "" {
		cc.Topic = "quantlab.logs"
	}
	return cc
}
