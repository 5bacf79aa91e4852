package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/usecase"
	pkgch "QuantLab/pkg/clickhouse"
	"QuantLab/pkg/config"
	xhttp "QuantLab/pkg/http"
	pkgkafka "QuantLab/pkg/kafka"
	applogger "QuantLab/pkg/logger"
	pkgqueue "QuantLab/pkg/queue"
)

// App encapsulates the application lifecycle: feed collector, Kafka
// consumer, queue workers, and the HTTP API start together and shut down
// in reverse order on SIGINT/SIGTERM.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   *usecase.FeedCollector
	consumer    *pkgkafka.Consumer
	ingest      pkgkafka.MessageHandler
	chClient    *pkgch.Client
	journal     domrepo.Journal
	queue       *pkgqueue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	// BarProc is closed on shutdown to release the publisher and store.
	BarProc *usecase.BarProcessor
}

// New creates a new App instance. Collector, consumer, and handler are
// optional; a nil component simply does not start.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	ingest pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr,
		collector: collector,
		consumer:  consumer,
		ingest:    ingest,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject the HTTP route handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetJournal wires the journal so shutdown can close it.
func (a *App) SetJournal(j domrepo.Journal) { a.journal = j }

// SetQueue wires the Redis queue so Run can start its workers.
func (a *App) SetQueue(q *pkgqueue.RedisQueue) { a.queue = q }

// Run starts every configured component and blocks until SIGINT or
// SIGTERM, then shuts them down in reverse order.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting",
		applogger.String("environment", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type))

	if err := a.start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	stop()
	a.logger.Info("shutdown signal received")

	// shutdown gets its own deadline; ctx is already canceled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.shutdown(shutdownCtx)
}

// start brings components up in dependency order: ingestion paths first,
// the HTTP API last so health never reports a half-started process.
func (a *App) start(ctx context.Context) error {
	l := a.logger

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
	}

	if a.consumer != nil && a.ingest != nil {
		a.consumer.RegisterHandler(a.ingest)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
		}
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
		xhttp.WithServerLogger(l),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))
	return nil
}

// shutdown stops intake first (collector, HTTP), lets workers drain, then
// closes storage. Aggregated logs flush while the Kafka producer is still
// open so the final batch is not lost.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	l.RemoveCollector()

	if a.BarProc != nil {
		a.BarProc.Close()
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			l.Warn("journal close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
