package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"GEFlip/internal/handler/api"
	"GEFlip/internal/handler/ws"
	"GEFlip/internal/usecase"
	pkgcache "GEFlip/pkg/cache"
	pkgch "GEFlip/pkg/clickhouse"
	"GEFlip/pkg/config"
	xhttp "GEFlip/pkg/http"
	pkgkafka "GEFlip/pkg/kafka"
	applogger "GEFlip/pkg/logger"
	"GEFlip/pkg/queue"

	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP-facing component so the server can register
// routes in one pass.
type Handlers struct {
	Market    *api.MarketHandler
	Positions *api.PositionsHandler
	Predict   *api.PredictHandler
	Stream    *api.StreamHandler
	Hub       *ws.Hub
}

func (h Handlers) RegisterRoutes(e *echo.Echo) {
	if h.Market != nil {
		h.Market.RegisterRoutes(e)
	}
	if h.Positions != nil {
		h.Positions.RegisterRoutes(e)
	}
	if h.Predict != nil {
		h.Predict.RegisterRoutes(e)
	}
	if h.Stream != nil {
		h.Stream.RegisterRoutes(e)
	}
	if h.Hub != nil {
		h.Hub.RegisterRoutes(e)
	}
}

var _ xhttp.Handler = Handlers{}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	collector  *usecase.SnapshotCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	monitor    *usecase.RiskMonitor
	hub        *ws.Hub
	jobQueue   *queue.RedisQueue
	seedLock   pkgcache.Service
	handlers   Handlers
	httpServer *xhttp.Server

	SnapProc *usecase.SnapshotProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	monitor *usecase.RiskMonitor,
	hub *ws.Hub,
	jobQueue *queue.RedisQueue,
	handlers Handlers,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		monitor:   monitor,
		hub:       hub,
		jobQueue:  jobQueue,
		handlers:  handlers,
	}
}

// SetSeedLocker installs a distributed lock so only one replica seeds the
// backfill queue on startup.
func (a *App) SetSeedLocker(svc pkgcache.Service) { a.seedLock = svc }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}

	a.httpServer = xhttp.NewServer(a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Snapshot collector (wiki poll loop -> pipeline -> backend)
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector started",
		applogger.Int("watchlist", len(a.cfg.Wiki.Items)),
		applogger.String("backend", a.cfg.Backend.Type),
	)

	// Kafka consumer only runs in the kafka backend; clickhouse writes directly.
	if a.cfg.Backend.Type == "kafka" && a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.monitor != nil {
		a.monitor.Start(ctx)
		l.Info("risk monitor started", applogger.Duration("interval", a.cfg.Risk.MonitorInterval))
	}

	if a.hub != nil {
		go func() {
			if err := a.hub.Run(ctx); err != nil && err != context.Canceled {
				l.Error("ws hub error", applogger.Error(err))
			}
		}()
	}

	// Deep-refresh queue: seed one backfill per watched item so analysis has
	// history before the poll loop does.
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Warn("job queue start error", applogger.Error(err))
		} else {
			a.jobQueue.StartRetryProcessor()
			if a.seedBackfills(ctx) {
				if err := usecase.EnqueueBackfills(ctx, a.jobQueue, a.cfg.Wiki.Items, ""); err != nil {
					l.Warn("backfill enqueue error", applogger.Error(err))
				}
			} else {
				l.Info("backfill seed skipped, another replica holds the lock")
			}
		}
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	cancel()
	return a.shutdown(l)
}

// seedBackfills reports whether this instance should enqueue the startup
// backfills. With a lock service, only the first replica to grab the lock
// within the TTL does.
func (a *App) seedBackfills(ctx context.Context) bool {
	if a.seedLock == nil {
		return true
	}
	ok, err := a.seedLock.TryLock(ctx, "backfill:seed", 5*time.Minute)
	if err != nil {
		return true
	}
	return ok
}

// shutdown gracefully stops all services.
func (a *App) shutdown(l *applogger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.monitor != nil {
		a.monitor.Stop()
	}

	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(ctx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.SnapProc != nil {
		a.SnapProc.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
