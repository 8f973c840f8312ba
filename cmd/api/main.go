package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/maintrack/internal/analytics"
	"github.com/example/maintrack/internal/config"
	"github.com/example/maintrack/internal/db"
	httpserver "github.com/example/maintrack/internal/http"
	"github.com/example/maintrack/internal/lifecycle"
	"github.com/example/maintrack/internal/logger"
	"github.com/example/maintrack/internal/metrics"
	"github.com/example/maintrack/internal/mq"
	"github.com/example/maintrack/internal/remote"
	"github.com/example/maintrack/internal/repository"
	"github.com/example/maintrack/internal/service"
	"github.com/example/maintrack/internal/store"
	"github.com/example/maintrack/internal/worker"
)

// backend is the system of record the board reconciles with: the local database or an
// upstream board API.
type backend struct {
	syncer    lifecycle.StageSyncer
	loader    lifecycle.Loader
	writer    service.RequestWriter
	equipment service.EquipmentLister
	teams     service.TeamLister
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	code := 0
	if err := run(cfg, log); err != nil {
		log.Error("board stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, log *zap.Logger) error {
	be, err := openBackend(cfg, log)
	if err != nil {
		return err
	}

	publisher, err := mq.NewRabbitPublisher(cfg.MQURL, cfg.MQExchange)
	if err != nil {
		log.Warn("rabbitmq unavailable, continuing without events", zap.Error(err))
	}
	// A nil *RabbitPublisher must not end up inside a non-nil interface.
	var events mq.Publisher
	if publisher != nil {
		events = publisher
		defer publisher.Close()
	}

	var consumer mq.Consumer
	if c, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQExchange, cfg.MQQueue, mq.RequestEventsBinding); err != nil {
		log.Warn("request event subscription unavailable", zap.Error(err))
	} else {
		consumer = c
		defer c.Close()
	}

	m := metrics.New()
	requests := store.NewRequestStore()
	engine := lifecycle.NewEngine(lifecycle.Params{
		Store:    requests,
		Syncer:   be.syncer,
		Loader:   be.loader,
		Notifier: mq.NewEquipmentNotifier(events, log),
		Metrics:  m,
		Logger:   log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := engine.Reload(ctx); err != nil {
		log.Warn("initial load failed, starting with an empty board", zap.Error(err))
	} else {
		log.Info("board loaded", zap.Int("requests", requests.Len()))
	}

	board := service.NewBoardService(service.Deps{
		Store:      requests,
		Engine:     engine,
		Aggregator: analytics.NewAggregator(requests, nil),
		Writer:     be.writer,
		Equipment:  be.equipment,
		Teams:      be.teams,
		Publisher:  events,
		Logger:     log,
	})
	apiServer := httpserver.NewServer(board, m, log)

	go worker.NewRefresher(engine, consumer, cfg.RefreshInterval, log).Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}
	log.Info("bye")
	return nil
}

func openBackend(cfg *config.Config, log *zap.Logger) (backend, error) {
	if cfg.UpstreamMode() {
		client := remote.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout)
		log.Info("using upstream board", zap.String("url", cfg.UpstreamURL))
		return backend{syncer: client, loader: client, equipment: client, teams: client}, nil
	}

	database, err := db.New(cfg.DatabaseURL, db.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		Debug:        cfg.Env == config.EnvDevelopment && cfg.Log.Level == "debug",
	}, log)
	if err != nil {
		return backend{}, errors.Wrap(err, "connect database")
	}
	if err := db.AutoMigrate(database); err != nil {
		return backend{}, errors.Wrap(err, "auto migrate")
	}

	requests := repository.NewRequestRepository(database)
	return backend{
		syncer:    requests,
		loader:    requests,
		writer:    requests,
		equipment: repository.NewEquipmentRepository(database),
		teams:     repository.NewTeamRepository(database),
	}, nil
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
