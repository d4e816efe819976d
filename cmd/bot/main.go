package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tg_note_logger_bot/internal/backend"
	"tg_note_logger_bot/internal/config"
	"tg_note_logger_bot/internal/domain"
	"tg_note_logger_bot/internal/feature/note"
	"tg_note_logger_bot/internal/feature/user"
	"tg_note_logger_bot/internal/health"
	"tg_note_logger_bot/internal/logging"
	"tg_note_logger_bot/internal/store"
	"tg_note_logger_bot/internal/telegram"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

var processStart = time.Now()

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":           "startup",
		"backend_payload": cfg.BackendPayload,
		"persistence":     cfg.PersistenceEnabled(),
	}).Info("configuration loaded")

	var (
		mongoManager  *store.Manager
		mongoChecker  health.Checker
		forwarderOpts []note.Option
		telegramOpts  = []telegram.Option{telegram.WithProcessStart(processStart)}
	)

	if cfg.PersistenceEnabled() {
		mongoManager = mustConnectMongo(cfg, logger)
		mongoChecker = mongoManager

		forwarderOpts = append(forwarderOpts, note.WithJournal(domain.NewSubmissionRepository(mongoManager.Submissions())))
		telegramOpts = append(telegramOpts,
			telegram.WithUserRegistrar(user.NewRegistrar(mongoManager.Users(), logger)),
			telegram.WithStatsProvider(store.NewStatsProvider(mongoManager.Users(), mongoManager.Submissions())),
		)
	} else {
		logger.WithField("event", "persistence_disabled").Info("MONGO_URI not set, running without persistence")
	}

	backendClient, err := backend.NewClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("backend client setup error")
		fmt.Fprintf(os.Stderr, "backend client setup error: %v\n", err)
		os.Exit(1)
	}

	forwarder, err := note.NewForwarder(backendClient, logger, forwarderOpts...)
	if err != nil {
		logger.WithError(err).Error("note forwarder setup error")
		fmt.Fprintf(os.Stderr, "note forwarder setup error: %v\n", err)
		os.Exit(1)
	}
	telegramOpts = append(telegramOpts, telegram.WithNoteForwarder(forwarder))

	tgClient, err := telegram.NewClient(cfg, logger, telegramOpts...)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, mongoChecker, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithField("event", "health_error").WithError(err).Error("health server stopped with error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	backendClient.Close()

	if mongoManager != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		if err := mongoManager.Close(shutdownCtx); err != nil {
			logger.WithError(err).Error("mongo disconnect error")
		} else {
			logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
		}
		cancelShutdown()
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func mustConnectMongo(cfg config.Config, logger *logrus.Entry) *store.Manager {
	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithFields(logging.Fields{
		"event":    "mongo_connect",
		"mongo_db": cfg.MongoDB,
	}).Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	err = mongoManager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		_ = mongoManager.Close(context.Background())
		os.Exit(1)
	}

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")
	return mongoManager
}
