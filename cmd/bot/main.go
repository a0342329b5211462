// cmd/bot/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrisync/config"
	"nutrisync/internal/activity"
	"nutrisync/internal/bot"
	"nutrisync/internal/connectivity"
	"nutrisync/internal/db"
	"nutrisync/internal/food"
	"nutrisync/internal/gpt"
	"nutrisync/internal/localstore"
	"nutrisync/internal/queue"
	"nutrisync/internal/realtime"
	"nutrisync/internal/server"
	"nutrisync/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	l := logger.New()
	defer func() { _ = l.Sync() }()
	l.Infow("starting nutrisync")

	cfg, err := config.Load()
	if err != nil {
		l.Fatalw("failed to load config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		l.Fatalw("invalid config", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Remote store. The pool connects lazily, so failures here are config
	// errors rather than an unreachable backend.
	var database *db.PostgresDB
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Errorw("failed to connect to database, retrying", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatalw("failed to connect to database after multiple attempts", "error", err)
	}
	defer database.Close()

	online := connectivity.Probe(ctx, database, cfg.Sync.ProbeTimeout)
	if online {
		migrateCtx, migrateCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := database.Migrate(migrateCtx); err != nil {
			l.Errorw("failed to migrate remote schema", "error", err)
		}
		migrateCancel()
	} else {
		l.Warnw("remote store unreachable at startup, running offline")
	}

	// Local durable store.
	kv := openLocalKV(cfg.LocalStore.Path, l)
	if closer, ok := kv.(*localstore.SQLKV); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				l.Errorw("failed to close local store", "error", err)
			}
		}()
	}
	local := localstore.New(kv, l)

	monitor := connectivity.NewMonitor(online, l)
	go connectivity.Watch(ctx, monitor, database, cfg.Sync.ProbeInterval, cfg.Sync.ProbeTimeout)

	hub := realtime.NewHub(l)
	svc := food.New(food.Deps{
		Remote:   database,
		Local:    local,
		Queue:    queue.New(local, l),
		Monitor:  monitor,
		Tracker:  activity.NewPrometheusTracker(l),
		Notifier: hub,
		Logger:   l,
	})
	svc.Start(ctx)

	var analyzer server.Analyzer
	if cfg.GPT.APIKey != "" {
		analyzer = gpt.NewClient(cfg.GPT.APIKey).WithModel(cfg.GPT.Model)
	} else {
		l.Warnw("GPT API key is not configured, meal analysis disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(queue.Collectors()...)
	registry.MustRegister(activity.Collectors()...)
	registry.MustRegister(server.Collectors()...)

	router := server.NewRouter(server.RouterDeps{
		Service:   svc,
		Analyzer:  analyzer,
		Hub:       hub,
		Gatherer:  registry,
		JWTSecret: []byte(cfg.Server.JWTSecret),
		Logger:    l,

		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	httpServer := server.NewServer(cfg.Server.Port, router, l)
	go func() {
		l.Infow("starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.Start(); err != nil {
			l.Fatalw("failed to start HTTP server", "error", err)
		}
	}()

	var telegramBot *bot.TelegramBot
	if cfg.Telegram.Token != "" {
		telegramBot, err = bot.NewTelegramBot(cfg.Telegram.Token, svc, analyzer, l)
		if err != nil {
			l.Fatalw("failed to create Telegram bot", "error", err)
		}
		if err := telegramBot.Start(ctx); err != nil {
			l.Fatalw("failed to start Telegram bot", "error", err)
		}
	} else {
		l.Infow("Telegram token is not configured, bot disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Errorw("error during HTTP server shutdown", "error", err)
	}
	if telegramBot != nil {
		if err := telegramBot.Stop(shutdownCtx); err != nil {
			l.Errorw("error during bot shutdown", "error", err)
		}
	}
	// Stops the probe loop and reconnect replays.
	cancel()

	status := svc.GetOfflineQueueStatus()
	l.Infow("stopped", "pending_operations", status.Count)
}

// openLocalKV opens the sqlite-backed store, falling back to memory when no
// path is configured or the file cannot be opened.
func openLocalKV(path string, l *logger.Logger) localstore.KV {
	if path == "" {
		l.Warnw("no local store path configured, offline data will not survive restarts")
		return localstore.NewMemoryKV()
	}
	kv, err := localstore.OpenSQLite(path)
	if err != nil {
		l.Errorw("failed to open local store, using memory", "path", path, "error", err)
		return localstore.NewMemoryKV()
	}
	return kv
}
