package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"classtrack/internal/config"
	"classtrack/internal/logging"
	"classtrack/internal/metrics"
	"classtrack/internal/observability"
	"classtrack/internal/postgres"
	"classtrack/internal/queue"
	"classtrack/internal/sessions"
	"classtrack/internal/store"
)

// Worker consumes session-completed events and records absent rows for
// enrolled students who never checked in.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logg.Closer()
	log := logg.Base

	closeSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "classtrack-worker")
	if err != nil {
		log.Warn("sentry init failed", zap.Error(err))
	}
	defer closeSentry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:sessions")
	}

	repo := postgres.NewRepository(db.Client, cfg.Timezone)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != sessions.MsgSessionCompleted {
			continue
		}

		sessionID := string(msg.Body)
		marked, err := repo.MarkAbsentees(ctx, sessionID)
		if err != nil {
			observability.CaptureErr(err)
			log.Error("mark absentees failed", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		metrics.AbsenteesMarked.Add(float64(marked))
		log.Info("absentees marked", zap.String("session_id", sessionID), zap.Int64("count", marked))
	}

	log.Info("worker stopped")
}
