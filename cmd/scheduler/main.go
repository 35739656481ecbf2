package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/cache"
	"newsletter-digest-bot/internal/infra/config"
	loginfra "newsletter-digest-bot/internal/infra/log"
	"newsletter-digest-bot/internal/infra/metrics"
	"newsletter-digest-bot/internal/infra/queue"
	scheduleusecase "newsletter-digest-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	loginfra.Setup(cfg.AppEnv, "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	var digestQueue domain.DigestQueue
	if cfg.RabbitURL != "" {
		rabbitQueue, err := queue.NewRabbitDigestQueue(cfg.RabbitURL, cfg.Queues.Digest)
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		digestQueue = rabbitQueue
	} else {
		digestQueue = queue.NewRedisDigestQueue(redisClient, cfg.Queues.Digest)
	}

	scheduleService := scheduleusecase.NewService(digestQueue, redisCache, log.With().Str("component", "schedule").Logger(), cfg.Digest.DayOfWeek, cfg.Digest.Hour)

	next := scheduleusecase.NextRun(time.Now().UTC(), cfg.Digest.DayOfWeek, cfg.Digest.Hour)
	log.Info().Time("next_run", next).Msg("scheduler: старт")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: остановка")
			return
		case now := <-ticker.C:
			if _, err := scheduleService.Tick(ctx, now.UTC()); err != nil {
				log.Error().Err(err).Msg("scheduler: не удалось поставить задачу")
			}
		}
	}
}
