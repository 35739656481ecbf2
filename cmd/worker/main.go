package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"newsletter-digest-bot/internal/adapters/classifier"
	gmailadapter "newsletter-digest-bot/internal/adapters/gmail"
	"newsletter-digest-bot/internal/adapters/repo"
	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/cache"
	"newsletter-digest-bot/internal/infra/config"
	"newsletter-digest-bot/internal/infra/db"
	"newsletter-digest-bot/internal/infra/gemini"
	loginfra "newsletter-digest-bot/internal/infra/log"
	"newsletter-digest-bot/internal/infra/metrics"
	"newsletter-digest-bot/internal/infra/openai"
	"newsletter-digest-bot/internal/infra/queue"
	archiveusecase "newsletter-digest-bot/internal/usecase/archive"
	digestusecase "newsletter-digest-bot/internal/usecase/digest"
	rankusecase "newsletter-digest-bot/internal/usecase/rank"
)

func main() {
	cfg := config.Load()
	loginfra.Setup(cfg.AppEnv, "worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	var digestQueue domain.DigestQueue
	if cfg.RabbitURL != "" {
		rabbitQueue, err := queue.NewRabbitDigestQueue(cfg.RabbitURL, cfg.Queues.Digest)
		if err != nil {
			log.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		digestQueue = rabbitQueue
	} else {
		digestQueue = queue.NewRedisDigestQueue(redisClient, cfg.Queues.Digest)
	}

	tokens := gmailadapter.NewOAuthTokenProvider(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RefreshToken)
	transport, err := gmailadapter.NewClient(ctx, tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: не удалось создать gmail клиента")
	}
	fetcher := gmailadapter.NewFetcher(transport, cfg.Limits.FetchBatchSize, cfg.Limits.FetchBatchWait, log.With().Str("component", "fetcher").Logger())

	openaiClient := openai.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	geminiClient := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.Timeout)
	batchClassifier := classifier.NewLLMBatch(openaiClient, geminiClient, log.With().Str("component", "classifier").Logger())

	rankerService := rankusecase.NewService(repoAdapter, batchClassifier, log.With().Str("component", "rank").Logger(), cfg.Limits.DigestMax, cfg.Limits.CandidateCap, cfg.Limits.MinBodyChars)
	digestService := digestusecase.NewService(fetcher, rankerService, transport, repoAdapter, repoAdapter, redisCache, log.With().Str("component", "digest").Logger(), cfg.Digest.Subject)
	archiveService := archiveusecase.NewService(transport, repoAdapter, repoAdapter, log.With().Str("component", "archive").Logger())

	log.Info().Msg("worker: запуск обработки очереди")
	for {
		job, err := digestQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			continue
		}

		if err := digestService.RunDigestJob(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("worker: задача дайджеста провалена")
			continue
		}

		if archived, err := archiveService.CheckAndArchive(ctx); err != nil {
			log.Error().Err(err).Msg("worker: автоархивация не удалась")
		} else if archived > 0 {
			log.Info().Int("archived", archived).Msg("worker: автоархивация завершена")
		}
	}
	log.Info().Msg("worker: остановлен")
}
