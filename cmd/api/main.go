package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
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
	httpinfra "newsletter-digest-bot/internal/infra/http"
	loginfra "newsletter-digest-bot/internal/infra/log"
	"newsletter-digest-bot/internal/infra/metrics"
	"newsletter-digest-bot/internal/infra/openai"
	"newsletter-digest-bot/internal/infra/queue"
	archiveusecase "newsletter-digest-bot/internal/usecase/archive"
	digestusecase "newsletter-digest-bot/internal/usecase/digest"
	rankusecase "newsletter-digest-bot/internal/usecase/rank"
	scheduleusecase "newsletter-digest-bot/internal/usecase/schedule"
	suggestusecase "newsletter-digest-bot/internal/usecase/suggest"
)

func main() {
	cfg := config.Load()
	loginfra.Setup(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
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
			log.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		digestQueue = rabbitQueue
	} else {
		digestQueue = queue.NewRedisDigestQueue(redisClient, cfg.Queues.Digest)
	}

	tokens := gmailadapter.NewOAuthTokenProvider(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RefreshToken)
	transport, err := gmailadapter.NewClient(ctx, tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("api: не удалось создать gmail клиента")
	}
	fetcher := gmailadapter.NewFetcher(transport, cfg.Limits.FetchBatchSize, cfg.Limits.FetchBatchWait, log.With().Str("component", "fetcher").Logger())

	openaiClient := openai.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	geminiClient := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.Timeout)
	batchClassifier := classifier.NewLLMBatch(openaiClient, geminiClient, log.With().Str("component", "classifier").Logger())

	rankerService := rankusecase.NewService(repoAdapter, batchClassifier, log.With().Str("component", "rank").Logger(), cfg.Limits.DigestMax, cfg.Limits.CandidateCap, cfg.Limits.MinBodyChars)
	suggestService := suggestusecase.NewService(fetcher, repoAdapter, log.With().Str("component", "suggest").Logger())
	archiveService := archiveusecase.NewService(transport, repoAdapter, repoAdapter, log.With().Str("component", "archive").Logger())
	cleanupService := digestusecase.NewService(fetcher, rankerService, transport, repoAdapter, repoAdapter, redisCache, log.With().Str("component", "digest").Logger(), cfg.Digest.Subject)
	scheduleService := scheduleusecase.NewService(digestQueue, redisCache, log.With().Str("component", "schedule").Logger(), cfg.Digest.DayOfWeek, cfg.Digest.Hour)

	srv := httpinfra.NewServer(log.With().Str("component", "http").Logger())
	r := srv.Router

	r.Post("/api/v1/digest/run", func(w http.ResponseWriter, r *http.Request) {
		job, err := scheduleService.EnqueueManual(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: постановка задачи дайджеста")
			writeError(w, http.StatusInternalServerError, "failed to enqueue digest job")
			return
		}
		writeJSON(w, map[string]string{"job_id": job.ID, "status": "queued"})
	})

	r.Post("/api/v1/cleanup", func(w http.ResponseWriter, r *http.Request) {
		trashed, err := cleanupService.CleanupEmails(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: очистка писем")
			writeError(w, http.StatusInternalServerError, "cleanup failed")
			return
		}
		writeJSON(w, map[string]int{"trashed": trashed})
	})

	r.Get("/api/v1/suggestions", func(w http.ResponseWriter, r *http.Request) {
		result, err := suggestService.ScanSuggestions(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: сканирование предложений")
			writeError(w, http.StatusInternalServerError, "scan failed")
			return
		}
		writeJSON(w, result)
	})

	r.Get("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		settings, err := repoAdapter.Get(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: чтение настроек")
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		writeJSON(w, settings)
	})

	r.Put("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var settings domain.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := repoAdapter.Save(r.Context(), settings); err != nil {
			log.Error().Err(err).Msg("api: сохранение настроек")
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/rules/{list}", func(w http.ResponseWriter, r *http.Request) {
		handleRuleChange(w, r, repoAdapter, true)
	})
	r.Delete("/api/v1/rules/{list}", func(w http.ResponseWriter, r *http.Request) {
		handleRuleChange(w, r, repoAdapter, false)
	})

	r.Get("/api/v1/newsletters", func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		var (
			newsletters []domain.StoredNewsletter
			err         error
		)
		if query == "" {
			newsletters, err = repoAdapter.ListNewsletters(r.Context())
		} else {
			newsletters, err = repoAdapter.SearchNewsletters(r.Context(), query)
		}
		if err != nil {
			log.Error().Err(err).Msg("api: чтение рассылок")
			writeError(w, http.StatusInternalServerError, "failed to load newsletters")
			return
		}
		if newsletters == nil {
			newsletters = []domain.StoredNewsletter{}
		}
		writeJSON(w, newsletters)
	})

	r.Post("/api/v1/newsletters/{id}/archive", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := archiveService.ArchiveNow(r.Context(), id); err != nil {
			log.Error().Err(err).Str("id", id).Msg("api: архивация письма")
			writeError(w, http.StatusInternalServerError, "archive failed")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/newsletters/{id}/unsubscribe", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		result, err := archiveService.Unsubscribe(r.Context(), id)
		if err != nil {
			if errors.Is(err, archiveusecase.ErrNoUnsubscribeHeader) {
				writeError(w, http.StatusNotFound, "no unsubscribe header")
				return
			}
			log.Error().Err(err).Str("id", id).Msg("api: отписка")
			writeError(w, http.StatusInternalServerError, "unsubscribe failed")
			return
		}
		writeJSON(w, result)
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	log.Info().Msg("api: старт")
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type ruleChangeRequest struct {
	Sender string `json:"sender"`
}

func handleRuleChange(w http.ResponseWriter, r *http.Request, settings domain.SettingsRepo, add bool) {
	defer r.Body.Close()
	list := chi.URLParam(r, "list")
	if list != "whitelist" && list != "blacklist" {
		writeError(w, http.StatusNotFound, "unknown list")
		return
	}
	var req ruleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sender := strings.TrimSpace(req.Sender)
	if sender == "" {
		writeError(w, http.StatusBadRequest, "sender is required")
		return
	}

	current, err := settings.Get(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("api: чтение настроек")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	target := &current.Rules.WhitelistedSenders
	if list == "blacklist" {
		target = &current.Rules.BlacklistedSenders
	}
	if add {
		*target = appendUnique(*target, sender)
	} else {
		*target = removeSender(*target, sender)
	}
	if err := settings.Save(r.Context(), current); err != nil {
		log.Error().Err(err).Msg("api: сохранение настроек")
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, current.Rules)
}

func appendUnique(list []string, sender string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, sender) {
			return list
		}
	}
	return append(list, sender)
}

func removeSender(list []string, sender string) []string {
	out := list[:0]
	for _, existing := range list {
		if !strings.EqualFold(existing, sender) {
			out = append(out, existing)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
