package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int    `envconfig:"PG_MAX_CONNS" default:"5"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Gmail struct {
		ClientID     string `envconfig:"GMAIL_CLIENT_ID"`
		ClientSecret string `envconfig:"GMAIL_CLIENT_SECRET"`
		RefreshToken string `envconfig:"GMAIL_REFRESH_TOKEN"`
	} `envconfig:""`

	OpenAI struct {
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Gemini struct {
		BaseURL string        `envconfig:"GEMINI_BASE_URL"`
		Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash-lite"`
		Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Limits struct {
		DigestMax      int           `envconfig:"DIGEST_MAX_ITEMS" default:"10"`
		CandidateCap   int           `envconfig:"CANDIDATE_CAP" default:"20"`
		MinBodyChars   int           `envconfig:"MIN_BODY_CHARS" default:"200"`
		FetchBatchSize int           `envconfig:"FETCH_BATCH_SIZE" default:"5"`
		FetchBatchWait time.Duration `envconfig:"FETCH_BATCH_WAIT" default:"500ms"`
	} `envconfig:""`

	Digest struct {
		Subject   string `envconfig:"DIGEST_SUBJECT" default:"Your Weekly Best Reads"`
		DayOfWeek int    `envconfig:"DIGEST_DAY_OF_WEEK" default:"0"`
		Hour      int    `envconfig:"DIGEST_HOUR" default:"9"`
	} `envconfig:""`

	Queues struct {
		Digest string `envconfig:"DIGEST_QUEUE_KEY" default:"digest_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
