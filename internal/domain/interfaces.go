package domain

import (
	"context"
	"time"
)

// MessageIDPage — страница идентификаторов писем из транспорта.
type MessageIDPage struct {
	IDs           []string
	NextPageToken string
}

// LabelChange описывает изменение ярлыков письма.
type LabelChange struct {
	Add    []string
	Remove []string
}

// MailTransport описывает почтовый транспорт (REST-подобный API ящика).
type MailTransport interface {
	ListMessageIDs(ctx context.Context, query string, maxResults int64, pageToken string) (MessageIDPage, error)
	GetMessage(ctx context.Context, id string) (RawMessage, error)
	// SendRaw отправляет готовый base64url-конверт MIME.
	SendRaw(ctx context.Context, raw string) error
	TrashMessage(ctx context.Context, id string) error
	ModifyLabels(ctx context.Context, id string, change LabelChange) error
	// Profile возвращает адрес владельца ящика.
	Profile(ctx context.Context) (string, error)
}

// MessageFetcher выгружает письма-кандидаты за период.
type MessageFetcher interface {
	FetchCandidates(ctx context.Context, daysBack, maxCount int) ([]RawMessage, error)
}

// TokenProvider выдаёт и сбрасывает токены доступа к ящику.
type TokenProvider interface {
	Token(ctx context.Context, interactive bool) (string, error)
	Invalidate(ctx context.Context, token string) error
}

// CompletionProvider — один текстовый вызов внешней языковой модели.
type CompletionProvider interface {
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
	Name() string
}

// BatchClassifier классифицирует пачку кандидатов. Пустой результат —
// сигнал вызывающему перейти на эвристический путь, не ошибка.
type BatchClassifier interface {
	AnalyzeBatch(ctx context.Context, emails []CandidateEmail, primaryKey, secondaryKey string) []ClassificationResult
}

// Ranker строит оценённый топ рассылок из сырых писем.
type Ranker interface {
	ScoreNewsletters(ctx context.Context, messages []RawMessage) ([]ScoredNewsletter, error)
}

// SettingsRepo хранит настройки и правила между сессиями.
type SettingsRepo interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, settings Settings) error
}

// NewsletterRepo управляет сохранёнными рассылками.
type NewsletterRepo interface {
	// SaveNewsletters объединяет записи с хранилищем по id письма:
	// повторная запись того же id перезаписывает предыдущую, дубликатов нет.
	SaveNewsletters(ctx context.Context, newsletters []StoredNewsletter) error
	ListNewsletters(ctx context.Context) ([]StoredNewsletter, error)
	SearchNewsletters(ctx context.Context, query string) ([]StoredNewsletter, error)
	MarkArchived(ctx context.Context, ids []string) error
}

// CleanupStore хранит id писем, ожидающих подтверждения очистки.
type CleanupStore interface {
	AddPending(ctx context.Context, ids []string) error
	ListPending(ctx context.Context) ([]string, error)
	ClearPending(ctx context.Context) error
}

// Cache используется для простых TTL-хранилищ и одноразовых замков.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
