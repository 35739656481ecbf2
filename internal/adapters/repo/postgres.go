package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SettingsRepo   = (*Postgres)(nil)
	_ domain.NewsletterRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Get возвращает настройки. Отсутствующая строка или отсутствующие поля
// дополняются значениями по умолчанию.
func (p *Postgres) Get(ctx context.Context) (domain.Settings, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	settings := domain.DefaultSettings()

	var payload []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT payload FROM app_settings WHERE id = 1`).Scan(&payload)
	metrics.ObserveNetworkRequest("postgres", "app_settings_get", "app_settings", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("чтение настроек: %w", err)
	}
	if err := json.Unmarshal(payload, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("разбор настроек: %w", err)
	}
	if settings.Rules.MaxEmailsToScan <= 0 {
		settings.Rules.MaxEmailsToScan = domain.DefaultSettings().Rules.MaxEmailsToScan
	}
	if settings.Rules.ScanTimeRangeDays <= 0 {
		settings.Rules.ScanTimeRangeDays = domain.DefaultSettings().Rules.ScanTimeRangeDays
	}
	return settings, nil
}

// Save сохраняет настройки целиком.
func (p *Postgres) Save(ctx context.Context, settings domain.Settings) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("сериализация настроек: %w", err)
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO app_settings (id, payload, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
`, payload)
	metrics.ObserveNetworkRequest("postgres", "app_settings_save", "app_settings", start, err)
	return err
}

// SaveNewsletters объединяет партию с хранилищем по id письма: повторная
// запись того же id перезаписывает предыдущую.
func (p *Postgres) SaveNewsletters(ctx context.Context, newsletters []domain.StoredNewsletter) error {
	if len(newsletters) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, n := range newsletters {
		batch.Queue(`
INSERT INTO newsletters (id, subject, sender, summary, category, received_at, is_archived, importance_score)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET subject=EXCLUDED.subject, sender=EXCLUDED.sender, summary=EXCLUDED.summary, category=EXCLUDED.category, received_at=EXCLUDED.received_at, is_archived=EXCLUDED.is_archived, importance_score=EXCLUDED.importance_score
`, n.ID, n.Subject, n.Sender, n.Summary, string(n.Category), n.ReceivedAt, n.IsArchived, n.ImportanceScore)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "newsletters_send_batch", "newsletters", start, nil)
	defer br.Close()
	for range newsletters {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "newsletters_batch_exec", "newsletters", start, err)
		if err != nil {
			return fmt.Errorf("сохранение рассылок: %w", err)
		}
	}
	return nil
}

// ListNewsletters возвращает все сохранённые рассылки, свежие первыми.
func (p *Postgres) ListNewsletters(ctx context.Context) ([]domain.StoredNewsletter, error) {
	return p.queryNewsletters(ctx, "newsletters_list", `
SELECT id, subject, sender, summary, category, received_at, is_archived, importance_score
FROM newsletters
ORDER BY received_at DESC
`)
}

// SearchNewsletters ищет по теме, аннотации и отправителю.
func (p *Postgres) SearchNewsletters(ctx context.Context, query string) ([]domain.StoredNewsletter, error) {
	pattern := "%" + query + "%"
	return p.queryNewsletters(ctx, "newsletters_search", `
SELECT id, subject, sender, summary, category, received_at, is_archived, importance_score
FROM newsletters
WHERE subject ILIKE $1 OR summary ILIKE $1 OR sender ILIKE $1
ORDER BY received_at DESC
`, pattern)
}

func (p *Postgres) queryNewsletters(ctx context.Context, op, sql string, args ...any) ([]domain.StoredNewsletter, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	metrics.ObserveNetworkRequest("postgres", op, "newsletters", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StoredNewsletter
	for rows.Next() {
		var (
			n        domain.StoredNewsletter
			category string
		)
		if err := rows.Scan(&n.ID, &n.Subject, &n.Sender, &n.Summary, &category, &n.ReceivedAt, &n.IsArchived, &n.ImportanceScore); err != nil {
			return nil, err
		}
		n.Category = domain.Category(category)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkArchived помечает рассылки как убранные из входящих.
func (p *Postgres) MarkArchived(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE newsletters SET is_archived=true WHERE id = ANY($1)`, ids)
	metrics.ObserveNetworkRequest("postgres", "newsletters_mark_archived", "newsletters", start, err)
	return err
}
