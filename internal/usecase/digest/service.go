package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/adapters/gmail"
	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/metrics"
)

// Service строит и отправляет еженедельный дайджест рассылок.
type Service struct {
	fetcher     domain.MessageFetcher
	ranker      domain.Ranker
	transport   domain.MailTransport
	settings    domain.SettingsRepo
	newsletters domain.NewsletterRepo
	cleanup     domain.CleanupStore
	log         zerolog.Logger
	subject     string
}

// NewService создаёт сервис дайджестов.
func NewService(fetcher domain.MessageFetcher, ranker domain.Ranker, transport domain.MailTransport, settings domain.SettingsRepo, newsletters domain.NewsletterRepo, cleanup domain.CleanupStore, logger zerolog.Logger, subject string) *Service {
	return &Service{
		fetcher:     fetcher,
		ranker:      ranker,
		transport:   transport,
		settings:    settings,
		newsletters: newsletters,
		cleanup:     cleanup,
		log:         logger,
		subject:     subject,
	}
}

// RunDigestJob выполняет задачу построения дайджеста: выгрузка,
// ранжирование, отправка письма себе, сохранение топа и регистрация
// просмотренных писем для последующей очистки. Ошибка ранжирования
// проваливает задачу целиком, частичный дайджест не отправляется.
func (s *Service) RunDigestJob(ctx context.Context, job domain.DigestJob) error {
	start := time.Now()
	metrics.DigestRequestsTotal.Inc()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("загрузка настроек: %w", err)
	}
	rules := settings.Rules

	messages, err := s.fetcher.FetchCandidates(ctx, rules.ScanTimeRangeDays, rules.MaxEmailsToScan)
	if err != nil {
		metrics.FetchErrors.Inc()
		return fmt.Errorf("выгрузка писем: %w", err)
	}
	if len(messages) == 0 {
		s.log.Info().Str("job_id", job.ID).Msg("писем за период нет, дайджест не отправляется")
		return nil
	}

	scored, err := s.ranker.ScoreNewsletters(ctx, messages)
	if err != nil {
		return fmt.Errorf("ранжирование: %w", err)
	}
	if len(scored) == 0 {
		s.log.Info().Str("job_id", job.ID).Int("messages", len(messages)).Msg("рассылок среди кандидатов нет, дайджест не отправляется")
		return nil
	}

	address, err := s.transport.Profile(ctx)
	if err != nil {
		return fmt.Errorf("получение профиля: %w", err)
	}

	raw := gmail.BuildDigestRaw(address, s.subject, FormatDigest(scored))
	if err := s.transport.SendRaw(ctx, raw); err != nil {
		metrics.DigestSendErrors.Inc()
		return fmt.Errorf("отправка дайджеста: %w", err)
	}

	stored := make([]domain.StoredNewsletter, 0, len(scored))
	for _, n := range scored {
		stored = append(stored, domain.StoredNewsletter{
			ID:              n.Message.ID,
			Subject:         n.Subject,
			Sender:          n.Sender,
			Summary:         n.Summary,
			Category:        n.Category,
			ReceivedAt:      n.Message.InternalDate,
			ImportanceScore: n.Score,
		})
	}
	if err := s.newsletters.SaveNewsletters(ctx, stored); err != nil {
		return fmt.Errorf("сохранение рассылок: %w", err)
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}
	if err := s.cleanup.AddPending(ctx, ids); err != nil {
		// Дайджест уже отправлен, поэтому задачу не проваливаем.
		s.log.Warn().Err(err).Msg("не удалось зарегистрировать письма для очистки")
	}

	metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds())
	s.log.Info().
		Str("job_id", job.ID).
		Str("cause", string(job.Cause)).
		Int("top", len(scored)).
		Int("scanned", len(messages)).
		Msg("дайджест отправлен")
	return nil
}

// CleanupEmails отправляет в корзину все письма, накопленные в наборе
// ожидающих очистки. Ошибки отдельных писем пропускаются, набор
// очищается после прохода.
func (s *Service) CleanupEmails(ctx context.Context) (int, error) {
	ids, err := s.cleanup.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("чтение набора очистки: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	trashed := 0
	for _, id := range ids {
		if err := s.transport.TrashMessage(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("не удалось отправить письмо в корзину")
			continue
		}
		trashed++
		metrics.CleanupTrashedTotal.Inc()
	}

	if err := s.cleanup.ClearPending(ctx); err != nil {
		return trashed, fmt.Errorf("очистка набора: %w", err)
	}
	s.log.Info().Int("trashed", trashed).Int("pending", len(ids)).Msg("очистка завершена")
	return trashed, nil
}
