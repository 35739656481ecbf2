package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/adapters/gmail"
	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/metrics"
)

// ErrNoUnsubscribeHeader возвращается, если у письма нет заголовка
// List-Unsubscribe.
var ErrNoUnsubscribeHeader = errors.New("у письма нет заголовка list-unsubscribe")

const inboxLabel = "INBOX"

// Service управляет автоархивацией сохранённых рассылок и отпиской.
type Service struct {
	transport   domain.MailTransport
	settings    domain.SettingsRepo
	newsletters domain.NewsletterRepo
	log         zerolog.Logger
	now         func() time.Time
}

// NewService создаёт сервис архивации.
func NewService(transport domain.MailTransport, settings domain.SettingsRepo, newsletters domain.NewsletterRepo, logger zerolog.Logger) *Service {
	return &Service{
		transport:   transport,
		settings:    settings,
		newsletters: newsletters,
		log:         logger,
		now:         time.Now,
	}
}

// CheckAndArchive убирает из входящих сохранённые рассылки старше порога.
// Ошибка по отдельному письму не прерывает проход; помечаются только
// успешно обработанные.
func (s *Service) CheckAndArchive(ctx context.Context) (int, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("загрузка настроек: %w", err)
	}
	if !settings.Archive.EnableArchiving {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -settings.Archive.ArchiveAfterDays)
	newsletters, err := s.newsletters.ListNewsletters(ctx)
	if err != nil {
		return 0, fmt.Errorf("чтение рассылок: %w", err)
	}

	var archivedIDs []string
	for _, n := range newsletters {
		if n.IsArchived || !n.ReceivedAt.Before(cutoff) {
			continue
		}
		if err := s.transport.ModifyLabels(ctx, n.ID, domain.LabelChange{Remove: []string{inboxLabel}}); err != nil {
			s.log.Warn().Err(err).Str("id", n.ID).Msg("не удалось архивировать письмо")
			continue
		}
		archivedIDs = append(archivedIDs, n.ID)
		metrics.NewslettersArchivedTotal.Inc()
	}
	if len(archivedIDs) == 0 {
		return 0, nil
	}

	if err := s.newsletters.MarkArchived(ctx, archivedIDs); err != nil {
		return len(archivedIDs), fmt.Errorf("пометка архивированных: %w", err)
	}
	s.log.Info().Int("archived", len(archivedIDs)).Msg("автоархивация завершена")
	return len(archivedIDs), nil
}

// ArchiveNow немедленно убирает одно письмо из входящих.
func (s *Service) ArchiveNow(ctx context.Context, id string) error {
	if err := s.transport.ModifyLabels(ctx, id, domain.LabelChange{Remove: []string{inboxLabel}}); err != nil {
		return fmt.Errorf("архивация письма %s: %w", id, err)
	}
	metrics.NewslettersArchivedTotal.Inc()
	return s.newsletters.MarkArchived(ctx, []string{id})
}

// UnsubscribeResult — итог попытки отписки. Если автоматическая отписка
// невозможна, ManualURL содержит ссылку для ручного перехода.
type UnsubscribeResult struct {
	Done      bool   `json:"done"`
	ManualURL string `json:"manual_url,omitempty"`
}

// Unsubscribe отписывается от рассылки по заголовку List-Unsubscribe.
// mailto-адрес предпочтительнее: на него отправляется письмо; для
// HTTP-ссылки возвращается адрес для ручного перехода.
func (s *Service) Unsubscribe(ctx context.Context, messageID string) (UnsubscribeResult, error) {
	msg, err := s.transport.GetMessage(ctx, messageID)
	if err != nil {
		return UnsubscribeResult{}, fmt.Errorf("получение письма: %w", err)
	}

	header := msg.Payload.Headers.Get("List-Unsubscribe")
	if header == "" {
		return UnsubscribeResult{}, ErrNoUnsubscribeHeader
	}

	// Формат заголовка: <mailto:unsub@example.com>, <https://example.com/u>
	var mailtoLink, httpLink string
	for _, part := range strings.Split(header, ",") {
		link := strings.Trim(strings.TrimSpace(part), "<>")
		switch {
		case strings.HasPrefix(link, "mailto:") && mailtoLink == "":
			mailtoLink = link
		case strings.HasPrefix(link, "http") && httpLink == "":
			httpLink = link
		}
	}

	if mailtoLink != "" {
		if err := s.sendMailtoUnsubscribe(ctx, mailtoLink); err != nil {
			return UnsubscribeResult{}, err
		}
		s.log.Info().Str("id", messageID).Msg("запрос на отписку отправлен")
		return UnsubscribeResult{Done: true}, nil
	}
	if httpLink != "" {
		return UnsubscribeResult{ManualURL: httpLink}, nil
	}
	return UnsubscribeResult{}, ErrNoUnsubscribeHeader
}

func (s *Service) sendMailtoUnsubscribe(ctx context.Context, mailto string) error {
	parsed, err := url.Parse(mailto)
	if err != nil {
		return fmt.Errorf("разбор mailto-ссылки: %w", err)
	}
	to := parsed.Opaque
	if to == "" {
		to = parsed.Path
	}
	subject := parsed.Query().Get("subject")
	if subject == "" {
		subject = "Unsubscribe"
	}
	body := parsed.Query().Get("body")
	if body == "" {
		body = "Please unsubscribe me from this list."
	}

	raw := gmail.BuildPlainRaw(to, subject, body)
	if err := s.transport.SendRaw(ctx, raw); err != nil {
		return fmt.Errorf("отправка запроса отписки: %w", err)
	}
	return nil
}
