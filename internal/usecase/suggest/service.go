package suggest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/adapters/classifier"
	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/metrics"
)

const (
	maxSuggestions     = 8
	maxSpamSuggestions = 5
)

// Service сканирует ящик и предлагает отправителей для белого списка
// и кандидатов на отписку.
type Service struct {
	fetcher  domain.MessageFetcher
	settings domain.SettingsRepo
	log      zerolog.Logger
}

// NewService создаёт сканер предложений.
func NewService(fetcher domain.MessageFetcher, settings domain.SettingsRepo, logger zerolog.Logger) *Service {
	return &Service{fetcher: fetcher, settings: settings, log: logger}
}

// ScanSuggestions возвращает два непересекающихся списка отправителей:
// похожих на рассылки и похожих на спам. Уже занесённые в списки и
// чувствительные письма пропускаются, спам заполняется первым.
func (s *Service) ScanSuggestions(ctx context.Context) (domain.ScanResult, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("загрузка настроек: %w", err)
	}
	rules := settings.Rules

	messages, err := s.fetcher.FetchCandidates(ctx, rules.ScanTimeRangeDays, rules.MaxEmailsToScan)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("выгрузка писем: %w", err)
	}
	metrics.SuggestionScansTotal.Inc()

	// Признаки копятся по отправителю через OR в порядке первого появления.
	type senderFlags struct {
		isNewsletter bool
		isSpam       bool
	}
	order := make([]string, 0)
	flags := make(map[string]*senderFlags)

	for _, msg := range messages {
		candidate := domain.NewCandidate(msg)
		if candidate.Sender == "" {
			continue
		}
		if domain.MatchesSenderList(candidate.Sender, rules.WhitelistedSenders) ||
			domain.MatchesSenderList(candidate.Sender, rules.BlacklistedSenders) {
			continue
		}
		if classifier.IsSensitive(candidate.Subject, candidate.Sender, prefix(candidate.Body, 500)) {
			continue
		}
		triage := classifier.Triage(candidate.Subject, candidate.Sender, candidate.Body)
		if triage.IsMarketing {
			continue
		}
		// Отправитель регистрируется первым выжившим письмом, даже если
		// у письма нет ни одного признака: порядок появления решает, кто
		// выживет при усечении.
		f, ok := flags[candidate.Sender]
		if !ok {
			f = &senderFlags{}
			flags[candidate.Sender] = f
			order = append(order, candidate.Sender)
		}
		f.isNewsletter = f.isNewsletter || triage.IsNewsletter
		f.isSpam = f.isSpam || triage.IsSpam
	}

	// Сначала полное разбиение: спам всегда побеждает признак рассылки.
	// Усечение до лимитов идёт отдельным шагом, иначе при заполненном
	// спам-списке смешанный отправитель утёк бы в предложения рассылок.
	newsletters := make([]string, 0)
	spam := make([]string, 0)
	for _, sender := range order {
		f := flags[sender]
		switch {
		case f.isSpam:
			spam = append(spam, sender)
		case f.isNewsletter:
			newsletters = append(newsletters, sender)
		}
	}
	if len(spam) > maxSpamSuggestions {
		spam = spam[:maxSpamSuggestions]
	}
	if len(newsletters) > maxSuggestions {
		newsletters = newsletters[:maxSuggestions]
	}
	result := domain.ScanResult{
		Suggestions:     newsletters,
		SpamSuggestions: spam,
	}

	s.log.Info().
		Int("suggestions", len(result.Suggestions)).
		Int("spam_suggestions", len(result.SpamSuggestions)).
		Msg("сканирование предложений завершено")
	return result, nil
}

func prefix(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
