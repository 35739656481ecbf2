package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/adapters/classifier"
	"newsletter-digest-bot/internal/domain"
)

const (
	inboxLinkPrefix = "https://mail.google.com/mail/u/0/#inbox/"
	sensitivePrefix = 500
	whitelistBoost  = 3
	maxImportance   = 10
)

// Service реализует ранжирование писем в топ рассылок.
type Service struct {
	settings     domain.SettingsRepo
	batch        domain.BatchClassifier
	log          zerolog.Logger
	maxItems     int
	candidateCap int
	minBodyChars int
}

var _ domain.Ranker = (*Service)(nil)

// NewService создаёт сервис ранжирования.
func NewService(settings domain.SettingsRepo, batch domain.BatchClassifier, logger zerolog.Logger, maxItems, candidateCap, minBodyChars int) *Service {
	return &Service{
		settings:     settings,
		batch:        batch,
		log:          logger,
		maxItems:     maxItems,
		candidateCap: candidateCap,
		minBodyChars: minBodyChars,
	}
}

// ScoreNewsletters строит оценённый топ рассылок из сырых писем.
// Порядок конвейера: чёрный список, чувствительные, маркетинг, короткие
// тела, срез кандидатов, AI-пакет с эвристическим запасным путём,
// прибавка белого списка, устойчивая сортировка и срез топа.
func (s *Service) ScoreNewsletters(ctx context.Context, messages []domain.RawMessage) ([]domain.ScoredNewsletter, error) {
	if len(messages) == 0 {
		return []domain.ScoredNewsletter{}, nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("загрузка настроек: %w", err)
	}
	rules := settings.Rules

	candidates := make([]domain.CandidateEmail, 0, len(messages))
	for _, msg := range messages {
		candidate := domain.NewCandidate(msg)
		if domain.MatchesSenderList(candidate.Sender, rules.BlacklistedSenders) {
			continue
		}
		if classifier.IsSensitive(candidate.Subject, candidate.Sender, prefix(candidate.Body, sensitivePrefix)) {
			continue
		}
		if classifier.IsMarketing(candidate.Subject, candidate.Sender, prefix(candidate.Body, sensitivePrefix)) {
			continue
		}
		if len(candidate.Body) < s.minBodyChars {
			continue
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		return []domain.ScoredNewsletter{}, nil
	}
	if s.candidateCap > 0 && len(candidates) > s.candidateCap {
		candidates = candidates[:s.candidateCap]
	}

	byID := make(map[string]domain.CandidateEmail, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate
	}

	var scored []domain.ScoredNewsletter
	if settings.OpenAIKey != "" || settings.GeminiKey != "" {
		results := s.batch.AnalyzeBatch(ctx, candidates, settings.OpenAIKey, settings.GeminiKey)
		for _, result := range results {
			if !result.IsNewsletter {
				continue
			}
			candidate, ok := byID[result.ID]
			if !ok {
				s.log.Warn().Str("id", result.ID).Msg("модель вернула неизвестный id, пропускаем")
				continue
			}
			scored = append(scored, s.build(candidate, result, rules, true))
		}
	}

	// Эвристика включается только при полном отсутствии AI-результатов:
	// два пути никогда не смешиваются в одном прогоне.
	if len(scored) == 0 {
		s.log.Info().Int("candidates", len(candidates)).Msg("AI-результатов нет, используем эвристический скоринг")
		for _, candidate := range candidates {
			whitelisted := domain.MatchesSenderList(candidate.Sender, rules.WhitelistedSenders)
			result, ok := classifier.ScoreCandidate(candidate, whitelisted)
			if !ok {
				continue
			}
			scored = append(scored, s.build(candidate, result, rules, false))
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if s.maxItems > 0 && len(scored) > s.maxItems {
		scored = scored[:s.maxItems]
	}
	return scored, nil
}

func (s *Service) build(candidate domain.CandidateEmail, result domain.ClassificationResult, rules domain.RuleSet, aiGenerated bool) domain.ScoredNewsletter {
	score := result.ImportanceScore
	// Эвристический путь уже учёл белый список внутри оценки.
	if aiGenerated && domain.MatchesSenderList(candidate.Sender, rules.WhitelistedSenders) {
		score += whitelistBoost
	}
	if score > maxImportance {
		score = maxImportance
	}
	return domain.ScoredNewsletter{
		Message:       candidate.Message,
		Score:         score,
		Summary:       result.Summary,
		Sender:        candidate.Sender,
		Subject:       candidate.Subject,
		Link:          inboxLinkPrefix + candidate.ID,
		Category:      result.Category,
		IsAIGenerated: aiGenerated,
	}
}

func prefix(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
