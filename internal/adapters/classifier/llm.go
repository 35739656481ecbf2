package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/domain"
)

const bodySnippetLimit = 500

// LLMBatch — пакетный классификатор на внешних языковых моделях.
// Сначала пробует основного провайдера, затем запасного; любая ошибка
// вызова или разбора деградирует до пустого результата, который
// конвейер трактует как команду перейти на эвристический путь.
type LLMBatch struct {
	primary   domain.CompletionProvider
	secondary domain.CompletionProvider
	log       zerolog.Logger
}

var _ domain.BatchClassifier = (*LLMBatch)(nil)

// NewLLMBatch создаёт классификатор. Любой из провайдеров может быть nil.
func NewLLMBatch(primary, secondary domain.CompletionProvider, logger zerolog.Logger) *LLMBatch {
	return &LLMBatch{primary: primary, secondary: secondary, log: logger}
}

// AnalyzeBatch классифицирует пачку кандидатов одним запросом к модели.
// Пустой срез на выходе — не ошибка, а сигнал использовать эвристику.
func (a *LLMBatch) AnalyzeBatch(ctx context.Context, emails []domain.CandidateEmail, primaryKey, secondaryKey string) []domain.ClassificationResult {
	if len(emails) == 0 {
		return nil
	}

	prompt := buildBatchPrompt(emails)

	if a.primary != nil && primaryKey != "" {
		if results, err := a.complete(ctx, a.primary, primaryKey, prompt); err == nil {
			return results
		} else {
			a.log.Warn().Err(err).Str("provider", a.primary.Name()).Msg("классификация не удалась, пробуем запасного провайдера")
		}
	}

	if a.secondary != nil && secondaryKey != "" {
		if results, err := a.complete(ctx, a.secondary, secondaryKey, prompt); err == nil {
			return results
		} else {
			a.log.Warn().Err(err).Str("provider", a.secondary.Name()).Msg("классификация не удалась, переходим на эвристику")
		}
	}

	return nil
}

func (a *LLMBatch) complete(ctx context.Context, provider domain.CompletionProvider, apiKey, prompt string) ([]domain.ClassificationResult, error) {
	content, err := provider.Complete(ctx, apiKey, prompt)
	if err != nil {
		return nil, fmt.Errorf("вызов модели: %w", err)
	}
	results, err := ParseBatchResponse(content)
	if err != nil {
		return nil, fmt.Errorf("разбор ответа модели: %w", err)
	}
	return results, nil
}

func buildBatchPrompt(emails []domain.CandidateEmail) string {
	var list strings.Builder
	for idx, email := range emails {
		if idx > 0 {
			list.WriteString("\n-----------------------------------\n")
		}
		fmt.Fprintf(&list, `
EMAIL #%d (ID: %s):
Sender: %s
Subject: %s
Body Snippet: %s...
`, idx+1, email.ID, email.Sender, email.Subject, truncate(email.Body, bodySnippetLimit))
	}

	return fmt.Sprintf(`You are an expert newsletter curator. I have a list of %d emails.
Your task is to analyze each one and return a JSON array of objects.

CRITICAL: Only mark as newsletter if it's actual NEWSLETTER CONTENT. Exclude:
- One-time notifications (e.g., "You were tagged in X", "New season available", "Someone mentioned you")
- Transactional emails (bank statements, order confirmations, account reports, credit card updates)
- Social media alerts (Discord mentions, LinkedIn notifications, Twitter/X alerts)
- Single promotional emails (unless they're clearly part of a regular newsletter series)

A TRUE NEWSLETTER is:
- Regularly published content (weekly/daily digest, edition, issue, newsletter series)
- Curated articles, insights, or industry roundups
- Educational or informational content series with multiple topics

For each email, provide:
1. "id": The exact ID provided in the input.
2. "isNewsletter": true ONLY if it's a real newsletter, false for notifications/transactional emails.
3. "summary": A concise 1-sentence summary (only if isNewsletter is true, otherwise empty string).
4. "category": Choose exactly one: 'Tech', 'Offers', 'News', 'Finance', 'Entertainment', 'Misc'.
   - 'Tech': Software, AI, coding, startups, engineering newsletters.
   - 'Offers': Deal roundups, curated discount newsletters (NOT single promotions).
   - 'Finance': Investment newsletters, market analysis, crypto newsletters.
   - 'Entertainment': Movie/TV/game reviews, streaming recommendations newsletters.
   - 'News': General world news, daily briefings.
5. "importanceScore": A number from 1-10 (only for newsletters, 0 for non-newsletters).

Input Emails:
%s

Output strictly a valid JSON Array. Do not include markdown formatting. Just the raw JSON array.
Example:
[
    { "id": "123", "isNewsletter": true, "summary": "Weekly AI developments roundup", "category": "Tech", "importanceScore": 9 },
    { "id": "456", "isNewsletter": false, "summary": "", "category": "Misc", "importanceScore": 0 }
]`, len(emails), list.String())
}

// batchResponseItem допускает типовой дрейф в ответе модели: поля с
// неожиданным типом приводятся к безопасным значениям, а не ломают разбор.
type batchResponseItem struct {
	ID              string `json:"id"`
	IsNewsletter    any    `json:"isNewsletter"`
	Summary         string `json:"summary"`
	Category        string `json:"category"`
	ImportanceScore any    `json:"importanceScore"`
}

// ParseBatchResponse разбирает ответ модели: срезает обёртку из
// code-fence и валидирует каждый элемент. Нечитаемый целиком ответ —
// ошибка, которую вызывающий превращает в пустой результат.
func ParseBatchResponse(content string) ([]domain.ClassificationResult, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var items []batchResponseItem
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, err
	}

	results := make([]domain.ClassificationResult, 0, len(items))
	for _, item := range items {
		results = append(results, sanitizeItem(item))
	}
	return results, nil
}

// sanitizeItem приводит элемент к доменной форме. Дефолты открыты в
// сторону включения: нераспознанный isNewsletter считается true.
func sanitizeItem(item batchResponseItem) domain.ClassificationResult {
	result := domain.ClassificationResult{
		ID:              item.ID,
		IsNewsletter:    true,
		Summary:         item.Summary,
		Category:        domain.CategoryMisc,
		ImportanceScore: 5,
	}
	if v, ok := item.IsNewsletter.(bool); ok {
		result.IsNewsletter = v
	}
	if category := domain.Category(item.Category); domain.ValidCategory(category) {
		result.Category = category
	}
	if v, ok := item.ImportanceScore.(float64); ok {
		result.ImportanceScore = int(v)
	}
	return result
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
