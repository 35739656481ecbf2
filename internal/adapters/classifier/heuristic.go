package classifier

import (
	"strings"

	"newsletter-digest-bot/internal/domain"
)

const longContentThreshold = 2000

// triageMarketingKeywords, triageNewsletterKeywords и triageSpamKeywords —
// словари трёхпозиционной классификации для сканера предложений. Они
// пересекаются со словарями скорингового пути, но ведутся отдельно:
// у двух путей разный баланс точности и полноты, и объединять их нельзя
// без продуктового решения.
var triageMarketingKeywords = []string{
	"sale", "% off", "discount", "shop now", "limited time", "best deal",
	"free shipping", "get it now", "last chance", "price drop", "clearance",
	"exclusive access", "new arrival", "final hours", "save big",
	"buy one", "promo code", "coupon", "flash sale", "act now",
	"order now", "lowest price", "special offer", "deal of the day",
	"hurry", "expires soon", "while supplies last", "add to cart",
}

var triageNewsletterKeywords = []string{
	"newsletter", "digest", "weekly", "edition", "issue #",
	"roundup", "briefing", "substack", "daily brief", "monthly",
	"top stories", "this week in", "what we read", "curator",
	"curated", "the latest", "in this issue", "read time",
}

var triageSpamKeywords = []string{
	"click here", "act fast", "limited spots", "exclusive invite",
	"you won", "congratulations", "claim your", "guaranteed",
	"risk free", "no obligation", "double your", "earn money",
	"work from home", "be your own boss", "crypto opportunity",
	"investment opportunity",
}

// TriageResult — независимые признаки письма для сканера предложений.
// Все три могут оказаться ложными одновременно.
type TriageResult struct {
	IsNewsletter bool
	IsMarketing  bool
	IsSpam       bool
}

// Triage классифицирует одно письмо как рассылку, маркетинг или спам
// по ключевым словам темы, отправителя и начала тела.
func Triage(subject, sender, body string) TriageResult {
	prefix := body
	if len(prefix) > 1000 {
		prefix = prefix[:1000]
	}
	text := strings.ToLower(subject + " " + sender + " " + prefix)

	hasMarketingSignals := containsAny(text, triageMarketingKeywords)
	hasNewsletterSignals := containsAny(text, triageNewsletterKeywords)
	hasSpamSignals := containsAny(text, triageSpamKeywords)
	hasLongContent := len(body) > longContentThreshold
	hasUnsubscribeLink := strings.Contains(strings.ToLower(prefix), "unsubscribe")

	// Приоритет разрешения: маркетинг без признака рассылки; рассылка без
	// спама и маркетинга; спам — по словарю либо короткое письмо с
	// unsubscribe без других сигналов.
	isMarketing := hasMarketingSignals && !hasNewsletterSignals
	isNewsletter := hasNewsletterSignals && !hasSpamSignals && !isMarketing
	isSpam := hasSpamSignals || (hasUnsubscribeLink && !hasNewsletterSignals && !hasMarketingSignals && !hasLongContent)

	return TriageResult{IsNewsletter: isNewsletter, IsMarketing: isMarketing, IsSpam: isSpam}
}

// notificationSenderFragments — сервисы, чьи уведомления маскируются под
// рассылки (социальные сети, стриминги).
var notificationSenderFragments = []string{"discord", "netflix", "prime video"}

// notificationSubjectFragments — темы одиночных уведомлений и
// транзакционных писем.
var notificationSubjectFragments = []string{
	"mentioned you", "tagged you", "upgrade your plan",
	"statement of account", "credit card update",
	"new season alert", "now streaming",
}

var newsletterSubjectFragments = []string{
	"newsletter", "digest", "weekly", "edition", "issue", "wrap", "roundup",
}

var scoreBoostSubjectFragments = []string{"weekly", "digest", "edition"}

// ScoreCandidate — детерминированный скоринговый путь, запасной вариант
// при недоступном AI. Возвращает false, если письмо не похоже на рассылку.
// Белый список отменяет исключение уведомлений и даёт прибавку к оценке.
func ScoreCandidate(candidate domain.CandidateEmail, whitelisted bool) (domain.ClassificationResult, bool) {
	lowerSubject := strings.ToLower(candidate.Subject)
	lowerSender := strings.ToLower(candidate.Sender)

	if !whitelisted && isNotification(lowerSubject, lowerSender) {
		return domain.ClassificationResult{}, false
	}

	looksLikeNewsletter := whitelisted ||
		containsAny(lowerSubject, newsletterSubjectFragments) ||
		len(candidate.Body) > longContentThreshold
	if !looksLikeNewsletter {
		return domain.ClassificationResult{}, false
	}

	score := 5
	if len(candidate.Body) > longContentThreshold {
		score += 2
	}
	if containsAny(lowerSubject, scoreBoostSubjectFragments) {
		score += 2
	}
	if whitelisted {
		score += 3
	}
	if score > 10 {
		score = 10
	}

	return domain.ClassificationResult{
		ID:              candidate.ID,
		IsNewsletter:    true,
		Summary:         candidate.Subject,
		Category:        FallbackCategory(candidate.Subject, candidate.Body),
		ImportanceScore: score,
	}, true
}

func isNotification(lowerSubject, lowerSender string) bool {
	if containsAny(lowerSender, notificationSenderFragments) {
		return true
	}
	if containsAny(lowerSubject, notificationSubjectFragments) {
		return true
	}
	if strings.Contains(lowerSender, "amazon") && strings.Contains(lowerSubject, "season") {
		return true
	}
	if strings.Contains(lowerSender, "bank") && !strings.Contains(lowerSubject, "newsletter") {
		return true
	}
	return false
}

// FallbackCategory подбирает рубрику по ключевым словам. Порядок проверки
// фиксированный, побеждает первое совпадение.
func FallbackCategory(subject, body string) domain.Category {
	text := strings.ToLower(subject + " " + body)
	switch {
	case containsAny(text, []string{"% off", "discount code", "sale"}):
		return domain.CategoryOffers
	case containsAny(text, []string{"tech", "code", "developer"}):
		return domain.CategoryTech
	case containsAny(text, []string{"finance", "stock", "invest"}):
		return domain.CategoryFinance
	case containsAny(text, []string{"news", "briefing"}):
		return domain.CategoryNews
	case containsAny(text, []string{"movie", "game", "streaming"}):
		return domain.CategoryEntertainment
	default:
		return domain.CategoryMisc
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
