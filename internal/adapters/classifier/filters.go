// Package classifier содержит фильтры и классификаторы писем:
// защитный фильтр чувствительных писем, маркетинговый фильтр,
// эвристический скоринг и пакетный AI-классификатор.
package classifier

import "strings"

// sensitiveKeywords — транзакционные и чувствительные формулировки.
// Фильтр намеренно грубый: лучше исключить лишнее, чем пропустить
// банковское или сервисное письмо в дайджест.
var sensitiveKeywords = []string{
	"password reset",
	"reset your password",
	"verification code",
	"verify your",
	"confirm your",
	"security alert",
	"one-time password",
	"otp",
	"2fa",
	"two-factor",
	"account statement",
	"statement of account",
	"bank statement",
	"payment received",
	"payment due",
	"invoice",
	"receipt",
	"order confirmation",
	"your order",
	"shipping confirmation",
	"has shipped",
	"credit card",
	"debit card",
	"wire transfer",
	"tax document",
}

// sensitiveSenderDomains — известные финансовые и идентификационные сервисы.
var sensitiveSenderDomains = []string{
	"paypal",
	"stripe",
	"chase",
	"wellsfargo",
	"bankofamerica",
	"citibank",
	"hsbc",
	"revolut",
	"wise.com",
	"coinbase",
	"binance",
	"irs.gov",
	"accounts.google",
	"appleid",
	"login.microsoft",
}

// marketingKeywords — промо-формулировки одиночных рекламных писем.
var marketingKeywords = []string{
	"sale", "% off", "discount", "shop now", "limited time", "best deal",
	"free shipping", "get it now", "last chance", "price drop", "clearance",
	"exclusive access", "new arrival", "final hours", "save big",
	"buy one", "promo code", "coupon", "flash sale", "act now",
	"order now", "lowest price", "special offer", "deal of the day",
	"hurry", "expires soon", "while supplies last", "add to cart",
}

// newsletterExemptKeywords — признаки регулярной рассылки. Кураторские
// подборки скидок используют промо-лексику, поэтому признак рассылки
// отменяет маркетинговую классификацию.
var newsletterExemptKeywords = []string{
	"newsletter", "digest", "weekly", "edition", "issue", "roundup",
	"briefing", "substack", "daily", "monthly",
}

// IsSensitive сообщает, выглядит ли письмо транзакционным или чувствительным.
// bodyPrefix — не более ~500 первых символов декодированного тела.
func IsSensitive(subject, sender, bodyPrefix string) bool {
	text := strings.ToLower(subject + " " + sender + " " + bodyPrefix)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	lowerSender := strings.ToLower(sender)
	for _, domain := range sensitiveSenderDomains {
		if strings.Contains(lowerSender, domain) {
			return true
		}
	}
	return false
}

// IsMarketing сообщает, является ли письмо одиночной промо-рассылкой.
// Признак регулярной рассылки имеет приоритет над промо-лексикой.
func IsMarketing(subject, sender, bodyPrefix string) bool {
	text := strings.ToLower(subject + " " + sender + " " + bodyPrefix)
	for _, keyword := range newsletterExemptKeywords {
		if strings.Contains(text, keyword) {
			return false
		}
	}
	for _, keyword := range marketingKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
