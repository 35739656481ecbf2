package domain

import "time"

// Category задаёт тематическую рубрику рассылки.
type Category string

const (
	CategoryTech          Category = "Tech"
	CategoryOffers        Category = "Offers"
	CategoryNews          Category = "News"
	CategoryFinance       Category = "Finance"
	CategoryEntertainment Category = "Entertainment"
	CategoryMisc          Category = "Misc"
)

// Categories перечисляет рубрики в порядке вывода в дайджесте.
var Categories = []Category{CategoryTech, CategoryFinance, CategoryEntertainment, CategoryOffers, CategoryNews, CategoryMisc}

// ValidCategory сообщает, входит ли значение в фиксированный набор рубрик.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Header представляет один заголовок письма.
type Header struct {
	Name  string
	Value string
}

// HeaderList хранит заголовки письма в исходном порядке.
type HeaderList []Header

// MessagePart описывает узел MIME-дерева письма.
type MessagePart struct {
	MIMEType string
	Headers  HeaderList
	// Data содержит base64url-кодированное содержимое листового узла.
	Data  string
	Parts []MessagePart
}

// RawMessage представляет письмо в том виде, в котором его вернул транспорт.
// После получения не изменяется.
type RawMessage struct {
	ID           string
	ThreadID     string
	Payload      MessagePart
	InternalDate time.Time
}

// CandidateEmail — производное представление письма для классификации.
// Строится на каждый прогон конвейера и не сохраняется.
type CandidateEmail struct {
	ID         string
	Subject    string
	Sender     string
	Body       string
	ReceivedAt time.Time
	Message    RawMessage
}

// ClassificationResult содержит вердикт классификатора по одному письму.
// Форма одинакова для AI- и эвристического пути.
type ClassificationResult struct {
	ID              string
	IsNewsletter    bool
	Summary         string
	Category        Category
	ImportanceScore int
}

// ScoredNewsletter — оценённая рассылка после ранжирования.
// Создаётся заново на каждый прогон и после среза топ-N не изменяется.
type ScoredNewsletter struct {
	Message       RawMessage
	Score         int
	Summary       string
	Sender        string
	Subject       string
	Link          string
	Category      Category
	IsAIGenerated bool
}

// StoredNewsletter — сохранённая проекция рассылки, ключ — id письма.
type StoredNewsletter struct {
	ID              string
	Subject         string
	Sender          string
	Summary         string
	Category        Category
	ReceivedAt      time.Time
	IsArchived      bool
	ImportanceScore int
}

// RuleSet хранит пользовательские списки отправителей и настройки сканирования.
// Совпадение — регистронезависимое вхождение фрагмента в заголовок From,
// не точное равенство адресов. Чёрный список проверяется первым и побеждает.
type RuleSet struct {
	WhitelistedSenders []string `json:"whitelisted_senders"`
	BlacklistedSenders []string `json:"blacklisted_senders"`
	MaxEmailsToScan    int      `json:"max_emails_to_scan"`
	ScanTimeRangeDays  int      `json:"scan_time_range_days"`
}

// ArchiveSettings управляет автоархивацией сохранённых рассылок.
type ArchiveSettings struct {
	EnableArchiving  bool `json:"enable_archiving"`
	ArchiveAfterDays int  `json:"archive_after_days"`
}

// Settings объединяет правила, настройки архива и ключи AI-провайдеров.
type Settings struct {
	Rules     RuleSet         `json:"rules"`
	Archive   ArchiveSettings `json:"archive"`
	OpenAIKey string          `json:"openai_key,omitempty"`
	GeminiKey string          `json:"gemini_key,omitempty"`
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		Rules: RuleSet{
			MaxEmailsToScan:   50,
			ScanTimeRangeDays: 7,
		},
		Archive: ArchiveSettings{
			EnableArchiving:  false,
			ArchiveAfterDays: 30,
		},
	}
}

// ScanResult содержит два непересекающихся списка отправителей после
// сканирования предложений.
type ScanResult struct {
	Suggestions     []string `json:"suggestions"`
	SpamSuggestions []string `json:"spam_suggestions"`
}
