package gmail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/domain"
)

// candidateQuery отбирает промо-письма и письма со ссылкой отписки
// за заданный период.
const candidateQuery = `category:promotions OR "unsubscribe" after:%d`

// Fetcher выгружает письма-кандидаты из ящика пачками.
type Fetcher struct {
	transport domain.MailTransport
	batchSize int
	batchWait time.Duration
	log       zerolog.Logger
}

var _ domain.MessageFetcher = (*Fetcher)(nil)

// NewFetcher создаёт выгрузчик. batchSize — число параллельных запросов
// в одной пачке, batchWait — пауза между пачками.
func NewFetcher(transport domain.MailTransport, batchSize int, batchWait time.Duration, log zerolog.Logger) *Fetcher {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Fetcher{
		transport: transport,
		batchSize: batchSize,
		batchWait: batchWait,
		log:       log,
	}
}

// FetchCandidates возвращает письма за последние daysBack дней, не более
// maxCount штук. Ошибка любого запроса прерывает выгрузку целиком.
func (f *Fetcher) FetchCandidates(ctx context.Context, daysBack, maxCount int) ([]domain.RawMessage, error) {
	after := time.Now().AddDate(0, 0, -daysBack).Unix()
	query := fmt.Sprintf(candidateQuery, after)

	page, err := f.transport.ListMessageIDs(ctx, query, int64(maxCount), "")
	if err != nil {
		return nil, fmt.Errorf("поиск кандидатов: %w", err)
	}
	if len(page.IDs) == 0 {
		f.log.Info().Int("days_back", daysBack).Msg("кандидатов за период не найдено")
		return nil, nil
	}

	messages := make([]domain.RawMessage, len(page.IDs))
	for offset := 0; offset < len(page.IDs); offset += f.batchSize {
		end := offset + f.batchSize
		if end > len(page.IDs) {
			end = len(page.IDs)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			batchErr error
		)
		for i, id := range page.IDs[offset:end] {
			wg.Add(1)
			go func(idx int, msgID string) {
				defer wg.Done()
				msg, err := f.transport.GetMessage(ctx, msgID)
				if err != nil {
					mu.Lock()
					if batchErr == nil {
						batchErr = err
					}
					mu.Unlock()
					return
				}
				messages[offset+idx] = msg
			}(i, id)
		}
		wg.Wait()
		if batchErr != nil {
			return nil, fmt.Errorf("выгрузка пачки писем: %w", batchErr)
		}

		if end < len(page.IDs) && f.batchWait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.batchWait):
			}
		}
	}

	f.log.Info().Int("count", len(messages)).Msg("кандидаты выгружены")
	return messages, nil
}
