package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/domain"
)

// slotLockTTL перекрывает окно, в котором тики планировщика могут
// повторно увидеть тот же слот.
const slotLockTTL = 25 * time.Hour

// Service ставит еженедельные задачи на построение дайджеста.
type Service struct {
	queue     domain.DigestQueue
	cache     domain.Cache
	log       zerolog.Logger
	dayOfWeek int
	hour      int
}

// NewService создаёт планировщик. dayOfWeek — день недели слота,
// 0 — воскресенье; hour — час в UTC.
func NewService(queue domain.DigestQueue, cache domain.Cache, logger zerolog.Logger, dayOfWeek, hour int) *Service {
	return &Service{queue: queue, cache: cache, log: logger, dayOfWeek: dayOfWeek, hour: hour}
}

// NextRun возвращает момент следующего еженедельного слота после now.
// Если слот сегодняшнего дня ещё не наступил, возвращается он.
func NextRun(now time.Time, dayOfWeek, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	daysUntil := (dayOfWeek - int(now.Weekday()) + 7) % 7
	if daysUntil == 0 && !now.Before(next) {
		daysUntil = 7
	}
	return next.AddDate(0, 0, daysUntil)
}

// Tick проверяет, наступил ли слот, и ставит задачу ровно один раз на
// слот. Возвращает true, если задача была поставлена этим вызовом.
func (s *Service) Tick(ctx context.Context, now time.Time) (bool, error) {
	slot := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if int(now.Weekday()) != s.dayOfWeek || now.Before(slot) {
		return false, nil
	}

	enqueued := false
	key := fmt.Sprintf("digest_slot:%s", slot.UTC().Format("2006-01-02T15"))
	err := s.cache.Once(key, slotLockTTL, func() error {
		job := domain.DigestJob{
			ID:          uuid.NewString(),
			Date:        slot.UTC(),
			RequestedAt: now.UTC(),
			Cause:       domain.DigestCauseScheduled,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("постановка задачи: %w", err)
		}
		enqueued = true
		s.log.Info().Str("job_id", job.ID).Time("slot", slot).Msg("еженедельная задача поставлена")
		return nil
	})
	if err != nil {
		return false, err
	}
	return enqueued, nil
}

// EnqueueManual ставит ручную задачу на построение дайджеста.
func (s *Service) EnqueueManual(ctx context.Context) (domain.DigestJob, error) {
	job := domain.DigestJob{
		ID:          uuid.NewString(),
		Date:        time.Now().UTC(),
		RequestedAt: time.Now().UTC(),
		Cause:       domain.DigestCauseManual,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return domain.DigestJob{}, fmt.Errorf("постановка задачи: %w", err)
	}
	return job, nil
}
