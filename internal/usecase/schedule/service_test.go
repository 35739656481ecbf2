package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/domain"
)

type stubQueue struct {
	jobs []domain.DigestJob
}

func (s *stubQueue) Enqueue(ctx context.Context, job domain.DigestJob) error {
	s.jobs = append(s.jobs, job)
	return nil
}
func (s *stubQueue) Pop(ctx context.Context) (domain.DigestJob, error) {
	return domain.DigestJob{}, nil
}

type memCache struct {
	keys map[string]struct{}
}

func (c *memCache) Once(key string, ttl time.Duration, fn func() error) error {
	if c.keys == nil {
		c.keys = make(map[string]struct{})
	}
	if _, ok := c.keys[key]; ok {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	c.keys[key] = struct{}{}
	return nil
}
func (c *memCache) Set(key string, value []byte, ttl time.Duration) error { return nil }
func (c *memCache) Get(key string) ([]byte, error)                        { return nil, nil }

func TestNextRunSameDayBeforeHour(t *testing.T) {
	// Воскресенье 8:00, слот в воскресенье 9:00 — запуск сегодня.
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	next := NextRun(now, 0, 9)
	want := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, next)
	}
}

func TestNextRunSameDayAfterHour(t *testing.T) {
	// Воскресенье 10:00 — слот уже прошёл, следующий через неделю.
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next := NextRun(now, 0, 9)
	want := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, next)
	}
}

func TestNextRunOtherDay(t *testing.T) {
	// Среда, слот в воскресенье.
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	next := NextRun(now, 0, 9)
	want := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, next)
	}
}

func TestTickEnqueuesOncePerSlot(t *testing.T) {
	queue := &stubQueue{}
	service := NewService(queue, &memCache{}, zerolog.Nop(), 0, 9)

	slotTime := time.Date(2026, 3, 1, 9, 0, 30, 0, time.UTC)
	enqueued, err := service.Tick(context.Background(), slotTime)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !enqueued {
		t.Fatalf("первый тик слота должен ставить задачу")
	}

	// Повторные тики того же слота не дублируют задачу.
	enqueued, err = service.Tick(context.Background(), slotTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if enqueued {
		t.Fatalf("повторный тик не должен ставить задачу")
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали одну задачу, получили %d", len(queue.jobs))
	}
	if queue.jobs[0].Cause != domain.DigestCauseScheduled {
		t.Fatalf("задача планировщика должна быть scheduled")
	}
}

func TestTickOutsideSlot(t *testing.T) {
	queue := &stubQueue{}
	service := NewService(queue, &memCache{}, zerolog.Nop(), 0, 9)

	// Понедельник — не день слота.
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	if enqueued, err := service.Tick(context.Background(), monday); err != nil || enqueued {
		t.Fatalf("вне слота задача не ставится: %v/%v", enqueued, err)
	}
	// Воскресенье до часа слота.
	early := time.Date(2026, 3, 1, 8, 59, 0, 0, time.UTC)
	if enqueued, err := service.Tick(context.Background(), early); err != nil || enqueued {
		t.Fatalf("до часа слота задача не ставится: %v/%v", enqueued, err)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("очередь должна быть пустой")
	}
}

func TestEnqueueManual(t *testing.T) {
	queue := &stubQueue{}
	service := NewService(queue, &memCache{}, zerolog.Nop(), 0, 9)

	job, err := service.EnqueueManual(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("задача должна получать идентификатор")
	}
	if len(queue.jobs) != 1 || queue.jobs[0].Cause != domain.DigestCauseManual {
		t.Fatalf("ожидали ручную задачу в очереди")
	}
}
