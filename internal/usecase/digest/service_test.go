package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/domain"
)

type stubFetcher struct {
	messages []domain.RawMessage
	err      error
}

func (s *stubFetcher) FetchCandidates(ctx context.Context, daysBack, maxCount int) ([]domain.RawMessage, error) {
	return s.messages, s.err
}

type stubRanker struct {
	scored []domain.ScoredNewsletter
	err    error
}

func (s *stubRanker) ScoreNewsletters(ctx context.Context, messages []domain.RawMessage) ([]domain.ScoredNewsletter, error) {
	return s.scored, s.err
}

type stubTransport struct {
	sentRaw  []string
	trashed  []string
	trashErr map[string]error
	profile  string
}

func (s *stubTransport) ListMessageIDs(ctx context.Context, query string, maxResults int64, pageToken string) (domain.MessageIDPage, error) {
	return domain.MessageIDPage{}, nil
}
func (s *stubTransport) GetMessage(ctx context.Context, id string) (domain.RawMessage, error) {
	return domain.RawMessage{}, nil
}
func (s *stubTransport) SendRaw(ctx context.Context, raw string) error {
	s.sentRaw = append(s.sentRaw, raw)
	return nil
}
func (s *stubTransport) TrashMessage(ctx context.Context, id string) error {
	if err := s.trashErr[id]; err != nil {
		return err
	}
	s.trashed = append(s.trashed, id)
	return nil
}
func (s *stubTransport) ModifyLabels(ctx context.Context, id string, change domain.LabelChange) error {
	return nil
}
func (s *stubTransport) Profile(ctx context.Context) (string, error) {
	return s.profile, nil
}

type stubSettings struct{}

func (s *stubSettings) Get(ctx context.Context) (domain.Settings, error) {
	return domain.DefaultSettings(), nil
}
func (s *stubSettings) Save(ctx context.Context, settings domain.Settings) error { return nil }

// stubNewsletterRepo хранит рассылки в карте по id, имитируя слияние
// с перезаписью.
type stubNewsletterRepo struct {
	stored map[string]domain.StoredNewsletter
}

func (s *stubNewsletterRepo) SaveNewsletters(ctx context.Context, newsletters []domain.StoredNewsletter) error {
	if s.stored == nil {
		s.stored = make(map[string]domain.StoredNewsletter)
	}
	for _, n := range newsletters {
		s.stored[n.ID] = n
	}
	return nil
}
func (s *stubNewsletterRepo) ListNewsletters(ctx context.Context) ([]domain.StoredNewsletter, error) {
	out := make([]domain.StoredNewsletter, 0, len(s.stored))
	for _, n := range s.stored {
		out = append(out, n)
	}
	return out, nil
}
func (s *stubNewsletterRepo) SearchNewsletters(ctx context.Context, query string) ([]domain.StoredNewsletter, error) {
	return nil, nil
}
func (s *stubNewsletterRepo) MarkArchived(ctx context.Context, ids []string) error { return nil }

type stubCleanup struct {
	pending map[string]struct{}
}

func (s *stubCleanup) AddPending(ctx context.Context, ids []string) error {
	if s.pending == nil {
		s.pending = make(map[string]struct{})
	}
	for _, id := range ids {
		s.pending[id] = struct{}{}
	}
	return nil
}
func (s *stubCleanup) ListPending(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.pending))
	for id := range s.pending {
		out = append(out, id)
	}
	return out, nil
}
func (s *stubCleanup) ClearPending(ctx context.Context) error {
	s.pending = nil
	return nil
}

func rawMessage(id string) domain.RawMessage {
	return domain.RawMessage{ID: id, InternalDate: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func scoredFrom(msg domain.RawMessage, score int) domain.ScoredNewsletter {
	return domain.ScoredNewsletter{
		Message:  msg,
		Score:    score,
		Subject:  "Weekly digest",
		Sender:   "news@example.com",
		Summary:  "обзор",
		Category: domain.CategoryTech,
	}
}

func TestRunDigestJob(t *testing.T) {
	messages := []domain.RawMessage{rawMessage("a"), rawMessage("b"), rawMessage("c")}
	transport := &stubTransport{profile: "me@example.com"}
	newsletters := &stubNewsletterRepo{}
	cleanup := &stubCleanup{}
	ranker := &stubRanker{scored: []domain.ScoredNewsletter{scoredFrom(messages[0], 9)}}
	service := NewService(&stubFetcher{messages: messages}, ranker, transport, &stubSettings{}, newsletters, cleanup, zerolog.Nop(), "Your Weekly Best Reads")

	err := service.RunDigestJob(context.Background(), domain.DigestJob{ID: "job1", Cause: domain.DigestCauseManual})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(transport.sentRaw) != 1 {
		t.Fatalf("ожидали одну отправку дайджеста, получили %d", len(transport.sentRaw))
	}
	if _, ok := newsletters.stored["a"]; !ok {
		t.Fatalf("топ должен сохраняться в хранилище")
	}
	// Для очистки регистрируются все просмотренные письма, не только топ.
	if len(cleanup.pending) != 3 {
		t.Fatalf("ожидали 3 письма в наборе очистки, получили %d", len(cleanup.pending))
	}
}

func TestRunDigestJobNoMessages(t *testing.T) {
	transport := &stubTransport{profile: "me@example.com"}
	service := NewService(&stubFetcher{}, &stubRanker{}, transport, &stubSettings{}, &stubNewsletterRepo{}, &stubCleanup{}, zerolog.Nop(), "subject")

	if err := service.RunDigestJob(context.Background(), domain.DigestJob{ID: "job1"}); err != nil {
		t.Fatalf("пустой ящик — не ошибка: %v", err)
	}
	if len(transport.sentRaw) != 0 {
		t.Fatalf("пустой дайджест не должен отправляться")
	}
}

func TestRunDigestJobRankerFailure(t *testing.T) {
	messages := []domain.RawMessage{rawMessage("a")}
	transport := &stubTransport{profile: "me@example.com"}
	ranker := &stubRanker{err: errors.New("хранилище недоступно")}
	service := NewService(&stubFetcher{messages: messages}, ranker, transport, &stubSettings{}, &stubNewsletterRepo{}, &stubCleanup{}, zerolog.Nop(), "subject")

	if err := service.RunDigestJob(context.Background(), domain.DigestJob{ID: "job1"}); err == nil {
		t.Fatalf("ошибка ранжирования должна проваливать задачу")
	}
	if len(transport.sentRaw) != 0 {
		t.Fatalf("частичный дайджест не должен отправляться")
	}
}

func TestSaveNewslettersOverwritesByID(t *testing.T) {
	messages := []domain.RawMessage{rawMessage("a")}
	transport := &stubTransport{profile: "me@example.com"}
	newsletters := &stubNewsletterRepo{}
	first := scoredFrom(messages[0], 5)
	service := NewService(&stubFetcher{messages: messages}, &stubRanker{scored: []domain.ScoredNewsletter{first}}, transport, &stubSettings{}, newsletters, &stubCleanup{}, zerolog.Nop(), "subject")

	if err := service.RunDigestJob(context.Background(), domain.DigestJob{ID: "job1"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Повторный прогон с новой оценкой перезаписывает запись того же письма.
	second := scoredFrom(messages[0], 9)
	service2 := NewService(&stubFetcher{messages: messages}, &stubRanker{scored: []domain.ScoredNewsletter{second}}, transport, &stubSettings{}, newsletters, &stubCleanup{}, zerolog.Nop(), "subject")
	if err := service2.RunDigestJob(context.Background(), domain.DigestJob{ID: "job2"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(newsletters.stored) != 1 {
		t.Fatalf("ожидали одну запись после перезаписи, получили %d", len(newsletters.stored))
	}
	if newsletters.stored["a"].ImportanceScore != 9 {
		t.Fatalf("перезапись должна побеждать: %d", newsletters.stored["a"].ImportanceScore)
	}
}

func TestCleanupEmails(t *testing.T) {
	cleanup := &stubCleanup{pending: map[string]struct{}{"a": {}, "b": {}, "c": {}}}
	transport := &stubTransport{trashErr: map[string]error{"b": errors.New("permission denied")}}
	service := NewService(&stubFetcher{}, &stubRanker{}, transport, &stubSettings{}, &stubNewsletterRepo{}, cleanup, zerolog.Nop(), "subject")

	trashed, err := service.CleanupEmails(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if trashed != 2 {
		t.Fatalf("ожидали 2 удалённых письма, получили %d", trashed)
	}
	if cleanup.pending != nil {
		t.Fatalf("набор очистки должен очищаться после прохода")
	}
}

func TestCleanupEmailsEmpty(t *testing.T) {
	service := NewService(&stubFetcher{}, &stubRanker{}, &stubTransport{}, &stubSettings{}, &stubNewsletterRepo{}, &stubCleanup{}, zerolog.Nop(), "subject")
	trashed, err := service.CleanupEmails(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if trashed != 0 {
		t.Fatalf("пустой набор — ноль удалений")
	}
}
