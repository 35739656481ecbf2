package archive

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newsletter-digest-bot/internal/domain"
)

type stubTransport struct {
	message    domain.RawMessage
	messageErr error
	sentRaw    []string
	modified   map[string]domain.LabelChange
	modifyErr  map[string]error
}

func (s *stubTransport) ListMessageIDs(ctx context.Context, query string, maxResults int64, pageToken string) (domain.MessageIDPage, error) {
	return domain.MessageIDPage{}, nil
}
func (s *stubTransport) GetMessage(ctx context.Context, id string) (domain.RawMessage, error) {
	return s.message, s.messageErr
}
func (s *stubTransport) SendRaw(ctx context.Context, raw string) error {
	s.sentRaw = append(s.sentRaw, raw)
	return nil
}
func (s *stubTransport) TrashMessage(ctx context.Context, id string) error { return nil }
func (s *stubTransport) ModifyLabels(ctx context.Context, id string, change domain.LabelChange) error {
	if err := s.modifyErr[id]; err != nil {
		return err
	}
	if s.modified == nil {
		s.modified = make(map[string]domain.LabelChange)
	}
	s.modified[id] = change
	return nil
}
func (s *stubTransport) Profile(ctx context.Context) (string, error) { return "me@example.com", nil }

type stubSettings struct {
	settings domain.Settings
}

func (s *stubSettings) Get(ctx context.Context) (domain.Settings, error)         { return s.settings, nil }
func (s *stubSettings) Save(ctx context.Context, settings domain.Settings) error { return nil }

type stubNewsletterRepo struct {
	newsletters []domain.StoredNewsletter
	archived    []string
}

func (s *stubNewsletterRepo) SaveNewsletters(ctx context.Context, newsletters []domain.StoredNewsletter) error {
	return nil
}
func (s *stubNewsletterRepo) ListNewsletters(ctx context.Context) ([]domain.StoredNewsletter, error) {
	return s.newsletters, nil
}
func (s *stubNewsletterRepo) SearchNewsletters(ctx context.Context, query string) ([]domain.StoredNewsletter, error) {
	return nil, nil
}
func (s *stubNewsletterRepo) MarkArchived(ctx context.Context, ids []string) error {
	s.archived = append(s.archived, ids...)
	return nil
}

func archivingSettings(enabled bool, afterDays int) domain.Settings {
	settings := domain.DefaultSettings()
	settings.Archive.EnableArchiving = enabled
	settings.Archive.ArchiveAfterDays = afterDays
	return settings
}

func TestCheckAndArchive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	transport := &stubTransport{modifyErr: map[string]error{"broken": errors.New("недоступно")}}
	repo := &stubNewsletterRepo{newsletters: []domain.StoredNewsletter{
		{ID: "old", ReceivedAt: now.AddDate(0, 0, -40)},
		{ID: "fresh", ReceivedAt: now.AddDate(0, 0, -5)},
		{ID: "done", ReceivedAt: now.AddDate(0, 0, -40), IsArchived: true},
		{ID: "broken", ReceivedAt: now.AddDate(0, 0, -40)},
	}}
	service := NewService(transport, &stubSettings{settings: archivingSettings(true, 30)}, repo, zerolog.Nop())
	service.now = func() time.Time { return now }

	archived, err := service.CheckAndArchive(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if archived != 1 {
		t.Fatalf("ожидали 1 архивированное письмо, получили %d", archived)
	}
	if change, ok := transport.modified["old"]; !ok || len(change.Remove) != 1 || change.Remove[0] != "INBOX" {
		t.Fatalf("архивация — снятие ярлыка INBOX: %+v", change)
	}
	if len(repo.archived) != 1 || repo.archived[0] != "old" {
		t.Fatalf("помечаться должны только успешно обработанные: %v", repo.archived)
	}
}

func TestCheckAndArchiveDisabled(t *testing.T) {
	transport := &stubTransport{}
	repo := &stubNewsletterRepo{newsletters: []domain.StoredNewsletter{
		{ID: "old", ReceivedAt: time.Now().AddDate(0, 0, -100)},
	}}
	service := NewService(transport, &stubSettings{settings: archivingSettings(false, 30)}, repo, zerolog.Nop())

	archived, err := service.CheckAndArchive(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if archived != 0 || len(transport.modified) != 0 {
		t.Fatalf("при выключенной архивации ничего не должно происходить")
	}
}

func TestArchiveNow(t *testing.T) {
	transport := &stubTransport{}
	repo := &stubNewsletterRepo{}
	service := NewService(transport, &stubSettings{settings: domain.DefaultSettings()}, repo, zerolog.Nop())

	if err := service.ArchiveNow(context.Background(), "m1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := transport.modified["m1"]; !ok {
		t.Fatalf("ожидали снятие ярлыка")
	}
	if len(repo.archived) != 1 || repo.archived[0] != "m1" {
		t.Fatalf("письмо должно помечаться архивированным")
	}
}

func messageWithUnsubscribe(value string) domain.RawMessage {
	return domain.RawMessage{
		ID: "m1",
		Payload: domain.MessagePart{
			Headers: domain.HeaderList{{Name: "List-Unsubscribe", Value: value}},
		},
	}
}

func TestUnsubscribePrefersMailto(t *testing.T) {
	transport := &stubTransport{
		message: messageWithUnsubscribe("<https://example.com/u>, <mailto:unsub@example.com?subject=stop>"),
	}
	service := NewService(transport, &stubSettings{settings: domain.DefaultSettings()}, &stubNewsletterRepo{}, zerolog.Nop())

	result, err := service.Unsubscribe(context.Background(), "m1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !result.Done {
		t.Fatalf("mailto-отписка должна выполняться автоматически")
	}
	if len(transport.sentRaw) != 1 {
		t.Fatalf("ожидали отправку письма отписки")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(transport.sentRaw[0])
	if err != nil {
		t.Fatalf("конверт должен быть base64url: %v", err)
	}
	if !strings.Contains(string(decoded), "To: unsub@example.com") {
		t.Fatalf("неверный адресат: %s", decoded)
	}
	if !strings.Contains(string(decoded), "Subject: stop") {
		t.Fatalf("тема должна браться из mailto-ссылки: %s", decoded)
	}
}

func TestUnsubscribeHTTPFallback(t *testing.T) {
	transport := &stubTransport{
		message: messageWithUnsubscribe("<https://example.com/unsubscribe>"),
	}
	service := NewService(transport, &stubSettings{settings: domain.DefaultSettings()}, &stubNewsletterRepo{}, zerolog.Nop())

	result, err := service.Unsubscribe(context.Background(), "m1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Done {
		t.Fatalf("HTTP-ссылка не выполняется автоматически")
	}
	if result.ManualURL != "https://example.com/unsubscribe" {
		t.Fatalf("ожидали ссылку для ручного перехода: %q", result.ManualURL)
	}
}

func TestUnsubscribeNoHeader(t *testing.T) {
	transport := &stubTransport{message: domain.RawMessage{ID: "m1"}}
	service := NewService(transport, &stubSettings{settings: domain.DefaultSettings()}, &stubNewsletterRepo{}, zerolog.Nop())

	if _, err := service.Unsubscribe(context.Background(), "m1"); !errors.Is(err, ErrNoUnsubscribeHeader) {
		t.Fatalf("ожидали ErrNoUnsubscribeHeader, получили %v", err)
	}
}
