package gmail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"newsletter-digest-bot/internal/domain"
	"newsletter-digest-bot/internal/infra/metrics"
)

// Client реализует domain.MailTransport поверх Gmail API.
type Client struct {
	svc *gmailapi.Service
}

var _ domain.MailTransport = (*Client)(nil)

// NewClient создаёт транспорт. Авторизация и повтор при 401 выполняются
// на уровне HTTP-транспорта.
func NewClient(ctx context.Context, tokens domain.TokenProvider) (*Client, error) {
	httpClient := &http.Client{
		Transport: &authTransport{base: http.DefaultTransport, tokens: tokens},
		Timeout:   60 * time.Second,
	}
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("создание gmail сервиса: %w", err)
	}
	return &Client{svc: svc}, nil
}

// authTransport подставляет токен в каждый запрос. При 401 токен
// сбрасывается и переполучается интерактивно, повтор ровно один.
type authTransport struct {
	base   http.RoundTripper
	tokens domain.TokenProvider
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(req.Context(), false)
	if err != nil {
		return nil, err
	}
	resp, err := t.roundTripWithToken(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	resp.Body.Close()
	if err := t.tokens.Invalidate(req.Context(), token); err != nil {
		return nil, err
	}
	token, err = t.tokens.Token(req.Context(), true)
	if err != nil {
		return nil, err
	}
	return t.roundTripWithToken(req, token)
}

func (t *authTransport) roundTripWithToken(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// ListMessageIDs возвращает страницу идентификаторов писем по запросу.
func (c *Client) ListMessageIDs(ctx context.Context, query string, maxResults int64, pageToken string) (domain.MessageIDPage, error) {
	call := c.svc.Users.Messages.List("me").Q(query)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	start := time.Now()
	resp, err := call.Context(ctx).Do()
	metrics.ObserveNetworkRequest("gmail", "messages_list", "messages", start, err)
	if err != nil {
		return domain.MessageIDPage{}, fmt.Errorf("список писем: %w", err)
	}
	page := domain.MessageIDPage{NextPageToken: resp.NextPageToken}
	for _, msg := range resp.Messages {
		page.IDs = append(page.IDs, msg.Id)
	}
	return page, nil
}

// GetMessage возвращает письмо целиком.
func (c *Client) GetMessage(ctx context.Context, id string) (domain.RawMessage, error) {
	start := time.Now()
	msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	metrics.ObserveNetworkRequest("gmail", "messages_get", "messages", start, err)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("получение письма %s: %w", id, err)
	}
	return toDomainMessage(msg), nil
}

// SendRaw отправляет готовый base64url-конверт MIME.
func (c *Client) SendRaw(ctx context.Context, raw string) error {
	start := time.Now()
	_, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	metrics.ObserveNetworkRequest("gmail", "messages_send", "messages", start, err)
	if err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}

// TrashMessage отправляет письмо в корзину.
func (c *Client) TrashMessage(ctx context.Context, id string) error {
	start := time.Now()
	_, err := c.svc.Users.Messages.Trash("me", id).Context(ctx).Do()
	metrics.ObserveNetworkRequest("gmail", "messages_trash", "messages", start, err)
	if err != nil {
		return fmt.Errorf("удаление письма %s: %w", id, err)
	}
	return nil
}

// ModifyLabels изменяет ярлыки письма.
func (c *Client) ModifyLabels(ctx context.Context, id string, change domain.LabelChange) error {
	req := &gmailapi.ModifyMessageRequest{
		AddLabelIds:    change.Add,
		RemoveLabelIds: change.Remove,
	}
	start := time.Now()
	_, err := c.svc.Users.Messages.Modify("me", id, req).Context(ctx).Do()
	metrics.ObserveNetworkRequest("gmail", "messages_modify", "messages", start, err)
	if err != nil {
		return fmt.Errorf("изменение ярлыков %s: %w", id, err)
	}
	return nil
}

// Profile возвращает адрес владельца ящика.
func (c *Client) Profile(ctx context.Context) (string, error) {
	start := time.Now()
	profile, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	metrics.ObserveNetworkRequest("gmail", "get_profile", "profile", start, err)
	if err != nil {
		return "", fmt.Errorf("получение профиля: %w", err)
	}
	return profile.EmailAddress, nil
}

func toDomainMessage(msg *gmailapi.Message) domain.RawMessage {
	out := domain.RawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		out.InternalDate = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload != nil {
		out.Payload = toDomainPart(msg.Payload)
	}
	return out
}

func toDomainPart(part *gmailapi.MessagePart) domain.MessagePart {
	out := domain.MessagePart{MIMEType: part.MimeType}
	for _, header := range part.Headers {
		out.Headers = append(out.Headers, domain.Header{Name: header.Name, Value: header.Value})
	}
	if part.Body != nil {
		out.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		out.Parts = append(out.Parts, toDomainPart(child))
	}
	return out
}
