// Package gmail реализует почтовый транспорт поверх Gmail API.
package gmail

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"newsletter-digest-bot/internal/domain"
)

// gmailScopes покрывают чтение, отправку и изменение ярлыков.
var gmailScopes = []string{"https://www.googleapis.com/auth/gmail.modify"}

// OAuthTokenProvider выдаёт access-токены по долгоживущему refresh-токену.
type OAuthTokenProvider struct {
	config       *oauth2.Config
	refreshToken string

	mu     sync.Mutex
	cached *oauth2.Token
}

var _ domain.TokenProvider = (*OAuthTokenProvider)(nil)

// NewOAuthTokenProvider создаёт провайдера токенов.
func NewOAuthTokenProvider(clientID, clientSecret, refreshToken string) *OAuthTokenProvider {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       gmailScopes,
	}
	return &OAuthTokenProvider{config: cfg, refreshToken: refreshToken}
}

// Token возвращает действующий access-токен. interactive принудительно
// запрашивает свежий токен, минуя кэш.
func (p *OAuthTokenProvider) Token(ctx context.Context, interactive bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !interactive && p.cached != nil && p.cached.Valid() {
		return p.cached.AccessToken, nil
	}

	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken})
	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("обновление токена: %w", err)
	}
	p.cached = token
	return token.AccessToken, nil
}

// Invalidate сбрасывает кэшированный токен.
func (p *OAuthTokenProvider) Invalidate(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil && p.cached.AccessToken == token {
		p.cached = nil
	}
	return nil
}
