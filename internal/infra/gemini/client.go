package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsletter-digest-bot/internal/infra/metrics"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client выполняет generateContent запросы к Gemini. Используется как
// запасной провайдер с тем же контрактом, что и основной.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
}

// NewClient создаёт клиента Gemini.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if model == "" {
		model = "gemini-2.0-flash-lite"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	return &Client{http: httpClient, baseURL: baseURL, model: model}
}

// Name возвращает имя провайдера.
func (c *Client) Name() string { return "gemini" }

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete выполняет один текстовый вызов модели и возвращает её ответ.
func (c *Client) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("gemini: api key is empty")
	}
	req := generateContentRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("gemini", "generate_content", c.model, start, err)
		return "", fmt.Errorf("gemini: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("gemini", "generate_content", c.model, start, err)
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	var parsed generateContentResponse
	if resp.StatusCode >= 400 {
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
			err = fmt.Errorf("gemini: %s", parsed.Error.Message)
		} else {
			err = fmt.Errorf("gemini: unexpected status %d", resp.StatusCode)
		}
		metrics.ObserveNetworkRequest("gemini", "generate_content", c.model, start, err)
		return "", err
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.ObserveNetworkRequest("gemini", "generate_content", c.model, start, err)
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("gemini", "generate_content", c.model, start, nil)
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: пустой ответ")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
