package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestBuildDigestRaw(t *testing.T) {
	raw := BuildDigestRaw("me@example.com", "Your Weekly Best Reads", "<h1>Weekly Reads</h1>")
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("конверт должен быть base64url без набивки: %v", err)
	}
	text := string(decoded)
	headers, body, ok := strings.Cut(text, "\r\n\r\n")
	if !ok {
		t.Fatalf("заголовки должны отделяться пустой строкой")
	}
	if !strings.Contains(headers, "To: me@example.com") {
		t.Fatalf("нет адресата: %s", headers)
	}
	if !strings.Contains(headers, "Subject: Your Weekly Best Reads") {
		t.Fatalf("нет темы: %s", headers)
	}
	if !strings.Contains(headers, "Content-Type: text/html; charset=utf-8") {
		t.Fatalf("дайджест должен быть HTML-письмом: %s", headers)
	}
	if body != "<h1>Weekly Reads</h1>" {
		t.Fatalf("тело должно передаваться как есть: %q", body)
	}
}

func TestBuildPlainRaw(t *testing.T) {
	raw := BuildPlainRaw("unsub@example.com", "Unsubscribe", "Please unsubscribe me from this list.")
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("конверт должен быть base64url: %v", err)
	}
	if !strings.Contains(string(decoded), "Content-Type: text/plain; charset=utf-8") {
		t.Fatalf("письмо отписки должно быть текстовым")
	}
}
