package digest

import (
	"strings"
	"testing"

	"newsletter-digest-bot/internal/domain"
)

func TestFormatDigestGroupsByCategory(t *testing.T) {
	newsletters := []domain.ScoredNewsletter{
		{Subject: "Market recap", Sender: "fin@example.com", Summary: "акции", Category: domain.CategoryFinance, Score: 7, Link: "https://mail.google.com/mail/u/0/#inbox/f1"},
		{Subject: "AI weekly", Sender: "ai@example.com", Summary: "модели", Category: domain.CategoryTech, Score: 9, Link: "https://mail.google.com/mail/u/0/#inbox/t1", IsAIGenerated: true},
	}
	html := FormatDigest(newsletters)

	if !strings.Contains(html, "Weekly Reads") {
		t.Fatalf("ожидали заголовок дайджеста")
	}
	if !strings.Contains(html, "top 2 newsletters") {
		t.Fatalf("ожидали количество рассылок в шапке")
	}
	// Tech идёт раньше Finance в фиксированном порядке рубрик.
	techIdx := strings.Index(html, ">Tech</h2>")
	finIdx := strings.Index(html, ">Finance</h2>")
	if techIdx == -1 || finIdx == -1 || techIdx > finIdx {
		t.Fatalf("рубрики должны идти в фиксированном порядке: tech=%d finance=%d", techIdx, finIdx)
	}
	if !strings.Contains(html, "✨ AI Summary") {
		t.Fatalf("AI-аннотация должна получать бейдж")
	}
	if !strings.Contains(html, "Importance: 9/10") {
		t.Fatalf("ожидали оценку важности")
	}
}

func TestFormatDigestSkipsEmptyCategories(t *testing.T) {
	newsletters := []domain.ScoredNewsletter{
		{Subject: "s", Sender: "a@b.c", Category: domain.CategoryMisc, Score: 5},
	}
	html := FormatDigest(newsletters)
	if strings.Contains(html, ">Tech</h2>") {
		t.Fatalf("пустая рубрика не должна выводиться")
	}
	if !strings.Contains(html, ">Misc</h2>") {
		t.Fatalf("непустая рубрика должна выводиться")
	}
}

func TestFormatDigestEscapesHTML(t *testing.T) {
	newsletters := []domain.ScoredNewsletter{
		{Subject: "<script>alert(1)</script>", Sender: "a@b.c", Summary: "s", Category: domain.CategoryMisc, Score: 5},
	}
	html := FormatDigest(newsletters)
	if strings.Contains(html, "<script>") {
		t.Fatalf("тема должна экранироваться")
	}
}

func TestFormatDigestHeuristicWithoutBadge(t *testing.T) {
	newsletters := []domain.ScoredNewsletter{
		{Subject: "s", Sender: "a@b.c", Summary: "s", Category: domain.CategoryNews, Score: 5, IsAIGenerated: false},
	}
	if strings.Contains(FormatDigest(newsletters), "AI Summary") {
		t.Fatalf("эвристическая аннотация не должна получать бейдж")
	}
}
