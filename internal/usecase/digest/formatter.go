package digest

import (
	"fmt"
	"html"
	"strings"

	"newsletter-digest-bot/internal/domain"
)

var categoryColors = map[domain.Category]string{
	domain.CategoryTech:          "#e3f2fd",
	domain.CategoryFinance:       "#fff8e1",
	domain.CategoryEntertainment: "#f3e5f5",
	domain.CategoryOffers:        "#e8f5e9",
	domain.CategoryNews:          "#fff3e0",
	domain.CategoryMisc:          "#f5f5f5",
}

const aiBadge = `<span style="background-color: #e8eaed; color: #3c4043; padding: 2px 6px; border-radius: 4px; font-size: 10px; margin-right: 5px; vertical-align: middle;">✨ AI Summary</span>`

// FormatDigest формирует HTML-письмо дайджеста: рассылки сгруппированы
// по рубрикам в фиксированном порядке, у AI-аннотаций — бейдж.
func FormatDigest(newsletters []domain.ScoredNewsletter) string {
	var content strings.Builder

	for _, category := range domain.Categories {
		var items []domain.ScoredNewsletter
		for _, n := range newsletters {
			if n.Category == category {
				items = append(items, n)
			}
		}
		if len(items) == 0 {
			continue
		}

		fmt.Fprintf(&content, `<h2 style="color: #444; border-bottom: 1px solid #eee; padding-bottom: 5px; margin-top: 25px;">%s</h2>`, category)
		for _, n := range items {
			badge := ""
			if n.IsAIGenerated {
				badge = aiBadge
			}
			fmt.Fprintf(&content, `
<div style="margin-bottom: 15px; padding: 15px; background-color: %s; border-radius: 8px; border: 1px solid #e0e0e0;">
  <h3 style="margin: 0 0 5px 0; font-size: 16px;">
    <a href="%s" style="text-decoration: none; color: #1a73e8;">%s</a>
  </h3>
  <p style="margin: 0 0 5px 0; color: #5f6368; font-size: 12px;">From: %s</p>
  <p style="margin: 0; font-size: 14px; color: #202124;">%s%s</p>
  <p style="margin: 5px 0 0 0; color: #5f6368; font-size: 11px;">Importance: %d/10</p>
</div>`,
				categoryColors[category],
				html.EscapeString(n.Link),
				html.EscapeString(n.Subject),
				html.EscapeString(n.Sender),
				badge,
				html.EscapeString(n.Summary),
				n.Score)
		}
	}

	return fmt.Sprintf(`<html>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #202124; border-bottom: 2px solid #1a73e8; padding-bottom: 10px;">Weekly Reads</h1>
  <p>Here are your top %d newsletters for this week:</p>
  %s
  <div style="margin-top: 30px; font-size: 12px; color: #888; text-align: center;">
    Generated by Newsletter Digest Bot
  </div>
</body>
</html>`, len(newsletters), content.String())
}
