package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// BuildDigestRaw собирает HTML-письмо дайджеста в base64url-конверт,
// пригодный для SendRaw.
func BuildDigestRaw(to, subject, htmlBody string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}

// BuildPlainRaw собирает простое текстовое письмо, используется для
// запросов отписки на mailto-адреса.
func BuildPlainRaw(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}
