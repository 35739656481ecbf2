package domain

import (
	"encoding/base64"
	"strings"
)

// Get возвращает значение заголовка по имени без учёта регистра.
// Отсутствующий заголовок — пустая строка.
func (h HeaderList) Get(name string) string {
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// DecodeBody декодирует base64url-содержимое листового узла.
// Некорректные данные трактуются как пустое тело.
func DecodeBody(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// ExtractBody собирает плоский текст письма: обход MIME-дерева в глубину
// с конкатенацией декодированных text/plain и text/html листьев.
func ExtractBody(part MessagePart) string {
	if part.Data != "" {
		return DecodeBody(part.Data)
	}
	var b strings.Builder
	for _, child := range part.Parts {
		if child.MIMEType == "text/plain" || child.MIMEType == "text/html" || len(child.Parts) > 0 {
			b.WriteString(ExtractBody(child))
		}
	}
	return b.String()
}

// NewCandidate строит представление письма для классификации.
func NewCandidate(msg RawMessage) CandidateEmail {
	return CandidateEmail{
		ID:         msg.ID,
		Subject:    msg.Payload.Headers.Get("Subject"),
		Sender:     msg.Payload.Headers.Get("From"),
		Body:       ExtractBody(msg.Payload),
		ReceivedAt: msg.InternalDate,
		Message:    msg,
	}
}

// MatchesSenderList сообщает, содержит ли заголовок From хотя бы один
// фрагмент из списка. Сравнение регистронезависимое по подстроке.
func MatchesSenderList(sender string, fragments []string) bool {
	lowerSender := strings.ToLower(sender)
	for _, fragment := range fragments {
		trimmed := strings.ToLower(strings.TrimSpace(fragment))
		if trimmed == "" {
			continue
		}
		if strings.Contains(lowerSender, trimmed) {
			return true
		}
	}
	return false
}
