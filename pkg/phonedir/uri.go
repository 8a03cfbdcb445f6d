package phonedir

import (
	"strconv"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// URI нормализованный абонентский адрес.
//
// Поддерживаются полные SIP URI (sip:alice@example.com) и "голые"
// номера/имена пользователей без хоста (например "112" или "alice").
// Схема и хост приводятся к нижнему регистру, userinfo сохраняет
// регистр. Пустой URI валиден и обозначает отсутствие адреса.
type URI struct {
	scheme string
	user   string
	host   string
	port   int
}

// ParseURI разбирает строку в нормализованный URI.
//
// Для строк, которые похожи на SIP URI, используется парсер sipgo.
// Всё остальное трактуется как голый userinfo без хоста — ошибкой это
// не считается, так недозаполненные номера выглядят во время набора.
func ParseURI(raw string) URI {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return URI{}
	}

	if strings.Contains(raw, "@") || strings.HasPrefix(raw, "sip:") || strings.HasPrefix(raw, "sips:") {
		var su sip.Uri
		if err := sip.ParseUri(withScheme(raw), &su); err == nil {
			return URI{
				scheme: strings.ToLower(su.Scheme),
				user:   su.User,
				host:   strings.ToLower(su.Host),
				port:   su.Port,
			}
		}
		// Парсер не справился — оставляем как есть, без хоста.
	}

	return URI{user: raw}
}

// withScheme добавляет схему по умолчанию для адресов вида user@host,
// иначе sip.ParseUri их отклоняет.
func withScheme(raw string) string {
	if strings.HasPrefix(raw, "sip:") || strings.HasPrefix(raw, "sips:") {
		return raw
	}
	return "sip:" + raw
}

// IsEmpty сообщает, что адрес не задан.
func (u URI) IsEmpty() bool {
	return u.user == "" && u.host == ""
}

// HasHost сообщает, содержит ли адрес хост.
func (u URI) HasHost() bool {
	return u.host != ""
}

// User возвращает userinfo часть адреса.
func (u URI) User() string {
	return u.user
}

// Host возвращает хост адреса (пустой для голых номеров).
func (u URI) Host() string {
	return u.host
}

// String возвращает каноническую строковую форму адреса.
func (u URI) String() string {
	if u.IsEmpty() {
		return ""
	}
	if !u.HasHost() {
		return u.user
	}
	var b strings.Builder
	if u.scheme != "" {
		b.WriteString(u.scheme)
		b.WriteByte(':')
	}
	b.WriteString(u.user)
	b.WriteByte('@')
	b.WriteString(u.host)
	if u.port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.port))
	}
	return b.String()
}

// Equal сравнивает нормализованные адреса.
func (u URI) Equal(other URI) bool {
	return u == other
}

// Longer сообщает, что адрес точнее (длиннее) другого.
// При слиянии выживает более точный URI.
func (u URI) Longer(other URI) bool {
	return len(u.String()) > len(other.String())
}
