package phonedir

import "strings"

// Temporary изменяемый буфер набора: цифры, которые пользователь
// вводит при наборе номера или цели перевода. В справочник не
// попадает, пока не подтверждён через Directory.FromTemporary.
type Temporary struct {
	text string
	name string
}

// NewTemporary создает буфер с начальным содержимым.
func NewTemporary(text string) *Temporary {
	return &Temporary{text: strings.TrimSpace(text)}
}

// Append дописывает введённые символы в конец буфера.
func (t *Temporary) Append(s string) {
	t.text += s
}

// Backspace стирает последний символ.
// Возвращает false, если буфер и так был пуст.
func (t *Temporary) Backspace() bool {
	if t.text == "" {
		return false
	}
	runes := []rune(t.text)
	t.text = string(runes[:len(runes)-1])
	return true
}

// Reset очищает буфер.
func (t *Temporary) Reset() {
	t.text = ""
	t.name = ""
}

// SetText заменяет содержимое буфера целиком.
func (t *Temporary) SetText(s string) {
	t.text = s
}

// SetName задаёт отображаемое имя для будущей записи.
func (t *Temporary) SetName(name string) {
	t.name = name
}

// Text возвращает текущее содержимое буфера.
func (t *Temporary) Text() string {
	return t.text
}

// Name возвращает отображаемое имя.
func (t *Temporary) Name() string {
	return t.name
}

// Empty сообщает, что буфер пуст.
func (t *Temporary) Empty() bool {
	return t.text == ""
}

// URI возвращает нормализованный адрес текущего содержимого.
func (t *Temporary) URI() URI {
	return ParseURI(t.text)
}
