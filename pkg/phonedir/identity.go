package phonedir

import (
	"time"
)

// Identity публичная ссылка на запись справочника.
//
// Identity никогда не держит запись напрямую: все методы разрешают
// ключ через таблицу косвенности справочника. После Merge старые
// ссылки продолжают работать и видят объединённую запись.
type Identity struct {
	dir *Directory
	key recordKey
}

// recordKey внутренний стабильный ключ записи.
type recordKey uint64

// record хранимое состояние абонентского адреса.
// Доступ только под мьютексом справочника.
type record struct {
	uri       URI
	otherURIs []URI
	account   string
	contact   string

	callCount   int
	talkSeconds int64
	lastUsed    time.Time

	// Перепись имён: имя → сколько раз встречалось.
	// Основным считается самое частое.
	names       map[string]int
	primaryName string
}

func newRecord(uri URI, account string) *record {
	return &record{
		uri:     uri,
		account: account,
		names:   make(map[string]int),
	}
}

// addName учитывает очередное появление имени абонента.
func (r *record) addName(name string) {
	if name == "" {
		return
	}
	r.names[name]++
	if r.primaryName == "" || r.names[name] > r.names[r.primaryName] {
		r.primaryName = name
	}
}

// absorb вливает состояние проигравшей записи слияния.
func (r *record) absorb(other *record) {
	if other.uri.Longer(r.uri) {
		r.otherURIs = append(r.otherURIs, r.uri)
		r.uri = other.uri
	} else if !other.uri.Equal(r.uri) {
		r.otherURIs = append(r.otherURIs, other.uri)
	}
	r.otherURIs = append(r.otherURIs, other.otherURIs...)

	if r.account == "" {
		r.account = other.account
	}
	if r.contact == "" {
		r.contact = other.contact
	}

	r.callCount += other.callCount
	r.talkSeconds += other.talkSeconds
	if other.lastUsed.After(r.lastUsed) {
		r.lastUsed = other.lastUsed
	}

	for name, n := range other.names {
		r.names[name] += n
		if r.primaryName == "" || r.names[name] > r.names[r.primaryName] {
			r.primaryName = name
		}
	}
}

// Valid сообщает, что ссылка привязана к справочнику.
func (id Identity) Valid() bool {
	return id.dir != nil
}

// URI возвращает основной нормализованный адрес записи.
func (id Identity) URI() URI {
	if id.dir == nil {
		return URI{}
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).uri
}

// OtherURIs возвращает адреса, поглощённые при слияниях.
func (id Identity) OtherURIs() []URI {
	if id.dir == nil {
		return nil
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	rec := id.dir.resolve(id.key)
	out := make([]URI, len(rec.otherURIs))
	copy(out, rec.otherURIs)
	return out
}

// Account возвращает идентификатор аккаунта записи.
func (id Identity) Account() string {
	if id.dir == nil {
		return ""
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).account
}

// Contact возвращает идентификатор контакта записи.
func (id Identity) Contact() string {
	if id.dir == nil {
		return ""
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).contact
}

// PrimaryName возвращает самое частое имя абонента.
func (id Identity) PrimaryName() string {
	if id.dir == nil {
		return ""
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).primaryName
}

// CallCount возвращает число звонков с этим адресом.
func (id Identity) CallCount() int {
	if id.dir == nil {
		return 0
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).callCount
}

// TalkSeconds возвращает суммарное время разговоров в секундах.
func (id Identity) TalkSeconds() int64 {
	if id.dir == nil {
		return 0
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).talkSeconds
}

// LastUsed возвращает момент последнего использования адреса.
func (id Identity) LastUsed() time.Time {
	if id.dir == nil {
		return time.Time{}
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.resolve(id.key).lastUsed
}

// SameRecord сообщает, что две ссылки разрешаются в одну запись.
func (id Identity) SameRecord(other Identity) bool {
	if id.dir == nil || id.dir != other.dir {
		return false
	}
	id.dir.mutex.RLock()
	defer id.dir.mutex.RUnlock()
	return id.dir.canonical(id.key) == id.dir.canonical(other.key)
}
