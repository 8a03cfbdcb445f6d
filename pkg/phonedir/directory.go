package phonedir

import (
	"errors"
	"sync"
	"time"
)

// ErrAccountConflict возвращается при попытке слить записи,
// привязанные к разным аккаунтам.
var ErrAccountConflict = errors.New("phonedir: records belong to different accounts")

// ErrForeignIdentity возвращается, когда ссылка принадлежит другому
// справочнику или не привязана вовсе.
var ErrForeignIdentity = errors.New("phonedir: identity belongs to another directory")

// Directory справочник абонентских адресов.
//
// Живёт весь процесс, записи создаются лениво и не удаляются.
// Таблица косвенности alias хранит переходы ключей после слияний:
// ключ проигравшей записи указывает на ключ выжившей, цепочки
// разрешаются при каждом обращении.
type Directory struct {
	mutex   sync.RWMutex
	nextKey recordKey
	records map[recordKey]*record
	alias   map[recordKey]recordKey
	// Индекс дедупликации: нормализованный URI + аккаунт → ключ.
	index map[string]recordKey
}

// NewDirectory создает пустой справочник.
func NewDirectory() *Directory {
	return &Directory{
		records: make(map[recordKey]*record),
		alias:   make(map[recordKey]recordKey),
		index:   make(map[string]recordKey),
	}
}

// canonical разрешает ключ через таблицу косвенности.
// Вызывается под мьютексом.
func (d *Directory) canonical(key recordKey) recordKey {
	for {
		next, ok := d.alias[key]
		if !ok {
			return key
		}
		key = next
	}
}

// resolve возвращает запись для ключа. Вызывается под мьютексом.
func (d *Directory) resolve(key recordKey) *record {
	return d.records[d.canonical(key)]
}

func indexKey(uri URI, account string) string {
	return uri.String() + "|" + account
}

// GetNumber возвращает ссылку на запись для адреса и аккаунта,
// лениво создавая запись при первом обращении.
func (d *Directory) GetNumber(raw string, account string) Identity {
	uri := ParseURI(raw)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if key, ok := d.index[indexKey(uri, account)]; ok {
		return Identity{dir: d, key: d.canonical(key)}
	}
	// Адрес без аккаунта мог быть заведён раньше — не плодим дубль,
	// а дозаполняем существующую запись.
	if account != "" {
		if key, ok := d.index[indexKey(uri, "")]; ok {
			key = d.canonical(key)
			rec := d.records[key]
			if rec.account == "" {
				rec.account = account
				delete(d.index, indexKey(uri, ""))
				d.index[indexKey(uri, account)] = key
				return Identity{dir: d, key: key}
			}
		}
	}
	// Зеркальный случай: запрос без аккаунта находит запись, заведённую
	// с аккаунтом. Совпадение адреса важнее аккаунта, возвращаем самую
	// раннюю запись с этим URI.
	if account == "" {
		var found recordKey
		for key, rec := range d.records {
			if rec.uri.Equal(uri) && (found == 0 || key < found) {
				found = key
			}
		}
		if found != 0 {
			return Identity{dir: d, key: found}
		}
	}

	d.nextKey++
	key := d.nextKey
	d.records[key] = newRecord(uri, account)
	d.index[indexKey(uri, account)] = key
	return Identity{dir: d, key: key}
}

// FromTemporary превращает подтверждённый буфер набора в общую запись.
func (d *Directory) FromTemporary(tmp *Temporary, account string) Identity {
	id := d.GetNumber(tmp.Text(), account)
	if name := tmp.Name(); name != "" {
		d.AddName(id, name)
	}
	return id
}

// Merge сливает две записи в одну.
//
// Выживает запись первой ссылки, более длинный URI становится
// основным, проигравший URI архивируется в списке альтернатив.
// Все ключи проигравшей записи переписываются на выжившую, так что
// обе ссылки продолжают работать. Записи с разными непустыми
// аккаунтами не сливаются.
func (d *Directory) Merge(a, b Identity) error {
	if a.dir != d || b.dir != d {
		return ErrForeignIdentity
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	winKey := d.canonical(a.key)
	loseKey := d.canonical(b.key)
	if winKey == loseKey {
		return nil
	}

	win := d.records[winKey]
	lose := d.records[loseKey]
	if win.account != "" && lose.account != "" && win.account != lose.account {
		return ErrAccountConflict
	}

	delete(d.index, indexKey(win.uri, win.account))
	delete(d.index, indexKey(lose.uri, lose.account))

	win.absorb(lose)
	delete(d.records, loseKey)
	d.alias[loseKey] = winKey
	d.index[indexKey(win.uri, win.account)] = winKey
	return nil
}

// SetAccount привязывает запись к аккаунту и заново прогоняет
// детектор дублей: привязка может выявить, что голый номер и полный
// адрес принадлежат одному абоненту.
func (d *Directory) SetAccount(id Identity, account string) error {
	if id.dir != d {
		return ErrForeignIdentity
	}

	d.mutex.Lock()
	key := d.canonical(id.key)
	rec := d.records[key]
	if rec.account == account {
		d.mutex.Unlock()
		return nil
	}
	delete(d.index, indexKey(rec.uri, rec.account))
	rec.account = account

	dupKey, dup := d.index[indexKey(rec.uri, account)]
	if dup {
		dupKey = d.canonical(dupKey)
		dup = dupKey != key
	}
	if !dup {
		d.index[indexKey(rec.uri, account)] = key
	}
	d.mutex.Unlock()

	if dup {
		return d.Merge(Identity{dir: d, key: dupKey}, id)
	}
	return nil
}

// SetContact привязывает запись к контакту адресной книги.
func (d *Directory) SetContact(id Identity, contact string) {
	if id.dir != d {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.resolve(id.key).contact = contact
}

// AddName учитывает имя абонента, под которым адрес встретился.
func (d *Directory) AddName(id Identity, name string) {
	if id.dir != d {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.resolve(id.key).addName(name)
}

// RecordCall обновляет статистику использования адреса.
func (d *Directory) RecordCall(id Identity, at time.Time) {
	if id.dir != d {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	rec := d.resolve(id.key)
	rec.callCount++
	if at.After(rec.lastUsed) {
		rec.lastUsed = at
	}
}

// RecordTalkTime добавляет время разговора к статистике адреса.
func (d *Directory) RecordTalkTime(id Identity, seconds int64) {
	if id.dir != d || seconds <= 0 {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.resolve(id.key).talkSeconds += seconds
}

// Size возвращает количество живых записей.
func (d *Directory) Size() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.records)
}
