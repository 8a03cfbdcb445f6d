// Package phonedir реализует справочник абонентских адресов (Identity).
//
// Справочник хранит дедуплицированные записи о набираемых адресах:
// нормализованный URI, привязку к аккаунту и контакту, статистику
// использования (количество звонков, суммарное время разговора,
// последнее использование).
//
// Ключевая особенность — слияние записей через таблицу косвенности.
// Каждый Identity это стабильный ключ-ссылка, который разрешается в
// запись при каждом обращении. Merge переписывает отображение
// ключ → запись, поэтому все существующие Identity автоматически
// видят объединённую запись без подмены указателей.
//
// Записи создаются лениво при первом обращении и живут до конца
// процесса, явного удаления нет.
package phonedir
