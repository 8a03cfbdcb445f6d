package call

import (
	"context"
	"time"
)

// RemoteCallService команды и снимки телефонного демона.
//
// Все команды асинхронные: возврат без ошибки означает лишь, что
// команда отправлена. Исход приходит позже событием или через
// CommandResult. Возврат ошибки трактуется как немедленный провал
// команды и идёт тем же путём, что и асинхронный.
//
// Таймаутов на командах нет: за живость отвечает демон, движок
// никогда не блокируется в его ожидании.
type RemoteCallService interface {
	// Команды над звонком
	Accept(ctx context.Context, callID string) error
	Refuse(ctx context.Context, callID string) error
	HangUp(ctx context.Context, callID string) error
	Hold(ctx context.Context, callID string) error
	Unhold(ctx context.Context, callID string) error
	PlaceCall(ctx context.Context, accountID, callID, target string) error
	Transfer(ctx context.Context, callID, target string) error
	AttendedTransfer(ctx context.Context, callID, otherCallID string) error
	SetRecording(ctx context.Context, callID string) error

	// Команды над конференциями
	JoinParticipant(ctx context.Context, callID, otherCallID string) error
	AddParticipant(ctx context.Context, callID, confID string) error
	AddMainParticipant(ctx context.Context, confID string) error
	DetachParticipant(ctx context.Context, callID string) error
	JoinConference(ctx context.Context, confID, otherConfID string) error
	HoldConference(ctx context.Context, confID string) error
	UnholdConference(ctx context.Context, confID string) error
	HangUpConference(ctx context.Context, confID string) error

	// Снимки состояния демона
	GetCallList(ctx context.Context) ([]string, error)
	GetCallDetails(ctx context.Context, callID string) (CallDetails, error)
	GetConferenceList(ctx context.Context) ([]string, error)
	GetConferenceDetails(ctx context.Context, confID string) (ConferenceDetails, error)
	GetConferenceParticipants(ctx context.Context, confID string) ([]string, error)
}

// CallDetails снимок звонка со стороны демона.
type CallDetails struct {
	PeerNumber      string
	PeerName        string
	AccountID       string
	State           string
	Direction       Direction
	StartedAt       time.Time
	ConfID          string
	Recording       bool
	RecordingPath   string
	Secure          bool
	SecureConfirmed bool
}

// ConferenceDetails снимок конференции со стороны демона.
type ConferenceDetails struct {
	State     string
	Recording bool
}

// CommandResult асинхронный исход команды демону.
type CommandResult struct {
	CallID  string
	Command string
	Err     error
}

// HistoryRecord неизменяемый снимок завершённого звонка для журнала.
type HistoryRecord struct {
	ID            string
	PeerURI       string
	PeerName      string
	AccountID     string
	Direction     Direction
	Missed        bool
	StartedAt     time.Time
	StoppedAt     time.Time
	RecordingPath string

	// Classification классификация для старых форматов журнала,
	// где направление кодировалось в поле состояния.
	Classification HistoryClassification
}

// HistoryClassification классификация записи журнала.
type HistoryClassification int

const (
	// HistoryOutgoing исходящий звонок.
	HistoryOutgoing HistoryClassification = iota
	// HistoryIncoming входящий отвеченный звонок.
	HistoryIncoming
	// HistoryMissed входящий пропущенный звонок.
	HistoryMissed
)

// String возвращает имя классификации.
func (hc HistoryClassification) String() string {
	switch hc {
	case HistoryOutgoing:
		return "outgoing"
	case HistoryIncoming:
		return "incoming"
	case HistoryMissed:
		return "missed"
	default:
		return "unknown"
	}
}

// HistorySink приёмник записей журнала звонков.
// Вызывается ровно один раз на каждый завершённый звонок.
type HistorySink interface {
	Add(record HistoryRecord)
}

// HistorySinkFunc адаптер функции к HistorySink.
type HistorySinkFunc func(record HistoryRecord)

// Add реализует HistorySink.
func (f HistorySinkFunc) Add(record HistoryRecord) {
	f(record)
}

// RowOp вид изменения дерева для слоя отображения.
type RowOp int

const (
	// RowInserted узел появился.
	RowInserted RowOp = iota
	// RowRemoved узел исчез.
	RowRemoved
	// RowMoved узел сменил родителя.
	RowMoved
	// RowUpdated атрибуты узла изменились.
	RowUpdated
)

// String возвращает имя операции.
func (op RowOp) String() string {
	switch op {
	case RowInserted:
		return "inserted"
	case RowRemoved:
		return "removed"
	case RowMoved:
		return "moved"
	case RowUpdated:
		return "updated"
	}
	return "unknown"
}

// RowEvent уведомление слоя отображения об изменении дерева.
// Узлы адресуются стабильными идентификаторами, Parent пуст для
// узлов верхнего уровня.
type RowEvent struct {
	Op     RowOp
	ID     string
	Parent string
}

// RowListener получатель уведомлений об изменениях дерева.
type RowListener func(ev RowEvent)
