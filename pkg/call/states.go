package call

import "strings"

// State состояние звонка. Значения замкнуты: любое значение вне
// перечисления — дефект, переходные функции отвечают на него Error.
type State int

const (
	// StateIncoming входящий звонок, ещё не принят.
	StateIncoming State = iota
	// StateRinging исходящий звонок, удалённая сторона оповещена.
	StateRinging
	// StateCurrent активный разговор.
	StateCurrent
	// StateDialing набор номера, демон ещё не задействован.
	StateDialing
	// StateHold звонок на удержании с нашей стороны.
	StateHold
	// StateFailure демон сообщил об ошибке установления.
	StateFailure
	// StateBusy удалённая сторона занята.
	StateBusy
	// StateTransferred идёт ввод цели перевода.
	StateTransferred
	// StateTransferHold ввод цели перевода поверх удержания.
	StateTransferHold
	// StateOver звонок завершён.
	StateOver
	// StateError нарушение жизненного цикла, терминальный дефект.
	StateError
	// StateConference звонок участвует в активной конференции.
	StateConference
	// StateConferenceHold звонок участвует в конференции на удержании.
	StateConferenceHold
	// StateInitializing команда звонка отправлена, подтверждения нет.
	StateInitializing

	stateCount
)

// String возвращает имя состояния для логов.
func (s State) String() string {
	switch s {
	case StateIncoming:
		return "INCOMING"
	case StateRinging:
		return "RINGING"
	case StateCurrent:
		return "CURRENT"
	case StateDialing:
		return "DIALING"
	case StateHold:
		return "HOLD"
	case StateFailure:
		return "FAILURE"
	case StateBusy:
		return "BUSY"
	case StateTransferred:
		return "TRANSFERRED"
	case StateTransferHold:
		return "TRANSF_HOLD"
	case StateOver:
		return "OVER"
	case StateError:
		return "ERROR"
	case StateConference:
		return "CONFERENCE"
	case StateConferenceHold:
		return "CONFERENCE_HOLD"
	case StateInitializing:
		return "INITIALIZATION"
	default:
		return "UNKNOWN"
	}
}

// Action намерение пользователя.
type Action int

const (
	// ActionAccept принять / позвонить / завершить перевод.
	ActionAccept Action = iota
	// ActionRefuse отклонить / повесить трубку / отменить.
	ActionRefuse
	// ActionTransfer начать или подтвердить перевод.
	ActionTransfer
	// ActionHold переключить удержание.
	ActionHold
	// ActionRecord переключить запись.
	ActionRecord

	actionCount
)

// String возвращает имя действия для логов.
func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "ACCEPT"
	case ActionRefuse:
		return "REFUSE"
	case ActionTransfer:
		return "TRANSFER"
	case ActionHold:
		return "HOLD"
	case ActionRecord:
		return "RECORD"
	default:
		return "UNKNOWN"
	}
}

// DaemonEvent событие от демона о смене состояния звонка.
type DaemonEvent int

const (
	// EventRinging удалённая сторона оповещена.
	EventRinging DaemonEvent = iota
	// EventCurrent разговор установлен или снят с удержания.
	EventCurrent
	// EventBusy удалённая сторона занята.
	EventBusy
	// EventHold звонок поставлен на удержание.
	EventHold
	// EventHungUp звонок завершён.
	EventHungUp
	// EventFailure ошибка установления.
	EventFailure

	eventCount
)

// String возвращает имя события для логов.
func (e DaemonEvent) String() string {
	switch e {
	case EventRinging:
		return "RINGING"
	case EventCurrent:
		return "CURRENT"
	case EventBusy:
		return "BUSY"
	case EventHold:
		return "HOLD"
	case EventHungUp:
		return "HUNGUP"
	case EventFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// ParseDaemonEvent разбирает имя события из сигнала демона.
// UNHOLD-варианты демон шлёт при снятии с удержания, для машины
// состояний это то же самое, что CURRENT.
func ParseDaemonEvent(name string) (DaemonEvent, bool) {
	switch {
	case name == "RINGING":
		return EventRinging, true
	case name == "CURRENT", strings.HasPrefix(name, "UNHOLD"):
		return EventCurrent, true
	case name == "BUSY":
		return EventBusy, true
	case name == "HOLD":
		return EventHold, true
	case name == "HUNGUP":
		return EventHungUp, true
	case name == "FAILURE":
		return EventFailure, true
	default:
		return 0, false
	}
}

// Direction направление звонка.
type Direction int

const (
	// DirectionUnknown направление ещё не определено.
	DirectionUnknown Direction = iota
	// DirectionIncoming входящий.
	DirectionIncoming
	// DirectionOutgoing исходящий.
	DirectionOutgoing
)

// String возвращает имя направления для логов.
func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "INCOMING"
	case DirectionOutgoing:
		return "OUTGOING"
	default:
		return "UNKNOWN"
	}
}

// LifeCycleState мета-состояние жизненного цикла.
type LifeCycleState int

const (
	// LifeCycleInitialization звонок устанавливается.
	LifeCycleInitialization LifeCycleState = iota
	// LifeCycleProgress разговор идёт.
	LifeCycleProgress
	// LifeCycleFinished звонок закончился, состояние терминально.
	LifeCycleFinished
)

// String возвращает имя мета-состояния для логов.
func (l LifeCycleState) String() string {
	switch l {
	case LifeCycleInitialization:
		return "INITIALIZATION"
	case LifeCycleProgress:
		return "PROGRESS"
	case LifeCycleFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// ParseSnapshotState отображает состояние из стартового снимка демона
// в начальное состояние звонка. Неизвестные имена считаются отказом.
func ParseSnapshotState(name string, dir Direction) State {
	switch name {
	case "CURRENT":
		return StateCurrent
	case "HOLD":
		return StateHold
	case "BUSY":
		return StateBusy
	case "INCOMING":
		return StateIncoming
	case "RINGING":
		return StateRinging
	case "INACTIVE":
		if dir == DirectionIncoming {
			return StateIncoming
		}
		return StateRinging
	default:
		return StateFailure
	}
}
