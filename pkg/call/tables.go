package call

// actionEffect побочный эффект перехода по действию пользователя.
// Замкнутое перечисление: каждая ячейка таблицы возвращает ровно
// один эффект, интерпретация — в Call.runActionEffect.
type actionEffect int

const (
	effNothing actionEffect = iota
	effAccept
	effRefuse
	effAcceptTransfer
	effAcceptHold
	effSetRecord
	effHangUp
	effPlaceCall
	effCancel
	effHold
	effUnhold
	effRemove
	effTransfer
)

func (e actionEffect) String() string {
	switch e {
	case effNothing:
		return "nothing"
	case effAccept:
		return "accept"
	case effRefuse:
		return "refuse"
	case effAcceptTransfer:
		return "acceptTransfer"
	case effAcceptHold:
		return "acceptHold"
	case effSetRecord:
		return "setRecord"
	case effHangUp:
		return "hangUp"
	case effPlaceCall:
		return "placeCall"
	case effCancel:
		return "cancel"
	case effHold:
		return "hold"
	case effUnhold:
		return "unhold"
	case effRemove:
		return "remove"
	case effTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// eventEffect побочный эффект перехода по событию демона.
// Эффекты событий пассивны: таймеры, отметки времени, флаги.
type eventEffect int

const (
	evNothing eventEffect = iota
	evStart
	evStartWeird
	evStartStop
	evStop
	evFailure
	evWarning
	evError
)

func (e eventEffect) String() string {
	switch e {
	case evNothing:
		return "nothing"
	case evStart:
		return "start"
	case evStartWeird:
		return "startWeird"
	case evStartStop:
		return "startStop"
	case evStop:
		return "stop"
	case evFailure:
		return "failure"
	case evWarning:
		return "warning"
	case evError:
		return "error"
	default:
		return "unknown"
	}
}

// actionResult помеченный результат ячейки таблицы действий.
type actionResult struct {
	next   State
	effect actionEffect
}

// eventResult помеченный результат ячейки таблицы событий.
type eventResult struct {
	next   State
	effect eventEffect
}

// actionTransition возвращает ячейку таблицы действие × состояние.
//
// Оба перечисления замкнуты, внешний и внутренние switch исчерпывающие,
// незаполненных ячеек не существует. Значение вне перечисления —
// дефект вызывающего, ответ на него Error без эффекта.
func actionTransition(s State, a Action) actionResult {
	switch s {
	case StateIncoming:
		switch a {
		case ActionAccept:
			return actionResult{StateIncoming, effAccept}
		case ActionRefuse:
			return actionResult{StateIncoming, effRefuse}
		case ActionTransfer:
			return actionResult{StateError, effAcceptTransfer}
		case ActionHold:
			return actionResult{StateIncoming, effAcceptHold}
		case ActionRecord:
			return actionResult{StateIncoming, effSetRecord}
		}
	case StateRinging:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateRinging, effHangUp}
		case ActionTransfer:
			return actionResult{StateError, effNothing}
		case ActionHold:
			return actionResult{StateError, effNothing}
		case ActionRecord:
			return actionResult{StateRinging, effSetRecord}
		}
	case StateCurrent:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateCurrent, effHangUp}
		case ActionTransfer:
			return actionResult{StateTransferred, effNothing}
		case ActionHold:
			return actionResult{StateCurrent, effHold}
		case ActionRecord:
			return actionResult{StateCurrent, effSetRecord}
		}
	case StateDialing:
		switch a {
		case ActionAccept:
			return actionResult{StateInitializing, effPlaceCall}
		case ActionRefuse:
			return actionResult{StateOver, effCancel}
		case ActionTransfer:
			return actionResult{StateError, effNothing}
		case ActionHold:
			return actionResult{StateError, effNothing}
		case ActionRecord:
			return actionResult{StateError, effNothing}
		}
	case StateHold:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateHold, effHangUp}
		case ActionTransfer:
			return actionResult{StateTransferHold, effNothing}
		case ActionHold:
			return actionResult{StateHold, effUnhold}
		case ActionRecord:
			return actionResult{StateHold, effSetRecord}
		}
	case StateFailure:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateOver, effRemove}
		case ActionTransfer:
			return actionResult{StateError, effNothing}
		case ActionHold:
			return actionResult{StateError, effNothing}
		case ActionRecord:
			return actionResult{StateError, effNothing}
		}
	case StateBusy:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateBusy, effHangUp}
		case ActionTransfer:
			return actionResult{StateError, effNothing}
		case ActionHold:
			return actionResult{StateError, effNothing}
		case ActionRecord:
			return actionResult{StateError, effNothing}
		}
	case StateTransferred:
		switch a {
		case ActionAccept:
			return actionResult{StateTransferred, effTransfer}
		case ActionRefuse:
			return actionResult{StateTransferred, effHangUp}
		case ActionTransfer:
			return actionResult{StateCurrent, effTransfer}
		case ActionHold:
			return actionResult{StateTransferred, effHold}
		case ActionRecord:
			return actionResult{StateTransferred, effSetRecord}
		}
	case StateTransferHold:
		switch a {
		case ActionAccept:
			return actionResult{StateTransferHold, effTransfer}
		case ActionRefuse:
			return actionResult{StateTransferHold, effHangUp}
		case ActionTransfer:
			return actionResult{StateHold, effTransfer}
		case ActionHold:
			return actionResult{StateTransferHold, effUnhold}
		case ActionRecord:
			return actionResult{StateTransferHold, effSetRecord}
		}
	case StateOver:
		switch a {
		case ActionAccept, ActionRefuse, ActionTransfer, ActionHold, ActionRecord:
			return actionResult{StateError, effNothing}
		}
	case StateError:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateError, effRemove}
		case ActionTransfer, ActionHold, ActionRecord:
			return actionResult{StateError, effNothing}
		}
	case StateConference:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateCurrent, effHangUp}
		case ActionTransfer:
			return actionResult{StateTransferred, effNothing}
		case ActionHold:
			return actionResult{StateCurrent, effHold}
		case ActionRecord:
			return actionResult{StateCurrent, effSetRecord}
		}
	case StateConferenceHold:
		switch a {
		case ActionAccept:
			return actionResult{StateError, effNothing}
		case ActionRefuse:
			return actionResult{StateHold, effHangUp}
		case ActionTransfer:
			return actionResult{StateTransferHold, effNothing}
		case ActionHold:
			return actionResult{StateHold, effUnhold}
		case ActionRecord:
			return actionResult{StateHold, effSetRecord}
		}
	case StateInitializing:
		switch a {
		case ActionAccept:
			return actionResult{StateInitializing, effPlaceCall}
		case ActionRefuse:
			return actionResult{StateOver, effCancel}
		case ActionTransfer:
			return actionResult{StateError, effNothing}
		case ActionHold:
			return actionResult{StateError, effNothing}
		case ActionRecord:
			return actionResult{StateError, effNothing}
		}
	}
	return actionResult{StateError, effNothing}
}

// eventTransition возвращает ячейку таблицы событие × состояние.
func eventTransition(s State, e DaemonEvent) eventResult {
	switch s {
	case StateIncoming:
		switch e {
		case EventRinging:
			return eventResult{StateIncoming, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evStart}
		case EventBusy:
			return eventResult{StateBusy, evStartWeird}
		case EventHold:
			return eventResult{StateHold, evStartWeird}
		case EventHungUp:
			return eventResult{StateOver, evStartStop}
		case EventFailure:
			return eventResult{StateFailure, evFailure}
		}
	case StateRinging:
		switch e {
		case EventRinging:
			return eventResult{StateRinging, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evStart}
		case EventBusy:
			return eventResult{StateBusy, evStart}
		case EventHold:
			return eventResult{StateHold, evStart}
		case EventHungUp:
			return eventResult{StateOver, evStartStop}
		case EventFailure:
			return eventResult{StateFailure, evFailure}
		}
	case StateCurrent:
		switch e {
		case EventRinging:
			return eventResult{StateCurrent, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateHold, evNothing}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateDialing:
		switch e {
		case EventRinging:
			return eventResult{StateRinging, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evWarning}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateHold, evWarning}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evWarning}
		}
	case StateHold:
		switch e {
		case EventRinging:
			return eventResult{StateHold, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateHold, evNothing}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateFailure:
		switch e {
		case EventRinging:
			return eventResult{StateFailure, evNothing}
		case EventCurrent:
			return eventResult{StateFailure, evWarning}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateFailure, evWarning}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateBusy:
		switch e {
		case EventRinging:
			return eventResult{StateBusy, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evNothing}
		case EventHold:
			return eventResult{StateBusy, evWarning}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateTransferred:
		switch e {
		case EventRinging:
			return eventResult{StateTransferred, evNothing}
		case EventCurrent:
			return eventResult{StateTransferred, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateTransferHold, evNothing}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateTransferHold:
		switch e {
		case EventRinging:
			return eventResult{StateTransferHold, evNothing}
		case EventCurrent:
			return eventResult{StateTransferred, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateTransferHold, evNothing}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateOver:
		switch e {
		case EventRinging:
			return eventResult{StateOver, evNothing}
		case EventCurrent:
			return eventResult{StateOver, evWarning}
		case EventBusy:
			return eventResult{StateOver, evWarning}
		case EventHold:
			return eventResult{StateOver, evWarning}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateOver, evWarning}
		}
	case StateError:
		switch e {
		case EventRinging:
			return eventResult{StateError, evError}
		case EventCurrent:
			return eventResult{StateError, evError}
		case EventBusy:
			return eventResult{StateError, evError}
		case EventHold:
			return eventResult{StateError, evError}
		case EventHungUp:
			return eventResult{StateError, evStop}
		case EventFailure:
			return eventResult{StateError, evError}
		}
	case StateConference:
		switch e {
		case EventRinging:
			return eventResult{StateCurrent, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateHold, evNothing}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateConferenceHold:
		switch e {
		case EventRinging:
			return eventResult{StateHold, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evNothing}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateHold, evNothing}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evNothing}
		}
	case StateInitializing:
		switch e {
		case EventRinging:
			return eventResult{StateRinging, evNothing}
		case EventCurrent:
			return eventResult{StateCurrent, evWarning}
		case EventBusy:
			return eventResult{StateBusy, evWarning}
		case EventHold:
			return eventResult{StateHold, evWarning}
		case EventHungUp:
			return eventResult{StateOver, evStop}
		case EventFailure:
			return eventResult{StateFailure, evWarning}
		}
	}
	return eventResult{StateError, evError}
}

// metaState отображает состояние в мета-состояние жизненного цикла.
func metaState(s State) LifeCycleState {
	switch s {
	case StateIncoming, StateRinging, StateDialing, StateInitializing:
		return LifeCycleInitialization
	case StateCurrent, StateHold, StateTransferred, StateTransferHold,
		StateConference, StateConferenceHold:
		return LifeCycleProgress
	case StateFailure, StateBusy, StateOver, StateError:
		return LifeCycleFinished
	}
	return LifeCycleFinished
}

// lifeCycleAllowed проверяет допустимость входа в состояние target из
// текущего мета-состояния. Жизненный цикл монотонен: из Finished
// выхода нет (кроме повторного Over), из Progress назад в
// Initialization не возвращаются.
func lifeCycleAllowed(target State, from LifeCycleState) bool {
	switch target {
	case StateIncoming, StateRinging, StateDialing, StateBusy,
		StateConference, StateConferenceHold, StateInitializing:
		return from == LifeCycleInitialization
	case StateCurrent, StateHold, StateFailure, StateError:
		return from == LifeCycleInitialization || from == LifeCycleProgress
	case StateTransferred, StateTransferHold:
		return from == LifeCycleProgress
	case StateOver:
		return true
	}
	return false
}
