package call

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arzzra/call_engine/pkg/phonedir"
)

// Dependencies внешние зависимости звонка.
// Заполняются реестром и передаются во все конструкторы.
type Dependencies struct {
	Service   RemoteCallService
	Directory *phonedir.Directory
	Logger    StructuredLogger
	Metrics   *MetricsCollector
	Clock     func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// Call один звонок: конечный автомат плюс атрибуты.
//
// Call не защищён мьютексом: все мутации происходят на горутине
// движка, это единственный владелец. Снаружи допускаются только
// обращения через задачи движка.
type Call struct {
	deps *Dependencies
	log  StructuredLogger

	id        string
	peer      phonedir.Identity
	peerName  string
	account   string
	direction Direction
	state     State

	// Буферы набора: номер и цель перевода.
	dialBuf     *phonedir.Temporary
	transferBuf *phonedir.Temporary

	startedAt     time.Time
	stoppedAt     time.Time
	elapsed       time.Duration
	missed        bool
	recording     bool
	recordingPath string

	secure          bool
	secureConfirmed bool

	// timerActive идемпотентный флаг секундомера разговора,
	// переключается на границах мета-состояний.
	timerActive bool

	// historyDone гарантия ровно одной записи в журнал.
	historyDone bool

	// fromHistory звонок восстановлен из журнала и неизменяем.
	fromHistory bool

	// onChange вызывается реестром после каждой смены состояния.
	onChange func(c *Call, from State)
}

func newCall(deps *Dependencies, id string, state State) *Call {
	c := &Call{
		deps:        deps,
		id:          id,
		state:       state,
		dialBuf:     phonedir.NewTemporary(""),
		transferBuf: phonedir.NewTemporary(""),
	}
	logger := deps.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	c.log = logger.WithCall(id, state)
	c.timerActive = metaState(state) == LifeCycleProgress
	return c
}

// NewDialingCall создает локальную заготовку исходящего звонка.
// Демон не задействуется, пока пользователь не нажмёт «позвонить».
func NewDialingCall(deps *Dependencies, peerName, account string) *Call {
	c := newCall(deps, uuid.NewString(), StateDialing)
	c.peerName = peerName
	c.account = account
	c.direction = DirectionOutgoing
	return c
}

// NewIncomingCall создает звонок из сигнала о входящем вызове.
func NewIncomingCall(deps *Dependencies, id string, details CallDetails) *Call {
	c := newCall(deps, id, StateIncoming)
	c.fillFromDetails(details)
	c.direction = DirectionIncoming
	return c
}

// NewRingingCall создает исходящий звонок, размещённый другим
// клиентом того же демона.
func NewRingingCall(deps *Dependencies, id string, details CallDetails) *Call {
	c := newCall(deps, id, StateRinging)
	c.fillFromDetails(details)
	c.direction = DirectionOutgoing
	return c
}

// NewExistingCall восстанавливает звонок из стартового снимка демона.
func NewExistingCall(deps *Dependencies, id string, details CallDetails) *Call {
	state := ParseSnapshotState(details.State, details.Direction)
	c := newCall(deps, id, state)
	c.fillFromDetails(details)
	c.direction = details.Direction
	c.startedAt = details.StartedAt
	c.recording = details.Recording
	c.recordingPath = details.RecordingPath
	return c
}

// NewHistoryCall восстанавливает завершённый звонок из записи журнала.
// Такой звонок неизменяем и в живое дерево не попадает.
func NewHistoryCall(deps *Dependencies, record HistoryRecord) *Call {
	c := newCall(deps, record.ID, StateOver)
	c.fromHistory = true
	c.historyDone = true
	c.account = record.AccountID
	c.peerName = record.PeerName
	c.direction = record.Direction
	c.missed = record.Missed
	c.startedAt = record.StartedAt
	c.stoppedAt = record.StoppedAt
	c.recordingPath = record.RecordingPath
	if deps.Directory != nil {
		c.peer = deps.Directory.GetNumber(record.PeerURI, record.AccountID)
	}
	return c
}

func (c *Call) fillFromDetails(details CallDetails) {
	c.peerName = details.PeerName
	c.account = details.AccountID
	c.secure = details.Secure
	c.secureConfirmed = details.SecureConfirmed
	if c.deps.Directory != nil {
		c.peer = c.deps.Directory.GetNumber(details.PeerNumber, details.AccountID)
		if details.PeerName != "" {
			c.deps.Directory.AddName(c.peer, details.PeerName)
		}
	}
}

// ID возвращает стабильный идентификатор звонка.
func (c *Call) ID() string { return c.id }

// State возвращает текущее состояние.
func (c *Call) State() State { return c.state }

// LifeCycle возвращает мета-состояние жизненного цикла.
func (c *Call) LifeCycle() LifeCycleState { return metaState(c.state) }

// Direction возвращает направление звонка.
func (c *Call) Direction() Direction { return c.direction }

// Peer возвращает запись справочника для удалённой стороны.
func (c *Call) Peer() phonedir.Identity { return c.peer }

// PeerName возвращает отображаемое имя удалённой стороны.
func (c *Call) PeerName() string { return c.peerName }

// Account возвращает аккаунт звонка.
func (c *Call) Account() string { return c.account }

// StartedAt возвращает момент начала разговора.
func (c *Call) StartedAt() time.Time { return c.startedAt }

// StoppedAt возвращает момент завершения разговора.
func (c *Call) StoppedAt() time.Time { return c.stoppedAt }

// Missed сообщает, что входящий звонок был пропущен.
func (c *Call) Missed() bool { return c.missed }

// Recording сообщает, что звонок пишется.
func (c *Call) Recording() bool { return c.recording }

// RecordingPath возвращает путь к файлу записи.
func (c *Call) RecordingPath() string { return c.recordingPath }

// Secure сообщает, что для звонка согласовано шифрование.
func (c *Call) Secure() bool { return c.secure }

// SecureConfirmed сообщает, что шифрование подтверждено обеими сторонами.
func (c *Call) SecureConfirmed() bool { return c.secureConfirmed }

// FromHistory сообщает, что звонок восстановлен из журнала.
func (c *Call) FromHistory() bool { return c.fromHistory }

// Elapsed возвращает длительность разговора по последнему тику.
func (c *Call) Elapsed() time.Duration { return c.elapsed }

// Length возвращает длительность разговора в формате h:mm:ss
// либо mm:ss для разговоров короче часа.
func (c *Call) Length() string {
	d := c.elapsed
	if d == 0 && !c.startedAt.IsZero() && !c.stoppedAt.IsZero() {
		d = c.stoppedAt.Sub(c.startedAt)
	}
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// PerformAction применяет действие пользователя.
//
// Состояние меняется по таблице действий, затем выполняется эффект
// ячейки. Нарушение жизненного цикла принудительно переводит звонок
// в Error, паники не бывает ни на каком входе.
func (c *Call) PerformAction(ctx context.Context, a Action) error {
	if c.fromHistory {
		err := ErrCallFinished(c.id, a.String())
		c.log.Warn(ctx, "действие над звонком из журнала отклонено", String("action", a.String()))
		return err
	}

	res := actionTransition(c.state, a)
	c.log.Debug(ctx, "действие пользователя",
		String("action", a.String()),
		String("next", res.next.String()),
		String("effect", res.effect.String()))

	if err := c.changeState(ctx, res.next); err != nil {
		return err
	}
	return c.runActionEffect(ctx, res.effect)
}

// ApplyDaemonEvent применяет событие демона.
//
// Пассивный эффект выполняется до смены состояния: вход в Finished
// уведомляет подписчиков, и отметки времени с флагом пропуска к этому
// моменту уже должны стоять.
func (c *Call) ApplyDaemonEvent(ctx context.Context, e DaemonEvent) error {
	if c.fromHistory {
		err := ErrCallFinished(c.id, e.String())
		c.log.Warn(ctx, "событие для звонка из журнала отклонено", String("event", e.String()))
		return err
	}

	res := eventTransition(c.state, e)
	prev := c.state
	c.log.Debug(ctx, "событие демона",
		String("event", e.String()),
		String("next", res.next.String()),
		String("effect", res.effect.String()))

	c.runEventEffect(ctx, res.effect, prev, e)
	return c.applyDaemonState(ctx, res.next)
}

// ApplyDaemonEventName применяет событие демона по его проволочному
// имени. Неизвестное имя — разногласие с демоном, звонок уходит в Error.
func (c *Call) ApplyDaemonEventName(ctx context.Context, name string) error {
	e, ok := ParseDaemonEvent(name)
	if !ok {
		err := NewCallError(
			"UNKNOWN_DAEMON_EVENT",
			fmt.Sprintf("Неизвестное имя события демона: %q", name),
			ErrorCategoryDaemon,
			ErrorSeverityWarning,
		)
		err.CallID = c.id
		err.State = c.state
		c.log.LogError(ctx, err, "неизвестное имя события демона")
		if c.deps.Metrics != nil {
			c.deps.Metrics.DaemonDisagreement()
		}
		c.forceError(ctx)
		return err
	}
	return c.ApplyDaemonEvent(ctx, e)
}

// changeState переводит звонок в state с проверкой жизненного цикла.
// Путь для действий пользователя и локальных решений реестра:
// нарушение матрицы — дефект, звонок принудительно в Error.
func (c *Call) changeState(ctx context.Context, to State) error {
	from := c.state
	if !lifeCycleAllowed(to, metaState(from)) {
		err := ErrInvalidTransition(c.id, from, to, metaState(from))
		c.log.LogError(ctx, err, "нарушение жизненного цикла")
		if c.deps.Metrics != nil {
			c.deps.Metrics.InvalidTransition()
		}
		c.forceError(ctx)
		return err
	}

	c.setState(from, to)
	return nil
}

// applyDaemonState применяет состояние из таблицы событий демона.
//
// Демон — источник истины: движение жизненного цикла вперёд
// применяется даже вне матрицы проверки, с записью в лог. Откат цикла
// назад демону тоже не разрешён — это дефект, звонок принудительно
// в Error.
func (c *Call) applyDaemonState(ctx context.Context, to State) error {
	from := c.state
	if from == to || lifeCycleAllowed(to, metaState(from)) {
		c.setState(from, to)
		return nil
	}

	err := ErrInvalidTransition(c.id, from, to, metaState(from))
	if c.deps.Metrics != nil {
		c.deps.Metrics.InvalidTransition()
	}
	if metaState(to) >= metaState(from) {
		c.log.LogError(ctx, err, "переход вне матрицы проверки, демону верим — применяем")
		c.setState(from, to)
		return nil
	}
	c.log.LogError(ctx, err, "событие демона откатывает жизненный цикл")
	c.forceError(ctx)
	return err
}

// setState безусловная установка состояния с уведомлениями.
func (c *Call) setState(from, to State) {
	c.state = to
	c.updateTimer()
	if c.deps.Metrics != nil && from != to {
		c.deps.Metrics.StateTransition(from, to)
	}
	c.notifyChange(from)
}

// forceError принудительный перевод в Error в обход проверок.
// Единственный путь в Error из Finished.
func (c *Call) forceError(ctx context.Context) {
	from := c.state
	if from == StateError {
		return
	}
	c.log.Error(ctx, "звонок принудительно переведён в ERROR", String("from", from.String()))
	c.setState(from, StateError)
}

func (c *Call) notifyChange(from State) {
	if c.onChange != nil {
		c.onChange(c, from)
	}
}

// updateTimer переключает секундомер на границах мета-состояний.
// Идемпотентен: повторные входы в Progress таймер не перезапускают.
func (c *Call) updateTimer() {
	active := metaState(c.state) == LifeCycleProgress
	if active && !c.timerActive {
		c.timerActive = true
	} else if !active && c.timerActive {
		c.timerActive = false
	}
}

// Tick пересчитывает длительность разговора. Вызывается движком 1 раз
// в секунду, пока звонок в Progress.
func (c *Call) Tick(now time.Time) {
	if !c.timerActive || c.startedAt.IsZero() {
		return
	}
	c.elapsed = now.Sub(c.startedAt)
}

// runActionEffect выполняет эффект ячейки таблицы действий.
// Команды демону асинхронные, немедленная ошибка отправки идёт тем же
// путём, что и асинхронный провал.
func (c *Call) runActionEffect(ctx context.Context, eff actionEffect) error {
	svc := c.deps.Service
	switch eff {
	case effNothing:
		return nil

	case effAccept:
		c.direction = DirectionIncoming
		c.markStarted()
		return c.dispatch(ctx, "accept", svc.Accept(ctx, c.id))

	case effRefuse:
		c.missed = true
		c.markStarted()
		return c.dispatch(ctx, "refuse", svc.Refuse(ctx, c.id))

	case effAcceptTransfer:
		// Перевод до снятия трубки демон не умеет, звонок просто принимается.
		c.log.Warn(ctx, "перевод входящего до ответа не поддерживается")
		c.direction = DirectionIncoming
		c.markStarted()
		return c.dispatch(ctx, "accept", svc.Accept(ctx, c.id))

	case effAcceptHold:
		c.direction = DirectionIncoming
		c.markStarted()
		if err := c.dispatch(ctx, "accept", svc.Accept(ctx, c.id)); err != nil {
			return err
		}
		return c.dispatch(ctx, "hold", svc.Hold(ctx, c.id))

	case effSetRecord:
		return c.dispatch(ctx, "setRecording", svc.SetRecording(ctx, c.id))

	case effHangUp:
		return c.dispatch(ctx, "hangUp", svc.HangUp(ctx, c.id))

	case effPlaceCall:
		return c.placeCall(ctx)

	case effCancel:
		return c.dispatch(ctx, "hangUp", svc.HangUp(ctx, c.id))

	case effHold:
		return c.dispatch(ctx, "hold", svc.Hold(ctx, c.id))

	case effUnhold:
		return c.dispatch(ctx, "unhold", svc.Unhold(ctx, c.id))

	case effRemove:
		// Демону нечего сообщать: реестр снимет звонок сам,
		// увидев терминальное состояние.
		c.log.Debug(ctx, "локальное снятие завершённого звонка")
		return nil

	case effTransfer:
		target := c.transferBuf.Text()
		c.stoppedAt = c.deps.now()
		return c.dispatch(ctx, "transfer", svc.Transfer(ctx, c.id, target))
	}
	return nil
}

// placeCall отправляет исходящий звонок демону.
// Пустой номер — отказ без обращения к демону.
func (c *Call) placeCall(ctx context.Context) error {
	if c.dialBuf.Empty() {
		err := ErrEmptyDialTarget(c.id)
		c.log.LogError(ctx, err, "набор с пустым номером")
		_ = c.changeState(ctx, StateFailure)
		return err
	}

	c.direction = DirectionOutgoing
	if c.deps.Directory != nil {
		c.peer = c.deps.Directory.FromTemporary(c.dialBuf, c.account)
		c.deps.Directory.RecordCall(c.peer, c.deps.now())
	}
	target := c.dialBuf.URI().String()
	return c.dispatch(ctx, "placeCall", c.deps.Service.PlaceCall(ctx, c.account, c.id, target))
}

// runEventEffect выполняет пассивный эффект ячейки таблицы событий.
func (c *Call) runEventEffect(ctx context.Context, eff eventEffect, prev State, e DaemonEvent) {
	switch eff {
	case evNothing:

	case evStart:
		c.markStarted()
		if c.deps.Directory != nil && c.peer.Valid() {
			c.deps.Directory.RecordCall(c.peer, c.deps.now())
		}

	case evStartWeird:
		c.markStarted()
		c.log.Warn(ctx, "разговор начался из неожиданного состояния",
			String("from", prev.String()), String("event", e.String()))

	case evStartStop:
		now := c.deps.now()
		if c.startedAt.IsZero() {
			c.startedAt = now
		}
		c.stoppedAt = now
		if c.direction == DirectionIncoming && prev == StateIncoming {
			c.missed = true
		}
		c.recordTalkTime()

	case evStop:
		c.stoppedAt = c.deps.now()
		c.recordTalkTime()

	case evFailure:
		c.markStarted()
		if c.direction == DirectionIncoming {
			c.missed = true
		}

	case evWarning:
		err := ErrDaemonDisagreement(c.id, prev, e)
		c.log.LogError(ctx, err, "демон не согласен с локальным состоянием")
		if c.deps.Metrics != nil {
			c.deps.Metrics.DaemonDisagreement()
		}

	case evError:
		c.log.Error(ctx, "событие для звонка в состоянии ERROR",
			String("event", e.String()))
	}
}

func (c *Call) markStarted() {
	if c.startedAt.IsZero() {
		c.startedAt = c.deps.now()
	}
}

func (c *Call) recordTalkTime() {
	if c.deps.Directory == nil || !c.peer.Valid() {
		return
	}
	if c.startedAt.IsZero() || c.stoppedAt.Before(c.startedAt) {
		return
	}
	c.deps.Directory.RecordTalkTime(c.peer, int64(c.stoppedAt.Sub(c.startedAt).Seconds()))
}

// dispatch обрабатывает немедленный результат отправки команды.
func (c *Call) dispatch(ctx context.Context, command string, err error) error {
	if err == nil {
		return nil
	}
	return c.CommandFailed(ctx, command, err)
}

// CommandFailed фиксирует провал команды демону и катит звонок
// вперёд: Error для живых звонков, Over для уже завершающихся.
// Назад по жизненному циклу провал команды не возвращает никогда.
func (c *Call) CommandFailed(ctx context.Context, command string, cause error) error {
	err := ErrCommandFailed(c.id, command, cause)
	c.log.LogError(ctx, err, "команда демону провалилась")
	if c.deps.Metrics != nil {
		c.deps.Metrics.CommandFailed(command)
	}

	if metaState(c.state) == LifeCycleFinished {
		if c.state != StateOver && c.state != StateError {
			_ = c.changeState(ctx, StateOver)
		}
	} else {
		c.forceError(ctx)
	}
	return err
}

// AppendText дописывает ввод пользователя в активный буфер:
// цель перевода для состояний перевода, иначе набираемый номер.
func (c *Call) AppendText(s string) {
	if c.state == StateTransferred || c.state == StateTransferHold {
		c.transferBuf.Append(s)
	} else {
		c.dialBuf.Append(s)
	}
}

// Backspace стирает последний символ активного буфера.
// Возвращает false, если стирать уже нечего: для набираемого звонка
// это сигнал реестру завершить заготовку.
func (c *Call) Backspace() bool {
	if c.state == StateTransferred || c.state == StateTransferHold {
		return c.transferBuf.Backspace()
	}
	return c.dialBuf.Backspace()
}

// ResetText очищает активный буфер ввода.
func (c *Call) ResetText() {
	if c.state == StateTransferred || c.state == StateTransferHold {
		c.transferBuf.Reset()
	} else {
		c.dialBuf.Reset()
	}
}

// DialText возвращает набираемый номер.
func (c *Call) DialText() string { return c.dialBuf.Text() }

// SetDialText заменяет набираемый номер целиком.
func (c *Call) SetDialText(s string) { c.dialBuf.SetText(s) }

// TransferText возвращает цель перевода.
func (c *Call) TransferText() string { return c.transferBuf.Text() }

// SetTransferText задаёт цель перевода.
func (c *Call) SetTransferText(s string) { c.transferBuf.SetText(s) }

// setRecordingState обновляет флаг записи по событию демона.
func (c *Call) setRecordingState(on bool) {
	c.recording = on
}

// setRecordingPath запоминает путь готовой записи.
func (c *Call) setRecordingPath(path string) {
	c.recordingPath = path
}

// Snapshot возвращает запись журнала для завершённого звонка.
func (c *Call) Snapshot() HistoryRecord {
	rec := HistoryRecord{
		ID:            c.id,
		PeerName:      c.peerName,
		AccountID:     c.account,
		Direction:     c.direction,
		Missed:        c.missed,
		StartedAt:     c.startedAt,
		StoppedAt:     c.stoppedAt,
		RecordingPath: c.recordingPath,
	}
	if c.peer.Valid() {
		rec.PeerURI = c.peer.URI().String()
		if rec.PeerName == "" {
			rec.PeerName = c.peer.PrimaryName()
		}
	} else {
		rec.PeerURI = c.dialBuf.Text()
	}

	switch {
	case c.missed:
		rec.Classification = HistoryMissed
	case c.direction == DirectionIncoming:
		rec.Classification = HistoryIncoming
	default:
		rec.Classification = HistoryOutgoing
	}
	return rec
}
