package call

import (
	"context"
	"sort"
	"time"
)

// node узел арены реестра: либо звонок, либо конференция.
// Единственное авторитетное поле связи — parent; списки детей
// каждый раз выводятся из него заново.
type node struct {
	call *Call
	conf *Conference

	// parent идентификатор конференции-родителя, пустой для
	// узлов верхнего уровня.
	parent string

	// seq порядок вставки для стабильной сортировки дерева.
	seq uint64
}

// CallModel реестр звонков и конференций, владелец всех живых
// экземпляров и двухуровневого дерева.
//
// Все мутации выполняются на горутине движка. Методы реестра не
// берут блокировок: сериализацию обеспечивает очередь задач движка.
type CallModel struct {
	deps    *Dependencies
	log     StructuredLogger
	history HistorySink

	nodes map[string]*node
	seq   uint64

	listeners []RowListener
}

// NewCallModel создает пустой реестр.
func NewCallModel(deps *Dependencies, history HistorySink) *CallModel {
	logger := deps.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &CallModel{
		deps:    deps,
		log:     logger.WithComponent("callmodel"),
		history: history,
		nodes:   make(map[string]*node),
	}
}

// AddRowListener подписывает слой отображения на изменения дерева.
func (m *CallModel) AddRowListener(l RowListener) {
	m.listeners = append(m.listeners, l)
}

func (m *CallModel) emit(ev RowEvent) {
	for _, l := range m.listeners {
		l(ev)
	}
}

// Call возвращает живой звонок по идентификатору.
func (m *CallModel) Call(id string) (*Call, bool) {
	n, ok := m.nodes[id]
	if !ok || n.call == nil {
		return nil, false
	}
	return n.call, true
}

// Conference возвращает живую конференцию по идентификатору.
func (m *CallModel) Conference(id string) (*Conference, bool) {
	n, ok := m.nodes[id]
	if !ok || n.conf == nil {
		return nil, false
	}
	return n.conf, true
}

// Parent возвращает идентификатор конференции-родителя узла.
func (m *CallModel) Parent(id string) string {
	if n, ok := m.nodes[id]; ok {
		return n.parent
	}
	return ""
}

// sortedIDs возвращает идентификаторы узлов, прошедших фильтр,
// в порядке вставки.
func (m *CallModel) sortedIDs(keep func(*node) bool) []string {
	type pair struct {
		id  string
		seq uint64
	}
	var pairs []pair
	for id, n := range m.nodes {
		if keep(n) {
			pairs = append(pairs, pair{id, n.seq})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].seq < pairs[j].seq })
	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.id
	}
	return ids
}

// TopLevel возвращает идентификаторы узлов верхнего уровня.
func (m *CallModel) TopLevel() []string {
	return m.sortedIDs(func(n *node) bool { return n.parent == "" })
}

// Children возвращает идентификаторы участников конференции.
func (m *CallModel) Children(confID string) []string {
	return m.sortedIDs(func(n *node) bool { return n.parent == confID })
}

// childCalls возвращает звонки-участники конференции.
func (m *CallModel) childCalls(confID string) []*Call {
	var calls []*Call
	for _, id := range m.Children(confID) {
		if n := m.nodes[id]; n.call != nil {
			calls = append(calls, n.call)
		}
	}
	return calls
}

// Size возвращает число живых узлов.
func (m *CallModel) Size() int { return len(m.nodes) }

// AddCall регистрирует звонок.
//
// Завершённые звонки в дерево не попадают: они уходят в журнал и
// дальше не отслеживаются. Повторный идентификатор — дефект.
func (m *CallModel) AddCall(ctx context.Context, c *Call) error {
	if c == nil {
		return ErrUnknownCall("", "nil call")
	}
	if _, exists := m.nodes[c.ID()]; exists {
		err := NewCallError(
			"DUPLICATE_CALL",
			"Звонок с таким идентификатором уже зарегистрирован",
			ErrorCategoryReference,
			ErrorSeverityError,
		)
		err.CallID = c.ID()
		m.log.LogError(ctx, err, "дубль при регистрации звонка")
		return err
	}

	if c.LifeCycle() == LifeCycleFinished {
		m.deliverHistory(ctx, c)
		return nil
	}

	m.seq++
	m.nodes[c.ID()] = &node{call: c, seq: m.seq}
	c.onChange = func(c *Call, from State) { m.onCallChanged(ctx, c, from) }
	if m.deps.Metrics != nil {
		m.deps.Metrics.CallCreated(c.Direction())
	}
	m.emit(RowEvent{Op: RowInserted, ID: c.ID()})
	m.log.Info(ctx, "звонок зарегистрирован",
		String("call_id", c.ID()), String("state", c.State().String()))
	return nil
}

// AddIncomingCall создает и регистрирует входящий звонок по сигналу
// демона. Детали добираются из снимка.
func (m *CallModel) AddIncomingCall(ctx context.Context, id string) (*Call, error) {
	if existing, ok := m.Call(id); ok {
		m.log.Warn(ctx, "входящий звонок уже зарегистрирован", String("call_id", id))
		return existing, nil
	}
	details, err := m.deps.Service.GetCallDetails(ctx, id)
	if err != nil {
		m.log.LogError(ctx, err, "не удалось получить детали входящего звонка",
			String("call_id", id))
		details = CallDetails{}
	}
	c := NewIncomingCall(m.deps, id, details)
	if err := m.AddCall(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddRingingCall создает и регистрирует исходящий звонок, размещённый
// другим клиентом демона.
func (m *CallModel) AddRingingCall(ctx context.Context, id string) (*Call, error) {
	if existing, ok := m.Call(id); ok {
		return existing, nil
	}
	details, err := m.deps.Service.GetCallDetails(ctx, id)
	if err != nil {
		m.log.LogError(ctx, err, "не удалось получить детали звонка",
			String("call_id", id))
		details = CallDetails{}
	}
	c := NewRingingCall(m.deps, id, details)
	if err := m.AddCall(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DialingCall возвращает заготовку исходящего звонка, создавая её при
// необходимости. Заготовка одна: повторный запрос возвращает существующую.
func (m *CallModel) DialingCall(ctx context.Context, peerName, account string) *Call {
	for _, n := range m.nodes {
		if n.call != nil && n.call.State() == StateDialing {
			return n.call
		}
	}
	c := NewDialingCall(m.deps, peerName, account)
	if err := m.AddCall(ctx, c); err != nil {
		return nil
	}
	return c
}

// AppendText дописывает ввод пользователя в активный буфер звонка.
func (m *CallModel) AppendText(ctx context.Context, id, text string) error {
	c, ok := m.Call(id)
	if !ok {
		return ErrUnknownCall(id, "appendText")
	}
	c.AppendText(text)
	m.emit(RowEvent{Op: RowUpdated, ID: id, Parent: m.Parent(id)})
	return nil
}

// BackspaceText стирает последний символ активного буфера звонка.
// Стирание из уже пустого буфера набора завершает заготовку.
func (m *CallModel) BackspaceText(ctx context.Context, id string) error {
	c, ok := m.Call(id)
	if !ok {
		return ErrUnknownCall(id, "backspaceText")
	}
	if !c.Backspace() && c.State() == StateDialing {
		m.log.Debug(ctx, "пустой набор стёрт, заготовка завершается", String("call_id", id))
		return c.changeState(ctx, StateOver)
	}
	m.emit(RowEvent{Op: RowUpdated, ID: id, Parent: m.Parent(id)})
	return nil
}

// RemoveCall снимает узел с дерева.
//
// Участники снятой конференции возвращаются на верхний уровень, если
// сами ещё не завершились. Опустевшие конференции вычищаются каскадно
// до неподвижной точки: пустых конференций после операции не остаётся.
func (m *CallModel) RemoveCall(ctx context.Context, id string) error {
	n, ok := m.nodes[id]
	if !ok {
		err := ErrUnknownCall(id, "removeCall")
		m.log.LogError(ctx, err, "снятие неизвестного узла")
		return err
	}

	if n.conf != nil {
		for _, childID := range m.Children(id) {
			child := m.nodes[childID]
			if child.call != nil && child.call.LifeCycle() == LifeCycleFinished {
				m.dropNode(ctx, childID)
				continue
			}
			m.reparent(childID, "")
		}
	}

	m.dropNode(ctx, id)
	m.cleanupConferences(ctx)
	return nil
}

// dropNode удаляет узел без каскада.
func (m *CallModel) dropNode(ctx context.Context, id string) {
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	delete(m.nodes, id)
	if m.deps.Metrics != nil {
		if n.conf != nil {
			m.deps.Metrics.ConferenceRemoved()
		} else {
			m.deps.Metrics.CallRemoved()
		}
	}
	m.emit(RowEvent{Op: RowRemoved, ID: id, Parent: n.parent})
	m.log.Debug(ctx, "узел снят с дерева", String("call_id", id))
}

// reparent меняет родителя узла и уведомляет слой отображения.
func (m *CallModel) reparent(id, parent string) {
	n, ok := m.nodes[id]
	if !ok || n.parent == parent {
		return
	}
	n.parent = parent
	m.emit(RowEvent{Op: RowMoved, ID: id, Parent: parent})
}

// cleanupConferences вычищает конференции без участников и в error
// до неподвижной точки.
func (m *CallModel) cleanupConferences(ctx context.Context) {
	for {
		removed := false
		for id, n := range m.nodes {
			if n.conf == nil {
				continue
			}
			if len(m.Children(id)) == 0 || n.conf.Failed() {
				for _, childID := range m.Children(id) {
					m.reparent(childID, "")
				}
				m.dropNode(ctx, id)
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

// onCallChanged реакция реестра на смену состояния звонка:
// уведомление отображения, журнал на входе в Finished, автоснятие
// терминальных Over/Error.
func (m *CallModel) onCallChanged(ctx context.Context, c *Call, from State) {
	n, ok := m.nodes[c.ID()]
	if !ok {
		return
	}
	m.emit(RowEvent{Op: RowUpdated, ID: c.ID(), Parent: n.parent})

	if c.LifeCycle() == LifeCycleFinished {
		m.deliverHistory(ctx, c)
	}
	if c.State() == StateOver || c.State() == StateError {
		_ = m.RemoveCall(ctx, c.ID())
	}
}

// deliverHistory отдаёт снимок звонка в журнал ровно один раз.
func (m *CallModel) deliverHistory(ctx context.Context, c *Call) {
	if c.historyDone {
		return
	}
	c.historyDone = true
	if m.history == nil {
		return
	}
	m.history.Add(c.Snapshot())
	if m.deps.Metrics != nil {
		m.deps.Metrics.HistoryRecord()
	}
	m.log.Debug(ctx, "звонок передан в журнал", String("call_id", c.ID()))
}

// Transfer слепой перевод звонка на цель.
//
// Завершение оптимистичное: звонок локально уходит в Over, не дожидаясь
// подтверждения демона. Позднее противоречащее событие найдёт звонок
// уже снятым и будет отброшено с записью в лог.
func (m *CallModel) Transfer(ctx context.Context, id string, target string) error {
	c, ok := m.Call(id)
	if !ok {
		err := ErrUnknownCall(id, "transfer")
		m.log.LogError(ctx, err, "перевод неизвестного звонка")
		return err
	}

	c.SetTransferText(target)
	if err := c.PerformAction(ctx, ActionTransfer); err != nil {
		return err
	}
	if err := c.PerformAction(ctx, ActionAccept); err != nil {
		return err
	}
	return c.changeState(ctx, StateOver)
}

// AttendedTransfer сопровождаемый перевод: оба плеча соединяются у
// демона, локально оба звонка оптимистично завершаются.
func (m *CallModel) AttendedTransfer(ctx context.Context, id, otherID string) error {
	c, ok := m.Call(id)
	if !ok {
		return ErrUnknownCall(id, "attendedTransfer")
	}
	other, ok := m.Call(otherID)
	if !ok {
		return ErrUnknownCall(otherID, "attendedTransfer")
	}

	if err := m.deps.Service.AttendedTransfer(ctx, id, otherID); err != nil {
		return c.CommandFailed(ctx, "attendedTransfer", err)
	}
	if err := c.changeState(ctx, StateOver); err != nil {
		return err
	}
	return other.changeState(ctx, StateOver)
}

// CreateConferenceFromCalls просит демона свести два звонка в
// конференцию. Дерево изменится позже, когда демон пришлёт событие.
func (m *CallModel) CreateConferenceFromCalls(ctx context.Context, id, otherID string) error {
	c, ok := m.Call(id)
	if !ok {
		return ErrUnknownCall(id, "createConference")
	}
	if _, ok := m.Call(otherID); !ok {
		return ErrUnknownCall(otherID, "createConference")
	}
	if err := m.deps.Service.JoinParticipant(ctx, id, otherID); err != nil {
		return c.CommandFailed(ctx, "joinParticipant", err)
	}
	return nil
}

// AddParticipant просит демона добавить звонок в конференцию.
func (m *CallModel) AddParticipant(ctx context.Context, callID, confID string) error {
	c, ok := m.Call(callID)
	if !ok {
		return ErrUnknownCall(callID, "addParticipant")
	}
	if _, ok := m.Conference(confID); !ok {
		return ErrUnknownConference(confID, "addParticipant")
	}
	if err := m.deps.Service.AddParticipant(ctx, callID, confID); err != nil {
		return c.CommandFailed(ctx, "addParticipant", err)
	}
	return nil
}

// DetachParticipant просит демона вывести звонок из его конференции.
func (m *CallModel) DetachParticipant(ctx context.Context, callID string) error {
	c, ok := m.Call(callID)
	if !ok {
		return ErrUnknownCall(callID, "detachParticipant")
	}
	if err := m.deps.Service.DetachParticipant(ctx, callID); err != nil {
		return c.CommandFailed(ctx, "detachParticipant", err)
	}
	return nil
}

// MergeConferences просит демона объединить две конференции.
func (m *CallModel) MergeConferences(ctx context.Context, confID, otherConfID string) error {
	if _, ok := m.Conference(confID); !ok {
		return ErrUnknownConference(confID, "mergeConferences")
	}
	if _, ok := m.Conference(otherConfID); !ok {
		return ErrUnknownConference(otherConfID, "mergeConferences")
	}
	return m.deps.Service.JoinConference(ctx, confID, otherConfID)
}

// HoldConference ставит конференцию на удержание.
func (m *CallModel) HoldConference(ctx context.Context, confID string) error {
	if _, ok := m.Conference(confID); !ok {
		return ErrUnknownConference(confID, "holdConference")
	}
	return m.deps.Service.HoldConference(ctx, confID)
}

// UnholdConference снимает конференцию с удержания.
func (m *CallModel) UnholdConference(ctx context.Context, confID string) error {
	if _, ok := m.Conference(confID); !ok {
		return ErrUnknownConference(confID, "unholdConference")
	}
	return m.deps.Service.UnholdConference(ctx, confID)
}

// HangupConference завершает конференцию со всеми участниками.
func (m *CallModel) HangupConference(ctx context.Context, confID string) error {
	if _, ok := m.Conference(confID); !ok {
		return ErrUnknownConference(confID, "hangupConference")
	}
	return m.deps.Service.HangUpConference(ctx, confID)
}

// AddMainParticipant подключает локального участника к конференции.
func (m *CallModel) AddMainParticipant(ctx context.Context, confID string) error {
	if _, ok := m.Conference(confID); !ok {
		return ErrUnknownConference(confID, "addMainParticipant")
	}
	return m.deps.Service.AddMainParticipant(ctx, confID)
}

// AddConference создает конференцию по сообщению демона.
//
// Участники разрешаются в живые звонки; неразрешённый идентификатор —
// предупреждение, а не отказ. Конференция без единого разрешённого
// участника не создается. Аккаунт наследуется от первого участника.
func (m *CallModel) AddConference(ctx context.Context, confID string) (*Conference, error) {
	if existing, ok := m.Conference(confID); ok {
		return existing, nil
	}

	participants, err := m.deps.Service.GetConferenceParticipants(ctx, confID)
	if err != nil {
		m.log.LogError(ctx, err, "не удалось получить участников конференции",
			String("conf_id", confID))
		return nil, err
	}

	var resolved []string
	account := ""
	for _, id := range participants {
		c, ok := m.Call(id)
		if !ok {
			m.log.Warn(ctx, "участник конференции не найден в реестре",
				String("conf_id", confID), String("call_id", id))
			continue
		}
		if account == "" {
			account = c.Account()
		}
		resolved = append(resolved, id)
	}
	if len(resolved) == 0 {
		err := ErrUnknownConference(confID, "no resolvable participants")
		m.log.LogError(ctx, err, "конференция без единого известного участника")
		return nil, err
	}

	cf := NewConference(m.deps, confID, account)
	m.seq++
	m.nodes[confID] = &node{conf: cf, seq: m.seq}
	if m.deps.Metrics != nil {
		m.deps.Metrics.ConferenceCreated()
	}
	m.emit(RowEvent{Op: RowInserted, ID: confID})

	// Сначала открепить от прежних родителей, затем прикрепить сюда.
	for _, id := range resolved {
		m.reparent(id, "")
	}
	for _, id := range resolved {
		m.reparent(id, confID)
	}
	cf.updateSecureFlags(m.childCalls(confID))

	if details, derr := m.deps.Service.GetConferenceDetails(ctx, confID); derr == nil {
		_ = cf.ApplyStateName(ctx, details.State)
		cf.setRecordingState(details.Recording)
	}

	m.log.Info(ctx, "конференция создана",
		String("conf_id", confID), Int("participants", len(resolved)))
	return cf, nil
}

// HandleConferenceChanged обрабатывает событие изменения конференции:
// применяет состояние и сверяет состав участников со снимком демона.
// Неизвестная конференция создается: демон — источник истины.
func (m *CallModel) HandleConferenceChanged(ctx context.Context, confID, stateName string) error {
	cf, ok := m.Conference(confID)
	if !ok {
		var err error
		cf, err = m.AddConference(ctx, confID)
		if err != nil {
			return err
		}
	}

	if err := cf.ApplyStateName(ctx, stateName); err != nil {
		m.cleanupConferences(ctx)
		return err
	}

	participants, err := m.deps.Service.GetConferenceParticipants(ctx, confID)
	if err != nil {
		m.log.LogError(ctx, err, "не удалось получить участников конференции",
			String("conf_id", confID))
		return err
	}
	return m.Reconcile(ctx, confID, participants)
}

// HandleConferenceRemoved обрабатывает снятие конференции демоном.
func (m *CallModel) HandleConferenceRemoved(ctx context.Context, confID string) error {
	if _, ok := m.Conference(confID); !ok {
		m.log.Warn(ctx, "снятие неизвестной конференции", String("conf_id", confID))
		return ErrUnknownConference(confID, "conferenceRemoved")
	}
	return m.RemoveCall(ctx, confID)
}

// Reconcile сверяет состав конференции с отчётом демона.
//
// Шаги: (1) дети, которых нет в отчёте, открепляются на верхний
// уровень, завершённые снимаются совсем; (2) звонки из отчёта
// перевешиваются под конференцию, неизвестные идентификаторы —
// предупреждение; (3) опустевшие конференции вычищаются;
// (4) плоский список демона — финальный арбитр родителей.
// Открепление всегда раньше прикрепления: звонок ни в какой момент
// не числится в двух конференциях. Повторный запуск с теми же
// входами дерева не меняет.
func (m *CallModel) Reconcile(ctx context.Context, confID string, reported []string) error {
	cf, ok := m.Conference(confID)
	if !ok {
		return ErrUnknownConference(confID, "reconcile")
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.Reconciliation()
	}

	reportedSet := make(map[string]bool, len(reported))
	for _, id := range reported {
		reportedSet[id] = true
	}

	// Шаг 1: открепить отсутствующих в отчёте.
	for _, childID := range m.Children(confID) {
		if reportedSet[childID] {
			continue
		}
		child := m.nodes[childID]
		if child.call != nil && child.call.LifeCycle() == LifeCycleFinished {
			m.dropNode(ctx, childID)
			continue
		}
		m.reparent(childID, "")
	}

	// Шаг 2: перевесить заявленных участников.
	for _, id := range reported {
		n, ok := m.nodes[id]
		if !ok || n.call == nil {
			m.log.Warn(ctx, "демон заявил неизвестного участника",
				String("conf_id", confID), String("call_id", id))
			continue
		}
		if n.parent != confID {
			m.reparent(id, "")
			m.reparent(id, confID)
		}
	}

	// Шаг 3: вычистить опустевшие конференции.
	m.cleanupConferences(ctx)

	if _, alive := m.Conference(confID); alive {
		cf.updateSecureFlags(m.childCalls(confID))
	}

	// Шаг 4: сверка с плоским списком звонков демона.
	m.crossCheckCallList(ctx)
	return nil
}

// crossCheckCallList сверяет родителей всех звонков с отчётом демона
// и исправляет расхождения в пользу демона.
func (m *CallModel) crossCheckCallList(ctx context.Context) {
	list, err := m.deps.Service.GetCallList(ctx)
	if err != nil {
		m.log.LogError(ctx, err, "не удалось получить список звонков для сверки")
		return
	}

	for _, id := range list {
		n, ok := m.nodes[id]
		if !ok || n.call == nil {
			continue
		}
		details, derr := m.deps.Service.GetCallDetails(ctx, id)
		if derr != nil {
			continue
		}
		if details.ConfID == n.parent {
			continue
		}
		if details.ConfID == "" {
			m.log.Warn(ctx, "демон считает звонок самостоятельным, исправляем",
				String("call_id", id), String("conf_id", n.parent))
			m.reparent(id, "")
			continue
		}
		if _, ok := m.Conference(details.ConfID); !ok {
			m.log.Warn(ctx, "демон заявил неизвестную конференцию-родителя",
				String("call_id", id), String("conf_id", details.ConfID))
			continue
		}
		m.log.Warn(ctx, "родитель звонка расходится с демоном, исправляем",
			String("call_id", id), String("conf_id", details.ConfID))
		m.reparent(id, "")
		m.reparent(id, details.ConfID)
	}
	m.cleanupConferences(ctx)
}

// HandleCallStateChanged обрабатывает событие смены состояния звонка.
//
// Неизвестный идентификатор с событием RINGING — исходящий звонок,
// размещённый другим клиентом: он регистрируется. Любое другое
// событие для неизвестного идентификатора отбрасывается с записью
// в лог: звонок мог быть снят оптимистично.
func (m *CallModel) HandleCallStateChanged(ctx context.Context, id, eventName string) error {
	c, ok := m.Call(id)
	if !ok {
		if eventName == "RINGING" {
			_, err := m.AddRingingCall(ctx, id)
			return err
		}
		m.log.Warn(ctx, "событие для неизвестного звонка отброшено",
			String("call_id", id), String("event", eventName))
		if m.deps.Metrics != nil {
			m.deps.Metrics.DroppedEvent()
		}
		return nil
	}
	return c.ApplyDaemonEventName(ctx, eventName)
}

// HandleIncomingCall обрабатывает сигнал о входящем звонке.
func (m *CallModel) HandleIncomingCall(ctx context.Context, accountID, id string) error {
	_, err := m.AddIncomingCall(ctx, id)
	_ = accountID
	return err
}

// HandleRecordingStateChanged обновляет флаг записи звонка или
// конференции по событию демона.
func (m *CallModel) HandleRecordingStateChanged(ctx context.Context, id string, on bool) {
	n, ok := m.nodes[id]
	if !ok {
		m.log.Warn(ctx, "состояние записи для неизвестного узла", String("call_id", id))
		return
	}
	if n.call != nil {
		n.call.setRecordingState(on)
	} else {
		n.conf.setRecordingState(on)
	}
	m.emit(RowEvent{Op: RowUpdated, ID: id, Parent: n.parent})
}

// HandleNewRecordingPath запоминает путь готовой записи звонка.
func (m *CallModel) HandleNewRecordingPath(ctx context.Context, id, path string) {
	c, ok := m.Call(id)
	if !ok {
		m.log.Warn(ctx, "путь записи для неизвестного звонка", String("call_id", id))
		return
	}
	c.setRecordingPath(path)
	m.emit(RowEvent{Op: RowUpdated, ID: id, Parent: m.Parent(id)})
}

// HandleCommandResult применяет асинхронный исход команды демону.
// Исход для уже снятого звонка отбрасывается с записью в лог.
func (m *CallModel) HandleCommandResult(ctx context.Context, res CommandResult) {
	c, ok := m.Call(res.CallID)
	if !ok {
		m.log.Debug(ctx, "исход команды для снятого звонка отброшен",
			String("call_id", res.CallID), String("command", res.Command))
		return
	}
	if res.Err == nil {
		return
	}
	_ = c.CommandFailed(ctx, res.Command, res.Err)
}

// Bootstrap восстанавливает реестр из стартовых снимков демона:
// сначала все живые звонки, затем конференции с их участниками.
func (m *CallModel) Bootstrap(ctx context.Context) error {
	callIDs, err := m.deps.Service.GetCallList(ctx)
	if err != nil {
		return err
	}
	for _, id := range callIDs {
		if _, ok := m.Call(id); ok {
			continue
		}
		details, derr := m.deps.Service.GetCallDetails(ctx, id)
		if derr != nil {
			m.log.LogError(ctx, derr, "снимок звонка недоступен", String("call_id", id))
			continue
		}
		c := NewExistingCall(m.deps, id, details)
		if aerr := m.AddCall(ctx, c); aerr != nil {
			m.log.LogError(ctx, aerr, "не удалось восстановить звонок", String("call_id", id))
		}
	}

	confIDs, err := m.deps.Service.GetConferenceList(ctx)
	if err != nil {
		return err
	}
	for _, confID := range confIDs {
		if _, cerr := m.AddConference(ctx, confID); cerr != nil {
			m.log.LogError(ctx, cerr, "не удалось восстановить конференцию",
				String("conf_id", confID))
		}
	}
	return nil
}

// Tick раздаёт секундный тик всем звонкам в разговоре.
func (m *CallModel) Tick(now time.Time) {
	for id, n := range m.nodes {
		if n.call == nil || !n.call.timerActive {
			continue
		}
		n.call.Tick(now)
		m.emit(RowEvent{Op: RowUpdated, ID: id, Parent: n.parent})
	}
}
