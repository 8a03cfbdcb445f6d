package call

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startCurrentCall регистрирует звонок и доводит его до разговора.
func startCurrentCall(t *testing.T, m *CallModel, daemon *fakeDaemon, id string) *Call {
	t.Helper()
	daemon.setCall(id, CallDetails{PeerNumber: id + "@peer"})
	c, err := m.AddIncomingCall(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, m.HandleCallStateChanged(context.Background(), id, "CURRENT"))
	require.Equal(t, StateCurrent, c.State())
	return c
}

func TestAddCallDuplicateIsDefect(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "c1")
	err := m.AddCall(ctx, NewIncomingCall(m.deps, "c1", CallDetails{}))
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_CALL", GetErrorCode(err))
	assert.Equal(t, 1, m.Size())
}

func TestAddFinishedCallGoesToHistory(t *testing.T) {
	m, _, sink := newTestModel()
	ctx := context.Background()

	c := NewHistoryCall(m.deps, HistoryRecord{ID: "old-1", Direction: DirectionOutgoing})
	c.historyDone = false
	require.NoError(t, m.AddCall(ctx, c))

	assert.Equal(t, 0, m.Size(), "завершённый звонок в дерево не попадает")
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "old-1", sink.all()[0].ID)
}

func TestDialingCallSingleton(t *testing.T) {
	m, _, _ := newTestModel()
	ctx := context.Background()

	first := m.DialingCall(ctx, "", "acc1")
	require.NotNil(t, first)
	second := m.DialingCall(ctx, "", "acc1")
	assert.Same(t, first, second, "заготовка набора одна на реестр")
	assert.Equal(t, 1, m.Size())
}

func TestBackspaceOnEmptyDialEndsCall(t *testing.T) {
	m, _, _ := newTestModel()
	ctx := context.Background()

	c := m.DialingCall(ctx, "", "acc1")
	require.NotNil(t, c)
	require.NoError(t, m.AppendText(ctx, c.ID(), "5"))
	require.NoError(t, m.BackspaceText(ctx, c.ID()))
	assert.Equal(t, 1, m.Size(), "непустой буфер — обычное стирание")

	require.NoError(t, m.BackspaceText(ctx, c.ID()))
	assert.Equal(t, StateOver, c.State())
	assert.Equal(t, 0, m.Size(), "стирание из пустого набора завершает заготовку")
}

func TestHungUpGoesToHistoryExactlyOnce(t *testing.T) {
	m, daemon, sink := newTestModel()
	ctx := context.Background()

	c := startCurrentCall(t, m, daemon, "c1")
	require.NoError(t, m.HandleCallStateChanged(ctx, "c1", "HUNGUP"))

	assert.Equal(t, StateOver, c.State())
	assert.False(t, c.StoppedAt().IsZero())
	assert.Equal(t, 0, m.Size(), "Over снимается с дерева")

	records := sink.all()
	require.Len(t, records, 1, "ровно одна запись в журнале")
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, DirectionIncoming, records[0].Direction)
	assert.Equal(t, HistoryIncoming, records[0].Classification)
	assert.False(t, records[0].StartedAt.IsZero())
	assert.False(t, records[0].StoppedAt.IsZero())

	// Позднее событие для снятого звонка отбрасывается.
	require.NoError(t, m.HandleCallStateChanged(ctx, "c1", "HUNGUP"))
	assert.Len(t, sink.all(), 1)
}

func TestMissedCallHistoryRecord(t *testing.T) {
	m, daemon, sink := newTestModel()
	ctx := context.Background()

	daemon.setCall("c1", CallDetails{PeerNumber: "100@peer"})
	_, err := m.AddIncomingCall(ctx, "c1")
	require.NoError(t, err)

	// Неотвеченный входящий кладут: запись в журнале должна нести
	// флаг пропуска и отметки времени, а не снимок до эффекта события.
	require.NoError(t, m.HandleCallStateChanged(ctx, "c1", "HUNGUP"))

	records := sink.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Missed)
	assert.Equal(t, HistoryMissed, records[0].Classification)
	assert.False(t, records[0].StartedAt.IsZero())
	assert.False(t, records[0].StoppedAt.IsZero())
}

func TestUnknownRingingCreatesCall(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	daemon.setCall("ext-1", CallDetails{PeerNumber: "900"})
	require.NoError(t, m.HandleCallStateChanged(ctx, "ext-1", "RINGING"))

	c, ok := m.Call("ext-1")
	require.True(t, ok, "RINGING для неизвестного id создаёт звонок")
	assert.Equal(t, StateRinging, c.State())
	assert.Equal(t, DirectionOutgoing, c.Direction())
}

func TestUnknownEventDropped(t *testing.T) {
	m, _, _ := newTestModel()
	ctx := context.Background()

	require.NoError(t, m.HandleCallStateChanged(ctx, "ghost", "CURRENT"))
	assert.Equal(t, 0, m.Size())
}

func TestTransferOptimisticCompletion(t *testing.T) {
	m, daemon, sink := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "c1")
	require.NoError(t, m.Transfer(ctx, "c1", "sip:target@pbx"))

	_, ok := m.Call("c1")
	assert.False(t, ok, "перевод завершается локально, не дожидаясь демона")
	assert.Contains(t, daemon.sentCommands(), "transfer:c1:sip:target@pbx")
	assert.Len(t, sink.all(), 1)
}

func TestAttendedTransfer(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "c1")
	startCurrentCall(t, m, daemon, "c2")

	require.NoError(t, m.AttendedTransfer(ctx, "c1", "c2"))
	assert.Contains(t, daemon.sentCommands(), "attendedTransfer:c1:c2")
	assert.Equal(t, 0, m.Size(), "оба плеча завершаются оптимистично")
}

func TestConferenceCreationScenario(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	require.ElementsMatch(t, []string{"A", "B"}, m.TopLevel())

	require.NoError(t, m.CreateConferenceFromCalls(ctx, "A", "B"))
	assert.Contains(t, daemon.sentCommands(), "joinParticipant:A:B")
	// Дерево ещё не изменилось: это запрос, а не мутация.
	require.ElementsMatch(t, []string{"A", "B"}, m.TopLevel())

	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	assert.Equal(t, []string{"conf1"}, m.TopLevel())
	assert.ElementsMatch(t, []string{"A", "B"}, m.Children("conf1"))
	assert.Equal(t, "conf1", m.Parent("A"))
	assert.Equal(t, "conf1", m.Parent("B"))

	cf, ok := m.Conference("conf1")
	require.True(t, ok)
	assert.False(t, cf.Held())
}

func TestReconcileIdempotent(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	require.NoError(t, m.Reconcile(ctx, "conf1", []string{"A", "B"}))
	first := append(m.TopLevel(), m.Children("conf1")...)
	require.NoError(t, m.Reconcile(ctx, "conf1", []string{"A", "B"}))
	second := append(m.TopLevel(), m.Children("conf1")...)

	assert.Equal(t, first, second, "повторная сверка не меняет дерево")
}

func TestReconcileDetachesAbsent(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	startCurrentCall(t, m, daemon, "C")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B", "C")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))
	require.Len(t, m.Children("conf1"), 3)

	// Демон сообщает, что C вышел из конференции.
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	daemon.setCall("C", CallDetails{PeerNumber: "C@peer"})
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	assert.ElementsMatch(t, []string{"A", "B"}, m.Children("conf1"))
	assert.Equal(t, "", m.Parent("C"), "выбывший участник возвращается наверх")
	assert.Contains(t, m.TopLevel(), "C")
}

func TestReconcileEmptyListRemovesConference(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	daemon.dropConference("conf1")
	require.NoError(t, m.Reconcile(ctx, "conf1", nil))

	_, ok := m.Conference("conf1")
	assert.False(t, ok, "пустая конференция снимается целиком")
	assert.ElementsMatch(t, []string{"A", "B"}, m.TopLevel())
}

func TestReconcileSingleParent(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	startCurrentCall(t, m, daemon, "C")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))
	daemon.setConference("conf2", "ACTIVE_ATTACHED", "C")
	_, err := m.AddConference(ctx, "conf2")
	require.NoError(t, err)

	// Демон переводит B из conf1 в conf2.
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A")
	daemon.setConference("conf2", "ACTIVE_ATTACHED", "C", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf2", "ACTIVE_ATTACHED"))

	// У каждого звонка не больше одного родителя.
	assert.Equal(t, "conf2", m.Parent("B"))
	assert.NotContains(t, m.Children("conf1"), "B")

	parents := 0
	for _, confID := range []string{"conf1", "conf2"} {
		for _, child := range m.Children(confID) {
			if child == "B" {
				parents++
			}
		}
	}
	assert.Equal(t, 1, parents)
}

func TestRemoveCallCascadesEmptyConference(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	require.NoError(t, m.RemoveCall(ctx, "A"))
	require.NoError(t, m.RemoveCall(ctx, "B"))

	_, ok := m.Conference("conf1")
	assert.False(t, ok, "опустевшая конференция вычищается каскадно")
	assert.Equal(t, 0, m.Size())
}

func TestRemoveConferenceRestoresChildren(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	require.NoError(t, m.HandleConferenceRemoved(ctx, "conf1"))
	assert.ElementsMatch(t, []string{"A", "B"}, m.TopLevel(),
		"живые участники возвращаются наверх")
}

func TestHungUpInsideConferenceCascades(t *testing.T) {
	m, daemon, sink := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	require.NoError(t, m.HandleCallStateChanged(ctx, "A", "HUNGUP"))
	require.NoError(t, m.HandleCallStateChanged(ctx, "B", "HUNGUP"))

	assert.Equal(t, 0, m.Size(), "после завершения всех участников дерево пусто")
	assert.Len(t, sink.all(), 2)
}

func TestConferenceHoldState(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	require.NoError(t, m.HoldConference(ctx, "conf1"))
	assert.Contains(t, daemon.sentCommands(), "holdConference:conf1")

	daemon.setConference("conf1", "HOLD", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "HOLD"))

	cf, ok := m.Conference("conf1")
	require.True(t, ok)
	assert.True(t, cf.Held())
}

func TestCrossCheckTrustsDaemon(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "A")
	startCurrentCall(t, m, daemon, "B")
	startCurrentCall(t, m, daemon, "C")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	// Демон знает, что C тоже в conf1, хотя отчёт это не упомянул.
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B", "C")
	require.NoError(t, m.Reconcile(ctx, "conf1", []string{"A", "B"}))

	assert.Equal(t, "conf1", m.Parent("C"), "плоский список демона — финальный арбитр")
}

func TestRecordingEvents(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	c := startCurrentCall(t, m, daemon, "c1")
	m.HandleRecordingStateChanged(ctx, "c1", true)
	assert.True(t, c.Recording())

	m.HandleNewRecordingPath(ctx, "c1", "/var/records/c1.wav")
	assert.Equal(t, "/var/records/c1.wav", c.RecordingPath())

	// Неизвестные узлы не роняют обработку.
	m.HandleRecordingStateChanged(ctx, "ghost", true)
	m.HandleNewRecordingPath(ctx, "ghost", "/nowhere")
}

func TestCommandResultForRemovedCallDiscarded(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	startCurrentCall(t, m, daemon, "c1")
	require.NoError(t, m.Transfer(ctx, "c1", "target"))

	// Поздний исход команды для снятого звонка не должен ничего ломать.
	m.HandleCommandResult(ctx, CommandResult{CallID: "c1", Command: "transfer", Err: assert.AnError})
	assert.Equal(t, 0, m.Size())
}

func TestCommandResultFailureRollsCallForward(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	c := startCurrentCall(t, m, daemon, "c1")
	m.HandleCommandResult(ctx, CommandResult{CallID: "c1", Command: "hold", Err: assert.AnError})

	assert.Equal(t, StateError, c.State())
	_, ok := m.Call("c1")
	assert.False(t, ok, "Error снимается с дерева")
}

func TestBootstrap(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	daemon.setCall("A", CallDetails{PeerNumber: "100", State: "CURRENT", Direction: DirectionIncoming})
	daemon.setCall("B", CallDetails{PeerNumber: "200", State: "HOLD", Direction: DirectionOutgoing})
	daemon.setCall("C", CallDetails{PeerNumber: "300", State: "CURRENT", Direction: DirectionOutgoing})
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")

	require.NoError(t, m.Bootstrap(ctx))

	a, ok := m.Call("A")
	require.True(t, ok)
	assert.Equal(t, StateCurrent, a.State())
	b, ok := m.Call("B")
	require.True(t, ok)
	assert.Equal(t, StateHold, b.State())

	assert.Equal(t, "conf1", m.Parent("A"))
	assert.Equal(t, "conf1", m.Parent("B"))
	assert.Equal(t, "", m.Parent("C"))
	assert.ElementsMatch(t, []string{"conf1", "C"}, m.TopLevel())
}

func TestRowEvents(t *testing.T) {
	m, daemon, _ := newTestModel()
	ctx := context.Background()

	var events []RowEvent
	m.AddRowListener(func(ev RowEvent) { events = append(events, ev) })

	startCurrentCall(t, m, daemon, "A")
	require.NotEmpty(t, events)
	assert.Equal(t, RowInserted, events[0].Op)
	assert.Equal(t, "A", events[0].ID)

	events = nil
	startCurrentCall(t, m, daemon, "B")
	daemon.setConference("conf1", "ACTIVE_ATTACHED", "A", "B")
	require.NoError(t, m.HandleConferenceChanged(ctx, "conf1", "ACTIVE_ATTACHED"))

	var moved int
	for _, ev := range events {
		if ev.Op == RowMoved && ev.Parent == "conf1" {
			moved++
		}
	}
	assert.Equal(t, 2, moved, "оба участника переехали под конференцию")

	events = nil
	require.NoError(t, m.HandleCallStateChanged(ctx, "A", "HUNGUP"))
	var sawRemoved bool
	for _, ev := range events {
		if ev.Op == RowRemoved && ev.ID == "A" {
			sawRemoved = true
		}
	}
	assert.True(t, sawRemoved)
}
