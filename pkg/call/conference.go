package call

import (
	"context"

	"github.com/looplab/fsm"
)

// Состояния конференции. У конференции нет жизненного цикла звонка:
// она либо активна, либо на удержании, либо испорчена.
const (
	ConfStateActive = "active"
	ConfStateHeld   = "held"
	ConfStateError  = "error"
)

// Проволочные имена состояний конференции у демона.
const (
	confWireHold   = "HOLD"
	confWireActive = "ACTIVE_ATTACHED"
)

// newConferenceFSM строит машину активна/на удержании.
// Events: hold, activate, fail.
func newConferenceFSM() *fsm.FSM {
	return fsm.NewFSM(
		ConfStateActive,
		fsm.Events{
			{Name: "hold", Src: []string{ConfStateActive, ConfStateHeld}, Dst: ConfStateHeld},
			{Name: "activate", Src: []string{ConfStateHeld, ConfStateActive}, Dst: ConfStateActive},
			{Name: "fail", Src: []string{ConfStateActive, ConfStateHeld, ConfStateError}, Dst: ConfStateError},
		}, nil,
	)
}

// Conference группа звонков, сведённых демоном в один микс.
//
// Конференция создается только по сообщению демона и не существует
// локально-оптимистично: состав участников всегда сверяется с тем,
// что демон прислал. Как и Call, конференция принадлежит горутине
// движка и мьютексом не защищена.
type Conference struct {
	deps *Dependencies
	log  StructuredLogger

	id      string
	account string
	machine *fsm.FSM

	recording       bool
	secure          bool
	secureConfirmed bool
}

// NewConference создает конференцию по идентификатору демона.
// Аккаунт наследуется от первого разрешённого участника.
func NewConference(deps *Dependencies, id, account string) *Conference {
	logger := deps.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &Conference{
		deps:    deps,
		log:     logger.WithConference(id),
		id:      id,
		account: account,
		machine: newConferenceFSM(),
	}
}

// ID возвращает идентификатор конференции у демона.
func (cf *Conference) ID() string { return cf.id }

// Account возвращает аккаунт конференции.
func (cf *Conference) Account() string { return cf.account }

// State возвращает текущее состояние конференции.
func (cf *Conference) State() string { return cf.machine.Current() }

// Held сообщает, что конференция на удержании.
func (cf *Conference) Held() bool { return cf.machine.Current() == ConfStateHeld }

// Failed сообщает, что конференция испорчена.
func (cf *Conference) Failed() bool { return cf.machine.Current() == ConfStateError }

// Recording сообщает, что конференция пишется.
func (cf *Conference) Recording() bool { return cf.recording }

// ApplyStateName применяет проволочное имя состояния от демона.
// Неизвестное имя переводит конференцию в error.
func (cf *Conference) ApplyStateName(ctx context.Context, name string) error {
	var event string
	switch name {
	case confWireHold:
		event = "hold"
	case confWireActive:
		event = "activate"
	default:
		cf.log.Error(ctx, "неизвестное состояние конференции", String("state_name", name))
		event = "fail"
	}

	if err := cf.machine.Event(ctx, event); err != nil {
		// Повтор того же состояния не ошибка, остальное — дефект машины.
		if _, ok := err.(fsm.NoTransitionError); ok {
			return nil
		}
		cf.log.LogError(ctx, err, "машина состояний конференции отклонила событие",
			String("event", event))
		return err
	}
	if event == "fail" {
		return ErrUnknownConference(cf.id, "unknown state name "+name)
	}
	return nil
}

// setRecordingState обновляет флаг записи по событию демона.
func (cf *Conference) setRecordingState(on bool) {
	cf.recording = on
}

// Secure сообщает, что хотя бы один участник шифрует медиа.
func (cf *Conference) Secure() bool { return cf.secure }

// SecureConfirmed сообщает, что шифрование подтверждено у всех участников.
func (cf *Conference) SecureConfirmed() bool { return cf.secureConfirmed }

// updateSecureFlags пересчитывает флаги шифрования по участникам:
// secure — хотя бы один участник шифрует, secureConfirmed — шифруют
// и подтвердили все.
func (cf *Conference) updateSecureFlags(members []*Call) {
	cf.secure = false
	cf.secureConfirmed = len(members) > 0
	for _, m := range members {
		if m.Secure() {
			cf.secure = true
		}
		if !m.SecureConfirmed() {
			cf.secureConfirmed = false
		}
	}
	if !cf.secure {
		cf.secureConfirmed = false
	}
}
