package call

import (
	"context"
	"fmt"
	"sync"
)

// fakeDaemon тестовый демон: запоминает команды и отдаёт заранее
// подготовленные снимки.
type fakeDaemon struct {
	mu sync.Mutex

	// Журнал отправленных команд в формате "command:args".
	commands []string

	// failCommands команды, которые должны немедленно провалиться.
	failCommands map[string]error

	callList     []string
	callDetails  map[string]CallDetails
	confList     []string
	confDetails  map[string]ConferenceDetails
	participants map[string][]string
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		failCommands: make(map[string]error),
		callDetails:  make(map[string]CallDetails),
		confDetails:  make(map[string]ConferenceDetails),
		participants: make(map[string][]string),
	}
}

func (f *fakeDaemon) record(command string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := command
	for _, a := range args {
		entry += fmt.Sprintf(":%v", a)
	}
	f.commands = append(f.commands, entry)
	if err, ok := f.failCommands[command]; ok {
		return err
	}
	return nil
}

func (f *fakeDaemon) sentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	copy(out, f.commands)
	return out
}

func (f *fakeDaemon) Accept(ctx context.Context, callID string) error {
	return f.record("accept", callID)
}

func (f *fakeDaemon) Refuse(ctx context.Context, callID string) error {
	return f.record("refuse", callID)
}

func (f *fakeDaemon) HangUp(ctx context.Context, callID string) error {
	return f.record("hangUp", callID)
}

func (f *fakeDaemon) Hold(ctx context.Context, callID string) error {
	return f.record("hold", callID)
}

func (f *fakeDaemon) Unhold(ctx context.Context, callID string) error {
	return f.record("unhold", callID)
}

func (f *fakeDaemon) PlaceCall(ctx context.Context, accountID, callID, target string) error {
	return f.record("placeCall", accountID, callID, target)
}

func (f *fakeDaemon) Transfer(ctx context.Context, callID, target string) error {
	return f.record("transfer", callID, target)
}

func (f *fakeDaemon) AttendedTransfer(ctx context.Context, callID, otherCallID string) error {
	return f.record("attendedTransfer", callID, otherCallID)
}

func (f *fakeDaemon) SetRecording(ctx context.Context, callID string) error {
	return f.record("setRecording", callID)
}

func (f *fakeDaemon) JoinParticipant(ctx context.Context, callID, otherCallID string) error {
	return f.record("joinParticipant", callID, otherCallID)
}

func (f *fakeDaemon) AddParticipant(ctx context.Context, callID, confID string) error {
	return f.record("addParticipant", callID, confID)
}

func (f *fakeDaemon) AddMainParticipant(ctx context.Context, confID string) error {
	return f.record("addMainParticipant", confID)
}

func (f *fakeDaemon) DetachParticipant(ctx context.Context, callID string) error {
	return f.record("detachParticipant", callID)
}

func (f *fakeDaemon) JoinConference(ctx context.Context, confID, otherConfID string) error {
	return f.record("joinConference", confID, otherConfID)
}

func (f *fakeDaemon) HoldConference(ctx context.Context, confID string) error {
	return f.record("holdConference", confID)
}

func (f *fakeDaemon) UnholdConference(ctx context.Context, confID string) error {
	return f.record("unholdConference", confID)
}

func (f *fakeDaemon) HangUpConference(ctx context.Context, confID string) error {
	return f.record("hangUpConference", confID)
}

func (f *fakeDaemon) GetCallList(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.callList))
	copy(out, f.callList)
	return out, nil
}

func (f *fakeDaemon) GetCallDetails(ctx context.Context, callID string) (CallDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.callDetails[callID]
	if !ok {
		return CallDetails{}, fmt.Errorf("call %s not found", callID)
	}
	return d, nil
}

func (f *fakeDaemon) GetConferenceList(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.confList))
	copy(out, f.confList)
	return out, nil
}

func (f *fakeDaemon) GetConferenceDetails(ctx context.Context, confID string) (ConferenceDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.confDetails[confID]
	if !ok {
		return ConferenceDetails{}, fmt.Errorf("conference %s not found", confID)
	}
	return d, nil
}

func (f *fakeDaemon) GetConferenceParticipants(ctx context.Context, confID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[confID]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(p))
	copy(out, p)
	return out, nil
}

// setCall настраивает снимок звонка у демона.
func (f *fakeDaemon) setCall(id string, details CallDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callDetails[id] = details
	for _, existing := range f.callList {
		if existing == id {
			return
		}
	}
	f.callList = append(f.callList, id)
}

// setConference настраивает снимок конференции и родителей участников.
func (f *fakeDaemon) setConference(id string, state string, participantIDs ...string) {
	f.mu.Lock()
	f.confDetails[id] = ConferenceDetails{State: state}
	f.participants[id] = participantIDs
	found := false
	for _, existing := range f.confList {
		if existing == id {
			found = true
			break
		}
	}
	if !found {
		f.confList = append(f.confList, id)
	}
	for _, pid := range participantIDs {
		d := f.callDetails[pid]
		d.ConfID = id
		f.callDetails[pid] = d
	}
	f.mu.Unlock()
}

// dropConference убирает конференцию из снимков демона.
func (f *fakeDaemon) dropConference(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.confDetails, id)
	delete(f.participants, id)
	for i, existing := range f.confList {
		if existing == id {
			f.confList = append(f.confList[:i], f.confList[i+1:]...)
			break
		}
	}
	for pid, d := range f.callDetails {
		if d.ConfID == id {
			d.ConfID = ""
			f.callDetails[pid] = d
		}
	}
}

// collectingSink копит записи журнала для проверок.
type collectingSink struct {
	mu      sync.Mutex
	records []HistoryRecord
}

func (s *collectingSink) Add(record HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *collectingSink) all() []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// newTestModel собирает реестр с тестовым демоном и журналом.
func newTestModel() (*CallModel, *fakeDaemon, *collectingSink) {
	daemon := newFakeDaemon()
	sink := &collectingSink{}
	deps := &Dependencies{
		Service:   daemon,
		Directory: nil,
		Logger:    NoOpLogger{},
		Metrics:   NewMetricsCollector(&MetricsConfig{Enabled: false}),
	}
	return NewCallModel(deps, sink), daemon, sink
}

// newTestDeps зависимости для одиночных звонков в тестах.
func newTestDeps(daemon *fakeDaemon) *Dependencies {
	return &Dependencies{
		Service: daemon,
		Logger:  NoOpLogger{},
		Metrics: NewMetricsCollector(&MetricsConfig{Enabled: false}),
	}
}
