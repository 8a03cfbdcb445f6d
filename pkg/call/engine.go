package call

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arzzra/call_engine/pkg/phonedir"
)

// EngineConfig конфигурация движка звонков.
type EngineConfig struct {
	// Service демон телефонии. Обязателен.
	Service RemoteCallService

	// Directory справочник абонентских адресов.
	// nil означает новый пустой справочник.
	Directory *phonedir.Directory

	// History приёмник журнала завершённых звонков. Может быть nil.
	History HistorySink

	// Logger структурированный логгер. nil означает NoOpLogger.
	Logger StructuredLogger

	// Metrics конфигурация метрик. nil означает DefaultMetricsConfig.
	Metrics *MetricsConfig

	// QueueDepth глубина очереди задач.
	QueueDepth int

	// TickInterval период пересчёта длительности разговоров.
	TickInterval time.Duration

	// Clock источник времени, подменяется в тестах.
	Clock func() time.Time
}

// DefaultEngineConfig возвращает конфигурацию по умолчанию.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		QueueDepth:   256,
		TickInterval: time.Second,
	}
}

// Engine движок звонков: единственный владелец реестра.
//
// Все мутации реестра выполняются на одной горутине, которую
// запускает Start. Внешние события и намерения пользователя
// складываются в очередь задач; публикация неблокирующая, при
// переполненной очереди или остановленном движке задача
// отбрасывается с записью в лог.
type Engine struct {
	cfg   *EngineConfig
	deps  *Dependencies
	log   StructuredLogger
	model *CallModel

	tasks   chan func(ctx context.Context)
	stopped atomic.Bool
}

// NewEngine создает движок по конфигурации.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultEngineConfig()
	}
	if cfg.Service == nil {
		return nil, ErrInvalidConfig("Service", nil, "демон обязателен")
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultEngineConfig().QueueDepth
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultEngineConfig().TickInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	directory := cfg.Directory
	if directory == nil {
		directory = phonedir.NewDirectory()
	}

	deps := &Dependencies{
		Service:   cfg.Service,
		Directory: directory,
		Logger:    logger,
		Metrics:   NewMetricsCollector(cfg.Metrics),
		Clock:     cfg.Clock,
	}

	e := &Engine{
		cfg:   cfg,
		deps:  deps,
		log:   logger.WithComponent("engine"),
		model: NewCallModel(deps, cfg.History),
		tasks: make(chan func(ctx context.Context), cfg.QueueDepth),
	}
	return e, nil
}

// Model возвращает реестр. До Start к нему можно обращаться напрямую
// (настройка, тесты); после Start — только через задачи движка.
func (e *Engine) Model() *CallModel {
	return e.model
}

// Directory возвращает справочник абонентских адресов.
func (e *Engine) Directory() *phonedir.Directory {
	return e.deps.Directory
}

// Start запускает движок и блокируется до отмены контекста.
//
// Внутри работают две горутины: разборщик очереди задач и секундный
// тикер. Реестр трогает только разборщик, тикер лишь подкладывает
// ему задачу.
func (e *Engine) Start(ctx context.Context) error {
	e.log.Info(ctx, "движок запущен")
	defer e.stopped.Store(true)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case task := <-e.tasks:
				task(gctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case now := <-ticker.C:
				e.enqueue(func(ctx context.Context) {
					e.model.Tick(now)
				})
			}
		}
	})

	err := g.Wait()
	e.log.Info(ctx, "движок остановлен")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// enqueue неблокирующая публикация задачи.
func (e *Engine) enqueue(task func(ctx context.Context)) {
	if e.stopped.Load() {
		e.log.Warn(context.Background(), "задача отброшена: движок остановлен")
		return
	}
	select {
	case e.tasks <- task:
	default:
		e.log.Warn(context.Background(), "задача отброшена: очередь переполнена")
		if e.deps.Metrics != nil {
			e.deps.Metrics.DroppedEvent()
		}
	}
}

// Do выполняет произвольную операцию над реестром на горутине движка.
func (e *Engine) Do(op func(ctx context.Context, m *CallModel)) {
	e.enqueue(func(ctx context.Context) {
		op(ctx, e.model)
	})
}

// Bootstrap восстанавливает реестр из стартовых снимков демона.
func (e *Engine) Bootstrap() {
	e.enqueue(func(ctx context.Context) {
		if err := e.model.Bootstrap(ctx); err != nil {
			e.log.LogError(ctx, err, "восстановление из снимка провалилось")
		}
	})
}

// PerformAction применяет действие пользователя к звонку.
func (e *Engine) PerformAction(callID string, a Action) {
	e.enqueue(func(ctx context.Context) {
		c, ok := e.model.Call(callID)
		if !ok {
			e.log.Warn(ctx, "действие для неизвестного звонка",
				String("call_id", callID), String("action", a.String()))
			return
		}
		_ = c.PerformAction(ctx, a)
	})
}

// AppendText дописывает ввод пользователя в активный буфер звонка.
func (e *Engine) AppendText(callID, text string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.AppendText(ctx, callID, text)
	})
}

// BackspaceText стирает последний символ ввода звонка.
func (e *Engine) BackspaceText(callID string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.BackspaceText(ctx, callID)
	})
}

// Transfer слепой перевод звонка.
func (e *Engine) Transfer(callID, target string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.Transfer(ctx, callID, target)
	})
}

// Далее — приём асинхронных событий демона. Каждое событие
// превращается в задачу; порядок внутри очереди сохраняется.

// DeliverCallStateChanged событие смены состояния звонка.
func (e *Engine) DeliverCallStateChanged(callID, eventName string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.HandleCallStateChanged(ctx, callID, eventName)
	})
}

// DeliverIncomingCall сигнал о входящем звонке.
func (e *Engine) DeliverIncomingCall(accountID, callID string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.HandleIncomingCall(ctx, accountID, callID)
	})
}

// DeliverConferenceCreated сигнал о создании конференции.
func (e *Engine) DeliverConferenceCreated(confID string) {
	e.enqueue(func(ctx context.Context) {
		_, _ = e.model.AddConference(ctx, confID)
	})
}

// DeliverConferenceChanged сигнал об изменении конференции.
func (e *Engine) DeliverConferenceChanged(confID, stateName string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.HandleConferenceChanged(ctx, confID, stateName)
	})
}

// DeliverConferenceRemoved сигнал о снятии конференции.
func (e *Engine) DeliverConferenceRemoved(confID string) {
	e.enqueue(func(ctx context.Context) {
		_ = e.model.HandleConferenceRemoved(ctx, confID)
	})
}

// DeliverRecordingStateChanged сигнал о смене состояния записи.
func (e *Engine) DeliverRecordingStateChanged(callID string, on bool) {
	e.enqueue(func(ctx context.Context) {
		e.model.HandleRecordingStateChanged(ctx, callID, on)
	})
}

// DeliverNewRecordingPath сигнал о готовой записи разговора.
func (e *Engine) DeliverNewRecordingPath(callID, path string) {
	e.enqueue(func(ctx context.Context) {
		e.model.HandleNewRecordingPath(ctx, callID, path)
	})
}

// DeliverCommandResult асинхронный исход команды демону.
func (e *Engine) DeliverCommandResult(res CommandResult) {
	e.enqueue(func(ctx context.Context) {
		e.model.HandleCommandResult(ctx, res)
	})
}
