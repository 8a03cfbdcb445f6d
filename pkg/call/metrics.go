package call

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector собирает и экспортирует метрики движка звонков.
//
// Все операции thread-safe: движок вызывает счетчики только из своей
// горутины, но prometheus-коллекторы безопасны и для внешнего чтения.
type MetricsCollector struct {
	callsTotal          *prometheus.CounterVec
	callsActive         prometheus.Gauge
	conferencesActive   prometheus.Gauge
	stateTransitions    *prometheus.CounterVec
	invalidTransitions  prometheus.Counter
	daemonDisagreements prometheus.Counter
	commandFailures     *prometheus.CounterVec
	reconciliations     prometheus.Counter
	historyRecords      prometheus.Counter
	droppedEvents       prometheus.Counter

	enabled bool
}

// MetricsConfig конфигурация системы метрик
type MetricsConfig struct {
	// Enabled включает/выключает сбор метрик
	Enabled bool

	// Namespace префикс для Prometheus метрик
	Namespace string

	// Subsystem подсистема для Prometheus метрик
	Subsystem string

	// Registerer реестр для регистрации коллекторов.
	// nil означает prometheus.DefaultRegisterer; в тестах подставляется
	// отдельный реестр, чтобы не конфликтовать регистрациями.
	Registerer prometheus.Registerer
}

// DefaultMetricsConfig возвращает конфигурацию по умолчанию
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:   true,
		Namespace: "voip",
		Subsystem: "calls",
	}
}

// NewMetricsCollector создает новый сборщик метрик
func NewMetricsCollector(config *MetricsConfig) *MetricsCollector {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if !config.Enabled {
		return &MetricsCollector{enabled: false}
	}

	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	mc := &MetricsCollector{enabled: true}

	mc.callsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "calls_total",
		Help:      "Total number of calls registered, by direction",
	}, []string{"direction"})

	mc.callsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "calls_active",
		Help:      "Number of calls currently in the registry",
	})

	mc.conferencesActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "conferences_active",
		Help:      "Number of conferences currently in the registry",
	})

	mc.stateTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "state_transitions_total",
		Help:      "Call state transitions, by source and target state",
	}, []string{"from", "to"})

	mc.invalidTransitions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "invalid_transitions_total",
		Help:      "Life-cycle violations forcing a call into the error state",
	})

	mc.daemonDisagreements = factory.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "daemon_disagreements_total",
		Help:      "Daemon events that contradicted the local call state",
	})

	mc.commandFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "command_failures_total",
		Help:      "Failed asynchronous daemon commands, by command name",
	}, []string{"command"})

	mc.reconciliations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "reconciliations_total",
		Help:      "Conference membership reconciliations performed",
	})

	mc.historyRecords = factory.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "history_records_total",
		Help:      "Finished calls delivered to the history sink",
	})

	mc.droppedEvents = factory.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "dropped_events_total",
		Help:      "Daemon events dropped because they referenced no known call",
	})

	return mc
}

func (mc *MetricsCollector) CallCreated(dir Direction) {
	if !mc.enabled {
		return
	}
	mc.callsTotal.WithLabelValues(dir.String()).Inc()
	mc.callsActive.Inc()
}

func (mc *MetricsCollector) CallRemoved() {
	if !mc.enabled {
		return
	}
	mc.callsActive.Dec()
}

func (mc *MetricsCollector) ConferenceCreated() {
	if !mc.enabled {
		return
	}
	mc.conferencesActive.Inc()
}

func (mc *MetricsCollector) ConferenceRemoved() {
	if !mc.enabled {
		return
	}
	mc.conferencesActive.Dec()
}

func (mc *MetricsCollector) StateTransition(from, to State) {
	if !mc.enabled {
		return
	}
	mc.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (mc *MetricsCollector) InvalidTransition() {
	if !mc.enabled {
		return
	}
	mc.invalidTransitions.Inc()
}

func (mc *MetricsCollector) DaemonDisagreement() {
	if !mc.enabled {
		return
	}
	mc.daemonDisagreements.Inc()
}

func (mc *MetricsCollector) CommandFailed(command string) {
	if !mc.enabled {
		return
	}
	mc.commandFailures.WithLabelValues(command).Inc()
}

func (mc *MetricsCollector) Reconciliation() {
	if !mc.enabled {
		return
	}
	mc.reconciliations.Inc()
}

func (mc *MetricsCollector) HistoryRecord() {
	if !mc.enabled {
		return
	}
	mc.historyRecords.Inc()
}

func (mc *MetricsCollector) DroppedEvent() {
	if !mc.enabled {
		return
	}
	mc.droppedEvents.Inc()
}
