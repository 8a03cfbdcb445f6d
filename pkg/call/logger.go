package call

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel уровни логирования
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var logLevelNames = map[LogLevel]string{
	LogLevelTrace: "TRACE",
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// LogEntry структура записи лога
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Component string    `json:"component"`

	// Контекст звонка
	CallID string `json:"call_id,omitempty"`
	ConfID string `json:"conf_id,omitempty"`
	State  string `json:"state,omitempty"`

	// Произвольные поля
	Fields map[string]interface{} `json:"fields,omitempty"`

	// Ошибка (если есть)
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorCat  string `json:"error_category,omitempty"`
}

// StructuredLogger интерфейс для структурированного логирования
type StructuredLogger interface {
	Trace(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// Логирование ошибок
	LogError(ctx context.Context, err error, msg string, fields ...Field)

	// Контекстные логгеры
	WithComponent(component string) StructuredLogger
	WithCall(callID string, state State) StructuredLogger
	WithConference(confID string) StructuredLogger
	WithFields(fields ...Field) StructuredLogger

	// Управление уровнем логирования
	SetLevel(level LogLevel)
	IsEnabled(level LogLevel) bool
}

// Field представляет поле лога
type Field struct {
	Key   string
	Value interface{}
}

// Helpers для создания полей
func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Int64(key string, value int64) Field            { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Time(key string, value time.Time) Field         { return Field{key, value} }
func Any(key string, value interface{}) Field        { return Field{key, value} }
func Err(err error) Field                            { return Field{"error", err} }

// DefaultLogger реализация StructuredLogger
type DefaultLogger struct {
	mu        sync.RWMutex
	level     LogLevel
	output    io.Writer
	component string
	fields    map[string]interface{}

	jsonOutput bool
}

// NewDefaultLogger создает новый logger с настройками по умолчанию
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		level:      LogLevelInfo,
		output:     os.Stdout,
		fields:     make(map[string]interface{}),
		jsonOutput: true,
	}
}

// SetLevel устанавливает минимальный уровень логирования
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// IsEnabled проверяет, включен ли уровень логирования
func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *DefaultLogger) clone(fields map[string]interface{}, component string) *DefaultLogger {
	return &DefaultLogger{
		level:      l.level,
		output:     l.output,
		component:  component,
		fields:     fields,
		jsonOutput: l.jsonOutput,
	}
}

// WithComponent создает logger с указанным компонентом
func (l *DefaultLogger) WithComponent(component string) StructuredLogger {
	return l.clone(copyFields(l.fields), component)
}

// WithCall создает logger с контекстом звонка
func (l *DefaultLogger) WithCall(callID string, state State) StructuredLogger {
	fields := copyFields(l.fields)
	fields["call_id"] = callID
	fields["state"] = state.String()
	return l.clone(fields, l.component)
}

// WithConference создает logger с контекстом конференции
func (l *DefaultLogger) WithConference(confID string) StructuredLogger {
	fields := copyFields(l.fields)
	fields["conf_id"] = confID
	return l.clone(fields, l.component)
}

// WithFields создает logger с дополнительными полями
func (l *DefaultLogger) WithFields(fields ...Field) StructuredLogger {
	newFields := copyFields(l.fields)
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}
	return l.clone(newFields, l.component)
}

// Основные методы логирования
func (l *DefaultLogger) Trace(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LogLevelTrace, msg, nil, fields...)
}

func (l *DefaultLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LogLevelDebug, msg, nil, fields...)
}

func (l *DefaultLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LogLevelInfo, msg, nil, fields...)
}

func (l *DefaultLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LogLevelWarn, msg, nil, fields...)
}

func (l *DefaultLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LogLevelError, msg, nil, fields...)
}

// LogError логирует ошибку с дополнительной информацией
func (l *DefaultLogger) LogError(ctx context.Context, err error, msg string, fields ...Field) {
	if err == nil {
		l.Error(ctx, msg, fields...)
		return
	}

	errorFields := append(fields, Err(err))

	// Если это CallError, добавляем структурированный контекст
	if ce, ok := err.(*CallError); ok {
		errorFields = append(errorFields,
			String("error_code", ce.Code),
			String("error_category", string(ce.Category)),
			String("error_severity", string(ce.Severity)),
			Bool("retryable", ce.Retryable),
		)
		for k, v := range ce.Fields {
			errorFields = append(errorFields, Any(k, v))
		}
	}

	l.log(ctx, LogLevelError, msg, err, errorFields...)
}

// log основной метод логирования
func (l *DefaultLogger) log(ctx context.Context, level LogLevel, msg string, err error, fields ...Field) {
	if !l.IsEnabled(level) {
		return
	}
	_ = ctx

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}

	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	// Контекст звонка поднимаем в именованные поля записи
	if v, ok := entry.Fields["call_id"].(string); ok {
		entry.CallID = v
		delete(entry.Fields, "call_id")
	}
	if v, ok := entry.Fields["conf_id"].(string); ok {
		entry.ConfID = v
		delete(entry.Fields, "conf_id")
	}
	if v, ok := entry.Fields["state"].(string); ok {
		entry.State = v
		delete(entry.Fields, "state")
	}

	if err != nil {
		entry.Error = err.Error()
		if ce, ok := err.(*CallError); ok {
			entry.ErrorCode = ce.Code
			entry.ErrorCat = string(ce.Category)
		}
	}

	l.writeEntry(&entry)
}

// writeEntry выводит запись лога
func (l *DefaultLogger) writeEntry(entry *LogEntry) {
	l.mu.RLock()
	output := l.output
	jsonOutput := l.jsonOutput
	l.mu.RUnlock()

	var line string
	if jsonOutput {
		if data, err := json.Marshal(entry); err == nil {
			line = string(data) + "\n"
		} else {
			line = l.formatSimple(entry)
		}
	} else {
		line = l.formatSimple(entry)
	}

	output.Write([]byte(line))
}

// formatSimple форматирует запись в простом читаемом формате
func (l *DefaultLogger) formatSimple(entry *LogEntry) string {
	var parts []string

	parts = append(parts, entry.Timestamp.Format("2006-01-02 15:04:05.000"))
	parts = append(parts, fmt.Sprintf("[%-5s]", entry.Level))

	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Component))
	}
	if entry.CallID != "" {
		parts = append(parts, fmt.Sprintf("call:%s", entry.CallID))
	}
	if entry.ConfID != "" {
		parts = append(parts, fmt.Sprintf("conf:%s", entry.ConfID))
	}

	parts = append(parts, entry.Message)

	if entry.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%s", entry.Error))
	}

	return strings.Join(parts, " ") + "\n"
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// NoOpLogger логгер-заглушка для тестов
type NoOpLogger struct{}

func (NoOpLogger) Trace(ctx context.Context, msg string, fields ...Field)               {}
func (NoOpLogger) Debug(ctx context.Context, msg string, fields ...Field)               {}
func (NoOpLogger) Info(ctx context.Context, msg string, fields ...Field)                {}
func (NoOpLogger) Warn(ctx context.Context, msg string, fields ...Field)                {}
func (NoOpLogger) Error(ctx context.Context, msg string, fields ...Field)               {}
func (NoOpLogger) LogError(ctx context.Context, err error, msg string, fields ...Field) {}
func (NoOpLogger) WithComponent(component string) StructuredLogger                      { return NoOpLogger{} }
func (NoOpLogger) WithCall(callID string, state State) StructuredLogger                 { return NoOpLogger{} }
func (NoOpLogger) WithConference(confID string) StructuredLogger                        { return NoOpLogger{} }
func (NoOpLogger) WithFields(fields ...Field) StructuredLogger                          { return NoOpLogger{} }
func (NoOpLogger) SetLevel(level LogLevel)                                              {}
func (NoOpLogger) IsEnabled(level LogLevel) bool                                        { return false }
