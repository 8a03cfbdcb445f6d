package call

import (
	"fmt"
	"time"
)

// ErrorCategory категории ошибок для классификации
type ErrorCategory string

const (
	// ErrorCategoryState недопустимый переход или нарушение жизненного цикла.
	ErrorCategoryState ErrorCategory = "STATE"
	// ErrorCategoryDaemon демон сообщил то, чего по нашим данным быть не может.
	ErrorCategoryDaemon ErrorCategory = "DAEMON"
	// ErrorCategoryCommand асинхронная команда демону завершилась ошибкой.
	ErrorCategoryCommand ErrorCategory = "COMMAND"
	// ErrorCategoryReference событие или операция ссылается на неизвестный id.
	ErrorCategoryReference ErrorCategory = "REFERENCE"
	// ErrorCategoryConfig неверная конфигурация движка.
	ErrorCategoryConfig ErrorCategory = "CONFIG"
)

// String возвращает строковое представление категории ошибки
func (ec ErrorCategory) String() string {
	return string(ec)
}

// ErrorSeverity уровни критичности ошибок
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "CRITICAL" // Критичная ошибка, требует немедленного внимания
	ErrorSeverityError    ErrorSeverity = "ERROR"    // Серьезная ошибка, операция не может быть завершена
	ErrorSeverityWarning  ErrorSeverity = "WARNING"  // Предупреждение, операция может быть продолжена
)

// String возвращает строковое представление уровня критичности
func (es ErrorSeverity) String() string {
	return string(es)
}

// CallError структурированная ошибка с контекстом звонка
type CallError struct {
	Code     string        `json:"code"`     // Уникальный код ошибки
	Message  string        `json:"message"`  // Человекочитаемое сообщение
	Category ErrorCategory `json:"category"` // Категория ошибки
	Severity ErrorSeverity `json:"severity"` // Уровень критичности

	// Контекст ошибки
	CallID    string    `json:"call_id,omitempty"` // Идентификатор звонка
	State     State     `json:"state,omitempty"`   // Состояние на момент ошибки
	Timestamp time.Time `json:"timestamp"`         // Время возникновения

	// Дополнительные поля
	Fields      map[string]interface{} `json:"fields,omitempty"`
	Cause       error                  `json:"-"`
	Retryable   bool                   `json:"retryable"`
	UserVisible bool                   `json:"user_visible"`
}

// Error реализует интерфейс error
func (e *CallError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("[%s:%s] %s (call: %s)", e.Category, e.Code, e.Message, e.CallID)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *CallError) Unwrap() error {
	return e.Cause
}

// WithField добавляет дополнительное поле к ошибке
func (e *CallError) WithField(key string, value interface{}) *CallError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithCause добавляет исходную ошибку
func (e *CallError) WithCause(cause error) *CallError {
	e.Cause = cause
	return e
}

// NewCallError создает новую структурированную ошибку
func NewCallError(code, message string, category ErrorCategory, severity ErrorSeverity) *CallError {
	return &CallError{
		Code:        code,
		Message:     message,
		Category:    category,
		Severity:    severity,
		Timestamp:   time.Now(),
		Fields:      make(map[string]interface{}),
		Retryable:   false,
		UserVisible: severity == ErrorSeverityCritical || severity == ErrorSeverityError,
	}
}

// Предопределенные ошибки для частых случаев

// ErrInvalidTransition недопустимый переход жизненного цикла:
// целевое состояние запрещено текущим мета-состоянием.
func ErrInvalidTransition(callID string, from State, to State, lifeCycle LifeCycleState) *CallError {
	err := NewCallError(
		"INVALID_STATE_TRANSITION",
		fmt.Sprintf("Невалидный переход состояния: %s -> %s (жизненный цикл %s)",
			from.String(), to.String(), lifeCycle.String()),
		ErrorCategoryState,
		ErrorSeverityError,
	).WithField("from_state", from.String()).WithField("to_state", to.String())
	err.CallID = callID
	err.State = from
	return err
}

// ErrCallFinished операция над завершённым звонком.
func ErrCallFinished(callID string, operation string) *CallError {
	err := NewCallError(
		"CALL_FINISHED",
		fmt.Sprintf("Нельзя выполнить операцию '%s': звонок завершён", operation),
		ErrorCategoryState,
		ErrorSeverityWarning,
	).WithField("operation", operation)
	err.CallID = callID
	return err
}

// ErrDaemonDisagreement демон прислал событие, противоречащее
// нашему представлению о звонке.
func ErrDaemonDisagreement(callID string, state State, event DaemonEvent) *CallError {
	err := NewCallError(
		"DAEMON_DISAGREEMENT",
		fmt.Sprintf("Неожиданное событие %s в состоянии %s", event.String(), state.String()),
		ErrorCategoryDaemon,
		ErrorSeverityWarning,
	).WithField("event", event.String())
	err.CallID = callID
	err.State = state
	return err
}

// ErrCommandFailed асинхронная команда демону вернула ошибку.
func ErrCommandFailed(callID string, command string, cause error) *CallError {
	err := NewCallError(
		"COMMAND_FAILED",
		fmt.Sprintf("Команда '%s' завершилась ошибкой", command),
		ErrorCategoryCommand,
		ErrorSeverityError,
	).WithField("command", command).WithCause(cause)
	err.CallID = callID
	err.Retryable = false
	return err
}

// ErrUnknownCall событие или операция для неизвестного звонка.
func ErrUnknownCall(callID string, context string) *CallError {
	err := NewCallError(
		"UNKNOWN_CALL",
		fmt.Sprintf("Звонок не найден (%s)", context),
		ErrorCategoryReference,
		ErrorSeverityWarning,
	).WithField("context", context)
	err.CallID = callID
	return err
}

// ErrUnknownConference операция над неизвестной конференцией.
func ErrUnknownConference(confID string, context string) *CallError {
	return NewCallError(
		"UNKNOWN_CONFERENCE",
		fmt.Sprintf("Конференция %s не найдена (%s)", confID, context),
		ErrorCategoryReference,
		ErrorSeverityWarning,
	).WithField("conf_id", confID).WithField("context", context)
}

// ErrEmptyDialTarget попытка позвонить без набранного номера.
func ErrEmptyDialTarget(callID string) *CallError {
	err := NewCallError(
		"EMPTY_DIAL_TARGET",
		"Попытка позвонить с пустым номером",
		ErrorCategoryState,
		ErrorSeverityWarning,
	)
	err.CallID = callID
	return err
}

// ErrInvalidConfig неверная конфигурация движка.
func ErrInvalidConfig(field string, value interface{}, reason string) *CallError {
	return NewCallError(
		"INVALID_CONFIG",
		fmt.Sprintf("Неверная конфигурация поля '%s': %v (%s)", field, value, reason),
		ErrorCategoryConfig,
		ErrorSeverityError,
	).WithField("field", field).WithField("value", value).WithField("reason", reason)
}

// IsCritical проверяет, является ли ошибка критичной
func IsCritical(err error) bool {
	if ce, ok := err.(*CallError); ok {
		return ce.Severity == ErrorSeverityCritical
	}
	return false
}

// GetErrorCode извлекает код ошибки
func GetErrorCode(err error) string {
	if ce, ok := err.(*CallError); ok {
		return ce.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorCategory извлекает категорию ошибки
func GetErrorCategory(err error) ErrorCategory {
	if ce, ok := err.(*CallError); ok {
		return ce.Category
	}
	return ErrorCategoryState
}
