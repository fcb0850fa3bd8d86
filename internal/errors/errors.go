package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 游戏错误 (2000-2999)
	ErrSessionNotFound    ErrorCode = 2000
	ErrGameInProgress     ErrorCode = 2001
	ErrUnauthorized       ErrorCode = 2002
	ErrCannotStart        ErrorCode = 2003
	ErrSessionNotActive   ErrorCode = 2004
	ErrNoAttemptsLeft     ErrorCode = 2005
	ErrAlreadyEnded       ErrorCode = 2006
	ErrPlayerNotInSession ErrorCode = 2007
	ErrSessionExists      ErrorCode = 2008

	// 通信错误 (4000-4999)
	ErrWebSocketConnect ErrorCode = 4000
	ErrWebSocketSend    ErrorCode = 4001
	ErrWebSocketClosed  ErrorCode = 4003
	ErrEventPublish     ErrorCode = 4005
	ErrMessageFormat    ErrorCode = 4007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrConfigMissing  ErrorCode = 6003

	// 安全错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrAuthorization  ErrorCode = 7001
	ErrTokenExpired   ErrorCode = 7002
	ErrTokenInvalid   ErrorCode = 7003
)

// CannotStart 的具体原因
const (
	ReasonNotGM         = "not-gm"
	ReasonWrongState    = "wrong-state"
	ReasonTooFewPlayers = "too-few-players"
	ReasonNoAnswerSet   = "no-answer-set"
)

// 错误码消息映射（面向客户端）
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "Something broke!",
	ErrInvalidParam:     "Invalid parameter.",
	ErrNotFound:         "Resource not found.",
	ErrAlreadyExists:    "Resource already exists.",
	ErrPermissionDenied: "Permission denied.",
	ErrTimeout:          "Operation timed out.",
	ErrCanceled:         "Operation canceled.",
	ErrNotImplemented:   "Not implemented.",

	ErrSessionNotFound:    "Session not found.",
	ErrGameInProgress:     "Game in progress.",
	ErrUnauthorized:       "Unauthorized or session invalid.",
	ErrCannotStart:        "Cannot start game now.",
	ErrSessionNotActive:   "Game not active.",
	ErrNoAttemptsLeft:     "No attempts left.",
	ErrAlreadyEnded:       "Game already ended.",
	ErrPlayerNotInSession: "Player has not joined this session.",
	ErrSessionExists:      "Session already exists.",

	ErrWebSocketConnect: "WebSocket connection failed.",
	ErrWebSocketSend:    "WebSocket send failed.",
	ErrWebSocketClosed:  "WebSocket connection closed.",
	ErrEventPublish:     "Event publish failed.",
	ErrMessageFormat:    "Malformed message.",

	ErrDatabaseConnect: "Database connection failed.",
	ErrDatabaseQuery:   "Database query failed.",
	ErrDatabaseInsert:  "Database insert failed.",

	ErrConfigLoad:     "Failed to load configuration.",
	ErrConfigParse:    "Failed to parse configuration.",
	ErrConfigValidate: "Invalid configuration.",
	ErrConfigMissing:  "Missing configuration.",

	ErrAuthentication: "Authentication failed.",
	ErrAuthorization:  "Authorization failed.",
	ErrTokenExpired:   "Token has expired.",
	ErrTokenInvalid:   "Invalid token.",
}

// cannotStartMessages CannotStart 各原因对应的消息
var cannotStartMessages = map[string]string{
	ReasonNotGM:         "Cannot start game now.",
	ReasonWrongState:    "Cannot start game now.",
	ReasonTooFewPlayers: "Need at least 3 players to start.",
	ReasonNoAnswerSet:   "GM must set a question first.",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`             // 错误码
	Message string       `json:"message"`          // 错误消息
	Details string       `json:"details"`          // 详细信息
	Reason  string       `json:"reason,omitempty"` // 细分原因（如 CannotStart）
	Cause   error        `json:"-"`                // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"`  // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithReason 设置细分原因
func (e *AppError) WithReason(reason string) *AppError {
	e.Reason = reason
	if e.Code == ErrCannotStart {
		if msg, ok := cannotStartMessages[reason]; ok {
			e.Message = msg
		}
	}
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// CannotStart 创建带原因的开局失败错误
func CannotStart(reason string) *AppError {
	return New(ErrCannotStart).WithReason(reason)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// ReasonOf 获取细分原因
func ReasonOf(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Reason
	}
	return ""
}

// MessageOf 获取面向客户端的消息
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Message
	}
	return errorMessages[ErrUnknown]
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/guess-game/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrSessionNotFound || e.Code == ErrNotFound:
		return 404 // Not Found
	case e.Code == ErrUnauthorized || e.Code == ErrPermissionDenied:
		return 403 // Forbidden
	case e.Code == ErrSessionExists || e.Code == ErrAlreadyExists:
		return 409 // Conflict
	case e.Code >= 2000 && e.Code <= 2999:
		return 400 // Bad Request
	case e.Code == ErrInvalidParam || e.Code == ErrMessageFormat:
		return 400
	case e.Code == ErrTimeout:
		return 408 // Request Timeout
	case e.Code >= 7000 && e.Code <= 7003:
		return 401 // Unauthorized
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrTimeout,
		ErrWebSocketConnect,
		ErrEventPublish,
		ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrDatabaseConnect,
		ErrConfigLoad,
		ErrConfigMissing:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err.Message,
		Code:      err.Code,
		Reason:    err.Reason,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
