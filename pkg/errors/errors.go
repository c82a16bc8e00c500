package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// 自定义错误类型
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// 预定义错误
var (
	ErrInvalidRequest     = &APIError{Code: http.StatusBadRequest, Message: "Invalid request", Type: "invalid_request"}
	ErrUnauthorized       = &APIError{Code: http.StatusUnauthorized, Message: "Unauthorized", Type: "unauthorized"}
	ErrNotFound           = &APIError{Code: http.StatusNotFound, Message: "Not found", Type: "not_found"}
	ErrInternalServer     = &APIError{Code: http.StatusInternalServerError, Message: "Internal server error", Type: "internal_error"}
	ErrServiceUnavailable = &APIError{Code: http.StatusServiceUnavailable, Message: "Service unavailable", Type: "service_unavailable"}
	ErrTooManyRequests    = &APIError{Code: http.StatusTooManyRequests, Message: "Too many requests", Type: "rate_limit_error"}
)

// 错误创建函数
func NewInvalidRequestError(message string, err error) *APIError {
	return &APIError{
		Code:    http.StatusBadRequest,
		Message: message,
		Type:    "invalid_request",
		Err:     err,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Type:    "unauthorized",
	}
}

func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:    http.StatusNotFound,
		Message: message,
		Type:    "not_found",
	}
}

func NewInternalServerError(message string, err error) *APIError {
	return &APIError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Type:    "internal_error",
		Err:     err,
	}
}

func NewServiceUnavailableError(message string, err error) *APIError {
	return &APIError{
		Code:    http.StatusServiceUnavailable,
		Message: message,
		Type:    "service_unavailable",
		Err:     err,
	}
}

func NewTooManyRequestsError(message string, err error) *APIError {
	return &APIError{
		Code:    http.StatusTooManyRequests,
		Message: message,
		Type:    "rate_limit_error",
		Err:     err,
	}
}

// 配置错误
var (
	ErrConfigLoad       = errors.New("failed to load configuration")
	ErrConfigValidation = errors.New("configuration validation failed")
	ErrMissingProxyKey  = errors.New("PROXY_API_KEY is required")
	ErrInvalidPort      = errors.New("invalid port number")
)

// 代理池错误
var (
	// API key 为空或格式非法，获取候选代理前直接拒绝
	ErrInvalidCredentials = errors.New("invalid proxy provider credentials")
	// 提供商不可达、返回非成功状态或响应无法解析
	ErrFetchFailed = errors.New("proxy fetch failed")
	// 提供商返回了零个候选代理
	ErrEmptyResult = errors.New("proxy provider returned no candidates")
	// 刷新后代理池中仍没有可用代理
	ErrNoProxyAvailable = errors.New("no working proxy available")
	// 代理池持久化失败（内存状态仍然有效）
	ErrStoreIO = errors.New("proxy store io error")
)

// 业务逻辑错误
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrDuplicateTask  = errors.New("task already exists for this url")
	ErrDownloadFailed = errors.New("download failed")
)
