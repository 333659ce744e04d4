package errs

import (
	"errors"
	"fmt"
)

// ValidationError 请求参数不合法（可由调用方修正后重试）
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation 构造参数错误
func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError 指定的资源不存在
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NotFound 构造资源不存在错误
func NotFound(resource, keyFormat string, args ...any) error {
	return &NotFoundError{Resource: resource, Key: fmt.Sprintf(keyFormat, args...)}
}

// ConflictError 非法的重复操作（例如重复绑定网关引用号）
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflict 构造冲突错误
func Conflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// GatewayError 支付网关调用失败或超时。
// Detail 仅用于服务端日志，对外只返回笼统提示，避免泄露处理器内部信息。
type GatewayError struct {
	Detail string
}

func (e *GatewayError) Error() string { return "payment gateway error: " + e.Detail }

// Gateway 构造网关错误
func Gateway(format string, args ...any) error {
	return &GatewayError{Detail: fmt.Sprintf(format, args...)}
}

// UnauthorizedError 鉴权失败（回调签名不匹配、token 无效等）
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string { return e.Reason }

// Unauthorized 构造鉴权错误
func Unauthorized(format string, args ...any) error {
	return &UnauthorizedError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation 判断是否为参数错误
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound 判断是否为资源不存在
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsConflict 判断是否为冲突错误
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// IsGateway 判断是否为网关错误
func IsGateway(err error) bool {
	var e *GatewayError
	return errors.As(err, &e)
}

// IsUnauthorized 判断是否为鉴权错误
func IsUnauthorized(err error) bool {
	var e *UnauthorizedError
	return errors.As(err, &e)
}
