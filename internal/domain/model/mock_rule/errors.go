package model

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError 规则字段缺失或格式错误 (400)
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on [%s]: %s", strings.Join(e.Fields, ", "), e.Message)
}

func NewValidationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: msg}
}

// ConflictError (owner, path, method) 已被占用 (409)
type ConflictError struct {
	Owner  string
	Path   string
	Method string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rule for %s %s already exists for owner %s", e.Method, e.Path, e.Owner)
}

// NotFoundError 规则不存在 (404)
type NotFoundError struct {
	RuleID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rule %s not found", e.RuleID)
}

// UnsupportedMediaTypeError 请求 Content-Type 与规则不符 (415)
type UnsupportedMediaTypeError struct {
	Expected string
	Actual   string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("Unsupported Media Type. Expected 'Content-Type: %s'", e.Expected)
}

// SynthesisError 模板或条件计算失败，降级为 500
type SynthesisError struct {
	RuleID string
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize response for rule %s: %v", e.RuleID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// RegistryError 规则无法安装到路由表
type RegistryError struct {
	RuleID string
	Method string
	Path   string
	Reason string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("cannot register rule %s (%s %s): %s", e.RuleID, e.Method, e.Path, e.Reason)
}

// IsDomainError 面向调用方的业务错误，不参与重试
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		ce *ConflictError
		ne *NotFoundError
	)
	return errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &ne)
}
