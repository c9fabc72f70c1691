package service

import (
	"errors"
	"fmt"
	"time"
)

// ── 通用业务错误 ──

// ErrValidation 所有参数校验错误的根错误，handler 统一映射为 400
var ErrValidation = errors.New("参数校验失败")

// ValidationError 字段级校验错误，在任何状态变更之前返回
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ── 时间格式 ──

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
