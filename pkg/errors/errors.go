// Package errors 提供会话层统一错误分类与包装辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 哨兵错误：调用方通过 errors.Is 判断类别
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")

	// ErrInvalidOrder 消息序列违反 user/assistant 交替规则
	ErrInvalidOrder = errors.New("invalid message order: messages must alternate starting with a user message")
	// ErrEmptyHistory 对空历史读取最后一条
	ErrEmptyHistory = errors.New("history is empty")
	// ErrUnsupportedStopReason 模型返回了不在白名单内的停止原因
	ErrUnsupportedStopReason = errors.New("unsupported stop reason")
	// ErrUnsupportedFormat 文件扩展名不在允许集合内
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnrecognizedStreamEvent 流事件类型未知
	ErrUnrecognizedStreamEvent = errors.New("unrecognized stream event")
	// ErrMissingDocstring 工具描述缺失
	ErrMissingDocstring = errors.New("tool function is missing a docstring")
)

// UnsupportedStopReasonError 携带模型返回的原始停止原因
type UnsupportedStopReasonError struct {
	Reason string
}

func (e *UnsupportedStopReasonError) Error() string {
	return fmt.Sprintf("unsupported stop reason: %q", e.Reason)
}

// Unwrap 支持 errors.Is(err, ErrUnsupportedStopReason)
func (e *UnsupportedStopReasonError) Unwrap() error { return ErrUnsupportedStopReason }

// UnsupportedFormatError 携带被拒绝的扩展名与内容类别
type UnsupportedFormatError struct {
	Ext  string
	Kind string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("unsupported file format: %q", e.Ext)
	}
	return fmt.Sprintf("unsupported %s format: %q", e.Kind, e.Ext)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// UnrecognizedStreamEventError 携带未知事件类型名
type UnrecognizedStreamEventError struct {
	Kind string
}

func (e *UnrecognizedStreamEventError) Error() string {
	return fmt.Sprintf("unrecognized stream event: %q", e.Kind)
}

func (e *UnrecognizedStreamEventError) Unwrap() error { return ErrUnrecognizedStreamEvent }

// Is 代理标准库，便于调用方只导入本包
func Is(err, target error) bool { return errors.Is(err, target) }

// As 代理标准库
func As(err error, target any) bool { return errors.As(err, target) }

// New 代理标准库
func New(text string) error { return errors.New(text) }

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
