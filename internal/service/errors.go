package service

import (
	"errors"
	"fmt"
)

// 错误分类：校验失败、前置条件缺失、生成端失败、持久化失败。
// 这一层不吞错误，唯一"静默"路径是 DismissSuggestion（用户主动行为，不是失败）。

// ValidationError 输入不合法
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("输入不合法: %s (%s)", e.Field, e.Reason)
}

// PreconditionError 操作的前置条件不满足（如没有分析结果、没有生效计划）。
// UI 对此的正确反应是隐藏/禁用入口，而不是重试。
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("前置条件不满足: 缺少%s", e.Missing)
}

// ProviderError 计划生成端失败，原始错误原样携带，生效计划保持不变
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("计划生成失败: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PersistenceError 存储层读写失败
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("存储操作失败 (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrAdjustmentInFlight 同类型计划已有调整在进行中
var ErrAdjustmentInFlight = errors.New("该类型计划的调整正在进行中")
