package health

import (
	"errors"
	"fmt"
	"time"
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrTimeout 守护调用超时
	ErrTimeout = errors.New("guarded call timed out")

	// ErrProbeFailed 恢复探测失败（仅用于日志与内部判断，不会返回给调用方）
	ErrProbeFailed = errors.New("recovery probe failed")

	// ErrOperationPanic 被守护的操作发生 panic
	ErrOperationPanic = errors.New("guarded operation panicked")

	// ErrSubscriberPanic 订阅回调发生 panic
	ErrSubscriberPanic = errors.New("subscriber callback panicked")

	// ErrMonitorStopped 监控器已停止
	ErrMonitorStopped = errors.New("health monitor stopped")

	// ErrInvalidThreshold 阈值配置无效
	ErrInvalidThreshold = errors.New("invalid health threshold")
)

// TimeoutError 守护调用超时错误
//
// errors.Is(err, ErrTimeout) 为 true。
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrTimeout.Error(), e.After)
}

// Is 支持 errors.Is(err, ErrTimeout)
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Timeout 与 net.Error 约定一致
func (e *TimeoutError) Timeout() bool { return true }

// SubscriberCallbackError 订阅回调失败
//
// 只会被记录，不会传播给触发状态变更的调用方。
type SubscriberCallbackError struct {
	SubscriptionID string
	Err            error
}

func (e *SubscriberCallbackError) Error() string {
	return fmt.Sprintf("subscriber %s: %v", e.SubscriptionID, e.Err)
}

func (e *SubscriberCallbackError) Unwrap() error {
	return e.Err
}
