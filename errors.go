package netguard

import "github.com/dep2p/go-netguard/internal/core/health"

// 公共错误定义
var (
	// ErrTimeout 守护调用超时，可用 errors.Is 判断
	ErrTimeout = health.ErrTimeout

	// ErrProbeFailed 恢复探测失败（仅出现在日志中）
	ErrProbeFailed = health.ErrProbeFailed

	// ErrOperationPanic 被守护的操作发生 panic
	ErrOperationPanic = health.ErrOperationPanic

	// ErrMonitorStopped 监控器已停止
	ErrMonitorStopped = health.ErrMonitorStopped

	// ErrInvalidThreshold 阈值不合法
	ErrInvalidThreshold = health.ErrInvalidThreshold
)

// TimeoutError 守护调用超时错误，After 为生效的超时时长
type TimeoutError = health.TimeoutError
