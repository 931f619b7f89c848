// Package interfaces 定义 netguard 公共接口
//
// 本文件定义连接健康监控接口，对应 internal/core/health/ 实现。
package interfaces

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// 默认阈值
const (
	// DefaultDegradedThreshold 连续失败达到此值进入 Degraded
	DefaultDegradedThreshold = 3

	// DefaultDownThreshold 连续失败达到此值进入 Down
	DefaultDownThreshold = 6
)

// ════════════════════════════════════════════════════════════════════════════
// ConnectivityStatus 连接状态
// ════════════════════════════════════════════════════════════════════════════

// ConnectivityStatus 后端连接状态
//
// 零值为 StatusHealthy，与监控器的初始状态一致。
type ConnectivityStatus int

const (
	// StatusHealthy 健康：最近一次结果为成功，或失败未达到降级阈值
	StatusHealthy ConnectivityStatus = iota

	// StatusDegraded 降级：连续失败达到 DegradedThreshold
	StatusDegraded

	// StatusDown 断开：连续失败达到 DownThreshold
	StatusDown
)

// String 返回状态的字符串表示
func (s ConnectivityStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// IsValid 检查是否为已定义的状态
func (s ConnectivityStatus) IsValid() bool {
	return s >= StatusHealthy && s <= StatusDown
}

// NeedsProbe 非健康状态需要后台探测
func (s ConnectivityStatus) NeedsProbe() bool {
	return s == StatusDegraded || s == StatusDown
}

// MarshalText 实现 encoding.TextMarshaler
func (s ConnectivityStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid connectivity status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *ConnectivityStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseConnectivityStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseConnectivityStatus 解析状态字符串
func ParseConnectivityStatus(v string) (ConnectivityStatus, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "healthy":
		return StatusHealthy, nil
	case "degraded":
		return StatusDegraded, nil
	case "down":
		return StatusDown, nil
	default:
		return StatusHealthy, fmt.Errorf("unknown connectivity status %q", v)
	}
}

// EffectiveStatus 展示用状态
//
// 链路不可达时为 offline，否则与 ConnectivityStatus 相同。
type EffectiveStatus string

const (
	EffectiveHealthy  EffectiveStatus = "healthy"
	EffectiveDegraded EffectiveStatus = "degraded"
	EffectiveDown     EffectiveStatus = "down"
	EffectiveOffline  EffectiveStatus = "offline"
)

// Effective 组合连接状态与链路可达性
func Effective(status ConnectivityStatus, reachable bool) EffectiveStatus {
	if !reachable {
		return EffectiveOffline
	}
	switch status {
	case StatusDegraded:
		return EffectiveDegraded
	case StatusDown:
		return EffectiveDown
	default:
		return EffectiveHealthy
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 状态变更事件与快照
// ════════════════════════════════════════════════════════════════════════════

// ChangeReason 状态变更原因
type ChangeReason int

const (
	ReasonUnknown ChangeReason = iota
	ReasonFailureThreshold
	ReasonSuccess
	ReasonProbeSuccess
	ReasonForced
)

// String 返回原因的字符串表示
func (r ChangeReason) String() string {
	switch r {
	case ReasonFailureThreshold:
		return "failure_threshold"
	case ReasonSuccess:
		return "success"
	case ReasonProbeSuccess:
		return "probe_success"
	case ReasonForced:
		return "forced"
	default:
		return "unknown"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (r ChangeReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，未知值解析为 ReasonUnknown
func (r *ChangeReason) UnmarshalText(text []byte) error {
	switch string(text) {
	case "failure_threshold":
		*r = ReasonFailureThreshold
	case "success":
		*r = ReasonSuccess
	case "probe_success":
		*r = ReasonProbeSuccess
	case "forced":
		*r = ReasonForced
	default:
		*r = ReasonUnknown
	}
	return nil
}

// StatusChange 状态变更事件
type StatusChange struct {
	Current   ConnectivityStatus `json:"current"`
	Previous  ConnectivityStatus `json:"previous"`
	Reason    ChangeReason       `json:"reason"`
	Failures  uint64             `json:"consecutive_failures"`
	Timestamp time.Time          `json:"timestamp"`
}

// StatusSnapshot 状态快照（值拷贝，不持有内部引用）
type StatusSnapshot struct {
	Status              ConnectivityStatus `json:"status"`
	Effective           EffectiveStatus    `json:"effective"`
	ConsecutiveFailures uint64             `json:"consecutive_failures"`
	LastSuccessAt       time.Time          `json:"last_success_at"`
	LastFailureAt       time.Time          `json:"last_failure_at,omitempty"`
	LastChangeAt        time.Time          `json:"last_change_at"`
	TotalSuccesses      uint64             `json:"total_successes"`
	TotalFailures       uint64             `json:"total_failures"`
	Reachable           bool               `json:"reachable"`
	ProbeActive         bool               `json:"probe_active"`
}

// ════════════════════════════════════════════════════════════════════════════
// 外部协作者
// ════════════════════════════════════════════════════════════════════════════

// Outcome 携带自身成功/失败信息的结果
//
// 被守护调用返回的值实现此接口时，OutcomeErr 非 nil 即视为失败。
type Outcome interface {
	OutcomeErr() error
}

// Prober 轻量可达性探测
//
// 返回 nil 表示一次成功的往返。实现应遵守 ctx 的截止时间。
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc 函数适配器
type ProberFunc func(ctx context.Context) error

// Probe 调用 f(ctx)
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// LinkEventType 链路事件类型
type LinkEventType int

const (
	// LinkUp 链路恢复
	LinkUp LinkEventType = iota
	// LinkDown 链路断开
	LinkDown
)

// String 返回事件类型字符串
func (t LinkEventType) String() string {
	switch t {
	case LinkUp:
		return "up"
	case LinkDown:
		return "down"
	default:
		return "unknown"
	}
}

// LinkEvent 链路边沿事件
type LinkEvent struct {
	Type      LinkEventType
	Source    string
	Timestamp time.Time
}

// LinkSignal 链路信号源（操作系统网卡变化、平台在线/离线回调等）
type LinkSignal interface {
	Events() <-chan LinkEvent
}

// ════════════════════════════════════════════════════════════════════════════
// HealthMonitor 接口
// ════════════════════════════════════════════════════════════════════════════

// HealthMonitor 连接健康监控接口
//
// 实现位置：internal/core/health/
type HealthMonitor interface {
	Start(ctx context.Context) error
	Stop() error

	RecordSuccess()
	RecordFailure()
	RecordOutcome(err error)

	GetStatus() StatusSnapshot
	IsHealthy() bool
	EffectiveStatus() EffectiveStatus
	Thresholds() (degraded, down int)

	// OnStatusChange 注册回调，返回取消订阅函数（可重复调用）
	OnStatusChange(cb func(StatusChange)) (unsubscribe func())

	LinkUp()
	LinkDown()

	// ForceStatus 仅用于测试与诊断
	ForceStatus(status ConnectivityStatus)
}
