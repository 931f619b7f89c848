package netguard

import (
	"context"
	"time"

	"github.com/dep2p/go-netguard/internal/core/health"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// ============================================================================
//                              类型导出
// ============================================================================

// Monitor 连接健康监控器
type Monitor = health.Monitor

// Status 连接状态
type Status = interfaces.ConnectivityStatus

// 连接状态
const (
	StatusHealthy  = interfaces.StatusHealthy
	StatusDegraded = interfaces.StatusDegraded
	StatusDown     = interfaces.StatusDown
)

// EffectiveStatus 叠加链路可达性后的展示状态
type EffectiveStatus = interfaces.EffectiveStatus

// 展示状态
const (
	EffectiveHealthy  = interfaces.EffectiveHealthy
	EffectiveDegraded = interfaces.EffectiveDegraded
	EffectiveDown     = interfaces.EffectiveDown
	EffectiveOffline  = interfaces.EffectiveOffline
)

type (
	// StatusChange 状态变更事件
	StatusChange = interfaces.StatusChange

	// StatusSnapshot 状态快照
	StatusSnapshot = interfaces.StatusSnapshot

	// ChangeReason 状态变更原因
	ChangeReason = interfaces.ChangeReason

	// Prober 恢复探测器
	Prober = interfaces.Prober

	// ProberFunc 函数适配器
	ProberFunc = interfaces.ProberFunc

	// Outcome 自带成功/失败信息的返回值
	Outcome = interfaces.Outcome

	// LinkSignal 链路信号源
	LinkSignal = interfaces.LinkSignal

	// LinkEvent 链路边沿事件
	LinkEvent = interfaces.LinkEvent
)

// ============================================================================
//                              构造
// ============================================================================

// New 创建监控器
//
// 返回的监控器无需 Start 即可记录结果；配置了 LinkSignal 时调用 Start 开始监听。
// 使用完毕后调用 Stop 释放探测定时器。
func New(opts ...Option) (*Monitor, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	monitorOpts := []health.Option{health.WithClock(o.clock)}
	if o.prober != nil {
		monitorOpts = append(monitorOpts, health.WithProber(o.prober))
	}
	if o.registerer != nil {
		metrics, err := health.NewMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		monitorOpts = append(monitorOpts, health.WithMetrics(metrics))
	}
	for _, s := range o.links {
		monitorOpts = append(monitorOpts, health.WithLinkSignal(s))
	}

	return health.NewMonitor(o.config, monitorOpts...)
}

// ============================================================================
//                              守护调用
// ============================================================================

// Result 守护调用结果
type Result[T any] struct {
	Value T
	Err   error
}

// OK 调用是否成功
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Guard 在超时约束下执行 op，并把结果记入 m
//
// timeout <= 0 使用监控器的默认调用超时。超时后 op 继续运行，晚到的结果被丢弃；
// 调用方 ctx 先结束时返回 ctx.Err() 且不计入状态机。
func Guard[T any](ctx context.Context, m *Monitor, op func(context.Context) (T, error), timeout time.Duration) Result[T] {
	r := health.Guard(ctx, m, op, timeout)
	return Result[T]{Value: r.Value, Err: r.Err}
}

// GuardValue 守护不返回 error 的操作，成功与否由值本身（Outcome）决定
func GuardValue[T any](ctx context.Context, m *Monitor, op func(context.Context) T, timeout time.Duration) Result[T] {
	r := health.GuardValue(ctx, m, op, timeout)
	return Result[T]{Value: r.Value, Err: r.Err}
}
