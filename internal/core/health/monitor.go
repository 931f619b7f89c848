package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netguard/pkg/interfaces"
	"github.com/dep2p/go-netguard/pkg/lib/log"
)

var logger = log.Logger("core/health")

// ============================================================================
//                              Monitor
// ============================================================================

// Monitor 连接健康状态机
//
// 所有计数与状态变更在 mu 下串行执行；探测器的启停也在同一把锁下完成，
// 保证存活的探测器始终与当前状态一致。
type Monitor struct {
	mu sync.Mutex

	config *Config
	clock  clock.Clock

	// 健康记录
	status         interfaces.ConnectivityStatus
	failures       uint64
	lastSuccessAt  time.Time
	lastFailureAt  time.Time
	lastChangeAt   time.Time
	totalSuccesses uint64
	totalFailures  uint64

	// 链路覆盖层（与状态机正交）
	reachable atomic.Bool

	registry *Registry
	prober   *recoveryProber
	metrics  *Metrics

	// 待分发的状态变更；第一个进入 flush 的调用者负责按序排空
	pending     []interfaces.StatusChange
	dispatching bool

	links []interfaces.LinkSignal

	// 运行状态
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// 确保实现接口
var _ interfaces.HealthMonitor = (*Monitor)(nil)

// Option 监控器选项
type Option func(*Monitor)

// WithClock 注入时钟（测试使用 clock.NewMock()）
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithProber 设置恢复探测器
//
// 未设置时非健康状态不会启动后台探测，只能依靠真实调用的成功恢复。
func WithProber(p interfaces.Prober) Option {
	return func(m *Monitor) {
		m.prober.prober = p
	}
}

// WithMetrics 设置指标
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// WithLinkSignal 添加链路信号源，Start 时开始监听
func WithLinkSignal(s interfaces.LinkSignal) Option {
	return func(m *Monitor) {
		if s != nil {
			m.links = append(m.links, s)
		}
	}
}

// NewMonitor 创建监控器
//
// 无需 Start 即可记录结果；Start 只负责开始监听链路信号源。
func NewMonitor(config *Config, opts ...Option) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		config: config,
		clock:  clock.New(),
		status: interfaces.StatusHealthy,
		ctx:    ctx,
		cancel: cancel,
	}
	m.prober = newRecoveryProber(m)
	m.reachable.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	m.lastChangeAt = m.clock.Now()
	m.registry = NewRegistry(m.metrics)
	m.prober.init()
	return m, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 开始监听已配置的链路信号源
//
// 后台任务绑定在监控器自身的生命周期上，不依赖传入的 ctx
// （fx 的 OnStart ctx 在启动完成后即被取消）。
func (m *Monitor) Start(_ context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrMonitorStopped
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	links := m.links
	m.mu.Unlock()

	for _, s := range links {
		m.WatchLink(m.ctx, s)
	}

	logger.Info("健康监控器已启动",
		"degraded_threshold", m.config.DegradedThreshold,
		"down_threshold", m.config.DownThreshold,
		"probe_interval", m.config.ProbeInterval,
		"links", len(links))
	return nil
}

// Stop 停止探测器与链路监听，等待后台 goroutine 退出
//
// 停止后仍可记录结果与查询状态，但不会再启动探测。
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.prober.close()
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	logger.Info("健康监控器已停止")
	return nil
}

// ============================================================================
//                              结果上报
// ============================================================================

// RecordSuccess 记录一次成功
//
// 计数清零；非 Healthy 时立即回到 Healthy。已 Healthy 时不产生事件。
func (m *Monitor) RecordSuccess() {
	m.recordSuccess(interfaces.ReasonSuccess)
}

// RecordFailure 记录一次失败
func (m *Monitor) RecordFailure() {
	now := m.clock.Now()

	m.mu.Lock()
	m.failures++
	m.totalFailures++
	m.lastFailureAt = now
	failures := m.failures

	prev := m.status
	next := prev
	switch {
	case failures >= uint64(m.config.DownThreshold) && prev != interfaces.StatusDown:
		next = interfaces.StatusDown
	case failures >= uint64(m.config.DegradedThreshold) && prev == interfaces.StatusHealthy:
		next = interfaces.StatusDegraded
	}
	changed := next != prev
	if changed {
		m.transitionLocked(next, interfaces.ReasonFailureThreshold, now)
	}
	m.mu.Unlock()

	m.metrics.outcome(false, failures)
	if changed {
		m.flush()
	}
}

// RecordOutcome nil 记为成功，否则记为失败
func (m *Monitor) RecordOutcome(err error) {
	if err != nil {
		m.RecordFailure()
		return
	}
	m.RecordSuccess()
}

func (m *Monitor) recordSuccess(reason interfaces.ChangeReason) {
	now := m.clock.Now()

	m.mu.Lock()
	m.failures = 0
	m.totalSuccesses++
	m.lastSuccessAt = now
	changed := m.status != interfaces.StatusHealthy
	if changed {
		m.transitionLocked(interfaces.StatusHealthy, reason, now)
	}
	m.mu.Unlock()

	m.metrics.outcome(true, 0)
	if changed {
		m.flush()
	}
}

// ForceStatus 直接设置状态，绕过阈值计数
//
// 仅用于测试与诊断：连续失败计数保持不变。
func (m *Monitor) ForceStatus(status interfaces.ConnectivityStatus) {
	if !status.IsValid() {
		logger.Warn("忽略无效的强制状态", "status", int(status))
		return
	}

	m.mu.Lock()
	changed := m.status != status
	if changed {
		m.transitionLocked(status, interfaces.ReasonForced, m.clock.Now())
	}
	m.mu.Unlock()

	if changed {
		m.flush()
	}
}

// ============================================================================
//                              状态查询
// ============================================================================

// GetStatus 返回状态快照
func (m *Monitor) GetStatus() interfaces.StatusSnapshot {
	reachable := m.reachable.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	return interfaces.StatusSnapshot{
		Status:              m.status,
		Effective:           interfaces.Effective(m.status, reachable),
		ConsecutiveFailures: m.failures,
		LastSuccessAt:       m.lastSuccessAt,
		LastFailureAt:       m.lastFailureAt,
		LastChangeAt:        m.lastChangeAt,
		TotalSuccesses:      m.totalSuccesses,
		TotalFailures:       m.totalFailures,
		Reachable:           reachable,
		ProbeActive:         m.prober.active(),
	}
}

// Status 返回当前连接状态
func (m *Monitor) Status() interfaces.ConnectivityStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsHealthy 状态为 Healthy 且链路可达
func (m *Monitor) IsHealthy() bool {
	return m.reachable.Load() && m.Status() == interfaces.StatusHealthy
}

// EffectiveStatus 展示用状态，链路不可达时为 offline
func (m *Monitor) EffectiveStatus() interfaces.EffectiveStatus {
	return interfaces.Effective(m.Status(), m.reachable.Load())
}

// Thresholds 返回降级与断开阈值
func (m *Monitor) Thresholds() (degraded, down int) {
	return m.config.DegradedThreshold, m.config.DownThreshold
}

// ============================================================================
//                              订阅
// ============================================================================

// OnStatusChange 注册状态变更回调，返回取消订阅函数
func (m *Monitor) OnStatusChange(cb func(interfaces.StatusChange)) func() {
	sub := m.registry.Subscribe(cb)
	return sub.Unsubscribe
}

// Registry 返回订阅注册表
func (m *Monitor) Registry() *Registry {
	return m.registry
}

// ============================================================================
//                              内部方法
// ============================================================================

// transitionLocked 执行状态转换（调用方持有 mu）
func (m *Monitor) transitionLocked(next interfaces.ConnectivityStatus, reason interfaces.ChangeReason, now time.Time) {
	prev := m.status
	m.status = next
	m.lastChangeAt = now

	if next.NeedsProbe() {
		m.prober.start(m.config.intervalFor(next))
	} else {
		m.prober.stop()
	}

	m.metrics.transition(prev, next)
	m.pending = append(m.pending, interfaces.StatusChange{
		Current:   next,
		Previous:  prev,
		Reason:    reason,
		Failures:  m.failures,
		Timestamp: now,
	})
}

// flush 按产生顺序分发待通知的状态变更
//
// 回调中再次记录结果产生的新变更会追加到队列，由当前分发者继续投递，
// 不会重入死锁。
func (m *Monitor) flush() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()

		for _, change := range batch {
			logger.Info("连接状态变更",
				"previous", change.Previous.String(),
				"current", change.Current.String(),
				"reason", change.Reason.String(),
				"failures", change.Failures)
			m.registry.dispatch(change)
		}

		m.mu.Lock()
	}
	m.dispatching = false
	m.mu.Unlock()
}
