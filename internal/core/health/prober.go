package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// probeFlightKey singleflight 键：同一时刻至多一个探测在途
const probeFlightKey = "probe"

// ============================================================================
//                              恢复探测器
// ============================================================================

// recoveryProber 非健康期间的周期探测
//
// 至多存在一个 ticker。start/stop 由 Monitor 在持有 mu 时调用，
// stop 不等待探测 goroutine（它可能正是调用 RecordSuccess 的那一个）。
type recoveryProber struct {
	mon    *Monitor
	prober interfaces.Prober

	clock   clock.Clock
	timeout time.Duration
	limiter *rate.Limiter
	flight  singleflight.Group

	mu       sync.Mutex
	ticker   *clock.Ticker
	interval time.Duration
	cancel   context.CancelFunc
	deferred *clock.Timer
	closed   bool

	// 统计（测试与诊断）
	live   atomic.Int32
	starts atomic.Int64
	ticks  atomic.Int64
}

func newRecoveryProber(m *Monitor) *recoveryProber {
	return &recoveryProber{mon: m}
}

// init 在选项应用之后读取时钟与配置
func (p *recoveryProber) init() {
	p.clock = p.mon.clock
	p.timeout = p.mon.config.ProbeTimeout
	p.limiter = rate.NewLimiter(rate.Every(p.mon.config.LinkUpProbeInterval), 1)
}

// start 启动周期探测；已运行时只在间隔变化时重置 ticker
func (p *recoveryProber) start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prober == nil || p.closed {
		return
	}
	if p.ticker != nil {
		if p.interval != interval {
			p.ticker.Reset(interval)
			p.interval = interval
			logger.Debug("调整恢复探测间隔", "interval", interval)
		}
		return
	}

	ctx, cancel := context.WithCancel(p.mon.ctx)
	t := p.clock.Ticker(interval)
	p.ticker = t
	p.interval = interval
	p.cancel = cancel
	p.live.Add(1)
	p.starts.Add(1)

	p.mon.wg.Add(1)
	go p.loop(ctx, t)

	logger.Debug("恢复探测已启动", "interval", interval)
}

// stop 停止周期探测，未运行时为空操作
func (p *recoveryProber) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *recoveryProber) stopLocked() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	p.cancel()
	p.ticker = nil
	p.cancel = nil
	p.interval = 0
	p.live.Add(-1)

	logger.Debug("恢复探测已停止")
}

// close 永久停止，之后 start 为空操作
func (p *recoveryProber) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	if p.deferred != nil && p.deferred.Stop() {
		p.mon.wg.Done()
	}
	p.deferred = nil
	p.closed = true
}

// active 是否存在存活的 ticker
func (p *recoveryProber) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

// kick 链路恢复时执行一次带外探测
//
// 每个 LinkUp 边沿都会得到一次探测，不会被丢弃：间隔窗口内的恢复
// 合并为窗口重开时的一次延迟探测，届时按最新的可达状态执行。
// 由 Monitor 在持有 mu 时调用。
func (p *recoveryProber) kick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prober == nil || p.closed {
		return false
	}
	if p.deferred != nil {
		logger.Debug("链路恢复探测已排队，合并")
		return true
	}

	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)

	p.mon.wg.Add(1)
	if delay <= 0 {
		go func() {
			defer p.mon.wg.Done()
			p.tick(p.mon.ctx)
		}()
		return true
	}

	p.deferred = p.clock.AfterFunc(delay, func() {
		defer p.mon.wg.Done()
		p.mu.Lock()
		p.deferred = nil
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return
		}
		p.tick(p.mon.ctx)
	})
	logger.Debug("链路恢复探测延迟执行", "delay", delay)
	return true
}

// pendingKick 是否存在排队中的链路恢复探测
func (p *recoveryProber) pendingKick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deferred != nil
}

// loop 探测循环
func (p *recoveryProber) loop(ctx context.Context, t *clock.Ticker) {
	defer p.mon.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			p.tick(ctx)
		}
	}
}

// tick 执行一次探测
//
// 链路不可达时跳过：既不发起探测也不计失败。探测失败不增加失败计数，
// 真实调用的失败已经反映了故障，重复计数会放大同一次中断。
func (p *recoveryProber) tick(ctx context.Context) {
	p.ticks.Add(1)

	if !p.mon.reachable.Load() {
		p.mon.metrics.probe("skipped")
		logger.Debug("链路不可达，跳过恢复探测")
		return
	}

	if err := p.probeOnce(ctx); err != nil {
		p.mon.metrics.probe("failure")
		logger.Debug("恢复探测失败", "error", fmt.Errorf("%w: %w", ErrProbeFailed, err))
		return
	}

	p.mon.metrics.probe("success")
	logger.Debug("恢复探测成功")
	p.mon.recordSuccess(interfaces.ReasonProbeSuccess)
}

// probeOnce 执行一次有界探测
//
// 探测通过 singleflight 合并：上一次探测挂起时，本次等待同一个结果
// 而不是再发起一个，等待时间同样以 timeout 为上限。
func (p *recoveryProber) probeOnce(ctx context.Context) error {
	timer := p.clock.Timer(p.timeout)
	defer timer.Stop()

	ch := p.flight.DoChan(probeFlightKey, func() (any, error) {
		probeCtx, cancel := context.WithTimeout(p.mon.ctx, p.timeout)
		defer cancel()
		return nil, safeProbe(probeCtx, p.prober)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-timer.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// safeProbe 调用探测器，panic 视为失败
func safeProbe(ctx context.Context, prober interfaces.Prober) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return prober.Probe(ctx)
}
