package main

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-netguard/config"
	"github.com/dep2p/go-netguard/internal/core/health"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// heartbeatInterval 心跳间隔，0 表示使用 health.probe_interval
type heartbeatInterval time.Duration

// ============================================================================
//                              心跳
// ============================================================================

// heartbeat 周期执行一次守护探测，把结果记入状态机
//
// 状态机只从调用结果中学习；独立运行时心跳充当业务流量。
// 链路断开期间跳过，不让离线时段污染失败计数。
type heartbeat struct {
	monitor  *health.Monitor
	prober   interfaces.Prober
	clock    clock.Clock
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (h *heartbeat) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	// ticker 先于 goroutine 创建
	ticker := h.clock.Ticker(h.interval)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()

		h.beat(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.beat(ctx)
			}
		}
	}()
}

func (h *heartbeat) stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

func (h *heartbeat) beat(ctx context.Context) {
	if !h.monitor.Reachable() {
		logger.Debug("链路断开，跳过心跳")
		return
	}
	res := health.Guard(ctx, h.monitor, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.prober.Probe(ctx)
	}, 0)
	if res.Err != nil && ctx.Err() == nil {
		logger.Debug("心跳失败", "error", res.Err)
	}
}

// heartbeatParams 心跳依赖参数
type heartbeatParams struct {
	fx.In

	LC       fx.Lifecycle
	Config   *config.Config
	Monitor  *health.Monitor
	Prober   interfaces.Prober `optional:"true"`
	Clock    clock.Clock       `optional:"true"`
	Interval heartbeatInterval `optional:"true"`
}

// registerHeartbeat 未配置探测器时不启动心跳
func registerHeartbeat(p heartbeatParams) {
	if p.Prober == nil {
		return
	}

	interval := time.Duration(p.Interval)
	if interval <= 0 {
		interval = p.Config.Health.ProbeInterval.Duration()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	h := &heartbeat{
		monitor:  p.Monitor,
		prober:   p.Prober,
		clock:    clk,
		interval: interval,
	}
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			h.start()
			return nil
		},
		OnStop: func(context.Context) error {
			h.stop()
			return nil
		},
	})
}
