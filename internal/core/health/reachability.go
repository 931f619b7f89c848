package health

import (
	"context"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// ============================================================================
//                              链路可达性覆盖层
// ============================================================================

// LinkDown 本地网络链路断开
//
// 只影响展示状态（offline）与探测跳过，不改变状态和失败计数。
func (m *Monitor) LinkDown() {
	if !m.reachable.Swap(false) {
		return
	}
	m.metrics.setReachable(false)
	logger.Info("网络链路断开")
}

// LinkUp 本地网络链路恢复
//
// 仅在 false→true 边沿生效；每个边沿都发起一次带外探测，
// Healthy 状态下探测成功同样清零失败计数。
func (m *Monitor) LinkUp() {
	if m.reachable.Swap(true) {
		return
	}
	m.metrics.setReachable(true)

	m.mu.Lock()
	kicked := false
	if !m.stopped {
		kicked = m.prober.kick()
	}
	status := m.status
	m.mu.Unlock()

	logger.Info("网络链路恢复", "status", status.String(), "probe", kicked)
}

// Reachable 链路是否可达
func (m *Monitor) Reachable() bool {
	return m.reachable.Load()
}

// WatchLink 消费链路信号源的边沿事件，直到 ctx 结束、信号源关闭或监控器停止
func (m *Monitor) WatchLink(ctx context.Context, sig interfaces.LinkSignal) {
	if sig == nil {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	events := sig.Events()
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				logger.Debug("链路事件", "type", ev.Type.String(), "source", ev.Source)
				switch ev.Type {
				case interfaces.LinkUp:
					m.LinkUp()
				case interfaces.LinkDown:
					m.LinkDown()
				}
			}
		}
	}()
}
