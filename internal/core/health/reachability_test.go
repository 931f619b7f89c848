package health

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// linkSource 测试用链路信号源
type linkSource chan interfaces.LinkEvent

func (s linkSource) Events() <-chan interfaces.LinkEvent { return s }

// TestReachability_OfflineOverridesHealthy 链路断开时展示状态为 offline
func TestReachability_OfflineOverridesHealthy(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	rec := record(m)

	m.LinkDown()
	assert.Equal(t, interfaces.EffectiveOffline, m.EffectiveStatus())
	assert.False(t, m.IsHealthy())
	assert.Equal(t, interfaces.StatusHealthy, m.Status())

	m.LinkUp()
	assert.Equal(t, interfaces.EffectiveHealthy, m.EffectiveStatus())
	assert.True(t, m.IsHealthy())

	assert.Zero(t, rec.len(), "reachability changes do not notify")
}

// TestReachability_CountersUntouched 链路变化不改变状态与计数
func TestReachability_CountersUntouched(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	failN(m, 4)
	m.LinkDown()
	m.LinkDown()

	snap := m.GetStatus()
	assert.Equal(t, interfaces.StatusDegraded, snap.Status)
	assert.Equal(t, interfaces.EffectiveOffline, snap.Effective)
	assert.Equal(t, uint64(4), snap.ConsecutiveFailures)
	assert.False(t, snap.Reachable)

	m.LinkUp()
	assert.Equal(t, interfaces.EffectiveDegraded, m.EffectiveStatus())
}

// TestReachability_LinkUpTriggersProbe 链路恢复且非健康时立即探测一次
func TestReachability_LinkUpTriggersProbe(t *testing.T) {
	p := newCountingProber()
	m, _, _ := newTestMonitor(t, nil, WithProber(p))

	failN(m, 3)
	m.LinkDown()
	m.LinkUp()

	require.Eventually(t, func() bool {
		return m.Status() == interfaces.StatusHealthy
	}, waitFor, pollEvery)
	assert.Equal(t, int64(1), p.calls.Load())
}

// TestReachability_LinkUpWhileHealthy 健康时链路恢复同样检查一次并清零计数
func TestReachability_LinkUpWhileHealthy(t *testing.T) {
	p := newCountingProber()
	m, _, _ := newTestMonitor(t, nil, WithProber(p))
	rec := record(m)

	failN(m, 2)
	m.LinkDown()
	m.LinkUp()

	require.Eventually(t, func() bool {
		return m.GetStatus().ConsecutiveFailures == 0
	}, waitFor, pollEvery)
	assert.Equal(t, int64(1), p.calls.Load())
	assert.Equal(t, interfaces.StatusHealthy, m.Status())
	assert.Zero(t, rec.len(), "healthy stays healthy without an event")
}

// TestReachability_LinkUpWithoutEdge 链路本就可达时 LinkUp 不探测
func TestReachability_LinkUpWithoutEdge(t *testing.T) {
	p := newCountingProber()
	m, _, _ := newTestMonitor(t, nil, WithProber(p))

	failN(m, 3)
	m.LinkUp()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, p.calls.Load())
}

// settledChecks 已完成（失败或跳过）的恢复检查次数
func settledChecks(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	return counterValue(t, reg, "netguard_health_probes_total", map[string]string{"result": "failure"}) +
		counterValue(t, reg, "netguard_health_probes_total", map[string]string{"result": "skipped"})
}

// TestReachability_FlapThenLinkUpRecovers 抖动后的最后一次链路恢复不会被丢弃
func TestReachability_FlapThenLinkUpRecovers(t *testing.T) {
	p := newCountingProber()
	p.fail.Store(true)
	m, mock, reg := newTestMonitor(t, nil, WithProber(p))

	failN(m, 3)
	m.LinkDown()
	m.LinkUp()
	require.Eventually(t, func() bool { return settledChecks(t, reg) == 1 }, waitFor, pollEvery)

	m.LinkDown()
	m.LinkUp()
	assert.True(t, m.prober.pendingKick(), "throttled link-up is queued, not dropped")
	assert.Equal(t, interfaces.StatusDegraded, m.Status())

	p.fail.Store(false)
	mock.Add(time.Second)

	require.Eventually(t, func() bool {
		return m.Status() == interfaces.StatusHealthy
	}, waitFor, pollEvery)
	assert.False(t, m.prober.pendingKick())
	assert.Equal(t, uint64(0), m.GetStatus().ConsecutiveFailures)
}

// TestReachability_FlappingCoalesced 频繁抖动合并为一次延迟检查
func TestReachability_FlappingCoalesced(t *testing.T) {
	p := newCountingProber()
	p.fail.Store(true)
	m, mock, reg := newTestMonitor(t, nil, WithProber(p))

	failN(m, 3)
	for i := 0; i < 20; i++ {
		m.LinkDown()
		m.LinkUp()
	}
	require.Eventually(t, func() bool { return settledChecks(t, reg) == 1 }, waitFor, pollEvery)
	require.True(t, m.prober.pendingKick())

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return settledChecks(t, reg) == 2 }, waitFor, pollEvery)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), m.prober.ticks.Load())
	assert.False(t, m.prober.pendingKick())
}

// TestReachability_StopCancelsQueuedLinkUp 停止后排队的恢复检查不再执行
func TestReachability_StopCancelsQueuedLinkUp(t *testing.T) {
	p := newCountingProber()
	p.fail.Store(true)
	m, mock, reg := newTestMonitor(t, nil, WithProber(p))

	failN(m, 3)
	m.LinkDown()
	m.LinkUp()
	require.Eventually(t, func() bool { return settledChecks(t, reg) == 1 }, waitFor, pollEvery)
	m.LinkDown()
	m.LinkUp()
	require.True(t, m.prober.pendingKick())

	require.NoError(t, m.Stop())
	mock.Add(time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int64(1), m.prober.ticks.Load())
}

// TestReachability_WatchLink 消费链路信号源事件
func TestReachability_WatchLink(t *testing.T) {
	src := make(linkSource, 4)
	m, _, _ := newTestMonitor(t, nil, WithLinkSignal(src))
	require.NoError(t, m.Start(context.Background()))

	src <- interfaces.LinkEvent{Type: interfaces.LinkDown, Source: "test"}
	require.Eventually(t, func() bool { return !m.Reachable() }, waitFor, pollEvery)

	src <- interfaces.LinkEvent{Type: interfaces.LinkUp, Source: "test"}
	require.Eventually(t, m.Reachable, waitFor, pollEvery)

	require.NoError(t, m.Stop())
}

// TestReachability_WatchLinkClosedSource 信号源关闭时监听退出
func TestReachability_WatchLinkClosedSource(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	src := make(linkSource)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.WatchLink(ctx, src)
	close(src)

	done := make(chan struct{})
	go func() {
		_ = m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Stop blocked on link watcher")
	}
}
