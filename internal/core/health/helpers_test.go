package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

const (
	waitFor   = 2 * time.Second
	pollEvery = 5 * time.Millisecond
)

// newTestMonitor 使用 mock 时钟与独立 Registry 创建监控器
func newTestMonitor(t *testing.T, config *Config, opts ...Option) (*Monitor, *clock.Mock, *prometheus.Registry) {
	t.Helper()

	mock := clock.NewMock()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	all := append([]Option{WithClock(mock), WithMetrics(metrics)}, opts...)
	m, err := NewMonitor(config, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop() })
	return m, mock, reg
}

// recorder 收集状态变更事件
type recorder struct {
	mu      sync.Mutex
	changes []interfaces.StatusChange
}

func record(m *Monitor) *recorder {
	r := &recorder{}
	m.OnStatusChange(func(c interfaces.StatusChange) {
		r.mu.Lock()
		r.changes = append(r.changes, c)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) all() []interfaces.StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interfaces.StatusChange, len(r.changes))
	copy(out, r.changes)
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

// countingProber 可切换结果的探测器
type countingProber struct {
	calls atomic.Int64
	fail  atomic.Bool
	block chan struct{}
}

func newCountingProber() *countingProber {
	return &countingProber{}
}

func (p *countingProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.fail.Load() {
		return errors.New("backend unreachable")
	}
	return nil
}

// failN 连续记录 n 次失败
func failN(m *Monitor, n int) {
	for i := 0; i < n; i++ {
		m.RecordFailure()
	}
}

// counterValue 从 Registry 读取计数器值
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				if c := metric.GetCounter(); c != nil {
					return c.GetValue()
				}
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
