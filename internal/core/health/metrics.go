package health

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

const (
	metricsNamespace = "netguard"
	metricsSubsystem = "health"
)

// ============================================================================
//                              Prometheus 指标
// ============================================================================

// Metrics 健康监控指标
//
// nil *Metrics 的所有方法都是空操作，未配置 Registerer 时直接传 nil。
type Metrics struct {
	status           *prometheus.GaugeVec
	failures         prometheus.Gauge
	reachable        prometheus.Gauge
	transitions      *prometheus.CounterVec
	outcomes         *prometheus.CounterVec
	guardedCalls     *prometheus.CounterVec
	probes           *prometheus.CounterVec
	subscriberErrors prometheus.Counter
}

// NewMetrics 创建并注册指标
//
// 同一 Registerer 上重复注册时复用已存在的采集器。
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "status",
			Help:      "Current connectivity status (1 for the active status).",
		}, []string{"status"}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "consecutive_failures",
			Help:      "Consecutive failures since the last recorded success.",
		}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "link_reachable",
			Help:      "1 while the local network link is present.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "transitions_total",
			Help:      "Status transitions by previous and current status.",
		}, []string{"from", "to"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "outcomes_total",
			Help:      "Recorded call outcomes.",
		}, []string{"outcome"}),
		guardedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "guarded_calls_total",
			Help:      "Guarded calls by result (ok, error, timeout, canceled).",
		}, []string{"result"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "probes_total",
			Help:      "Recovery probes by result (success, failure, skipped).",
		}, []string{"result"}),
		subscriberErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "subscriber_errors_total",
			Help:      "Status change callbacks that returned an error or panicked.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.status = register(reg, m.status, &err)
	m.failures = register(reg, m.failures, &err)
	m.reachable = register(reg, m.reachable, &err)
	m.transitions = register(reg, m.transitions, &err)
	m.outcomes = register(reg, m.outcomes, &err)
	m.guardedCalls = register(reg, m.guardedCalls, &err)
	m.probes = register(reg, m.probes, &err)
	m.subscriberErrors = register(reg, m.subscriberErrors, &err)
	if err != nil {
		return nil, fmt.Errorf("register health metrics: %w", err)
	}

	m.reachable.Set(1)
	m.setStatus(interfaces.StatusHealthy)
	return m, nil
}

// register 注册采集器，已注册时返回已有实例
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = err
	}
	return c
}

func (m *Metrics) setStatus(current interfaces.ConnectivityStatus) {
	if m == nil {
		return
	}
	for _, s := range []interfaces.ConnectivityStatus{
		interfaces.StatusHealthy, interfaces.StatusDegraded, interfaces.StatusDown,
	} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.status.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) transition(from, to interfaces.ConnectivityStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	m.setStatus(to)
}

func (m *Metrics) outcome(success bool, failures uint64) {
	if m == nil {
		return
	}
	label := "failure"
	if success {
		label = "success"
	}
	m.outcomes.WithLabelValues(label).Inc()
	m.failures.Set(float64(failures))
}

func (m *Metrics) guardedCall(result string) {
	if m == nil {
		return
	}
	m.guardedCalls.WithLabelValues(result).Inc()
}

func (m *Metrics) probe(result string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(result).Inc()
}

func (m *Metrics) setReachable(up bool) {
	if m == nil {
		return
	}
	if up {
		m.reachable.Set(1)
	} else {
		m.reachable.Set(0)
	}
}

func (m *Metrics) subscriberError() {
	if m == nil {
		return
	}
	m.subscriberErrors.Inc()
}
