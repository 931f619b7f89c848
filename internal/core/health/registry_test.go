package health

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

var testChange = interfaces.StatusChange{
	Current:  interfaces.StatusDegraded,
	Previous: interfaces.StatusHealthy,
	Reason:   interfaces.ReasonFailureThreshold,
}

// TestRegistry_SubscribeDispatch 所有订阅者收到事件
func TestRegistry_SubscribeDispatch(t *testing.T) {
	r := NewRegistry(nil)

	var a, b atomic.Int32
	s1 := r.Subscribe(func(interfaces.StatusChange) { a.Add(1) })
	s2 := r.Subscribe(func(interfaces.StatusChange) { b.Add(1) })

	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, 2, r.Len())

	assert.Zero(t, r.dispatch(testChange))
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

// TestRegistry_Unsubscribe 取消订阅可重复调用
func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry(nil)

	var calls atomic.Int32
	sub := r.Subscribe(func(interfaces.StatusChange) { calls.Add(1) })

	assert.True(t, r.Unsubscribe(sub))
	assert.False(t, r.Unsubscribe(sub))
	sub.Unsubscribe()

	r.dispatch(testChange)
	assert.Zero(t, calls.Load())
	assert.Zero(t, r.Len())

	// 零值句柄
	Subscription{}.Unsubscribe()
}

// TestRegistry_FailingSubscribersIsolated panic 与返回错误的回调不影响其余订阅者
func TestRegistry_FailingSubscribersIsolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	r := NewRegistry(metrics)

	var delivered atomic.Int32
	r.Subscribe(func(interfaces.StatusChange) { panic("banner render failed") })
	r.SubscribeErr(func(interfaces.StatusChange) error { return errors.New("toast queue full") })
	r.Subscribe(func(interfaces.StatusChange) { delivered.Add(1) })

	failed := r.dispatch(testChange)

	assert.Equal(t, 2, failed)
	assert.Equal(t, int32(1), delivered.Load())
	assert.Equal(t, 2.0, counterValue(t, reg, "netguard_health_subscriber_errors_total", nil))
}

// TestRegistry_UnsubscribeDuringDispatch 分发期间取消订阅不影响本轮
func TestRegistry_UnsubscribeDuringDispatch(t *testing.T) {
	r := NewRegistry(nil)

	var other Subscription
	var otherCalls atomic.Int32
	r.Subscribe(func(interfaces.StatusChange) {
		other.Unsubscribe()
	})
	other = r.Subscribe(func(interfaces.StatusChange) { otherCalls.Add(1) })

	r.dispatch(testChange)
	assert.LessOrEqual(t, otherCalls.Load(), int32(1))
	assert.Equal(t, 1, r.Len())

	r.dispatch(testChange)
	assert.LessOrEqual(t, otherCalls.Load(), int32(1))
}

// TestRegistry_SubscribeDuringDispatch 分发期间新增订阅者不收到本轮事件
func TestRegistry_SubscribeDuringDispatch(t *testing.T) {
	r := NewRegistry(nil)

	var late atomic.Int32
	var once sync.Once
	r.Subscribe(func(interfaces.StatusChange) {
		once.Do(func() {
			r.Subscribe(func(interfaces.StatusChange) { late.Add(1) })
		})
	})

	r.dispatch(testChange)
	assert.Zero(t, late.Load())

	r.dispatch(testChange)
	assert.Equal(t, int32(1), late.Load())
}

// TestSubscriberCallbackError 错误包装
func TestSubscriberCallbackError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&SubscriberCallbackError{SubscriptionID: "abc", Err: inner})

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "abc")
}

// TestMonitor_OnStatusChangeUnsubscribe 监控器返回的取消函数
func TestMonitor_OnStatusChangeUnsubscribe(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	var calls atomic.Int32
	unsubscribe := m.OnStatusChange(func(interfaces.StatusChange) { calls.Add(1) })

	failN(m, 3)
	assert.Equal(t, int32(1), calls.Load())

	unsubscribe()
	unsubscribe()

	failN(m, 3)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, m.Registry().Len())
}
