package health

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// ============================================================================
//                              订阅注册表
// ============================================================================

// Subscription 订阅句柄
type Subscription struct {
	id       string
	registry *Registry
}

// ID 返回订阅 ID
func (s Subscription) ID() string {
	return s.id
}

// Unsubscribe 取消订阅，可重复调用
func (s Subscription) Unsubscribe() {
	if s.registry != nil {
		s.registry.Unsubscribe(s)
	}
}

type subscriber struct {
	id string
	fn func(interfaces.StatusChange) error
}

// Registry 状态变更订阅注册表
//
// 分发前对订阅者集合做快照，分发期间的订阅/取消订阅不影响本轮遍历。
// 回调的 panic 和返回错误被隔离：记录日志后继续通知其余订阅者。
type Registry struct {
	mu   sync.RWMutex
	subs map[string]subscriber

	metrics *Metrics
}

// NewRegistry 创建注册表
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		subs:    make(map[string]subscriber),
		metrics: metrics,
	}
}

// Subscribe 注册回调
func (r *Registry) Subscribe(fn func(interfaces.StatusChange)) Subscription {
	return r.SubscribeErr(func(c interfaces.StatusChange) error {
		fn(c)
		return nil
	})
}

// SubscribeErr 注册可返回错误的回调
func (r *Registry) SubscribeErr(fn func(interfaces.StatusChange) error) Subscription {
	id := uuid.NewString()

	r.mu.Lock()
	r.subs[id] = subscriber{id: id, fn: fn}
	r.mu.Unlock()

	return Subscription{id: id, registry: r}
}

// Unsubscribe 移除回调
//
// 返回是否实际移除；第二次调用返回 false。
func (r *Registry) Unsubscribe(s Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[s.id]; !ok {
		return false
	}
	delete(r.subs, s.id)
	return true
}

// Len 返回当前订阅者数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// dispatch 通知所有订阅者，返回失败的回调数
func (r *Registry) dispatch(change interfaces.StatusChange) int {
	r.mu.RLock()
	snapshot := make([]subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	failed := 0
	for _, s := range snapshot {
		if err := invoke(s, change); err != nil {
			failed++
			r.metrics.subscriberError()
			cbErr := &SubscriberCallbackError{SubscriptionID: s.id, Err: err}
			logger.Warn("状态变更回调失败",
				"subscription", s.id,
				"current", change.Current.String(),
				"error", cbErr)
		}
	}
	return failed
}

// invoke 调用单个回调，panic 转为错误
func invoke(s subscriber, change interfaces.StatusChange) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrSubscriberPanic, p)
		}
	}()
	return s.fn(change)
}
