package netguard

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-netguard/internal/core/health"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config     *health.Config
	prober     interfaces.Prober
	clock      clock.Clock
	registerer prometheus.Registerer
	links      []interfaces.LinkSignal
}

func newOptions() *options {
	return &options{config: health.DefaultConfig()}
}

// WithDegradedThreshold 设置进入 Degraded 的连续失败次数
func WithDegradedThreshold(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("%w: degraded threshold %d", ErrInvalidThreshold, n)
		}
		o.config.DegradedThreshold = n
		return nil
	}
}

// WithDownThreshold 设置进入 Down 的连续失败次数
//
// 必须不小于 DegradedThreshold，在 New 中统一校验。
func WithDownThreshold(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("%w: down threshold %d", ErrInvalidThreshold, n)
		}
		o.config.DownThreshold = n
		return nil
	}
}

// WithProber 设置恢复探测器
//
// 未设置时不会启动后台探测，只能依靠真实调用的成功恢复。
func WithProber(p Prober) Option {
	return func(o *options) error {
		o.prober = p
		return nil
	}
}

// WithClock 注入时钟，测试中使用 clock.NewMock()
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithProbeInterval 设置 Degraded 状态的探测间隔
//
// down 为 0 时 Down 状态沿用同一间隔。
func WithProbeInterval(degraded, down time.Duration) Option {
	return func(o *options) error {
		if degraded <= 0 || down < 0 {
			return fmt.Errorf("invalid probe interval %s/%s", degraded, down)
		}
		o.config.ProbeInterval = degraded
		o.config.DownProbeInterval = down
		return nil
	}
}

// WithProbeTimeout 设置单次探测超时
func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("invalid probe timeout %s", d)
		}
		o.config.ProbeTimeout = d
		return nil
	}
}

// WithCallTimeout 设置守护调用的默认超时
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("invalid call timeout %s", d)
		}
		o.config.CallTimeout = d
		return nil
	}
}

// WithMetrics 在 reg 上注册 Prometheus 指标
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithLinkSignal 添加链路信号源，Start 后开始监听
func WithLinkSignal(s LinkSignal) Option {
	return func(o *options) error {
		if s != nil {
			o.links = append(o.links, s)
		}
		return nil
	}
}
