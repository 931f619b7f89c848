package health

import (
	"fmt"
	"time"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// ============================================================================
//                              监控配置
// ============================================================================

// Config 健康监控配置
//
// 阈值在 NewMonitor 之后不可修改，保证滞回行为可预测。
type Config struct {
	// DegradedThreshold 连续失败达到此值进入 Degraded
	// 默认值: 3
	DegradedThreshold int

	// DownThreshold 连续失败达到此值进入 Down
	// 必须 >= DegradedThreshold
	// 默认值: 6
	DownThreshold int

	// ProbeInterval Degraded 状态下的恢复探测间隔
	// 默认值: 30s
	ProbeInterval time.Duration

	// DownProbeInterval Down 状态下的恢复探测间隔
	// 默认值: 与 ProbeInterval 相同
	DownProbeInterval time.Duration

	// ProbeTimeout 单次探测超时
	// 默认值: 5s
	ProbeTimeout time.Duration

	// CallTimeout 守护调用默认超时
	// 默认值: 15s
	CallTimeout time.Duration

	// LinkUpProbeInterval 链路恢复触发的即时探测最小间隔
	// 窗口内的多次链路恢复合并为窗口结束时的一次探测
	// 默认值: 1s
	LinkUpProbeInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DegradedThreshold:   interfaces.DefaultDegradedThreshold,
		DownThreshold:       interfaces.DefaultDownThreshold,
		ProbeInterval:       30 * time.Second,
		DownProbeInterval:   30 * time.Second,
		ProbeTimeout:        5 * time.Second,
		CallTimeout:         15 * time.Second,
		LinkUpProbeInterval: 1 * time.Second,
	}
}

// Validate 验证配置
//
// 非正的时长与阈值修正为默认值；阈值顺序错误返回 ErrInvalidThreshold。
func (c *Config) Validate() error {
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = interfaces.DefaultDegradedThreshold
	}
	if c.DownThreshold <= 0 {
		c.DownThreshold = interfaces.DefaultDownThreshold
	}
	if c.DownThreshold < c.DegradedThreshold {
		return fmt.Errorf("%w: down threshold %d below degraded threshold %d",
			ErrInvalidThreshold, c.DownThreshold, c.DegradedThreshold)
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.DownProbeInterval <= 0 {
		c.DownProbeInterval = c.ProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.LinkUpProbeInterval <= 0 {
		c.LinkUpProbeInterval = 1 * time.Second
	}
	return nil
}

// intervalFor 返回指定状态下的探测间隔
func (c *Config) intervalFor(status interfaces.ConnectivityStatus) time.Duration {
	if status == interfaces.StatusDown {
		return c.DownProbeInterval
	}
	return c.ProbeInterval
}

// WithThresholds 设置降级与断开阈值
func (c *Config) WithThresholds(degraded, down int) *Config {
	c.DegradedThreshold = degraded
	c.DownThreshold = down
	return c
}

// WithProbeInterval 设置探测间隔（Degraded 与 Down 相同）
func (c *Config) WithProbeInterval(interval time.Duration) *Config {
	c.ProbeInterval = interval
	c.DownProbeInterval = interval
	return c
}

// WithProbeTimeout 设置探测超时
func (c *Config) WithProbeTimeout(timeout time.Duration) *Config {
	c.ProbeTimeout = timeout
	return c
}

// WithCallTimeout 设置守护调用默认超时
func (c *Config) WithCallTimeout(timeout time.Duration) *Config {
	c.CallTimeout = timeout
	return c
}
