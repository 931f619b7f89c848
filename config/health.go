package config

import (
	"fmt"
	"time"

	"github.com/dep2p/go-netguard/internal/core/health"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// HealthConfig 状态机配置
type HealthConfig struct {
	// DegradedThreshold 连续失败达到此值进入 Degraded
	// 默认值: 3
	DegradedThreshold int `json:"degraded_threshold" yaml:"degraded_threshold"`

	// DownThreshold 连续失败达到此值进入 Down
	// 默认值: 6
	DownThreshold int `json:"down_threshold" yaml:"down_threshold"`

	// ProbeInterval Degraded 下的恢复探测间隔
	// 默认值: 30s
	ProbeInterval Duration `json:"probe_interval" yaml:"probe_interval"`

	// DownProbeInterval Down 下的恢复探测间隔
	// 默认值: 30s
	DownProbeInterval Duration `json:"down_probe_interval" yaml:"down_probe_interval"`

	// ProbeTimeout 单次探测超时
	// 默认值: 5s
	ProbeTimeout Duration `json:"probe_timeout" yaml:"probe_timeout"`

	// CallTimeout 守护调用默认超时
	// 默认值: 15s
	CallTimeout Duration `json:"call_timeout" yaml:"call_timeout"`

	// LinkUpProbeInterval 链路恢复即时探测的最小间隔，窗口内的恢复合并执行
	// 默认值: 1s
	LinkUpProbeInterval Duration `json:"link_up_probe_interval" yaml:"link_up_probe_interval"`
}

// DefaultHealthConfig 返回默认状态机配置
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		DegradedThreshold:   interfaces.DefaultDegradedThreshold,
		DownThreshold:       interfaces.DefaultDownThreshold,
		ProbeInterval:       Duration(30 * time.Second),
		DownProbeInterval:   Duration(30 * time.Second),
		ProbeTimeout:        Duration(5 * time.Second),
		CallTimeout:         Duration(15 * time.Second),
		LinkUpProbeInterval: Duration(1 * time.Second),
	}
}

// Validate 验证状态机配置
func (c *HealthConfig) Validate() error {
	if c.DegradedThreshold < 1 {
		return fmt.Errorf("health: %w: degraded_threshold must be >= 1", health.ErrInvalidThreshold)
	}
	if c.DownThreshold < c.DegradedThreshold {
		return fmt.Errorf("health: %w: down_threshold must be >= degraded_threshold", health.ErrInvalidThreshold)
	}
	for name, d := range map[string]Duration{
		"probe_interval":         c.ProbeInterval,
		"down_probe_interval":    c.DownProbeInterval,
		"probe_timeout":          c.ProbeTimeout,
		"call_timeout":           c.CallTimeout,
		"link_up_probe_interval": c.LinkUpProbeInterval,
	} {
		if d < 0 {
			return sectionError("health", "%s must not be negative", name)
		}
	}
	return nil
}

// ToHealthConfig 转换为状态机配置
//
// 零值时长交给 health.Config.Validate 填充默认值。
func (c HealthConfig) ToHealthConfig() *health.Config {
	return &health.Config{
		DegradedThreshold:   c.DegradedThreshold,
		DownThreshold:       c.DownThreshold,
		ProbeInterval:       c.ProbeInterval.Duration(),
		DownProbeInterval:   c.DownProbeInterval.Duration(),
		ProbeTimeout:        c.ProbeTimeout.Duration(),
		CallTimeout:         c.CallTimeout.Duration(),
		LinkUpProbeInterval: c.LinkUpProbeInterval.Duration(),
	}
}
