package config

import (
	"net"
	"time"

	"github.com/dep2p/go-netguard/internal/core/health/linkwatch"
	"github.com/dep2p/go-netguard/pkg/lib/log"
)

// ============================================================================
//                              Link
// ============================================================================

// LinkConfig 本地链路监听配置
type LinkConfig struct {
	// Enabled 是否轮询本地网络接口
	// 默认值: true
	Enabled bool `json:"enabled" yaml:"enabled"`

	// PollInterval 轮询间隔
	// 默认值: 5s
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
}

// DefaultLinkConfig 返回默认链路配置
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Enabled:      true,
		PollInterval: Duration(5 * time.Second),
	}
}

// Validate 验证链路配置
func (c *LinkConfig) Validate() error {
	if c.Enabled && c.PollInterval <= 0 {
		return sectionError("link", "poll_interval must be > 0")
	}
	return nil
}

// ToWatcherConfig 转换为轮询监听配置
func (c LinkConfig) ToWatcherConfig() *linkwatch.Config {
	wc := linkwatch.DefaultConfig()
	wc.PollInterval = c.PollInterval.Duration()
	return wc
}

// ============================================================================
//                              Introspect
// ============================================================================

// IntrospectConfig 状态服务配置
type IntrospectConfig struct {
	// Enabled 是否启动状态服务
	// 默认值: false
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr 监听地址
	// 默认值: 127.0.0.1:6070
	Addr string `json:"addr" yaml:"addr"`

	// AllowForce 是否开放 POST /api/status/force
	// 默认值: false
	AllowForce bool `json:"allow_force" yaml:"allow_force"`

	// PushInterval WebSocket 周期推送间隔
	// 默认值: 10s
	PushInterval Duration `json:"push_interval" yaml:"push_interval"`
}

// DefaultIntrospectConfig 返回默认状态服务配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{
		Enabled:      false,
		Addr:         "127.0.0.1:6070",
		PushInterval: Duration(10 * time.Second),
	}
}

// Validate 验证状态服务配置
func (c *IntrospectConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return sectionError("introspect", "invalid addr %q: %v", c.Addr, err)
	}
	if c.PushInterval < 0 {
		return sectionError("introspect", "push_interval must not be negative")
	}
	return nil
}

// ============================================================================
//                              Log
// ============================================================================

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别: debug | info | warn | error
	// 默认值: info
	Level string `json:"level" yaml:"level"`

	// Format 输出格式: text | json
	// 默认值: text
	Format string `json:"format" yaml:"format"`

	// File 输出文件，为空时输出到 stderr
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: string(log.FormatText),
	}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	if _, err := log.ParseLevel(c.Level); err != nil {
		return sectionError("log", "%v", err)
	}
	if _, err := log.ParseFormat(c.Format); err != nil {
		return sectionError("log", "%v", err)
	}
	return nil
}
