// Package config 提供 netguard 的用户配置
//
// 主 Config 按功能分节，每节在独立文件中定义：
//   - Health: 状态机阈值、探测节奏与超时
//   - Probe: 恢复探测目标
//   - Link: 本地链路监听
//   - Introspect: 状态 HTTP/WebSocket 服务
//   - Log: 日志级别、格式与输出
//
// 配置来源优先级：命令行 > 环境变量 > 配置文件 > 默认值。
//
//	cfg, err := config.Load("netguard.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
//	    return err
//	}
package config

import (
	"fmt"
)

// Config 是 netguard 的完整配置
type Config struct {
	// Health 状态机配置
	Health HealthConfig `json:"health" yaml:"health"`

	// Probe 恢复探测配置
	Probe ProbeConfig `json:"probe" yaml:"probe"`

	// Link 链路监听配置
	Link LinkConfig `json:"link" yaml:"link"`

	// Introspect 状态服务配置
	Introspect IntrospectConfig `json:"introspect" yaml:"introspect"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Health:     DefaultHealthConfig(),
		Probe:      DefaultProbeConfig(),
		Link:       DefaultLinkConfig(),
		Introspect: DefaultIntrospectConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Health.Validate(); err != nil {
		return err
	}
	if err := c.Probe.Validate(); err != nil {
		return err
	}
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if err := c.Introspect.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	out := *c
	out.Probe.ExpectStatus = append([]int(nil), c.Probe.ExpectStatus...)
	if c.Probe.Headers != nil {
		out.Probe.Headers = make(map[string]string, len(c.Probe.Headers))
		for k, v := range c.Probe.Headers {
			out.Probe.Headers[k] = v
		}
	}
	return &out
}

// sectionError 带配置节前缀的错误
func sectionError(section, format string, args ...any) error {
	return fmt.Errorf("%s: %s", section, fmt.Sprintf(format, args...))
}
