// Package linkwatch 提供本地网络链路信号源
//
// 链路信号只描述"本机是否接入网络"，与后端健康无关；health.Monitor
// 通过 WatchLink 消费这些边沿事件来维护可达性覆盖层。
//
//   - PollingWatcher: 周期轮询 net.Interfaces()，在在线/离线边沿发送事件
//   - ManualSignal: 由宿主推送平台回调（移动端网络状态、浏览器 online/offline）
package linkwatch

import (
	"time"
)

// Config 轮询监听配置
type Config struct {
	// PollInterval 轮询间隔
	// 默认值: 5s
	PollInterval time.Duration

	// EventBufferSize 事件缓冲区大小
	// 默认值: 16
	EventBufferSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// Validate 验证配置，非法值修正为默认值
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 16
	}
	return nil
}
