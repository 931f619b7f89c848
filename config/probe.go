package config

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dep2p/go-netguard/internal/core/health/probes"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// 探测类型
const (
	ProbeKindHTTP = "http"
	ProbeKindTCP  = "tcp"
)

// ProbeConfig 恢复探测配置
type ProbeConfig struct {
	// Kind 探测类型: http | tcp
	// 默认值: http
	Kind string `json:"kind" yaml:"kind"`

	// Target 探测目标
	// http: 完整 URL；tcp: host[:port]，未带端口时为 443
	Target string `json:"target" yaml:"target"`

	// Method HTTP 方法
	// 默认值: HEAD
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// ExpectStatus 接受的 HTTP 状态码，为空时接受 2xx/3xx
	ExpectStatus []int `json:"expect_status,omitempty" yaml:"expect_status,omitempty"`

	// Headers 附加请求头
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// DefaultProbeConfig 返回默认探测配置
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Kind:   ProbeKindHTTP,
		Method: http.MethodHead,
	}
}

// Validate 验证探测配置
//
// 未配置 Target 是合法的：此时不做后台探测。
func (c *ProbeConfig) Validate() error {
	switch c.Kind {
	case "", ProbeKindHTTP, ProbeKindTCP:
	default:
		return sectionError("probe", "unknown kind %q", c.Kind)
	}
	if c.Target == "" {
		return nil
	}
	if c.Kind != ProbeKindTCP {
		u, err := url.Parse(c.Target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return sectionError("probe", "target %q is not an http(s) URL", c.Target)
		}
	}
	for _, code := range c.ExpectStatus {
		if code < 100 || code > 599 {
			return sectionError("probe", "invalid expect_status %d", code)
		}
	}
	return nil
}

// Enabled 是否配置了探测目标
func (c ProbeConfig) Enabled() bool {
	return strings.TrimSpace(c.Target) != ""
}

// NewProber 按配置创建探测器；未配置目标时返回 nil
func (c ProbeConfig) NewProber() interfaces.Prober {
	if !c.Enabled() {
		return nil
	}
	if c.Kind == ProbeKindTCP {
		return probes.NewDialProber(c.Target)
	}

	opts := []probes.HTTPOption{probes.WithMethod(c.Method)}
	if len(c.ExpectStatus) > 0 {
		opts = append(opts, probes.WithExpectStatus(c.ExpectStatus...))
	}
	for k, v := range c.Headers {
		opts = append(opts, probes.WithHeader(k, v))
	}
	return probes.NewHTTPProber(c.Target, opts...)
}
