// Package probes 提供恢复探测器实现
//
// 探测器只回答"后端此刻能否完成一次往返"，不携带业务语义；
// 超时由调用方通过 ctx 控制。
package probes

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

const userAgent = "netguard-probe"

// ============================================================================
//                              HTTPProber
// ============================================================================

// HTTPProber 以 HTTP 请求探测后端
//
// 默认使用 HEAD，2xx/3xx 视为成功；设置 ExpectStatus 后只接受列出的状态码。
type HTTPProber struct {
	URL          string
	Method       string
	ExpectStatus []int
	Header       http.Header

	client *http.Client
}

var _ interfaces.Prober = (*HTTPProber)(nil)

// HTTPOption HTTP 探测器选项
type HTTPOption func(*HTTPProber)

// WithMethod 设置请求方法
func WithMethod(method string) HTTPOption {
	return func(p *HTTPProber) {
		if method != "" {
			p.Method = method
		}
	}
}

// WithExpectStatus 设置允许的状态码
func WithExpectStatus(codes ...int) HTTPOption {
	return func(p *HTTPProber) {
		p.ExpectStatus = append([]int(nil), codes...)
	}
}

// WithHeader 添加请求头
func WithHeader(key, value string) HTTPOption {
	return func(p *HTTPProber) {
		p.Header.Add(key, value)
	}
}

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProber) {
		if c != nil {
			p.client = c
		}
	}
}

// NewHTTPProber 创建 HTTP 探测器
func NewHTTPProber(url string, opts ...HTTPOption) *HTTPProber {
	p := &HTTPProber{
		URL:    url,
		Method: http.MethodHead,
		Header: make(http.Header),
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				MaxIdleConns:    4,
				IdleConnTimeout: 30 * time.Second,
			},
			// 探测只关心服务是否应答，不跟随重定向
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe 发送一次请求
func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range p.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if !p.accept(resp.StatusCode) {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (p *HTTPProber) accept(code int) bool {
	if len(p.ExpectStatus) == 0 {
		return code >= 200 && code < 400
	}
	for _, c := range p.ExpectStatus {
		if c == code {
			return true
		}
	}
	return false
}

// StatusError 探测得到不接受的状态码
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected probe status %d", e.Code)
}
