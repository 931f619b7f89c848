package probes

import (
	"context"
	"net"
	"strings"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// defaultDialPort 目标未带端口时使用的端口
const defaultDialPort = "443"

// DialProber 以 TCP 建连探测后端
type DialProber struct {
	Address string

	dialer net.Dialer
}

var _ interfaces.Prober = (*DialProber)(nil)

// NewDialProber 创建 TCP 探测器
//
// address 未带端口时补 443。
func NewDialProber(address string) *DialProber {
	address = strings.TrimSpace(address)
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, defaultDialPort)
	}
	return &DialProber{Address: address}
}

// Probe 建立并立即关闭一个 TCP 连接
func (p *DialProber) Probe(ctx context.Context) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}
