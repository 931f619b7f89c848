package linkwatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netguard/pkg/interfaces"
	"github.com/dep2p/go-netguard/pkg/lib/log"
)

var logger = log.Logger("core/health/linkwatch")

// sourcePolling 事件来源标识
const sourcePolling = "polling"

// ============================================================================
//                              接口枚举
// ============================================================================

// Interface 网络接口快照
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.IP
}

// Lister 枚举网络接口
type Lister func() ([]Interface, error)

// SystemLister 基于 net.Interfaces() 的枚举
func SystemLister() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		info := Interface{Name: iface.Name, Flags: iface.Flags}
		if addrs, err := iface.Addrs(); err == nil {
			for _, a := range addrs {
				if ipn, ok := a.(*net.IPNet); ok {
					info.Addrs = append(info.Addrs, ipn.IP)
				}
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// online 是否存在已启用、非回环且带可路由地址的接口
func online(ifaces []Interface) bool {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		for _, ip := range iface.Addrs {
			if ip.IsGlobalUnicast() || ip.IsPrivate() {
				return true
			}
		}
	}
	return false
}

// fingerprint 接口集合指纹，用于记录链路状态不变时的网络变化
func fingerprint(ifaces []Interface) string {
	parts := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs := make([]string, 0, len(iface.Addrs))
		for _, ip := range iface.Addrs {
			addrs = append(addrs, ip.String())
		}
		sort.Strings(addrs)
		parts = append(parts, iface.Name+":"+iface.Flags.String()+":["+strings.Join(addrs, ",")+"]")
	}
	sort.Strings(parts)

	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:8])
}

// ============================================================================
//                              PollingWatcher
// ============================================================================

// PollingWatcher 基于轮询的链路监听器
//
// 只在在线/离线边沿发送事件；启动时若已离线，立即发送一次 LinkDown。
type PollingWatcher struct {
	config *Config
	clock  clock.Clock
	lister Lister

	events chan interfaces.LinkEvent

	mu          sync.Mutex
	up          bool
	fingerprint string

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ interfaces.LinkSignal = (*PollingWatcher)(nil)

// Option 监听器选项
type Option func(*PollingWatcher)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(w *PollingWatcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLister 替换接口枚举（测试使用）
func WithLister(l Lister) Option {
	return func(w *PollingWatcher) {
		if l != nil {
			w.lister = l
		}
	}
}

// NewPollingWatcher 创建轮询监听器
func NewPollingWatcher(config *Config, opts ...Option) *PollingWatcher {
	if config == nil {
		config = DefaultConfig()
	}
	_ = config.Validate()

	w := &PollingWatcher{
		config: config,
		clock:  clock.New(),
		lister: SystemLister,
		events: make(chan interfaces.LinkEvent, config.EventBufferSize),
		up:     true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start 启动轮询
func (w *PollingWatcher) Start(_ context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	// 初始状态与监控器一致（在线），首次检查决定是否需要 LinkDown
	w.check()

	ticker := w.clock.Ticker(w.config.PollInterval)
	w.wg.Add(1)
	go w.pollLoop(ctx, ticker)

	logger.Info("链路监听器已启动", "poll_interval", w.config.PollInterval)
	return nil
}

// Stop 停止轮询
func (w *PollingWatcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	w.cancel()
	w.wg.Wait()

	logger.Info("链路监听器已停止")
	return nil
}

// Events 返回事件通道
func (w *PollingWatcher) Events() <-chan interfaces.LinkEvent {
	return w.events
}

// Online 最近一次检查的链路状态
func (w *PollingWatcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.up
}

func (w *PollingWatcher) pollLoop(ctx context.Context, ticker *clock.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check 枚举接口并在边沿发送事件
func (w *PollingWatcher) check() {
	ifaces, err := w.lister()
	if err != nil {
		// 枚举失败不等于断网，保持上次状态
		logger.Debug("枚举网络接口失败", "error", err)
		return
	}

	up := online(ifaces)
	fp := fingerprint(ifaces)

	w.mu.Lock()
	wasUp := w.up
	lastFP := w.fingerprint
	w.up = up
	w.fingerprint = fp
	w.mu.Unlock()

	if fp != lastFP && lastFP != "" {
		logger.Debug("检测到网络变化", "old_fingerprint", lastFP, "new_fingerprint", fp, "online", up)
	}
	if up == wasUp {
		return
	}

	ev := interfaces.LinkEvent{
		Type:      interfaces.LinkDown,
		Source:    sourcePolling,
		Timestamp: w.clock.Now(),
	}
	if up {
		ev.Type = interfaces.LinkUp
	}

	select {
	case w.events <- ev:
		logger.Debug("发送链路事件", "type", ev.Type.String())
	default:
		logger.Warn("链路事件缓冲区已满，丢弃事件", "type", ev.Type.String())
	}
}
