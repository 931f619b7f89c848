package linkwatch

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// ManualSignal 由宿主推送的链路信号
//
// 缓冲区满时丢弃最旧的事件，最新的边沿总能送达。
type ManualSignal struct {
	clock  clock.Clock
	events chan interfaces.LinkEvent

	mu     sync.Mutex
	closed bool
}

var _ interfaces.LinkSignal = (*ManualSignal)(nil)

// NewManualSignal 创建手动信号源
func NewManualSignal(buffer int) *ManualSignal {
	if buffer <= 0 {
		buffer = 1
	}
	return &ManualSignal{
		clock:  clock.New(),
		events: make(chan interfaces.LinkEvent, buffer),
	}
}

// Events 返回事件通道
func (s *ManualSignal) Events() <-chan interfaces.LinkEvent {
	return s.events
}

// Up 推送链路恢复
func (s *ManualSignal) Up(source string) {
	s.push(interfaces.LinkUp, source)
}

// Down 推送链路断开
func (s *ManualSignal) Down(source string) {
	s.push(interfaces.LinkDown, source)
}

// Close 关闭信号源，之后的推送被忽略
func (s *ManualSignal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *ManualSignal) push(t interfaces.LinkEventType, source string) {
	ev := interfaces.LinkEvent{Type: t, Source: source, Timestamp: s.clock.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case dropped := <-s.events:
			logger.Debug("链路事件缓冲区已满，丢弃最旧事件", "type", dropped.Type.String())
		default:
		}
	}
}
