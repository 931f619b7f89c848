package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netguard/pkg/interfaces"
	"github.com/dep2p/go-netguard/pkg/lib/log"
)

var logger = log.Logger("debug/introspect")

const (
	// DefaultAddr 默认监听地址
	DefaultAddr = "127.0.0.1:6070"

	// DefaultPushInterval WebSocket 周期推送间隔
	DefaultPushInterval = 10 * time.Second

	wsWriteTimeout = 5 * time.Second
	wsEventBuffer  = 8
)

// ============================================================================
//                              配置
// ============================================================================

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6070"
	Addr string

	// Monitor 健康监控器（必需）
	Monitor interfaces.HealthMonitor

	// Gatherer 可选的指标来源，设置后提供 /metrics
	Gatherer prometheus.Gatherer

	// AllowForce 是否开放 POST /api/status/force
	AllowForce bool

	// PushInterval WebSocket 周期推送间隔
	PushInterval time.Duration

	// EnablePprof 是否挂载 /debug/pprof
	EnablePprof bool
}

// ============================================================================
//                              Server
// ============================================================================

// Server 状态 HTTP/WebSocket 服务
type Server struct {
	config   Config
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener

	running   bool
	startTime time.Time

	// 活跃的 WebSocket 连接，Stop 时统一关闭
	conns   map[*websocket.Conn]struct{}
	connsMu sync.Mutex
	wg      sync.WaitGroup

	mu sync.Mutex
}

// New 创建状态服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultPushInterval
	}

	return &Server{
		config:   cfg,
		upgrader: websocket.Upgrader{CheckOrigin: sameOrigin},
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// Handler 返回路由（测试可直接用 httptest 挂载）
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/status", func(r chi.Router) {
		r.Get("/", s.handleStatus)
		r.Get("/ws", s.handleStatusWS)
		r.Post("/force", s.handleForce)
	})
	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.config.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.config.Monitor == nil {
		return errors.New("introspect: monitor is required")
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("状态服务异常退出", "error", err)
		}
	}()

	s.running = true
	logger.Info("状态服务已启动", "addr", listener.Addr().String(), "allow_force", s.config.AllowForce)
	return nil
}

// Stop 停止服务并关闭所有 WebSocket 连接
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown 不等待被劫持的连接
	err := s.server.Shutdown(ctx)
	err = multierr.Append(err, s.closeConns())
	s.wg.Wait()

	if err != nil {
		logger.Error("关闭状态服务失败", "error", err)
		return err
	}
	logger.Info("状态服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

func (s *Server) uptime() string {
	if s.startTime.IsZero() {
		return ""
	}
	return time.Since(s.startTime).Truncate(time.Second).String()
}

// ============================================================================
//                              响应结构
// ============================================================================

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    interfaces.EffectiveStatus `json:"status"`
	Timestamp time.Time                  `json:"timestamp"`
	Uptime    string                     `json:"uptime,omitempty"`
}

// Thresholds 阈值
type Thresholds struct {
	Degraded int `json:"degraded"`
	Down     int `json:"down"`
}

// StatusResponse 状态响应
type StatusResponse struct {
	Timestamp  time.Time                 `json:"timestamp"`
	Uptime     string                    `json:"uptime,omitempty"`
	Status     interfaces.StatusSnapshot `json:"status"`
	Thresholds Thresholds                `json:"thresholds"`
	Runtime    *RuntimeInfo              `json:"runtime,omitempty"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc"`
}

// 事件类型
const (
	EventSnapshot = "snapshot"
	EventChange   = "change"
)

// StatusEvent WebSocket 推送消息
type StatusEvent struct {
	Type      string                    `json:"type"`
	Timestamp time.Time                 `json:"timestamp"`
	Status    interfaces.StatusSnapshot `json:"status"`
	Change    *interfaces.StatusChange  `json:"change,omitempty"`
}

// ForceRequest 强制状态请求
type ForceRequest struct {
	Status interfaces.ConnectivityStatus `json:"status"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// handleHealth 返回展示状态；非 healthy 时为 503，便于负载均衡摘除
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    s.config.Monitor.EffectiveStatus(),
		Timestamp: time.Now(),
		Uptime:    s.uptime(),
	}

	code := http.StatusOK
	if resp.Status != interfaces.EffectiveHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleStatus 返回完整状态
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildStatus())
}

// handleForce 诊断用：直接设置状态
func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	if !s.config.AllowForce {
		http.Error(w, "force is disabled", http.StatusForbidden)
		return
	}

	var req ForceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	logger.WarnContext(r.Context(), "收到强制状态请求", "status", req.Status.String(), "remote", r.RemoteAddr)
	s.config.Monitor.ForceStatus(req.Status)
	writeJSON(w, http.StatusOK, s.buildStatus())
}

// handleStatusWS 推送状态：连接时一次快照，之后每次变更与周期刷新
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	s.serveStatusConnection(conn)
}

func (s *Server) serveStatusConnection(conn *websocket.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	changes := make(chan interfaces.StatusChange, wsEventBuffer)
	unsubscribe := s.config.Monitor.OnStatusChange(func(c interfaces.StatusChange) {
		select {
		case changes <- c:
		default:
			// 周期推送会补上最新状态
		}
	})
	defer unsubscribe()

	if err := s.writeEvent(conn, EventSnapshot, nil); err != nil {
		return
	}

	ticker := time.NewTicker(s.config.PushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		var err error
		select {
		case c := <-changes:
			err = s.writeEvent(conn, EventChange, &c)
		case <-ticker.C:
			err = s.writeEvent(conn, EventSnapshot, nil)
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, typ string, change *interfaces.StatusChange) error {
	ev := StatusEvent{
		Type:      typ,
		Timestamp: time.Now(),
		Status:    s.config.Monitor.GetStatus(),
		Change:    change,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}

// ============================================================================
//                              连接管理
// ============================================================================

// track 登记连接
//
// 检查与登记在同一把锁内完成：Stop 持有 mu 直到 wg.Wait 返回，
// 因此 Stop 开始后不会再有 wg.Add。
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 未经 Start 直接挂载 Handler 时 server 为 nil，不做限制
	if !s.running && s.server != nil {
		return false
	}

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.connsMu.Lock()
	_, ok := s.conns[conn]
	delete(s.conns, conn)
	s.connsMu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

func (s *Server) closeConns() error {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	var err error
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(time.Second))
		err = multierr.Append(err, conn.Close())
		delete(s.conns, conn)
	}
	return err
}

// ============================================================================
//                              辅助方法
// ============================================================================

func (s *Server) buildStatus() StatusResponse {
	degraded, down := s.config.Monitor.Thresholds()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return StatusResponse{
		Timestamp:  time.Now(),
		Uptime:     s.uptime(),
		Status:     s.config.Monitor.GetStatus(),
		Thresholds: Thresholds{Degraded: degraded, Down: down},
		Runtime: &RuntimeInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     mem.Alloc,
		},
	}
}

// sameOrigin 只接受无 Origin 或与 Host 相同的 Origin
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
	}
}
