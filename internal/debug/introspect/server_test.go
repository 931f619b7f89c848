package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netguard/config"
	"github.com/dep2p/go-netguard/internal/core/health"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

func newMonitor(t *testing.T) *health.Monitor {
	t.Helper()
	m, err := health.NewMonitor(health.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.NotNil(t, server)
	assert.Equal(t, DefaultAddr, server.config.Addr)
	assert.Equal(t, DefaultPushInterval, server.config.PushInterval)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0", Monitor: newMonitor(t)})

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)

	addr := server.Addr()
	assert.NotEmpty(t, addr)
	assert.NotEqual(t, "127.0.0.1:0", addr)

	// 重复启动应该无效
	require.NoError(t, server.Start(ctx))

	require.NoError(t, server.Stop())
	assert.False(t, server.running)

	// 重复停止应该无效
	require.NoError(t, server.Stop())
}

func TestServer_StartRequiresMonitor(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})
	assert.Error(t, server.Start(context.Background()))
}

func TestServer_HealthEndpoint(t *testing.T) {
	m := newMonitor(t)
	_, ts := newTestServer(t, Config{Monitor: m})

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &resp))
	assert.Equal(t, interfaces.EffectiveHealthy, resp.Status)

	// 降级后返回 503
	for i := 0; i < 3; i++ {
		m.RecordFailure()
	}
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/health", &resp))
	assert.Equal(t, interfaces.EffectiveDegraded, resp.Status)

	// 链路断开覆盖为 offline
	m.RecordSuccess()
	m.LinkDown()
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/health", &resp))
	assert.Equal(t, interfaces.EffectiveOffline, resp.Status)
}

func TestServer_StatusEndpoint(t *testing.T) {
	m := newMonitor(t)
	_, ts := newTestServer(t, Config{Monitor: m})

	m.RecordFailure()
	m.RecordFailure()

	var resp StatusResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/status", &resp))
	assert.Equal(t, interfaces.StatusHealthy, resp.Status.Status)
	assert.Equal(t, uint64(2), resp.Status.ConsecutiveFailures)
	assert.True(t, resp.Status.Reachable)
	assert.Equal(t, Thresholds{Degraded: 3, Down: 6}, resp.Thresholds)
	require.NotNil(t, resp.Runtime)
	assert.NotEmpty(t, resp.Runtime.GoVersion)
	assert.Greater(t, resp.Runtime.NumGoroutine, 0)
}

func TestServer_Force(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		m := newMonitor(t)
		_, ts := newTestServer(t, Config{Monitor: m})

		resp, err := http.Post(ts.URL+"/api/status/force", "application/json", strings.NewReader(`{"status":"down"}`))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, interfaces.StatusHealthy, m.Status())
	})

	t.Run("Enabled", func(t *testing.T) {
		m := newMonitor(t)
		_, ts := newTestServer(t, Config{Monitor: m, AllowForce: true})

		resp, err := http.Post(ts.URL+"/api/status/force", "application/json", strings.NewReader(`{"status":"down"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var status StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, interfaces.StatusDown, status.Status.Status)
		assert.Equal(t, interfaces.StatusDown, m.Status())
	})

	t.Run("BadStatus", func(t *testing.T) {
		m := newMonitor(t)
		_, ts := newTestServer(t, Config{Monitor: m, AllowForce: true})

		resp, err := http.Post(ts.URL+"/api/status/force", "application/json", strings.NewReader(`{"status":"sideways"}`))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, interfaces.StatusHealthy, m.Status())
	})
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, Config{Monitor: newMonitor(t)})

	resp, err := http.Post(ts.URL+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := health.NewMetrics(reg)
	require.NoError(t, err)
	m, err := health.NewMonitor(nil, health.WithMetrics(metrics))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop() })

	m.RecordFailure()

	_, ts := newTestServer(t, Config{Monitor: m, Gatherer: reg})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "netguard_health_consecutive_failures 1")
}

func TestServer_MetricsDisabled(t *testing.T) {
	_, ts := newTestServer(t, Config{Monitor: newMonitor(t)})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PprofEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Config{Monitor: newMonitor(t), EnablePprof: true})

	resp, err := http.Get(ts.URL + "/debug/pprof/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ============================================================================
//                              WebSocket
// ============================================================================

func dialWS(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/api/status/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) StatusEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev StatusEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// TestServer_WebSocketPushesChanges 连接时推送快照，之后推送每次变更
func TestServer_WebSocketPushesChanges(t *testing.T) {
	m := newMonitor(t)
	_, ts := newTestServer(t, Config{Monitor: m, PushInterval: time.Hour})

	conn := dialWS(t, ts.URL)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, EventSnapshot, ev.Type)
	assert.Equal(t, interfaces.StatusHealthy, ev.Status.Status)

	for i := 0; i < 3; i++ {
		m.RecordFailure()
	}

	ev = readEvent(t, conn)
	assert.Equal(t, EventChange, ev.Type)
	require.NotNil(t, ev.Change)
	assert.Equal(t, interfaces.StatusHealthy, ev.Change.Previous)
	assert.Equal(t, interfaces.StatusDegraded, ev.Change.Current)
	assert.Equal(t, interfaces.ReasonFailureThreshold, ev.Change.Reason)
}

// TestServer_WebSocketPeriodicPush 无变更时周期推送快照
func TestServer_WebSocketPeriodicPush(t *testing.T) {
	_, ts := newTestServer(t, Config{Monitor: newMonitor(t), PushInterval: 20 * time.Millisecond})

	conn := dialWS(t, ts.URL)
	defer conn.Close()

	assert.Equal(t, EventSnapshot, readEvent(t, conn).Type)
	assert.Equal(t, EventSnapshot, readEvent(t, conn).Type)
}

// TestServer_WebSocketRejectsCrossOrigin 拒绝跨域升级
func TestServer_WebSocketRejectsCrossOrigin(t *testing.T) {
	_, ts := newTestServer(t, Config{Monitor: newMonitor(t)})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/status/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// TestServer_StopClosesWebSockets Stop 关闭所有活跃连接并取消订阅
func TestServer_StopClosesWebSockets(t *testing.T) {
	m := newMonitor(t)
	server := New(Config{Addr: "127.0.0.1:0", Monitor: m, PushInterval: time.Hour})
	require.NoError(t, server.Start(context.Background()))

	conn := dialWS(t, "http://"+server.Addr())
	defer conn.Close()
	readEvent(t, conn)
	require.Eventually(t, func() bool { return m.Registry().Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, server.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, m.Registry().Len())
}

// TestServer_TrackAfterStop Stop 之后不再登记新连接
func TestServer_TrackAfterStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0", Monitor: newMonitor(t)})
	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Stop())

	assert.False(t, server.track(nil))
	assert.Empty(t, server.conns)
}

// TestServer_TrackWaitsForStop 停止过程中到达的连接等待 Stop 完成后被拒绝
func TestServer_TrackWaitsForStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0", Monitor: newMonitor(t)})
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.server.Close() })

	// 模拟 Stop 持锁期间
	server.mu.Lock()
	done := make(chan bool, 1)
	go func() { done <- server.track(nil) }()

	select {
	case <-done:
		t.Fatal("track registered while stop held the lock")
	case <-time.After(20 * time.Millisecond):
	}
	server.running = false
	server.mu.Unlock()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("track did not return")
	}
	assert.Empty(t, server.conns)
}

// ============================================================================
//                              Module
// ============================================================================

func TestConfigFromUnified(t *testing.T) {
	assert.Nil(t, ConfigFromUnified(nil))

	cfg := config.NewConfig()
	assert.Nil(t, ConfigFromUnified(cfg))

	cfg.Introspect.Enabled = true
	cfg.Introspect.AllowForce = true
	cfg.Introspect.PushInterval = config.Duration(time.Second)

	got := ConfigFromUnified(cfg)
	require.NotNil(t, got)
	assert.Equal(t, "127.0.0.1:6070", got.Addr)
	assert.True(t, got.AllowForce)
	assert.Equal(t, time.Second, got.PushInterval)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Introspect.Enabled = true
	cfg.Introspect.Addr = "127.0.0.1:0"

	var server *Server
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(func() (interfaces.HealthMonitor, error) {
			return health.NewMonitor(nil)
		}),
		Module(),
		fx.Populate(&server),
	)
	app.RequireStart()
	require.NotNil(t, server)

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, "http://"+server.Addr()+"/health", &resp))

	app.RequireStop()
}

func TestModule_Disabled(t *testing.T) {
	var server *Server
	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&server),
	)
	app.RequireStart()
	assert.Nil(t, server)
	app.RequireStop()
}
