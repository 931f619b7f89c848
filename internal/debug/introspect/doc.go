// Package introspect 提供本地状态 HTTP/WebSocket 服务
//
// 服务暴露连接健康监控器的当前状态，供运维面板、负载均衡探活和调试使用。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET  /health             - 展示状态，healthy 为 200，其余为 503
//	GET  /api/status         - 完整状态快照、阈值与运行时信息
//	GET  /api/status/ws      - WebSocket：连接时推送快照，之后推送每次变更
//	POST /api/status/force   - 强制设置状态（需 AllowForce）
//	GET  /metrics            - Prometheus 指标（配置 Gatherer 时）
//	GET  /debug/pprof/*      - Go pprof 端点（EnablePprof 时）
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:    "127.0.0.1:6070",
//	    Monitor: monitor,
//	})
//	server.Start(ctx)
//	defer server.Stop()
//
// # 安全
//
// force 端点会直接改写状态机，只应在诊断环境中开启。
// 通过 config.Introspect.Enabled 配置启用。
package introspect
