package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-netguard/config"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// Module 返回状态服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// Params 状态服务依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config           `optional:"true"`
	Monitor    interfaces.HealthMonitor `optional:"true"`
	Gatherer   prometheus.Gatherer      `optional:"true"`
}

// Output 状态服务输出
type Output struct {
	fx.Out

	Server *Server `optional:"true"`
}

// ConfigFromUnified 从统一配置创建状态服务配置
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || !cfg.Introspect.Enabled {
		return nil // 禁用时返回 nil
	}
	addr := cfg.Introspect.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Config{
		Addr:         addr,
		AllowForce:   cfg.Introspect.AllowForce,
		PushInterval: cfg.Introspect.PushInterval.Duration(),
		EnablePprof:  true,
	}
}

// NewFromParams 从参数创建状态服务
func NewFromParams(params Params) Output {
	cfg := ConfigFromUnified(params.UnifiedCfg)
	if cfg == nil || params.Monitor == nil {
		return Output{} // 禁用时返回空输出
	}

	cfg.Monitor = params.Monitor
	cfg.Gatherer = params.Gatherer

	return Output{
		Server: New(*cfg),
	}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return // 禁用时跳过
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
