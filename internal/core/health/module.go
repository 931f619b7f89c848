package health

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 链路信号源通过 value group "link_signals" 注入。
func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(ProvideMonitor),
		fx.Invoke(registerLifecycle),
	)
}

// monitorParams 监控器依赖参数
type monitorParams struct {
	fx.In

	Config     *Config               `optional:"true"`
	Prober     interfaces.Prober     `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`

	LinkSignals []interfaces.LinkSignal `group:"link_signals"`
}

// monitorResult 监控器输出
type monitorResult struct {
	fx.Out

	Monitor       *Monitor
	HealthMonitor interfaces.HealthMonitor
}

// ProvideMonitor 提供健康监控器
func ProvideMonitor(params monitorParams) (monitorResult, error) {
	metrics, err := NewMetrics(params.Registerer)
	if err != nil {
		return monitorResult{}, err
	}

	opts := []Option{
		WithMetrics(metrics),
		WithClock(params.Clock),
	}
	if params.Prober != nil {
		opts = append(opts, WithProber(params.Prober))
	}
	for _, s := range params.LinkSignals {
		opts = append(opts, WithLinkSignal(s))
	}

	var config *Config
	if params.Config != nil {
		c := *params.Config
		config = &c
	}

	m, err := NewMonitor(config, opts...)
	if err != nil {
		return monitorResult{}, err
	}
	return monitorResult{Monitor: m, HealthMonitor: m}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Monitor *Monitor
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Monitor.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return input.Monitor.Stop()
		},
	})
}
