package linkwatch

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 提供 *PollingWatcher，并以 "link_signals" 组注入 health.Module。
func Module() fx.Option {
	return fx.Module("linkwatch",
		fx.Provide(ProvideWatcher),
		fx.Invoke(registerLifecycle),
	)
}

// watcherParams 监听器依赖参数
type watcherParams struct {
	fx.In

	Config *Config     `optional:"true"`
	Clock  clock.Clock `optional:"true"`
	Lister Lister      `optional:"true"`
}

// watcherResult 监听器输出
type watcherResult struct {
	fx.Out

	Watcher *PollingWatcher
	Signal  interfaces.LinkSignal `group:"link_signals"`
}

// ProvideWatcher 提供轮询监听器
func ProvideWatcher(params watcherParams) watcherResult {
	w := NewPollingWatcher(params.Config, WithClock(params.Clock), WithLister(params.Lister))
	return watcherResult{Watcher: w, Signal: w}
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Watcher *PollingWatcher
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Watcher.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return input.Watcher.Stop()
		},
	})
}
