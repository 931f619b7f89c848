package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netguard"
	"github.com/dep2p/go-netguard/config"
	"github.com/dep2p/go-netguard/internal/core/health"
	"github.com/dep2p/go-netguard/internal/core/health/linkwatch"
	"github.com/dep2p/go-netguard/internal/debug/introspect"
	"github.com/dep2p/go-netguard/pkg/interfaces"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		target string
		kind   string
		every  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "持续监控后端连接状态",
		Long: "按固定间隔对目标执行守护探测，把结果喂给状态机；" +
			"状态变化输出到 stdout，开启 introspect 时同时提供 HTTP/WebSocket 状态服务。",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := opts.loadConfig(probeOverrides(target, kind))
			if err != nil {
				return err
			}
			if !cfg.Probe.Enabled() {
				return errors.New("未配置探测目标（--target 或 probe.target）")
			}

			closer, err := setupLogging(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, closer.Close()) }()

			app := newApp(cfg, opts.verbose, cmd.OutOrStdout(), fx.Supply(heartbeatInterval(every)))
			return runApp(cmd.Context(), app, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "探测目标（http(s) URL 或 host:port）")
	cmd.Flags().StringVar(&kind, "kind", "", "探测方式 (http/tcp)")
	cmd.Flags().DurationVar(&every, "every", 0, "心跳间隔（默认使用 health.probe_interval）")
	return cmd
}

// newApp 组装 fx 应用
func newApp(cfg *config.Config, verbose bool, out io.Writer, extra ...fx.Option) *fx.App {
	options := []fx.Option{
		fxLogger(verbose),
		fx.Supply(cfg),
		fx.Provide(
			func(cfg *config.Config) *health.Config { return cfg.Health.ToHealthConfig() },
			func(cfg *config.Config) interfaces.Prober { return cfg.Probe.NewProber() },
			prometheus.NewRegistry,
			func(r *prometheus.Registry) prometheus.Registerer { return r },
			func(r *prometheus.Registry) prometheus.Gatherer { return r },
		),
		health.Module(),
		introspect.Module(),
		fx.Invoke(func(lc fx.Lifecycle, m *health.Monitor) {
			registerReporter(lc, m, out)
		}),
		fx.Invoke(registerHeartbeat),
	}
	if cfg.Link.Enabled {
		options = append(options,
			fx.Supply(cfg.Link.ToWatcherConfig()),
			linkwatch.Module(),
		)
	}
	options = append(options, extra...)
	return fx.New(options...)
}

// runApp 启动应用并阻塞到 ctx 结束
func runApp(ctx context.Context, app *fx.App, out io.Writer) error {
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Fprintf(out, "%s 已启动，按 Ctrl+C 退出\n", netguard.VersionInfo())
	logger.Info("netguard 已启动", "version", netguard.Version, "commit", netguard.GitCommit)

	<-ctx.Done()

	fmt.Fprintln(out, "正在关闭...")
	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	return app.Stop(stopCtx)
}

// registerReporter 把状态变化输出到 out
func registerReporter(lc fx.Lifecycle, m *health.Monitor, out io.Writer) {
	var unsubscribe func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			unsubscribe = m.OnStatusChange(func(c interfaces.StatusChange) {
				fmt.Fprintf(out, "%s  %s -> %s  (%s, failures=%d)\n",
					c.Timestamp.Format(time.RFC3339), c.Previous, c.Current, c.Reason, c.Failures)
			})
			return nil
		},
		OnStop: func(context.Context) error {
			if unsubscribe != nil {
				unsubscribe()
			}
			return nil
		},
	})
}
