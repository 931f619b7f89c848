package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-netguard/config"
	"github.com/dep2p/go-netguard/pkg/lib/log"
)

var logger = log.Logger("cmd/netguard")

// rootOptions 全局参数
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	logFile    string
	verbose    bool

	// lookupEnv 读取环境变量，测试中替换
	lookupEnv func(string) (string, bool)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{lookupEnv: os.LookupEnv})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "netguard",
		Short: "后端连接健康监控",
		Long: "netguard 通过守护调用与恢复探测观察后端的可达性，" +
			"把连接状态划分为 healthy / degraded / down，并通过 HTTP/WebSocket 暴露状态。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "配置文件路径（.yaml/.yml/.json）")
	pf.StringVar(&opts.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	pf.StringVar(&opts.logFormat, "log-format", "", "日志格式 (text/json)")
	pf.StringVar(&opts.logFile, "log-file", "", "日志文件路径（默认输出到 stderr）")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "输出依赖注入日志")

	root.AddCommand(
		newRunCmd(opts),
		newProbeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig 按 默认值 < 文件 < 环境变量 < 命令行 的顺序组装配置
func (o *rootOptions) loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg := config.NewConfig()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if o.lookupEnv != nil {
		if err := cfg.ApplyEnv(o.lookupEnv); err != nil {
			return nil, err
		}
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	for _, fn := range overrides {
		fn(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// probeOverrides 命令行探测目标覆盖配置
//
// 未指定 kind 时，不带协议头的目标按 tcp 处理。
func probeOverrides(target, kind string) func(*config.Config) {
	return func(cfg *config.Config) {
		if target != "" {
			cfg.Probe.Target = target
			if kind == "" && !strings.Contains(target, "://") {
				cfg.Probe.Kind = config.ProbeKindTCP
			}
		}
		if kind != "" {
			cfg.Probe.Kind = kind
		}
	}
}
