package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netguard"
)

func newProbeCmd(opts *rootOptions) *cobra.Command {
	var (
		target  string
		kind    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "执行一次守护探测并输出结果",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := opts.loadConfig(probeOverrides(target, kind))
			if err != nil {
				return err
			}
			closer, err := setupLogging(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, closer.Close()) }()

			prober := cfg.Probe.NewProber()
			if prober == nil {
				return errors.New("未配置探测目标（--target 或 probe.target）")
			}

			// call_timeout 为 0 时沿用默认超时
			var mopts []netguard.Option
			if d := cfg.Health.CallTimeout.Duration(); d > 0 {
				mopts = append(mopts, netguard.WithCallTimeout(d))
			}
			m, err := netguard.New(mopts...)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, m.Stop()) }()

			start := time.Now()
			res := netguard.Guard(cmd.Context(), m, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, prober.Probe(ctx)
			}, timeout)
			elapsed := time.Since(start).Round(time.Millisecond)

			out := cmd.OutOrStdout()
			if res.OK() {
				fmt.Fprintf(out, "ok    %s %s %s\n", cfg.Probe.Kind, cfg.Probe.Target, elapsed)
				return nil
			}
			fmt.Fprintf(out, "fail  %s %s %s: %v\n", cfg.Probe.Kind, cfg.Probe.Target, elapsed, res.Err)
			return fmt.Errorf("探测失败: %w", res.Err)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "探测目标（http(s) URL 或 host:port）")
	cmd.Flags().StringVar(&kind, "kind", "", "探测方式 (http/tcp)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "单次调用超时（默认使用 health.call_timeout）")
	return cmd
}
