package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-netguard/config"
	"github.com/dep2p/go-netguard/pkg/lib/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging 按配置重建默认 logger
//
// 返回的 Closer 在退出时关闭日志文件。
func setupLogging(cfg config.LogConfig, stderr io.Writer) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := log.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	out := stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建日志目录失败: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		out, closer = f, f
	}

	log.Setup(log.Options{Level: level, Format: format, Output: out})
	return closer, nil
}

// fxLogger fx 事件日志，仅 --verbose 时输出
func fxLogger(verbose bool) fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		if !verbose {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: l}
	})
}
