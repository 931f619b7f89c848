package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "NETGUARD_"

// 支持的环境变量
const (
	EnvProbeTarget       = EnvPrefix + "PROBE_TARGET"
	EnvDegradedThreshold = EnvPrefix + "DEGRADED_THRESHOLD"
	EnvDownThreshold     = EnvPrefix + "DOWN_THRESHOLD"
	EnvProbeInterval     = EnvPrefix + "PROBE_INTERVAL"
	EnvIntrospectAddr    = EnvPrefix + "INTROSPECT_ADDR"
	EnvLogLevel          = EnvPrefix + "LOG_LEVEL"
)

// Load 从文件加载配置，按扩展名选择 JSON 或 YAML
//
// 文件中缺省的字段保持默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

// FromJSON 从 JSON 数据创建配置
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// FromYAML 从 YAML 数据创建配置
func FromYAML(data []byte) (*Config, error) {
	cfg := NewConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// 空文件等同于全部默认值
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Marshal 按格式输出配置: json | yaml
func (c *Config) Marshal(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		return yaml.Marshal(c)
	case "json":
		return json.MarshalIndent(c, "", "  ")
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}

// ApplyEnv 应用环境变量覆盖
//
// lookup 通常为 os.LookupEnv；测试中可注入 map 查找。
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvProbeTarget); ok {
		c.Probe.Target = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDegradedThreshold); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDegradedThreshold, err)
		}
		c.Health.DegradedThreshold = n
	}
	if v, ok := lookup(EnvDownThreshold); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDownThreshold, err)
		}
		c.Health.DownThreshold = n
	}
	if v, ok := lookup(EnvProbeInterval); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvProbeInterval, err)
		}
		c.Health.ProbeInterval = Duration(d)
	}
	if v, ok := lookup(EnvIntrospectAddr); ok {
		c.Introspect.Addr = strings.TrimSpace(v)
		c.Introspect.Enabled = c.Introspect.Addr != ""
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = strings.TrimSpace(v)
	}
	return nil
}
