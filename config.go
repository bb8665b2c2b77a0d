package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ByLCY/quire/bridge"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/shaper"
)

// defaultConfigPath 是未指定 -config 时查找的配置文件。
const defaultConfigPath = "quire.toml"

// Config 对应 quire.toml。
type Config struct {
	Layout LayoutConfig `toml:"layout"`
	Fonts  FontsConfig  `toml:"fonts"`
	Shaper ShaperConfig `toml:"shaper"`
	Bridge BridgeConfig `toml:"bridge"`
	Log    LogConfig    `toml:"log"`
}

// LayoutConfig 是排版的默认设置，页面几何由文档决定。
type LayoutConfig struct {
	Scale            float64 `toml:"scale"`
	DefaultRowMargin float64 `toml:"default_row_margin"`
	DefaultTabWidth  float64 `toml:"default_tab_width"`
	TdPadding        float64 `toml:"td_padding"`
	ListBaseIndent   float64 `toml:"list_base_indent"`
	ListLevelIndent  float64 `toml:"list_level_indent"`
	// 首次排版只排到该页，其余部分空闲时补完；小于 0 表示不限制。
	StopAtPage int `toml:"stop_at_page"`
}

type FontsConfig struct {
	// 字体相对路径的基准目录，为空时使用 DSL 文件所在目录。
	Dir string `toml:"dir"`
	// 排版前等待文档用到的字体加载完成。
	Preload bool `toml:"preload"`
}

type ShaperConfig struct {
	CacheSize int `toml:"cache_size"`
}

type BridgeConfig struct {
	// 通过计算桥在独立的 goroutine 中排版。
	Enabled       bool `toml:"enabled"`
	PingTimeoutMs int  `toml:"ping_timeout_ms"`
	QueueSize     int  `toml:"queue_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig 返回内置的默认配置。
func DefaultConfig() Config {
	return Config{
		Layout: LayoutConfig{
			Scale:            1,
			DefaultRowMargin: layout.DefaultRowMargin,
			DefaultTabWidth:  layout.DefaultTabWidth,
			ListBaseIndent:   layout.DefaultListBaseIndent,
			ListLevelIndent:  layout.DefaultListLevelIndent,
			StopAtPage:       -1,
		},
		Fonts:  FontsConfig{Preload: true},
		Shaper: ShaperConfig{CacheSize: shaper.DefaultCacheSize},
		Bridge: BridgeConfig{
			PingTimeoutMs: int(bridge.DefaultPingTimeout / time.Millisecond),
			QueueSize:     bridge.DefaultQueueSize,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig 读取配置文件。path 为空且 quire.toml 不存在时返回默认配置。
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); os.IsNotExist(err) {
			return config, nil
		}
		path = defaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("读取配置 %s 失败: %w", path, err)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("解析配置 %s 失败: %w", path, err)
	}
	if config.Layout.Scale <= 0 {
		return config, fmt.Errorf("配置 %s: scale 必须大于 0", path)
	}
	return config, nil
}

// Options 把配置转换为排版参数。
func (c Config) Options() layout.Options {
	opts := layout.DefaultOptions()
	l := c.Layout
	opts.Scale = l.Scale
	if l.DefaultRowMargin > 0 {
		opts.DefaultRowMargin = l.DefaultRowMargin
	}
	if l.DefaultTabWidth > 0 {
		opts.DefaultTabWidth = l.DefaultTabWidth
	}
	opts.TdPadding = l.TdPadding
	opts.ListBaseIndent = l.ListBaseIndent
	opts.ListLevelIndent = l.ListLevelIndent
	if l.StopAtPage >= 0 {
		page := l.StopAtPage
		opts.StopAtPage = &page
	}
	return opts
}

// PingTimeout 返回桥接心跳的超时。
func (c Config) PingTimeout() time.Duration {
	if c.Bridge.PingTimeoutMs <= 0 {
		return bridge.DefaultPingTimeout
	}
	return time.Duration(c.Bridge.PingTimeoutMs) * time.Millisecond
}

// Logger 按配置的级别创建输出到 stderr 的日志。
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
