package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Clock   ClockConfig   `mapstructure:"clock"`
	Chat    ChatConfig    `mapstructure:"chat"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	ListenAddr        string   `mapstructure:"listen_addr"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec"`
	Debug             bool     `mapstructure:"debug"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ClockConfig 虚拟时钟配置
type ClockConfig struct {
	// Timezone 读写 "YYYY-MM-DD HH:MM:SS" 字符串时使用的时区：Local、UTC 或 IANA 名称
	Timezone string `mapstructure:"timezone"`
}

// ChatConfig 对话配置
type ChatConfig struct {
	SameModelForInference bool `mapstructure:"same_model_for_inference"`
}

// RequestTimeout 单个请求的超时时间
func (c ServerConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Location 解析时钟时区
func (c ClockConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("时区无效 %q: %w", name, err)
	}
	return loc, nil
}

// Default 返回默认配置（init-config 使用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch 加载配置并监听文件变化，变化后以新配置回调 onChange。
// 配置文件不存在时不监听。
func Watch(configPath string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			slog.Warn("配置热加载失败", "path", e.Name, "error", err)
			return
		}
		slog.Info("配置已重新加载", "path", e.Name)
		if onChange != nil {
			onChange(next)
		}
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("NEOCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if _, err := cfg.Clock.Location(); err != nil {
		return nil, err
	}

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "neochat")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:8000")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_sec", 10)
	v.SetDefault("server.debug", false)

	// Storage
	v.SetDefault("storage.db_path", "./data/chat.db")

	// Clock
	v.SetDefault("clock.timezone", "Local")

	// Chat
	v.SetDefault("chat.same_model_for_inference", false)
}

// resolvePath 解析相对路径：相对于当前工作目录
func resolvePath(path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

var logLevel = new(slog.LevelVar)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	logLevel.Set(ParseLevel(level))
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel 运行时调整日志级别（配置热加载使用）
func SetLogLevel(level string) {
	next := ParseLevel(level)
	if logLevel.Level() != next {
		logLevel.Set(next)
		slog.Info("日志级别已调整", "level", next.String())
	}
}

// LogLevel 当前日志级别
func LogLevel() slog.Level {
	return logLevel.Level()
}
