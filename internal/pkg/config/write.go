package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath 默认配置文件位置：./config/config.yaml
func DefaultConfigPath() string {
	return filepath.Join("config", "config.yaml")
}

// WriteFile 以 YAML 写出配置
func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	origins := cfg.Server.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
		},
		"server": map[string]any{
			"listen_addr":         cfg.Server.ListenAddr,
			"allowed_origins":     origins,
			"request_timeout_sec": cfg.Server.RequestTimeoutSec,
			"debug":               cfg.Server.Debug,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"clock": map[string]any{
			"timezone": cfg.Clock.Timezone,
		},
		"chat": map[string]any{
			"same_model_for_inference": cfg.Chat.SameModelForInference,
		},
	}

	data, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("替换配置文件失败: %w", err)
	}
	return nil
}
