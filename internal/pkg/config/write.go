package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Default 默认配置（不读文件，仅默认值）
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "fitplan",
			Version:  "0.1.0",
			LogLevel: "info",
			UserID:   "local",
		},
		Storage: StorageConfig{DBPath: "./data/fitplan.db"},
		AI: AIConfig{
			DeepSeek: DeepSeekConfig{
				BaseURL:    "https://api.deepseek.com",
				Model:      "deepseek-chat",
				TimeoutSec: 60,
			},
			SiliconFlow: SiliconFlowConfig{
				BaseURL:        "https://api.siliconflow.cn",
				EmbeddingModel: "BAAI/bge-m3",
			},
		},
		Memory:  MemoryConfig{StoragePath: "./data/memory"},
		Planner: PlannerConfig{WindowDays: 7, PlanDurationDays: 7},
		Server:  ServerConfig{Port: 8421},
	}
}

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

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

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
			"user_id":   cfg.App.UserID,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"ai": map[string]any{
			"deepseek": map[string]any{
				"api_key":     cfg.AI.DeepSeek.APIKey,
				"base_url":    cfg.AI.DeepSeek.BaseURL,
				"model":       cfg.AI.DeepSeek.Model,
				"timeout_sec": cfg.AI.DeepSeek.TimeoutSec,
			},
			"siliconflow": map[string]any{
				"api_key":         cfg.AI.SiliconFlow.APIKey,
				"base_url":        cfg.AI.SiliconFlow.BaseURL,
				"embedding_model": cfg.AI.SiliconFlow.EmbeddingModel,
			},
		},
		"memory": map[string]any{
			"storage_path": cfg.Memory.StoragePath,
		},
		"planner": map[string]any{
			"window_days":        cfg.Planner.WindowDays,
			"plan_duration_days": cfg.Planner.PlanDurationDays,
		},
		"server": map[string]any{
			"port": cfg.Server.Port,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
