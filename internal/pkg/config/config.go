package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	Planner PlannerConfig `mapstructure:"planner"`
	Server  ServerConfig  `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	UserID   string `mapstructure:"user_id"` // 单用户部署，默认 local
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// AIConfig AI 配置
type AIConfig struct {
	DeepSeek    DeepSeekConfig    `mapstructure:"deepseek"`
	SiliconFlow SiliconFlowConfig `mapstructure:"siliconflow"`
}

// DeepSeekConfig 计划生成端配置
type DeepSeekConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// SiliconFlowConfig 嵌入服务配置（调整记忆库用，留空则关闭记忆）
type SiliconFlowConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// MemoryConfig 调整记忆库配置
type MemoryConfig struct {
	StoragePath string `mapstructure:"storage_path"`
}

// PlannerConfig 规划器配置
type PlannerConfig struct {
	WindowDays       int `mapstructure:"window_days"`       // 分析回看天数
	PlanDurationDays int `mapstructure:"plan_duration_days"` // 首次生成的计划天数
}

// ServerConfig 本地 API 服务配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("FITPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.AI.DeepSeek.APIKey = expandEnv(cfg.AI.DeepSeek.APIKey)
	cfg.AI.SiliconFlow.APIKey = expandEnv(cfg.AI.SiliconFlow.APIKey)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	cfg.Memory.StoragePath = resolvePath(cfg.Memory.StoragePath)

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fitplan")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.user_id", "local")

	v.SetDefault("storage.db_path", "./data/fitplan.db")

	v.SetDefault("ai.deepseek.base_url", "https://api.deepseek.com")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.deepseek.timeout_sec", 60)
	v.SetDefault("ai.siliconflow.base_url", "https://api.siliconflow.cn")
	v.SetDefault("ai.siliconflow.embedding_model", "BAAI/bge-m3")

	v.SetDefault("memory.storage_path", "./data/memory")

	v.SetDefault("planner.window_days", 7)
	v.SetDefault("planner.plan_duration_days", 7)

	v.SetDefault("server.port", 8421)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径（相对可执行文件目录）
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
