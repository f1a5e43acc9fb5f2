package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")

	cfg := Default()
	cfg.App.LogLevel = "debug"
	cfg.Server.Port = 9000
	cfg.Planner.WindowDays = 14

	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile 失败: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("配置文件未写入: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if loaded.App.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", loaded.App.LogLevel)
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", loaded.Server.Port)
	}
	if loaded.Planner.WindowDays != 14 {
		t.Errorf("planner.window_days = %d, want 14", loaded.Planner.WindowDays)
	}
	if loaded.AI.DeepSeek.Model != "deepseek-chat" {
		t.Errorf("deepseek.model = %q, want deepseek-chat", loaded.AI.DeepSeek.Model)
	}
}

func TestWriteFileRejectsBadArgs(t *testing.T) {
	if err := WriteFile("", Default()); err == nil {
		t.Error("空路径应当报错")
	}
	if err := WriteFile(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Error("空配置应当报错")
	}
}
