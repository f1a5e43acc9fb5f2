package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变化，serve 模式下支持热更新日志级别等运行时配置。
// 编辑器保存通常触发多个事件，做 500ms 防抖后只回调一次。
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)
}

// NewWatcher 创建配置监听器。onChange 在配置文件重新加载成功后回调。
func NewWatcher(configPath string, onChange func(*Config)) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("configPath 不能为空")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	// 监听目录而不是文件本身：很多编辑器用 rename+create 保存，监听文件会丢失句柄
	if err := fw.Add(filepath.Dir(configPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("添加监控目录失败: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		path:     configPath,
		onChange: onChange,
	}, nil
}

// Run 阻塞运行直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("配置文件监控错误", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("重新加载配置失败，保留旧配置", "error", err)
		return
	}
	slog.Info("配置文件已重新加载", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
