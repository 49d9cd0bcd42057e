// Package watcher 监听本地存储文件变化，在其他进程修改会话或偏好后重新加载
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/weiwangfds/scijournal/internal/logger"
)

// DefaultDebounce 合并连续写入的等待时长
const DefaultDebounce = 200 * time.Millisecond

// Reloader 可从持久化存储重新加载的状态
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadFunc 函数形式的 Reloader
type ReloadFunc func(ctx context.Context) error

// Reload 调用函数本身
func (f ReloadFunc) Reload(ctx context.Context) error {
	return f(ctx)
}

// StoreWatcher 存储文件监听器
// 监听文件所在目录，文件本身及其 -wal、-journal 等伴生文件变化时触发重新加载
type StoreWatcher struct {
	path     string
	debounce time.Duration
	targets  []Reloader

	mu        sync.Mutex
	isRunning bool
	watcher   *fsnotify.Watcher
	timer     *time.Timer
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewStoreWatcher 创建监听器，debounce<=0 时使用默认值
func NewStoreWatcher(path string, debounce time.Duration, targets ...Reloader) *StoreWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &StoreWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		targets:  targets,
	}
}

// Start 开始监听，ctx 结束或调用 Stop 后退出
func (w *StoreWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("store watcher is already running")
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.watcher = fw
	w.stopChan = make(chan struct{})
	w.isRunning = true

	w.wg.Add(1)
	go w.processEvents(ctx, fw, w.stopChan)

	logger.Infof("[存储监听] 开始监听 %s", w.path)
	return nil
}

// Stop 停止监听并等待处理协程退出
func (w *StoreWatcher) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	close(w.stopChan)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	w.wg.Wait()
	logger.Infof("[存储监听] 已停止")
	return fw.Close()
}

// IsRunning 是否正在监听
func (w *StoreWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *StoreWatcher) processEvents(ctx context.Context, fw *fsnotify.Watcher, stop <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.schedule(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warnf("[存储监听] 监听错误: %v", err)
		}
	}
}

// relevant 只关心存储文件及其伴生文件的写入、创建和删除
func (w *StoreWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.path || strings.HasPrefix(name, w.path+"-")
}

// schedule 重置防抖计时器，计时结束后统一重新加载
func (w *StoreWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
}

func (w *StoreWatcher) reload(ctx context.Context) {
	if ctx.Err() != nil || !w.IsRunning() {
		return
	}
	logger.Debugf("[存储监听] 检测到存储变化，重新加载")
	for _, target := range w.targets {
		if err := target.Reload(ctx); err != nil {
			logger.Warnf("[存储监听] 重新加载失败: %v", err)
		}
	}
}
