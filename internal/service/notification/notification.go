// Package notification 提供单槽位的临时通知
// 新通知直接替换旧通知，每条通知到期后自动消失
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/scijournal/internal/logger"
)

// Severity 通知级别
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DefaultDuration 默认展示时长
const DefaultDuration = 4000 * time.Millisecond

// Notification 一条通知
type Notification struct {
	ID        string
	Message   string
	Severity  Severity
	Duration  time.Duration
	CreatedAt time.Time
}

// Listener 通知变化回调，通知消失时参数为nil
type Listener func(*Notification)

// Center 通知中心
type Center struct {
	mu              sync.Mutex
	current         *Notification
	timer           *time.Timer
	defaultDuration time.Duration
	listeners       map[int]Listener
	nextID          int
}

// NewCenter 创建通知中心，defaultDuration<=0时使用4秒
func NewCenter(defaultDuration time.Duration) *Center {
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}
	return &Center{
		defaultDuration: defaultDuration,
		listeners:       make(map[int]Listener),
	}
}

// Show 展示通知并替换当前通知，duration<=0时使用默认时长，返回通知ID
func (c *Center) Show(message string, severity Severity, duration time.Duration) string {
	if severity == "" {
		severity = SeverityInfo
	}

	c.mu.Lock()
	if duration <= 0 {
		duration = c.defaultDuration
	}
	n := &Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		Duration:  duration,
		CreatedAt: time.Now(),
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.current = n
	id := n.ID
	// 计时器只负责关闭它对应的那条通知
	c.timer = time.AfterFunc(duration, func() { c.DismissID(id) })
	c.mu.Unlock()

	logger.Debugf("[通知] %s: %s", severity, message)
	c.notify(n)
	return id
}

// Success 展示成功通知
func (c *Center) Success(message string) string {
	return c.Show(message, SeveritySuccess, 0)
}

// Error 展示错误通知
func (c *Center) Error(message string) string {
	return c.Show(message, SeverityError, 0)
}

// Info 展示提示通知
func (c *Center) Info(message string) string {
	return c.Show(message, SeverityInfo, 0)
}

// Warning 展示警告通知
func (c *Center) Warning(message string) string {
	return c.Show(message, SeverityWarning, 0)
}

// Dismiss 关闭当前通知
func (c *Center) Dismiss() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	c.mu.Unlock()
	c.notify(nil)
}

// DismissID 仅当当前通知为id时关闭
func (c *Center) DismissID(id string) bool {
	c.mu.Lock()
	if c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		return false
	}
	c.clearLocked()
	c.mu.Unlock()
	c.notify(nil)
	return true
}

func (c *Center) clearLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.current = nil
}

// Current 当前通知的副本，没有时返回nil
func (c *Center) Current() *Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	n := *c.current
	return &n
}

// Subscribe 订阅通知变化，返回取消函数
func (c *Center) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Center) notify(n *Notification) {
	c.mu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		if n == nil {
			fn(nil)
			continue
		}
		cp := *n
		fn(&cp)
	}
}
