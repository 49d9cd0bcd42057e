// Package cache 实现带标签失效的查询缓存
//
// 每个缓存条目由端点名和参数确定，查询结果声明自己提供的标签，
// 变更成功后按声明的失效标签把相关条目标记为过期，下次访问时重新获取。
// 同一条目同一时刻最多只有一个请求在途。条目带有版本号，失效会递增版本，
// 请求结束时版本已变化则丢弃其结果，避免变更之前发出的请求覆盖新数据。
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weiwangfds/scijournal/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Status 条目状态
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusSuccess
	StatusError
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// ErrInvalidated 请求多次被失效打断，且没有可用的旧数据
var ErrInvalidated = errors.New("cache: result invalidated while fetching")

// 默认值
const (
	DefaultKeepUnusedFor = 60 * time.Second
	DefaultMaxAttempts   = 3
)

// Result 查询结果，HasData 为 true 时 Data 有效，Err 独立于数据存在
type Result[T any] struct {
	Data    T
	HasData bool
	Err     error
	Status  Status
}

// Query 查询定义
type Query[P, T any] struct {
	Endpoint string
	Fetch    func(ctx context.Context, params P) (T, error)
	// Provides 返回结果提供的标签，请求未完成时以零值调用
	Provides func(result T, params P) []Tag
}

// Mutation 变更定义
type Mutation[P, T any] struct {
	Endpoint string
	Do       func(ctx context.Context, params P) (T, error)
	// Invalidates 变更成功后需要失效的标签
	Invalidates func(result T, params P) []Tag
}

// Snapshot 条目状态快照
type Snapshot struct {
	Key         string
	Status      Status
	HasData     bool
	Err         error
	Version     uint64
	Subscribers int
	Tags        []Tag
}

type entry struct {
	key            string
	loading        bool
	value          any
	hasValue       bool
	err            error
	version        uint64
	fetchedVersion uint64
	provides       []Tag
	refs           int
	evict          *time.Timer
	listeners      map[int]func()
}

func (e *entry) status() Status {
	switch {
	case e.loading:
		return StatusLoading
	case e.err != nil:
		return StatusError
	case !e.hasValue:
		return StatusUninitialized
	case e.fetchedVersion != e.version:
		return StatusStale
	default:
		return StatusSuccess
	}
}

func (e *entry) fresh() bool {
	return e.hasValue && e.err == nil && !e.loading && e.fetchedVersion == e.version
}

// Cache 查询缓存
type Cache struct {
	mu            sync.Mutex
	entries       map[string]*entry
	group         singleflight.Group
	gen           uint64
	nextListener  int
	keepUnusedFor time.Duration
	maxAttempts   int

	ctx    context.Context
	cancel context.CancelFunc
}

// Option 缓存选项
type Option func(*Cache)

// WithKeepUnusedFor 无订阅者条目的保留时长，0表示不回收
func WithKeepUnusedFor(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.keepUnusedFor = d
		}
	}
}

// WithMaxAttempts Fetch 在结果被失效丢弃时的最大尝试次数
func WithMaxAttempts(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// New 创建缓存
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:       make(map[string]*entry),
		keepUnusedFor: DefaultKeepUnusedFor,
		maxAttempts:   DefaultMaxAttempts,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entryLocked 获取或创建条目，调用方需持有锁
func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, listeners: make(map[int]func())}
		c.entries[key] = e
	}
	return e
}

func snapshot[T any](e *entry) Result[T] {
	r := Result[T]{Err: e.err, Status: e.status()}
	if e.hasValue {
		if v, ok := e.value.(T); ok {
			r.Data = v
			r.HasData = true
		}
	}
	return r
}

type fetchOutcome struct {
	discarded bool
}

// start 启动或加入条目的在途请求
func start[P, T any](c *Cache, key string, q Query[P, T], params P) <-chan singleflight.Result {
	c.mu.Lock()
	flightKey := fmt.Sprintf("%d|%s", c.gen, key)
	c.mu.Unlock()

	return c.group.DoChan(flightKey, func() (any, error) {
		c.mu.Lock()
		e := c.entryLocked(key)
		startVersion := e.version
		e.loading = true
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
		// 首次请求时用零值登记标签，使在途请求也能被失效
		if len(e.provides) == 0 && q.Provides != nil {
			var zero T
			e.provides = q.Provides(zero, params)
		}
		c.mu.Unlock()
		c.emit(e)

		logger.Debugf("[缓存] 请求开始: %s (版本 %d)", key, startVersion)
		val, err := q.Fetch(c.ctx, params)

		c.mu.Lock()
		if c.entries[key] != e {
			// 条目在请求期间被重置或回收
			c.mu.Unlock()
			return fetchOutcome{discarded: true}, nil
		}
		e.loading = false
		if e.version != startVersion {
			c.scheduleEvictLocked(e)
			c.mu.Unlock()
			logger.Debugf("[缓存] 丢弃过期响应: %s (版本 %d -> %d)", key, startVersion, e.version)
			c.emit(e)
			return fetchOutcome{discarded: true}, nil
		}
		if err != nil {
			e.err = err
			logger.Warnf("[缓存] 请求失败: %s, err=%v", key, err)
		} else {
			e.value = val
			e.hasValue = true
			e.err = nil
			e.fetchedVersion = startVersion
			if q.Provides != nil {
				e.provides = q.Provides(val, params)
			}
		}
		c.scheduleEvictLocked(e)
		c.mu.Unlock()
		c.emit(e)
		return fetchOutcome{}, nil
	})
}

// Fetch 阻塞读取：条目新鲜时直接返回，否则加入或发起请求并等待结果
// 请求结果被失效丢弃时重新请求，最多 maxAttempts 次
func Fetch[P, T any](ctx context.Context, c *Cache, q Query[P, T], params P) Result[T] {
	key := Key(q.Endpoint, params)

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		c.mu.Lock()
		e := c.entryLocked(key)
		if e.fresh() {
			r := snapshot[T](e)
			c.mu.Unlock()
			return r
		}
		c.mu.Unlock()

		ch := start(c, key, q, params)
		select {
		case <-ctx.Done():
			c.mu.Lock()
			r := snapshot[T](c.entryLocked(key))
			c.mu.Unlock()
			r.Err = ctx.Err()
			return r
		case res := <-ch:
			if res.Err != nil {
				return Result[T]{Err: res.Err, Status: StatusError}
			}
			if out, ok := res.Val.(fetchOutcome); ok && out.discarded {
				continue
			}
			c.mu.Lock()
			r := snapshot[T](c.entryLocked(key))
			c.mu.Unlock()
			return r
		}
	}

	c.mu.Lock()
	r := snapshot[T](c.entryLocked(key))
	c.mu.Unlock()
	if !r.HasData && r.Err == nil {
		r.Err = ErrInvalidated
	}
	return r
}

// Peek 非阻塞读取：返回当前数据，条目未初始化或已过期时在后台发起请求
// 上次请求失败的条目不会自动重试
func Peek[P, T any](c *Cache, q Query[P, T], params P) Result[T] {
	key := Key(q.Endpoint, params)

	c.mu.Lock()
	e := c.entryLocked(key)
	r := snapshot[T](e)
	needFetch := !e.loading && e.err == nil && (!e.hasValue || e.fetchedVersion != e.version)
	c.mu.Unlock()

	if needFetch {
		start(c, key, q, params)
		r.Status = StatusLoading
	}
	return r
}

// Refetch 忽略新鲜度强制重新请求，失败的条目也会重试
func Refetch[P, T any](ctx context.Context, c *Cache, q Query[P, T], params P) Result[T] {
	key := Key(q.Endpoint, params)
	c.mu.Lock()
	e := c.entryLocked(key)
	e.version++
	e.err = nil
	c.mu.Unlock()
	return Fetch(ctx, c, q, params)
}

// Mutate 执行变更，成功后按声明的标签失效缓存，失败时不做任何失效
func Mutate[P, T any](ctx context.Context, c *Cache, m Mutation[P, T], params P) (T, error) {
	val, err := m.Do(ctx, params)
	if err != nil {
		logger.Debugf("[缓存] 变更失败: %s, err=%v", m.Endpoint, err)
		return val, err
	}
	if m.Invalidates != nil {
		tags := m.Invalidates(val, params)
		keys := c.Invalidate(tags...)
		logger.Debugf("[缓存] 变更 %s 失效标签 %v, 影响条目 %d 个", m.Endpoint, tags, len(keys))
	}
	return val, nil
}

// Invalidate 将提供了匹配标签的条目标记为过期，返回受影响的键
func (c *Cache) Invalidate(tags ...Tag) []string {
	if len(tags) == 0 {
		return nil
	}

	c.mu.Lock()
	var hit []*entry
	for _, e := range c.entries {
		if intersects(e.provides, tags) {
			e.version++
			e.err = nil
			hit = append(hit, e)
		}
	}
	c.mu.Unlock()

	keys := make([]string, 0, len(hit))
	for _, e := range hit {
		keys = append(keys, e.key)
		c.emit(e)
	}
	return keys
}

// Subscribe 订阅条目变化，持有订阅期间条目不会被回收，返回取消函数
func (c *Cache) Subscribe(key string, fn func()) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.refs++
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	id := c.nextListener
	c.nextListener++
	if fn != nil {
		e.listeners[id] = fn
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.listeners, id)
			e.refs--
			if c.entries[key] == e {
				c.scheduleEvictLocked(e)
			}
		})
	}
}

// scheduleEvictLocked 无订阅者时安排回收，调用方需持有锁
func (c *Cache) scheduleEvictLocked(e *entry) {
	if e.refs > 0 || e.loading || c.keepUnusedFor <= 0 {
		return
	}
	if e.evict != nil {
		e.evict.Stop()
	}
	e.evict = time.AfterFunc(c.keepUnusedFor, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entries[e.key] == e && e.refs == 0 && !e.loading {
			delete(c.entries, e.key)
			logger.Debugf("[缓存] 回收未使用条目: %s", e.key)
		}
	})
}

// emit 在锁外通知订阅者
func (c *Cache) emit(e *entry) {
	c.mu.Lock()
	fns := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// State 条目状态快照，条目不存在时 ok 为 false
func (c *Cache) State(key string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key}, false
	}
	return Snapshot{
		Key:         key,
		Status:      e.status(),
		HasData:     e.hasValue,
		Err:         e.err,
		Version:     e.version,
		Subscribers: e.refs,
		Tags:        append([]Tag(nil), e.provides...),
	}, true
}

// Reset 清空所有条目，在途请求的结果会被丢弃，退出登录时调用
func (c *Cache) Reset() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]*entry)
	c.gen++
	for _, e := range old {
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
	}
	c.mu.Unlock()

	for _, e := range old {
		c.emit(e)
	}
	logger.Debugf("[缓存] 已重置，清除条目 %d 个", len(old))
}

// Close 取消所有在途请求并停止回收计时器
func (c *Cache) Close() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
	}
}
