package journal

import (
	"context"
	"time"

	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/cache"
)

// WatchEntries 持续观察一页日记列表，直到 ctx 结束
// 列表被失效或缓存被重置后在后台重新请求，先返回旧数据，数据就绪或请求失败时调用 fn
// interval>0 时按周期标记列表过期，用于拾取其他客户端的修改
func (s *Service) WatchEntries(ctx context.Context, params model.ListParams, interval time.Duration, fn func(cache.Result[model.EntryList])) {
	params = params.Normalize()
	key := s.EntriesKey(params)

	changed := make(chan struct{}, 1)
	signal := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	unsubscribe := s.cache.Subscribe(key, signal)
	defer func() { unsubscribe() }()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	deliver := func() {
		// 重置后旧条目不再产生事件，需要订阅新条目
		if snap, ok := s.cache.State(key); !ok || snap.Subscribers == 0 {
			unsubscribe()
			unsubscribe = s.cache.Subscribe(key, signal)
		}
		r := s.PeekEntries(params)
		if r.Status == cache.StatusLoading {
			return
		}
		fn(r)
	}

	deliver()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			deliver()
		case <-tick:
			s.cache.Invalidate(cache.ListTag(cache.TagEntry))
		}
	}
}

// Revalidate 标记全部日记数据过期，已订阅的视图会重新请求
// 本地存储被其他进程修改后调用，例如另一个终端登录了其他账号
func (s *Service) Revalidate(context.Context) error {
	keys := s.cache.Invalidate(
		cache.TypeTag(cache.TagEntry),
		cache.TypeTag(cache.TagStats),
		cache.TypeTag(cache.TagCategory),
	)
	logger.Debugf("[日记] 存储已变化，失效缓存条目 %d 个", len(keys))
	return nil
}
