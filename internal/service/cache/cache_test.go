package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    int
	Title string
}

// fakeBackend 模拟远端的条目集合
type fakeBackend struct {
	mu    sync.Mutex
	items map[int]string
	calls map[string]int
	fail  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		items: map[int]string{5: "five", 7: "seven"},
		calls: make(map[string]int),
	}
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) detailQuery() Query[int, item] {
	return Query[int, item]{
		Endpoint: "getItem",
		Fetch: func(_ context.Context, id int) (item, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.calls[fmt.Sprintf("get%d", id)]++
			if b.fail {
				return item{}, errors.New("boom")
			}
			return item{ID: id, Title: b.items[id]}, nil
		},
		Provides: func(_ item, id int) []Tag { return []Tag{IDTag(TagEntry, id)} },
	}
}

func (b *fakeBackend) listQuery() Query[NoParams, []item] {
	return Query[NoParams, []item]{
		Endpoint: "getItems",
		Fetch: func(context.Context, NoParams) ([]item, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.calls["list"]++
			out := make([]item, 0, len(b.items))
			for id, title := range b.items {
				out = append(out, item{ID: id, Title: title})
			}
			return out, nil
		},
		Provides: func([]item, NoParams) []Tag { return []Tag{ListTag(TagEntry)} },
	}
}

func (b *fakeBackend) updateMutation() Mutation[item, item] {
	return Mutation[item, item]{
		Endpoint: "updateItem",
		Do: func(_ context.Context, in item) (item, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.fail {
				return item{}, errors.New("rejected")
			}
			b.items[in.ID] = in.Title
			return in, nil
		},
		Invalidates: func(_ item, in item) []Tag {
			return []Tag{IDTag(TagEntry, in.ID), ListTag(TagEntry), TypeTag(TagStats)}
		},
	}
}

func TestTagMatches(t *testing.T) {
	assert.True(t, TypeTag(TagEntry).Matches(IDTag(TagEntry, 5)))
	assert.True(t, IDTag(TagEntry, 5).Matches(IDTag(TagEntry, "5")))
	assert.False(t, IDTag(TagEntry, 5).Matches(IDTag(TagEntry, 7)))
	assert.False(t, IDTag(TagEntry, 5).Matches(ListTag(TagEntry)))
	assert.False(t, TypeTag(TagStats).Matches(TypeTag(TagEntry)))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "getItem(5)", Key("getItem", 5))
	assert.Equal(t, "getItems({})", Key("getItems", NoParams{}))
}

func TestFetchCachesAndReturnsImmediately(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	r := Fetch(ctx, c, b.detailQuery(), 5)
	require.NoError(t, r.Err)
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, "five", r.Data.Title)

	r = Fetch(ctx, c, b.detailQuery(), 5)
	assert.Equal(t, "five", r.Data.Title)
	assert.Equal(t, 1, b.count("get5"))
}

func TestConcurrentFetchesCoalesce(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	q := Query[int, int]{
		Endpoint: "slow",
		Fetch: func(context.Context, int) (int, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return 42, nil
		},
	}
	c := New()
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]Result[int], 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Fetch(context.Background(), c, q, 1)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, 42, r.Data)
	}
}

func TestMutationInvalidatesOnlyMatchingIDs(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	Fetch(ctx, c, b.detailQuery(), 5)
	Fetch(ctx, c, b.detailQuery(), 7)
	Fetch(ctx, c, b.listQuery(), NoParams{})

	_, err := Mutate(ctx, c, b.updateMutation(), item{ID: 5, Title: "FIVE"})
	require.NoError(t, err)

	s5, _ := c.State(Key("getItem", 5))
	s7, _ := c.State(Key("getItem", 7))
	sl, _ := c.State(Key("getItems", NoParams{}))
	assert.Equal(t, StatusStale, s5.Status)
	assert.Equal(t, StatusSuccess, s7.Status)
	assert.Equal(t, StatusStale, sl.Status)

	r := Fetch(ctx, c, b.detailQuery(), 5)
	assert.Equal(t, "FIVE", r.Data.Title)
	Fetch(ctx, c, b.detailQuery(), 7)
	assert.Equal(t, 2, b.count("get5"))
	assert.Equal(t, 1, b.count("get7"))
}

func TestTypeWideInvalidation(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	Fetch(ctx, c, b.detailQuery(), 5)
	Fetch(ctx, c, b.listQuery(), NoParams{})

	keys := c.Invalidate(TypeTag(TagEntry))
	assert.Len(t, keys, 2)
}

func TestFailedMutationDoesNotInvalidate(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	Fetch(ctx, c, b.detailQuery(), 5)
	b.fail = true
	_, err := Mutate(ctx, c, b.updateMutation(), item{ID: 5, Title: "x"})
	require.Error(t, err)

	s, _ := c.State(Key("getItem", 5))
	assert.Equal(t, StatusSuccess, s.Status)
}

func TestFailedRefetchKeepsPreviousValue(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	Fetch(ctx, c, b.detailQuery(), 5)
	c.Invalidate(IDTag(TagEntry, 5))
	b.fail = true

	r := Fetch(ctx, c, b.detailQuery(), 5)
	require.Error(t, r.Err)
	assert.True(t, r.HasData)
	assert.Equal(t, "five", r.Data.Title)
	assert.Equal(t, StatusError, r.Status)

	// Peek 不会自动重试失败的条目
	calls := b.count("get5")
	p := Peek(c, b.detailQuery(), 5)
	assert.Equal(t, StatusError, p.Status)
	assert.Equal(t, calls, b.count("get5"))

	b.fail = false
	r = Fetch(ctx, c, b.detailQuery(), 5)
	require.NoError(t, r.Err)
	assert.Equal(t, StatusSuccess, r.Status)
}

func TestPeekStaleWhileRevalidate(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()

	first := Peek(c, b.detailQuery(), 5)
	assert.False(t, first.HasData)
	assert.Equal(t, StatusLoading, first.Status)

	require.Eventually(t, func() bool {
		return Peek(c, b.detailQuery(), 5).Status == StatusSuccess
	}, time.Second, 5*time.Millisecond)

	b.mu.Lock()
	b.items[5] = "new five"
	b.mu.Unlock()
	c.Invalidate(IDTag(TagEntry, 5))

	stale := Peek(c, b.detailQuery(), 5)
	assert.True(t, stale.HasData)
	assert.Equal(t, "five", stale.Data.Title)

	require.Eventually(t, func() bool {
		r := Peek(c, b.detailQuery(), 5)
		return r.Status == StatusSuccess && r.Data.Title == "new five"
	}, time.Second, 5*time.Millisecond)
}

func TestInFlightResponseDiscardedAfterInvalidation(t *testing.T) {
	var mu sync.Mutex
	value := "old"
	started := make(chan struct{}, 4)
	gate := make(chan struct{})
	var calls int32

	q := Query[int, string]{
		Endpoint: "racy",
		Fetch: func(context.Context, int) (string, error) {
			n := atomic.AddInt32(&calls, 1)
			mu.Lock()
			v := value
			mu.Unlock()
			started <- struct{}{}
			if n == 1 {
				<-gate
			}
			return v, nil
		},
		Provides: func(string, int) []Tag { return []Tag{IDTag(TagEntry, 1)} },
	}
	c := New()
	defer c.Close()

	done := make(chan Result[string])
	go func() { done <- Fetch(context.Background(), c, q, 1) }()
	<-started

	// 请求在途时完成一次变更
	mu.Lock()
	value = "new"
	mu.Unlock()
	c.Invalidate(IDTag(TagEntry, 1))
	close(gate)

	r := <-done
	require.NoError(t, r.Err)
	assert.Equal(t, "new", r.Data)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSingleAttemptReportsInvalidation(t *testing.T) {
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	q := Query[int, string]{
		Endpoint: "racy",
		Fetch: func(context.Context, int) (string, error) {
			started <- struct{}{}
			<-gate
			return "old", nil
		},
		Provides: func(string, int) []Tag { return []Tag{IDTag(TagEntry, 1)} },
	}
	c := New(WithMaxAttempts(1))
	defer c.Close()

	done := make(chan Result[string])
	go func() { done <- Fetch(context.Background(), c, q, 1) }()
	<-started
	c.Invalidate(IDTag(TagEntry, 1))
	close(gate)

	r := <-done
	assert.ErrorIs(t, r.Err, ErrInvalidated)
	assert.False(t, r.HasData)
}

func TestFetchHonoursCallerContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	q := Query[int, int]{
		Endpoint: "blocked",
		Fetch: func(ctx context.Context, _ int) (int, error) {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return 0, nil
		},
	}
	c := New()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := Fetch(ctx, c, q, 1)
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	assert.False(t, r.HasData)
}

func TestCloseCancelsInFlight(t *testing.T) {
	q := Query[int, int]{
		Endpoint: "cancel",
		Fetch: func(ctx context.Context, _ int) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	c := New()
	done := make(chan Result[int])
	go func() { done <- Fetch(context.Background(), c, q, 1) }()
	time.Sleep(20 * time.Millisecond)
	c.Close()

	r := <-done
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func TestEvictionOfUnusedEntries(t *testing.T) {
	b := newFakeBackend()
	c := New(WithKeepUnusedFor(20 * time.Millisecond))
	defer c.Close()
	ctx := context.Background()

	key := Key("getItem", 7)
	unsubscribe := c.Subscribe(key, nil)
	Fetch(ctx, c, b.detailQuery(), 7)
	Fetch(ctx, c, b.detailQuery(), 5)

	require.Eventually(t, func() bool {
		_, ok := c.State(Key("getItem", 5))
		return !ok
	}, time.Second, 5*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	_, ok := c.State(key)
	assert.True(t, ok)

	unsubscribe()
	require.Eventually(t, func() bool {
		_, ok := c.State(key)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	var n int32
	unsubscribe := c.Subscribe(Key("getItem", 5), func() { atomic.AddInt32(&n, 1) })
	defer unsubscribe()

	Fetch(ctx, c, b.detailQuery(), 5)
	before := atomic.LoadInt32(&n)
	assert.GreaterOrEqual(t, before, int32(2))

	c.Invalidate(IDTag(TagEntry, 5))
	assert.Equal(t, before+1, atomic.LoadInt32(&n))
}

func TestReset(t *testing.T) {
	b := newFakeBackend()
	c := New()
	defer c.Close()
	ctx := context.Background()

	Fetch(ctx, c, b.detailQuery(), 5)
	c.Reset()
	_, ok := c.State(Key("getItem", 5))
	assert.False(t, ok)

	Fetch(ctx, c, b.detailQuery(), 5)
	assert.Equal(t, 2, b.count("get5"))
}
