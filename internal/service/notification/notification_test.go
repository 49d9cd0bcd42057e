package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowReplacesCurrent(t *testing.T) {
	c := NewCenter(time.Minute)

	first := c.Show("saving", SeverityInfo, 0)
	second := c.Error("Failed to create entry")

	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, second, cur.ID)
	assert.NotEqual(t, first, second)
	assert.Equal(t, SeverityError, cur.Severity)
	assert.Equal(t, time.Minute, cur.Duration)

	assert.False(t, c.DismissID(first))
	assert.NotNil(t, c.Current())
}

func TestDefaultSeverityAndDuration(t *testing.T) {
	c := NewCenter(0)
	c.Show("hello", "", 0)
	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, SeverityInfo, cur.Severity)
	assert.Equal(t, DefaultDuration, cur.Duration)
}

func TestAutoDismiss(t *testing.T) {
	c := NewCenter(time.Minute)
	c.Show("short", SeveritySuccess, 20*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Current() == nil }, time.Second, 5*time.Millisecond)
}

func TestOldTimerDoesNotDismissNewNotification(t *testing.T) {
	c := NewCenter(time.Minute)
	c.Show("first", SeverityInfo, 30*time.Millisecond)
	second := c.Show("second", SeverityInfo, time.Minute)

	time.Sleep(80 * time.Millisecond)
	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, second, cur.ID)
}

func TestDismissAndSubscribe(t *testing.T) {
	c := NewCenter(time.Minute)

	var mu sync.Mutex
	var events []*Notification
	cancel := c.Subscribe(func(n *Notification) {
		mu.Lock()
		events = append(events, n)
		mu.Unlock()
	})

	c.Warning("careful")
	c.Dismiss()
	c.Dismiss()
	cancel()
	c.Info("unseen")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "careful", events[0].Message)
	assert.Nil(t, events[1])
}
