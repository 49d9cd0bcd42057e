package command

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/scijournal/config"
	"github.com/weiwangfds/scijournal/internal/app"
	"github.com/weiwangfds/scijournal/internal/service/storage"
)

type cliHarness struct {
	t       *testing.T
	addr    string
	cfgPath string
	store   storage.Store
}

// newHarness 启动开发服务器并生成指向它的配置文件
func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, config.ServerConfig{
			Port:        0,
			Database:    config.DatabaseConfig{Driver: "memory"},
			JWTSecret:   "cli-test",
			JWTExpiry:   time.Hour,
			EnableHTTP2: true,
		}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	port := addr[strings.LastIndex(addr, ":")+1:]
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "journal.yaml")
	yaml := fmt.Sprintf(`api:
  base_url: http://127.0.0.1:%s/api
  timeout: 5s
storage:
  driver: memory
log:
  level: error
`, port)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	return &cliHarness{t: t, addr: "127.0.0.1:" + port, cfgPath: cfgPath, store: storage.NewMemoryStore()}
}

// run 执行一条命令，存储在多次调用之间共享
func (h *cliHarness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	a := NewApp(app.WithStore(h.store))
	a.Writer = &stdout
	a.ErrWriter = &stderr
	err := a.Run(append([]string{"scijournal", "--config", h.cfgPath}, args...))
	return stdout.String(), stderr.String(), err
}

// syncBuffer 可在命令运行期间并发读取的输出缓冲
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// start 在后台运行长时间命令，返回输出和停止函数
func (h *cliHarness) start(args ...string) (*syncBuffer, func() error) {
	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		a := NewApp(app.WithStore(h.store))
		a.Writer = out
		a.ErrWriter = out
		done <- a.RunContext(ctx, append([]string{"scijournal", "--config", h.cfgPath}, args...))
	}()
	return out, func() error {
		cancel()
		return <-done
	}
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.run(args...)
	require.NoError(h.t, err, "stdout: %s\nstderr: %s", out, errOut)
	return out
}

func TestHealthOverServe(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get("http://" + h.addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := h.mustRun("status")
	assert.Contains(t, out, "/api")
	assert.Contains(t, out, "Session:        signed out")
}

func TestJournalWorkflow(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("entries", "list")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Empty(t, out)

	out = h.mustRun("register", "--email", "ada@example.com", "--password", "pw")
	assert.Contains(t, out, "✓")

	out = h.mustRun("status")
	assert.Contains(t, out, "signed in")

	out = h.mustRun("entries", "create", "--title", "Day one", "--content", "a quiet morning walk",
		"--mood", "Peaceful", "--tag", "walk", "--tag", "morning", "--tag", "outside")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "#1 Day one")

	h.mustRun("prefs", "set", "--tags-to-show", "2", "--date-format", "YYYY-MM-DD")
	out = h.mustRun("entries", "list")
	assert.Contains(t, out, "Day one")
	assert.Contains(t, out, "#walk #morning +1")
	assert.Regexp(t, `#1\s+\d{4}-\d{2}-\d{2}  Day one`, out)
	assert.Contains(t, out, "1 of 1 entries")

	h.mustRun("entries", "update", "1", "--remove-tag", "outside", "--add-tag", "sun")
	out = h.mustRun("entries", "show", "1")
	assert.Contains(t, out, "Words:   4")
	assert.Contains(t, out, "#walk #morning +1")

	out = h.mustRun("stats")
	assert.Contains(t, out, "Total entries:      1")
	assert.Contains(t, out, "Peaceful")

	out, _, err = h.run("entries", "create", "--title", " ", "--content", "x")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out, "✗")

	out = h.mustRun("entries", "delete", "1")
	assert.Contains(t, out, "✓")
	out = h.mustRun("entries", "list")
	assert.Contains(t, out, "No entries yet.")

	out = h.mustRun("logout")
	assert.Contains(t, out, "✓")
	out = h.mustRun("status")
	assert.Contains(t, out, "signed out")
}

func TestCategoryCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "ada@example.com", "--password", "pw")

	out := h.mustRun("categories", "create", "--name", "Travel", "--color", "#FF0000")
	assert.Contains(t, out, "✓")

	out = h.mustRun("categories", "list")
	assert.Contains(t, out, "Travel")

	var id string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Travel") {
			id = strings.Fields(line)[0]
		}
	}
	require.NotEmpty(t, id)

	h.mustRun("categories", "update", id, "--name", "Trips")
	out = h.mustRun("categories", "list")
	assert.Contains(t, out, "Trips")
	assert.Contains(t, out, "#FF0000")

	out, _, err := h.run("categories", "create", "--name", "Bad", "--color", "red")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out, "✗")

	out = h.mustRun("categories", "delete", id)
	assert.Contains(t, out, "✓")
	out = h.mustRun("categories", "list")
	assert.NotContains(t, out, "Trips")
}

func TestPreferenceSyncCommands(t *testing.T) {
	h := newHarness(t)

	// 未登录时只修改本地
	out := h.mustRun("prefs", "set", "--view", "calendar")
	assert.Contains(t, out, "Default view:   calendar")
	assert.NotContains(t, out, "✓")

	_, _, err := h.run("prefs", "set", "--tags-to-show", "42")
	assert.ErrorIs(t, err, ErrFailed)

	_, _, err = h.run("prefs", "set")
	assert.Error(t, err)

	h.mustRun("register", "--email", "ada@example.com", "--password", "pw")
	out = h.mustRun("prefs", "set", "--dark-mode")
	assert.Contains(t, out, "Preferences saved")

	h.mustRun("prefs", "set", "--dark-mode=false", "--local")
	out = h.mustRun("prefs", "pull")
	assert.Contains(t, out, "Dark mode:      true")

	out = h.mustRun("prefs", "push")
	assert.Contains(t, out, "Preferences saved")
}

func TestEntriesCalendarView(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "ada@example.com", "--password", "pw")
	h.mustRun("entries", "create", "--title", "Morning", "--content", "x")
	h.mustRun("entries", "create", "--title", "Evening", "--content", "y")
	h.mustRun("prefs", "set", "--view", "calendar", "--date-format", "YYYY-MM-DD")

	out := h.mustRun("entries", "list")
	assert.Regexp(t, `\d{4}-\d{2}-\d{2}  \(2 entries\)`, out)
	assert.Regexp(t, `  #2\s+\d{1,2}:\d{2} [AP]M  Evening`, out)
	assert.Contains(t, out, "2 of 2 entries")

	out = h.mustRun("entries", "list", "--view", "list")
	assert.NotContains(t, out, "(2 entries)")
	assert.Regexp(t, `#2\s+\d{4}-\d{2}-\d{2}  Evening`, out)

	_, _, err := h.run("entries", "list", "--view", "grid")
	assert.Error(t, err)
}

func TestEntriesWatchRendersChanges(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "ada@example.com", "--password", "pw")

	out, stop := h.start("entries", "list", "--watch", "--interval", "50ms")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "No entries yet.")
	}, 5*time.Second, 20*time.Millisecond)

	h.mustRun("entries", "create", "--title", "Arrived later", "--content", "x")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Arrived later")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, stop())
}

func TestStatsWatchRefreshes(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "ada@example.com", "--password", "pw")

	out, stop := h.start("stats", "--watch", "--interval", "50ms")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Total entries:      0")
	}, 5*time.Second, 20*time.Millisecond)

	h.mustRun("entries", "create", "--title", "Counted", "--content", "one two")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Total entries:      1")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, stop())
}

func TestPreferenceToggleAndReset(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "ada@example.com", "--password", "pw")

	out := h.mustRun("prefs", "toggle-dark")
	assert.Contains(t, out, "Dark mode:      true")
	assert.Contains(t, out, "Preferences saved")

	h.mustRun("prefs", "set", "--tags-to-show", "8", "--local")
	out = h.mustRun("prefs", "reset", "--local")
	assert.Contains(t, out, "Dark mode:      false")
	assert.Contains(t, out, "Tags to show:   5")
	assert.NotContains(t, out, "Preferences saved")

	// 服务端仍是深色
	out = h.mustRun("prefs", "pull")
	assert.Contains(t, out, "Dark mode:      true")
}
