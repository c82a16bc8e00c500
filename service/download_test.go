package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ytdl2api/config"
	"ytdl2api/pkg/errors"
	"ytdl2api/proxy"
)

// fakePool 轮流返回预设代理并记录上报
type fakePool struct {
	mu           sync.Mutex
	proxies      []proxy.Proxy
	getErr       error
	cursor       int
	failures     []string
	successes    []string
	refreshDelay time.Duration
	refreshCalls int
}

func (f *fakePool) GetProxy(ctx context.Context) (proxy.Proxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return proxy.Proxy{}, f.getErr
	}
	p := f.proxies[f.cursor%len(f.proxies)]
	f.cursor++
	return p, nil
}

func (f *fakePool) ReportFailure(p proxy.Proxy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, p.Key())
}

func (f *fakePool) ReportSuccess(p proxy.Proxy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, p.Key())
}

func (f *fakePool) ForceRefresh(ctx context.Context) error {
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return nil
}

func (f *fakePool) completedRefreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakePool) Status() proxy.PoolStatus { return proxy.PoolStatus{} }
func (f *fakePool) Close() error             { return nil }

// fakeRunner 按脚本依次返回错误, 脚本耗尽后成功
type fakeRunner struct {
	mu     sync.Mutex
	script []error
	calls  int
	result *MediaResult
}

func (f *fakeRunner) Run(ctx context.Context, url, proxyURL string, audioOnly bool, progress func(int)) (*MediaResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		if err != nil {
			return nil, err
		}
	}
	if progress != nil {
		progress(100)
	}
	if f.result != nil {
		return f.result, nil
	}
	return &MediaResult{}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testDownloadConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Dir:         "assets",
		MaxParallel: 2,
		Retries:     3,
	}
}

func twoProxies() []proxy.Proxy {
	return []proxy.Proxy{
		{Host: "1.1.1.1", Port: 8080, Protocol: "http", Status: proxy.StatusWorking},
		{Host: "2.2.2.2", Port: 8080, Protocol: "http", Status: proxy.StatusWorking},
	}
}

func submitAndWait(t *testing.T, d *Downloader, tasks *TaskStore, url string) DownloadTask {
	t.Helper()

	task := &DownloadTask{
		Id:        "task_test_1",
		URL:       url,
		State:     TaskStatePending,
		CreatedAt: time.Now(),
	}
	tasks.Add(task)
	d.Submit(task.Id)
	d.Wait()

	result, ok := tasks.Get(task.Id)
	if !ok {
		t.Fatal("task vanished from store")
	}
	return result
}

func TestDownloadSuccess(t *testing.T) {
	pool := &fakePool{proxies: twoProxies()}
	runner := &fakeRunner{result: &MediaResult{
		Title:    "Test Video",
		Duration: "03:15",
		FileName: "Test_Video [abc].mp4",
		FileSize: 1024,
	}}
	tasks := NewTaskStore()
	d := NewDownloader(testDownloadConfig(), pool, tasks, runner)

	var completedId string
	d.OnComplete(func(taskId string) { completedId = taskId })

	task := submitAndWait(t, d, tasks, "https://example.com/watch?v=abc")

	if task.State != TaskStateCompleted {
		t.Fatalf("expected completed, got %s (%s)", task.State, task.Error)
	}
	if task.Progress != 100 {
		t.Errorf("expected progress 100, got %d", task.Progress)
	}
	if task.Title != "Test Video" || task.FileName != "Test_Video [abc].mp4" {
		t.Errorf("result not applied: %+v", task)
	}
	if completedId != task.Id {
		t.Errorf("onComplete not invoked with task id, got %q", completedId)
	}
	if len(pool.successes) != 1 {
		t.Errorf("expected 1 success report, got %d", len(pool.successes))
	}
	if len(pool.failures) != 0 {
		t.Errorf("expected no failure reports, got %v", pool.failures)
	}
}

func TestDownloadProxyErrorRetriesWithNextProxy(t *testing.T) {
	pool := &fakePool{proxies: twoProxies()}
	runner := &fakeRunner{script: []error{
		fmt.Errorf("unable to connect to proxy"),
	}}
	tasks := NewTaskStore()
	d := NewDownloader(testDownloadConfig(), pool, tasks, runner)
	d.retryDelay = 0

	task := submitAndWait(t, d, tasks, "https://example.com/watch?v=abc")

	if task.State != TaskStateCompleted {
		t.Fatalf("expected retry to recover, got %s (%s)", task.State, task.Error)
	}
	if runner.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", runner.callCount())
	}
	if len(pool.failures) != 1 || pool.failures[0] != "1.1.1.1:8080/http" {
		t.Errorf("first proxy must be reported failed, got %v", pool.failures)
	}
	if len(pool.successes) != 1 || pool.successes[0] != "2.2.2.2:8080/http" {
		t.Errorf("second proxy must be reported successful, got %v", pool.successes)
	}
}

func TestDownloadNonProxyErrorDoesNotRetry(t *testing.T) {
	pool := &fakePool{proxies: twoProxies()}
	runner := &fakeRunner{script: []error{
		fmt.Errorf("video unavailable: private video"),
	}}
	tasks := NewTaskStore()
	d := NewDownloader(testDownloadConfig(), pool, tasks, runner)

	task := submitAndWait(t, d, tasks, "https://example.com/watch?v=abc")

	if task.State != TaskStateError {
		t.Fatalf("expected error state, got %s", task.State)
	}
	if task.ProxyUnavailable {
		t.Error("download failure must not be marked as proxy unavailable")
	}
	if runner.callCount() != 1 {
		t.Errorf("non-proxy error must not retry, got %d attempts", runner.callCount())
	}
	if len(pool.failures) != 0 {
		t.Errorf("non-proxy error must not burn proxy credit, got %v", pool.failures)
	}
}

func TestDownloadNoProxyAvailable(t *testing.T) {
	pool := &fakePool{getErr: errors.ErrNoProxyAvailable}
	runner := &fakeRunner{}
	tasks := NewTaskStore()
	d := NewDownloader(testDownloadConfig(), pool, tasks, runner)

	task := submitAndWait(t, d, tasks, "https://example.com/watch?v=abc")

	if task.State != TaskStateError {
		t.Fatalf("expected error state, got %s", task.State)
	}
	if !task.ProxyUnavailable {
		t.Error("pool exhaustion must be marked as proxy unavailable")
	}
	if runner.callCount() != 0 {
		t.Errorf("runner must not be invoked without a proxy, got %d calls", runner.callCount())
	}
}

func TestDownloadRetriesExhausted(t *testing.T) {
	pool := &fakePool{proxies: twoProxies()}
	runner := &fakeRunner{script: []error{
		fmt.Errorf("connection refused"),
		fmt.Errorf("connection refused"),
		fmt.Errorf("connection refused"),
	}}
	tasks := NewTaskStore()

	cfg := testDownloadConfig()
	cfg.Retries = 2
	d := NewDownloader(cfg, pool, tasks, runner)
	d.retryDelay = 0

	task := submitAndWait(t, d, tasks, "https://example.com/watch?v=abc")

	if task.State != TaskStateError {
		t.Fatalf("expected error after exhausted retries, got %s", task.State)
	}
	if runner.callCount() != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", runner.callCount())
	}
	if len(pool.failures) != 3 {
		t.Errorf("every proxy error must be reported, got %d", len(pool.failures))
	}
}

func TestIsProxyError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("unable to connect to proxy"), true},
		{fmt.Errorf("Tunnel connection failed: 407"), true},
		{fmt.Errorf("read tcp: connection reset by peer"), true},
		{fmt.Errorf("dial tcp: i/o timed out"), true},
		{fmt.Errorf("video unavailable"), false},
		{fmt.Errorf("requested format is not available"), false},
		{stderrors.New("sign in to confirm your age"), false},
	}

	for _, tc := range cases {
		if got := isProxyError(tc.err); got != tc.want {
			t.Errorf("isProxyError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
