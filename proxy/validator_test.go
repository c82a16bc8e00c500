package proxy

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

// proxyFromServer 把一个httptest服务器当作HTTP代理使用。
// 对 http:// 目标的代理请求就是一个普通GET, 返回200即视为代理可用。
func proxyFromServer(t *testing.T, ts *httptest.Server) *Proxy {
	t.Helper()

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return &Proxy{Host: host, Port: port, Protocol: "http", Status: StatusUnknown}
}

func okProxyServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin": "127.0.0.1"}`))
	}))
}

func hungProxyServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
	}))
}

func TestValidateWorkingProxy(t *testing.T) {
	ts := okProxyServer(t)
	defer ts.Close()

	v := NewValidator("http://probe.test/ip", 2*time.Second, 4)
	result := v.Validate(context.Background(), proxyFromServer(t, ts))

	if !result.Completed {
		t.Fatal("expected completed result")
	}
	if !result.Working {
		t.Fatalf("expected working proxy, got error: %v", result.Err)
	}
	if result.Latency <= 0 {
		t.Error("expected positive latency")
	}
}

func TestValidateDeadProxy(t *testing.T) {
	ts := okProxyServer(t)
	ts.Close() // 端口已关闭, 连接必然失败

	v := NewValidator("http://probe.test/ip", time.Second, 4)
	result := v.Validate(context.Background(), proxyFromServer(t, ts))

	if !result.Completed {
		t.Fatal("expected completed result")
	}
	if result.Working {
		t.Fatal("expected dead proxy to fail validation")
	}
	if result.Err == nil {
		t.Error("expected an error for dead proxy")
	}
}

func TestValidateBadStatusCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	v := NewValidator("http://probe.test/ip", time.Second, 4)
	result := v.Validate(context.Background(), proxyFromServer(t, ts))

	if result.Working {
		t.Fatal("4xx response must not count as working")
	}
}

func TestValidateAllPreservesInputOrder(t *testing.T) {
	good := okProxyServer(t)
	defer good.Close()
	dead := okProxyServer(t)
	dead.Close()

	proxies := []*Proxy{
		proxyFromServer(t, good),
		proxyFromServer(t, dead),
		proxyFromServer(t, good),
	}

	v := NewValidator("http://probe.test/ip", time.Second, 2)
	results := v.ValidateAll(context.Background(), proxies)

	if len(results) != len(proxies) {
		t.Fatalf("expected %d results, got %d", len(proxies), len(results))
	}
	want := []bool{true, false, true}
	for i, w := range want {
		if !results[i].Completed {
			t.Errorf("result %d not completed", i)
		}
		if results[i].Working != w {
			t.Errorf("result %d: working=%v, want %v", i, results[i].Working, w)
		}
	}
}

func TestValidateAllHungProxyDoesNotBlockBatch(t *testing.T) {
	good := okProxyServer(t)
	defer good.Close()
	hung := hungProxyServer(t, 5*time.Second)
	defer hung.Close()

	proxies := []*Proxy{
		proxyFromServer(t, hung),
		proxyFromServer(t, good),
		proxyFromServer(t, good),
	}

	// 单探测超时500ms, 挂死的代理只占用自己的超时窗口
	v := NewValidator("http://probe.test/ip", 500*time.Millisecond, 3)

	start := time.Now()
	results := v.ValidateAll(context.Background(), proxies)
	elapsed := time.Since(start)

	if elapsed > 3*time.Second {
		t.Fatalf("batch took %v, hung proxy blocked the others", elapsed)
	}
	if results[0].Working {
		t.Error("hung proxy must not validate as working")
	}
	if !results[1].Working || !results[2].Working {
		t.Error("healthy proxies must validate despite the hung one")
	}
}

func TestValidateAllDeadlineReturnsPartialResults(t *testing.T) {
	hung := hungProxyServer(t, 5*time.Second)
	defer hung.Close()
	good := okProxyServer(t)
	defer good.Close()

	proxies := []*Proxy{
		proxyFromServer(t, good),
		proxyFromServer(t, hung),
	}

	// 整体截止时间先于挂死探测的超时到期
	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()

	v := NewValidator("http://probe.test/ip", 10*time.Second, 2)

	start := time.Now()
	results := v.ValidateAll(ctx, proxies)
	elapsed := time.Since(start)

	if elapsed > 3*time.Second {
		t.Fatalf("ValidateAll did not honor the deadline, took %v", elapsed)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Completed || !results[0].Working {
		t.Errorf("fast probe should have completed successfully: %+v", results[0])
	}
	// 挂死的探测要么被截止时间打断, 要么标记为未完成, 都不可判定为可用
	if results[1].Working {
		t.Error("hung probe must not be working")
	}
	if results[1].Err == nil {
		t.Error("hung probe must carry an error")
	}
}

func TestValidateAllEmptyInput(t *testing.T) {
	v := NewValidator("http://probe.test/ip", time.Second, 2)
	if results := v.ValidateAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results for empty input, got %v", results)
	}
}

func TestValidateAllBoundedConcurrency(t *testing.T) {
	var active, peak int64
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-mu
		active++
		if active > peak {
			peak = active
		}
		mu <- struct{}{}

		time.Sleep(100 * time.Millisecond)

		<-mu
		active--
		mu <- struct{}{}
	}))
	defer ts.Close()

	proxies := make([]*Proxy, 8)
	for i := range proxies {
		proxies[i] = proxyFromServer(t, ts)
	}

	v := NewValidator("http://probe.test/ip", 5*time.Second, 2)
	v.ValidateAll(context.Background(), proxies)

	<-mu
	got := peak
	mu <- struct{}{}

	if got > 2 {
		t.Fatalf("concurrency limit 2 exceeded, peak was %d", got)
	}
}
