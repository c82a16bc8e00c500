package proxy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ytdl2api/log"
	"ytdl2api/pkg/constants"

	"github.com/imroc/req/v3"
)

// ValidationResult 单次探测的结果。
// 网络层的任何失败都被吸收为 Working=false + Err，绝不向上抛出。
type ValidationResult struct {
	Working bool
	Latency time.Duration
	Err     error
	// Completed 为 false 表示整体截止时间先于该探测结束，
	// 对应的代理应保持 unknown，留待下一轮验证。
	Completed bool
}

// Validator 通过候选代理向固定探测目标发起请求来判断代理是否可用
type Validator struct {
	probeURL    string
	timeout     time.Duration
	concurrency int
}

// NewValidator 创建验证器
func NewValidator(probeURL string, timeout time.Duration, concurrency int) *Validator {
	if concurrency <= 0 {
		concurrency = constants.DefaultValidateConcurrency
	}
	if timeout <= 0 {
		timeout = constants.DefaultProbeTimeout
	}
	return &Validator{
		probeURL:    probeURL,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Validate 通过代理请求探测目标，在超时内收到成功状态码才算可用
func (v *Validator) Validate(ctx context.Context, p *Proxy) ValidationResult {
	start := time.Now()

	// req 的 SetProxyURL 同时支持 http/https/socks5 三种代理协议
	client := req.C().
		SetTimeout(v.timeout).
		SetProxyURL(p.URL()).
		SetUserAgent(constants.UserAgent)
	defer client.GetClient().CloseIdleConnections()

	resp, err := client.R().SetContext(ctx).Get(v.probeURL)
	if err != nil {
		return ValidationResult{Working: false, Err: err, Completed: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return ValidationResult{
			Working:   false,
			Err:       fmt.Errorf("probe returned status %d", resp.StatusCode),
			Completed: true,
		}
	}

	return ValidationResult{Working: true, Latency: time.Since(start), Completed: true}
}

// ValidateAll 以受限并发验证一批代理，结果顺序与输入一致。
// 每个探测独立受超时约束，个别挂死的探测不会阻塞其余候选；
// ctx 到期时立即返回已完成的子集，未完成的结果 Completed=false。
func (v *Validator) ValidateAll(ctx context.Context, proxies []*Proxy) []ValidationResult {
	if len(proxies) == 0 {
		return nil
	}

	log.Info("开始验证 %d 个代理, 并发上限 %d", len(proxies), v.concurrency)

	results := make([]ValidationResult, len(proxies))
	resolved := make([]atomic.Bool, len(proxies))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.concurrency)

	for i, p := range proxies {
		wg.Add(1)
		go func(i int, p *Proxy) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			// 先写结果再置位，读方通过原子位判断结果是否就绪
			results[i] = v.Validate(ctx, p)
			resolved[i].Store(true)
		}(i, p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("验证批次在截止时间前未全部完成, 仅采用已完成的结果")
	}

	out := make([]ValidationResult, len(proxies))
	completed := 0
	working := 0
	for i := range proxies {
		if resolved[i].Load() {
			out[i] = results[i]
			completed++
			if out[i].Working {
				working++
			}
		} else {
			out[i] = ValidationResult{Working: false, Err: ctx.Err(), Completed: false}
		}
	}

	log.Info("验证批次结束: 完成 %d/%d, 可用 %d", completed, len(proxies), working)
	return out
}
