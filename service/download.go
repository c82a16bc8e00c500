package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"ytdl2api/config"
	"ytdl2api/log"
	"ytdl2api/proxy"
)

// Downloader 下载任务的后台执行器。
// 并发槽位限制同时运行的任务数，每个任务通过代理池取代理执行，
// 代理类错误会上报失败并换代理重试，下载本身的错误不消耗代理信用。
type Downloader struct {
	cfg    config.DownloadConfig
	pool   ProxyPool
	tasks  *TaskStore
	runner MediaRunner

	slots      chan struct{}
	wg         sync.WaitGroup
	retryDelay time.Duration

	// onComplete 任务成功落盘后的回调，用于缓存失效等
	onComplete func(taskId string)
}

// NewDownloader 创建下载执行器
func NewDownloader(cfg config.DownloadConfig, pool ProxyPool, tasks *TaskStore, runner MediaRunner) *Downloader {
	maxParallel := cfg.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}

	return &Downloader{
		cfg:        cfg,
		pool:       pool,
		tasks:      tasks,
		runner:     runner,
		slots:      make(chan struct{}, maxParallel),
		retryDelay: 2 * time.Second,
	}
}

// OnComplete 注册任务完成回调
func (d *Downloader) OnComplete(fn func(taskId string)) {
	d.onComplete = fn
}

// Submit 异步调度一个已登记的任务
func (d *Downloader) Submit(taskId string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		d.slots <- struct{}{}
		defer func() { <-d.slots }()

		d.execute(taskId)
	}()
}

// Wait 等待所有在途任务结束
func (d *Downloader) Wait() {
	d.wg.Wait()
}

// execute 运行单个任务的完整生命周期
func (d *Downloader) execute(taskId string) {
	task, ok := d.tasks.Get(taskId)
	if !ok {
		log.Warn("Task %s disappeared before execution", taskId)
		return
	}

	d.tasks.Update(taskId, func(t *DownloadTask) {
		t.State = TaskStateDownloading
		t.StartedAt = time.Now()
	})
	log.Info("Task %s started: %s", taskId, task.URL)

	ctx := context.Background()
	progress := func(percent int) {
		d.tasks.Update(taskId, func(t *DownloadTask) {
			if percent > t.Progress {
				t.Progress = percent
			}
		})
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			log.Warn("Task %s retrying, attempt %d/%d", taskId, attempt, d.cfg.Retries)
			time.Sleep(d.retryDelay)
		}

		px, err := d.pool.GetProxy(ctx)
		if err != nil {
			// 代理池枯竭属于基础设施故障，直接终止任务并单独标记
			log.Error("Task %s aborted, no proxy available: %v", taskId, err)
			d.finishError(taskId, "no proxy available: "+err.Error(), true)
			return
		}

		result, err := d.runner.Run(ctx, task.URL, px.URL(), task.AudioOnly, progress)
		if err == nil {
			d.pool.ReportSuccess(px)
			d.finishSuccess(taskId, result)
			return
		}

		lastErr = err
		if isProxyError(err) {
			// 代理问题：上报失败后换下一个代理继续
			log.Warn("Task %s proxy %s failed: %v", taskId, px.Key(), err)
			d.pool.ReportFailure(px)
			continue
		}

		// 下载自身的错误重试也无济于事，不消耗代理信用
		log.Error("Task %s download failed: %v", taskId, err)
		break
	}

	msg := "download failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	d.finishError(taskId, msg, false)
}

// finishSuccess 将任务置为完成态
func (d *Downloader) finishSuccess(taskId string, result *MediaResult) {
	d.tasks.Update(taskId, func(t *DownloadTask) {
		t.State = TaskStateCompleted
		t.Progress = 100
		t.FinishedAt = time.Now()
		if result != nil {
			t.Title = result.Title
			t.Duration = result.Duration
			t.FileName = result.FileName
			t.FilePath = result.FilePath
			t.FileSize = result.FileSize
		}
	})
	log.Info("Task %s completed", taskId)

	if d.onComplete != nil {
		d.onComplete(taskId)
	}
}

// finishError 将任务置为失败态
func (d *Downloader) finishError(taskId, msg string, proxyUnavailable bool) {
	d.tasks.Update(taskId, func(t *DownloadTask) {
		t.State = TaskStateError
		t.Error = msg
		t.ProxyUnavailable = proxyUnavailable
		t.FinishedAt = time.Now()
	})
}

// isProxyError 判断下载错误是否由代理引起。
// yt-dlp不区分错误类别，只能按错误文本做启发式匹配。
func isProxyError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"proxy",
		"tunnel",
		"connection refused",
		"connection reset",
		"connection timed out",
		"timed out",
		"unable to connect",
		"econnrefused",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// poolAdapter 让 *proxy.Manager 满足 ProxyPool
var _ ProxyPool = (*proxy.Manager)(nil)
