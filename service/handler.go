package service

import (
	"os"
	"sync"
	"time"

	"ytdl2api/config"
	"ytdl2api/log"
	"ytdl2api/pkg/cache"
	"ytdl2api/pkg/connpool"
	"ytdl2api/pkg/constants"
	"ytdl2api/pkg/manager"
	"ytdl2api/pkg/ratelimit"
	"ytdl2api/proxy"

	"github.com/go-resty/resty/v2"
)

// Handler API处理器，持有全部业务组件
type Handler struct {
	config      *config.Config
	pool        ProxyPool
	tasks       *TaskStore
	downloader  *Downloader
	idGenerator *manager.TaskIdGenerator
	statusCache *cache.StatusCache
	rateLimiter ratelimit.RateLimiter
	connPool    *connpool.ConnPool

	// refreshWg 跟踪管理接口触发的后台刷新, Close时等待其完成
	refreshWg sync.WaitGroup
}

// NewHandler 创建API处理器并完成组件装配
func NewHandler(cfg *config.Config) *Handler {
	connPool := connpool.NewConnPool(connpool.DefaultConnPoolOptions())

	providerClient := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", constants.UserAgent).
		SetHeader("Accept", constants.AcceptAll)
	connPool.ConfigureRestyClient(providerClient)

	source := proxy.NewSourceClient(cfg.Provider, providerClient)
	prober := proxy.NewValidator(cfg.Pool.ProbeURL, cfg.Pool.ProbeTimeout, cfg.Pool.ValidateConcurrency)
	store := proxy.NewFileStore(cfg.Pool.StoreFile)
	pool := proxy.NewManager(cfg.Pool, source, prober, store)

	if err := os.MkdirAll(cfg.Download.Dir, 0o755); err != nil {
		log.Warn("Failed to create download dir %s: %v", cfg.Download.Dir, err)
	}

	tasks := NewTaskStore()
	statusCache := cache.NewStatusCache(cache.DefaultStatusCacheOptions())

	downloader := NewDownloader(cfg.Download, pool, tasks, newYtdlpRunner(cfg.Download.Dir))
	downloader.OnComplete(func(taskId string) {
		// 新文件落盘后列表缓存立即过期
		statusCache.InvalidateFileList()
	})

	return &Handler{
		config:      cfg,
		pool:        pool,
		tasks:       tasks,
		downloader:  downloader,
		idGenerator: manager.NewTaskIdGenerator(constants.TaskGroup),
		statusCache: statusCache,
		rateLimiter: ratelimit.NewTokenBucketLimiter(cfg.Download.RateLimit, cfg.Download.RateBurst),
		connPool:    connPool,
	}
}

// Close 释放处理器持有的资源。
// 先等待在途下载和后台刷新结束, 再让代理池写入最终快照。
func (h *Handler) Close() error {
	h.downloader.Wait()
	h.refreshWg.Wait()
	h.statusCache.Stop()
	return h.pool.Close()
}

// GetCacheMetrics 获取缓存指标
func (h *Handler) GetCacheMetrics() map[string]interface{} {
	return h.statusCache.GetMetrics()
}

// GetConnPoolMetrics 获取连接池指标
func (h *Handler) GetConnPoolMetrics() map[string]interface{} {
	return h.connPool.GetMetrics()
}

// GetRateLimiterMetrics 获取限流器指标
func (h *Handler) GetRateLimiterMetrics() map[string]interface{} {
	return h.rateLimiter.GetMetrics()
}

// GetMetrics 获取所有组件指标
func (h *Handler) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"cache":        h.GetCacheMetrics(),
		"conn_pool":    h.GetConnPoolMetrics(),
		"rate_limiter": h.GetRateLimiterMetrics(),
		"tasks":        h.tasks.Count(),
		"proxy_pool":   h.pool.Status(),
	}
}
