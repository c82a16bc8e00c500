package cache

import (
	"os"
	"strconv"
	"sync"
	"time"

	"ytdl2api/log"
	"ytdl2api/pkg/constants"
)

// StatusCache 缓存任务状态查询与文件列表的响应。
// 只有进入终态的任务状态才会被缓存，进行中的任务每次都实时读取。
type StatusCache struct {
	statusCache *Cache
	listCache   *Cache
	enabled     bool
	mu          sync.RWMutex
}

// StatusCacheOptions 缓存选项
type StatusCacheOptions struct {
	StatusTTL       time.Duration
	ListTTL         time.Duration
	CleanupInterval time.Duration
	Enabled         bool
}

// DefaultStatusCacheOptions 返回默认的缓存选项
func DefaultStatusCacheOptions() StatusCacheOptions {
	enabled := true
	if v := os.Getenv(constants.EnvCacheEnabled); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			enabled = parsed
		}
	}

	return StatusCacheOptions{
		StatusTTL:       constants.DefaultStatusCacheTTL,
		ListTTL:         constants.DefaultListCacheTTL,
		CleanupInterval: constants.DefaultCleanupInterval,
		Enabled:         enabled,
	}
}

// NewStatusCache 创建一个新的状态缓存
func NewStatusCache(options StatusCacheOptions) *StatusCache {
	if options.CleanupInterval <= 0 {
		options.CleanupInterval = time.Minute * 10
	}

	return &StatusCache{
		statusCache: NewCache(options.StatusTTL, options.CleanupInterval),
		listCache:   NewCache(options.ListTTL, options.CleanupInterval),
		enabled:     options.Enabled,
	}
}

// IsEnabled 检查缓存是否启用
func (sc *StatusCache) IsEnabled() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.enabled
}

// SetTaskStatus 缓存终态任务的状态响应
func (sc *StatusCache) SetTaskStatus(taskId string, response interface{}) {
	if !sc.IsEnabled() {
		return
	}

	sc.statusCache.Set(constants.StatusCachePrefix+taskId, response, 0)
	log.Debug("Task status cached: %s", taskId)
}

// GetTaskStatus 获取缓存的任务状态响应
func (sc *StatusCache) GetTaskStatus(taskId string) (interface{}, bool) {
	if !sc.IsEnabled() {
		return nil, false
	}
	return sc.statusCache.Get(constants.StatusCachePrefix + taskId)
}

// SetFileList 缓存文件列表响应
func (sc *StatusCache) SetFileList(response interface{}) {
	if !sc.IsEnabled() {
		return
	}
	sc.listCache.Set(constants.ListCacheKey, response, 0)
}

// GetFileList 获取缓存的文件列表响应
func (sc *StatusCache) GetFileList() (interface{}, bool) {
	if !sc.IsEnabled() {
		return nil, false
	}
	return sc.listCache.Get(constants.ListCacheKey)
}

// InvalidateFileList 下载完成后使文件列表缓存失效
func (sc *StatusCache) InvalidateFileList() {
	sc.listCache.Delete(constants.ListCacheKey)
}

// GetMetrics 获取缓存指标
func (sc *StatusCache) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"status": sc.statusCache.GetMetrics(),
		"list":   sc.listCache.GetMetrics(),
	}
}

// Stop 停止后台清理
func (sc *StatusCache) Stop() {
	sc.statusCache.Stop()
	sc.listCache.Stop()
}
