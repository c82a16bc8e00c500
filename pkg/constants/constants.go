package constants

import "time"

// 代理提供商相关常量
const (
	DefaultProxyAPIURL  = "http://htmlweb.ru/json/proxy/get"
	DefaultProxyCountry = "RU"
	DefaultPageSize     = 100
	UserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	AcceptAll           = "*/*"
	ContentTypeJSON     = "application/json"
)

// 服务器配置常量
const (
	DefaultPort         = "8080"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
)

// 代理池配置常量
const (
	// 代理列表的最大缓存时间，超过后强制刷新
	DefaultPoolTTL = 24 * time.Hour
	// 单次探测的超时时间
	DefaultProbeTimeout = 5 * time.Second
	// 探测目标，通过代理请求该地址判断代理是否可用
	DefaultProbeURL = "http://httpbin.org/ip"
	// 并发验证的最大协程数
	DefaultValidateConcurrency = 10
	// 连续失败多少次后将代理降级为 failing
	DefaultFailureThreshold = 3
	// 一次完整刷新周期（拉取+验证+落盘）的总超时
	DefaultRefreshTimeout = 60 * time.Second
	// 代理池持久化文件
	DefaultPoolFile = "data/proxies.json"
)

// 下载任务配置常量
const (
	DefaultDownloadDir     = "assets"
	DefaultMaxParallel     = 2
	DefaultDownloadRetries = 3
	TaskGroup              = "task"
)

// 限流相关常量
const (
	DefaultRateLimit = 5.0 // 每秒允许的下载提交数
	DefaultRateBurst = 10
)

// 缓存相关常量
const (
	DefaultStatusCacheTTL  = 5 * time.Minute
	DefaultListCacheTTL    = 30 * time.Second
	DefaultCleanupInterval = 10 * time.Minute

	ListCacheKey      = "files"
	StatusCachePrefix = "status:"

	EnvCacheEnabled = "CACHE_ENABLED"
)
