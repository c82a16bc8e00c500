package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"ytdl2api/config"
	"ytdl2api/log"
	"ytdl2api/middleware"
	"ytdl2api/service"

	"github.com/gin-gonic/gin"
)

// SystemMetrics 系统运行状态指标
type SystemMetrics struct {
	// 基础运行时指标
	Uptime       time.Duration `json:"uptime"`
	StartTime    string        `json:"start_time"`
	NumCPU       int           `json:"num_cpu"`
	NumGoroutine int           `json:"num_goroutine"`
	GoVersion    string        `json:"go_version"`

	// 内存指标
	AllocatedMem  uint64 `json:"allocated_mem"`
	TotalAllocMem uint64 `json:"total_alloc_mem"`
	HeapObjects   uint64 `json:"heap_objects"`

	// GC指标
	GCPauseTotal time.Duration `json:"gc_pause_total"`
	LastGCTime   time.Time     `json:"last_gc_time"`
	NumGC        uint32        `json:"num_gc"`

	// 请求统计
	RequestCount int64 `json:"request_count"`
	SuccessCount int64 `json:"success_count"`
	ErrorCount   int64 `json:"error_count"`

	// 组件指标
	CacheStats map[string]interface{} `json:"cache_stats,omitempty"`
	ConnStats  map[string]interface{} `json:"conn_stats,omitempty"`
	RateStats  map[string]interface{} `json:"rate_stats,omitempty"`
	PoolStats  interface{}            `json:"pool_stats,omitempty"`
}

var (
	startTime time.Time
	// 统计信息
	requestCount int64
	successCount int64
	errorCount   int64
)

func main() {
	startTime = time.Now()

	// 加载配置
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("加载配置失败: %v", err)
	}

	if err := validateConfig(cfg); err != nil {
		log.Fatal("配置验证失败: %v", err)
	}

	// 创建处理器
	handler := service.NewHandler(cfg)

	// 创建路由器
	router := gin.Default()

	// 添加全局中间件
	setupMiddlewares(router, cfg)

	// 请求计数中间件
	router.Use(func(c *gin.Context) {
		atomic.AddInt64(&requestCount, 1)

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 400 {
			atomic.AddInt64(&successCount, 1)
		} else {
			atomic.AddInt64(&errorCount, 1)
		}
	})

	// 注册路由
	setupRoutes(router, handler)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 监听 SIGINT, SIGTERM 信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 异步启动服务器
	go func() {
		log.Info("服务器正在运行，监听端口 %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("启动服务器失败: %v", err)
		}
	}()

	// 等待退出信号
	<-quit
	log.Info("接收到关闭信号，正在优雅关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭HTTP服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Error("服务器关闭异常: %v", err)
	}

	// 关闭处理器及其资源，会等待在途下载并落盘代理池
	if err := handler.Close(); err != nil {
		log.Error("处理器资源释放失败: %v", err)
	}

	log.Info("服务器已成功关闭")
}

// validateConfig 启动前的最后一道配置检查
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("配置对象为空")
	}

	if cfg.Server.Port == "" {
		return fmt.Errorf("服务器端口未配置")
	}

	if cfg.Server.ReadTimeout <= 0 {
		log.Warn("读取超时设置异常，使用默认值")
	}

	if cfg.Server.WriteTimeout <= 0 {
		log.Warn("写入超时设置异常，使用默认值")
	}

	log.Info("配置验证通过")
	return nil
}

// setupMiddlewares 注册全局中间件
func setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.CorsMiddleware())
	router.Use(middleware.AuthMiddleware(cfg))

	log.Info("中间件设置完成")
}

// setupRoutes 注册全部路由
func setupRoutes(router *gin.Engine, handler *service.Handler) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		})
	})

	// 性能监控
	router.GET("/metrics", getMetricsHandler(handler))

	// API版本v1路由
	v1 := router.Group("/api/v1")
	{
		download := v1.Group("/download")
		{
			download.POST("", handler.DownloadHandler)
			download.GET("/status/:task_id", handler.StatusHandler)
			download.GET("/file/:filename", handler.FileHandler)
			download.GET("/list", handler.ListHandler)
			download.GET("/proxies/status", handler.ProxyStatusHandler)
			download.POST("/proxies/update", handler.ProxyUpdateHandler)
		}
	}

	log.Info("路由注册完成")
}

// getMetricsHandler 指标收集处理器
func getMetricsHandler(handler *service.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		metrics := SystemMetrics{
			Uptime:       time.Since(startTime),
			StartTime:    startTime.Format(time.RFC3339),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			GoVersion:    runtime.Version(),

			AllocatedMem:  memStats.Alloc,
			TotalAllocMem: memStats.TotalAlloc,
			HeapObjects:   memStats.HeapObjects,

			GCPauseTotal: time.Duration(memStats.PauseTotalNs),
			LastGCTime:   time.Unix(0, int64(memStats.LastGC)),
			NumGC:        memStats.NumGC,

			RequestCount: atomic.LoadInt64(&requestCount),
			SuccessCount: atomic.LoadInt64(&successCount),
			ErrorCount:   atomic.LoadInt64(&errorCount),

			CacheStats: handler.GetCacheMetrics(),
			ConnStats:  handler.GetConnPoolMetrics(),
			RateStats:  handler.GetRateLimiterMetrics(),
		}

		if handlerMetrics := handler.GetMetrics(); handlerMetrics != nil {
			metrics.PoolStats = handlerMetrics["proxy_pool"]
		}

		c.JSON(http.StatusOK, metrics)
	}
}
