package service

import (
	"context"
	"net/http"
	"time"

	"ytdl2api/log"
	"ytdl2api/models"

	"github.com/gin-gonic/gin"
)

// ProxyStatusHandler 查询代理池状态
func (h *Handler) ProxyStatusHandler(c *gin.Context) {
	status := h.pool.Status()

	shouldRefresh := status.Working == 0 ||
		status.LastFetched.IsZero() ||
		time.Since(status.LastFetched) > h.config.Pool.TTL

	c.JSON(http.StatusOK, models.ProxyStatusResponse{
		Working:       status.Working,
		Failing:       status.Failing,
		Unknown:       status.Unknown,
		Total:         status.Total,
		State:         string(status.State),
		LastFetched:   status.LastFetched,
		ShouldRefresh: shouldRefresh,
	})
}

// ProxyUpdateHandler 强制刷新代理池。
// 刷新在后台进行但由处理器跟踪, 优雅关闭会等待它结束。
func (h *Handler) ProxyUpdateHandler(c *gin.Context) {
	h.refreshWg.Add(1)
	go func() {
		defer h.refreshWg.Done()
		if err := h.pool.ForceRefresh(context.Background()); err != nil {
			log.Error("Forced proxy refresh failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, models.ProxyUpdateResponse{
		Message: "Proxy pool refresh started",
	})
}
