package service

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ytdl2api/log"
	"ytdl2api/middleware"
	"ytdl2api/models"
	"ytdl2api/pkg/errors"

	"github.com/gin-gonic/gin"
)

// DownloadHandler 处理创建下载任务请求
func (h *Handler) DownloadHandler(c *gin.Context) {
	if !h.rateLimiter.Allow() {
		middleware.SendAPIError(c, errors.NewTooManyRequestsError("Too many download requests", nil))
		return
	}

	var req models.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendAPIError(c, errors.NewInvalidRequestError("Invalid request body: "+err.Error(), err))
		return
	}

	if apiErr := validateDownloadRequest(&req); apiErr != nil {
		middleware.SendAPIError(c, apiErr)
		return
	}

	if h.tasks.HasActiveURL(req.URL) {
		middleware.SendAPIError(c, errors.NewInvalidRequestError("Download already in progress for this url", errors.ErrDuplicateTask))
		return
	}

	taskId := h.idGenerator.GenerateId()
	task := &DownloadTask{
		Id:        taskId,
		URL:       req.URL,
		AudioOnly: req.AudioOnly,
		State:     TaskStatePending,
		CreatedAt: time.Now(),
	}
	h.tasks.Add(task)
	h.downloader.Submit(taskId)

	log.Info("Task %s accepted: %s (audio_only=%v)", taskId, req.URL, req.AudioOnly)

	c.JSON(http.StatusAccepted, models.DownloadResponse{
		TaskId:  taskId,
		URL:     req.URL,
		Status:  string(TaskStatePending),
		Message: "Download task accepted",
	})
}

// StatusHandler 查询任务状态
func (h *Handler) StatusHandler(c *gin.Context) {
	taskId := c.Param("task_id")

	// 终态任务的响应不会再变化，可以直接走缓存
	if cached, ok := h.statusCache.GetTaskStatus(taskId); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	task, ok := h.tasks.Get(taskId)
	if !ok {
		middleware.SendAPIError(c, errors.NewNotFoundError("Task not found: "+taskId))
		return
	}

	response := buildStatusResponse(&task)
	if task.State.IsFinished() {
		h.statusCache.SetTaskStatus(taskId, response)
	}

	c.JSON(http.StatusOK, response)
}

// buildStatusResponse 由任务快照构造状态响应
func buildStatusResponse(task *DownloadTask) models.TaskStatusResponse {
	response := models.TaskStatusResponse{
		TaskId:   task.Id,
		State:    string(task.State),
		Progress: task.Progress,
		Title:    task.Title,
		Duration: task.Duration,
		FileName: task.FileName,
		FileSize: task.FileSize,
		Error:    task.Error,
	}

	switch task.State {
	case TaskStatePending:
		response.Status = "Waiting in queue"
	case TaskStateDownloading:
		response.Status = "Downloading"
	case TaskStateCompleted:
		response.Status = "Completed"
		if task.FileName != "" {
			response.DownloadURL = "/api/v1/download/file/" + task.FileName
		}
	case TaskStateError:
		if task.ProxyUnavailable {
			response.Status = "Failed: proxy pool unavailable"
		} else {
			response.Status = "Failed"
		}
	}

	return response
}

// FileHandler 下载已完成的文件
func (h *Handler) FileHandler(c *gin.Context) {
	filename := c.Param("filename")

	// 拒绝任何带路径成分的文件名，防止目录穿越
	if filename == "" || filename != filepath.Base(filename) {
		middleware.SendAPIError(c, errors.NewInvalidRequestError("Invalid filename", nil))
		return
	}

	fullPath := filepath.Join(h.config.Download.Dir, filename)
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		middleware.SendAPIError(c, errors.NewNotFoundError("File not found: "+filename))
		return
	}

	c.FileAttachment(fullPath, filename)
}

// ListHandler 列出所有已下载的文件
func (h *Handler) ListHandler(c *gin.Context) {
	if cached, ok := h.statusCache.GetFileList(); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	entries, err := os.ReadDir(h.config.Download.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, models.FileListResponse{Files: []models.FileInfo{}})
			return
		}
		middleware.SendAPIError(c, errors.NewInternalServerError("Failed to read download dir", err))
		return
	}

	files := make([]models.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		files = append(files, models.FileInfo{
			Filename:    entry.Name(),
			Size:        info.Size(),
			DownloadURL: "/api/v1/download/file/" + entry.Name(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	response := models.FileListResponse{Files: files, Total: len(files)}
	h.statusCache.SetFileList(response)

	c.JSON(http.StatusOK, response)
}
