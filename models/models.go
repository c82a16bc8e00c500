package models

import "time"

// DownloadRequest 创建下载任务的请求体
type DownloadRequest struct {
	URL       string `json:"url" binding:"required"`
	AudioOnly bool   `json:"audio_only"`
}

// DownloadResponse 创建下载任务的响应
type DownloadResponse struct {
	TaskId  string `json:"task_id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskStatusResponse 任务状态查询响应
type TaskStatusResponse struct {
	TaskId      string `json:"task_id"`
	State       string `json:"state"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Title       string `json:"title,omitempty"`
	Duration    string `json:"duration,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FileInfo 单个已下载文件的信息
type FileInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// FileListResponse 已下载文件列表响应
type FileListResponse struct {
	Files []FileInfo `json:"files"`
	Total int        `json:"total"`
}

// ProxyStatusResponse 代理池状态响应
type ProxyStatusResponse struct {
	Working       int       `json:"working_proxies_count"`
	Failing       int       `json:"failing_proxies_count"`
	Unknown       int       `json:"unknown_proxies_count"`
	Total         int       `json:"total"`
	State         string    `json:"state"`
	LastFetched   time.Time `json:"last_fetched"`
	ShouldRefresh bool      `json:"should_refresh"`
}

// ProxyUpdateResponse 强制刷新代理池的响应
type ProxyUpdateResponse struct {
	Message string `json:"message"`
}
