package service

import (
	"sync"
	"time"
)

// TaskState 下载任务状态
type TaskState string

const (
	TaskStatePending     TaskState = "pending"
	TaskStateDownloading TaskState = "downloading"
	TaskStateCompleted   TaskState = "completed"
	TaskStateError       TaskState = "error"
)

// IsFinished 判断任务是否已进入终态
func (s TaskState) IsFinished() bool {
	return s == TaskStateCompleted || s == TaskStateError
}

// DownloadTask 一个下载任务的完整状态
type DownloadTask struct {
	Id        string
	URL       string
	AudioOnly bool
	State     TaskState
	Progress  int // 0-100
	Title     string
	Duration  string
	FileName  string
	FilePath  string
	FileSize  int64
	// Error 终态为 error 时的错误消息
	Error string
	// ProxyUnavailable 标记失败原因是代理不可用而非下载本身出错
	ProxyUnavailable bool
	CreatedAt        time.Time
	StartedAt        time.Time
	FinishedAt       time.Time
}

// TaskStore 内存中的任务注册表
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*DownloadTask
}

// NewTaskStore 创建任务注册表
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*DownloadTask),
	}
}

// Add 登记一个新任务
func (ts *TaskStore) Add(task *DownloadTask) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tasks[task.Id] = task
}

// Get 按ID返回任务的副本
func (ts *TaskStore) Get(id string) (DownloadTask, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	task, ok := ts.tasks[id]
	if !ok {
		return DownloadTask{}, false
	}
	return *task, true
}

// Update 在锁内对任务执行变更
func (ts *TaskStore) Update(id string, fn func(*DownloadTask)) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if task, ok := ts.tasks[id]; ok {
		fn(task)
	}
}

// HasActiveURL 判断某个URL是否已有未完成的任务
func (ts *TaskStore) HasActiveURL(url string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	for _, task := range ts.tasks {
		if task.URL == url && !task.State.IsFinished() {
			return true
		}
	}
	return false
}

// Count 返回任务总数
func (ts *TaskStore) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tasks)
}
