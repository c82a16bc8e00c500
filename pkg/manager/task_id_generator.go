package manager

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskIdGenerator 下载任务ID生成器
type TaskIdGenerator struct {
	prefix string
}

// NewTaskIdGenerator 创建新的任务ID生成器
func NewTaskIdGenerator(prefix string) *TaskIdGenerator {
	if prefix == "" {
		prefix = "task"
	}
	return &TaskIdGenerator{
		prefix: prefix,
	}
}

// GenerateId 生成任务ID
func (g *TaskIdGenerator) GenerateId() string {
	return fmt.Sprintf("%s_%d_%s", g.prefix, time.Now().Unix(), uuid.NewString())
}

// GenerateShortId 生成短任务ID
func (g *TaskIdGenerator) GenerateShortId() string {
	id := uuid.NewString()
	return fmt.Sprintf("%s_%s", g.prefix, id[:8])
}
