package proxy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ytdl2api/log"
	"ytdl2api/pkg/errors"
)

// FileStore 用单个JSON文件持久化代理池。
// 写入先落到临时文件再原子重命名，读方不会观察到半写状态。
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore 创建文件存储
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load 从文件加载代理池。
// 文件缺失、不可读或内容损坏时返回空池并记录日志，绝不让进程崩溃：
// 系统随后会因为池为空而触发一次完整刷新。
func (fs *FileStore) Load() (*Pool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("代理池文件 %s 不存在, 以空池启动", fs.path)
		} else {
			log.Warn("代理池文件 %s 读取失败: %v, 以空池启动", fs.path, err)
		}
		return &Pool{}, nil
	}

	pool := &Pool{}
	// 未知字段被 encoding/json 静默忽略，保证向前兼容
	if err := json.Unmarshal(data, pool); err != nil {
		log.Warn("代理池文件 %s 内容损坏: %v, 以空池启动", fs.path, err)
		return &Pool{}, nil
	}

	// 去除重复身份，文件可能被外部工具改写过
	seen := make(map[string]struct{}, len(pool.Proxies))
	deduped := pool.Proxies[:0]
	for _, p := range pool.Proxies {
		if p == nil || p.Host == "" {
			continue
		}
		if p.Protocol == "" {
			p.Protocol = "http"
		}
		if p.Status == "" {
			p.Status = StatusUnknown
		}
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		deduped = append(deduped, p)
	}
	pool.Proxies = deduped

	log.Info("从 %s 加载了 %d 个代理", fs.path, len(pool.Proxies))
	return pool, nil
}

// Save 将代理池写入文件。
// 先写入同目录下的临时文件, 再通过 rename 原子替换, 并发的 Load 要么
// 看到旧文件要么看到新文件。
func (fs *FileStore) Save(pool *Pool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreIO, err)
	}

	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreIO, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreIO, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", errors.ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", errors.ErrStoreIO, err)
	}

	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", errors.ErrStoreIO, err)
	}

	log.Debug("代理池已保存到 %s, 共 %d 个代理", fs.path, len(pool.Proxies))
	return nil
}
