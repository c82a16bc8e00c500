package service

import (
	"context"

	"ytdl2api/proxy"
)

// ProxyPool 下载器与管理接口依赖的代理池能力
type ProxyPool interface {
	GetProxy(ctx context.Context) (proxy.Proxy, error)
	ReportFailure(p proxy.Proxy)
	ReportSuccess(p proxy.Proxy)
	ForceRefresh(ctx context.Context) error
	Status() proxy.PoolStatus
	Close() error
}

// MediaRunner 执行单次媒体下载
type MediaRunner interface {
	Run(ctx context.Context, url, proxyURL string, audioOnly bool, progress func(percent int)) (*MediaResult, error)
}

// MediaResult 一次成功下载的产物信息
type MediaResult struct {
	Title    string
	Duration string
	FileName string
	FilePath string
	FileSize int64
}
