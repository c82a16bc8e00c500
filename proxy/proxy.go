package proxy

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Status 代理的健康状态
type Status string

const (
	// StatusUnknown 尚未验证过，或上一轮刷新在截止时间前没有轮到它
	StatusUnknown Status = "unknown"
	// StatusWorking 最近一次探测成功，可以参与轮换
	StatusWorking Status = "working"
	// StatusFailing 探测失败或连续失败次数达到阈值，已从轮换中剔除
	StatusFailing Status = "failing"
)

// PoolState 代理池整体的状态机状态，仅用于观测
type PoolState string

const (
	StateEmpty      PoolState = "empty"
	StateRefreshing PoolState = "refreshing"
	StateReady      PoolState = "ready"
	StateExhausted  PoolState = "exhausted"
)

// Proxy 描述一个代理端点。
// 身份由 (Host, Port, Protocol) 三元组唯一确定，池中不允许出现重复身份。
type Proxy struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Protocol     string        `json:"protocol"` // http / https / socks5
	Username     string        `json:"username,omitempty"`
	Password     string        `json:"password,omitempty"`
	Country      string        `json:"country,omitempty"`
	Status       Status        `json:"status"`
	LastChecked  time.Time     `json:"last_checked"`
	FailureCount int           `json:"failure_count"`
	Latency      time.Duration `json:"latency,omitempty"`
}

// Key 返回代理的身份标识
func (p *Proxy) Key() string {
	return fmt.Sprintf("%s:%d/%s", p.Host, p.Port, p.Protocol)
}

// URL 返回可直接交给HTTP客户端或yt-dlp的代理地址
func (p *Proxy) URL() string {
	scheme := "http"
	if p.Protocol == "socks5" {
		scheme = "socks5"
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String()
}

// Pool 是代理池的持久化形态：有序的代理列表加上池级元数据。
// 读取时未知的额外字段会被忽略，保证向前兼容。
type Pool struct {
	LastFetched time.Time `json:"last_fetched"`
	Source      string    `json:"source,omitempty"`
	Proxies     []*Proxy  `json:"proxies"`
}

// PoolStatus 管理接口暴露的池状态快照
type PoolStatus struct {
	Working     int       `json:"working"`
	Failing     int       `json:"failing"`
	Unknown     int       `json:"unknown"`
	Total       int       `json:"total"`
	State       PoolState `json:"state"`
	LastFetched time.Time `json:"last_fetched"`
}

// Source 候选代理的来源
type Source interface {
	Name() string
	FetchCandidates(ctx context.Context) ([]*Proxy, error)
}

// Prober 批量验证器
type Prober interface {
	ValidateAll(ctx context.Context, proxies []*Proxy) []ValidationResult
}

// Store 代理池的持久化层
type Store interface {
	Load() (*Pool, error)
	Save(pool *Pool) error
}
