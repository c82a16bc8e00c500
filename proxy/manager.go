package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ytdl2api/config"
	"ytdl2api/log"
	"ytdl2api/pkg/errors"
)

// Manager 是代理池的总控制器：决定何时刷新、驱动并发验证、
// 维护可用子集上的轮换游标，并在调用方上报失败时降级代理。
//
// 池的可变状态由单把互斥锁保护；网络探测本身绝不持锁，
// 只有探测结束后的状态回写在锁内完成。
type Manager struct {
	source Source
	prober Prober
	store  Store

	ttl              time.Duration
	failureThreshold int
	refreshTimeout   time.Duration

	mu          sync.Mutex
	proxies     []*Proxy          // 按加入顺序排列
	index       map[string]*Proxy // 身份 -> 记录, 保证无重复身份
	cursor      uint64            // 可用子集上的轮换游标
	lastFetched time.Time
	sourceName  string
	refreshing  bool

	// refreshMu 保证同一时刻最多只有一个刷新周期在执行,
	// 迟到的调用方等待其结果而不是重复请求提供商。
	refreshMu      sync.Mutex
	refreshGen     uint64
	lastRefreshErr error

	saveWg sync.WaitGroup
}

// NewManager 创建代理池管理器并立即从存储加载历史状态。
// 过期的记录不会被丢弃，而是等待下一轮刷新时惰性重新验证。
func NewManager(cfg config.PoolConfig, source Source, prober Prober, store Store) *Manager {
	m := &Manager{
		source:           source,
		prober:           prober,
		store:            store,
		ttl:              cfg.TTL,
		failureThreshold: cfg.FailureThreshold,
		refreshTimeout:   cfg.RefreshTimeout,
		index:            make(map[string]*Proxy),
	}

	pool, err := store.Load()
	if err != nil {
		log.Error("加载代理池失败: %v, 以空池启动", err)
		pool = &Pool{}
	}

	for _, p := range pool.Proxies {
		if _, ok := m.index[p.Key()]; ok {
			continue
		}
		m.proxies = append(m.proxies, p)
		m.index[p.Key()] = p
	}
	m.lastFetched = pool.LastFetched
	m.sourceName = pool.Source

	return m
}

// GetProxy 返回下一个可用代理。
// 若刷新条件满足（超过TTL或可用代理为零）则先同步执行一次刷新。
// 刷新失败不会立即放弃：只要池中仍有可用代理（比如仅因TTL过期触发的
// 刷新遇到提供商故障），就降级继续服务旧列表；
// 只有可用子集为空时才返回 ErrNoProxyAvailable。
func (m *Manager) GetProxy(ctx context.Context) (Proxy, error) {
	m.mu.Lock()
	if !m.refreshDueLocked() {
		if p, ok := m.nextLocked(); ok {
			m.mu.Unlock()
			return p, nil
		}
	}
	m.mu.Unlock()

	refreshErr := m.refresh(ctx, false)

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.nextLocked(); ok {
		if refreshErr != nil {
			log.Warn("刷新失败: %v, 继续使用池中现有的可用代理", refreshErr)
		}
		return p, nil
	}
	if refreshErr != nil {
		return Proxy{}, fmt.Errorf("%w: %v", errors.ErrNoProxyAvailable, refreshErr)
	}
	return Proxy{}, errors.ErrNoProxyAvailable
}

// ReportFailure 上报一次通过该代理的下载失败。
// 连续失败达到阈值后代理降级为 failing 并退出轮换；
// 若可用子集因此被清空，下一次 GetProxy 会强制触发刷新。
func (m *Manager) ReportFailure(p Proxy) {
	m.mu.Lock()
	rec, ok := m.index[p.Key()]
	if !ok {
		m.mu.Unlock()
		return
	}

	rec.FailureCount++
	demoted := false
	if rec.FailureCount >= m.failureThreshold && rec.Status != StatusFailing {
		rec.Status = StatusFailing
		demoted = true
		log.Warn("代理 %s 连续失败 %d 次, 降级为 failing", rec.Key(), rec.FailureCount)
	}
	exhausted := demoted && m.workingCountLocked() == 0

	var snapshot *Pool
	if demoted {
		snapshot = m.snapshotLocked()
	}
	m.mu.Unlock()

	if exhausted {
		log.Warn("可用代理已耗尽, 下一次获取将触发刷新")
	}
	if snapshot != nil {
		m.persistAsync(snapshot)
	}
}

// ReportSuccess 上报一次成功，失败计数清零。
// 现在能用的代理重新获得信任，即使之前有过失败记录。
func (m *Manager) ReportSuccess(p Proxy) {
	m.mu.Lock()
	rec, ok := m.index[p.Key()]
	if !ok {
		m.mu.Unlock()
		return
	}

	rec.FailureCount = 0
	changed := rec.Status != StatusWorking
	rec.Status = StatusWorking
	rec.LastChecked = time.Now()

	var snapshot *Pool
	if changed {
		snapshot = m.snapshotLocked()
	}
	m.mu.Unlock()

	if snapshot != nil {
		m.persistAsync(snapshot)
	}
}

// ForceRefresh 跳过TTL检查, 立即执行一次完整的刷新周期,
// 并对池中所有代理重新验证。供管理接口调用。
func (m *Manager) ForceRefresh(ctx context.Context) error {
	return m.refresh(ctx, true)
}

// Status 返回池的观测快照
func (m *Manager) Status() PoolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := PoolStatus{
		Total:       len(m.proxies),
		LastFetched: m.lastFetched,
	}
	for _, p := range m.proxies {
		switch p.Status {
		case StatusWorking:
			st.Working++
		case StatusFailing:
			st.Failing++
		default:
			st.Unknown++
		}
	}

	switch {
	case m.refreshing:
		st.State = StateRefreshing
	case st.Total == 0:
		st.State = StateEmpty
	case st.Working > 0:
		st.State = StateReady
	default:
		st.State = StateExhausted
	}
	return st
}

// Close 等待所有后台持久化完成并写入最终快照，
// 保证进程关闭时失败计数等状态不丢失。
func (m *Manager) Close() error {
	m.saveWg.Wait()

	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Save(snapshot); err != nil {
		log.Error("关闭时保存代理池失败: %v", err)
		return err
	}
	return nil
}

// refresh 执行一次刷新周期，保证全局同一时刻只有一个周期在跑。
// 迟到的调用方会阻塞在 refreshMu 上，醒来后直接复用刚完成的结果。
func (m *Manager) refresh(ctx context.Context, force bool) error {
	m.mu.Lock()
	startGen := m.refreshGen
	m.mu.Unlock()

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	if !force && m.refreshGen != startGen {
		// 等待期间其他协程已完成刷新，直接采用它的结果
		err := m.lastRefreshErr
		m.mu.Unlock()
		return err
	}
	m.refreshing = true
	m.mu.Unlock()

	err := m.doRefresh(ctx, force)

	m.mu.Lock()
	m.refreshGen++
	m.lastRefreshErr = err
	m.refreshing = false
	m.mu.Unlock()
	return err
}

// doRefresh 拉取候选 -> 按身份合并 -> 受限并发验证 -> 回写状态 -> 持久化。
// 必须在持有 refreshMu 的前提下调用。
func (m *Manager) doRefresh(ctx context.Context, force bool) error {
	log.Info("开始刷新代理池 (force=%v)...", force)

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	candidates, err := m.source.FetchCandidates(ctx)
	if err != nil {
		log.Error("拉取候选代理失败: %v", err)
		return err
	}

	// 合并：新身份追加到池尾，已知身份保留现有状态
	m.mu.Lock()
	added := 0
	for _, c := range candidates {
		if existing, ok := m.index[c.Key()]; ok {
			if c.Country != "" {
				existing.Country = c.Country
			}
			continue
		}
		m.proxies = append(m.proxies, c)
		m.index[c.Key()] = c
		added++
	}

	// 强制刷新时重新验证所有代理，常规刷新只验证非working的记录
	toValidate := make([]*Proxy, 0, len(m.proxies))
	probeCopies := make([]*Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		if force || p.Status != StatusWorking {
			toValidate = append(toValidate, p)
			cp := *p
			probeCopies = append(probeCopies, &cp)
		}
	}
	m.mu.Unlock()

	log.Info("候选合并完成: 新增 %d, 待验证 %d", added, len(toValidate))

	// 探测在锁外进行，数百个并发探测不会在池锁上串行化
	results := m.prober.ValidateAll(ctx, probeCopies)

	m.mu.Lock()
	now := time.Now()
	working := 0
	for i, r := range results {
		p := toValidate[i]
		if !r.Completed {
			// 截止时间前未完成的探测保持 unknown，下一轮再验证
			p.Status = StatusUnknown
			continue
		}
		p.LastChecked = now
		p.Latency = r.Latency
		if r.Working {
			p.Status = StatusWorking
			p.FailureCount = 0
		} else {
			p.Status = StatusFailing
			p.FailureCount++
		}
	}
	m.lastFetched = now
	m.sourceName = m.source.Name()
	for _, p := range m.proxies {
		if p.Status == StatusWorking {
			working++
		}
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.persistAsync(snapshot)

	log.Info("刷新完成: 池中共 %d 个代理, 可用 %d", len(snapshot.Proxies), working)
	return nil
}

// refreshDueLocked 刷新条件是池元数据的纯函数, 每次访问时重新计算,
// 绝不缓存：代理状态随下载进行持续变化。
func (m *Manager) refreshDueLocked() bool {
	if m.lastFetched.IsZero() {
		return true
	}
	if time.Since(m.lastFetched) > m.ttl {
		return true
	}
	return m.workingCountLocked() == 0
}

// nextLocked 在可用子集上按加入顺序轮换，返回下一个代理的副本
func (m *Manager) nextLocked() (Proxy, bool) {
	working := make([]*Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		if p.Status == StatusWorking {
			working = append(working, p)
		}
	}
	if len(working) == 0 {
		return Proxy{}, false
	}

	p := working[m.cursor%uint64(len(working))]
	m.cursor++
	return *p, true
}

func (m *Manager) workingCountLocked() int {
	n := 0
	for _, p := range m.proxies {
		if p.Status == StatusWorking {
			n++
		}
	}
	return n
}

// snapshotLocked 深拷贝当前池状态用于持久化
func (m *Manager) snapshotLocked() *Pool {
	proxies := make([]*Proxy, len(m.proxies))
	for i, p := range m.proxies {
		cp := *p
		proxies[i] = &cp
	}
	return &Pool{
		LastFetched: m.lastFetched,
		Source:      m.sourceName,
		Proxies:     proxies,
	}
}

// persistAsync 在后台写入存储。调用方不关心结果,
// 但 Close 会等待所有在途写入完成。
func (m *Manager) persistAsync(snapshot *Pool) {
	m.saveWg.Add(1)
	go func() {
		defer m.saveWg.Done()
		if err := m.store.Save(snapshot); err != nil {
			log.Error("保存代理池失败: %v", err)
		}
	}()
}
