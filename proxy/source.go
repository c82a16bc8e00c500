package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"ytdl2api/config"
	"ytdl2api/log"
	"ytdl2api/pkg/errors"

	"github.com/go-resty/resty/v2"
)

// 提供商API key的最小长度，低于该长度的key直接判定为非法
const minApiKeyLength = 16

// providerEntry 提供商响应中单个代理的结构。
// 响应整体是一个以 "0"、"1"… 为键的对象，name 字段为 "ip:port"。
type providerEntry struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Country string `json:"country"`
	Work    int    `json:"work"`
}

// SourceClient 从外部提供商拉取候选代理列表
type SourceClient struct {
	client   *resty.Client
	baseURL  string
	apiKey   string
	country  string
	pageSize int
}

// NewSourceClient 创建提供商客户端
func NewSourceClient(cfg config.ProviderConfig, client *resty.Client) *SourceClient {
	return &SourceClient{
		client:   client,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.ApiKey,
		country:  cfg.Country,
		pageSize: cfg.PageSize,
	}
}

// Name 返回来源标识
func (s *SourceClient) Name() string {
	return "htmlweb"
}

// FetchCandidates 调用提供商API并解析出候选代理。
// key非法时在发起网络请求前直接返回 ErrInvalidCredentials，避免浪费配额。
// 该方法不修改存储，只返回 status=unknown 的新记录。
func (s *SourceClient) FetchCandidates(ctx context.Context) ([]*Proxy, error) {
	if err := validateApiKey(s.apiKey); err != nil {
		return nil, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"country": s.country,
			"perpage": strconv.Itoa(s.pageSize),
			"api_key": s.apiKey,
		}).
		Get(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrFetchFailed, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", errors.ErrFetchFailed, resp.StatusCode())
	}

	candidates, err := parseProviderResponse(resp.Body())
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, errors.ErrEmptyResult
	}

	log.Info("从提供商获取到 %d 个候选代理", len(candidates))
	return candidates, nil
}

// validateApiKey 在发起请求前检查key是否为空或格式非法
func validateApiKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty api key", errors.ErrInvalidCredentials)
	}
	if len(key) < minApiKeyLength {
		return fmt.Errorf("%w: api key too short", errors.ErrInvalidCredentials)
	}
	for _, r := range key {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return fmt.Errorf("%w: api key contains illegal character", errors.ErrInvalidCredentials)
		}
	}
	return nil
}

// parseProviderResponse 解析 {"0": {...}, "1": {...}, ...} 形式的响应。
// 数字键按数值升序遍历，保证候选顺序稳定。
func parseProviderResponse(body []byte) ([]*Proxy, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: unparseable payload: %v", errors.ErrFetchFailed, err)
	}

	// 提供商在出错时返回 {"error": "..."}
	if errMsg, ok := raw["error"]; ok {
		return nil, fmt.Errorf("%w: provider error: %s", errors.ErrFetchFailed, strings.Trim(string(errMsg), `"`))
	}

	keys := make([]int, 0, len(raw))
	for k := range raw {
		if n, err := strconv.Atoi(k); err == nil {
			keys = append(keys, n)
		}
	}
	sort.Ints(keys)

	candidates := make([]*Proxy, 0, len(keys))
	for _, k := range keys {
		var entry providerEntry
		if err := json.Unmarshal(raw[strconv.Itoa(k)], &entry); err != nil {
			log.Warn("跳过无法解析的候选代理 #%d: %v", k, err)
			continue
		}

		// work=1 表示提供商已验证可用，work=2 表示需要自行验证
		if entry.Work != 1 && entry.Work != 2 {
			continue
		}

		host, portStr, ok := strings.Cut(entry.Name, ":")
		if !ok || host == "" {
			log.Warn("跳过地址格式非法的候选代理: %q", entry.Name)
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			log.Warn("跳过端口非法的候选代理: %q", entry.Name)
			continue
		}

		candidates = append(candidates, &Proxy{
			Host:     host,
			Port:     port,
			Protocol: normalizeProtocol(entry.Type),
			Country:  entry.Country,
			Status:   StatusUnknown,
		})
	}

	return candidates, nil
}

// normalizeProtocol 将提供商声明的协议归一化为 http/https/socks5
func normalizeProtocol(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "socks5", "socks":
		return "socks5"
	case "https":
		return "https"
	default:
		return "http"
	}
}
