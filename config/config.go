package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ytdl2api/log"
	"ytdl2api/pkg/constants"
	"ytdl2api/pkg/errors"

	"github.com/joho/godotenv"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `json:"server"`
	Auth     AuthConfig     `json:"auth"`
	Provider ProviderConfig `json:"provider"`
	Pool     PoolConfig     `json:"pool"`
	Download DownloadConfig `json:"download"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	ApiKey string `json:"api_key"`
}

// ProviderConfig 代理提供商配置
type ProviderConfig struct {
	ApiKey   string `json:"-"` // 密钥不参与序列化
	BaseURL  string `json:"base_url"`
	Country  string `json:"country"`
	PageSize int    `json:"page_size"`
}

// PoolConfig 代理池配置
type PoolConfig struct {
	TTL                 time.Duration `json:"ttl"`
	StoreFile           string        `json:"store_file"`
	ProbeURL            string        `json:"probe_url"`
	ProbeTimeout        time.Duration `json:"probe_timeout"`
	ValidateConcurrency int           `json:"validate_concurrency"`
	FailureThreshold    int           `json:"failure_threshold"`
	RefreshTimeout      time.Duration `json:"refresh_timeout"`
}

// DownloadConfig 下载任务配置
type DownloadConfig struct {
	Dir         string  `json:"dir"`
	MaxParallel int     `json:"max_parallel"`
	Retries     int     `json:"retries"`
	RateLimit   float64 `json:"rate_limit"`
	RateBurst   int     `json:"rate_burst"`
}

// NewConfig 创建新的配置实例
func NewConfig() (*Config, error) {
	// 加载环境变量文件
	if err := godotenv.Load(); err != nil {
		log.Warn("Failed to load .env file: %v", err)
	}

	config := &Config{}

	// 加载各种配置
	configLoaders := []struct {
		name   string
		loader func() error
	}{
		{"server", config.loadServerConfig},
		{"auth", config.loadAuthConfig},
		{"provider", config.loadProviderConfig},
		{"pool", config.loadPoolConfig},
		{"download", config.loadDownloadConfig},
	}

	for _, cl := range configLoaders {
		if err := cl.loader(); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", cl.name, err)
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConfigValidation, err)
	}

	return config, nil
}

// loadServerConfig 加载服务器配置
func (c *Config) loadServerConfig() error {
	c.Server.Port = getEnvWithDefault("PORT", constants.DefaultPort)
	c.Server.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", constants.DefaultReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", constants.DefaultWriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", constants.DefaultIdleTimeout)
	return nil
}

// loadAuthConfig 加载认证配置
func (c *Config) loadAuthConfig() error {
	c.Auth.ApiKey = os.Getenv("APIKEY")
	return nil
}

// loadProviderConfig 加载代理提供商配置
func (c *Config) loadProviderConfig() error {
	c.Provider.ApiKey = strings.TrimSpace(os.Getenv("PROXY_API_KEY"))
	c.Provider.BaseURL = getEnvWithDefault("PROXY_API_URL", constants.DefaultProxyAPIURL)
	c.Provider.Country = getEnvWithDefault("PROXY_COUNTRY", constants.DefaultProxyCountry)
	c.Provider.PageSize = getEnvAsInt("PROXY_PAGE_SIZE", constants.DefaultPageSize)
	return nil
}

// loadPoolConfig 加载代理池配置
func (c *Config) loadPoolConfig() error {
	ttlHours := getEnvAsInt("POOL_TTL_HOURS", int(constants.DefaultPoolTTL.Hours()))
	c.Pool.TTL = time.Duration(ttlHours) * time.Hour
	c.Pool.StoreFile = getEnvWithDefault("POOL_FILE", constants.DefaultPoolFile)
	c.Pool.ProbeURL = getEnvWithDefault("PROBE_URL", constants.DefaultProbeURL)
	c.Pool.ProbeTimeout = getEnvAsDuration("PROBE_TIMEOUT", constants.DefaultProbeTimeout)
	c.Pool.ValidateConcurrency = getEnvAsInt("VALIDATE_CONCURRENCY", constants.DefaultValidateConcurrency)
	c.Pool.FailureThreshold = getEnvAsInt("FAILURE_THRESHOLD", constants.DefaultFailureThreshold)
	c.Pool.RefreshTimeout = getEnvAsDuration("REFRESH_TIMEOUT", constants.DefaultRefreshTimeout)
	return nil
}

// loadDownloadConfig 加载下载配置
func (c *Config) loadDownloadConfig() error {
	c.Download.Dir = getEnvWithDefault("DOWNLOAD_DIR", constants.DefaultDownloadDir)
	c.Download.MaxParallel = getEnvAsInt("MAX_PARALLEL_DOWNLOADS", constants.DefaultMaxParallel)
	c.Download.Retries = getEnvAsInt("DOWNLOAD_RETRIES", constants.DefaultDownloadRetries)
	c.Download.RateLimit = getEnvAsFloat("RATE_LIMIT", constants.DefaultRateLimit)
	c.Download.RateBurst = getEnvAsInt("RATE_BURST", constants.DefaultRateBurst)
	return nil
}

// validate 验证配置
func (c *Config) validate() error {
	// 验证端口
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %s", errors.ErrInvalidPort, c.Server.Port)
	}

	// 提供商密钥必须配置，否则刷新周期无法工作
	if c.Provider.ApiKey == "" {
		return errors.ErrMissingProxyKey
	}

	if c.Pool.TTL <= 0 {
		return fmt.Errorf("pool ttl must be positive, got: %v", c.Pool.TTL)
	}

	if c.Pool.ValidateConcurrency < 1 {
		return fmt.Errorf("validate concurrency must be at least 1, got: %d", c.Pool.ValidateConcurrency)
	}

	if c.Pool.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got: %d", c.Pool.FailureThreshold)
	}

	if c.Download.MaxParallel < 1 {
		return fmt.Errorf("max parallel downloads must be at least 1, got: %d", c.Download.MaxParallel)
	}

	return nil
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 获取环境变量并转换为整数
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvAsFloat 获取环境变量并转换为浮点数
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn("Invalid float value for %s: %s, using default: %f", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvAsDuration 获取环境变量并解析为时间间隔，支持 "30s" / "5m" 格式
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn("Invalid duration value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
