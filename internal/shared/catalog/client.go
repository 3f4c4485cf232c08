package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStyleNotFound 目录中不存在该款号
var ErrStyleNotFound = errors.New("style not found in catalog")

// StyleInfo 款式检索结果
type StyleInfo struct {
	Style        string `json:"style"`
	Title        string `json:"title"`
	CategoryName string `json:"category_name"`
	BrandName    string `json:"brand_name"`
}

// IsCap 按目录类目判断是否帽类
func (s *StyleInfo) IsCap() bool {
	cat := strings.ToLower(s.CategoryName)
	return strings.Contains(cat, "cap") || strings.Contains(cat, "hat")
}

// SizePricing 单个款式的尺码基准价与加价表
type SizePricing struct {
	Style      string             `json:"style"`
	Sizes      []string           `json:"sizes"`
	BasePrices map[string]float64 `json:"base_prices"`
	Upcharges  map[string]float64 `json:"upcharges"`
}

// Client 商品目录客户端，带 Redis + 进程内两级缓存
type Client struct {
	baseURL    string
	httpClient *http.Client
	redis      *redis.Client
	cacheTTL   time.Duration
	logger     *zap.Logger

	group singleflight.Group

	mu   sync.RWMutex
	mem  map[string]*SizePricing
	info map[string]*StyleInfo
}

// NewClient 创建商品目录客户端（rdb 可为 nil，降级为进程内缓存）
func NewClient(baseURL string, timeout, cacheTTL time.Duration, rdb *redis.Client, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   logger,
		mem:      make(map[string]*SizePricing),
		info:     make(map[string]*StyleInfo),
	}
}

// SearchStyle 按款号检索目录，未命中返回 ErrStyleNotFound
func (c *Client) SearchStyle(ctx context.Context, style string) (*StyleInfo, error) {
	key := strings.ToUpper(strings.TrimSpace(style))
	if key == "" {
		return nil, ErrStyleNotFound
	}

	c.mu.RLock()
	if cached, ok := c.info[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("style:"+key, func() (interface{}, error) {
		var results []StyleInfo
		path := "/api/stylesearch?term=" + url.QueryEscape(key)
		if err := c.doRequest(ctx, path, &results); err != nil {
			return nil, err
		}
		for i := range results {
			if strings.EqualFold(results[i].Style, key) {
				return &results[i], nil
			}
		}
		return nil, ErrStyleNotFound
	})
	if err != nil {
		return nil, err
	}

	inf := v.(*StyleInfo)
	c.mu.Lock()
	c.info[key] = inf
	c.mu.Unlock()
	return inf, nil
}

// SizePricing 拉取款式的尺码价格，同款号并发请求会被合并
func (c *Client) SizePricing(ctx context.Context, style string) (*SizePricing, error) {
	key := strings.ToUpper(strings.TrimSpace(style))
	if key == "" {
		return nil, ErrStyleNotFound
	}

	c.mu.RLock()
	if cached, ok := c.mem[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("sizes:"+key, func() (interface{}, error) {
		if sp := c.fromRedis(ctx, key); sp != nil {
			return sp, nil
		}

		var sp SizePricing
		path := "/api/size-pricing?styleNumber=" + url.QueryEscape(key)
		if err := c.doRequest(ctx, path, &sp); err != nil {
			return nil, err
		}
		if len(sp.BasePrices) == 0 {
			return nil, fmt.Errorf("款式 %s 无尺码价格数据: %w", key, ErrStyleNotFound)
		}
		sp.Style = key

		c.toRedis(ctx, key, &sp)
		return &sp, nil
	})
	if err != nil {
		return nil, err
	}

	sp := v.(*SizePricing)
	c.mu.Lock()
	c.mem[key] = sp
	c.mu.Unlock()
	return sp, nil
}

func (c *Client) redisKey(style string) string {
	return "catalog:size-pricing:" + style
}

func (c *Client) fromRedis(ctx context.Context, style string) *SizePricing {
	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, c.redisKey(style)).Bytes()
	if err != nil {
		return nil
	}
	var sp SizePricing
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil
	}
	return &sp
}

func (c *Client) toRedis(ctx context.Context, style string, sp *SizePricing) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(sp)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.redisKey(style), data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("catalog cache write failed",
			zap.String("style", style), zap.Error(err))
	}
}

func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrStyleNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("请求失败 (status=%d): %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}
