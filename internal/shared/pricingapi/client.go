package pricingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// 定价配置服务的报价方法标识
const (
	MethodEmbroidery   = "EMB"
	MethodEmbroideryAL = "EMB-AL"
	MethodCap          = "CAP"
	MethodCapAL        = "CAP-AL"
)

// Client 定价配置服务客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建定价配置服务客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BundleTier 阶梯定义
type BundleTier struct {
	TierLabel   string  `json:"TierLabel"`
	MinQuantity int     `json:"MinQuantity"`
	MaxQuantity int     `json:"MaxQuantity"`
	LTMFee      float64 `json:"LTM_Fee"`
}

// BundleCost 阶梯对应的装饰成本
type BundleCost struct {
	TierLabel      string  `json:"TierLabel"`
	EmbroideryCost float64 `json:"EmbroideryCost"`
	StitchCount    int     `json:"StitchCount"`
}

// BundleRule 定价规则（键值对形式下发）
type BundleRule struct {
	RuleName  string `json:"RuleName"`
	RuleValue string `json:"RuleValue"`
}

// Bundle 单个报价方法的完整配置包
type Bundle struct {
	Method string       `json:"method"`
	Tiers  []BundleTier `json:"tiersR"`
	Costs  []BundleCost `json:"allEmbroideryCostsR"`
	Rules  []BundleRule `json:"rulesR"`
}

// ServiceCode 服务编码表条目
type ServiceCode struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	DefaultFee  float64 `json:"default_fee"`
}

// FetchBundle 拉取指定报价方法的配置包
func (c *Client) FetchBundle(ctx context.Context, method string) (*Bundle, error) {
	var bundle Bundle
	path := "/api/pricing-bundle?method=" + url.QueryEscape(method)
	if err := c.doRequest(ctx, http.MethodGet, path, &bundle); err != nil {
		return nil, fmt.Errorf("获取定价配置包失败 (method=%s): %w", method, err)
	}
	if len(bundle.Tiers) == 0 {
		return nil, fmt.Errorf("定价配置包为空 (method=%s)", method)
	}
	bundle.Method = method
	return &bundle, nil
}

// FetchServiceCodes 拉取服务编码表
func (c *Client) FetchServiceCodes(ctx context.Context) ([]ServiceCode, error) {
	var codes []ServiceCode
	if err := c.doRequest(ctx, http.MethodGet, "/api/service-codes", &codes); err != nil {
		return nil, fmt.Errorf("获取服务编码表失败: %w", err)
	}
	return codes, nil
}

// doRequest 执行HTTP请求并解析JSON响应
func (c *Client) doRequest(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
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

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("pricing api returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("path", path))
		return fmt.Errorf("请求失败 (status=%d): %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}
