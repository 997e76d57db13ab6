package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/pkg/logger"
	"github.com/smsbot/gosms/pkg/ratelimit"
)

// Client 号码池 API 客户端
// 所有接口都是 form POST，key 字段携带用户凭证；200/422 返回 JSON，其余状态码视为传输失败。
// 客户端在两个监控循环之间共享，内部无可变状态，可并发使用
type Client struct {
	rc            *resty.Client
	targetCountry string
	targetService string
	limiter       ratelimit.RateLimiter
}

// Options 客户端配置
type Options struct {
	BaseURL        string
	TargetCountry  string // 目标国家 ID（固定对）
	TargetService  string // 目标服务 ID（固定对）
	RequestTimeout time.Duration
}

// NewClient 创建号码池 API 客户端
func NewClient(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY 等）
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.RequestTimeout).
		SetHeader("User-Agent", "gosms/1.0").
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(c *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 遇到 429 限流时优先使用 Retry-After 头
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{
		rc:            rc,
		targetCountry: opts.TargetCountry,
		targetService: opts.TargetService,
		limiter:       ratelimit.NewSMSPoolLimiter(),
	}
}

// Close 关闭底层连接（进程退出时调用一次）
func (c *Client) Close() {
	c.rc.GetClient().CloseIdleConnections()
}

// apiResponse 号码池 API 的宽松 JSON 响应
// 上游对同一字段会在数字/字符串之间摇摆，统一用访问器读取
type apiResponse map[string]any

func (r apiResponse) str(key string) string {
	if v, ok := r[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func (r apiResponse) intVal(key string) int {
	if v, ok := r[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return n
			}
		}
	}
	return 0
}

func (r apiResponse) decimalVal(key string) (decimal.Decimal, bool) {
	if v, ok := r[key]; ok {
		switch t := v.(type) {
		case float64:
			return decimal.NewFromFloat(t), true
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

func (r apiResponse) has(key string) bool {
	_, ok := r[key]
	return ok
}

// success==1 表示业务成功，success==0 表示业务失败
func (r apiResponse) successFlag() (int, bool) {
	if !r.has("success") {
		return 0, false
	}
	return r.intVal("success"), true
}

// postForm 执行一次 form POST 并解析 JSON 响应
// 200 与 422 的 JSON 都交给调用方做业务判断；其余情况返回传输/格式错误
func (c *Client) postForm(ctx context.Context, endpoint string, apiKey string, params map[string]string) (apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := map[string]string{}
	if apiKey != "" {
		form["key"] = apiKey
	}
	for k, v := range params {
		form[k] = v
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormData(form).
		Post(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "请求 %s 失败", endpoint)
	}

	status := resp.StatusCode()
	if status != 200 && status != 422 {
		logger.Errorf("API 错误 %d: %s %s", status, endpoint, truncateBody(resp.Body()))
		return nil, errors.Errorf("请求 %s 返回状态码 %d", endpoint, status)
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		// 格式错误与传输失败同样处理：本轮跳过，下轮重试
		return nil, errors.Wrapf(ErrMalformedResponse, "%s: %v", endpoint, err)
	}

	logger.Debugf("API 响应 %s: %v", endpoint, out)
	return out, nil
}

func truncateBody(b []byte) string {
	const maxLen = 512
	if len(b) > maxLen {
		return string(b[:maxLen]) + "..."
	}
	return string(b)
}

// targetParams 返回固定的国家/服务参数对
func (c *Client) targetParams() map[string]string {
	return map[string]string{
		"country": c.targetCountry,
		"service": c.targetService,
	}
}

func fmtDecimal(d decimal.Decimal) string {
	return fmt.Sprintf("$%s", d.StringFixed(2))
}
