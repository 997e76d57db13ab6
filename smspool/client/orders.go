package client

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/pkg/logger"
)

const defaultTTLSeconds = 600 // 上游默认 10 分钟有效期

var (
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
	priceRe   = regexp.MustCompile(`price is: ([\d.]+)`)
	balanceRe = regexp.MustCompile(`you only have: ([\d.]+)`)
)

// Purchase 租用一个号码
// 业务失败时返回类型化错误：余额不足返回 *InsufficientBalanceError，其余返回 *APIError
func (c *Client) Purchase(ctx context.Context, apiKey string) (*PurchaseResult, error) {
	resp, err := c.postForm(ctx, endpointPurchase, apiKey, c.targetParams())
	if err != nil {
		return nil, err
	}

	if flag, ok := resp.successFlag(); ok && flag == 1 {
		result := &PurchaseResult{
			OrderID:     resp.str("order_id"),
			PhoneNumber: resp.str("number"),
			TTLSeconds:  defaultTTLSeconds,
		}
		if ttl := resp.intVal("expires_in"); ttl > 0 {
			result.TTLSeconds = ttl
		}
		if price, ok := resp.decimalVal("price"); ok && price.IsPositive() {
			result.Price = price
		} else {
			// 响应不带价格时单独查询；失败只记录，订单依然有效
			if price, err := c.GetPrice(ctx, apiKey); err == nil {
				result.Price = price
			} else {
				logger.Warnf("租号成功但查询价格失败: %v", err)
			}
		}
		return result, nil
	}

	errMsg := resp.str("message")
	errType := resp.str("type")

	if errType == "BALANCE_ERROR" || strings.Contains(errMsg, "Insufficient balance") {
		return nil, parseBalanceError(resp, errMsg)
	}

	return nil, &APIError{Endpoint: endpointPurchase, Message: errMsg}
}

// parseBalanceError 从余额不足的错误消息中解析所需价格与当前余额
// 消息内嵌 HTML 标签，先剥掉再匹配；主消息没有时从 pools 里找
func parseBalanceError(resp apiResponse, errMsg string) *InsufficientBalanceError {
	out := &InsufficientBalanceError{Message: errMsg}

	if required, balance, ok := extractAmounts(errMsg); ok {
		out.Required = required
		out.Balance = balance
		return out
	}

	if pools, ok := resp["pools"].(map[string]any); ok {
		for _, p := range pools {
			pool, ok := p.(map[string]any)
			if !ok {
				continue
			}
			poolMsg, _ := pool["message"].(string)
			if required, balance, ok := extractAmounts(poolMsg); ok {
				out.Required = required
				out.Balance = balance
				return out
			}
		}
	}

	return out
}

func extractAmounts(msg string) (required, balance decimal.Decimal, ok bool) {
	clean := htmlTagRe.ReplaceAllString(msg, "")
	priceMatch := priceRe.FindStringSubmatch(clean)
	balanceMatch := balanceRe.FindStringSubmatch(clean)
	if priceMatch == nil || balanceMatch == nil {
		return decimal.Zero, decimal.Zero, false
	}
	required, err1 := decimal.NewFromString(priceMatch[1])
	balance, err2 := decimal.NewFromString(balanceMatch[1])
	if err1 != nil || err2 != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return required, balance, true
}

// CheckReceivedCode 查询订单是否已收到验证码
func (c *Client) CheckReceivedCode(ctx context.Context, apiKey, orderID string) (*SMSResult, error) {
	// 上游 form 字段是 orderid 而不是 order_id
	resp, err := c.postForm(ctx, endpointCheckSMS, apiKey, map[string]string{"orderid": orderID})
	if err != nil {
		return nil, err
	}

	if code := resp.str("code"); code != "" {
		full := resp.str("full_code")
		if full == "" {
			full = code
		}
		return &SMSResult{Received: true, Content: code, FullSMS: full}, nil
	}

	// 状态已完成但 code 字段为空的边缘情况
	if resp.str("status") == "completed" {
		code := resp.str("code")
		full := resp.str("full_code")
		if full == "" {
			full = code
		}
		return &SMSResult{Received: true, Content: code, FullSMS: full}, nil
	}

	return &SMSResult{Received: false}, nil
}

// CancelOrder 取消订单并申请退款
// 返回 false 表示远程拒绝退款（订单将转入人工处理），不是传输错误
func (c *Client) CancelOrder(ctx context.Context, apiKey, orderID string) (bool, error) {
	resp, err := c.postForm(ctx, endpointCancel, apiKey, map[string]string{"orderid": orderID})
	if err != nil {
		return false, err
	}

	if flag, ok := resp.successFlag(); ok && flag == 1 {
		return true, nil
	}
	logger.Warnf("退款被拒绝: order=%s message=%s", orderID, resp.str("message"))
	return false, nil
}
