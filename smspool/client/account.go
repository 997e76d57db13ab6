package client

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// VerifyCredential 验证 API 凭证并返回余额
// 上游没有专门的校验端点，用余额接口代替：能查到余额即凭证有效
func (c *Client) VerifyCredential(ctx context.Context, apiKey string) (*VerifyResult, error) {
	resp, err := c.postForm(ctx, endpointBalance, apiKey, nil)
	if err != nil {
		return nil, err
	}

	if balance, ok := resp.decimalVal("balance"); ok {
		return &VerifyResult{Valid: true, Balance: balance}, nil
	}

	// 响应里有 error 或 success==0 视为凭证无效
	if resp.has("error") {
		return &VerifyResult{Valid: false}, nil
	}
	if flag, ok := resp.successFlag(); ok && flag == 0 {
		return &VerifyResult{Valid: false}, nil
	}

	return nil, errors.Wrapf(ErrMalformedResponse, "%s: 响应缺少 balance 字段", endpointBalance)
}

// GetBalance 查询账户余额
func (c *Client) GetBalance(ctx context.Context, apiKey string) (decimal.Decimal, error) {
	resp, err := c.postForm(ctx, endpointBalance, apiKey, nil)
	if err != nil {
		return decimal.Zero, err
	}

	if balance, ok := resp.decimalVal("balance"); ok {
		return balance, nil
	}

	if msg := resp.str("message"); msg != "" {
		return decimal.Zero, &APIError{Endpoint: endpointBalance, Message: msg}
	}
	return decimal.Zero, errors.Wrapf(ErrMalformedResponse, "%s: 响应缺少 balance 字段", endpointBalance)
}
