package client

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/pkg/logger"
)

// CheckStock 查询固定国家/服务对的库存
// 库存大于 0 时顺带查询当前价格；价格查询失败不影响库存结果（价格置零）
func (c *Client) CheckStock(ctx context.Context, apiKey string) (*StockResult, error) {
	resp, err := c.postForm(ctx, endpointStock, apiKey, c.targetParams())
	if err != nil {
		return nil, err
	}

	count := -1
	if flag, ok := resp.successFlag(); ok {
		if flag == 1 {
			// 上游返回的是 amount 字段
			count = resp.intVal("amount")
		} else {
			return nil, &APIError{Endpoint: endpointStock, Message: resp.str("message")}
		}
	} else if resp.has("stock") {
		// 旧格式兜底
		count = resp.intVal("stock")
	}

	if count < 0 {
		return nil, &APIError{Endpoint: endpointStock, Message: "无法识别的库存响应格式"}
	}

	if count == 0 {
		return &StockResult{Available: false, Count: 0, Price: decimal.Zero}, nil
	}

	price, err := c.GetPrice(ctx, apiKey)
	if err != nil {
		logger.Warnf("查询价格失败，库存结果不带价格: %v", err)
		price = decimal.Zero
	}

	return &StockResult{Available: true, Count: count, Price: price}, nil
}

// GetPrice 查询固定国家/服务对的当前价格
func (c *Client) GetPrice(ctx context.Context, apiKey string) (decimal.Decimal, error) {
	resp, err := c.postForm(ctx, endpointPrice, apiKey, c.targetParams())
	if err != nil {
		return decimal.Zero, err
	}

	if price, ok := resp.decimalVal("price"); ok {
		return price, nil
	}
	return decimal.Zero, &APIError{Endpoint: endpointPrice, Message: resp.str("message")}
}
