package client

import (
	"github.com/shopspring/decimal"
)

// VerifyResult 凭证验证结果
type VerifyResult struct {
	Valid   bool
	Balance decimal.Decimal
}

// StockResult 库存查询结果
type StockResult struct {
	Available bool
	Count     int
	Price     decimal.Decimal
}

// PurchaseResult 租号结果
type PurchaseResult struct {
	OrderID     string
	PhoneNumber string
	Price       decimal.Decimal
	TTLSeconds  int // 远程报价的有效期（秒），缺省 600
}

// SMSResult 短信查询结果
type SMSResult struct {
	Received bool
	Content  string // 验证码
	FullSMS  string // 完整短信内容（如果有）
}
