package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 租号订单领域模型
// 一条订单对应一次号码租用，带固定的过期时间（由远程服务报价的 TTL 决定，创建后不再变化）
type Order struct {
	OrderID         string          // 订单 ID（由远程服务分配，全局唯一）
	UserID          int64           // 所属用户 ID
	PhoneNumber     string          // 租到的号码
	CountryCode     string          // 国家 ID
	ServiceID       string          // 服务 ID
	ServiceName     string          // 服务展示名称
	Status          OrderStatus     // 订单状态
	Price           decimal.Decimal // 订单价格
	ReceivedContent string          // 收到的短信内容（可选）
	CreatedAt       time.Time       // 创建时间
	ExpiresAt       time.Time       // 过期时间（绝对时间，创建时固定）
	CompletedAt     *time.Time      // 完成时间（可选，进入终态时设置）
}

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"    // 等待短信中
	OrderStatusCompleted OrderStatus = "completed" // 已收到短信
	OrderStatusRefunded  OrderStatus = "refunded"  // 已过期并退款成功
	OrderStatusExpired   OrderStatus = "expired"   // 已过期且退款失败（需人工处理）
	OrderStatusCancelled OrderStatus = "cancelled" // 用户主动取消
)

// IsTerminal 检查状态是否为终态
// 终态订单不再被任何扫描处理，也不会再发生字段变更
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusRefunded, OrderStatusExpired, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValid 检查是否为已知状态
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusActive, OrderStatusCompleted, OrderStatusRefunded, OrderStatusExpired, OrderStatusCancelled:
		return true
	}
	return false
}

// IsActive 检查订单是否仍在等待短信
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusActive
}

// IsExpiredAt 检查订单在给定时刻是否已过期
func (o *Order) IsExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
