package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User 用户领域模型
// Credential（API key）不落在关系库中，存放在加密的凭证库里，这里只携带运行期副本
type User struct {
	UserID       int64           // 用户 ID
	Username     string          // 用户名（可选）
	FirstName    string          // 名字（可选）
	Credential   string          // API 凭证（运行期从凭证库加载，视为机密）
	Balance      decimal.Decimal // 缓存的账户余额（机会性刷新）
	IsActive     bool            // 账户是否有效
	IsMonitoring bool            // 是否参与库存监控
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MonitoringCursor 监控游标
// NotificationSent 的语义是「本次连续可用窗口内是否已通知过」，
// 库存归零时必须复位，而不是「是否曾经通知过」
type MonitoringCursor struct {
	UserID           int64
	LastCheck        time.Time
	NotificationSent bool
}

// AvailabilitySnapshot 一次库存查询的结果（瞬时数据，用完即弃，不落库）
type AvailabilitySnapshot struct {
	Available bool
	Count     int
	Price     decimal.Decimal
}
