package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/internal/store"
	"github.com/smsbot/gosms/smspool/client"
)

// InventoryClient 远程号码池客户端契约
// 由 smspool/client.Client 实现；两个监控循环共享同一实例
type InventoryClient interface {
	VerifyCredential(ctx context.Context, apiKey string) (*client.VerifyResult, error)
	CheckStock(ctx context.Context, apiKey string) (*client.StockResult, error)
	GetPrice(ctx context.Context, apiKey string) (decimal.Decimal, error)
	Purchase(ctx context.Context, apiKey string) (*client.PurchaseResult, error)
	CheckReceivedCode(ctx context.Context, apiKey, orderID string) (*client.SMSResult, error)
	CancelOrder(ctx context.Context, apiKey, orderID string) (bool, error)
	GetBalance(ctx context.Context, apiKey string) (decimal.Decimal, error)
	Close()
}

// OrderStore 订单存储契约（由 internal/store.Store 实现）
type OrderStore interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListActiveOrders(ctx context.Context) ([]*domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListActiveOrdersForUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	UpdateReceivedContent(ctx context.Context, orderID string, content string) error
}

// UserStore 用户存储契约（由 internal/store.Store 实现）
type UserStore interface {
	SaveUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	ListMonitoredUsers(ctx context.Context) ([]*domain.User, error)
	UpdateBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
	UpdateMonitoringCursor(ctx context.Context, userID int64, lastCheck time.Time, notificationSent bool) error
	GetMonitoringCursor(ctx context.Context, userID int64) (*domain.MonitoringCursor, error)
}

// CredentialSource 凭证来源契约（由 pkg/secretstore.Store 实现）
type CredentialSource interface {
	GetCredential(userID int64) (string, bool, error)
	SetCredential(userID int64, apiKey string) error
}

// SweepAudit 扫描审计契约（由 internal/store.Store 实现，可为 nil）
type SweepAudit interface {
	InsertSweepRun(ctx context.Context, runID, monitor string, startedAt time.Time) error
	FinishSweepRun(ctx context.Context, runID string, entities, errCount int) error
	ListSweepRuns(ctx context.Context, monitor string, limit int) ([]store.SweepRun, error)
}

// Action 通知消息附带的内联动作（按钮）
type Action struct {
	Label   string // 展示文本
	Command string // 回调指令
}

// Notifier 通知发送契约（外部协作者，例如 Telegram 发送端）
// 发送失败只记录日志，不重试，也不会中断扫描
type Notifier interface {
	Send(ctx context.Context, userID int64, text string, actions []Action) error
}
