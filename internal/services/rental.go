package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/smspool/client"
)

var rentalLog = logrus.WithField("component", "rental")

// RentalOptions 租号配置
type RentalOptions struct {
	CountryCode string        // 固定国家 ID
	ServiceID   string        // 固定服务 ID
	ServiceName string        // 服务展示名称
	DefaultTTL  time.Duration // 远程未报价时的默认有效期，默认 600s
}

// RentalService 租号服务：购买号码并落库订单
type RentalService struct {
	inventory InventoryClient
	orders    OrderStore
	users     UserStore
	creds     CredentialSource
	opts      RentalOptions
}

// NewRentalService 创建租号服务
func NewRentalService(inventory InventoryClient, orders OrderStore, users UserStore, creds CredentialSource, opts RentalOptions) *RentalService {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 600 * time.Second
	}
	return &RentalService{inventory: inventory, orders: orders, users: users, creds: creds, opts: opts}
}

// Rent 为用户租用一个号码
// expires_at 在创建时由远程报价的 TTL 一次性确定，此后不再变化。
// 余额不足返回 *client.InsufficientBalanceError，由调用方（聊天层）展示
func (s *RentalService) Rent(ctx context.Context, userID int64) (*domain.Order, error) {
	apiKey, ok, err := s.creds.GetCredential(userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, client.ErrInvalidCredential
	}

	result, err := s.inventory.Purchase(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ttl := s.opts.DefaultTTL
	if result.TTLSeconds > 0 {
		ttl = time.Duration(result.TTLSeconds) * time.Second
	}

	order := &domain.Order{
		OrderID:     result.OrderID,
		UserID:      userID,
		PhoneNumber: result.PhoneNumber,
		CountryCode: s.opts.CountryCode,
		ServiceID:   s.opts.ServiceID,
		ServiceName: s.opts.ServiceName,
		Status:      domain.OrderStatusActive,
		Price:       result.Price,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := s.orders.InsertOrder(ctx, order); err != nil {
		// 远程已扣费但本地落库失败：订单将脱离监控，大声记录
		rentalLog.Errorf("⚠️ 对账风险: 订单 %s 购买成功但落库失败: %v", order.OrderID, err)
		return nil, err
	}

	// 机会性刷新余额，失败不影响租号结果
	if balance, err := s.inventory.GetBalance(ctx, apiKey); err == nil {
		if err := s.users.UpdateBalance(ctx, userID, balance); err != nil {
			rentalLog.Warnf("写入用户 %d 余额失败: %v", userID, err)
		}
	}

	rentalLog.Infof("📱 用户 %d 租号成功: order=%s number=%s price=$%s ttl=%s",
		userID, order.OrderID, order.PhoneNumber, order.Price.StringFixed(2), ttl)
	return order, nil
}

// Cancel 用户主动取消订单（终态 cancelled）
// 远程退款结果不影响本地取消：拒绝退款时只记录
func (s *RentalService) Cancel(ctx context.Context, userID int64, orderID string) error {
	apiKey, ok, err := s.creds.GetCredential(userID)
	if err != nil {
		return err
	}
	if !ok {
		return client.ErrInvalidCredential
	}

	refunded, err := s.inventory.CancelOrder(ctx, apiKey, orderID)
	if err != nil {
		return err
	}
	if !refunded {
		rentalLog.Warnf("订单 %s 主动取消但远程拒绝退款", orderID)
	}

	return s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled)
}
