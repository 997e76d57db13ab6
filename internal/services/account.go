package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/smspool/client"
)

var accountLog = logrus.WithField("component", "account")

// AccountService 账户服务：凭证验证、用户登记、余额刷新
type AccountService struct {
	inventory InventoryClient
	users     UserStore
	creds     CredentialSource
}

// NewAccountService 创建账户服务
func NewAccountService(inventory InventoryClient, users UserStore, creds CredentialSource) *AccountService {
	return &AccountService{inventory: inventory, users: users, creds: creds}
}

// Register 验证 API 凭证并登记用户
// 凭证有效时写入凭证库并落库用户记录（首次登记即开启监控），返回当前余额。
// 凭证无效返回 client.ErrInvalidCredential
func (s *AccountService) Register(ctx context.Context, userID int64, username, firstName, apiKey string) (decimal.Decimal, error) {
	result, err := s.inventory.VerifyCredential(ctx, apiKey)
	if err != nil {
		return decimal.Zero, err
	}
	if !result.Valid {
		return decimal.Zero, client.ErrInvalidCredential
	}

	if err := s.creds.SetCredential(userID, apiKey); err != nil {
		return decimal.Zero, err
	}

	user := &domain.User{
		UserID:       userID,
		Username:     username,
		FirstName:    firstName,
		Balance:      result.Balance,
		IsActive:     true,
		IsMonitoring: true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return decimal.Zero, err
	}

	accountLog.Infof("✅ 用户 %d 登记成功 (balance=$%s)", userID, result.Balance.StringFixed(2))
	return result.Balance, nil
}

// RefreshBalance 从远程刷新用户缓存余额
func (s *AccountService) RefreshBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	apiKey, ok, err := s.creds.GetCredential(userID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, client.ErrInvalidCredential
	}

	balance, err := s.inventory.GetBalance(ctx, apiKey)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.users.UpdateBalance(ctx, userID, balance); err != nil {
		accountLog.Warnf("写入用户 %d 余额失败: %v", userID, err)
	}
	return balance, nil
}
