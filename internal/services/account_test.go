package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/smspool/client"
)

func TestAccountRegister(t *testing.T) {
	inv := &fakeInventory{
		verify: &client.VerifyResult{Valid: true, Balance: decimal.RequireFromString("7.25")},
	}
	st := newTestStore(t)
	creds := newMapCreds()
	svc := NewAccountService(inv, st, creds)

	ctx := context.Background()
	balance, err := svc.Register(ctx, 1001, "tester", "An", "key-1001")
	if err != nil {
		t.Fatalf("登记失败: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("返回余额错误: %s", balance)
	}

	key, ok, err := creds.GetCredential(1001)
	if err != nil || !ok || key != "key-1001" {
		t.Fatalf("凭证应写入凭证库: key=%q ok=%v err=%v", key, ok, err)
	}

	user, err := st.GetUser(ctx, 1001)
	if err != nil {
		t.Fatalf("查询用户失败: %v", err)
	}
	if !user.IsActive || !user.IsMonitoring {
		t.Fatalf("首次登记应开启监控: active=%v monitoring=%v", user.IsActive, user.IsMonitoring)
	}
	if !user.Balance.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("缓存余额错误: %s", user.Balance)
	}
}

func TestAccountRegisterInvalidCredential(t *testing.T) {
	inv := &fakeInventory{verify: &client.VerifyResult{Valid: false}}
	st := newTestStore(t)
	creds := newMapCreds()
	svc := NewAccountService(inv, st, creds)

	_, err := svc.Register(context.Background(), 1001, "tester", "An", "bad-key")
	if !errors.Is(err, client.ErrInvalidCredential) {
		t.Fatalf("应返回凭证无效错误，实际: %v", err)
	}

	if _, ok, _ := creds.GetCredential(1001); ok {
		t.Fatal("无效凭证不应写入凭证库")
	}
	if _, err := st.GetUser(context.Background(), 1001); err == nil {
		t.Fatal("无效凭证不应落库用户记录")
	}
}

func TestAccountRefreshBalance(t *testing.T) {
	inv := &fakeInventory{balance: decimal.RequireFromString("3.10")}
	st := newTestStore(t)
	creds := newMapCreds()
	svc := NewAccountService(inv, st, creds)

	seedUser(t, st, creds, 1001, "key-1001")

	balance, err := svc.RefreshBalance(context.Background(), 1001)
	if err != nil {
		t.Fatalf("刷新余额失败: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("3.10")) {
		t.Fatalf("余额错误: %s", balance)
	}

	user, err := st.GetUser(context.Background(), 1001)
	if err != nil {
		t.Fatalf("查询用户失败: %v", err)
	}
	if !user.Balance.Equal(decimal.RequireFromString("3.10")) {
		t.Fatalf("缓存余额未更新: %s", user.Balance)
	}
}

func TestRentalRent(t *testing.T) {
	inv := &fakeInventory{
		purchase: &client.PurchaseResult{
			OrderID:     "order-42",
			PhoneNumber: "+81012345678",
			Price:       decimal.RequireFromString("0.42"),
			TTLSeconds:  600,
		},
		balance: decimal.RequireFromString("4.58"),
	}
	st := newTestStore(t)
	creds := newMapCreds()
	svc := NewRentalService(inv, st, st, creds, RentalOptions{
		CountryCode: "157",
		ServiceID:   "1552",
		ServiceName: "Pokemon Center",
	})
	seedUser(t, st, creds, 1001, "key-1001")

	before := time.Now()
	order, err := svc.Rent(context.Background(), 1001)
	if err != nil {
		t.Fatalf("租号失败: %v", err)
	}
	if order.OrderID != "order-42" || order.PhoneNumber != "+81012345678" {
		t.Fatalf("订单字段错误: %+v", order)
	}
	if order.Status != domain.OrderStatusActive {
		t.Fatalf("新订单应为 active，实际 %s", order.Status)
	}

	// 到期时间在创建时由 TTL 一次性确定
	wantExpiry := before.Add(600 * time.Second)
	if order.ExpiresAt.Before(wantExpiry.Add(-5*time.Second)) || order.ExpiresAt.After(wantExpiry.Add(10*time.Second)) {
		t.Fatalf("到期时间错误: %v", order.ExpiresAt)
	}

	got, err := st.GetOrder(context.Background(), "order-42")
	if err != nil {
		t.Fatalf("订单应落库: %v", err)
	}
	if !got.Price.Equal(decimal.RequireFromString("0.42")) {
		t.Fatalf("订单价格错误: %s", got.Price)
	}

	user, err := st.GetUser(context.Background(), 1001)
	if err != nil {
		t.Fatalf("查询用户失败: %v", err)
	}
	if !user.Balance.Equal(decimal.RequireFromString("4.58")) {
		t.Fatalf("租号后应刷新缓存余额: %s", user.Balance)
	}
}

func TestRentalRentInsufficientBalance(t *testing.T) {
	inv := &fakeInventory{
		purchaseErr: &client.InsufficientBalanceError{
			Required: decimal.RequireFromString("0.42"),
			Balance:  decimal.RequireFromString("0.10"),
		},
	}
	st := newTestStore(t)
	creds := newMapCreds()
	svc := NewRentalService(inv, st, st, creds, RentalOptions{})
	seedUser(t, st, creds, 1001, "key-1001")

	_, err := svc.Rent(context.Background(), 1001)
	if !client.IsInsufficientBalance(err) {
		t.Fatalf("应返回余额不足错误，实际: %v", err)
	}

	orders, listErr := st.ListOrdersForUser(context.Background(), 1001)
	if listErr != nil {
		t.Fatalf("查询订单失败: %v", listErr)
	}
	if len(orders) != 0 {
		t.Fatalf("余额不足不应产生订单，实际 %d 个", len(orders))
	}
}

func TestRentalCancel(t *testing.T) {
	inv := &fakeInventory{cancelRefund: true}
	st := newTestStore(t)
	creds := newMapCreds()
	svc := NewRentalService(inv, st, st, creds, RentalOptions{})
	seedUser(t, st, creds, 1001, "key-1001")
	seedOrder(t, st, 1001, "order-1", time.Now().Add(10*time.Minute))

	if err := svc.Cancel(context.Background(), 1001, "order-1"); err != nil {
		t.Fatalf("取消失败: %v", err)
	}

	got, err := st.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("主动取消后应为 cancelled，实际 %s", got.Status)
	}
}
