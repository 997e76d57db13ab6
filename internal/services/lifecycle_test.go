package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/internal/metrics"
	"github.com/smsbot/gosms/smspool/client"
)

func TestLifecycleCodeReceived(t *testing.T) {
	inv := &fakeInventory{
		sms: map[string]*client.SMSResult{
			"order-1": {Received: true, Content: "839203", FullSMS: "Your code is 839203"},
		},
	}
	notifier := &fakeNotifier{}
	m, st, creds := newTestMonitor(t, inv, notifier)
	seedUser(t, st, creds, 1001, "key-1001")
	seedOrder(t, st, 1001, "order-1", time.Now().Add(10*time.Minute))

	ctx := context.Background()
	m.sweepOrders(ctx)

	got, err := st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusCompleted {
		t.Fatalf("收到验证码后订单应为 completed，实际 %s", got.Status)
	}
	if got.ReceivedContent != "839203" {
		t.Fatalf("验证码内容错误: %q", got.ReceivedContent)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at 应被写入")
	}

	if notifier.count() != 1 {
		t.Fatalf("应发送 1 条收码通知，实际 %d", notifier.count())
	}
	if !strings.Contains(notifier.last().text, "839203") {
		t.Fatalf("收码通知应包含验证码: %q", notifier.last().text)
	}

	// 已完成订单不再出现在后续扫描中
	m.sweepOrders(ctx)
	if notifier.count() != 1 {
		t.Fatalf("终态订单不应重复通知，实际 %d 条", notifier.count())
	}
}

func TestLifecycleCodeDoesNotOverwriteTerminal(t *testing.T) {
	inv := &fakeInventory{
		sms: map[string]*client.SMSResult{
			"order-1": {Received: true, Content: "839203"},
		},
	}
	notifier := &fakeNotifier{}
	m, st, creds := newTestMonitor(t, inv, notifier)
	seedUser(t, st, creds, 1001, "key-1001")
	order := seedOrder(t, st, 1001, "order-1", time.Now().Add(10*time.Minute))

	ctx := context.Background()

	// 订单在列表查询和收码之间被取消
	if err := st.UpdateStatus(ctx, "order-1", domain.OrderStatusCancelled); err != nil {
		t.Fatalf("取消订单失败: %v", err)
	}

	if err := m.checkOrderCode(ctx, order); err != nil {
		t.Fatalf("终态竞争不应报错: %v", err)
	}

	got, err := st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("终态不应被覆盖，实际 %s", got.Status)
	}
	if got.ReceivedContent != "" {
		t.Fatalf("终态订单不应写入验证码: %q", got.ReceivedContent)
	}
	if notifier.count() != 0 {
		t.Fatalf("终态竞争不应发送通知，实际 %d 条", notifier.count())
	}
}

func TestLifecycleExpiryTakesPrecedence(t *testing.T) {
	inv := &fakeInventory{
		sms: map[string]*client.SMSResult{
			"order-1": {Received: true, Content: "839203"},
		},
		cancelRefund: true,
		balance:      decimal.RequireFromString("9.58"),
	}
	notifier := &fakeNotifier{}
	m, st, creds := newTestMonitor(t, inv, notifier)
	seedUser(t, st, creds, 1001, "key-1001")
	seedOrder(t, st, 1001, "order-1", time.Now().Add(-time.Minute))

	ctx := context.Background()
	m.sweepOrders(ctx)

	// 过期订单直接走退款分支，不再查询验证码
	inv.mu.Lock()
	smsCalls, cancelCalls := inv.smsCalls, inv.cancelCalls
	inv.mu.Unlock()
	if smsCalls != 0 {
		t.Fatalf("过期订单不应查询验证码，实际查询 %d 次", smsCalls)
	}
	if cancelCalls != 1 {
		t.Fatalf("过期订单应申请退款 1 次，实际 %d 次", cancelCalls)
	}

	got, err := st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusRefunded {
		t.Fatalf("退款成功后订单应为 refunded，实际 %s", got.Status)
	}
}

func TestLifecycleRefundSuccess(t *testing.T) {
	inv := &fakeInventory{
		cancelRefund: true,
		balance:      decimal.RequireFromString("12.50"),
	}
	notifier := &fakeNotifier{}
	m, st, creds := newTestMonitor(t, inv, notifier)
	seedUser(t, st, creds, 1001, "key-1001")
	seedOrder(t, st, 1001, "order-1", time.Now().Add(-time.Minute))

	ctx := context.Background()
	m.sweepOrders(ctx)

	got, err := st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusRefunded {
		t.Fatalf("订单应为 refunded，实际 %s", got.Status)
	}

	user, err := st.GetUser(ctx, 1001)
	if err != nil {
		t.Fatalf("查询用户失败: %v", err)
	}
	if !user.Balance.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("退款后应刷新缓存余额，实际 %s", user.Balance)
	}

	if notifier.count() != 1 {
		t.Fatalf("应发送 1 条退款通知，实际 %d", notifier.count())
	}
	if !strings.Contains(notifier.last().text, "12.50") {
		t.Fatalf("退款通知应包含最新余额: %q", notifier.last().text)
	}

	// 终态后再扫描：退款只发生一次
	m.sweepOrders(ctx)
	inv.mu.Lock()
	cancelCalls := inv.cancelCalls
	inv.mu.Unlock()
	if cancelCalls != 1 {
		t.Fatalf("退款应只尝试一次，实际 %d 次", cancelCalls)
	}
}

func TestLifecycleRefundRejected(t *testing.T) {
	inv := &fakeInventory{cancelRefund: false}
	notifier := &fakeNotifier{}
	m, st, creds := newTestMonitor(t, inv, notifier)
	seedUser(t, st, creds, 1001, "key-1001")
	seedOrder(t, st, 1001, "order-1", time.Now().Add(-time.Minute))

	ctx := context.Background()
	m.sweepOrders(ctx)

	got, err := st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusExpired {
		t.Fatalf("退款被拒后订单应为 expired，实际 %s", got.Status)
	}

	if notifier.count() != 1 {
		t.Fatalf("应发送 1 条退款失败通知，实际 %d", notifier.count())
	}

	// 终态后不再重试退款
	m.sweepOrders(ctx)
	inv.mu.Lock()
	cancelCalls := inv.cancelCalls
	inv.mu.Unlock()
	if cancelCalls != 1 {
		t.Fatalf("退款被拒后不应重试，实际 %d 次", cancelCalls)
	}
}

func TestLifecycleTransportErrorKeepsOrderActive(t *testing.T) {
	inv := &fakeInventory{cancelErr: errors.New("连接被重置")}
	notifier := &fakeNotifier{}
	m, st, creds := newTestMonitor(t, inv, notifier)
	seedUser(t, st, creds, 1001, "key-1001")
	seedOrder(t, st, 1001, "order-1", time.Now().Add(-time.Minute))

	ctx := context.Background()
	m.sweepOrders(ctx)

	got, err := st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusActive {
		t.Fatalf("传输失败时订单应保持 active 等待重试，实际 %s", got.Status)
	}
	if notifier.count() != 0 {
		t.Fatalf("传输失败不应发送通知，实际 %d 条", notifier.count())
	}

	// 远程恢复后下一轮完成退款
	inv.mu.Lock()
	inv.cancelErr = nil
	inv.cancelRefund = true
	inv.balance = decimal.RequireFromString("5.00")
	inv.mu.Unlock()

	m.sweepOrders(ctx)
	got, err = st.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusRefunded {
		t.Fatalf("远程恢复后应完成退款，实际 %s", got.Status)
	}
}

// failingOrders 包装真实存储，注入状态写入失败
type failingOrders struct {
	OrderStore
	statusErr error
}

func (f *failingOrders) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	return f.OrderStore.UpdateStatus(ctx, orderID, status)
}

func TestLifecycleReconcileHazardLogged(t *testing.T) {
	inv := &fakeInventory{
		cancelRefund: true,
		balance:      decimal.RequireFromString("5.00"),
	}
	notifier := &fakeNotifier{}
	st := newTestStore(t)
	creds := newMapCreds()
	m := NewMonitorService(inv, &failingOrders{OrderStore: st, statusErr: errors.New("磁盘写入失败")}, st, creds, notifier, st, MonitorOptions{
		SweepInterval:  time.Hour,
		PerEntityDelay: time.Millisecond,
		ServiceName:    "Pokemon Center",
	})
	seedUser(t, st, creds, 1001, "key-1001")
	order := seedOrder(t, st, 1001, "order-1", time.Now().Add(-time.Minute))

	before := metrics.ReconcileHazards.Value()

	// 远程退款成功但本地状态写入失败：记录对账风险后继续，不报错
	if err := m.handleExpiredOrder(context.Background(), order); err != nil {
		t.Fatalf("对账风险不应上抛错误: %v", err)
	}
	if metrics.ReconcileHazards.Value() != before+1 {
		t.Fatal("应记录一次对账风险")
	}

	// 订单仍是 active，下一轮重试时由远端幂等兜底
	got, err := st.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("查询订单失败: %v", err)
	}
	if got.Status != domain.OrderStatusActive {
		t.Fatalf("本地写入失败时订单应保持 active，实际 %s", got.Status)
	}
}
