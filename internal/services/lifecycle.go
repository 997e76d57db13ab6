package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/internal/metrics"
	"github.com/smsbot/gosms/internal/store"
)

var lifecycleLog = logrus.WithField("component", "lifecycle_monitor")

// lifecycleLoop 订单生命周期监控循环
// 每轮扫描所有 active 订单：收到验证码转 completed，过期触发退款流程
func (m *MonitorService) lifecycleLoop(ctx context.Context) {
	lifecycleLog.Info("📱 订单生命周期监控已启动")

	for {
		m.sweepOrders(ctx)
		if !m.sleepUntilNextSweep(ctx) {
			lifecycleLog.Info("订单生命周期监控已退出")
			return
		}
	}
}

// sweepOrders 执行一轮订单扫描
// 查询不带过期过滤，每个订单在处理时按 expires_at 分流：已过期走退款分支，
// 未过期走收码分支。两个分支每轮都会评估，订单不会因为同时满足两类条件被跳过
func (m *MonitorService) sweepOrders(ctx context.Context) {
	runID := uuid.NewString()
	startedAt := time.Now()
	metrics.LifecycleSweeps.Add(1)

	if m.audit != nil {
		if err := m.audit.InsertSweepRun(ctx, runID, monitorLifecycle, startedAt); err != nil {
			lifecycleLog.Warnf("记录扫描审计失败: %v", err)
		}
	}

	orders, err := m.orders.ListActiveOrders(ctx)
	if err != nil {
		lifecycleLog.Errorf("查询活跃订单失败: %v", err)
		metrics.SweepErrors.Add(1)
		return
	}
	lifecycleLog.Debugf("[%s] 本轮监控 %d 个活跃订单", shortRunID(runID), len(orders))

	errCount := 0
	processed := 0
	for i, order := range orders {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !m.interEntityPause(ctx) {
			break
		}

		processed++
		if err := m.processOrder(ctx, order); err != nil {
			lifecycleLog.Errorf("处理订单 %s 失败: %v", order.OrderID, err)
			metrics.SweepErrors.Add(1)
			errCount++
		}
	}

	if m.audit != nil {
		if err := m.audit.FinishSweepRun(ctx, runID, processed, errCount); err != nil {
			lifecycleLog.Warnf("完成扫描审计失败: %v", err)
		}
	}
}

// processOrder 处理单个活跃订单
// 过期检查优先：已过期的订单不再查询验证码，直接进入退款分支
func (m *MonitorService) processOrder(ctx context.Context, order *domain.Order) error {
	if order.IsExpiredAt(time.Now()) {
		return m.handleExpiredOrder(ctx, order)
	}
	return m.checkOrderCode(ctx, order)
}

// checkOrderCode 查询订单是否收到验证码，收到则转入 completed 终态
func (m *MonitorService) checkOrderCode(ctx context.Context, order *domain.Order) error {
	apiKey, ok, err := m.creds.GetCredential(order.UserID)
	if err != nil {
		return err
	}
	if !ok {
		lifecycleLog.Errorf("订单 %s 的用户 %d 缺少凭证", order.OrderID, order.UserID)
		return nil
	}

	result, err := m.inventory.CheckReceivedCode(ctx, apiKey, order.OrderID)
	if err != nil {
		return err
	}
	if !result.Received {
		lifecycleLog.Debugf("订单 %s 尚未收到短信", order.OrderID)
		return nil
	}

	if err := m.orders.UpdateReceivedContent(ctx, order.OrderID, result.Content); err != nil {
		if errors.Is(err, store.ErrNoTransition) {
			// 订单已离开 active（并发取消等场景），终态不覆盖
			lifecycleLog.Warnf("订单 %s 已不在 active 状态，忽略收码", order.OrderID)
			return nil
		}
		return err
	}
	order.ReceivedContent = result.Content
	metrics.CodesReceived.Add(1)

	if err := m.notifier.Send(ctx, order.UserID, codeReceivedMessage(order), nil); err != nil {
		lifecycleLog.Warnf("向用户 %d 发送收码通知失败: %v", order.UserID, err)
		metrics.NotificationErrors.Add(1)
	}

	lifecycleLog.Infof("✅ 订单 %s 已收到验证码，用户 %d 已通知", order.OrderID, order.UserID)
	return nil
}

// handleExpiredOrder 处理过期订单：申请退款
// 退款成功 → refunded 并刷新余额；远程拒绝退款 → expired（终态，转人工支持），
// 同一轮不重试，避免对可能永久失败的远程调用无限重试
func (m *MonitorService) handleExpiredOrder(ctx context.Context, order *domain.Order) error {
	apiKey, ok, err := m.creds.GetCredential(order.UserID)
	if err != nil {
		return err
	}
	if !ok {
		lifecycleLog.Errorf("过期订单 %s 的用户 %d 缺少凭证", order.OrderID, order.UserID)
		return nil
	}

	refunded, err := m.inventory.CancelOrder(ctx, apiKey, order.OrderID)
	if err != nil {
		// 传输失败：订单保持 active，下一轮重试
		return err
	}

	if !refunded {
		if err := m.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusExpired); err != nil {
			if errors.Is(err, store.ErrNoTransition) {
				return nil
			}
			return err
		}
		metrics.RefundsFailed.Add(1)

		if err := m.notifier.Send(ctx, order.UserID, refundFailedMessage(order), nil); err != nil {
			lifecycleLog.Warnf("向用户 %d 发送退款失败通知失败: %v", order.UserID, err)
			metrics.NotificationErrors.Add(1)
		}
		lifecycleLog.Errorf("❌ 过期订单 %s 退款被拒绝，已转人工处理", order.OrderID)
		return nil
	}

	// 远程退款已成功，本地状态写失败属于对账风险：大声记录后继续，
	// 不构造补偿事务（订单可能短暂停留在 active，下一轮 CancelOrder 幂等兜底）
	if err := m.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusRefunded); err != nil {
		if errors.Is(err, store.ErrNoTransition) {
			return nil
		}
		lifecycleLog.Errorf("⚠️ 对账风险: 订单 %s 远程退款成功但本地状态写入失败: %v", order.OrderID, err)
		metrics.ReconcileHazards.Add(1)
		return nil
	}
	metrics.RefundsSucceeded.Add(1)

	// 机会性刷新缓存余额；失败不影响订单终态
	balance, err := m.inventory.GetBalance(ctx, apiKey)
	if err != nil {
		lifecycleLog.Warnf("刷新用户 %d 余额失败: %v", order.UserID, err)
		balance = decimal.Zero
	} else {
		if err := m.users.UpdateBalance(ctx, order.UserID, balance); err != nil {
			lifecycleLog.Warnf("写入用户 %d 余额失败: %v", order.UserID, err)
		}
	}

	if err := m.notifier.Send(ctx, order.UserID, refundedMessage(order, balance), nil); err != nil {
		lifecycleLog.Warnf("向用户 %d 发送退款通知失败: %v", order.UserID, err)
		metrics.NotificationErrors.Add(1)
	}

	lifecycleLog.Infof("💰 过期订单 %s 已退款，用户 %d 已通知", order.OrderID, order.UserID)
	return nil
}
