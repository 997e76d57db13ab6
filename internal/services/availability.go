package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/internal/metrics"
)

var availLog = logrus.WithField("component", "availability_monitor")

// availabilityLoop 可用性监控循环
// 每轮扫描所有开启监控的用户，库存从无到有时通知（每个连续可用窗口恰好一次）
func (m *MonitorService) availabilityLoop(ctx context.Context) {
	availLog.Info("🔍 可用性监控已启动")

	for {
		m.sweepAvailability(ctx)
		if !m.sleepUntilNextSweep(ctx) {
			availLog.Info("可用性监控已退出")
			return
		}
	}
}

// sweepAvailability 执行一轮可用性扫描
// 单个用户的失败（凭证无效、网络错误、响应格式错误）只影响该用户本轮，
// 不会中断整轮扫描；循环本身永不因错误退出
func (m *MonitorService) sweepAvailability(ctx context.Context) {
	runID := uuid.NewString()
	startedAt := time.Now()
	metrics.AvailabilitySweeps.Add(1)

	if m.audit != nil {
		if err := m.audit.InsertSweepRun(ctx, runID, monitorAvailability, startedAt); err != nil {
			availLog.Warnf("记录扫描审计失败: %v", err)
		}
	}

	users, err := m.users.ListMonitoredUsers(ctx)
	if err != nil {
		availLog.Errorf("查询监控用户列表失败: %v", err)
		metrics.SweepErrors.Add(1)
		return
	}
	availLog.Debugf("[%s] 本轮检查 %d 个用户", shortRunID(runID), len(users))

	errCount := 0
	processed := 0
	for i, user := range users {
		// 取消信号在实体之间检查：处理完当前用户即退出，不中断进行中的请求
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !m.interEntityPause(ctx) {
			break
		}

		processed++
		if err := m.checkUserAvailability(ctx, user); err != nil {
			availLog.Errorf("检查用户 %d 可用性失败: %v", user.UserID, err)
			metrics.SweepErrors.Add(1)
			errCount++
		}
	}

	if m.audit != nil {
		if err := m.audit.FinishSweepRun(ctx, runID, processed, errCount); err != nil {
			availLog.Warnf("完成扫描审计失败: %v", err)
		}
	}
}

// checkUserAvailability 检查单个用户的库存可用性
func (m *MonitorService) checkUserAvailability(ctx context.Context, user *domain.User) error {
	// 持有活跃订单的用户跳过通知，避免重复租号
	activeOrders, err := m.orders.ListActiveOrdersForUser(ctx, user.UserID)
	if err != nil {
		return err
	}
	if len(activeOrders) > 0 {
		availLog.Debugf("用户 %d 有活跃订单，跳过可用性通知", user.UserID)
		return nil
	}

	apiKey, ok, err := m.creds.GetCredential(user.UserID)
	if err != nil {
		return err
	}
	if !ok {
		availLog.Warnf("用户 %d 缺少 API 凭证，本轮跳过", user.UserID)
		return nil
	}

	stock, err := m.inventory.CheckStock(ctx, apiKey)
	if err != nil {
		return err
	}

	now := time.Now()

	if !stock.Available || stock.Count == 0 {
		// 库存归零：窗口关闭，复位通知标记，下个窗口重新通知
		return m.users.UpdateMonitoringCursor(ctx, user.UserID, now, false)
	}

	cursor, err := m.users.GetMonitoringCursor(ctx, user.UserID)
	if err != nil {
		return err
	}
	if cursor.NotificationSent {
		// 本窗口已通知过，只推进检查时间
		return m.users.UpdateMonitoringCursor(ctx, user.UserID, now, true)
	}

	text, actions := availabilityMessage(stock.Count, stock.Price, m.opts.ServiceName)
	if err := m.notifier.Send(ctx, user.UserID, text, actions); err != nil {
		// 用户不可达不算致命错误，也不重试；标记照常置位，保证窗口内至多一次
		availLog.Warnf("向用户 %d 发送可用性通知失败: %v", user.UserID, err)
		metrics.NotificationErrors.Add(1)
	} else {
		availLog.Infof("📢 已向用户 %d 发送可用性通知 (count=%d, price=$%s)", user.UserID, stock.Count, stock.Price.StringFixed(2))
		metrics.NotificationsSent.Add(1)
	}

	return m.users.UpdateMonitoringCursor(ctx, user.UserID, now, true)
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
