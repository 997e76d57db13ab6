package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smsbot/gosms/pkg/syncgroup"
)

var monitorLog = logrus.WithField("component", "monitor")

const (
	monitorAvailability = "availability"
	monitorLifecycle    = "lifecycle"
)

// MonitorOptions 监控服务配置
type MonitorOptions struct {
	SweepInterval  time.Duration // 扫描间隔，默认 30s（两个循环各自独立计时）
	PerEntityDelay time.Duration // 同一轮扫描中实体间延迟，默认 1s（上游限流礼让，非正确性要求）
	ServiceName    string        // 目标服务展示名称（通知文案用）
}

func (o *MonitorOptions) applyDefaults() {
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.PerEntityDelay < 0 {
		o.PerEntityDelay = 0
	}
	if o.ServiceName == "" {
		o.ServiceName = "Pokemon Center"
	}
}

// MonitorService 后台订单生命周期监控服务
// 显式构造一次、随处引用，不使用包级全局实例。
// 持有两个循环：可用性监控（每个连续可用窗口恰好通知一次）与
// 订单生命周期监控（收码转完成、过期转退款/人工）
type MonitorService struct {
	inventory InventoryClient
	orders    OrderStore
	users     UserStore
	creds     CredentialSource
	notifier  Notifier
	audit     SweepAudit // 可为 nil（测试或未启用审计时）
	opts      MonitorOptions

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	loops   *syncgroup.SyncGroup

	closeInventoryOnce sync.Once
}

// NewMonitorService 创建监控服务
func NewMonitorService(
	inventory InventoryClient,
	orders OrderStore,
	users UserStore,
	creds CredentialSource,
	notifier Notifier,
	audit SweepAudit,
	opts MonitorOptions,
) *MonitorService {
	opts.applyDefaults()
	return &MonitorService{
		inventory: inventory,
		orders:    orders,
		users:     users,
		creds:     creds,
		notifier:  notifier,
		audit:     audit,
		opts:      opts,
		loops:     syncgroup.NewSyncGroup(),
	}
}

// Start 启动两个监控循环
// 重复调用只记录告警，不报错
func (m *MonitorService) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		monitorLog.Warn("监控服务已在运行，忽略重复启动")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	monitorLog.Info("🔄 启动后台监控服务...")

	m.loops.Add(func() { m.availabilityLoop(runCtx) })
	m.loops.Add(func() { m.lifecycleLoop(runCtx) })
	m.loops.Run()

	monitorLog.Info("✅ 后台监控服务已启动")
}

// Stop 停止监控：通知两个循环在处理完当前实体后退出，等待退出完成后
// 再关闭共享的远程客户端连接。重复调用是幂等的
func (m *MonitorService) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.loops.WaitAndClear()

	// 两个循环都退出后才释放共享连接，且只释放一次
	m.closeInventoryOnce.Do(func() {
		m.inventory.Close()
	})

	monitorLog.Info("🛑 后台监控服务已停止")
}

// IsRunning 返回监控是否在运行
func (m *MonitorService) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Audit 返回扫描审计存储（管理接口用，可能为 nil）
func (m *MonitorService) Audit() SweepAudit {
	return m.audit
}

// interEntityPause 同一轮扫描中实体间的限流延迟，可被取消打断
// 返回 false 表示已收到停止信号
func (m *MonitorService) interEntityPause(ctx context.Context) bool {
	if m.opts.PerEntityDelay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.opts.PerEntityDelay):
		return true
	}
}

// sleepUntilNextSweep 等待下一轮扫描
func (m *MonitorService) sleepUntilNextSweep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.opts.SweepInterval):
		return true
	}
}
