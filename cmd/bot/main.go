package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smsbot/gosms/internal/controlplane/server"
	"github.com/smsbot/gosms/internal/metrics"
	"github.com/smsbot/gosms/internal/services"
	"github.com/smsbot/gosms/internal/store"
	"github.com/smsbot/gosms/pkg/config"
	"github.com/smsbot/gosms/pkg/logger"
	"github.com/smsbot/gosms/pkg/secretstore"
	"github.com/smsbot/gosms/pkg/shutdown"
	"github.com/smsbot/gosms/smspool/client"
)

// loggingNotifier 默认通知实现：只写日志
// 真实的聊天发送端（Telegram 等）是外部协作者，接入时替换这里即可
type loggingNotifier struct{}

func (loggingNotifier) Send(_ context.Context, userID int64, text string, actions []services.Action) error {
	logger.Infof("📨 通知用户 %d (%d 个动作):\n%s", userID, len(actions), text)
	return nil
}

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	flag.Parse()

	// .env 不存在不算错误
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	logger.Info("🤖 gosms 启动中...")

	// 关系库（订单/用户/游标/审计）
	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Errorf("打开数据库失败: %v", err)
		os.Exit(1)
	}

	// 凭证库（API key 加密存放）
	encKey, err := secretstore.ParseKey(cfg.Store.SecretKeyBase)
	if err != nil {
		logger.Errorf("解析凭证库密钥失败: %v", err)
		os.Exit(1)
	}
	if encKey == nil {
		logger.Warn("⚠️ 未配置凭证库加密密钥，API key 将明文落盘")
	}
	secrets, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Store.SecretDir,
		EncryptionKey: encKey,
	})
	if err != nil {
		logger.Errorf("打开凭证库失败: %v", err)
		os.Exit(1)
	}

	inventory := client.NewClient(client.Options{
		BaseURL:        cfg.SMSPool.BaseURL,
		TargetCountry:  cfg.SMSPool.TargetCountry,
		TargetService:  cfg.SMSPool.TargetService,
		RequestTimeout: time.Duration(cfg.SMSPool.RequestTimeout) * time.Second,
	})

	notifier := loggingNotifier{}

	monitor := services.NewMonitorService(inventory, st, st, secrets, notifier, st, services.MonitorOptions{
		SweepInterval:  time.Duration(cfg.Monitor.SweepInterval) * time.Second,
		PerEntityDelay: time.Duration(cfg.Monitor.PerEntityDelay) * time.Millisecond,
		ServiceName:    cfg.SMSPool.ServiceName,
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	monitor.Start(rootCtx)

	// 管理接口（可选）
	if cfg.AdminListen != "" {
		admin := server.New(st, monitor)
		if _, err := admin.StartAsync(rootCtx, cfg.AdminListen); err != nil {
			logger.Errorf("启动管理接口失败: %v", err)
		}
	}

	// expvar/pprof 调试接口（可选）
	if cfg.DebugListen != "" {
		if _, err := metrics.StartAsync(rootCtx, cfg.DebugListen); err != nil {
			logger.Errorf("启动调试接口失败: %v", err)
		}
	}

	// 监控先停（等当前实体处理完），存储最后关，顺序不能反
	shutdownManager := shutdown.NewManager()
	shutdownManager.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		monitor.Stop()
		if err := st.Close(); err != nil {
			logger.Errorf("关闭数据库失败: %v", err)
		}
		if err := secrets.Close(); err != nil {
			logger.Errorf("关闭凭证库失败: %v", err)
		}
	})

	logger.Infof("✅ gosms 已就绪 (sweep=%ds, ttl=%ds, target=%s/%s)",
		cfg.Monitor.SweepInterval, cfg.Monitor.OrderTTL, cfg.SMSPool.TargetCountry, cfg.SMSPool.TargetService)

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("收到信号 %v，开始优雅关闭...", sig)

	rootCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	shutdownManager.Shutdown(shutdownCtx)

	logger.Info("👋 gosms 已退出")
}
