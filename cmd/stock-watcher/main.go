package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smsbot/gosms/pkg/config"
	"github.com/smsbot/gosms/pkg/logger"
	"github.com/smsbot/gosms/smspool/client"
)

// stock-watcher 库存观察工具
// 按固定间隔轮询目标国家/服务的库存与单价并打印，便于肉眼盯货
func main() {
	configPath := flag.String("config", "", "配置文件路径")
	apiKey := flag.String("key", "", "号码池 API key（默认读 SMSPOOL_API_KEY）")
	interval := flag.Duration("interval", 30*time.Second, "轮询间隔")
	once := flag.Bool("once", false, "只查询一次后退出")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitDefault(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("SMSPOOL_API_KEY")
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "缺少 API key：请用 -key 或环境变量 SMSPOOL_API_KEY 提供")
		os.Exit(1)
	}

	c := client.NewClient(client.Options{
		BaseURL:        cfg.SMSPool.BaseURL,
		TargetCountry:  cfg.SMSPool.TargetCountry,
		TargetService:  cfg.SMSPool.TargetService,
		RequestTimeout: time.Duration(cfg.SMSPool.RequestTimeout) * time.Second,
	})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Infof("🔍 开始观察库存 (country=%s, service=%s, interval=%v)",
		cfg.SMSPool.TargetCountry, cfg.SMSPool.TargetService, *interval)

	probe(ctx, c, key)
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("👋 stock-watcher 退出")
			return
		case <-ticker.C:
			probe(ctx, c, key)
		}
	}
}

// probe 查询一次库存并打印结果，出错只记日志不退出
func probe(ctx context.Context, c *client.Client, key string) {
	stock, err := c.CheckStock(ctx, key)
	if err != nil {
		logger.Errorf("❌ 查询库存失败: %v", err)
		return
	}

	if stock.Count <= 0 {
		logger.Info("📭 当前无货")
		return
	}

	if stock.Price.IsZero() {
		logger.Infof("📱 有货: %d 个（单价未知）", stock.Count)
		return
	}
	logger.Infof("📱 有货: %d 个，单价 $%s", stock.Count, stock.Price.StringFixed(2))
}
