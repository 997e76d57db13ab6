package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.SMSPool.TargetCountry != "157" || cfg.SMSPool.TargetService != "1552" {
		t.Fatalf("默认目标对错误: %s/%s", cfg.SMSPool.TargetCountry, cfg.SMSPool.TargetService)
	}
	if cfg.Monitor.SweepInterval != 30 {
		t.Fatalf("默认扫描间隔错误: %d", cfg.Monitor.SweepInterval)
	}
	if cfg.Monitor.OrderTTL != 600 {
		t.Fatalf("默认订单有效期错误: %d", cfg.Monitor.OrderTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
smspool:
  base_url: "https://example.test"
  target_country: "157"
  target_service: "1552"
  request_timeout: 15
monitor:
  sweep_interval: 10
  order_ttl: 300
admin_listen: "127.0.0.1:8080"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.SMSPool.BaseURL != "https://example.test" {
		t.Fatalf("base_url 错误: %s", cfg.SMSPool.BaseURL)
	}
	if cfg.Monitor.SweepInterval != 10 || cfg.Monitor.OrderTTL != 300 {
		t.Fatalf("监控配置错误: %+v", cfg.Monitor)
	}
	if cfg.AdminListen != "127.0.0.1:8080" {
		t.Fatalf("admin_listen 错误: %s", cfg.AdminListen)
	}
	// 未出现的字段保持默认值
	if cfg.SMSPool.TargetCountry != "157" {
		t.Fatalf("缺省字段应保持默认: %s", cfg.SMSPool.TargetCountry)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SMSPOOL_API_BASE", "https://override.test")
	t.Setenv("MONITORING_INTERVAL", "45")
	t.Setenv("SMS_TIMEOUT", "900")
	t.Setenv("DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.SMSPool.BaseURL != "https://override.test" {
		t.Fatalf("环境变量应覆盖 base_url: %s", cfg.SMSPool.BaseURL)
	}
	if cfg.Monitor.SweepInterval != 45 {
		t.Fatalf("环境变量应覆盖扫描间隔: %d", cfg.Monitor.SweepInterval)
	}
	if cfg.Monitor.OrderTTL != 900 {
		t.Fatalf("环境变量应覆盖订单有效期: %d", cfg.Monitor.OrderTTL)
	}
	if cfg.Store.DBPath != "/tmp/override.db" {
		t.Fatalf("环境变量应覆盖数据库路径: %s", cfg.Store.DBPath)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	bad := `
smspool:
  base_url: ""
`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("空 base_url 应被拒绝")
	}

	unknown := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(unknown, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	if _, err := Load(unknown); err == nil {
		t.Fatal("不支持的格式应被拒绝")
	}
}
