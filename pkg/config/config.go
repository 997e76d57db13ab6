package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SMSPoolConfig 远程号码池服务配置
type SMSPoolConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`               // API 基础地址
	TargetCountry  string `yaml:"target_country" json:"target_country"`   // 目标国家 ID（固定，例如日本 157）
	TargetService  string `yaml:"target_service" json:"target_service"`   // 目标服务 ID（固定，例如 1552）
	ServiceName    string `yaml:"service_name" json:"service_name"`       // 服务展示名称
	RequestTimeout int    `yaml:"request_timeout" json:"request_timeout"` // 单次请求超时（秒），默认 30
}

// MonitorConfig 后台监控配置
type MonitorConfig struct {
	SweepInterval  int `yaml:"sweep_interval" json:"sweep_interval"`     // 扫描间隔（秒），默认 30
	OrderTTL       int `yaml:"order_ttl" json:"order_ttl"`               // 默认订单有效期（秒），默认 600
	PerEntityDelay int `yaml:"per_entity_delay" json:"per_entity_delay"` // 同一轮扫描中实体间延迟（毫秒），默认 1000
}

// StoreConfig 存储配置
type StoreConfig struct {
	DBPath        string `yaml:"db_path" json:"db_path"`                 // sqlite 数据库路径
	SecretDir     string `yaml:"secret_dir" json:"secret_dir"`           // badger 凭证库目录
	SecretKeyBase string `yaml:"secret_key_base" json:"secret_key_base"` // badger 加密密钥（hex/base64，32字节；空则不加密）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	OutputFile string `yaml:"output_file" json:"output_file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Config 应用配置
type Config struct {
	SMSPool     SMSPoolConfig `yaml:"smspool" json:"smspool"`
	Monitor     MonitorConfig `yaml:"monitor" json:"monitor"`
	Store       StoreConfig   `yaml:"store" json:"store"`
	Log         LogConfig     `yaml:"log" json:"log"`
	AdminListen string        `yaml:"admin_listen" json:"admin_listen"` // 管理接口监听地址（空则不启动）
	DebugListen string        `yaml:"debug_listen" json:"debug_listen"` // expvar/pprof 监听地址（空则不启动）
}

var globalConfig *Config
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		globalConfig = Default()
	}
	return globalConfig
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		SMSPool: SMSPoolConfig{
			BaseURL:        "https://api.smspool.net",
			TargetCountry:  "157",  // 日本
			TargetService:  "1552", // Pokemon Center
			ServiceName:    "Pokemon Center",
			RequestTimeout: 30,
		},
		Monitor: MonitorConfig{
			SweepInterval:  30,
			OrderTTL:       600,
			PerEntityDelay: 1000,
		},
		Store: StoreConfig{
			DBPath:    "data/bot.db",
			SecretDir: "data/secrets",
		},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/bot.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 从文件加载配置（支持 .yaml/.yml/.json），并应用环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析 YAML 配置失败: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析 JSON 配置失败: %w", err)
			}
		default:
			return nil, fmt.Errorf("不支持的配置文件格式: %s", path)
		}
		configFilePath = path
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖（与原始部署保持一致的变量名）
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SMSPOOL_API_BASE"); v != "" {
		cfg.SMSPool.BaseURL = v
	}
	if v := os.Getenv("MONITORING_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Monitor.SweepInterval = n
		}
	}
	if v := os.Getenv("SMS_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Monitor.OrderTTL = n
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("SECRET_DIR"); v != "" {
		cfg.Store.SecretDir = v
	}
	if v := os.Getenv("SECRET_KEY_BASE"); v != "" {
		cfg.Store.SecretKeyBase = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.OutputFile = v
	}
	if v := os.Getenv("ADMIN_LISTEN"); v != "" {
		cfg.AdminListen = v
	}
	if v := os.Getenv("DEBUG_LISTEN"); v != "" {
		cfg.DebugListen = v
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SMSPool.BaseURL) == "" {
		return fmt.Errorf("smspool.base_url 不能为空")
	}
	if strings.TrimSpace(c.SMSPool.TargetCountry) == "" || strings.TrimSpace(c.SMSPool.TargetService) == "" {
		return fmt.Errorf("smspool.target_country/target_service 不能为空")
	}
	if c.SMSPool.RequestTimeout <= 0 {
		return fmt.Errorf("smspool.request_timeout 必须大于 0")
	}
	if c.Monitor.SweepInterval <= 0 {
		return fmt.Errorf("monitor.sweep_interval 必须大于 0")
	}
	if c.Monitor.OrderTTL <= 0 {
		return fmt.Errorf("monitor.order_ttl 必须大于 0")
	}
	if c.Monitor.PerEntityDelay < 0 {
		return fmt.Errorf("monitor.per_entity_delay 不能为负数")
	}
	if strings.TrimSpace(c.Store.DBPath) == "" {
		return fmt.Errorf("store.db_path 不能为空")
	}
	return nil
}
