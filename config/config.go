package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Data    DataConfig    `yaml:"data"`
	Update  UpdateConfig  `yaml:"update"`
	Workers int           `yaml:"workers"`

	// 以下路径由 Data.Root 推导
	MarketDataDir string // 日线 Parquet: <root>/market_data/stock_daily
	FinanceDir    string // 财务 Parquet: <root>/financial_data
	BasicInfoDir  string // 静态基础信息 (stock.csv)
	PoolDir       string // 选股结果 pool_storage
}

type GatewayConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Sector     string `yaml:"sector"` // 股票池板块名，默认 沪深A股
}

type DataConfig struct {
	Root string `yaml:"root"`
}

type UpdateConfig struct {
	BackfillDays         int `yaml:"backfill_days"`          // 本地无数据时默认回补窗口
	FinanceToleranceDays int `yaml:"finance_tolerance_days"` // 公告日新鲜度容忍
	FinanceLookbackDays  int `yaml:"finance_lookback_days"`  // 增量财务默认回看
	DownloadBatchSize    int `yaml:"download_batch_size"`
}

// InitDir 确保目录存在且确实是目录
func InitDir(path string) error {
	cleanPath := filepath.Clean(path)

	if fi, err := os.Stat(cleanPath); err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("%s 已存在但不是目录", cleanPath)
		}
		return nil
	}

	if err := os.MkdirAll(cleanPath, 0755); err != nil {
		return fmt.Errorf("无法创建目录 %s: %w", cleanPath, err)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = "config.yaml"
	}
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		if derr := yaml.NewDecoder(f).Decode(&cfg); derr != nil {
			return nil, fmt.Errorf("解析 %s 失败: %w", path, derr)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// 配置文件缺失时全部走默认值，方便直接跑通

	cfg.fillDefaults()

	// 数据目录落地
	cfg.MarketDataDir = filepath.Join(cfg.Data.Root, "market_data", "stock_daily")
	cfg.FinanceDir = filepath.Join(cfg.Data.Root, "financial_data")
	cfg.BasicInfoDir = filepath.Join(cfg.Data.Root, "basic_info")
	cfg.PoolDir = filepath.Join(cfg.Data.Root, "pool_storage")

	for _, d := range []string{cfg.MarketDataDir, cfg.FinanceDir, cfg.BasicInfoDir, cfg.PoolDir} {
		if err := InitDir(d); err != nil {
			return &cfg, err
		}
	}
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = os.Getenv("QMT_GATEWAY_URL")
	}
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "http://127.0.0.1:18080"
	}
	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = 30
	}
	if c.Gateway.Sector == "" {
		c.Gateway.Sector = "沪深A股"
	}
	if c.Data.Root == "" {
		c.Data.Root = filepath.Join(".", "data_center", "storage")
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Update.BackfillDays <= 0 {
		c.Update.BackfillDays = 365
	}
	if c.Update.FinanceToleranceDays <= 0 {
		c.Update.FinanceToleranceDays = 5
	}
	if c.Update.FinanceLookbackDays <= 0 {
		c.Update.FinanceLookbackDays = 365 * 3
	}
	if c.Update.DownloadBatchSize <= 0 {
		c.Update.DownloadBatchSize = 50
	}
}

// Today 取"今天"的零点边界，刷新计划统一用它比较日期
func Today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
