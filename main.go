package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"quant-center/collector"
	"quant-center/config"
	"quant-center/core/n_pattern"
	"quant-center/fetcher"
	"quant-center/output_formatter"
	"quant-center/storage"
)

var (
	dataMode    = flag.Bool("data", false, "行情增量更新")
	fullMode    = flag.Bool("full", false, "行情全量更新 (需 -start)")
	financeMode = flag.Bool("finance", false, "财务增量更新")
	financeFull = flag.Bool("finance-full", false, "财务全量更新 (需 -start)")
	selectMode  = flag.Bool("select", false, "只跑选股")
	startStr    = flag.String("start", "", "起始日期 YYYYMMDD")
	endStr      = flag.String("end", "", "结束日期 YYYYMMDD，默认今天")
	configPath  = flag.String("config", "", "配置文件路径，默认 ./config.yaml")
)

func main() {
	fmt.Println(`
   ___  _   _   _    _   _ _____  ____ _____ _   _ _____ _____ ____
  / _ \| | | | / \  | \ | |_   _|/ ___| ____| \ | |_   _| ____|  _ \
 | | | | | | |/ _ \ |  \| | | | | |   |  _| |  \| | | | |  _| | |_) |
 | |_| | |_| / ___ \| |\  | | | | |___| |___| |\  | | | | |___|  _ <
  \__\_\\___/_/   \_\_| \_| |_|  \____|_____|_| \_| |_| |_____|_| \_\
  数据中心 + N字反包选股
	`)

	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("⚠️ 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := fetcher.NewHTTPGateway(cfg.Gateway.BaseURL, time.Duration(cfg.Gateway.TimeoutSec)*time.Second)
	runner := collector.NewRunner(gw, cfg, log)

	// 默认流程：数据更新 -> 选股 (收盘后每日任务)
	runData := *dataMode || *fullMode || (!*financeMode && !*financeFull && !*selectMode)
	runSelect := *selectMode || (!*dataMode && !*fullMode && !*financeMode && !*financeFull)

	if runData {
		codes, err := gw.StockList(ctx, cfg.Gateway.Sector)
		if err != nil {
			fmt.Printf("❌ 获取股票列表失败: %v\n", err)
			os.Exit(1)
		}
		if *fullMode {
			_, err = runner.RunPriceFull(ctx, codes, *startStr, *endStr)
		} else {
			_, err = runner.RunPriceIncremental(ctx, codes)
		}
		if fatal(err) {
			os.Exit(1)
		}
	}

	if *financeMode || *financeFull {
		codes, err := gw.StockList(ctx, cfg.Gateway.Sector)
		if err != nil {
			fmt.Printf("❌ 获取股票列表失败: %v\n", err)
			os.Exit(1)
		}
		if _, err := runner.RunFinance(ctx, codes, *startStr, *endStr, *financeFull); fatal(err) {
			os.Exit(1)
		}
	}

	if runSelect {
		duck, err := storage.NewDuckDB("")
		if err != nil {
			fmt.Printf("❌ DuckDB 初始化失败: %v\n", err)
			os.Exit(1)
		}
		defer duck.Close()

		sel := n_pattern.NewSelector(
			duck,
			cfg.MarketDataDir,
			filepath.Join(cfg.BasicInfoDir, "stock.csv"),
			cfg.PoolDir,
			cfg.Workers,
			log,
		)
		recs, err := sel.Run(ctx, time.Now().Format("20060102"))
		if err != nil {
			fmt.Printf("❌ 选股失败: %v\n", err)
			os.Exit(1)
		}
		output_formatter.PrintSelectionTable(recs)
	}
}

// fatal 前置条件错误直接退出并提示；其余错误已在批次内消化
func fatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, collector.ErrMissingStart) {
		fmt.Printf("❌ %v\n", err)
		return true
	}
	fmt.Printf("⚠️ 批次提前结束: %v\n", err)
	return false
}
