package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quant-center/config"
	"quant-center/data_processor"
	"quant-center/fetcher"
	"quant-center/storage"
)

// Runner 把 计划 -> 下载 -> 清洗合并 -> 落盘 串起来。
// 单只股票失败只计数不中断批次；worker 数有上限，照顾网关限速。

// ErrMissingStart 全量模式必须显式给起始日，属于前置条件错误，开工前就拦下
var ErrMissingStart = errors.New("全量更新必须指定 -start")

type Runner struct {
	gw      fetcher.Gateway
	bars    *storage.BarStore
	fin     *storage.FinanceStore
	kline   *data_processor.KlineEngine
	finance *data_processor.FinanceEngine
	cfg     *config.Config
	log     zerolog.Logger
}

func NewRunner(gw fetcher.Gateway, cfg *config.Config, log zerolog.Logger) *Runner {
	bars := storage.NewBarStore(cfg.MarketDataDir)
	fin := storage.NewFinanceStore(cfg.FinanceDir)
	return &Runner{
		gw:      gw,
		bars:    bars,
		fin:     fin,
		kline:   data_processor.NewKlineEngine(bars, log),
		finance: data_processor.NewFinanceEngine(fin, log),
		cfg:     cfg,
		log:     log,
	}
}

type BatchStats struct {
	Attempted int64
	Succeeded int64
	Failed    int64
}

func (s *BatchStats) String() string {
	return fmt.Sprintf("尝试 %d / 成功 %d / 失败 %d", s.Attempted, s.Succeeded, s.Failed)
}

// RunPriceFull 全量覆盖。start 必填。
func (r *Runner) RunPriceFull(ctx context.Context, codes []string, start, end string) (*BatchStats, error) {
	if start == "" {
		return nil, ErrMissingStart
	}
	if end == "" {
		end = config.Today().Format(dateLayout)
	}
	fmt.Printf("🚀 [模式: 全量更新] 范围: %s ~ %s, 数量: %d\n", start, end, len(codes))
	stats := &BatchStats{}
	err := r.priceBatch(ctx, codes, start, end, data_processor.ModeOverwrite, stats)
	r.summary("行情全量", stats)
	return stats, err
}

// RunPriceIncremental 增量：缺口检测 + 按起始日分组批量拉取
func (r *Runner) RunPriceIncremental(ctx context.Context, codes []string) (*BatchStats, error) {
	fmt.Println("🚀 [模式: 增量更新] 正在检查本地数据状态...")
	plan := PlanPriceRefresh(r.bars, codes, config.Today(), r.cfg.Update.BackfillDays)

	if len(plan.Groups) == 0 {
		fmt.Println("✨ 所有数据已是最新，无需更新。")
		return &BatchStats{}, nil
	}
	fmt.Printf("📋 检测完毕，分为 %d 个时间批次 (跳过 %d 只)\n", len(plan.Groups), plan.Skipped)

	stats := &BatchStats{}
	for start, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			break
		}
		fmt.Printf("   >> 批次 %s ~ %s: %d 只\n", start, plan.End, len(group))
		if err := r.priceBatch(ctx, group, start, plan.End, data_processor.ModeAppend, stats); err != nil {
			return stats, err
		}
	}
	r.summary("行情增量", stats)
	return stats, nil
}

// priceBatch 一个时间批次：触发下载一次、取数一次，然后逐股并行合并
func (r *Runner) priceBatch(ctx context.Context, codes []string, start, end string, mode data_processor.Mode, stats *BatchStats) error {
	if err := r.gw.Download(ctx, codes, "1d", start, end); err != nil {
		// 下载触发失败不致命，取数时网关侧可能已有缓存
		r.log.Warn().Err(err).Msg("下载触发失败，继续尝试取数")
	}
	rowsByCode, err := r.gw.Kline(ctx, codes, start, end)
	if err != nil {
		return fmt.Errorf("批量取数失败 %s~%s: %w", start, end, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for code, rows := range rowsByCode {
		if ctx.Err() != nil {
			break // 停止派发，在途任务各自收尾
		}
		code, rows := code, rows
		if len(rows) == 0 {
			continue
		}
		atomic.AddInt64(&stats.Attempted, 1)
		g.Go(func() error {
			name := r.instrumentName(ctx, code)
			if err := r.kline.Ingest(code, name, rows, mode); err != nil {
				atomic.AddInt64(&stats.Failed, 1)
				r.log.Warn().Err(err).Str("code", code).Msg("处理失败")
				return nil // 失败隔离：不让单只股票打断批次
			}
			atomic.AddInt64(&stats.Succeeded, 1)
			return nil
		})
	}
	return g.Wait()
}

// RunFinance 财务更新。full=true 时 start 必填；增量默认回看 FinanceLookbackDays。
func (r *Runner) RunFinance(ctx context.Context, codes []string, start, end string, full bool) (*BatchStats, error) {
	if full && start == "" {
		return nil, ErrMissingStart
	}
	if end == "" {
		end = config.Today().Format(dateLayout)
	}
	targetEnd, err := time.ParseInLocation(dateLayout, end, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("结束日期非法 %q: %w", end, err)
	}

	fmt.Printf("💰 [Finance] 目标 %d 只\n", len(codes))
	targets := PlanFinanceRefresh(r.fin, codes, targetEnd, r.cfg.Update.FinanceToleranceDays, full)
	fmt.Printf("📋 需下载/更新: %d (跳过 %d)\n", len(targets), len(codes)-len(targets))
	if len(targets) == 0 {
		return &BatchStats{}, nil
	}

	dlStart := start
	if dlStart == "" {
		dlStart = config.Today().AddDate(0, 0, -r.cfg.Update.FinanceLookbackDays).Format(dateLayout)
	}
	var startFilter time.Time
	if start != "" {
		if startFilter, err = time.ParseInLocation(dateLayout, start, time.UTC); err != nil {
			return nil, fmt.Errorf("起始日期非法 %q: %w", start, err)
		}
	}
	mode := data_processor.ModeAppend
	if full {
		mode = data_processor.ModeOverwrite
	}

	stats := &BatchStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	batchSize := r.cfg.Update.DownloadBatchSize
	for i := 0; i < len(targets); i += batchSize {
		if ctx.Err() != nil {
			break
		}
		chunk := targets[i:min(i+batchSize, len(targets))]
		tablesByCode, err := r.gw.Financials(ctx, chunk, data_processor.FinanceTables, dlStart, end)
		if err != nil {
			r.log.Warn().Err(err).Int("batch", i/batchSize).Msg("财务批次取数失败，跳过该批")
			atomic.AddInt64(&stats.Failed, int64(len(chunk)))
			atomic.AddInt64(&stats.Attempted, int64(len(chunk)))
			continue
		}
		for code, tables := range tablesByCode {
			if gctx.Err() != nil {
				break
			}
			code, tables := code, tables
			atomic.AddInt64(&stats.Attempted, 1)
			g.Go(func() error {
				if err := r.finance.Ingest(code, tables, mode, startFilter); err != nil {
					atomic.AddInt64(&stats.Failed, 1)
					r.log.Warn().Err(err).Str("code", code).Msg("财务处理失败")
					return nil
				}
				atomic.AddInt64(&stats.Succeeded, 1)
				return nil
			})
		}
	}
	err = g.Wait()
	r.summary("财务", stats)
	return stats, err
}

func (r *Runner) instrumentName(ctx context.Context, code string) string {
	detail, err := r.gw.InstrumentDetail(ctx, code)
	if err != nil {
		r.log.Debug().Err(err).Str("code", code).Msg("取名称失败，ST 判断退化为主板")
		return ""
	}
	return detail.Name
}

func (r *Runner) summary(label string, stats *BatchStats) {
	fmt.Printf("✅ [%s] 批次处理完成: %s\n", label, stats)
	r.log.Info().
		Str("batch", label).
		Int64("attempted", stats.Attempted).
		Int64("succeeded", stats.Succeeded).
		Int64("failed", stats.Failed).
		Msg("batch done")
}
