package n_pattern

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quant-center/model"
	"quant-center/output_formatter"
	"quant-center/storage"
)

// N字反包选股：涨停后 1~3 天缩量回调、不破涨停日开盘价的断板股。

const (
	StrategyName = "n_pattern_rebound"

	// 涨停判定容差，吸收分价四舍五入
	limitEps = 0.01
	// 形态最深看到 day10 (1板3调的排除窗口)，不足则整只跳过
	minBars = 11
)

// 形态标签，互斥，按顺序先中先得
const (
	pattern1Up1Pull = "1板1调"
	pattern1Up2Pull = "1板2调"
	pattern1Up3Pull = "1板3调"
)

type Selector struct {
	duck      *storage.DuckDB
	MarketDir string
	InfoPath  string // stock.csv
	PoolDir   string
	Workers   int
	log       zerolog.Logger
}

func NewSelector(duck *storage.DuckDB, marketDir, infoPath, poolDir string, workers int, log zerolog.Logger) *Selector {
	if workers <= 0 {
		workers = 8
	}
	return &Selector{
		duck:      duck,
		MarketDir: marketDir,
		InfoPath:  infoPath,
		PoolDir:   poolDir,
		Workers:   workers,
		log:       log,
	}
}

// Run 扫描全部本地行情，落一份当日快照 CSV，返回入选记录。
func (s *Selector) Run(ctx context.Context, dateStr string) ([]model.SelectionRecord, error) {
	fmt.Printf(">>> [Strategy] 启动 %s ...\n", StrategyName)

	meta, err := LoadStockMetadata(s.InfoPath)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		fmt.Println("⚠️ 找不到 stock.csv，白名单过滤关闭")
	}

	files, err := filepath.Glob(filepath.Join(s.MarketDir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	fmt.Printf("📋 扫描行情文件数: %d\n", len(files))

	var (
		mu       sync.Mutex
		selected []model.SelectionRecord
		skipped  int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		path := path
		code := strings.TrimSuffix(filepath.Base(path), ".parquet")
		if len(code) < 6 {
			continue
		}
		codeKey := code[:6]

		// [过滤 1] 板块：主板 60/00 + 创业板 30
		if !eligibleBoard(codeKey) {
			continue
		}
		// [过滤 2] 白名单：在表里且非 ST/停牌
		if meta != nil {
			m, ok := meta[codeKey]
			if !ok || m.Special {
				continue
			}
		}

		g.Go(func() error {
			rows, err := s.duck.ScanPriceSeries(path)
			if err != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				s.log.Warn().Err(err).Str("code", code).Msg("读取行情失败，跳过")
				return nil
			}
			rec, ok := evaluate(rows)
			if !ok {
				return nil
			}
			rec.CodeKey = codeKey
			rec.Code = code
			if meta != nil {
				m := meta[codeKey]
				rec.Symbol, rec.Sector, rec.Industry = m.Symbol, m.Sector, m.Industry
			}
			mu.Lock()
			selected = append(selected, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		fmt.Printf("[%s] ⚠️ 今日无符合条件股票\n", StrategyName)
		return nil, nil
	}

	// 行业 + 形态排序，方便人工过目
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Sector != selected[j].Sector {
			return selected[i].Sector < selected[j].Sector
		}
		if selected[i].Pattern != selected[j].Pattern {
			return selected[i].Pattern < selected[j].Pattern
		}
		return selected[i].CodeKey < selected[j].CodeKey
	})

	outDir := filepath.Join(s.PoolDir, StrategyName)
	path, err := output_formatter.SaveSelectionCSV(outDir, StrategyName, dateStr, selected)
	if err != nil {
		return selected, err
	}
	fmt.Printf("✅ [%s] 结果已保存: %s (入选 %d, 跳过 %d)\n", StrategyName, path, len(selected), skipped)
	return selected, nil
}

func eligibleBoard(codeKey string) bool {
	return strings.HasPrefix(codeKey, "60") ||
		strings.HasPrefix(codeKey, "00") ||
		strings.HasPrefix(codeKey, "30")
}

func isLimit(r storage.PriceRow) bool {
	return !math.IsNaN(r.LimitUp) && math.Abs(r.Close-r.LimitUp) < limitEps
}

// evaluate 对一条升序序列跑形态状态机。
// day0 = 最新一根，dayN = 往前数第 N 根。
func evaluate(rows []storage.PriceRow) (model.SelectionRecord, bool) {
	n := len(rows)
	if n < minBars {
		return model.SelectionRecord{}, false
	}
	day := func(i int) storage.PriceRow { return rows[n-1-i] }

	// 闭区间 [from..to] 内的涨停天数
	limitCount := func(from, to int) int {
		c := 0
		for i := from; i <= to; i++ {
			if isLimit(day(i)) {
				c++
			}
		}
		return c
	}

	var pattern string
	switch {
	// 1板1调: 昨天板、今天断，收盘不低于涨停日开盘；[day8..day2] 涨停数 <2 排妖股
	case isLimit(day(1)) && !isLimit(day(0)) &&
		day(0).Close >= day(1).Open && limitCount(2, 8) < 2:
		pattern = pattern1Up1Pull

	// 1板2调
	case isLimit(day(2)) && !isLimit(day(1)) && !isLimit(day(0)) &&
		day(0).Close >= day(2).Open && limitCount(3, 9) < 2:
		pattern = pattern1Up2Pull

	// 1板3调
	case isLimit(day(3)) && !isLimit(day(2)) && !isLimit(day(1)) && !isLimit(day(0)) &&
		day(0).Close >= day(3).Open && limitCount(4, 10) < 2:
		pattern = pattern1Up3Pull

	default:
		return model.SelectionRecord{}, false
	}

	// 量比 = 当日量 / 前5日均量
	var sum float64
	for i := 1; i <= 5; i++ {
		sum += day(i).Volume
	}
	volRatio := 0.0
	if mean := sum / 5; mean > 0 {
		volRatio = math.Round(day(0).Volume/mean*100) / 100
	}

	return model.SelectionRecord{
		Close:      day(0).Close,
		VolRatio:   volRatio,
		Pattern:    pattern,
		SelectDate: day(0).DateTime.Format("2006-01-02"),
	}, true
}
