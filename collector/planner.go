package collector

import (
	"time"

	"quant-center/storage"
)

// 刷新计划：决定每只股票还缺哪段数据。
// 行情按"相同起始日"分组，一个批次只发一次网关请求。

const dateLayout = "20060102"

type PricePlan struct {
	Groups  map[string][]string // 起始日 YYYYMMDD -> 代码列表
	End     string              // 统一结束日 (今天)
	Skipped int                 // 已是最新、无需更新
}

// PlanPriceRefresh 逐只检查本地最后时间戳：
//   - 无本地文件 -> 回补最近 backfillDays 天
//   - 有数据 -> 从 最后一天+1 开始；超过今天则跳过
//
// 读不动的文件当作无数据处理，让本次全量重建它。
func PlanPriceRefresh(store *storage.BarStore, codes []string, today time.Time, backfillDays int) PricePlan {
	plan := PricePlan{
		Groups: map[string][]string{},
		End:    today.Format(dateLayout),
	}
	backfillStart := today.AddDate(0, 0, -backfillDays).Format(dateLayout)

	for _, code := range codes {
		last, ok, err := store.LastTimestamp(code)
		start := backfillStart
		if err == nil && ok {
			next := truncateDay(last).AddDate(0, 0, 1)
			if next.After(today) {
				plan.Skipped++
				continue
			}
			start = next.Format(dateLayout)
		}
		plan.Groups[start] = append(plan.Groups[start], code)
	}
	return plan
}

// PlanFinanceRefresh 本地最新公告日距目标结束日不超过 toleranceDays 的跳过，
// 其余进下载队列。full 模式全部重来。
func PlanFinanceRefresh(store *storage.FinanceStore, codes []string, targetEnd time.Time, toleranceDays int, full bool) []string {
	if full {
		return codes
	}
	var out []string
	threshold := targetEnd.AddDate(0, 0, -toleranceDays)
	for _, code := range codes {
		last, ok, err := store.LastAnnDate(code)
		if err != nil || !ok || last.Before(threshold) {
			out = append(out, code)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
