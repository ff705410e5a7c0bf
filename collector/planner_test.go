package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-center/model"
	"quant-center/storage"
)

func day(s string) time.Time {
	d, _ := time.ParseInLocation("20060102", s, time.UTC)
	return d
}

func saveSeries(t *testing.T, store *storage.BarStore, code string, lastDay time.Time) {
	t.Helper()
	bars := []model.Bar{
		{DateTime: lastDay.AddDate(0, 0, -1).Add(8 * time.Hour), Code: code, Close: 10, AdjFactor: 1},
		{DateTime: lastDay.Add(8 * time.Hour), Code: code, Close: 11, AdjFactor: 1},
	}
	require.NoError(t, store.Save(code, bars))
}

func TestPlanPriceRefresh(t *testing.T) {
	store := storage.NewBarStore(t.TempDir())
	today := day("20230110")

	saveSeries(t, store, "600000.SH", day("20230109")) // 昨天 -> 从今天拉
	saveSeries(t, store, "600001.SH", day("20230110")) // 已是今天 -> 跳过
	saveSeries(t, store, "600002.SH", day("20230105")) // 缺口 -> 从 0106 拉
	// 600003 无本地文件 -> 回补窗口

	plan := PlanPriceRefresh(store, []string{"600000.SH", "600001.SH", "600002.SH", "600003.SH"}, today, 365)

	assert.Equal(t, "20230110", plan.End)
	assert.Equal(t, 1, plan.Skipped)
	assert.Equal(t, []string{"600000.SH"}, plan.Groups["20230110"])
	assert.Equal(t, []string{"600002.SH"}, plan.Groups["20230106"])
	assert.Equal(t, []string{"600003.SH"}, plan.Groups[today.AddDate(0, 0, -365).Format("20060102")])
	assert.Len(t, plan.Groups, 3)
}

func TestPlanPriceRefreshGroupsByStart(t *testing.T) {
	store := storage.NewBarStore(t.TempDir())
	today := day("20230110")

	// 两只股票进度一致 -> 同一批次，只发一次请求
	saveSeries(t, store, "600000.SH", day("20230108"))
	saveSeries(t, store, "600001.SH", day("20230108"))

	plan := PlanPriceRefresh(store, []string{"600000.SH", "600001.SH"}, today, 365)
	require.Len(t, plan.Groups, 1)
	assert.Len(t, plan.Groups["20230109"], 2)
}

func TestPlanFinanceRefresh(t *testing.T) {
	store := storage.NewFinanceStore(t.TempDir())
	targetEnd := day("20230110")

	fresh := []model.FinancialRecord{{AnnDate: day("20230108"), Fields: map[string]float64{"x_Balance": 1}}}
	stale := []model.FinancialRecord{{AnnDate: day("20221001"), Fields: map[string]float64{"x_Balance": 1}}}
	require.NoError(t, store.Save("600000.SH", fresh))
	require.NoError(t, store.Save("600001.SH", stale))

	codes := []string{"600000.SH", "600001.SH", "600002.SH"}

	// 容忍 5 天：公告日足够新的跳过，过期和无文件的入队
	targets := PlanFinanceRefresh(store, codes, targetEnd, 5, false)
	assert.Equal(t, []string{"600001.SH", "600002.SH"}, targets)

	// 全量模式无条件全上
	assert.Equal(t, codes, PlanFinanceRefresh(store, codes, targetEnd, 5, true))
}
