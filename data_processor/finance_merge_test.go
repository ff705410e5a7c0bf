package data_processor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-center/model"
	"quant-center/storage"
)

func annDate(s string) time.Time {
	d, _ := time.ParseInLocation("20060102", s, time.UTC)
	return d
}

func TestCleanTable(t *testing.T) {
	rows := []map[string]any{
		{"m_anntime": 20230425.0, "m_timetag": 20230331.0, "total_assets": 100.0},
		{"m_anntime": 0.0, "total_assets": 1.0},       // 公告时间为 0 -> 丢
		{"m_timetag": 20230331.0, "total_assets": 2.0}, // 缺公告时间 -> 丢
		{"m_anntime": "garbage", "total_assets": 3.0},  // 解析失败 -> 丢
		// 同一公告日两条，保留最后一条
		{"m_anntime": "20230425", "m_timetag": 20230331.0, "total_assets": 200.0},
	}

	recs := CleanTable("Balance", rows)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, annDate("20230425"), r.AnnDate)
	// 除 m_timetag 外全部加表名后缀
	assert.Equal(t, 200.0, r.Fields["total_assets_Balance"])
	assert.Equal(t, 20230331.0, r.Fields["m_timetag"])
	_, exists := r.Fields["total_assets"]
	assert.False(t, exists)
}

func TestOuterJoin(t *testing.T) {
	tables := map[string][]model.FinancialRecord{
		"Balance": {
			{AnnDate: annDate("20230425"), Fields: map[string]float64{"a_Balance": 1}},
		},
		"Income": {
			{AnnDate: annDate("20230425"), Fields: map[string]float64{"b_Income": 2}},
			{AnnDate: annDate("20230828"), Fields: map[string]float64{"b_Income": 3}},
		},
	}

	joined := OuterJoin(tables)
	require.Len(t, joined, 2)

	// 两表同日：字段并集
	assert.Equal(t, 1.0, joined[0].Fields["a_Balance"])
	assert.Equal(t, 2.0, joined[0].Fields["b_Income"])

	// 只有一表报的日期：另一表的字段缺席
	assert.Equal(t, 3.0, joined[1].Fields["b_Income"])
	_, exists := joined[1].Fields["a_Balance"]
	assert.False(t, exists)
}

func TestMergeHistoryLastWriteWins(t *testing.T) {
	old := []model.FinancialRecord{
		{AnnDate: annDate("20230425"), Fields: map[string]float64{"x_Balance": 1}},
	}
	latest := []model.FinancialRecord{
		{AnnDate: annDate("20230425"), Fields: map[string]float64{"x_Balance": 9}},
		{AnnDate: annDate("20230828"), Fields: map[string]float64{"x_Balance": 2}},
	}

	merged := MergeHistory(old, latest)
	require.Len(t, merged, 2)
	assert.Equal(t, 9.0, merged[0].Fields["x_Balance"]) // 整条记录被新数据替换
}

func TestFilterFrom(t *testing.T) {
	recs := []model.FinancialRecord{
		{AnnDate: annDate("20220101")},
		{AnnDate: annDate("20230425")},
	}
	out := FilterFrom(recs, annDate("20230101"))
	require.Len(t, out, 1)
	assert.Equal(t, annDate("20230425"), out[0].AnnDate)

	// 零值起始日不过滤
	assert.Len(t, FilterFrom(recs, time.Time{}), 2)
}

func TestFinanceIngestRoundTrip(t *testing.T) {
	store := storage.NewFinanceStore(t.TempDir())
	eng := NewFinanceEngine(store, zerolog.Nop())

	tables := map[string][]map[string]any{
		"Balance": {{"m_anntime": 20230425.0, "m_timetag": 20230331.0, "total_assets": 100.0}},
		"Income":  {{"m_anntime": 20230425.0, "m_timetag": 20230331.0, "revenue": 50.0}},
	}
	require.NoError(t, eng.Ingest("600000.SH", tables, ModeAppend, time.Time{}))

	// 第二次下载同日数据有修正，按公告日 last-write-wins
	tables["Balance"] = []map[string]any{{"m_anntime": 20230425.0, "m_timetag": 20230331.0, "total_assets": 120.0}}
	require.NoError(t, eng.Ingest("600000.SH", tables, ModeAppend, time.Time{}))

	recs, err := store.Load("600000.SH")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 120.0, recs[0].Fields["total_assets_Balance"])
	assert.Equal(t, 50.0, recs[0].Fields["revenue_Income"])
}
