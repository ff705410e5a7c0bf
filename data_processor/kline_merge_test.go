package data_processor

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-center/model"
	"quant-center/storage"
)

// 2023-01-02 00:00 UTC 的毫秒时间戳，+8h 后是交易所当日
func ms(day int) int64 {
	return time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func rawRow(day int, close float64) map[string]any {
	return map[string]any{
		"time":   ms(day),
		"open":   close - 0.1,
		"high":   close + 0.2,
		"low":    close - 0.2,
		"close":  close,
		"volume": 1000.0,
		"amount": 10000.0,
	}
}

func TestCanonicalizeBars(t *testing.T) {
	rows := []map[string]any{
		rawRow(3, 10.5),
		rawRow(2, 10.0), // 乱序输入
		{"open": 1.0},   // 缺时间 -> 丢
		{"time": 0, "close": 9.9}, // 零时间 -> 丢
	}
	bars, dropped := CanonicalizeBars("000001.SZ", rows)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, dropped)

	// +8h 偏移 & 升序
	assert.Equal(t, time.Date(2023, 1, 2, 8, 0, 0, 0, time.UTC), bars[0].DateTime)
	assert.True(t, bars[0].DateTime.Before(bars[1].DateTime))
	assert.Equal(t, "000001.SZ", bars[0].Code)
	assert.Equal(t, 1.0, bars[0].AdjFactor)
	assert.True(t, math.IsNaN(bars[0].LimitUp))
}

func TestMergeBarsLastWriteWins(t *testing.T) {
	day := time.Date(2023, 1, 2, 8, 0, 0, 0, time.UTC)
	old := []model.Bar{
		{DateTime: day, Close: 10.0},
		{DateTime: day.AddDate(0, 0, 1), Close: 11.0},
	}
	batch := []model.Bar{
		{DateTime: day.AddDate(0, 0, 1), Close: 99.0}, // 时间戳撞车：新批次赢
		{DateTime: day.AddDate(0, 0, 2), Close: 12.0},
	}

	merged := MergeBars(old, batch)
	require.Len(t, merged, 3)
	assert.Equal(t, 10.0, merged[0].Close)
	assert.Equal(t, 99.0, merged[1].Close) // 胜出的是后合并的值，与内容无关
	assert.Equal(t, 12.0, merged[2].Close)
}

func TestRecomputeLimitsChain(t *testing.T) {
	day := time.Date(2023, 1, 2, 8, 0, 0, 0, time.UTC)
	bars := []model.Bar{
		{DateTime: day, Close: 10.0},
		{DateTime: day.AddDate(0, 0, 1), Close: 11.0},
		{DateTime: day.AddDate(0, 0, 2), Close: 12.0},
	}
	RecomputeLimits(bars, "600000.SH", "X")

	assert.True(t, math.IsNaN(bars[0].LimitUp)) // 首日无昨收
	assert.Equal(t, 11.0, bars[1].LimitUp)
	assert.Equal(t, 12.10, bars[2].LimitUp)

	// 修正中间一根收盘，重算后它之后每根的涨跌停都要跟着变
	bars[1].Close = 10.5
	RecomputeLimits(bars, "600000.SH", "X")
	assert.Equal(t, 11.0, bars[1].LimitUp) // 自己的涨停价由 day0 昨收决定，不变
	assert.Equal(t, 11.55, bars[2].LimitUp)
	assert.Equal(t, 9.45, bars[2].LimitDown)
}

func TestIngestAppendIdempotent(t *testing.T) {
	store := storage.NewBarStore(t.TempDir())
	eng := NewKlineEngine(store, zerolog.Nop())

	rows := []map[string]any{rawRow(2, 10.0), rawRow(3, 11.0)}
	require.NoError(t, eng.Ingest("600000.SH", "X", rows, ModeAppend))
	first, err := store.Load("600000.SH")
	require.NoError(t, err)

	// 同一批再灌一次，序列不变
	require.NoError(t, eng.Ingest("600000.SH", "X", rows, ModeAppend))
	second, err := store.Load("600000.SH")
	require.NoError(t, err)
	assertBarsEqual(t, first, second)
}

// NaN != NaN，DeepEqual 比不了首日的空涨跌停，逐字段比较
func assertBarsEqual(t *testing.T, want, got []model.Bar) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.True(t, want[i].DateTime.Equal(got[i].DateTime))
		assert.Equal(t, want[i].Close, got[i].Close)
		if math.IsNaN(want[i].LimitUp) {
			assert.True(t, math.IsNaN(got[i].LimitUp))
		} else {
			assert.Equal(t, want[i].LimitUp, got[i].LimitUp)
		}
	}
}

func TestIngestAppendCorrection(t *testing.T) {
	store := storage.NewBarStore(t.TempDir())
	eng := NewKlineEngine(store, zerolog.Nop())

	require.NoError(t, eng.Ingest("600000.SH", "X",
		[]map[string]any{rawRow(2, 10.0), rawRow(3, 11.0), rawRow(4, 12.0)}, ModeAppend))

	// 修正 day3 的收盘，day4 的涨跌停必须被重算
	require.NoError(t, eng.Ingest("600000.SH", "X",
		[]map[string]any{rawRow(3, 10.5)}, ModeAppend))

	bars, err := store.Load("600000.SH")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 10.5, bars[1].Close)
	assert.Equal(t, 11.55, bars[2].LimitUp)
}

func TestIngestOverwriteReplacesSeries(t *testing.T) {
	store := storage.NewBarStore(t.TempDir())
	eng := NewKlineEngine(store, zerolog.Nop())

	require.NoError(t, eng.Ingest("600000.SH", "X",
		[]map[string]any{rawRow(2, 10.0), rawRow(3, 11.0)}, ModeAppend))
	require.NoError(t, eng.Ingest("600000.SH", "X",
		[]map[string]any{rawRow(5, 20.0)}, ModeOverwrite))

	bars, err := store.Load("600000.SH")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 20.0, bars[0].Close)
}

func TestIngestEmptyBatch(t *testing.T) {
	store := storage.NewBarStore(t.TempDir())
	eng := NewKlineEngine(store, zerolog.Nop())

	err := eng.Ingest("600000.SH", "X", []map[string]any{{"open": 1.0}}, ModeAppend)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}
