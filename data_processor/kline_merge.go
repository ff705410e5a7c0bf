package data_processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"

	"quant-center/model"
	"quant-center/storage"
)

// 行情合并引擎：原始行 -> 规范化 -> (增量合并|整体覆盖) -> 全量重算涨跌停 -> 落盘。

type Mode string

const (
	ModeAppend    Mode = "append"    // 增量：与本地合并，重复日期以新批次为准
	ModeOverwrite Mode = "overwrite" // 全量：新批次整体替换本地
)

var ErrEmptyBatch = errors.New("批次无有效行情行")

// 网关原始行 (时间是 UTC 毫秒时间戳)
type rawBar struct {
	Time   int64   `mapstructure:"time"`
	Open   float64 `mapstructure:"open"`
	High   float64 `mapstructure:"high"`
	Low    float64 `mapstructure:"low"`
	Close  float64 `mapstructure:"close"`
	Volume float64 `mapstructure:"volume"`
	Amount float64 `mapstructure:"amount"`
}

// CanonicalizeBars 清洗一批原始行：
// 毫秒UTC -> +8h 交易所本地时间；补代码；复权因子先固定 1.0；按时间升序。
// 坏行 (缺时间/解析失败) 跳过计数，不让整批失败。
func CanonicalizeBars(code string, rows []map[string]any) (bars []model.Bar, dropped int) {
	for _, row := range rows {
		var raw rawBar
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &raw,
		})
		if err != nil || dec.Decode(row) != nil {
			dropped++
			continue
		}
		if raw.Time <= 0 {
			dropped++
			continue
		}
		bars = append(bars, model.Bar{
			DateTime:  time.UnixMilli(raw.Time).UTC().Add(8 * time.Hour),
			Code:      code,
			Open:      raw.Open,
			High:      raw.High,
			Low:       raw.Low,
			Close:     raw.Close,
			Volume:    raw.Volume,
			Amount:    raw.Amount,
			LimitUp:   math.NaN(),
			LimitDown: math.NaN(),
			AdjFactor: 1.0,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].DateTime.Before(bars[j].DateTime) })
	return bars, dropped
}

// MergeBars 旧序列 + 新批次，按时间戳去重。
// 同一时间戳保留新批次那条 (last-write-wins，按抓取先后，不比内容)。
func MergeBars(old, batch []model.Bar) []model.Bar {
	seen := make(map[int64]model.Bar, len(old)+len(batch))
	for _, b := range old {
		seen[b.DateTime.UnixMilli()] = b
	}
	for _, b := range batch {
		seen[b.DateTime.UnixMilli()] = b
	}
	merged := make([]model.Bar, 0, len(seen))
	for _, b := range seen {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].DateTime.Before(merged[j].DateTime) })
	return merged
}

// RecomputeLimits 用滚动昨收对整条序列重算涨跌停。
// 必须全量算：历史某天收盘被修正后，它之后每一天的昨收都变了，
// 只补尾部的增量算法会悄悄跟全量结果分叉。
func RecomputeLimits(bars []model.Bar, code, name string) {
	prevClose := math.NaN()
	for i := range bars {
		bars[i].LimitUp, bars[i].LimitDown = LimitPrice(code, name, prevClose)
		prevClose = bars[i].Close
	}
}

type KlineEngine struct {
	store *storage.BarStore
	log   zerolog.Logger
}

func NewKlineEngine(store *storage.BarStore, log zerolog.Logger) *KlineEngine {
	return &KlineEngine{store: store, log: log}
}

// Ingest 单只股票的一次合并。name 用于 ST 判断，可为空。
func (e *KlineEngine) Ingest(code, name string, rows []map[string]any, mode Mode) error {
	batch, dropped := CanonicalizeBars(code, rows)
	if dropped > 0 {
		e.log.Warn().Str("code", code).Int("dropped", dropped).Msg("行情行解析失败，已跳过")
	}
	if len(batch) == 0 {
		return fmt.Errorf("%s: %w", code, ErrEmptyBatch)
	}

	target := batch
	if mode == ModeAppend {
		old, err := e.store.Load(code)
		if err != nil {
			return fmt.Errorf("读取本地序列 %s: %w", code, err)
		}
		target = MergeBars(old, batch)
	}

	RecomputeLimits(target, code, name)

	if err := e.store.Save(code, target); err != nil {
		return fmt.Errorf("落盘 %s: %w", code, err)
	}
	return nil
}
