package data_processor

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"quant-center/model"
	"quant-center/storage"
)

// 财务合并引擎：三张报表 (Balance/Income/CashFlow) 各自清洗，
// 按公告日外连接成一条记录，再与本地历史做按日期的 last-write-wins 合并。

// FinanceTables 固定表序，决定外连接时字段的覆盖顺序
var FinanceTables = []string{"Balance", "Income", "CashFlow"}

// CleanTable 单表清洗：
//  1. 丢掉公告时间缺失/为0/解析失败的行
//  2. 公告日 (YYYYMMDD) 作为行键，升序排列
//  3. 同一公告日保留最后一条
//  4. 除 m_timetag 外所有字段加 _<表名> 后缀，避免三表同名列相撞
func CleanTable(table string, rows []map[string]any) []model.FinancialRecord {
	byDate := map[int64]model.FinancialRecord{}
	for _, row := range rows {
		annDate, ok := parseAnnTime(row[model.RawAnnTime])
		if !ok {
			continue
		}
		fields := map[string]float64{}
		for k, v := range row {
			if k == model.RawAnnTime {
				continue // 已消化进行键
			}
			fv, ok := toFloat(v)
			if !ok {
				continue
			}
			if k != model.RawTimeTag {
				k = k + "_" + table
			}
			fields[k] = fv
		}
		// map 覆盖即 keep-last
		byDate[annDate.UnixMilli()] = model.FinancialRecord{AnnDate: annDate, Fields: fields}
	}
	return sortRecords(byDate)
}

// OuterJoin 按公告日求并集：某天哪张表报了就带哪张表的字段，缺的保持未定义
func OuterJoin(tables map[string][]model.FinancialRecord) []model.FinancialRecord {
	byDate := map[int64]model.FinancialRecord{}
	for _, tbl := range FinanceTables {
		for _, r := range tables[tbl] {
			key := r.AnnDate.UnixMilli()
			joined, ok := byDate[key]
			if !ok {
				joined = model.FinancialRecord{AnnDate: r.AnnDate, Fields: map[string]float64{}}
			}
			for k, v := range r.Fields {
				joined.Fields[k] = v
			}
			byDate[key] = joined
		}
	}
	return sortRecords(byDate)
}

// MergeHistory 本地历史 + 新结果，同公告日整条记录以新的为准
func MergeHistory(old, latest []model.FinancialRecord) []model.FinancialRecord {
	byDate := map[int64]model.FinancialRecord{}
	for _, r := range old {
		byDate[r.AnnDate.UnixMilli()] = r
	}
	for _, r := range latest {
		byDate[r.AnnDate.UnixMilli()] = r
	}
	return sortRecords(byDate)
}

// FilterFrom 丢掉 start 之前的记录 (只影响最终输出，不影响刷新判断)
func FilterFrom(records []model.FinancialRecord, start time.Time) []model.FinancialRecord {
	if start.IsZero() {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if !r.AnnDate.Before(start) {
			out = append(out, r)
		}
	}
	return out
}

type FinanceEngine struct {
	store *storage.FinanceStore
	log   zerolog.Logger
}

func NewFinanceEngine(store *storage.FinanceStore, log zerolog.Logger) *FinanceEngine {
	return &FinanceEngine{store: store, log: log}
}

// Ingest 单只股票一次财务合并。start 非零时过滤早于它的记录。
func (e *FinanceEngine) Ingest(code string, tableRows map[string][]map[string]any, mode Mode, start time.Time) error {
	cleaned := map[string][]model.FinancialRecord{}
	total := 0
	for _, tbl := range FinanceTables {
		recs := CleanTable(tbl, tableRows[tbl])
		cleaned[tbl] = recs
		total += len(recs)
	}
	if total == 0 {
		return fmt.Errorf("%s: 三表均无有效财务行", code)
	}

	joined := FilterFrom(OuterJoin(cleaned), start)
	if len(joined) == 0 {
		e.log.Debug().Str("code", code).Msg("过滤后无财务记录，跳过落盘")
		return nil
	}

	target := joined
	if mode == ModeAppend {
		old, err := e.store.Load(code)
		if err != nil {
			return fmt.Errorf("读取本地财务 %s: %w", code, err)
		}
		target = MergeHistory(old, joined)
	}

	if err := e.store.Save(code, target); err != nil {
		return fmt.Errorf("财务落盘 %s: %w", code, err)
	}
	return nil
}

// --- helpers ---

func sortRecords(byDate map[int64]model.FinancialRecord) []model.FinancialRecord {
	out := make([]model.FinancialRecord, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnnDate.Before(out[j].AnnDate) })
	return out
}

// parseAnnTime 原始公告时间 -> 日期。数值或字符串的 YYYYMMDD 都接受。
func parseAnnTime(v any) (time.Time, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case string:
		s = t
	case float64:
		if t == 0 {
			return time.Time{}, false
		}
		s = strconv.FormatInt(int64(t), 10)
	case int64:
		if t == 0 {
			return time.Time{}, false
		}
		s = strconv.FormatInt(t, 10)
	case int:
		if t == 0 {
			return time.Time{}, false
		}
		s = strconv.Itoa(t)
	default:
		return time.Time{}, false
	}
	if len(s) > 8 {
		s = s[:8] // 有的源带时分秒：20230425093000
	}
	dt, err := time.ParseInLocation("20060102", s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return dt, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
