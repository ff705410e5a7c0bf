package model

import (
	"math"
	"time"
)

// --- 标准字段名定义 ---
// 全项目统一引用这里的常量，不要散写 "close" / "open" 字符串。
// 对应 Parquet 列名，改名只需要改这一处。
const (
	FieldDateTime  = "datetime" // 时间索引
	FieldCode      = "code"     // 标的代码 (e.g. "000001.SZ")
	FieldOpen      = "open"
	FieldHigh      = "high"
	FieldLow       = "low"
	FieldClose     = "close"
	FieldVolume    = "volume"
	FieldAmount    = "amount"     // 成交额
	FieldLimitUp   = "limit_up"   // 涨停价 (首日无昨收 -> NULL)
	FieldLimitDown = "limit_down" // 跌停价
	FieldAdjFactor = "adj_factor" // 复权因子

	FieldAnnDate = "ann_date" // 财务公告日 (财务表索引)

	// 财务原始行里的公告时间与报告期标签
	RawAnnTime = "m_anntime"
	RawTimeTag = "m_timetag"
)

// Bar 单根日K线。LimitUp/LimitDown 用 NaN 表示"无昨收、未定义"，
// 落盘时转成 Parquet NULL。
type Bar struct {
	DateTime  time.Time
	Code      string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Amount    float64
	LimitUp   float64
	LimitDown float64
	AdjFactor float64
}

// HasLimit 是否已计算出涨跌停价
func (b Bar) HasLimit() bool {
	return !math.IsNaN(b.LimitUp) && !math.IsNaN(b.LimitDown)
}

// FinancialRecord 一只股票一个公告日的财务快照。
// Fields 的键是 "原始字段_表名" (m_timetag 除外，三表共享不加后缀)。
type FinancialRecord struct {
	AnnDate time.Time
	Fields  map[string]float64
}

// SelectionRecord 选股结果的一行，写盘后不再修改。
type SelectionRecord struct {
	CodeKey    string  // 6位纯数字代码
	Code       string  // 带交易所后缀的代码
	Close      float64 // 触发日收盘
	VolRatio   float64 // 量比 (当日量 / 5日均量)
	Pattern    string  // 命中形态
	SelectDate string  // 数据最后一天
	Symbol     string
	Sector     string
	Industry   string
}

// StockMeta 静态基础信息 (stock.csv 一行)，本系统只读。
type StockMeta struct {
	CodeKey  string
	Symbol   string
	Sector   string
	Industry string
	Special  bool // ST/停牌等异常状态
}
