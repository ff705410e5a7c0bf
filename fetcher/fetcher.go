package fetcher

import "context"

// Gateway 行情网关 (QMT 终端旁路的 HTTP bridge)。
// 数据中心只依赖这个接口，测试用 Mock 替换。
type Gateway interface {
	// Download 触发终端把历史数据落到网关侧缓存 (fire-and-forget)
	Download(ctx context.Context, codes []string, period, start, end string) error
	// Kline 批量取日线原始行，按代码分组。time 为 UTC 毫秒时间戳。
	Kline(ctx context.Context, codes []string, start, end string) (map[string][]map[string]any, error)
	// Financials 批量取财务报表原始行: code -> 表名 -> rows
	Financials(ctx context.Context, codes []string, tables []string, start, end string) (map[string]map[string][]map[string]any, error)
	// InstrumentDetail 取标的静态详情 (名称用于 ST 判断)
	InstrumentDetail(ctx context.Context, code string) (InstrumentDetail, error)
	// StockList 取板块成分股代码
	StockList(ctx context.Context, sector string) ([]string, error)
}

type InstrumentDetail struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
