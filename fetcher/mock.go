package fetcher

import "context"

// Mock returns controllable fixed data for development and testing.
type Mock struct {
	KlineData     map[string][]map[string]any
	FinancialData map[string]map[string][]map[string]any
	Details       map[string]InstrumentDetail
	Stocks        []string

	// 记录调用，测试里断言批次行为
	DownloadCalls [][]string
	KlineCalls    int
}

func (m *Mock) Download(_ context.Context, codes []string, _, _, _ string) error {
	m.DownloadCalls = append(m.DownloadCalls, codes)
	return nil
}

func (m *Mock) Kline(_ context.Context, codes []string, _, _ string) (map[string][]map[string]any, error) {
	m.KlineCalls++
	out := map[string][]map[string]any{}
	for _, c := range codes {
		if rows, ok := m.KlineData[c]; ok {
			out[c] = rows
		}
	}
	return out, nil
}

func (m *Mock) Financials(_ context.Context, codes []string, _ []string, _, _ string) (map[string]map[string][]map[string]any, error) {
	out := map[string]map[string][]map[string]any{}
	for _, c := range codes {
		if tables, ok := m.FinancialData[c]; ok {
			out[c] = tables
		}
	}
	return out, nil
}

func (m *Mock) InstrumentDetail(_ context.Context, code string) (InstrumentDetail, error) {
	if d, ok := m.Details[code]; ok {
		return d, nil
	}
	return InstrumentDetail{Code: code}, nil
}

func (m *Mock) StockList(_ context.Context, _ string) ([]string, error) {
	return m.Stocks, nil
}
