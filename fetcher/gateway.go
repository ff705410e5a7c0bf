package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
)

// HTTPGateway 对接 QMT HTTP bridge 的实现。
// 接口风格：POST JSON 进、JSON 出，错误包在 {"error": "..."} 里。
type HTTPGateway struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type gatewayError struct {
	Error string `json:"error"`
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var ge gatewayError
		if json.Unmarshal(data, &ge) == nil && ge.Error != "" {
			return fmt.Errorf("gateway %s: %s", path, ge.Error)
		}
		return fmt.Errorf("gateway %s: HTTP %d", path, resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("gateway %s: 解析响应失败: %w", path, err)
	}
	return nil
}

func (g *HTTPGateway) Download(ctx context.Context, codes []string, period, start, end string) error {
	payload := map[string]any{
		"stock_list": codes,
		"period":     period,
		"start_time": start,
		"end_time":   end,
	}
	return g.post(ctx, "/api/download", payload, nil)
}

func (g *HTTPGateway) Kline(ctx context.Context, codes []string, start, end string) (map[string][]map[string]any, error) {
	payload := map[string]any{
		"stock_list": codes,
		"period":     "1d",
		"fields":     []string{"time", "open", "high", "low", "close", "volume", "amount"},
		"start_time": start,
		"end_time":   end,
	}
	var result struct {
		Data map[string][]map[string]any `json:"data"`
	}
	if err := g.post(ctx, "/api/kline", payload, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (g *HTTPGateway) Financials(ctx context.Context, codes []string, tables []string, start, end string) (map[string]map[string][]map[string]any, error) {
	payload := map[string]any{
		"stock_list": codes,
		"table_list": tables,
		"start_time": start,
		"end_time":   end,
	}
	var result struct {
		Data map[string]map[string][]map[string]any `json:"data"`
	}
	if err := g.post(ctx, "/api/financials", payload, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (g *HTTPGateway) InstrumentDetail(ctx context.Context, code string) (InstrumentDetail, error) {
	var result struct {
		Data InstrumentDetail `json:"data"`
	}
	path := "/api/detail?code=" + url.QueryEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+path, nil)
	if err != nil {
		return InstrumentDetail{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return InstrumentDetail{}, fmt.Errorf("gateway detail: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return InstrumentDetail{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return InstrumentDetail{}, fmt.Errorf("gateway detail: HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return InstrumentDetail{}, err
	}
	return result.Data, nil
}

func (g *HTTPGateway) StockList(ctx context.Context, sector string) ([]string, error) {
	payload := map[string]any{"sector": sector}
	var result struct {
		Data []string `json:"data"`
	}
	if err := g.post(ctx, "/api/stocklist", payload, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}
