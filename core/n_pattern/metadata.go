package n_pattern

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"quant-center/model"
)

// LoadStockMetadata 读 stock.csv (静态基础信息)。
// 先按 UTF-8 读，字节序不合法再按 GBK 解码 (老数据源导出的遗留格式)。
// 文件不存在返回 nil map，调用方据此关掉白名单过滤。
func LoadStockMetadata(path string) (map[string]model.StockMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	data = stripBOM(data)
	if !utf8.Valid(data) {
		decoded, derr := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if derr != nil {
			return nil, fmt.Errorf("stock.csv 既不是 UTF-8 也不是 GBK: %w", derr)
		}
		data = decoded
	}

	rdr := csv.NewReader(strings.NewReader(string(data)))
	rdr.FieldsPerRecord = -1
	rows, err := rdr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析 stock.csv 失败: %w", err)
	}
	if len(rows) < 2 {
		return map[string]model.StockMeta{}, nil
	}

	// 表头定位，代码列兼容 order_book_id / code 两种叫法
	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}
	codeCol, ok := idx["order_book_id"]
	if !ok {
		if codeCol, ok = idx["code"]; !ok {
			return nil, fmt.Errorf("stock.csv 缺少代码列")
		}
	}
	get := func(row []string, name string) string {
		if i, ok := idx[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	_, hasStatus := idx["special_type"]
	out := make(map[string]model.StockMeta, len(rows)-1)
	for _, row := range rows[1:] {
		if codeCol >= len(row) {
			continue
		}
		code := strings.TrimSpace(row[codeCol])
		if len(code) < 6 {
			continue
		}
		key := code[:6]
		out[key] = model.StockMeta{
			CodeKey:  key,
			Symbol:   get(row, "symbol"),
			Sector:   get(row, "sector_code_name"),
			Industry: get(row, "industry_name"),
			// 没有状态列时全部视为正常
			Special: hasStatus && get(row, "special_type") != "Normal",
		}
	}
	return out, nil
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
