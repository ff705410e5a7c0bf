package output_formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"quant-center/model"
)

// 选股结果输出：每个扫描日一份 CSV 快照，写完不再动。
// utf-8-sig (带 BOM)，Excel/WPS 直接打开不乱码。

var csvHeader = []string{
	"code_key", "code", "Close", "Vol_Ratio", "Pattern", "select_time",
	"symbol", "sector_code_name", "industry_name",
	"strategy_name", "date",
}

// SaveSelectionCSV 写 <dir>/<dateStr>.csv，返回落盘路径
func SaveSelectionCSV(dir, strategy, dateStr string, recs []model.SelectionRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF}) // BOM

	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range recs {
		row := []string{
			r.CodeKey,
			r.Code,
			strconv.FormatFloat(r.Close, 'f', 2, 64),
			strconv.FormatFloat(r.VolRatio, 'f', 2, 64),
			r.Pattern,
			r.SelectDate,
			r.Symbol,
			r.Sector,
			r.Industry,
			strategy,
			dateStr,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, dateStr+".csv")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("写入快照 %s 失败: %w", path, err)
	}
	return path, nil
}

// PrintSelectionTable 控制台表格
func PrintSelectionTable(recs []model.SelectionRecord) {
	if len(recs) == 0 {
		fmt.Println("❌ 无符合条件的标的。")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "代码\t名称\t形态\t收盘\t量比\t行业")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			r.CodeKey, r.Symbol, r.Pattern, r.Close, r.VolRatio, r.Industry)
	}
	w.Flush()
	fmt.Printf("   入选数量: %d\n", len(recs))
}
