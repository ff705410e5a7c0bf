package data_processor

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// LimitRatio 板块涨跌幅限制。
// 分支顺序即规则：先看代码前缀，再看 ST —— 创业板/科创板的 ST 股按板块算 20%。
func LimitRatio(code, name string) float64 {
	if strings.HasPrefix(code, "688") || strings.HasPrefix(code, "30") {
		return 0.20 // 科创板 / 创业板
	}
	if strings.HasPrefix(code, "8") || strings.HasPrefix(code, "4") {
		return 0.30 // 北交所 / 老三板
	}
	if strings.Contains(name, "ST") {
		return 0.05
	}
	return 0.10 // 主板
}

// LimitPrice 按昨收计算涨跌停价。
// 监管价格是精确到分的，必须走十进制四舍五入；
// float64 直接乘会在 .xx5 边界上翻车 (decimal.NewFromFloat 等价于 Decimal(str(x)))。
func LimitPrice(code, name string, prevClose float64) (up, down float64) {
	if math.IsNaN(prevClose) || prevClose <= 0 {
		return math.NaN(), math.NaN()
	}
	ratio := decimal.NewFromFloat(LimitRatio(code, name))
	prev := decimal.NewFromFloat(prevClose)
	one := decimal.NewFromInt(1)

	// Round(2) 对正数即标准四舍五入 (half-up)
	up = prev.Mul(one.Add(ratio)).Round(2).InexactFloat64()
	down = prev.Mul(one.Sub(ratio)).Round(2).InexactFloat64()
	return up, down
}
