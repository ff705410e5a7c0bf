package data_processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitPriceByBoard(t *testing.T) {
	cases := []struct {
		code, name string
		prevClose  float64
		wantUp     float64
		wantDown   float64
	}{
		{"600000.SH", "X", 10.00, 11.00, 9.00},   // 主板 10%
		{"688001.SH", "X", 10.00, 12.00, 8.00},   // 科创板 20%
		{"300750.SZ", "X", 10.00, 12.00, 8.00},   // 创业板 20%
		{"830799.BJ", "X", 10.00, 13.00, 7.00},   // 北交所 30%
		{"430047.BJ", "X", 10.00, 13.00, 7.00},   // 老三板 30%
		{"600000.SH", "*ST X", 10.00, 10.50, 9.50}, // ST 5%
		// 创业板 ST：按板块 20% 算，板块前缀优先于 ST 名称判断
		{"300001.SZ", "*ST X", 10.00, 12.00, 8.00},
	}

	for _, c := range cases {
		up, down := LimitPrice(c.code, c.name, c.prevClose)
		assert.Equal(t, c.wantUp, up, "up: %s %s", c.code, c.name)
		assert.Equal(t, c.wantDown, down, "down: %s %s", c.code, c.name)
	}
}

func TestLimitPriceHalfUpBoundary(t *testing.T) {
	// 4.85 * 1.1 = 5.335 -> 5.34，二进制浮点会算出 5.33
	up, down := LimitPrice("600000.SH", "X", 4.85)
	assert.Equal(t, 5.34, up)
	assert.Equal(t, 4.37, down) // 4.85 * 0.9 = 4.365 -> 4.37

	// 9.35 * 1.05 = 9.8175 -> 9.82
	up, _ = LimitPrice("000100.SZ", "ST 某某", 9.35)
	assert.Equal(t, 9.82, up)
}

func TestLimitPriceUndefinedPrevClose(t *testing.T) {
	up, down := LimitPrice("600000.SH", "X", math.NaN())
	assert.True(t, math.IsNaN(up))
	assert.True(t, math.IsNaN(down))

	up, down = LimitPrice("600000.SH", "X", 0)
	assert.True(t, math.IsNaN(up))
	assert.True(t, math.IsNaN(down))

	up, down = LimitPrice("600000.SH", "X", -1)
	assert.True(t, math.IsNaN(up))
	assert.True(t, math.IsNaN(down))
}
