package storage

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"quant-center/model"
)

// 每只股票一个 Parquet 文件：<dir>/<code>.parquet。
// 写入永远是 临时文件 + rename 整体替换，读方不会见到半成品。

// 时间列不带时区 (交易所本地语义)，与 DuckDB 的 TIMESTAMP 一致
var tsType = &arrow.TimestampType{Unit: arrow.Millisecond}

var barSchema = arrow.NewSchema([]arrow.Field{
	{Name: model.FieldDateTime, Type: tsType},
	{Name: model.FieldCode, Type: arrow.BinaryTypes.String},
	{Name: model.FieldOpen, Type: arrow.PrimitiveTypes.Float64},
	{Name: model.FieldHigh, Type: arrow.PrimitiveTypes.Float64},
	{Name: model.FieldLow, Type: arrow.PrimitiveTypes.Float64},
	{Name: model.FieldClose, Type: arrow.PrimitiveTypes.Float64},
	{Name: model.FieldVolume, Type: arrow.PrimitiveTypes.Float64},
	{Name: model.FieldAmount, Type: arrow.PrimitiveTypes.Float64},
	{Name: model.FieldLimitUp, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: model.FieldLimitDown, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: model.FieldAdjFactor, Type: arrow.PrimitiveTypes.Float64},
}, nil)

type BarStore struct {
	Dir string
}

func NewBarStore(dir string) *BarStore {
	return &BarStore{Dir: dir}
}

func (s *BarStore) Path(code string) string {
	return filepath.Join(s.Dir, code+".parquet")
}

// Codes 返回目录下所有已落库的股票代码 (文件名去掉 .parquet)
func (s *BarStore) Codes() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(files))
	for _, f := range files {
		codes = append(codes, strings.TrimSuffix(filepath.Base(f), ".parquet"))
	}
	return codes, nil
}

// Save 整序列落盘 (replace-on-success)
func (s *BarStore) Save(code string, bars []model.Bar) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, barSchema)
	defer b.Release()

	dt := b.Field(0).(*array.TimestampBuilder)
	codeB := b.Field(1).(*array.StringBuilder)
	floatCols := []*array.Float64Builder{
		b.Field(2).(*array.Float64Builder), // open
		b.Field(3).(*array.Float64Builder), // high
		b.Field(4).(*array.Float64Builder), // low
		b.Field(5).(*array.Float64Builder), // close
		b.Field(6).(*array.Float64Builder), // volume
		b.Field(7).(*array.Float64Builder), // amount
	}
	limitUp := b.Field(8).(*array.Float64Builder)
	limitDown := b.Field(9).(*array.Float64Builder)
	adj := b.Field(10).(*array.Float64Builder)

	for _, bar := range bars {
		dt.Append(arrow.Timestamp(bar.DateTime.UnixMilli()))
		codeB.Append(bar.Code)
		for i, v := range []float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Amount} {
			floatCols[i].Append(v)
		}
		appendNullable(limitUp, bar.LimitUp)
		appendNullable(limitDown, bar.LimitDown)
		adj.Append(bar.AdjFactor)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeParquet(s.Path(code), barSchema, rec)
}

// Load 读整条序列，文件不存在返回空
func (s *BarStore) Load(code string) ([]model.Bar, error) {
	path := s.Path(code)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	tbl, closer, err := readTable(path)
	if err != nil {
		return nil, err
	}
	defer closer()
	defer tbl.Release()

	n := int(tbl.NumRows())
	bars := make([]model.Bar, 0, n)

	dts := timestampValues(tbl, model.FieldDateTime)
	codes := stringValues(tbl, model.FieldCode)
	opens := floatValues(tbl, model.FieldOpen)
	highs := floatValues(tbl, model.FieldHigh)
	lows := floatValues(tbl, model.FieldLow)
	closes := floatValues(tbl, model.FieldClose)
	vols := floatValues(tbl, model.FieldVolume)
	amts := floatValues(tbl, model.FieldAmount)
	ups := floatValues(tbl, model.FieldLimitUp)
	downs := floatValues(tbl, model.FieldLimitDown)
	adjs := floatValues(tbl, model.FieldAdjFactor)

	for i := 0; i < n; i++ {
		bars = append(bars, model.Bar{
			DateTime:  dts[i],
			Code:      codes[i],
			Open:      opens[i],
			High:      highs[i],
			Low:       lows[i],
			Close:     closes[i],
			Volume:    vols[i],
			Amount:    amts[i],
			LimitUp:   ups[i],
			LimitDown: downs[i],
			AdjFactor: adjs[i],
		})
	}
	return bars, nil
}

// LastTimestamp 只读时间列取最后一条，供刷新计划做缺口检测。
// 不存在或空文件返回 ok=false。
func (s *BarStore) LastTimestamp(code string) (time.Time, bool, error) {
	return lastTimestamp(s.Path(code), model.FieldDateTime)
}

// --- 底层 Parquet 读写 ---

func appendNullable(b *array.Float64Builder, v float64) {
	if math.IsNaN(v) {
		b.AppendNull()
	} else {
		b.Append(v)
	}
}

func writeParquet(path string, schema *arrow.Schema, rec arrow.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.parquet")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(schema, tmp, props, pqarrow.DefaultWriterProps())
	if err != nil {
		cleanup()
		return fmt.Errorf("parquet writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		cleanup()
		return fmt.Errorf("parquet write: %w", err)
	}
	if err := w.Close(); err != nil {
		cleanup()
		return fmt.Errorf("parquet close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	// 原子替换，失败保留旧版本
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换 %s 失败: %w", path, err)
	}
	return nil
}

func readTable(path string) (arrow.Table, func(), error) {
	f, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	rdr, err := pqarrow.NewFileReader(f, pqarrow.ArrowReadProperties{BatchSize: 4096}, memory.DefaultAllocator)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	tbl, err := rdr.ReadTable(context.Background())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return tbl, func() { f.Close() }, nil
}

func lastTimestamp(path, column string) (time.Time, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	f, err := file.OpenParquetFile(path, false)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	rdr, err := pqarrow.NewFileReader(f, pqarrow.ArrowReadProperties{BatchSize: 4096}, memory.DefaultAllocator)
	if err != nil {
		return time.Time{}, false, err
	}
	schema, err := rdr.Schema()
	if err != nil {
		return time.Time{}, false, err
	}
	indices := schema.FieldIndices(column)
	if len(indices) == 0 {
		return time.Time{}, false, fmt.Errorf("%s 缺少列 %s", path, column)
	}
	groups := make([]int, f.NumRowGroups())
	for i := range groups {
		groups[i] = i
	}
	// 列裁剪：只物化时间列
	tbl, err := rdr.ReadRowGroups(context.Background(), indices[:1], groups)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("读取索引列失败: %w", err)
	}
	defer tbl.Release()

	if tbl.NumRows() == 0 {
		return time.Time{}, false, nil
	}
	chunks := tbl.Column(0).Data().Chunks()
	last := chunks[len(chunks)-1].(*array.Timestamp)
	ts := last.Value(last.Len() - 1)
	return time.UnixMilli(int64(ts)).UTC(), true, nil
}

// --- 按列名展平 chunked column 的小工具 ---

func column(tbl arrow.Table, name string) *arrow.Column {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil
	}
	return tbl.Column(idx[0])
}

func timestampValues(tbl arrow.Table, name string) []time.Time {
	col := column(tbl, name)
	out := make([]time.Time, 0, tbl.NumRows())
	if col == nil {
		return out
	}
	for _, chunk := range col.Data().Chunks() {
		arr := chunk.(*array.Timestamp)
		for i := 0; i < arr.Len(); i++ {
			out = append(out, time.UnixMilli(int64(arr.Value(i))).UTC())
		}
	}
	return out
}

func stringValues(tbl arrow.Table, name string) []string {
	col := column(tbl, name)
	out := make([]string, 0, tbl.NumRows())
	if col == nil {
		return out
	}
	for _, chunk := range col.Data().Chunks() {
		arr := chunk.(*array.String)
		for i := 0; i < arr.Len(); i++ {
			out = append(out, arr.Value(i))
		}
	}
	return out
}

// floatValues NULL -> NaN
func floatValues(tbl arrow.Table, name string) []float64 {
	col := column(tbl, name)
	out := make([]float64, 0, tbl.NumRows())
	if col == nil {
		return out
	}
	for _, chunk := range col.Data().Chunks() {
		arr := chunk.(*array.Float64)
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				out = append(out, math.NaN())
			} else {
				out = append(out, arr.Value(i))
			}
		}
	}
	return out
}
