package storage

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"quant-center/model"
)

// FinanceStore 财务序列存储。列集合是动态的：
// 公告日索引 + 三表字段的并集 (缺失的表在该日期为 NULL)。
type FinanceStore struct {
	Dir string
}

func NewFinanceStore(dir string) *FinanceStore {
	return &FinanceStore{Dir: dir}
}

func (s *FinanceStore) Path(code string) string {
	return filepath.Join(s.Dir, code+".parquet")
}

func (s *FinanceStore) Save(code string, records []model.FinancialRecord) error {
	// 列 = ann_date + 所有字段名并集 (排序保证 schema 稳定)
	nameSet := map[string]struct{}{}
	for _, r := range records {
		for k := range r.Fields {
			nameSet[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(nameSet))
	for k := range nameSet {
		names = append(names, k)
	}
	sort.Strings(names)

	fields := make([]arrow.Field, 0, len(names)+1)
	fields = append(fields, arrow.Field{Name: model.FieldAnnDate, Type: tsType})
	for _, n := range names {
		fields = append(fields, arrow.Field{Name: n, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	dt := b.Field(0).(*array.TimestampBuilder)
	for _, r := range records {
		dt.Append(arrow.Timestamp(r.AnnDate.UnixMilli()))
		for i, n := range names {
			fb := b.Field(i + 1).(*array.Float64Builder)
			if v, ok := r.Fields[n]; ok && !math.IsNaN(v) {
				fb.Append(v)
			} else {
				fb.AppendNull()
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeParquet(s.Path(code), schema, rec)
}

func (s *FinanceStore) Load(code string) ([]model.FinancialRecord, error) {
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

	dts := timestampValues(tbl, model.FieldAnnDate)
	records := make([]model.FinancialRecord, len(dts))
	for i, d := range dts {
		records[i] = model.FinancialRecord{AnnDate: d, Fields: map[string]float64{}}
	}

	schema := tbl.Schema()
	for fi, f := range schema.Fields() {
		if f.Name == model.FieldAnnDate {
			continue
		}
		row := 0
		for _, chunk := range tbl.Column(fi).Data().Chunks() {
			arr := chunk.(*array.Float64)
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					records[row].Fields[f.Name] = arr.Value(i)
				}
				row++
			}
		}
	}
	return records, nil
}

// LastAnnDate 只读公告日列，供财务刷新计划判断新鲜度
func (s *FinanceStore) LastAnnDate(code string) (time.Time, bool, error) {
	return lastTimestamp(s.Path(code), model.FieldAnnDate)
}
