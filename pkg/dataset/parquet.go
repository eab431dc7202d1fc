package dataset

import (
	"context"
	"math"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet/file"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
)

// LoadParquet reads a parquet file into a Table. All numeric columns
// except the target become features; nulls become NaN for the imputer.
func LoadParquet(path, targetColumn string) (*Table, error) {
	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceNotFound, "opening parquet file")
	}
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "reading parquet schema")
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "reading parquet table")
	}
	defer table.Release()

	schema := table.Schema()
	targetIdx := -1
	var featureIdx []int
	for i, field := range schema.Fields() {
		if field.Name == targetColumn {
			targetIdx = i
			continue
		}
		if isNumeric(field.Type.ID()) {
			featureIdx = append(featureIdx, i)
		}
	}
	if targetIdx < 0 {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "target column not found"),
			errors.Fields{"column": targetColumn})
	}
	if len(featureIdx) == 0 {
		return nil, errors.New(errors.ValidationFailed, "no numeric feature columns besides the target")
	}

	rows := int(table.NumRows())
	x := mat.NewDense(rows, len(featureIdx), nil)
	for c, idx := range featureIdx {
		vals, err := columnValues(table.Column(idx), rows)
		if err != nil {
			return nil, errors.WithFields(err, errors.Fields{"column": schema.Field(idx).Name})
		}
		for r, v := range vals {
			x.Set(r, c, v)
		}
	}

	y, err := columnValues(table.Column(targetIdx), rows)
	if err != nil {
		return nil, errors.WithFields(err, errors.Fields{"column": targetColumn})
	}
	for _, v := range y {
		if math.IsNaN(v) {
			return nil, errors.New(errors.ValidationFailed, "missing target value")
		}
	}

	return &Table{X: x, Y: y}, nil
}

func isNumeric(id arrow.Type) bool {
	switch id {
	case arrow.FLOAT32, arrow.FLOAT64,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	default:
		return false
	}
}

// columnValues flattens a possibly chunked arrow column into float64s,
// mapping nulls to NaN.
func columnValues(col *arrow.Column, rows int) ([]float64, error) {
	out := make([]float64, 0, rows)
	for _, chunk := range col.Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				out = append(out, math.NaN())
				continue
			}
			switch arr := chunk.(type) {
			case *array.Float64:
				out = append(out, arr.Value(i))
			case *array.Float32:
				out = append(out, float64(arr.Value(i)))
			case *array.Int64:
				out = append(out, float64(arr.Value(i)))
			case *array.Int32:
				out = append(out, float64(arr.Value(i)))
			case *array.Int16:
				out = append(out, float64(arr.Value(i)))
			case *array.Int8:
				out = append(out, float64(arr.Value(i)))
			case *array.Uint64:
				out = append(out, float64(arr.Value(i)))
			case *array.Uint32:
				out = append(out, float64(arr.Value(i)))
			case *array.Uint16:
				out = append(out, float64(arr.Value(i)))
			case *array.Uint8:
				out = append(out, float64(arr.Value(i)))
			default:
				return nil, errors.New(errors.ValidationFailed, "unsupported column type")
			}
		}
	}
	return out, nil
}
