package dataset

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
)

// LoadCSV reads a headered CSV file into a Table, pulling the named
// column out as the target. Empty cells and "NA"/"NaN" markers become
// NaN so the imputation step can handle them.
func LoadCSV(path, targetColumn string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceNotFound, "opening dataset")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "parsing CSV")
	}
	if len(records) < 2 {
		return nil, errors.New(errors.ValidationFailed, "dataset needs a header and at least one row")
	}

	header := records[0]
	targetIdx := -1
	for i, name := range header {
		if name == targetColumn {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "target column not found"),
			errors.Fields{"column": targetColumn})
	}

	rows := len(records) - 1
	cols := len(header) - 1
	if cols == 0 {
		return nil, errors.New(errors.ValidationFailed, "no feature columns besides the target")
	}

	x := mat.NewDense(rows, cols, nil)
	y := make([]float64, rows)
	for r, record := range records[1:] {
		if len(record) != len(header) {
			return nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "ragged CSV row"),
				errors.Fields{"row": r + 1})
		}
		c := 0
		for i, cell := range record {
			v := parseCell(cell)
			if i == targetIdx {
				if math.IsNaN(v) {
					return nil, errors.WithFields(
						errors.New(errors.ValidationFailed, "missing target value"),
						errors.Fields{"row": r + 1})
				}
				y[r] = v
				continue
			}
			x.Set(r, c, v)
			c++
		}
	}

	return &Table{X: x, Y: y}, nil
}

func parseCell(cell string) float64 {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
