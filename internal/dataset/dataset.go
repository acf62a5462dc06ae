// Package dataset generates the synthetic per-run dataset. A Frame is a
// dense float32 matrix drawn from a standard normal distribution using the
// run seed as the only source of randomness.
package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/echonull/internal/seeded"
)

// Default dimensions of a generated dataset.
const (
	DefaultRows = 256
	DefaultCols = 8
)

// FileName is the name of the CSV dataset inside a run directory.
const FileName = "multi.csv"

// Frame is a row-major matrix with named columns.
type Frame struct {
	Columns []string
	Rows    [][]float32
}

// Generate draws a rows x cols frame from seed. Columns are named c0..cN.
// Non-positive dimensions fall back to the defaults.
func Generate(seed int64, rows, cols int) *Frame {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}

	rng := seeded.New(seed, "dataset")

	columns := make([]string, cols)
	for c := range columns {
		columns[c] = fmt.Sprintf("c%d", c)
	}

	data := make([][]float32, rows)
	for r := range data {
		row := make([]float32, cols)
		for c := range row {
			row[c] = float32(rng.NormFloat64())
		}
		data[r] = row
	}

	return &Frame{Columns: columns, Rows: data}
}

// WriteCSV writes the frame as CSV with a header row. Values use the
// shortest float32 representation so output is locale and platform independent.
func (f *Frame) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset file: %w", err)
	}
	defer out.Close()

	bw := bufio.NewWriter(out)
	w := csv.NewWriter(bw)
	if err := w.Write(f.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for c, v := range row {
			record[c] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing dataset file: %w", err)
	}
	return out.Close()
}
