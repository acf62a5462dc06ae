package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// ArrowFileName is the name of the optional columnar copy of the dataset.
const ArrowFileName = "multi.arrow"

// Schema returns the Arrow schema for the frame: one float32 column per name.
func (f *Frame) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(f.Columns))
	for i, name := range f.Columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float32}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteArrow writes the frame as a single-record Arrow IPC file.
func (f *Frame) WriteArrow(path string) error {
	mem := memory.NewGoAllocator()
	schema := f.Schema()

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for c := range f.Columns {
		fb := b.Field(c).(*array.Float32Builder)
		fb.Reserve(len(f.Rows))
		for _, row := range f.Rows {
			fb.Append(row[c])
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating arrow file: %w", err)
	}
	defer out.Close()

	w, err := ipc.NewFileWriter(out, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return out.Close()
}

// ReadArrow loads a frame previously written by WriteArrow.
func ReadArrow(path string) (*Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening arrow file: %w", err)
	}
	defer in.Close()

	mem := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(in, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("reading arrow file: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	frame := &Frame{Columns: make([]string, schema.NumFields())}
	for i, field := range schema.Fields() {
		frame.Columns[i] = field.Name
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %w", i, err)
		}
		cols := make([]*array.Float32, rec.NumCols())
		for c := range cols {
			col, ok := rec.Column(c).(*array.Float32)
			if !ok {
				return nil, fmt.Errorf("column %d is %s, want float32", c, rec.Column(c).DataType())
			}
			cols[c] = col
		}
		for row := 0; row < int(rec.NumRows()); row++ {
			values := make([]float32, len(cols))
			for c, col := range cols {
				values[c] = col.Value(row)
			}
			frame.Rows = append(frame.Rows, values)
		}
	}

	return frame, nil
}
