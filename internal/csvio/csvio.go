// Package csvio reads raw observation CSVs and writes the headerless,
// positionally ordered flat files the forecasting service ingests.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"tsprep/internal/model"
	"tsprep/internal/schema"
	"tsprep/internal/series"
)

// InputSpec declares how to interpret a raw, headered CSV.
type InputSpec struct {
	TimestampColumn string             // header name of the timestamp column
	TimestampLayout string             // Go layout; model.TimestampLayout when empty
	Columns         []schema.Attribute // value columns to extract, in output order
	ItemColumn      string             // optional header name of the item id column
	DefaultItem     string             // item id to assign when ItemColumn is empty
}

// ReadRaw parses a headered CSV into a raw frame. Blank cells become missing
// values; a non-blank cell that fails to parse is an error, not a silent NaN.
func ReadRaw(r io.Reader, spec InputSpec) (*series.Frame, error) {
	layout := spec.TimestampLayout
	if layout == "" {
		layout = model.TimestampLayout
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colAt := make(map[string]int, len(header))
	for i, name := range header {
		colAt[name] = i
	}
	tsIdx, ok := colAt[spec.TimestampColumn]
	if !ok {
		return nil, fmt.Errorf("timestamp column %q not in header", spec.TimestampColumn)
	}
	valIdx := make([]int, len(spec.Columns))
	for i, a := range spec.Columns {
		idx, ok := colAt[a.Name]
		if !ok {
			return nil, fmt.Errorf("column %q not in header", a.Name)
		}
		valIdx[i] = idx
	}
	itemIdx := -1
	if spec.ItemColumn != "" {
		idx, ok := colAt[spec.ItemColumn]
		if !ok {
			return nil, fmt.Errorf("item column %q not in header", spec.ItemColumn)
		}
		itemIdx = idx
	}

	f := series.New(spec.Columns)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line+1, err)
		}
		line++
		stamp, err := time.ParseInLocation(layout, rec[tsIdx], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: timestamp %q: %w", line, rec[tsIdx], err)
		}
		nums := make(map[string]float64)
		strs := make(map[string]string)
		for i, a := range spec.Columns {
			cell := rec[valIdx[i]]
			if a.Type == schema.TypeString {
				strs[a.Name] = cell
				continue
			}
			if cell == "" {
				nums[a.Name] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %q: %w", line, a.Name, err)
			}
			nums[a.Name] = v
		}
		item := spec.DefaultItem
		if itemIdx >= 0 {
			item = rec[itemIdx]
		}
		f.AppendRow(stamp, item, nums, strs)
	}
	return f, nil
}

// WriteFrame emits the frame as a headerless CSV in exactly the schema's
// column order: timestamp, value columns, item id last. It refuses to write
// when the frame's columns do not match the schema or any cell is still
// missing.
func WriteFrame(w io.Writer, f *series.Frame, sch schema.Schema) error {
	if err := checkAgainstSchema(f, sch); err != nil {
		return err
	}
	if col, item, stamp, ok := f.Complete(); !ok {
		return &series.IncompleteError{Column: col, Item: item, Timestamp: stamp}
	}
	cw := csv.NewWriter(w)
	rec := make([]string, len(f.Columns)+2)
	for i := 0; i < f.Len(); i++ {
		rec[0] = model.FormatTimestamp(f.Stamps[i])
		for j := range f.Columns {
			c := &f.Columns[j]
			if c.Kind == series.Numeric {
				rec[j+1] = strconv.FormatFloat(c.Nums[i], 'f', -1, 64)
			} else {
				rec[j+1] = c.Strs[i]
			}
		}
		rec[len(rec)-1] = f.Items[i]
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the frame to path via WriteFrame, optionally showing a
// progress bar for large emissions.
func WriteFile(path string, f *series.Frame, sch schema.Schema, progress bool) error {
	if err := checkAgainstSchema(f, sch); err != nil {
		return err
	}
	if col, item, stamp, ok := f.Complete(); !ok {
		return &series.IncompleteError{Column: col, Item: item, Timestamp: stamp}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.Default(int64(f.Len()), "writing "+path)
	}
	cw := csv.NewWriter(out)
	rec := make([]string, len(f.Columns)+2)
	for i := 0; i < f.Len(); i++ {
		rec[0] = model.FormatTimestamp(f.Stamps[i])
		for j := range f.Columns {
			c := &f.Columns[j]
			if c.Kind == series.Numeric {
				rec[j+1] = strconv.FormatFloat(c.Nums[i], 'f', -1, 64)
			} else {
				rec[j+1] = c.Strs[i]
			}
		}
		rec[len(rec)-1] = f.Items[i]
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	cw.Flush()
	return cw.Error()
}

// checkAgainstSchema enforces the positional contract: schema valid, and the
// frame's value columns matching the schema's in name, order and kind.
func checkAgainstSchema(f *series.Frame, sch schema.Schema) error {
	if err := sch.Validate(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	vals := sch.ValueColumns()
	if len(vals) != len(f.Columns) {
		return fmt.Errorf("schema declares %d value columns, frame has %d", len(vals), len(f.Columns))
	}
	for i, a := range vals {
		c := f.Columns[i]
		if c.Name != a.Name {
			return fmt.Errorf("column %d: schema %q vs frame %q (order is positional)", i+1, a.Name, c.Name)
		}
		wantKind := series.Numeric
		if a.Type == schema.TypeString {
			wantKind = series.Categorical
		}
		if c.Kind != wantKind {
			return fmt.Errorf("column %q: schema type %s does not match frame kind", a.Name, a.Type)
		}
	}
	return nil
}
