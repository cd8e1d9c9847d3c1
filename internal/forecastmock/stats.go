package forecastmock

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"tsprep/internal/forecast"
	"tsprep/internal/schema"
)

// computeFieldStats profiles a headerless import file positionally per the
// dataset schema, the way the real service does during import. Empty cells
// count as nulls; float cells that parse to NaN, or do not parse at all,
// count as NaNs and are excluded from the numeric aggregates.
func computeFieldStats(path string, sch schema.Schema) (map[string]forecast.FieldStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(sch.Attributes)

	type acc struct {
		count    int
		nulls    int
		nans     int
		distinct map[string]struct{}
		vals     []float64
	}
	accs := make([]acc, len(sch.Attributes))
	for i := range accs {
		accs[i].distinct = make(map[string]struct{})
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		for i, attr := range sch.Attributes {
			cell := rec[i]
			a := &accs[i]
			a.count++
			a.distinct[cell] = struct{}{}
			if cell == "" {
				a.nulls++
				continue
			}
			if attr.Type != schema.TypeFloat {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) {
				a.nans++
				continue
			}
			a.vals = append(a.vals, v)
		}
	}

	stats := make(map[string]forecast.FieldStats, len(sch.Attributes))
	for i, attr := range sch.Attributes {
		a := &accs[i]
		fs := forecast.FieldStats{
			Count:         a.count,
			DistinctCount: len(a.distinct),
			NullCount:     a.nulls,
			NanCount:      a.nans,
		}
		if len(a.vals) > 0 {
			fs.Min, fs.Max = a.vals[0], a.vals[0]
			sum := 0.0
			for _, v := range a.vals {
				if v < fs.Min {
					fs.Min = v
				}
				if v > fs.Max {
					fs.Max = v
				}
				sum += v
			}
			fs.Mean = sum / float64(len(a.vals))
			ss := 0.0
			for _, v := range a.vals {
				d := v - fs.Mean
				ss += d * d
			}
			fs.Stddev = math.Sqrt(ss / float64(len(a.vals)))
		}
		stats[attr.Name] = fs
	}
	return stats, nil
}
