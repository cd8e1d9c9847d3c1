// Package series implements the regularization pipeline: deduplication,
// canonical axis construction, forward fill, and completeness validation.
package series

import (
	"math"
	"time"

	"tsprep/internal/model"
	"tsprep/internal/schema"
)

// ColumnKind distinguishes numeric and categorical value columns.
type ColumnKind int

const (
	Numeric ColumnKind = iota
	Categorical
)

// Column holds one value column. Numeric columns use NaN to mark a missing
// cell, categorical columns use the empty string. Exactly one of Nums/Strs is
// populated, parallel to the frame's timestamps.
type Column struct {
	Name string
	Kind ColumnKind
	Nums []float64
	Strs []string
}

func (c *Column) missingAt(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Nums[i])
	}
	return c.Strs[i] == ""
}

// Frame is a flat table of rows (timestamp, item, value columns...). Raw
// frames may be unordered with duplicates and missing cells; regular frames
// satisfy the completeness invariant and are ordered by (item, timestamp).
type Frame struct {
	Stamps  []time.Time
	Items   []string
	Columns []Column

	index map[string]int // column name -> Columns index
}

// New returns an empty frame with one column per schema value attribute
// (float -> numeric, string -> categorical).
func New(valueAttrs []schema.Attribute) *Frame {
	f := &Frame{index: make(map[string]int, len(valueAttrs))}
	for _, a := range valueAttrs {
		kind := Numeric
		if a.Type == schema.TypeString {
			kind = Categorical
		}
		f.index[a.Name] = len(f.Columns)
		f.Columns = append(f.Columns, Column{Name: a.Name, Kind: kind})
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Stamps) }

// AppendRow adds one row. Value columns absent from both maps become missing
// cells. An empty item id is preserved; Regularize substitutes the default
// and reports the count.
func (f *Frame) AppendRow(stamp time.Time, item string, numeric map[string]float64, categorical map[string]string) {
	f.Stamps = append(f.Stamps, stamp)
	f.Items = append(f.Items, item)
	for i := range f.Columns {
		c := &f.Columns[i]
		if c.Kind == Numeric {
			v, ok := numeric[c.Name]
			if !ok {
				v = math.NaN()
			}
			c.Nums = append(c.Nums, v)
		} else {
			c.Strs = append(c.Strs, categorical[c.Name])
		}
	}
}

// Column returns the named column, or nil.
func (f *Frame) Column(name string) *Column {
	if f.index != nil {
		if i, ok := f.index[name]; ok {
			return &f.Columns[i]
		}
		return nil
	}
	for i := range f.Columns {
		if f.Columns[i].Name == name {
			return &f.Columns[i]
		}
	}
	return nil
}

// Complete scans every cell; it reports the first missing one, if any.
func (f *Frame) Complete() (colName string, item string, stamp time.Time, ok bool) {
	for i := 0; i < f.Len(); i++ {
		for j := range f.Columns {
			if f.Columns[j].missingAt(i) {
				return f.Columns[j].Name, f.Items[i], f.Stamps[i], false
			}
		}
	}
	return "", "", time.Time{}, true
}

// FromObservations builds a single-column numeric frame from target
// observations. valueName names the column ("target_value" by default).
func FromObservations(obs []model.Observation, valueName string) *Frame {
	if valueName == "" {
		valueName = "target_value"
	}
	f := New([]schema.Attribute{{Name: valueName, Type: schema.TypeFloat}})
	for _, o := range obs {
		f.AppendRow(o.Timestamp, o.ItemID, map[string]float64{valueName: o.Value}, nil)
	}
	return f
}

// FromCovariateRows builds a frame from related-series rows. cols declares
// the covariate columns and their order.
func FromCovariateRows(rows []model.CovariateRow, cols []schema.Attribute) *Frame {
	f := New(cols)
	for _, r := range rows {
		f.AppendRow(r.Timestamp, r.ItemID, r.Numeric, r.Category)
	}
	return f
}
