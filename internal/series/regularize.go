package series

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"tsprep/internal/model"
)

// RangeSpec declares the canonical axis: every instant from Start to the last
// point <= End, stepped by Frequency. Seed optionally supplies per-column
// values for leading gaps (parsed per column kind); without a seed a leading
// gap is fatal.
type RangeSpec struct {
	Start     time.Time
	End       time.Time
	Frequency time.Duration
	Seed      map[string]string
}

func (s RangeSpec) validate() error {
	if s.Frequency <= 0 || s.Start.After(s.End) {
		return &RangeError{Start: s.Start, End: s.End, Frequency: s.Frequency}
	}
	return nil
}

// Points returns the number of axis instants.
func (s RangeSpec) Points() int {
	return int(s.End.Sub(s.Start)/s.Frequency) + 1
}

// Axis materializes the canonical timestamp axis.
func (s RangeSpec) Axis() []time.Time {
	n := s.Points()
	axis := make([]time.Time, n)
	for i := 0; i < n; i++ {
		axis[i] = s.Start.Add(time.Duration(i) * s.Frequency)
	}
	return axis
}

// slot returns the axis index for stamp, or false when the stamp is off the
// axis (outside the range or not aligned to the step).
func (s RangeSpec) slot(stamp time.Time) (int, bool) {
	off := stamp.Sub(s.Start)
	if off < 0 || off > s.End.Sub(s.Start) || off%s.Frequency != 0 {
		return 0, false
	}
	return int(off / s.Frequency), true
}

// Report summarizes what Regularize did to the data.
type Report struct {
	RowsIn            int `json:"rowsIn"`
	RowsOut           int `json:"rowsOut"`
	DuplicatesDropped int `json:"duplicatesDropped"`
	OffAxisDropped    int `json:"offAxisDropped"`
	GapsFilled        int `json:"gapsFilled"`
	CellsSeeded       int `json:"cellsSeeded"`
	ItemDefaulted     int `json:"itemDefaulted"`
	Items             int `json:"items"`
}

// Regularize turns a raw frame into a complete regular one: deduplicate by
// (timestamp, item) keeping the first occurrence, join onto the canonical
// axis, forward-fill gaps per column, then verify no missing cell survived.
// The input is not modified; output rows are ordered by (item, timestamp)
// with axis-generated timestamps.
func Regularize(raw *Frame, spec RangeSpec) (*Frame, *Report, error) {
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}
	rep := &Report{RowsIn: raw.Len()}

	type rowKey struct {
		item string
		unix int64
	}
	seen := make(map[rowKey]bool, raw.Len())
	byItem := make(map[string]map[int]int) // item -> axis slot -> raw row index
	for i := 0; i < raw.Len(); i++ {
		item := raw.Items[i]
		if item == "" {
			item = model.DefaultItemID
			rep.ItemDefaulted++
		}
		key := rowKey{item, raw.Stamps[i].UnixNano()}
		if seen[key] {
			rep.DuplicatesDropped++
			continue
		}
		seen[key] = true
		slot, ok := spec.slot(raw.Stamps[i])
		if !ok {
			rep.OffAxisDropped++
			continue
		}
		if byItem[item] == nil {
			byItem[item] = make(map[int]int)
		}
		byItem[item][slot] = i
	}

	firstCol := ""
	if len(raw.Columns) > 0 {
		firstCol = raw.Columns[0].Name
	}
	if len(byItem) == 0 {
		// Nothing usable on the axis: every point would be a leading gap.
		return nil, nil, &IncompleteError{Column: firstCol, Timestamp: spec.Start}
	}

	items := make([]string, 0, len(byItem))
	for item := range byItem {
		items = append(items, item)
	}
	sort.Strings(items)

	axis := spec.Axis()
	out := cloneShape(raw)
	for _, item := range items {
		slots := byItem[item]
		base := out.Len()
		for s, stamp := range axis {
			if i, ok := slots[s]; ok {
				appendFrom(out, raw, i, stamp, item)
			} else {
				appendGap(out, stamp, item)
				rep.GapsFilled++
			}
		}
		if err := forwardFill(out, base, len(axis), item, spec.Seed, rep); err != nil {
			return nil, nil, err
		}
	}

	if col, item, stamp, ok := out.Complete(); !ok {
		return nil, nil, &IncompleteError{Column: col, Item: item, Timestamp: stamp}
	}
	rep.RowsOut = out.Len()
	rep.Items = len(items)
	return out, rep, nil
}

// forwardFill fills the n rows starting at base (one item's axis) in place.
// A cell missing before any value in its column takes the seed value when one
// is declared; otherwise the leading gap is fatal.
func forwardFill(f *Frame, base, n int, item string, seed map[string]string, rep *Report) error {
	for j := range f.Columns {
		c := &f.Columns[j]
		if c.Kind == Numeric {
			last, have := 0.0, false
			for i := base; i < base+n; i++ {
				if !c.missingAt(i) {
					last, have = c.Nums[i], true
					continue
				}
				if !have {
					raw, ok := seed[c.Name]
					if !ok {
						return &IncompleteError{Column: c.Name, Item: item, Timestamp: f.Stamps[i]}
					}
					v, err := strconv.ParseFloat(raw, 64)
					if err != nil {
						return fmt.Errorf("seed for column %q: %w", c.Name, err)
					}
					last, have = v, true
					rep.CellsSeeded++
				}
				c.Nums[i] = last
			}
		} else {
			last, have := "", false
			for i := base; i < base+n; i++ {
				if !c.missingAt(i) {
					last, have = c.Strs[i], true
					continue
				}
				if !have {
					v, ok := seed[c.Name]
					if !ok || v == "" {
						return &IncompleteError{Column: c.Name, Item: item, Timestamp: f.Stamps[i]}
					}
					last, have = v, true
					rep.CellsSeeded++
				}
				c.Strs[i] = last
			}
		}
	}
	return nil
}

func cloneShape(raw *Frame) *Frame {
	out := &Frame{index: make(map[string]int, len(raw.Columns))}
	for _, c := range raw.Columns {
		out.index[c.Name] = len(out.Columns)
		out.Columns = append(out.Columns, Column{Name: c.Name, Kind: c.Kind})
	}
	return out
}

func appendFrom(dst, src *Frame, srcRow int, stamp time.Time, item string) {
	dst.Stamps = append(dst.Stamps, stamp)
	dst.Items = append(dst.Items, item)
	for j := range dst.Columns {
		if dst.Columns[j].Kind == Numeric {
			dst.Columns[j].Nums = append(dst.Columns[j].Nums, src.Columns[j].Nums[srcRow])
		} else {
			dst.Columns[j].Strs = append(dst.Columns[j].Strs, src.Columns[j].Strs[srcRow])
		}
	}
}

func appendGap(dst *Frame, stamp time.Time, item string) {
	dst.AppendRow(stamp, item, nil, nil)
}
