package series

import (
	"fmt"
	"time"

	"tsprep/internal/model"
)

// RangeError reports an invalid regularization request: start after end or a
// non-positive frequency. Caller error, nothing was processed.
type RangeError struct {
	Start     time.Time
	End       time.Time
	Frequency time.Duration
}

func (e *RangeError) Error() string {
	if e.Frequency <= 0 {
		return fmt.Sprintf("invalid range: frequency %v must be positive", e.Frequency)
	}
	return fmt.Sprintf("invalid range: start %s after end %s",
		model.FormatTimestamp(e.Start), model.FormatTimestamp(e.End))
}

// IncompleteError reports a cell that remained unfilled after forward fill,
// typically a leading gap with no seed value. The pipeline must stop before
// any external call.
type IncompleteError struct {
	Column    string
	Item      string
	Timestamp time.Time
}

func (e *IncompleteError) Error() string {
	if e.Column == "" && e.Item == "" {
		return fmt.Sprintf("incomplete series: no usable rows on the axis starting %s",
			model.FormatTimestamp(e.Timestamp))
	}
	return fmt.Sprintf("incomplete series: column %q item %q has no value at %s and nothing precedes it",
		e.Column, e.Item, model.FormatTimestamp(e.Timestamp))
}
