package model

import (
	"math"
	"time"
)

// TimestampLayout is the wire format for timestamps in emitted flat files.
// The downstream service parses it positionally; do not change it.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultItemID is used when the raw data carries no item column and the
// caller declared none. A single physical entity is the common case.
const DefaultItemID = "1"

// Observation is one raw input record for the target series.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	ItemID    string    `json:"itemId"`
}

// Missing reports whether the observation carries no usable value.
func (o Observation) Missing() bool {
	return math.IsNaN(o.Value)
}

// CovariateRow is one raw input record for the related series: the same
// timestamp/item key plus named time-varying covariates. Numeric covariates
// use NaN for missing, categorical ones use the empty string.
type CovariateRow struct {
	Timestamp time.Time          `json:"timestamp"`
	ItemID    string             `json:"itemId"`
	Numeric   map[string]float64 `json:"numeric,omitempty"`
	Category  map[string]string  `json:"category,omitempty"`
}

// FormatTimestamp renders t in the flat-file layout, always UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a flat-file timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}
