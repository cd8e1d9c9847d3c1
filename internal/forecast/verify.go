package forecast

import "sort"

// VerifyFieldStatistics is the acceptance gate: every imported column must
// report zero nulls and zero NaNs, the precondition the downstream predictor
// holds the data to. Columns are checked in name order so the first offender
// is deterministic.
func VerifyFieldStatistics(stats map[string]FieldStats) error {
	cols := make([]string, 0, len(stats))
	for c := range stats {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		fs := stats[c]
		if fs.NullCount != 0 || fs.NanCount != 0 {
			return &StatisticsError{Column: c, Nulls: fs.NullCount, Nans: fs.NanCount}
		}
	}
	return nil
}
