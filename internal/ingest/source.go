// Package ingest loads raw observations from the supported inputs: CSV file,
// MySQL table, Kafka topic. Sources do no cleaning; missing values pass
// through as NaN for the regularizer to deal with.
package ingest

import (
	"context"
	"fmt"
	"os"

	"tsprep/internal/csvio"
	"tsprep/internal/model"
	"tsprep/internal/schema"
)

type Source interface {
	Load(ctx context.Context) ([]model.Observation, error)
}

// CSVSource reads target observations from a headered CSV file.
type CSVSource struct {
	Path            string
	TimestampColumn string
	ValueColumn     string
	ItemColumn      string // optional
	DefaultItem     string
	Layout          string // model.TimestampLayout when empty
}

func (s *CSVSource) Load(ctx context.Context) ([]model.Observation, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	frame, err := csvio.ReadRaw(f, csvio.InputSpec{
		TimestampColumn: s.TimestampColumn,
		TimestampLayout: s.Layout,
		Columns:         []schema.Attribute{{Name: s.ValueColumn, Type: schema.TypeFloat}},
		ItemColumn:      s.ItemColumn,
		DefaultItem:     s.DefaultItem,
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	col := frame.Column(s.ValueColumn)
	obs := make([]model.Observation, frame.Len())
	for i := range obs {
		obs[i] = model.Observation{Timestamp: frame.Stamps[i], Value: col.Nums[i], ItemID: frame.Items[i]}
	}
	return obs, nil
}
