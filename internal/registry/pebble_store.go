package registry

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB. Records are tiny and rare, so
// writes sync; losing a job record costs a duplicate billable import.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodeRecord(rec Record) ([]byte, error) { return json.Marshal(rec) }
func decodeRecord(val []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *PebbleStore) Lookup(jobName string) (Record, bool, error) {
	v, closer, err := p.db.Get([]byte(jobName))
	if err == pebble.ErrNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	rec, err := decodeRecord(v)
	if err != nil {
		return Record{}, false, fmt.Errorf("decode record %q: %w", jobName, err)
	}
	return rec, true, nil
}

func (p *PebbleStore) Put(rec Record) error {
	if rec.JobName == "" {
		return fmt.Errorf("put: empty job name")
	}
	b, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := p.db.Set([]byte(rec.JobName), b, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) Range(fn func(rec Record) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		v := append([]byte(nil), it.Value()...)
		rec, err := decodeRecord(v)
		if err != nil {
			return fmt.Errorf("decode record %q: %w", it.Key(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
