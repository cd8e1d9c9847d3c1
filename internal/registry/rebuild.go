package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"tsprep/internal/events"
)

type RebuildResult struct {
	Applied int
	Skipped int
}

// RebuildFromEvents replays a JSONL event log into the store, recovering the
// registry after its backing directory is lost. Events apply in log order; an
// event older than the record it would update is skipped.
func RebuildFromEvents(store Store, r io.Reader) (RebuildResult, error) {
	var res RebuildResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return res, fmt.Errorf("decode event line %d: %w", line, err)
		}
		if ev.JobName == "" {
			res.Skipped++
			continue
		}
		rec, found, err := store.Lookup(ev.JobName)
		if err != nil {
			return res, fmt.Errorf("lookup %q: %w", ev.JobName, err)
		}
		if found && ev.TS < rec.UpdatedAt {
			res.Skipped++
			continue
		}
		if !found {
			rec = Record{JobName: ev.JobName, CreatedAt: ev.TS}
		}
		if ev.JobID != "" {
			rec.JobID = ev.JobID
		}
		if ev.DatasetID != "" {
			rec.DatasetID = ev.DatasetID
		}
		if ev.Source != "" {
			rec.SourceLocation = ev.Source
		}
		rec.Status = ev.Status
		rec.UpdatedAt = ev.TS
		if err := store.Put(rec); err != nil {
			return res, fmt.Errorf("put %q: %w", ev.JobName, err)
		}
		res.Applied++
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("scan events: %w", err)
	}
	return res, nil
}

// RebuildFromFile replays the event log at path.
func RebuildFromFile(store Store, path string) (RebuildResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return RebuildResult{}, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()
	return RebuildFromEvents(store, f)
}
