package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Export dumps every record to an indented JSON file keyed by job name, a
// portable backup of the submission state.
func Export(store Store, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	dump := make(map[string]Record)
	if err := store.Range(func(rec Record) error {
		dump[rec.JobName] = rec
		return nil
	}); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// Import loads an Export dump into the store, overwriting records that share
// a job name. Returns the number of records loaded.
func Import(store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read dump: %w", err)
	}
	var dump map[string]Record
	if err := json.Unmarshal(data, &dump); err != nil {
		return 0, fmt.Errorf("unmarshal dump: %w", err)
	}
	n := 0
	for _, rec := range dump {
		if err := store.Put(rec); err != nil {
			return n, fmt.Errorf("put %q: %w", rec.JobName, err)
		}
		n++
	}
	return n, nil
}
