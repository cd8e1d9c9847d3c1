package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestCSVSourceLoad(t *testing.T) {
	path := writeCSV(t,
		"timestamp,load_kw,meter\n"+
			"2017-01-01 00:00:00,38.34,client_1\n"+
			"2017-01-01 01:00:00,,client_1\n"+
			"2017-01-01 02:00:00,40.1,client_2\n")

	s := &CSVSource{Path: path, TimestampColumn: "timestamp", ValueColumn: "load_kw", ItemColumn: "meter"}
	obs, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("want 3 observations, got %d", len(obs))
	}
	if obs[0].Value != 38.34 || obs[0].ItemID != "client_1" {
		t.Fatalf("first observation: %+v", obs[0])
	}
	if !obs[1].Missing() {
		t.Fatalf("blank cell should load as missing: %+v", obs[1])
	}
	if obs[2].ItemID != "client_2" {
		t.Fatalf("item not carried: %+v", obs[2])
	}
}

func TestCSVSourceDefaultItem(t *testing.T) {
	path := writeCSV(t,
		"timestamp,value\n"+
			"2017-01-01 00:00:00,1.5\n")

	s := &CSVSource{Path: path, TimestampColumn: "timestamp", ValueColumn: "value", DefaultItem: "client_1"}
	obs, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(obs) != 1 || obs[0].ItemID != "client_1" {
		t.Fatalf("default item not applied: %+v", obs)
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	s := &CSVSource{Path: filepath.Join(t.TempDir(), "absent.csv"), TimestampColumn: "timestamp", ValueColumn: "value"}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
