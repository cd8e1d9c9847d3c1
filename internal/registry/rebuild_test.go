package registry

import (
	"strings"
	"testing"
)

func TestRebuildFromEvents(t *testing.T) {
	log := strings.Join([]string{
		`{"eventId":"e1","jobId":"job-1","jobName":"electricity_import","datasetId":"ds-1","source":"data/target.csv","status":"PENDING","ts":100}`,
		``,
		`{"eventId":"e2","jobId":"job-1","jobName":"electricity_import","datasetId":"ds-1","status":"ACTIVE","ts":130}`,
		`{"eventId":"e3","jobId":"job-2","jobName":"weather_import","datasetId":"ds-2","source":"data/related.csv","status":"FAILED","message":"too many nulls","ts":120}`,
	}, "\n") + "\n"

	s := NewInMemoryStore()
	res, err := RebuildFromEvents(s, strings.NewReader(log))
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Applied != 3 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec, ok, err := s.Lookup("electricity_import")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	// The ACTIVE event carries no source; the PENDING one's source must survive.
	want := Record{
		JobName:        "electricity_import",
		JobID:          "job-1",
		DatasetID:      "ds-1",
		SourceLocation: "data/target.csv",
		Status:         "ACTIVE",
		CreatedAt:      100,
		UpdatedAt:      130,
	}
	if rec != want {
		t.Fatalf("rebuilt record: got %+v want %+v", rec, want)
	}

	rec, ok, _ = s.Lookup("weather_import")
	if !ok || rec.Status != "FAILED" || rec.SourceLocation != "data/related.csv" {
		t.Fatalf("rebuilt weather_import: %+v ok=%v", rec, ok)
	}
}

func TestRebuildSkipsStaleEvents(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Put(Record{JobName: "electricity_import", JobID: "job-1", Status: "ACTIVE", UpdatedAt: 200}); err != nil {
		t.Fatalf("put: %v", err)
	}

	log := `{"eventId":"e1","jobId":"job-1","jobName":"electricity_import","status":"PENDING","ts":100}` + "\n"
	res, err := RebuildFromEvents(s, strings.NewReader(log))
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Applied != 0 || res.Skipped != 1 {
		t.Fatalf("stale event should be skipped: %+v", res)
	}
	rec, _, _ := s.Lookup("electricity_import")
	if rec.Status != "ACTIVE" || rec.UpdatedAt != 200 {
		t.Fatalf("record clobbered by stale event: %+v", rec)
	}
}

func TestRebuildRejectsCorruptLine(t *testing.T) {
	log := `{"eventId":"e1","jobName":"a_import","status":"PENDING","ts":100}` + "\n" + `{not json` + "\n"
	if _, err := RebuildFromEvents(NewInMemoryStore(), strings.NewReader(log)); err == nil {
		t.Fatalf("corrupt line should fail the rebuild")
	}
}

func TestRebuildSkipsNamelessEvents(t *testing.T) {
	log := `{"eventId":"e1","jobId":"job-1","status":"PENDING","ts":100}` + "\n"
	res, err := RebuildFromEvents(NewInMemoryStore(), strings.NewReader(log))
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Applied != 0 || res.Skipped != 1 {
		t.Fatalf("nameless event should be skipped: %+v", res)
	}
}
