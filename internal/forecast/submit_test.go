package forecast

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsprep/internal/events"
	"tsprep/internal/metrics"
	"tsprep/internal/registry"
)

func newSubmitter(t *testing.T, f *fakeService, store registry.Store, ew events.Writer) *Submitter {
	t.Helper()
	return NewSubmitter(newFakeClient(t, f), store, ew, metrics.NewRegistry(), newTestLogger())
}

func readEvents(t *testing.T, path string) []events.Event {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	var evs []events.Event
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var ev events.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		evs = append(evs, ev)
	}
	require.NoError(t, sc.Err())
	return evs
}

func TestSubmitterRunRecordsAndEmits(t *testing.T) {
	f := &fakeService{
		script: []Status{StatusPending, StatusInProgress, StatusActive},
		stats:  map[string]FieldStats{"target_value": {Count: 24}},
	}
	store := registry.NewInMemoryStore()
	dir := t.TempDir()
	ew, err := events.NewFileWriter(dir, "jobs.jsonl")
	require.NoError(t, err)

	s := newSubmitter(t, f, store, ew)
	job, err := s.Run(context.Background(), SubmitRequest{
		JobName:        "power-import",
		DatasetID:      "ds-1",
		SourceLocation: "/data/target.csv",
		Policy:         TimeoutPolicy{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, job.Status)
	assert.Equal(t, 1, f.createCount())

	rec, found, err := store.Lookup("power-import")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, string(StatusActive), rec.Status)
	assert.Equal(t, "/data/target.csv", rec.SourceLocation)

	evs := readEvents(t, filepath.Join(dir, "jobs.jsonl"))
	require.Len(t, evs, 2)
	assert.Equal(t, string(StatusPending), evs[0].Status)
	assert.Equal(t, "/data/target.csv", evs[0].Source)
	assert.Equal(t, string(StatusActive), evs[1].Status)
	assert.NotEmpty(t, evs[0].EventID)
}

func TestSubmitterReusesRecordedJob(t *testing.T) {
	f := &fakeService{
		script: []Status{StatusActive},
		stats:  map[string]FieldStats{"target_value": {Count: 24}},
	}
	store := registry.NewInMemoryStore()
	require.NoError(t, store.Put(registry.Record{
		JobName: "power-import",
		JobID:   "job-recorded",
		Status:  string(StatusInProgress),
	}))

	s := newSubmitter(t, f, store, nil)
	job, err := s.Run(context.Background(), SubmitRequest{
		JobName:   "power-import",
		DatasetID: "ds-1",
		Policy:    TimeoutPolicy{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.createCount(), "recorded job must be resumed, not resubmitted")
	assert.Equal(t, "job-recorded", job.ID)
}

func TestSubmitterResubmitsAfterFailure(t *testing.T) {
	f := &fakeService{
		script: []Status{StatusActive},
		stats:  map[string]FieldStats{"target_value": {Count: 24}},
	}
	store := registry.NewInMemoryStore()
	require.NoError(t, store.Put(registry.Record{
		JobName: "power-import",
		JobID:   "job-dead",
		Status:  string(StatusFailed),
	}))

	s := newSubmitter(t, f, store, nil)
	_, err := s.Run(context.Background(), SubmitRequest{
		JobName:   "power-import",
		DatasetID: "ds-1",
		Policy:    TimeoutPolicy{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.createCount(), "a FAILED record must not block a fresh attempt")

	rec, _, err := store.Lookup("power-import")
	require.NoError(t, err)
	assert.Equal(t, "job-1", rec.JobID)
}

func TestSubmitterMarksFailure(t *testing.T) {
	f := &fakeService{
		script:  []Status{StatusInProgress, StatusFailed},
		failMsg: "file not found at source location",
	}
	store := registry.NewInMemoryStore()
	s := newSubmitter(t, f, store, nil)

	_, err := s.Run(context.Background(), SubmitRequest{
		JobName:   "power-import",
		DatasetID: "ds-1",
		Policy:    TimeoutPolicy{Interval: time.Millisecond},
	})
	var jf *JobFailedError
	require.ErrorAs(t, err, &jf)
	assert.Contains(t, jf.Message, "file not found")

	rec, found, err := store.Lookup("power-import")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, string(StatusFailed), rec.Status)
}

func TestSubmitterAcceptanceGate(t *testing.T) {
	f := &fakeService{
		script: []Status{StatusActive},
		stats: map[string]FieldStats{
			"target_value": {Count: 24, NanCount: 3},
		},
	}
	s := newSubmitter(t, f, registry.NewInMemoryStore(), nil)

	job, err := s.Run(context.Background(), SubmitRequest{
		JobName:   "power-import",
		DatasetID: "ds-1",
		Policy:    TimeoutPolicy{Interval: time.Millisecond},
	})
	var se *StatisticsError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "target_value", se.Column)
	require.NotNil(t, job, "terminal job comes back with the gate error for logging")
	assert.Equal(t, StatusActive, job.Status)
}
