package forecastmock_test

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsprep/internal/forecast"
	"tsprep/internal/forecastmock"
	"tsprep/internal/metrics"
	"tsprep/internal/registry"
	"tsprep/internal/schema"
)

func newEmulator(t *testing.T, cfg forecastmock.Config) (*httptest.Server, *forecast.Client) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := httptest.NewServer(forecastmock.NewServer(cfg, logger).Router())
	t.Cleanup(srv.Close)
	client := forecast.NewClientWith(srv.URL, srv.Client(), logger, metrics.NewRegistry())
	return srv, client
}

func writeSource(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.csv")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

// createTargetDataset registers a group and a target dataset, returning the
// dataset id import jobs should reference.
func createTargetDataset(t *testing.T, client *forecast.Client) string {
	t.Helper()
	ctx := context.Background()
	dg, err := client.CreateDatasetGroup(ctx, forecast.CreateDatasetGroupRequest{Name: "electricity"})
	require.NoError(t, err)
	ds, err := client.CreateDataset(ctx, forecast.CreateDatasetRequest{
		Name:        "electricity_target",
		GroupID:     dg.ID,
		DatasetType: forecast.DatasetTypeTarget,
		Frequency:   "H",
		Schema:      schema.Target("target_value"),
	})
	require.NoError(t, err)
	return ds.ID
}

func TestImportJobLifecycle(t *testing.T) {
	_, client := newEmulator(t, forecastmock.Config{StepsToActive: 2})
	ctx := context.Background()
	dsID := createTargetDataset(t, client)

	src := writeSource(t,
		"2017-01-01 00:00:00,1,client_1\n"+
			"2017-01-01 01:00:00,2,client_1\n"+
			"2017-01-01 02:00:00,3,client_1\n"+
			"2017-01-01 03:00:00,4,client_1\n")

	job, err := client.CreateImportJob(ctx, forecast.CreateImportJobRequest{
		JobName:        "electricity_import",
		DatasetID:      dsID,
		SourceLocation: src,
	})
	require.NoError(t, err)
	assert.Equal(t, forecast.StatusPending, job.Status)

	// One status stage per describe: PENDING, two IN_PROGRESS, then ACTIVE.
	var seen []forecast.Status
	for i := 0; i < 4; i++ {
		job, err = client.DescribeImportJob(ctx, job.ID)
		require.NoError(t, err)
		seen = append(seen, job.Status)
	}
	assert.Equal(t, []forecast.Status{
		forecast.StatusPending,
		forecast.StatusInProgress,
		forecast.StatusInProgress,
		forecast.StatusActive,
	}, seen)
	assert.False(t, job.CompletedAt.IsZero())

	// Statistics come from the actual file, not canned numbers.
	fs := job.FieldStatistics["target_value"]
	assert.Equal(t, 4, fs.Count)
	assert.Equal(t, 4, fs.DistinctCount)
	assert.Equal(t, 0, fs.NullCount)
	assert.Equal(t, 0, fs.NanCount)
	assert.Equal(t, 1.0, fs.Min)
	assert.Equal(t, 4.0, fs.Max)
	assert.InDelta(t, 2.5, fs.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25), fs.Stddev, 1e-9)

	assert.Equal(t, 4, job.FieldStatistics["timestamp"].Count)
	assert.Equal(t, 1, job.FieldStatistics["item_id"].DistinctCount)

	// Terminal state is sticky.
	job, err = client.DescribeImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, forecast.StatusActive, job.Status)
}

func TestImportStatisticsOnDirtyFile(t *testing.T) {
	_, client := newEmulator(t, forecastmock.Config{StepsToActive: 1})
	ctx := context.Background()
	dsID := createTargetDataset(t, client)

	src := writeSource(t,
		"2017-01-01 00:00:00,1,client_1\n"+
			"2017-01-01 01:00:00,,client_1\n"+
			"2017-01-01 02:00:00,NaN,client_1\n"+
			"2017-01-01 03:00:00,4,client_1\n")

	job, err := client.CreateImportJob(ctx, forecast.CreateImportJobRequest{
		JobName:        "dirty_import",
		DatasetID:      dsID,
		SourceLocation: src,
	})
	require.NoError(t, err)

	job, err = client.WaitForImportJob(ctx, job.ID, forecast.TimeoutPolicy{Interval: time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, forecast.StatusActive, job.Status)

	// The import itself succeeds; the profile tells the truth about the file
	// and the acceptance gate is the caller's call.
	fs := job.FieldStatistics["target_value"]
	assert.Equal(t, 1, fs.NullCount)
	assert.Equal(t, 1, fs.NanCount)
	assert.Equal(t, 1.0, fs.Min)
	assert.Equal(t, 4.0, fs.Max)

	err = forecast.VerifyFieldStatistics(job.FieldStatistics)
	var statsErr *forecast.StatisticsError
	require.ErrorAs(t, err, &statsErr)
	assert.Equal(t, "target_value", statsErr.Column)
}

func TestImportFailsOnUnknownDataset(t *testing.T) {
	_, client := newEmulator(t, forecastmock.Config{StepsToActive: 1})
	ctx := context.Background()

	job, err := client.CreateImportJob(ctx, forecast.CreateImportJobRequest{
		JobName:        "orphan_import",
		DatasetID:      "ds-missing",
		SourceLocation: writeSource(t, "2017-01-01 00:00:00,1,client_1\n"),
	})
	require.NoError(t, err)

	_, err = client.WaitForImportJob(ctx, job.ID, forecast.TimeoutPolicy{Interval: time.Millisecond})
	var failed *forecast.JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Message, "unknown dataset")
}

func TestImportFailsOnUnreadableFile(t *testing.T) {
	_, client := newEmulator(t, forecastmock.Config{StepsToActive: 1})
	ctx := context.Background()
	dsID := createTargetDataset(t, client)

	job, err := client.CreateImportJob(ctx, forecast.CreateImportJobRequest{
		JobName:        "missing_file_import",
		DatasetID:      dsID,
		SourceLocation: filepath.Join(t.TempDir(), "absent.csv"),
	})
	require.NoError(t, err)

	_, err = client.WaitForImportJob(ctx, job.ID, forecast.TimeoutPolicy{Interval: time.Millisecond})
	var failed *forecast.JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Message, "open source")
}

func TestForcedFailure(t *testing.T) {
	_, client := newEmulator(t, forecastmock.Config{StepsToActive: 1, FailWith: "quota exhausted"})
	ctx := context.Background()
	dsID := createTargetDataset(t, client)

	job, err := client.CreateImportJob(ctx, forecast.CreateImportJobRequest{
		JobName:        "doomed_import",
		DatasetID:      dsID,
		SourceLocation: writeSource(t, "2017-01-01 00:00:00,1,client_1\n"),
	})
	require.NoError(t, err)

	_, err = client.WaitForImportJob(ctx, job.ID, forecast.TimeoutPolicy{Interval: time.Millisecond})
	var failed *forecast.JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "quota exhausted", failed.Message)
}

func TestDescribeUnknownJob(t *testing.T) {
	srv, _ := newEmulator(t, forecastmock.Config{})
	resp, err := http.Get(srv.URL + "/v1/datasetimportjobs/job-unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateDatasetRejectsBadSchema(t *testing.T) {
	_, client := newEmulator(t, forecastmock.Config{})
	_, err := client.CreateDataset(context.Background(), forecast.CreateDatasetRequest{
		Name:        "backwards",
		DatasetType: forecast.DatasetTypeTarget,
		Schema: schema.Schema{Attributes: []schema.Attribute{
			{Name: "item_id", Type: schema.TypeString},
			{Name: "target_value", Type: schema.TypeFloat},
			{Name: "timestamp", Type: schema.TypeTimestamp},
		}},
	})
	var subErr *forecast.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "create dataset", subErr.Op)
}

// TestSubmitterAgainstEmulator runs the whole submit path against the
// emulator: create, poll to ACTIVE, registry record, acceptance gate.
func TestSubmitterAgainstEmulator(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	_, client := newEmulator(t, forecastmock.Config{StepsToActive: 1})
	dsID := createTargetDataset(t, client)

	store := registry.NewInMemoryStore()
	sub := forecast.NewSubmitter(client, store, nil, metrics.NewRegistry(), logger)

	job, err := sub.Run(context.Background(), forecast.SubmitRequest{
		JobName:        "electricity_import",
		DatasetID:      dsID,
		SourceLocation: writeSource(t, "2017-01-01 00:00:00,1,client_1\n2017-01-01 01:00:00,2,client_1\n"),
		Policy:         forecast.TimeoutPolicy{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, forecast.StatusActive, job.Status)
	assert.Equal(t, 2, job.FieldStatistics["target_value"].Count)

	rec, ok, err := store.Lookup("electricity_import")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.ID, rec.JobID)
	assert.Equal(t, string(forecast.StatusActive), rec.Status)

	// A second run resumes the recorded job instead of paying for a new one.
	again, err := sub.Run(context.Background(), forecast.SubmitRequest{
		JobName:   "electricity_import",
		DatasetID: dsID,
		Policy:    forecast.TimeoutPolicy{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
}
