package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tsprep/internal/metrics"
)

// Client is a thin JSON client for the service's HTTP surface. One instance
// per endpoint; safe for sequential use by a single pipeline run.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     logrus.FieldLogger
	mreg    *metrics.Registry
}

func NewClient(baseURL string, log logrus.FieldLogger, mreg *metrics.Registry) *Client {
	return NewClientWith(baseURL, &http.Client{Timeout: 30 * time.Second}, log, mreg)
}

// NewClientWith injects the HTTP client, for tests against httptest servers.
func NewClientWith(baseURL string, httpc *http.Client, log logrus.FieldLogger, mreg *metrics.Registry) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpc: httpc, log: log, mreg: mreg}
}

func (c *Client) CreateDatasetGroup(ctx context.Context, req CreateDatasetGroupRequest) (DatasetGroup, error) {
	var dg DatasetGroup
	if err := c.do(ctx, http.MethodPost, "/v1/datasetgroups", req, &dg); err != nil {
		return DatasetGroup{}, &SubmissionError{Op: "create dataset group", Err: err}
	}
	c.log.WithFields(logrus.Fields{"group": dg.ID, "name": dg.Name}).Info("dataset group created")
	return dg, nil
}

func (c *Client) CreateDataset(ctx context.Context, req CreateDatasetRequest) (Dataset, error) {
	var ds Dataset
	if err := c.do(ctx, http.MethodPost, "/v1/datasets", req, &ds); err != nil {
		return Dataset{}, &SubmissionError{Op: "create dataset", Err: err}
	}
	c.log.WithFields(logrus.Fields{"dataset": ds.ID, "type": ds.DatasetType}).Info("dataset created")
	return ds, nil
}

// CreateImportJob starts a dataset import. The call creates a billable
// resource service-side; callers wanting idempotence go through Submitter,
// which dedupes by job name.
func (c *Client) CreateImportJob(ctx context.Context, req CreateImportJobRequest) (*ImportJob, error) {
	if req.TimestampFormat == "" {
		req.TimestampFormat = DefaultTimestampFormat
	}
	var job ImportJob
	if err := c.do(ctx, http.MethodPost, "/v1/datasetimportjobs", req, &job); err != nil {
		return nil, &SubmissionError{Op: "create import job", Err: err}
	}
	c.log.WithFields(logrus.Fields{"job": job.ID, "name": job.JobName, "source": job.SourceLocation}).Info("import job created")
	return &job, nil
}

func (c *Client) DescribeImportJob(ctx context.Context, jobID string) (*ImportJob, error) {
	var job ImportJob
	if err := c.do(ctx, http.MethodGet, "/v1/datasetimportjobs/"+jobID, nil, &job); err != nil {
		return nil, fmt.Errorf("describe import job %s: %w", jobID, err)
	}
	return &job, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
