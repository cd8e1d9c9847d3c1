package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tsprep/internal/events"
	"tsprep/internal/metrics"
	"tsprep/internal/registry"
)

// Submitter drives one import-job run end to end: registry dedupe, create,
// poll to terminal, acceptance gate, with lifecycle events and metrics along
// the way. The registry supplies the idempotence the service API lacks.
type Submitter struct {
	client *Client
	store  registry.Store
	events events.Writer // nil disables event emission
	mreg   *metrics.Registry
	log    logrus.FieldLogger
}

func NewSubmitter(client *Client, store registry.Store, ew events.Writer, mreg *metrics.Registry, log logrus.FieldLogger) *Submitter {
	return &Submitter{client: client, store: store, events: ew, mreg: mreg, log: log}
}

type SubmitRequest struct {
	JobName         string
	DatasetID       string
	SourceLocation  string
	TimestampFormat string
	Policy          TimeoutPolicy
}

// Run submits the named import job, waits for a terminal state and applies
// the acceptance gate. A recorded non-FAILED job under the same name is
// resumed instead of resubmitted; a FAILED record does not block a fresh
// attempt. On StatisticsError the terminal job is returned alongside the
// error so callers can log the offending profile.
func (s *Submitter) Run(ctx context.Context, req SubmitRequest) (*ImportJob, error) {
	rec, found, err := s.store.Lookup(req.JobName)
	if err != nil {
		return nil, fmt.Errorf("registry lookup %q: %w", req.JobName, err)
	}
	start := time.Now()

	var jobID string
	if found && rec.Status != string(StatusFailed) {
		jobID = rec.JobID
		s.mreg.JobsReused.Inc()
		s.log.WithFields(logrus.Fields{"job": jobID, "name": req.JobName, "status": rec.Status}).Info("reusing recorded import job")
	} else {
		job, err := s.client.CreateImportJob(ctx, CreateImportJobRequest{
			JobName:         req.JobName,
			DatasetID:       req.DatasetID,
			SourceLocation:  req.SourceLocation,
			TimestampFormat: req.TimestampFormat,
		})
		if err != nil {
			return nil, err
		}
		jobID = job.ID
		s.mreg.JobsSubmitted.Inc()
		rec = registry.Record{
			JobName:        req.JobName,
			JobID:          job.ID,
			DatasetID:      req.DatasetID,
			SourceLocation: req.SourceLocation,
			Status:         string(job.Status),
			CreatedAt:      registry.NowUnix(),
		}
		rec.UpdatedAt = rec.CreatedAt
		if err := s.store.Put(rec); err != nil {
			return nil, fmt.Errorf("record job %q: %w", req.JobName, err)
		}
		ev := events.New(job.ID, req.JobName, req.DatasetID, string(job.Status), "submitted")
		ev.Source = req.SourceLocation
		if err := s.append(ev); err != nil {
			return nil, err
		}
	}

	final, err := s.client.WaitForImportJob(ctx, jobID, req.Policy)
	if err != nil {
		var jf *JobFailedError
		if errors.As(err, &jf) {
			s.mreg.JobsFailed.Inc()
			s.mark(rec, StatusFailed)
			if aerr := s.append(events.New(jobID, req.JobName, req.DatasetID, string(StatusFailed), jf.Message)); aerr != nil {
				s.log.WithError(aerr).Warn("event append failed on job failure")
			}
		}
		return nil, err
	}

	s.mreg.JobsActive.Inc()
	s.mreg.JobWaitSec.Observe(time.Since(start).Seconds())
	s.mark(rec, StatusActive)
	if err := s.append(events.New(jobID, req.JobName, req.DatasetID, string(StatusActive), final.Message)); err != nil {
		return nil, err
	}

	if err := VerifyFieldStatistics(final.FieldStatistics); err != nil {
		return final, err
	}
	return final, nil
}

// mark updates the job's registry record. The job outcome stands even if the
// local record cannot be written, so failures here only log.
func (s *Submitter) mark(rec registry.Record, st Status) {
	rec.Status = string(st)
	rec.UpdatedAt = registry.NowUnix()
	if err := s.store.Put(rec); err != nil {
		s.log.WithError(err).WithField("name", rec.JobName).Warn("update job record")
	}
}

func (s *Submitter) append(ev events.Event) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Append(ev); err != nil {
		return fmt.Errorf("append job event: %w", err)
	}
	return nil
}
