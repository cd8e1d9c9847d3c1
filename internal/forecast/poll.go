package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval matches the service's guidance for import jobs.
const DefaultPollInterval = 30 * time.Second

// TimeoutPolicy bounds a poll loop. Zero MaxWait and zero MaxAttempts both
// mean unbounded, which reproduces a plain wait-until-terminal loop.
type TimeoutPolicy struct {
	Interval    time.Duration // sleep between describes; DefaultPollInterval when <= 0
	MaxWait     time.Duration // total wall-clock budget; 0 = unbounded
	MaxAttempts int           // describe call budget; 0 = unbounded
}

// WaitForImportJob polls the job to a terminal state: describe, stop on
// ACTIVE or FAILED, otherwise sleep one interval and describe again. Exactly
// one describe per observed status and no sleep after a terminal response.
// FAILED surfaces as JobFailedError, an exhausted policy as ErrPollTimeout,
// and a cancelled context as ctx.Err(). Describe transport errors abort the
// wait; there is no retry tier below the policy.
func (c *Client) WaitForImportJob(ctx context.Context, jobID string, policy TimeoutPolicy) (*ImportJob, error) {
	interval := policy.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var deadline time.Time
	if policy.MaxWait > 0 {
		deadline = time.Now().Add(policy.MaxWait)
	}

	for attempt := 1; ; attempt++ {
		job, err := c.DescribeImportJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		c.mreg.PollRequests.Inc()
		c.mreg.LastPollTS.SetToCurrentTime()
		c.log.WithFields(logrus.Fields{"job": jobID, "status": job.Status, "attempt": attempt}).Info("import job status")

		switch job.Status {
		case StatusActive:
			return job, nil
		case StatusFailed:
			return nil, &JobFailedError{JobID: jobID, Message: job.Message}
		}

		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, fmt.Errorf("%w: job %s still %s after %d describe calls", ErrPollTimeout, jobID, job.Status, attempt)
		}
		// Stop before a sleep that cannot end inside the wait budget.
		if !deadline.IsZero() && time.Now().Add(interval).After(deadline) {
			return nil, fmt.Errorf("%w: job %s still %s after %s", ErrPollTimeout, jobID, job.Status, policy.MaxWait)
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
