// Package forecast talks to the managed forecasting service: dataset and
// import-job creation, status polling to a terminal state, and the
// field-statistics acceptance gate.
package forecast

import (
	"time"

	"tsprep/internal/schema"
)

// Status is the service-side import job state. Anything outside this set is
// treated as still in progress.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusActive     Status = "ACTIVE"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether polling stops at this status.
func (s Status) Terminal() bool { return s == StatusActive || s == StatusFailed }

const (
	DatasetTypeTarget  = "TARGET_TIME_SERIES"
	DatasetTypeRelated = "RELATED_TIME_SERIES"

	DomainCustom = "CUSTOM"

	// DefaultTimestampFormat is the service-side format specifier matching
	// model.TimestampLayout.
	DefaultTimestampFormat = "yyyy-MM-dd HH:mm:ss"
)

// FieldStats is the per-column profile the service computes during import.
// Min/Max/Mean/Stddev are meaningful for numeric columns only.
type FieldStats struct {
	Count         int     `json:"count"`
	DistinctCount int     `json:"distinctCount"`
	NullCount     int     `json:"nullCount"`
	NanCount      int     `json:"nanCount"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Mean          float64 `json:"mean"`
	Stddev        float64 `json:"stddev"`
}

// ImportJob mirrors the service's view of one dataset import. It mutates only
// through polling and never after a terminal status.
type ImportJob struct {
	ID              string                `json:"jobId"`
	JobName         string                `json:"jobName"`
	DatasetID       string                `json:"datasetId"`
	SourceLocation  string                `json:"sourceLocation"`
	Status          Status                `json:"status"`
	Message         string                `json:"message,omitempty"`
	FieldStatistics map[string]FieldStats `json:"fieldStatistics,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	CompletedAt     time.Time             `json:"completedAt"`
}

type DatasetGroup struct {
	ID        string    `json:"groupId"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
}

type Dataset struct {
	ID          string        `json:"datasetId"`
	Name        string        `json:"name"`
	GroupID     string        `json:"groupId"`
	DatasetType string        `json:"datasetType"`
	Frequency   string        `json:"frequency"`
	Schema      schema.Schema `json:"schema"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type CreateDatasetGroupRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

type CreateDatasetRequest struct {
	Name        string        `json:"name"`
	GroupID     string        `json:"groupId"`
	DatasetType string        `json:"datasetType"`
	Frequency   string        `json:"frequency"`
	Schema      schema.Schema `json:"schema"`
}

type CreateImportJobRequest struct {
	JobName         string `json:"jobName"`
	DatasetID       string `json:"datasetId"`
	SourceLocation  string `json:"sourceLocation"`
	TimestampFormat string `json:"timestampFormat,omitempty"`
}
