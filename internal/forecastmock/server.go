// Package forecastmock emulates the forecasting service's HTTP surface for
// offline runs and tests: in-memory dataset tables, import jobs that advance
// one status stage per describe call, and genuine field statistics computed
// from the actual import file.
package forecastmock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"tsprep/internal/forecast"
)

type Config struct {
	// StepsToActive is how many IN_PROGRESS describes a job reports before
	// reaching a terminal state. The first describe always reports PENDING.
	StepsToActive int
	// FailWith forces every job to FAILED at the terminal stage, with this
	// diagnostic. Empty means jobs activate normally.
	FailWith string
}

type jobState struct {
	job       forecast.ImportJob
	describes int
}

// Server holds the emulator state. All tables sit behind one mutex; the
// pipeline is single-threaded but tests hit the server concurrently.
type Server struct {
	cfg Config
	log logrus.FieldLogger

	mu       sync.Mutex
	groups   map[string]forecast.DatasetGroup
	datasets map[string]forecast.Dataset
	jobs     map[string]*jobState
}

func NewServer(cfg Config, log logrus.FieldLogger) *Server {
	if cfg.StepsToActive <= 0 {
		cfg.StepsToActive = 2
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		groups:   make(map[string]forecast.DatasetGroup),
		datasets: make(map[string]forecast.Dataset),
		jobs:     make(map[string]*jobState),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/datasetgroups", s.createDatasetGroup).Methods(http.MethodPost)
	r.HandleFunc("/v1/datasets", s.createDataset).Methods(http.MethodPost)
	r.HandleFunc("/v1/datasetimportjobs", s.createImportJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/datasetimportjobs/{id}", s.describeImportJob).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func (s *Server) createDatasetGroup(w http.ResponseWriter, r *http.Request) {
	var req forecast.CreateDatasetGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("decode: %v", err))
		return
	}
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Domain == "" {
		req.Domain = forecast.DomainCustom
	}
	dg := forecast.DatasetGroup{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Domain:    req.Domain,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.groups[dg.ID] = dg
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"group": dg.ID, "name": dg.Name}).Info("dataset group created")
	writeJSON(w, http.StatusCreated, dg)
}

func (s *Server) createDataset(w http.ResponseWriter, r *http.Request) {
	var req forecast.CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("decode: %v", err))
		return
	}
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := req.Schema.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("schema: %v", err))
		return
	}
	if req.Frequency == "" {
		req.Frequency = "H"
	}
	ds := forecast.Dataset{
		ID:          uuid.NewString(),
		Name:        req.Name,
		GroupID:     req.GroupID,
		DatasetType: req.DatasetType,
		Frequency:   req.Frequency,
		Schema:      req.Schema,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.datasets[ds.ID] = ds
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"dataset": ds.ID, "type": ds.DatasetType}).Info("dataset created")
	writeJSON(w, http.StatusCreated, ds)
}

func (s *Server) createImportJob(w http.ResponseWriter, r *http.Request) {
	var req forecast.CreateImportJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("decode: %v", err))
		return
	}
	if req.JobName == "" || req.DatasetID == "" || req.SourceLocation == "" {
		writeErr(w, http.StatusBadRequest, "jobName, datasetId and sourceLocation are required")
		return
	}
	job := forecast.ImportJob{
		ID:             uuid.NewString(),
		JobName:        req.JobName,
		DatasetID:      req.DatasetID,
		SourceLocation: req.SourceLocation,
		Status:         forecast.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = &jobState{job: job}
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"job": job.ID, "name": job.JobName}).Info("import job created")
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) describeImportJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	st, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeErr(w, http.StatusNotFound, fmt.Sprintf("no import job %s", id))
		return
	}
	st.describes++
	s.advance(st)
	job := st.job
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, job)
}

// advance steps the job's visible status: PENDING on the first describe,
// IN_PROGRESS for the next StepsToActive describes, then terminal. A
// terminal job never changes again.
func (s *Server) advance(st *jobState) {
	if st.job.Status.Terminal() {
		return
	}
	switch {
	case st.describes <= 1:
		st.job.Status = forecast.StatusPending
	case st.describes <= 1+s.cfg.StepsToActive:
		st.job.Status = forecast.StatusInProgress
	default:
		s.finish(st)
	}
}

// finish resolves the terminal state: forced failure, unknown dataset,
// unreadable source, or a successful activation with real statistics.
func (s *Server) finish(st *jobState) {
	st.job.CompletedAt = time.Now().UTC()
	if s.cfg.FailWith != "" {
		st.job.Status = forecast.StatusFailed
		st.job.Message = s.cfg.FailWith
		return
	}
	ds, ok := s.datasets[st.job.DatasetID]
	if !ok {
		st.job.Status = forecast.StatusFailed
		st.job.Message = fmt.Sprintf("unknown dataset %s", st.job.DatasetID)
		return
	}
	stats, err := computeFieldStats(st.job.SourceLocation, ds.Schema)
	if err != nil {
		st.job.Status = forecast.StatusFailed
		st.job.Message = err.Error()
		s.log.WithError(err).WithField("job", st.job.ID).Warn("import failed")
		return
	}
	st.job.FieldStatistics = stats
	st.job.Status = forecast.StatusActive
	s.log.WithFields(logrus.Fields{"job": st.job.ID, "rows": stats[ds.Schema.Attributes[0].Name].Count}).Info("import job active")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
