package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tsprep/internal/events"
	"tsprep/internal/forecast"
	"tsprep/internal/manifest"
	"tsprep/internal/metrics"
	"tsprep/internal/registry"
	"tsprep/internal/schema"
)

// Config holds CLI flags for submit.
type Config struct {
	Endpoint string
	// Input
	ManifestDir string
	File        string
	ValueColumn string
	// Service resources
	GroupName       string
	Ensure          bool
	TargetDataset   string
	RelatedDataset  string
	JobPrefix       string
	TimestampFormat string
	// Poll policy
	PollInterval time.Duration
	MaxWait      time.Duration
	MaxAttempts  int
	// Registry
	RegistryBackend string // memory|pebble|badger
	RegistryDir     string
	ExportRegistry  string
	RebuildEvents   string
	// Event sinks
	EventsSink     string // file|kafka|both|none
	EventsDir      string
	TopicEvents    string
	KafkaBootstrap string
	// Observability
	HTTPAddr string
}

func main() {
	logger := logrus.New()
	cfg := readFlags()
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("submit failed")
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Endpoint, "endpoint", "http://localhost:8800", "forecasting service endpoint")
	flag.StringVar(&cfg.ManifestDir, "manifest-dir", "./out", "directory holding the latest prepare manifest")
	flag.StringVar(&cfg.File, "file", "", "submit one target file directly instead of reading the manifest")
	flag.StringVar(&cfg.ValueColumn, "value-column", "target_value", "target value column name for -file mode")
	flag.StringVar(&cfg.GroupName, "group-name", "electricity", "dataset group name")
	flag.BoolVar(&cfg.Ensure, "ensure", false, "create the dataset group and datasets before the imports")
	flag.StringVar(&cfg.TargetDataset, "target-dataset", "", "existing target dataset id (without -ensure)")
	flag.StringVar(&cfg.RelatedDataset, "related-dataset", "", "existing related dataset id (without -ensure)")
	flag.StringVar(&cfg.JobPrefix, "job-prefix", "electricity", "import job name prefix")
	flag.StringVar(&cfg.TimestampFormat, "timestamp-format", "", "override the service timestamp format")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", forecast.DefaultPollInterval, "sleep between status polls")
	flag.DurationVar(&cfg.MaxWait, "max-wait", 0, "total wait budget per job; 0 waits forever")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", 0, "describe call budget per job; 0 is unbounded")
	flag.StringVar(&cfg.RegistryBackend, "registry", "pebble", "registry backend: memory|pebble|badger")
	flag.StringVar(&cfg.RegistryDir, "registry-dir", "./data/registry", "registry directory for persistent backends")
	flag.StringVar(&cfg.ExportRegistry, "export-registry", "", "write a JSON dump of the registry to this path after the run")
	flag.StringVar(&cfg.RebuildEvents, "rebuild-events", "", "rebuild the registry from this event log and exit")
	flag.StringVar(&cfg.EventsSink, "events-sink", "file", "lifecycle event sink: file|kafka|both|none")
	flag.StringVar(&cfg.EventsDir, "events-dir", "./events", "event log directory for file sink")
	flag.StringVar(&cfg.TopicEvents, "topic-events", "tsprep.job-events", "kafka topic for lifecycle events")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", "", "kafka bootstrap servers")
	flag.StringVar(&cfg.HTTPAddr, "http", "", "listen address for /metrics and /healthz; empty disables")
	flag.Parse()
	return cfg
}

func run(cfg Config, logger *logrus.Logger) error {
	store, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.RebuildEvents != "" {
		res, err := registry.RebuildFromFile(store, cfg.RebuildEvents)
		if err != nil {
			return fmt.Errorf("rebuild registry: %w", err)
		}
		logger.WithFields(logrus.Fields{"applied": res.Applied, "skipped": res.Skipped}).Info("registry rebuilt from events")
		if cfg.ExportRegistry != "" {
			if err := registry.Export(store, cfg.ExportRegistry); err != nil {
				return fmt.Errorf("export registry: %w", err)
			}
		}
		return nil
	}

	mreg := metrics.NewRegistry()
	if cfg.HTTPAddr != "" {
		go func() {
			http.Handle("/metrics", mreg.Handler())
			http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
			})
			_ = http.ListenAndServe(cfg.HTTPAddr, nil)
		}()
	}

	ew, err := buildEventsSink(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, freq, err := loadEntries(cfg)
	if err != nil {
		return err
	}

	client := forecast.NewClient(cfg.Endpoint, logger, mreg)
	datasetFor, err := resolveDatasets(ctx, cfg, client, entries, freq)
	if err != nil {
		return err
	}

	sub := forecast.NewSubmitter(client, store, ew, mreg, logger)
	policy := forecast.TimeoutPolicy{Interval: cfg.PollInterval, MaxWait: cfg.MaxWait, MaxAttempts: cfg.MaxAttempts}

	for _, entry := range entries {
		dsID := datasetFor[entry.DatasetType]
		if dsID == "" {
			return fmt.Errorf("no dataset id for %s; pass -ensure or the dataset flags", entry.DatasetType)
		}
		jobName := fmt.Sprintf("%s_%s_import", cfg.JobPrefix, suffixFor(entry.DatasetType))
		logger.WithFields(logrus.Fields{"job": jobName, "file": entry.Path, "dataset": dsID}).Info("submitting import")

		job, err := sub.Run(ctx, forecast.SubmitRequest{
			JobName:         jobName,
			DatasetID:       dsID,
			SourceLocation:  entry.Path,
			TimestampFormat: cfg.TimestampFormat,
			Policy:          policy,
		})
		if job != nil {
			logStatistics(logger, jobName, job.FieldStatistics)
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", jobName, err)
		}
	}

	if cfg.ExportRegistry != "" {
		if err := registry.Export(store, cfg.ExportRegistry); err != nil {
			return fmt.Errorf("export registry: %w", err)
		}
		logger.WithField("path", cfg.ExportRegistry).Info("registry exported")
	}
	return nil
}

func openRegistry(cfg Config) (registry.Store, error) {
	switch cfg.RegistryBackend {
	case "memory":
		return registry.NewInMemoryStore(), nil
	case "pebble", "":
		s, err := registry.NewPebbleStore(cfg.RegistryDir)
		if err != nil {
			return nil, fmt.Errorf("open pebble registry: %w", err)
		}
		return s, nil
	case "badger":
		s, err := registry.NewBadgerStore(cfg.RegistryDir)
		if err != nil {
			return nil, fmt.Errorf("open badger registry: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}
}

func buildEventsSink(cfg Config) (events.Writer, error) {
	var ws []events.Writer
	switch cfg.EventsSink {
	case "none":
		return nil, nil
	case "file", "", "both":
		fw, err := events.NewFileWriter(cfg.EventsDir, "jobs.jsonl")
		if err != nil {
			return nil, fmt.Errorf("init event log: %w", err)
		}
		ws = append(ws, fw)
	case "kafka":
	default:
		return nil, fmt.Errorf("unknown events sink %q", cfg.EventsSink)
	}
	if cfg.EventsSink == "kafka" || cfg.EventsSink == "both" {
		if cfg.KafkaBootstrap == "" {
			return nil, fmt.Errorf("kafka events sink needs -kafka-bootstrap")
		}
		ws = append(ws, events.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicEvents))
	}
	if len(ws) == 1 {
		return ws[0], nil
	}
	return events.NewMultiWriter(ws...), nil
}

// loadEntries returns the files to import, target first, plus the series
// frequency. -file mode bypasses the manifest for a one-off target import.
func loadEntries(cfg Config) ([]manifest.FileEntry, time.Duration, error) {
	if cfg.File != "" {
		entry := manifest.FileEntry{
			Path:        cfg.File,
			DatasetType: forecast.DatasetTypeTarget,
			Schema:      schema.Target(cfg.ValueColumn),
		}
		return []manifest.FileEntry{entry}, time.Hour, nil
	}
	m, err := manifest.NewFilesystemManifest(cfg.ManifestDir).ReadLatest()
	if err != nil {
		return nil, 0, fmt.Errorf("read manifest: %w", err)
	}
	if len(m.Files) == 0 {
		return nil, 0, fmt.Errorf("manifest %s lists no files", m.RunID)
	}
	freq, err := time.ParseDuration(m.Frequency)
	if err != nil {
		return nil, 0, fmt.Errorf("manifest frequency %q: %w", m.Frequency, err)
	}
	entries := append([]manifest.FileEntry(nil), m.Files...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DatasetType == forecast.DatasetTypeTarget && entries[j].DatasetType != forecast.DatasetTypeTarget
	})
	return entries, freq, nil
}

// resolveDatasets maps dataset types to dataset ids, creating the group and
// datasets when -ensure is set.
func resolveDatasets(ctx context.Context, cfg Config, client *forecast.Client, entries []manifest.FileEntry, freq time.Duration) (map[string]string, error) {
	ids := map[string]string{
		forecast.DatasetTypeTarget:  cfg.TargetDataset,
		forecast.DatasetTypeRelated: cfg.RelatedDataset,
	}
	if !cfg.Ensure {
		return ids, nil
	}
	dg, err := client.CreateDatasetGroup(ctx, forecast.CreateDatasetGroupRequest{Name: cfg.GroupName, Domain: forecast.DomainCustom})
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		ds, err := client.CreateDataset(ctx, forecast.CreateDatasetRequest{
			Name:        fmt.Sprintf("%s_%s", cfg.GroupName, suffixFor(entry.DatasetType)),
			GroupID:     dg.ID,
			DatasetType: entry.DatasetType,
			Frequency:   freqCode(freq),
			Schema:      entry.Schema,
		})
		if err != nil {
			return nil, err
		}
		ids[entry.DatasetType] = ds.ID
	}
	return ids, nil
}

func suffixFor(datasetType string) string {
	return strings.ToLower(strings.TrimSuffix(datasetType, "_TIME_SERIES"))
}

// freqCode maps a Go duration to the service's frequency token.
func freqCode(d time.Duration) string {
	switch d {
	case time.Minute:
		return "1min"
	case 5 * time.Minute:
		return "5min"
	case 10 * time.Minute:
		return "10min"
	case 15 * time.Minute:
		return "15min"
	case 30 * time.Minute:
		return "30min"
	case time.Hour:
		return "H"
	case 24 * time.Hour:
		return "D"
	case 7 * 24 * time.Hour:
		return "W"
	default:
		return "H"
	}
}

func logStatistics(logger *logrus.Logger, jobName string, stats map[string]forecast.FieldStats) {
	if len(stats) == 0 {
		return
	}
	cols := make([]string, 0, len(stats))
	for name := range stats {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	for _, name := range cols {
		fs := stats[name]
		logger.WithFields(logrus.Fields{
			"job":      jobName,
			"column":   name,
			"count":    fs.Count,
			"distinct": fs.DistinctCount,
			"nulls":    fs.NullCount,
			"nans":     fs.NanCount,
			"min":      fs.Min,
			"max":      fs.Max,
			"mean":     fs.Mean,
			"stddev":   fs.Stddev,
		}).Info("field statistics")
	}
}
