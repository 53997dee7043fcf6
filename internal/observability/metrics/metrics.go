package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles exchange engine metrics.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RecordsExported prometheus.Counter
	FilesImported   prometheus.Counter
	RecordsImported prometheus.Counter
	FilesSkipped    prometheus.Counter
	FilesFailed     prometheus.Counter
	TransferRetries prometheus.Counter
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meterlink_runs_total",
				Help: "Total pipeline runs by direction and status",
			},
			[]string{"direction", "status"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meterlink_run_duration_seconds",
			Help:    "Exchange run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meterlink_records_exported_total",
			Help: "Total records written to outbound batch files",
		}),
		FilesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meterlink_files_imported_total",
			Help: "Total inbound files persisted and archived",
		}),
		RecordsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meterlink_records_imported_total",
			Help: "Total inbound records inserted",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meterlink_files_skipped_total",
			Help: "Total inbound files skipped as already processed",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meterlink_files_failed_total",
			Help: "Total inbound files that failed parse or persist",
		}),
		TransferRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meterlink_transfer_retries_total",
			Help: "Total transfer operation re-attempts",
		}),
	}
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RecordsExported,
		m.FilesImported,
		m.RecordsImported,
		m.FilesSkipped,
		m.FilesFailed,
		m.TransferRetries,
	)
	return m
}
