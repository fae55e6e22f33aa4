package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_events_appended_total",
		Help: "Total number of events appended to the log",
	})

	BatchesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_batches_committed_total",
		Help: "Total number of write batches applied successfully",
	})

	BatchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_batch_failures_total",
		Help: "Total number of write batches rolled back after an I/O failure",
	})

	BytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_bytes_written_total",
		Help: "Total number of record bytes made durable",
	})

	AppendLatencyHist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventlog_append_latency_seconds",
		Help:    "Histogram of per-batch append latency",
		Buckets: prometheus.DefBuckets,
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventlog_write_queue_depth",
		Help: "Current number of batches waiting in the submission queue",
	})

	LogTail = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventlog_tail_bytes",
		Help: "Current tail offset of durable, complete data",
	})

	ReadsServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_reads_served_total",
		Help: "Total number of read requests served",
	})

	ReadChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_read_chunks_total",
		Help: "Total number of chunk windows fetched while serving reads",
	})

	MarkerRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_marker_rejections_total",
		Help: "Total number of reads rejected for an out-of-range marker",
	})

	RecoveryBackups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_recovery_backups_total",
		Help: "Total number of backup snapshots taken during startup recovery",
	})
)
