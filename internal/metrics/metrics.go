package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulkload_chunks_committed_total",
		Help: "Number of chunk transactions committed",
	})
	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulkload_rows_inserted_total",
		Help: "Number of rows made visible by committed chunks",
	})
	ChunkRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulkload_chunk_rollbacks_total",
		Help: "Number of chunk transactions rolled back after a failed insert or commit",
	})
	ChunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulkload_chunk_duration_seconds",
		Help:    "Time spent preparing, executing and committing one chunk",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
	})
	PhaseDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkload_phase_duration_seconds",
			Help: "Wall-clock duration of the last run's phases",
		},
		[]string{"phase"},
	)
)

const (
	PhaseMigrate = "migrate"
	PhaseLoad    = "load"
	PhaseProbe   = "probe"
)

func Init() {
	for _, phase := range []string{PhaseMigrate, PhaseLoad, PhaseProbe} {
		PhaseDuration.WithLabelValues(phase)
	}
}

func ObserveChunk(rows int, d time.Duration) {
	ChunksCommitted.Inc()
	RowsInserted.Add(float64(rows))
	ChunkDuration.Observe(d.Seconds())
}

func IncRollback() {
	ChunkRollbacks.Inc()
}

func SetPhase(phase string, d time.Duration) {
	PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// WriteTextfile dumps every registered collector in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
