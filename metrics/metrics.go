package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sapsteward"

// --- Command metrics ---

var (
	CommandTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "command_total",
		Help:      "Total number of vendor commands executed. Labels: result=success|nonzero|error.",
	}, []string{"tool", "result"})

	CommandDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Wall-clock duration of vendor commands.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	}, []string{"tool"})
)

// --- System replication metrics ---

var (
	SRState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sr_state",
		Help:      "Current system replication role (1=active). Labels: state=disabled|primary|secondary.",
	}, []string{"sid", "instance", "state"})

	SRStatusCode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sr_status_code",
		Help:      "Exit code of systemReplicationStatus.py (10=none .. 15=active).",
	}, []string{"sid", "instance"})
)

// --- Monitor health metrics ---

var (
	CheckLastRunTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "check_last_run_timestamp",
		Help:      "Unix timestamp of the last replication check.",
	}, []string{"sid", "instance"})

	CheckTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "check_total",
		Help:      "Total number of replication checks.",
	}, []string{"sid", "instance", "status"})
)

// Registry holds every sapsteward collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		// Commands
		CommandTotal,
		CommandDurationSeconds,
		// Replication
		SRState,
		SRStatusCode,
		// Monitor
		CheckLastRunTimestamp,
		CheckTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// --- Helper functions for recording metrics ---

// RecordCommand records one vendor command execution.
func RecordCommand(tool, result string, d time.Duration) {
	CommandTotal.With(prometheus.Labels{"tool": tool, "result": result}).Inc()
	CommandDurationSeconds.With(prometheus.Labels{"tool": tool}).Observe(d.Seconds())
}

// RecordReplicationState sets the active role label to 1 and the others to 0.
func RecordReplicationState(sid, instance, state string) {
	for _, s := range []string{"disabled", "primary", "secondary"} {
		val := float64(0)
		if s == state {
			val = 1
		}
		SRState.With(prometheus.Labels{"sid": sid, "instance": instance, "state": s}).Set(val)
	}
}

// RecordReplicationStatus records the raw status code.
func RecordReplicationStatus(sid, instance string, code int) {
	SRStatusCode.With(prometheus.Labels{"sid": sid, "instance": instance}).Set(float64(code))
}

// RecordCheck records the outcome of one monitor pass.
func RecordCheck(sid, instance, status string) {
	CheckLastRunTimestamp.With(prometheus.Labels{"sid": sid, "instance": instance}).Set(float64(time.Now().Unix()))
	CheckTotal.With(prometheus.Labels{"sid": sid, "instance": instance, "status": status}).Inc()
}
