// Package metrics records per-run counters and writes them in the Prometheus
// text exposition format, suitable for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clementsan/poresize/internal/models"
	"github.com/clementsan/poresize/pkg/covering"
)

const namespace = "poresize"

// Recorder holds the metrics of a single command invocation
type Recorder struct {
	registry *prometheus.Registry

	voxels   prometheus.Counter
	inPhase  prometheus.Counter
	examined prometheus.Counter
	accepted prometheus.Counter
	raised   prometheus.Counter
	duration prometheus.Gauge
}

// NewRecorder creates a recorder whose series carry the command and run labels
func NewRecorder(command, runID string) *Recorder {
	labels := prometheus.Labels{"command": command, "run": runID}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		voxels:   counter("voxels_scanned_total", "Voxels visited by the run."),
		inPhase:  counter("voxels_in_phase_total", "Voxels belonging to the analysed phase."),
		examined: counter("candidates_examined_total", "In-grid candidate cells inside a search box."),
		accepted: counter("candidates_accepted_total", "Candidate cells covered by an admissible ball."),
		raised:   counter("cells_raised_total", "Output cells whose value increased."),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the run.",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.voxels, r.inPhase, r.examined, r.accepted, r.raised, r.duration)
	return r
}

// ObserveCovering adds the counters of a covering-radius pass
func (r *Recorder) ObserveCovering(s covering.Stats) {
	r.voxels.Add(float64(s.Voxels))
	r.inPhase.Add(float64(s.InPhase))
	r.examined.Add(float64(s.Examined))
	r.accepted.Add(float64(s.Accepted))
	r.raised.Add(float64(s.Raised))
}

// ObserveVoxels adds a scan of total voxels of which inPhase matched
func (r *Recorder) ObserveVoxels(total, inPhase int) {
	r.voxels.Add(float64(total))
	r.inPhase.Add(float64(inPhase))
}

// SetDuration records the wall time of the run
func (r *Recorder) SetDuration(d time.Duration) {
	r.duration.Set(d.Seconds())
}

// WriteTextfile writes all series to path. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return models.WrapIO("write", path, err)
	}
	return nil
}
