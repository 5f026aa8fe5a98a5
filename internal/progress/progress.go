// Package progress tracks the state of the current deployment or
// evaluation run for the status API and Prometheus.
package progress

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tongda/mmdeploy/pkg/types"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdeploy",
			Subsystem: "run",
			Name:      "total",
			Help:      "Total runs started, by codebase",
		},
		[]string{"codebase"},
	)

	samplesDone = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mmdeploy",
			Subsystem: "run",
			Name:      "samples_done",
			Help:      "Batches processed in the current run",
		},
	)

	samplesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mmdeploy",
			Subsystem: "run",
			Name:      "samples_total",
			Help:      "Total batches in the current run",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, samplesDone, samplesTotal)
}

// Tracker is a concurrency-safe snapshot of the active run. The zero
// value is an idle tracker.
type Tracker struct {
	mu     sync.Mutex
	active bool
	run    types.RunStatus
}

// Start begins tracking a new run; any previous run's state is
// replaced.
func (t *Tracker) Start(runID, codebase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	t.run = types.RunStatus{RunID: runID, Codebase: codebase, Stage: "loading"}
	runsTotal.WithLabelValues(codebase).Inc()
	samplesDone.Set(0)
	samplesTotal.Set(0)
}

// Stage records the run's current stage.
func (t *Tracker) Stage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Stage = stage
}

// Step records cumulative progress.
func (t *Tracker) Step(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Done, t.run.Total = done, total
	samplesDone.Set(float64(done))
	samplesTotal.Set(float64(total))
}

// Fail marks the run as failed.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	if err != nil {
		t.run.Error = err.Error()
	}
}

// Finish marks the run as done.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.run.Stage = "done"
}

// Snapshot returns the service state and the last known run; run is nil
// when nothing has ever started.
func (t *Tracker) Snapshot() (state string, run *types.RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.active:
		state = "running"
	case t.run.Error != "":
		state = "error"
	default:
		state = "idle"
	}
	if t.run.RunID == "" {
		return state, nil
	}
	r := t.run
	return state, &r
}
