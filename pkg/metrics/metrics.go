// Package metrics records mesh generation counters with Prometheus
// collectors. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "cellmesh"

// Recorder holds the collectors for one registry.
type Recorder struct {
	registry *prometheus.Registry

	cellsGenerated prometheus.Counter
	cellsRemoved   prometheus.Counter
	nucleiDropped  prometheus.Counter
	refineSteps    prometheus.Counter
	refineRejected prometheus.Counter
	refineStalls   prometheus.Counter
	facetsPerCell  prometheus.Histogram
	workers        prometheus.Gauge
	phaseDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry, so
// several recorders can coexist in one process.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		cellsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_generated_total",
			Help:      "Cells returned by mesh generation",
		}),
		cellsRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_removed_total",
			Help:      "Cells dropped by conflict resolution",
		}),
		nucleiDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nuclei_dropped_total",
			Help:      "Nuclei dropped because they did not fit their cell",
		}),
		refineSteps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_steps_total",
			Help:      "Accepted refinement steps",
		}),
		refineRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_rejected_total",
			Help:      "Refinement candidates rejected by a constraint",
		}),
		refineStalls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_stalls_total",
			Help:      "Cells whose refinement stalled over budget",
		}),
		facetsPerCell: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cell_facets",
			Help:      "Facet count of each cell after refinement",
			Buckets:   []float64{8, 16, 32, 48, 64, 96, 128, 192, 256},
		}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refinement_workers",
			Help:      "Workers used by the last refinement run",
		}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of mesh generation phases",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"phase"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CellsGenerated adds n to the generated cell count.
func (r *Recorder) CellsGenerated(n int) {
	if r == nil {
		return
	}
	r.cellsGenerated.Add(float64(n))
}

// CellRemoved counts one conflict removal.
func (r *Recorder) CellRemoved() {
	if r == nil {
		return
	}
	r.cellsRemoved.Inc()
}

// NucleusDropped counts one nucleus that could not be placed.
func (r *Recorder) NucleusDropped() {
	if r == nil {
		return
	}
	r.nucleiDropped.Inc()
}

// CellRefined records the outcome of refining one cell.
func (r *Recorder) CellRefined(steps, rejected, facets int, stalled bool) {
	if r == nil {
		return
	}
	r.refineSteps.Add(float64(steps))
	r.refineRejected.Add(float64(rejected))
	r.facetsPerCell.Observe(float64(facets))
	if stalled {
		r.refineStalls.Inc()
	}
}

// Workers records the worker count of a refinement run.
func (r *Recorder) Workers(n int) {
	if r == nil {
		return
	}
	r.workers.Set(float64(n))
}

// PhaseTimer starts timing phase; call the returned func when it ends.
func (r *Recorder) PhaseTimer(phase string) func() {
	if r == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		r.phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

// Sample is one gathered metric value, flattened for display.
type Sample struct {
	Name  string  `json:"name"`
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
}

// Snapshot gathers the registry into sorted samples. Counters and gauges
// report their value; histograms report their sample count.
func (r *Recorder) Snapshot() ([]Sample, error) {
	if r == nil {
		return nil, nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Label: labelString(m.GetLabel())}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				s.Value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func labelString(pairs []*dto.LabelPair) string {
	var s string
	for i, p := range pairs {
		if i > 0 {
			s += ","
		}
		s += p.GetName() + "=" + p.GetValue()
	}
	return s
}
