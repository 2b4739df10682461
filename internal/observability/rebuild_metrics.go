package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rebuild outcomes used as the result label.
const (
	ResultOK         = "ok"
	ResultFailed     = "failed"
	ResultBusy       = "busy"
	ResultNoSchema   = "no_schema"
	ResultNoCapacity = "no_capacity"
)

// RebuildCollector exposes metrics for scenario rebuilds.
type RebuildCollector struct {
	gatherer prometheus.Gatherer

	Rebuilds         *prometheus.CounterVec
	RebuildDuration  prometheus.Histogram
	VariantDuration  *prometheus.HistogramVec
	ScenarioRoutes   *prometheus.GaugeVec
	ScenarioUnknown  *prometheus.GaugeVec
	ScenarioLengthM  *prometheus.GaugeVec
	InProgress       prometheus.Gauge
	RejectedDirs     prometheus.Gauge
	TotalUnaccounted prometheus.Gauge
}

// NewRebuildCollector registers rebuild metrics against the provided registerer.
func NewRebuildCollector(reg prometheus.Registerer) (*RebuildCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rebuilds, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routesynth_rebuilds_total",
		Help: "Scenario rebuilds, labeled by result.",
	}, []string{"result"}), "routesynth_rebuilds_total")
	if err != nil {
		return nil, err
	}
	rebuildDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "routesynth_rebuild_duration_seconds",
		Help:    "Duration of complete rebuilds including persistence.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}), "routesynth_rebuild_duration_seconds")
	if err != nil {
		return nil, err
	}
	variantDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routesynth_variant_synthesis_duration_seconds",
		Help:    "Duration of route synthesis and owner inference for one variant.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"variant"}), "routesynth_variant_synthesis_duration_seconds")
	if err != nil {
		return nil, err
	}
	routes, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routesynth_scenario_routes",
		Help: "Routes in the live scenario of each variant.",
	}, []string{"variant"}), "routesynth_scenario_routes")
	if err != nil {
		return nil, err
	}
	unknown, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routesynth_scenario_owners_unknown",
		Help: "Routes without an inferred owner in the live scenario of each variant.",
	}, []string{"variant"}), "routesynth_scenario_owners_unknown")
	if err != nil {
		return nil, err
	}
	length, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routesynth_scenario_length_meters",
		Help: "Total route length in the live scenario of each variant.",
	}, []string{"variant"}), "routesynth_scenario_length_meters")
	if err != nil {
		return nil, err
	}
	inProgress, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "routesynth_rebuild_in_progress",
		Help: "1 while a rebuild holds the rebuild lock.",
	}), "routesynth_rebuild_in_progress")
	if err != nil {
		return nil, err
	}
	rejected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "routesynth_rejected_directions",
		Help: "Directions excluded from the graph by the last rebuild.",
	}), "routesynth_rejected_directions")
	if err != nil {
		return nil, err
	}
	total, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "routesynth_total_unaccounted_cables",
		Help: "Unaccounted cable units seen by the last rebuild.",
	}), "routesynth_total_unaccounted_cables")
	if err != nil {
		return nil, err
	}

	return &RebuildCollector{
		gatherer:         gatherer,
		Rebuilds:         rebuilds,
		RebuildDuration:  rebuildDuration,
		VariantDuration:  variantDuration,
		ScenarioRoutes:   routes,
		ScenarioUnknown:  unknown,
		ScenarioLengthM:  length,
		InProgress:       inProgress,
		RejectedDirs:     rejected,
		TotalUnaccounted: total,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RebuildCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRebuild counts a finished rebuild attempt.
func (c *RebuildCollector) ObserveRebuild(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Rebuilds.WithLabelValues(result).Inc()
	if result == ResultOK || result == ResultNoCapacity {
		c.RebuildDuration.Observe(d.Seconds())
	}
}

// ObserveVariant records the synthesis time of one variant.
func (c *RebuildCollector) ObserveVariant(variant int, d time.Duration) {
	if c == nil {
		return
	}
	c.VariantDuration.WithLabelValues(strconv.Itoa(variant)).Observe(d.Seconds())
}

// SetScenario publishes the committed statistics of one variant.
func (c *RebuildCollector) SetScenario(variant, routes, unknown int, lengthM float64) {
	if c == nil {
		return
	}
	v := strconv.Itoa(variant)
	c.ScenarioRoutes.WithLabelValues(v).Set(float64(routes))
	c.ScenarioUnknown.WithLabelValues(v).Set(float64(unknown))
	c.ScenarioLengthM.WithLabelValues(v).Set(lengthM)
}

// ResetScenarios clears the per-variant gauges after scenarios were removed.
func (c *RebuildCollector) ResetScenarios() {
	if c == nil {
		return
	}
	c.ScenarioRoutes.Reset()
	c.ScenarioUnknown.Reset()
	c.ScenarioLengthM.Reset()
}

// SetInProgress flips the in-progress gauge.
func (c *RebuildCollector) SetInProgress(active bool) {
	if c == nil {
		return
	}
	if active {
		c.InProgress.Set(1)
	} else {
		c.InProgress.Set(0)
	}
}

// SetInput publishes what the last rebuild read.
func (c *RebuildCollector) SetInput(rejected, totalUnaccounted int) {
	if c == nil {
		return
	}
	c.RejectedDirs.Set(float64(rejected))
	c.TotalUnaccounted.Set(float64(totalUnaccounted))
}
