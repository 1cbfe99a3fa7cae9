package observability

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metric label names.
const (
	labelPhase   = "phase"
	labelStatus  = "status"
	labelSource  = "source"
	labelState   = "state"
	labelOutcome = "outcome"
)

// extractionBucketBoundaries cover sub-second API hits through
// minute-scale gallery crawls.
var extractionBucketBoundaries = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// PipelineMetrics holds the Prometheus instruments for one batch run.
// The registry is private to the process and dumped in text form at
// batch end.
type PipelineMetrics struct {
	registry *prometheus.Registry

	PropertiesProcessed *prometheus.CounterVec
	PhasesTotal         *prometheus.CounterVec
	ImagesDownloaded    *prometheus.CounterVec
	ImagesDeduplicated  prometheus.Counter
	CircuitTransitions  *prometheus.CounterVec
	ExtractionDuration  *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers all pipeline instruments on a
// fresh registry.
func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	pm := &PipelineMetrics{
		registry: registry,
		PropertiesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phxhomes_properties_processed_total",
			Help: "Properties processed by final outcome.",
		}, []string{labelOutcome}),
		PhasesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phxhomes_phases_total",
			Help: "Phase executions by phase and resulting status.",
		}, []string{labelPhase, labelStatus}),
		ImagesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phxhomes_images_downloaded_total",
			Help: "Images downloaded and persisted, by source.",
		}, []string{labelSource}),
		ImagesDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phxhomes_images_deduplicated_total",
			Help: "Images rejected as near-duplicates.",
		}),
		CircuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phxhomes_circuit_transitions_total",
			Help: "Circuit breaker transitions by source and new state.",
		}, []string{labelSource, labelState}),
		ExtractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phxhomes_extraction_duration_seconds",
			Help:    "Per-source extraction duration in seconds.",
			Buckets: extractionBucketBoundaries,
		}, []string{labelSource}),
	}

	registry.MustRegister(
		pm.PropertiesProcessed,
		pm.PhasesTotal,
		pm.ImagesDownloaded,
		pm.ImagesDeduplicated,
		pm.CircuitTransitions,
		pm.ExtractionDuration,
	)

	return pm
}

// DumpText writes the registry contents in Prometheus text exposition
// format, used for the batch-end metrics dump.
func (pm *PipelineMetrics) DumpText(w io.Writer) error {
	families, err := pm.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))

	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encode metric family %s: %w", family.GetName(), err)
		}
	}

	return nil
}
