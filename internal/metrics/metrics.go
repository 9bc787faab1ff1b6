// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OCRFiles               *prometheus.CounterVec
	IndicatorValuesWritten prometheus.Counter
	Analyses               *prometheus.CounterVec
	StreamFragments        *prometheus.CounterVec
	JobsInFlight           prometheus.Gauge
	JobDuration            *prometheus.HistogramVec
	RequestDuration        *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, so tests can build as
// many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OCRFiles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkup_ocr_files_total",
			Help: "Report files sent for extraction, by outcome",
		}, []string{"status"}),
		IndicatorValuesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "checkup_indicator_values_written_total",
			Help: "Indicator values written to the time series",
		}),
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkup_analyses_total",
			Help: "Narrative analyses, by outcome",
		}, []string{"status"}),
		StreamFragments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkup_stream_fragments_total",
			Help: "Streamed content fragments, by stream kind",
		}, []string{"kind"}),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "checkup_jobs_in_flight",
			Help: "Background jobs currently running",
		}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkup_job_duration_seconds",
			Help:    "Background job duration",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkup_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
