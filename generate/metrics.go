package generate

import (
	"time"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives build statistics. NoopRecorder is the default.
type Recorder interface {
	PathGenerated(typ routes.RouteType, d time.Duration)
	PageSkipped(reason string)
}

type NoopRecorder struct{}

func (NoopRecorder) PathGenerated(routes.RouteType, time.Duration) {}
func (NoopRecorder) PageSkipped(string)                            {}

type PrometheusRecorder struct {
	paths    *prometheus.CounterVec
	duration prometheus.Histogram
	skipped  *prometheus.CounterVec
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		paths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitegen",
			Name:      "paths_generated_total",
			Help:      "Paths written to the output directory, by route type.",
		}, []string{"type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sitegen",
			Name:      "render_duration_seconds",
			Help:      "Time to render and write a single path.",
			Buckets:   prometheus.DefBuckets,
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitegen",
			Name:      "pages_skipped_total",
			Help:      "Pages not generated, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(r.paths, r.duration, r.skipped)
	}
	return r
}

func (r *PrometheusRecorder) PathGenerated(typ routes.RouteType, d time.Duration) {
	r.paths.WithLabelValues(string(typ)).Inc()
	r.duration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) PageSkipped(reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}
