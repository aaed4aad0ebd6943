// Package metrics exposes audit events and API traffic as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/docutag/linkaudit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a linkaudit.Observer recording every audit event
type Metrics struct {
	ToolsProcessed     *prometheus.CounterVec
	Validations        *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	ContentFetches     *prometheus.CounterVec
	Replacements       *prometheus.CounterVec
	Analyses           *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers the collectors with reg under namespace
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ToolsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tools_processed_total",
			Help:      "Tools processed, by operation.",
		}, []string{"operation"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Link validations, by field and classification.",
		}, []string{"field", "class", "reachable"}),
		ValidationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating one link.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"field"}),
		ContentFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_fetches_total",
			Help:      "Content fetches, by result.",
		}, []string{"result"}),
		Replacements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replacements_total",
			Help:      "Replacement searches for broken links, by field and result.",
		}, []string{"field", "result"}),
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Content analyses, by field and verdict.",
		}, []string{"field", "verdict"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests, by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// OnEvent implements linkaudit.Observer
func (m *Metrics) OnEvent(e linkaudit.Event) {
	field := ""
	if e.HasField {
		field = e.Field.Column()
	}

	switch e.Kind {
	case linkaudit.EventToolStarted:
		m.ToolsProcessed.WithLabelValues(e.Detail).Inc()
	case linkaudit.EventValidated:
		if e.Outcome == nil {
			return
		}
		m.Validations.WithLabelValues(field, string(e.Outcome.Class), strconv.FormatBool(e.Outcome.Reachable)).Inc()
		m.ValidationDuration.WithLabelValues(field).Observe(e.Duration.Seconds())
	case linkaudit.EventContentFetched:
		m.ContentFetches.WithLabelValues("ok").Inc()
	case linkaudit.EventContentUnavailable:
		m.ContentFetches.WithLabelValues("unavailable").Inc()
	case linkaudit.EventReplacementFound, linkaudit.EventAlternativeFound:
		m.Replacements.WithLabelValues(field, "found").Inc()
	case linkaudit.EventReplacementNotFound, linkaudit.EventAlternativeMissing:
		m.Replacements.WithLabelValues(field, "not_found").Inc()
	case linkaudit.EventAnalyzed:
		m.Analyses.WithLabelValues(field, string(e.Verdict)).Inc()
	}
}

// statusRecorder captures the response status for the request metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (m *Metrics) Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var _ linkaudit.Observer = (*Metrics)(nil)
