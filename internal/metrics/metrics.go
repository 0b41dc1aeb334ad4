package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	statusTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_status_transitions_total",
		Help: "Workflow status transitions by entity and target status",
	}, []string{"entity", "status"})
	issuesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_issues_created_total",
		Help: "Issues raised by rejections, by severity",
	}, []string{"severity"})
	overdueIssues = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nexus_overdue_issues",
		Help: "Issues currently flagged overdue",
	})
	reportsGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_reports_generated_total",
		Help: "Report generation attempts by type and outcome",
	}, []string{"type", "outcome"})
	reportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexus_report_duration_seconds",
		Help:    "Time spent building a report",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexus_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status code",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
	panicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nexus_http_panics_total",
		Help: "Handler panics recovered by middleware",
	})

	registry = prometheus.NewRegistry()
)

func init() {
	Register(registry)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Register registers the collectors on r. The package registry is populated
// at init; call this for any additional registry.
func Register(r prometheus.Registerer) {
	r.MustRegister(statusTransitionsTotal, issuesCreatedTotal, overdueIssues,
		reportsGeneratedTotal, reportDuration, httpRequestDuration, panicsTotal)
}

// Handler exposes the package registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncStatusTransition counts a status change of an audit or form.
func IncStatusTransition(entity, status string) {
	statusTransitionsTotal.WithLabelValues(entity, status).Inc()
}

// IncIssueCreated counts a new issue.
func IncIssueCreated(severity string) { issuesCreatedTotal.WithLabelValues(severity).Inc() }

// SetOverdueIssues records the current overdue issue count.
func SetOverdueIssues(n float64) { overdueIssues.Set(n) }

// ObserveReport records a report build and its outcome ("ok", "no_data", "error").
func ObserveReport(reportType, outcome string, elapsed time.Duration) {
	reportsGeneratedTotal.WithLabelValues(reportType, outcome).Inc()
	reportDuration.WithLabelValues(reportType).Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route, code string, elapsed time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

// IncPanic counts a recovered panic.
func IncPanic() { panicsTotal.Inc() }
