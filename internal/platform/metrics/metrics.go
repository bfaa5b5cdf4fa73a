package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	AnalysesTotal      prometheus.Counter
	VisionCallsTotal   prometheus.Counter
	VisionFailures     prometheus.Counter
	SubmissionsByState *prometheus.CounterVec
	HighRiskTotal      prometheus.Counter
	UsageLevel         prometheus.Gauge
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_analyses_total",
			Help: "Total number of document analyses performed",
		}),
		VisionCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_vision_calls_total",
			Help: "Analyses that reached the vision extraction stage",
		}),
		VisionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_vision_failures_total",
			Help: "Vision extractions that exhausted every model candidate",
		}),
		SubmissionsByState: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_submissions_total",
			Help: "Document submissions partitioned by resulting status",
		}, []string{"status"}),
		HighRiskTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_high_risk_submissions_total",
			Help: "Submissions assessed as HIGH risk",
		}),
		UsageLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycgate_usage_calls",
			Help: "Inference calls recorded in the current session",
		}),
	}
}

func (m *Metrics) IncrementAnalyses()   { m.AnalysesTotal.Inc() }
func (m *Metrics) IncrementVisionCall() { m.VisionCallsTotal.Inc() }
func (m *Metrics) IncrementVisionFail() { m.VisionFailures.Inc() }
func (m *Metrics) IncrementHighRisk()   { m.HighRiskTotal.Inc() }

func (m *Metrics) RecordSubmission(status string) {
	m.SubmissionsByState.WithLabelValues(status).Inc()
}

func (m *Metrics) SetUsageCalls(total int) {
	m.UsageLevel.Set(float64(total))
}
