package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ssotgen/pkg/llm/llmerrors"
)

// MetricsRecorder records Prometheus metrics for draft generation requests.
type MetricsRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetricsRecorder creates a Prometheus-based metrics recorder.
// Metrics are registered on the default registry.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssotgen_llm_requests_total",
				Help: "Total number of draft generation requests by model, feature, artifact kind, and status",
			},
			[]string{"model", "feature_id", "kind", "status", "error_type"},
		),
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssotgen_llm_tokens_total",
				Help: "Total number of tokens used in draft generation requests",
			},
			[]string{"model", "feature_id", "kind", "type"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssotgen_llm_request_duration_seconds",
				Help:    "Duration of draft generation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "feature_id", "kind"},
		),
	}
}

// ObserveRequest records metrics for a completed draft request.
func (m *MetricsRecorder) ObserveRequest(
	model, featureID, kind string,
	promptTokens, outputTokens int,
	err error,
	duration time.Duration,
) {
	status := "success"
	errorType := ""
	if err != nil {
		status = "error"
		errorType = llmerrors.TypeOf(err).String()
	}

	m.requestsTotal.WithLabelValues(model, featureID, kind, status, errorType).Inc()

	if err == nil {
		m.tokensTotal.WithLabelValues(model, featureID, kind, "prompt").Add(float64(promptTokens))
		m.tokensTotal.WithLabelValues(model, featureID, kind, "completion").Add(float64(outputTokens))
	}

	m.requestDuration.WithLabelValues(model, featureID, kind).Observe(duration.Seconds())
}

// requestLabels carries per-request metric labels through the context so the
// metrics middleware can attribute requests to a feature and artifact kind.
type labelsKey struct{}

// RequestLabels identifies the feature and artifact kind of one draft request.
type RequestLabels struct {
	FeatureID string
	Kind      string
}

// WithRequestLabels attaches metric labels to a context.
func WithRequestLabels(ctx context.Context, labels RequestLabels) context.Context {
	return context.WithValue(ctx, labelsKey{}, labels)
}

// requestLabelsFrom extracts metric labels from a context.
func requestLabelsFrom(ctx context.Context) RequestLabels {
	if labels, ok := ctx.Value(labelsKey{}).(RequestLabels); ok {
		return labels
	}
	return RequestLabels{}
}

// MetricsMiddleware wraps a client with Prometheus metrics recording.
func MetricsMiddleware(recorder *MetricsRecorder) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				labels := requestLabelsFrom(ctx)
				recorder.ObserveRequest(
					next.ModelName(), labels.FeatureID, labels.Kind,
					resp.PromptTokens, resp.OutputTokens,
					err, time.Since(start),
				)
				return resp, err
			},
			next.ModelName,
		)
	}
}
