package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/config"
)

// PushSink publishes per-category gauges to a Prometheus Pushgateway.
// Each emission replaces the metrics for its job and date grouping, so
// re-running a day updates it instead of duplicating it.
type PushSink struct {
	url       string
	job       string
	namespace string
	logger    *slog.Logger
}

// NewPushSink creates a sink pushing to the configured gateway.
func NewPushSink(cfg config.MetricsConfig, logger *slog.Logger) *PushSink {
	if logger == nil {
		logger = slog.Default()
	}
	job := cfg.Job
	if job == "" {
		job = "daylytics"
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "daylytics"
	}
	return &PushSink{
		url:       cfg.PushgatewayURL,
		job:       job,
		namespace: namespace,
		logger:    logger,
	}
}

func (s *PushSink) Name() string { return "pushgateway" }

// Emit pushes one day's gauges grouped by job and date. A non-2xx
// gateway response surfaces as an EmissionError.
func (s *PushSink) Emit(ctx context.Context, data analysis.MetricsData) error {
	seconds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      "category_seconds",
		Help:      "Tracked seconds per category for one day.",
	}, []string{"category"})
	share := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      "category_share",
		Help:      "Share of the day's tracked time per category.",
	}, []string{"category"})
	total := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      "total_seconds",
		Help:      "Total tracked seconds for one day.",
	})

	for category, secs := range data.Totals {
		seconds.WithLabelValues(category).Set(float64(secs))
	}
	for category, value := range data.Distribution {
		share.WithLabelValues(category).Set(value)
	}
	total.Set(float64(data.TotalSeconds))

	err := push.New(s.url, s.job).
		Collector(seconds).
		Collector(share).
		Collector(total).
		Grouping("date", data.Date).
		PushContext(ctx)
	if err != nil {
		return &EmissionError{Backend: "pushgateway", Err: err}
	}

	s.logger.Debug("metrics pushed",
		"url", s.url,
		"date", data.Date,
		"categories", len(data.Totals))
	return nil
}
