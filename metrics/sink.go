// Package metrics emits aggregated analysis results to a configurable
// backend: a Prometheus Pushgateway or an append-only local CSV file.
package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/config"
)

// Sink receives one day's aggregated metrics.
type Sink interface {
	Name() string
	Emit(ctx context.Context, data analysis.MetricsData) error
}

// EmissionError reports a failed metrics write, naming the backend.
type EmissionError struct {
	Backend string
	Err     error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("metrics: %s emission failed: %v", e.Backend, e.Err)
}

func (e *EmissionError) Unwrap() error {
	return e.Err
}

// New builds the sink the configuration selects.
func New(cfg config.MetricsConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Backend {
	case "csv":
		return NewCSVSink(cfg.CSVPath, logger), nil
	case "pushgateway":
		return NewPushSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", cfg.Backend)
	}
}
