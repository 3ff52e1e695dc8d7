// Package events publishes run lifecycle events to NATS. Publishing is
// best-effort: a missing connection skips silently and a failed publish
// never fails the request that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/config"
)

// SubjectAnalysisCompleted is the subject suffix for completed runs.
const SubjectAnalysisCompleted = "analysis.completed"

// AnalysisCompleted is published after a successful analysis run.
type AnalysisCompleted struct {
	RunID        string    `json:"run_id"`
	Dates        []string  `json:"dates"`
	TotalSeconds int64     `json:"total_seconds"`
	Categories   int       `json:"categories"`
	Sink         string    `json:"sink,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// FromResult builds the completion event for a run result.
func FromResult(result *analysis.Result, sink string) AnalysisCompleted {
	var total int64
	for _, m := range result.Metrics {
		total += m.TotalSeconds
	}
	distinct := make(map[string]bool)
	for _, category := range result.Categories {
		distinct[category] = true
	}
	return AnalysisCompleted{
		RunID:        result.RunID,
		Dates:        result.Dates,
		TotalSeconds: total,
		Categories:   len(distinct),
		Sink:         sink,
	}
}

// Conn is the slice of the NATS connection the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes events under a subject prefix.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// Connect dials NATS and wraps the connection in a publisher. An empty
// URL disables publishing and returns a nil publisher, which every
// method accepts.
func Connect(cfg config.EventsConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("daylytics"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}
	return NewPublisher(nc, cfg.SubjectPrefix, logger), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = "daylytics"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// PublishAnalysisCompleted publishes to <prefix>.analysis.completed.
// A nil publisher or nil connection skips silently.
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event AnalysisCompleted) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal analysis event: %w", err)
	}

	subject := p.prefix + "." + SubjectAnalysisCompleted
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}

	p.logger.Debug("event published", "subject", subject, "run_id", event.RunID)
	return nil
}

// Close drains the connection when the publisher owns a real one.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if nc, ok := p.conn.(*nats.Conn); ok {
		if err := nc.Drain(); err != nil {
			p.logger.Warn("draining nats connection failed", "error", err)
		}
	}
}
