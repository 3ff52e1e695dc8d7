package scenarios

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sl5234/daylytics/analysis"
	appconfig "github.com/sl5234/daylytics/config"
	"github.com/sl5234/daylytics/metrics"
	"github.com/sl5234/daylytics/server"
	"github.com/sl5234/daylytics/test/e2e/client"
	"github.com/sl5234/daylytics/toggl"
	"github.com/sl5234/daylytics/workflow"
)

// exportDate is the day every harness fixture entry lands on.
const exportDate = "2026-08-20"

// exportCSV is the Toggl export the harness serves. Per-category
// seconds for 2026-08-20: Fitness 3600, Work 7200, Learning 1800,
// Sleep 28800 (the overnight entry counts toward its start date).
const exportCSV = `User,Email,Project,Description,Start date,Start time,End date,End time,Duration,Tags
sl,sl@example.com,Health,Morning gym workout,2026-08-20,07:00:00,2026-08-20,08:00:00,01:00:00,fitness
sl,sl@example.com,Work,Team meeting,2026-08-20,09:00:00,2026-08-20,11:00:00,02:00:00,
sl,sl@example.com,Learning,Read systems paper,2026-08-20,20:00:00,2026-08-20,20:30:00,00:30:00,reading
sl,sl@example.com,,Sleep,2026-08-20,22:30:00,2026-08-21,06:30:00,08:00:00,
`

// serverHarness runs a daylytics server in-process against a CSV
// export fixture and a CSV metrics sink, both in a temp directory.
// Build it, hand a planner to start, drive the API, then stop.
type serverHarness struct {
	dir      string
	sinkPath string
	logger   *slog.Logger

	service  *analysis.Service
	executor *workflow.Executor

	component *server.Component
	api       *client.HTTPClient
}

// newServerHarness writes the export fixture and wires the analysis
// pipeline. The server is not started until start is called, so LLM
// scenarios can build a planner around the harness executor first.
func newServerHarness() (*serverHarness, error) {
	dir, err := os.MkdirTemp("", "daylytics-e2e-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	h := &serverHarness{
		dir:      dir,
		sinkPath: filepath.Join(dir, "metrics.csv"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	exportPath := filepath.Join(dir, "export.csv")
	if err := os.WriteFile(exportPath, []byte(exportCSV), 0o644); err != nil {
		h.cleanup()
		return nil, fmt.Errorf("write export fixture: %w", err)
	}

	source, err := toggl.NewFileSource(appconfig.TogglConfig{
		Timezone:    "UTC",
		ExportGlobs: []string{exportPath},
	}, h.logger)
	if err != nil {
		h.cleanup()
		return nil, fmt.Errorf("create file source: %w", err)
	}

	svc, err := analysis.NewService(analysis.ServiceConfig{
		Source:   source,
		Rules:    analysis.NewRuleCategorizer(nil, h.logger),
		Sink:     metrics.NewCSVSink(h.sinkPath, h.logger),
		Timezone: "UTC",
		Logger:   h.logger,
	})
	if err != nil {
		h.cleanup()
		return nil, fmt.Errorf("create analysis service: %w", err)
	}

	h.service = svc
	h.executor = workflow.NewExecutor(h.logger, workflow.BuiltinTools(svc)...)
	return h, nil
}

// start brings the server up on an ephemeral port and waits for it to
// report healthy.
func (h *serverHarness) start(ctx context.Context, planner workflow.Planner) error {
	handler := server.NewHandler(server.HandlerConfig{
		Service:  h.service,
		Planner:  planner,
		Executor: h.executor,
		SinkName: "csv",
		AppName:  "daylytics-e2e",
		Version:  "e2e",
		Logger:   h.logger,
	})

	h.component = server.NewComponent(appconfig.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		PathPrefix:      "/api/v1",
		ShutdownTimeout: 5 * time.Second,
	}, handler, h.logger)

	if err := h.component.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	h.api = client.NewHTTPClient("http://" + h.component.Addr() + "/api/v1")
	if err := h.api.WaitForHealthy(ctx); err != nil {
		return err
	}
	return nil
}

// stop shuts the server down and removes the temp directory.
func (h *serverHarness) stop() error {
	var err error
	if h.component != nil {
		err = h.component.Stop(5 * time.Second)
		h.component = nil
	}
	h.cleanup()
	return err
}

func (h *serverHarness) cleanup() {
	if h.dir != "" {
		os.RemoveAll(h.dir)
		h.dir = ""
	}
}

// sinkTotals parses the CSV sink file into per-category seconds.
func (h *serverHarness) sinkTotals() (map[string]int64, error) {
	f, err := os.Open(h.sinkPath)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sink file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sink file has no data rows")
	}

	// Header is timestamp,date,category,seconds.
	totals := make(map[string]int64, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != 4 {
			return nil, fmt.Errorf("sink row has %d columns, want 4", len(row))
		}
		seconds, err := strconv.ParseInt(row[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse seconds %q: %w", row[3], err)
		}
		totals[row[2]] += seconds
	}
	return totals, nil
}
