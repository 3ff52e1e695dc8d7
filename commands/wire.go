package commands

import (
	"fmt"
	"log/slog"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/config"
	"github.com/sl5234/daylytics/llm"
	"github.com/sl5234/daylytics/metrics"
	"github.com/sl5234/daylytics/model"
	"github.com/sl5234/daylytics/toggl"
)

// buildEntrySource creates the time entry source selected by
// toggl.source: the Track API client or a reader over local CSV exports.
func buildEntrySource(cfg *config.Config, logger *slog.Logger) (analysis.EntrySource, error) {
	switch cfg.Toggl.Source {
	case "export":
		source, err := toggl.NewFileSource(cfg.Toggl, logger)
		if err != nil {
			return nil, fmt.Errorf("create export source: %w", err)
		}
		logger.Debug("Using CSV export source", "globs", cfg.Toggl.ExportGlobs)
		return source, nil
	case "api", "":
		logger.Debug("Using Toggl API source", "base_url", cfg.Toggl.BaseURL)
		return toggl.NewClient(cfg.Toggl), nil
	default:
		return nil, fmt.Errorf("unknown toggl source %q", cfg.Toggl.Source)
	}
}

// buildRuleCategorizer loads the rules file when configured, otherwise
// the built-in defaults.
func buildRuleCategorizer(cfg *config.Config, logger *slog.Logger) (*analysis.RuleCategorizer, error) {
	if cfg.Rules.Path == "" {
		return analysis.NewRuleCategorizer(nil, logger), nil
	}

	rules, err := analysis.LoadRuleSet(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules from %s: %w", cfg.Rules.Path, err)
	}
	logger.Debug("Loaded categorization rules", "path", cfg.Rules.Path, "rules", len(rules.Rules))
	return analysis.NewRuleCategorizer(rules, logger), nil
}

// buildModelRegistry loads the registry file when configured, otherwise
// the built-in defaults.
func buildModelRegistry(cfg *config.Config, logger *slog.Logger) (*model.Registry, error) {
	if cfg.LLM.RegistryPath == "" {
		return model.NewDefaultRegistry(), nil
	}

	registry, err := model.LoadFromFile(cfg.LLM.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load model registry from %s: %w", cfg.LLM.RegistryPath, err)
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("model registry %s: %w", cfg.LLM.RegistryPath, err)
	}
	logger.Debug("Loaded model registry",
		"path", cfg.LLM.RegistryPath,
		"capabilities", len(registry.ListCapabilities()),
		"endpoints", len(registry.ListEndpoints()))
	return registry, nil
}

// buildAnalysisService assembles the full pipeline: source, rule and LLM
// categorizers, and optionally a metrics sink.
func buildAnalysisService(cfg *config.Config, withSink bool, logger *slog.Logger) (*analysis.Service, *analysis.RuleCategorizer, *llm.Client, error) {
	source, err := buildEntrySource(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	rules, err := buildRuleCategorizer(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	registry, err := buildModelRegistry(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	client := llm.NewClient(registry, llm.WithLogger(logger))
	categorizer := analysis.NewLLMCategorizer(client, rules, !cfg.LLM.DisableRuleFallback, logger)

	var sink analysis.MetricsSink
	if withSink {
		s, err := metrics.New(cfg.Metrics, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create metrics sink: %w", err)
		}
		logger.Debug("Using metrics sink", "backend", s.Name())
		sink = s
	}

	svc, err := analysis.NewService(analysis.ServiceConfig{
		Source:   source,
		Rules:    rules,
		LLM:      categorizer,
		Sink:     sink,
		Timezone: cfg.Toggl.Timezone,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create analysis service: %w", err)
	}

	return svc, rules, client, nil
}
