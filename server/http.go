package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/events"
	"github.com/sl5234/daylytics/metrics"
	"github.com/sl5234/daylytics/toggl"
	"github.com/sl5234/daylytics/workflow"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// HandlerConfig wires the HTTP handler's collaborators. Service is
// required; the rest degrade gracefully when absent.
type HandlerConfig struct {
	Service  *analysis.Service
	Planner  workflow.Planner
	Executor *workflow.Executor
	Events   *events.Publisher
	SinkName string
	AppName  string
	Version  string
	Logger   *slog.Logger
}

// Handler serves the JSON API.
type Handler struct {
	svc      *analysis.Service
	planner  workflow.Planner
	executor *workflow.Executor
	events   *events.Publisher
	sink     string
	service  string
	version  string
	health   func() HealthStatus
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := cfg.AppName
	if service == "" {
		service = "daylytics"
	}
	return &Handler{
		svc:      cfg.Service,
		planner:  cfg.Planner,
		executor: cfg.Executor,
		events:   cfg.Events,
		sink:     cfg.SinkName,
		service:  service,
		version:  cfg.Version,
		logger:   logger,
	}
}

// RegisterHTTPHandlers registers the API routes under prefix and the
// banner at the root.
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	prefix = strings.TrimSuffix(prefix, "/")
	mux.HandleFunc(prefix+"/analysis", h.handleAnalysis)
	mux.HandleFunc(prefix+"/plan", h.handlePlan)
	mux.HandleFunc(prefix+"/conversation", h.handleConversation)
	mux.HandleFunc(prefix+"/health", h.handleHealth)
	mux.HandleFunc("/", h.handleRoot)
}

// PlanRequest asks for a workflow without executing it.
type PlanRequest struct {
	Prompt string `json:"prompt"`
}

// PlanResponse carries the planned workflow.
type PlanResponse struct {
	Workflow *workflow.Workflow `json:"workflow"`
}

// ConversationRequest plans a workflow for the prompt and executes it
// with the given analysis parameters.
type ConversationRequest struct {
	Prompt    string `json:"prompt"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	UseLLM    bool   `json:"use_llm,omitempty"`
}

// ConversationResponse carries the executed workflow and its per-step
// results.
type ConversationResponse struct {
	RunID    string             `json:"run_id"`
	Status   string             `json:"status"`
	Workflow *workflow.Workflow `json:"workflow"`
	Results  map[string]any     `json:"results"`
}

// ErrorResponse is the standard error payload. Error is a stable
// machine-readable kind; Message is for humans.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleAnalysis handles POST {prefix}/analysis.
func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analysis.Request
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Run(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.publishCompleted(r, events.FromResult(result, h.sink))
	writeJSON(w, http.StatusOK, result)
}

// handlePlan handles POST {prefix}/plan: plan only, no execution.
func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.planner == nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "no planner configured")
		return
	}

	var req PlanRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "prompt is required")
		return
	}

	wf, err := h.planner.Plan(r.Context(), req.Prompt)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{Workflow: wf})
}

// handleConversation handles POST {prefix}/conversation: plan for the
// prompt, then execute the workflow with the request's parameters.
func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.planner == nil || h.executor == nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "no planner configured")
		return
	}

	var req ConversationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "prompt is required")
		return
	}

	wf, err := h.planner.Plan(r.Context(), req.Prompt)
	if err != nil {
		h.writeError(w, err)
		return
	}

	params := map[string]any{}
	if req.Date != "" {
		params["date"] = req.Date
	}
	if req.StartDate != "" {
		params["start_date"] = req.StartDate
	}
	if req.EndDate != "" {
		params["end_date"] = req.EndDate
	}
	if req.UseLLM {
		params["use_llm"] = true
	}

	execCtx, err := h.executor.Run(r.Context(), wf, params)
	if err != nil {
		h.writeError(w, err)
		return
	}

	runID := uuid.New().String()
	results := make(map[string]any, len(wf.Steps))
	for _, step := range wf.Steps {
		if result, ok := execCtx[step.Name]; ok {
			results[step.Name] = result
		}
	}

	if metricsData, ok := execCtx["metrics"].([]analysis.MetricsData); ok {
		dates, _ := execCtx["dates"].([]string)
		categories, _ := execCtx["categories"].(analysis.CategoryAssignment)
		h.publishCompleted(r, events.FromResult(&analysis.Result{
			RunID:      runID,
			Dates:      dates,
			Metrics:    metricsData,
			Categories: categories,
		}, h.sink))
	}

	writeJSON(w, http.StatusOK, ConversationResponse{
		RunID:    runID,
		Status:   "completed",
		Workflow: wf,
		Results:  results,
	})
}

// handleHealth handles GET {prefix}/health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := HealthStatus{Status: "unknown"}
	if h.health != nil {
		status = h.health()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRoot serves the service banner at exactly "/".
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "unknown"
	if h.health != nil {
		status = h.health().Status
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": h.service,
		"version": h.version,
		"status":  status,
	})
}

// decodeJSON reads a capped JSON body into dst, writing the error
// response itself when decoding fails.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// publishCompleted publishes the completion event. Failures are logged
// and never fail the request.
func (h *Handler) publishCompleted(r *http.Request, event events.AnalysisCompleted) {
	if err := h.events.PublishAnalysisCompleted(r.Context(), event); err != nil {
		h.logger.Warn("publishing analysis event failed",
			"run_id", event.RunID,
			"error", err)
	}
}

// writeError maps a pipeline error onto a status code and kind. Inner
// typed errors win over the workflow wrapper so a retrieval failure
// inside a workflow still reports as a retrieval problem.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr     *analysis.ValidationError
		retrievalErr      *toggl.RetrievalError
		categorizationErr *analysis.CategorizationError
		planningErr       *workflow.PlanningError
		emissionErr       *metrics.EmissionError
		workflowErr       *workflow.WorkflowError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, "validation_error", validationErr.Msg)
	case errors.As(err, &retrievalErr):
		writeJSONError(w, http.StatusBadGateway, "retrieval_error", err.Error())
	case errors.As(err, &categorizationErr):
		writeJSONError(w, http.StatusBadGateway, "categorization_error", err.Error())
	case errors.As(err, &planningErr):
		writeJSONError(w, http.StatusBadGateway, "planning_error", err.Error())
	case errors.As(err, &emissionErr):
		writeJSONError(w, http.StatusInternalServerError, "emission_error", err.Error())
	case errors.As(err, &workflowErr):
		writeJSONError(w, http.StatusInternalServerError, "workflow_error", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
