// Command mock-llm serves scripted chat completions for end-to-end
// runs. It answers the OpenAI chat endpoint from JSON fixture files,
// keyed by the "model" field of the request, so planner and categorizer
// traffic stays deterministic and offline.
//
// A model's fixtures form a script: numbered files play once each in
// order (planner.1.json, planner.2.json, ...), then the base file
// (planner.json) repeats forever. Serving a malformed reply ahead of a
// valid one exercises the caller's retry path.
//
// Assertions hook in over HTTP: /stats reports call counts, /requests
// returns captured request bodies.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// OpenAI chat wire shapes, trimmed to the fields the mock needs.

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// capture records one incoming request for later assertions.
type capture struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	CallIndex int       `json:"call_index"`
	Timestamp int64     `json:"timestamp"`
}

// server answers completions from per-model scripts and records every
// call it serves. Traffic volume is a handful of calls per scenario, so
// one mutex covers all state.
type server struct {
	mu       sync.Mutex
	scripts  map[string][]string // model name → ordered replies
	played   map[string]int      // model name → calls served
	captures map[string][]capture
	total    int64
}

func newServer(scripts map[string][]string) *server {
	return &server{
		scripts:  scripts,
		played:   make(map[string]int),
		captures: make(map[string][]capture),
	}
}

// next picks the reply for a call to model and records the call. The
// script advances one reply per call and sticks on the last. Lookup
// falls back to the name without its "mock-" prefix, so registries may
// use either form.
func (s *server) next(model string, msgs []message) (reply string, call int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script, found := s.scripts[model]
	if !found {
		script, found = s.scripts[strings.TrimPrefix(model, "mock-")]
	}
	if !found {
		return "", 0, false
	}

	s.total++
	call = s.played[model] + 1
	s.played[model] = call
	s.captures[model] = append(s.captures[model], capture{
		Model:     model,
		Messages:  msgs,
		CallIndex: call,
		Timestamp: time.Now().UnixMilli(),
	})

	idx := call - 1
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return script[idx], call, true
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request body: %v", err), http.StatusBadRequest)
		return
	}

	reply, call, ok := s.next(req.Model, req.Messages)
	if !ok {
		slog.Warn("no script for model", "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}
	slog.Info("served completion", "model", req.Model, "call", call)

	writeJSON(w, completionResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []choice{{
			Message:      message{Role: "assistant", Content: reply},
			FinishReason: "stop",
		}},
		Usage: usage{
			PromptTokens:     len(reply) / 4,
			CompletionTokens: len(reply) / 4,
			TotalTokens:      len(reply) / 2,
		},
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byModel := make(map[string]int64, len(s.played))
	for model, n := range s.played {
		byModel[model] = int64(n)
	}
	total := s.total
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"total_calls":    total,
		"calls_by_model": byModel,
	})
}

// handleRequests returns captured requests, optionally filtered by
// ?model= and ?call= (1-indexed).
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	call, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	out := make(map[string][]capture)
	for name, caps := range s.captures {
		if model != "" && name != model {
			continue
		}
		if call > 0 {
			for _, c := range caps {
				if c.CallIndex == call {
					out[name] = append(out[name], c)
				}
			}
			continue
		}
		out[name] = caps
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"requests_by_model": out})
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	s.mu.Lock()
	entries := make([]entry, 0, len(s.scripts))
	for name := range s.scripts {
		entries = append(entries, entry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"object": "list", "data": entries})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// loadScripts reads every .json file under dir into per-model scripts.
// Files must hold valid JSON so a typo in a fixture fails at startup
// rather than mid-scenario.
func loadScripts(dir string) (map[string][]string, error) {
	type numbered struct {
		n    int
		body string
	}
	ordered := make(map[string][]numbered)
	base := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}

		model, n, isNumbered := splitFixtureName(d.Name())
		if isNumbered {
			ordered[model] = append(ordered[model], numbered{n: n, body: string(data)})
		} else {
			base[model] = string(data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scripts := make(map[string][]string)
	for model, seq := range ordered {
		sort.Slice(seq, func(i, j int) bool { return seq[i].n < seq[j].n })
		for _, f := range seq {
			scripts[model] = append(scripts[model], f.body)
		}
	}
	for model, body := range base {
		scripts[model] = append(scripts[model], body)
	}

	if len(scripts) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return scripts, nil
}

// splitFixtureName parses "planner.2.json" into ("planner", 2, true)
// and "planner.json" into ("planner", 0, false).
func splitFixtureName(name string) (model string, n int, isNumbered bool) {
	stem := strings.TrimSuffix(name, ".json")
	i := strings.LastIndex(stem, ".")
	if i < 1 {
		return stem, 0, false
	}
	n, err := strconv.Atoi(stem[i+1:])
	if err != nil {
		return stem, 0, false
	}
	return stem[:i], n, true
}

func main() {
	dir := flag.String("fixtures", "", "directory of fixture response files")
	port := flag.Int("port", 11434, "listen port")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *dir == "" {
		*dir = os.Getenv("MOCK_LLM_FIXTURES")
	}
	if *dir == "" {
		*dir = "/fixtures"
	}

	scripts, err := loadScripts(*dir)
	if err != nil {
		slog.Error("load fixtures", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for model, script := range scripts {
		slog.Info("loaded script", "model", model, "replies", len(script))
	}

	s := newServer(scripts)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("mock llm listening", "addr", addr, "models", len(scripts))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
