package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RulesWatcherConfig configures the rules file watcher.
type RulesWatcherConfig struct {
	// Path is the rules YAML file to watch.
	Path string

	// Debounce is how long to wait for more changes before reloading.
	Debounce time.Duration

	// Logger for logging events.
	Logger *slog.Logger
}

// RulesWatcher hot-reloads the rules file into a RuleCategorizer when
// it changes on disk. Parse failures keep the previous rules in place.
type RulesWatcher struct {
	path        string
	categorizer *RuleCategorizer
	watcher     *fsnotify.Watcher
	logger      *slog.Logger
	debounce    time.Duration

	// Debouncing: collapse bursts of events into one reload
	pendingMu sync.Mutex
	pending   bool

	// Content hash for change detection
	hashMu   sync.Mutex
	lastHash string
}

// NewRulesWatcher creates a watcher that swaps reloaded rules into the
// categorizer.
func NewRulesWatcher(cfg RulesWatcherConfig, categorizer *RuleCategorizer) (*RulesWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}

	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	return &RulesWatcher{
		path:        abs,
		categorizer: categorizer,
		watcher:     fsw,
		logger:      logger,
		debounce:    debounce,
	}, nil
}

// Start begins watching the rules file. The containing directory is
// watched rather than the file itself, so editors that save by
// rename-and-replace are caught too.
func (w *RulesWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	// Seed the hash so an unchanged file does not trigger a reload.
	if data, err := os.ReadFile(w.path); err == nil {
		w.setHash(hashContent(data))
	}

	go w.processEvents(ctx)

	w.logger.Info("rules watcher started",
		"path", w.path,
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher.
func (w *RulesWatcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing.
func (w *RulesWatcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("rules watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleFSEvent marks a reload pending when the rules file changed.
func (w *RulesWatcher) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("rules file change detected", "op", event.Op.String())
}

// flushPending performs the reload when a change is pending.
func (w *RulesWatcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !pending {
		return
	}
	w.reload()
}

// reload re-reads the rules file and swaps it into the categorizer.
// Unreadable or invalid files keep the previous rules.
func (w *RulesWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("rules file unreadable, keeping previous rules",
			"path", w.path,
			"error", err)
		return
	}

	hash := hashContent(data)
	if !w.setHash(hash) {
		// Content unchanged, skip
		return
	}

	rules, err := ParseRuleSet(data)
	if err != nil {
		w.logger.Warn("rules file invalid, keeping previous rules",
			"path", w.path,
			"error", err)
		return
	}

	w.categorizer.SetRules(rules)
	w.logger.Info("rules reloaded",
		"rules", len(rules.Rules),
		"default_category", rules.DefaultCategory)
}

// setHash records the hash and reports whether it changed.
func (w *RulesWatcher) setHash(hash string) bool {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	if hash == w.lastHash {
		return false
	}
	w.lastHash = hash
	return true
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
