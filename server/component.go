// Package server hosts the HTTP API over the analysis and workflow
// components.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sl5234/daylytics/config"
)

// Lifecycle states. Transitions go through CompareAndSwap so a double
// Start or a Stop during startup cannot race.
const (
	stateStopped int32 = iota
	stateStarting
	stateRunning
	stateStopping
)

func stateName(state int32) string {
	switch state {
	case stateStarting:
		return "starting"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// HealthStatus reports the component's state.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Component runs the HTTP server as a start/stoppable unit.
type Component struct {
	cfg     config.ServerConfig
	handler *Handler
	logger  *slog.Logger

	state     atomic.Int32
	startTime time.Time
	addr      string
	srv       *http.Server
}

// NewComponent creates the server component. The handler's health
// endpoint reports this component unless it was already wired to
// another source.
func NewComponent(cfg config.ServerConfig, handler *Handler, logger *slog.Logger) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Component{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
	if handler.health == nil {
		handler.health = c.Health
	}
	return c
}

// Start binds the listener and serves in the background. It fails fast
// when the address cannot be bound.
func (c *Component) Start(_ context.Context) error {
	if !c.state.CompareAndSwap(stateStopped, stateStarting) {
		return fmt.Errorf("server already running")
	}

	mux := http.NewServeMux()
	c.handler.RegisterHTTPHandlers(c.cfg.PathPrefix, mux)

	listener, err := net.Listen("tcp", c.cfg.Addr())
	if err != nil {
		c.state.Store(stateStopped)
		return fmt.Errorf("listen on %s: %w", c.cfg.Addr(), err)
	}

	c.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.addr = listener.Addr().String()
	c.startTime = time.Now()
	c.state.Store(stateRunning)

	go func() {
		if err := c.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("http server failed", "error", err)
		}
	}()

	c.logger.Info("http server started",
		"addr", c.addr,
		"prefix", c.cfg.PathPrefix)
	return nil
}

// Stop shuts the server down gracefully, waiting up to timeout for
// in-flight requests. Stopping a stopped component is a no-op.
func (c *Component) Stop(timeout time.Duration) error {
	if !c.state.CompareAndSwap(stateRunning, stateStopping) {
		return nil
	}
	defer c.state.Store(stateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	c.logger.Info("http server stopped")
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (c *Component) Addr() string {
	if c.state.Load() != stateRunning {
		return ""
	}
	return c.addr
}

// Health reports the lifecycle state and uptime.
func (c *Component) Health() HealthStatus {
	state := c.state.Load()
	h := HealthStatus{
		Healthy:   state == stateRunning,
		Status:    stateName(state),
		LastCheck: time.Now().UTC(),
	}
	if state == stateRunning {
		h.Uptime = time.Since(c.startTime).Round(time.Second).String()
	}
	return h
}
