package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/config"
	"github.com/sl5234/daylytics/workflow"
)

func newTestComponent(t *testing.T) *Component {
	t.Helper()

	svc, err := analysis.NewService(analysis.ServiceConfig{
		Source:   &stubSource{entries: testEntries()},
		Rules:    analysis.NewRuleCategorizer(nil, nil),
		Timezone: "UTC",
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	handler := NewHandler(HandlerConfig{
		Service:  svc,
		Planner:  workflow.StaticPlanner{},
		Executor: workflow.NewExecutor(testLogger(), workflow.BuiltinTools(svc)...),
		Version:  "test",
		Logger:   testLogger(),
	})

	cfg := config.ServerConfig{
		Host:       "127.0.0.1",
		Port:       0,
		PathPrefix: "/api/v1",
	}
	return NewComponent(cfg, handler, testLogger())
}

func TestComponentLifecycle(t *testing.T) {
	c := newTestComponent(t)

	assert.Empty(t, c.Addr())
	assert.False(t, c.Health().Healthy)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(time.Second)

	addr := c.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Healthy)
	assert.Equal(t, "running", status.Status)
	assert.NotEmpty(t, status.Uptime)

	health := c.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, "running", health.Status)
}

func TestComponentDoubleStart(t *testing.T) {
	c := newTestComponent(t)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(time.Second)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestComponentStop(t *testing.T) {
	c := newTestComponent(t)

	require.NoError(t, c.Start(context.Background()))
	addr := c.Addr()

	require.NoError(t, c.Stop(time.Second))

	assert.Empty(t, c.Addr())
	assert.False(t, c.Health().Healthy)

	_, err := http.Get("http://" + addr + "/api/v1/health")
	assert.Error(t, err)

	// Stopping again is a no-op.
	assert.NoError(t, c.Stop(time.Second))
}

func TestComponentRestart(t *testing.T) {
	c := newTestComponent(t)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(time.Second))

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(time.Second)

	assert.NotEmpty(t, c.Addr())
	assert.True(t, c.Health().Healthy)
}

func TestComponentHealthStates(t *testing.T) {
	c := newTestComponent(t)

	h := c.Health()
	assert.False(t, h.Healthy)
	assert.Equal(t, "stopped", h.Status)
	assert.Empty(t, h.Uptime)
	assert.False(t, h.LastCheck.IsZero())
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestComponentListenFailure(t *testing.T) {
	first := newTestComponent(t)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(time.Second)

	// Bind the second component to the port the first one holds.
	svc, err := analysis.NewService(analysis.ServiceConfig{
		Source:   &stubSource{},
		Rules:    analysis.NewRuleCategorizer(nil, nil),
		Timezone: "UTC",
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	handler := NewHandler(HandlerConfig{Service: svc, Logger: testLogger()})
	cfg := config.ServerConfig{Host: "127.0.0.1", PathPrefix: "/api/v1"}
	second := NewComponent(cfg, handler, testLogger())
	second.cfg.Host, second.cfg.Port = splitHostPort(t, first.Addr())

	err = second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")

	// A failed start leaves the component stoppable and restartable.
	assert.Equal(t, "stopped", second.Health().Status)
}
