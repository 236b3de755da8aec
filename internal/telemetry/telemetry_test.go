package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "task_id", "t1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "tracker", entry["component"])
	assert.Equal(t, "t1", entry["task_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNilMetricsAreIgnored(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpdate("ok")
		m.ObserveSummary()
	})
}

func TestInitTracingStdout(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tr, err := InitTracing(ctx, TracingConfig{Exporter: "stdout", Writer: &buf, Version: "test"})
	require.NoError(t, err)
	_, span := tr.Tracer.Start(ctx, "progress.update_task")
	span.SetAttributes(AttrTaskID.String("t1"))
	span.End()
	require.NoError(t, tr.Shutdown(ctx))
	assert.Contains(t, buf.String(), "progress.update_task")
	assert.Contains(t, buf.String(), "tasktracker.task.id")
}

func TestInitTracingNoneAndUnknown(t *testing.T) {
	ctx := context.Background()
	tr, err := InitTracing(ctx, TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(ctx))

	_, err = InitTracing(ctx, TracingConfig{Exporter: "zipkin"})
	assert.Error(t, err)
}
