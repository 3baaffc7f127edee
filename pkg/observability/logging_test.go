package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"xyzzy", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestInitLogger_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(LogConfig{Level: "info", Format: "json", Service: "loand", Output: &buf})

	logger.Debug("hidden")
	logger.Info("loan approved", "loan_id", "L-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "loan approved", line["msg"])
	assert.Equal(t, "loand", line["service"])
	assert.Equal(t, "L-1", line["loan_id"])
	assert.Same(t, logger.Handler(), slog.Default().Handler())
}

func TestInitLogger_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(LogConfig{Level: "warn", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "loand"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 0.25, sampleRatio(0.25))
}

func TestInitMetrics_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	provider, handler, err := InitMetrics(MetricsConfig{ServiceName: "loand", Registry: reg})
	require.NoError(t, err)
	defer provider.Shutdown(context.Background()) //nolint:errcheck

	counter, err := provider.Meter("test").Int64Counter("loans_created")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loans_created")
}
