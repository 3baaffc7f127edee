package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

func serve(t *testing.T, checks map[string]Check, metrics http.Handler, path string) (int, healthBody) {
	t.Helper()
	mux := http.NewServeMux()
	NewHealthHandler("loand", checks, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(mux, metrics)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body healthBody
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestLiveness(t *testing.T) {
	code, body := serve(t, nil, nil, "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "loand", body.Service)
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all checks pass", func(t *testing.T) {
		code, body := serve(t, map[string]Check{"postgres": ok, "redis": ok}, nil, "/readyz")

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
	})

	t.Run("one failing check", func(t *testing.T) {
		down := func(context.Context) error { return errors.New("connection refused") }

		code, body := serve(t, map[string]Check{"postgres": ok, "redis": down}, nil, "/readyz")

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "connection refused", body.Checks["redis"])
	})
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# HELP up\n")
	})

	code, _ := serve(t, nil, metrics, "/metrics")
	assert.Equal(t, http.StatusOK, code)

	code, _ = serve(t, nil, nil, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}
