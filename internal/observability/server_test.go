// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err, "failed to start server")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")

	m := server.Metrics()
	m.RecordAuth("login", ResultOK, 30*time.Millisecond)
	m.RecordAuth("login", ResultOK, 40*time.Millisecond)
	m.RecordAuth("login", "AUTH_INVALID_CREDENTIALS", 35*time.Millisecond)
	m.HTTPRequests.WithLabelValues("/api/auth/login", "POST", "200").Inc()

	_, body = get(t, server, "/metrics")
	assert.Contains(t, body, `trackmint_auth_operations_total{operation="login",result="ok"} 2`)
	assert.Contains(t, body, `trackmint_auth_operations_total{operation="login",result="AUTH_INVALID_CREDENTIALS"} 1`)
	assert.Contains(t, body, `trackmint_auth_operation_duration_seconds_count{operation="login"} 3`)
	assert.Contains(t, body, `trackmint_http_requests_total{method="POST",route="/api/auth/login",status="200"} 1`)
}

func TestMetrics_SweepAndNotifications(t *testing.T) {
	server := startServer(t, nil)
	m := server.Metrics()

	m.RecordSweep(3, 1, 0, nil)
	m.RecordSweep(0, 0, 0, errors.New("lock timeout"))
	m.RecordNotification("smtp", nil)
	m.RecordNotification("smtp", errors.New("421"))

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, `trackmint_token_sweep_rows_total{table="refresh_tokens"} 3`)
	assert.Contains(t, body, `trackmint_token_sweep_rows_total{table="password_reset_tokens"} 1`)
	assert.Contains(t, body, `trackmint_token_sweep_failures_total 1`)
	assert.Contains(t, body, `trackmint_notifications_total{channel="smtp",result="ok"} 1`)
	assert.Contains(t, body, `trackmint_notifications_total{channel="smtp",result="error"} 1`)
}

func TestServer_Probes(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"ready", func() bool { return true }, http.StatusOK, "ok"},
		{"not ready", func() bool { return false }, http.StatusServiceUnavailable, "not ready"},
		{"nil checker", nil, http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)

			status, body := get(t, server, "/healthz/liveness")
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, "ok", strings.TrimSpace(body))

			status, body = get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	require.NoError(t, server.listener.Close())

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error was not reported")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok && err != nil, "unexpected error on shutdown: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close")
	}
}
