package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/pkg/httpserver"
)

func start(t *testing.T, srv *httpserver.Server, ctx context.Context) (string, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}()

	var addr string
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		if strings.HasSuffix(addr, ":0") {
			return false
		}
		resp, err := http.Get("http://" + addr)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
	return addr, done
}

func wait(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not return")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	var stopped atomic.Bool
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(200*time.Millisecond),
		httpserver.WithStopHook(func() { stopped.Store(true) }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	_, done := start(t, srv, ctx)

	cancel()
	wait(t, done)
	assert.True(t, stopped.Load())
}

func TestManualShutdownIsIdempotent(t *testing.T) {
	t.Parallel()
	var hooks atomic.Int32
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithStopHook(func() { hooks.Add(1) }),
	)
	_, done := start(t, srv, context.Background())

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
	wait(t, done)
	assert.Equal(t, int32(1), hooks.Load())
}

func TestRunTwice(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	_, done := start(t, srv, context.Background())

	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

	require.NoError(t, srv.Shutdown(context.Background()))
	wait(t, done)
}

func TestStartError(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:invalid"))
	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestShutdownBeforeRun(t *testing.T) {
	t.Parallel()
	assert.NoError(t, httpserver.New().Shutdown(context.Background()))
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()
	for name, fn := range map[string]func(){
		"addr":      func() { httpserver.WithAddr("") },
		"read":      func() { httpserver.WithReadTimeout(0) },
		"header":    func() { httpserver.WithReadHeaderTimeout(-time.Second) },
		"write":     func() { httpserver.WithWriteTimeout(-time.Second) },
		"idle":      func() { httpserver.WithIdleTimeout(0) },
		"shutdown":  func() { httpserver.WithShutdownTimeout(0) },
		"stop hook": func() { httpserver.WithStopHook(nil) },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Panics(t, fn)
		})
	}
	assert.NotPanics(t, func() { httpserver.WithLogger(nil) })
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	_, done := start(t, srv, context.Background())
	require.NoError(t, srv.Shutdown(context.Background()))
	wait(t, done)
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("connection refused") }
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name   string
		checks map[string]httpserver.Check
		code   int
		states map[string]string
	}{
		{"no checks", nil, http.StatusOK, map[string]string{}},
		{"all pass", map[string]httpserver.Check{"mongo": ok, "redis": ok}, http.StatusOK,
			map[string]string{"mongo": "ok", "redis": "ok"}},
		{"one fails", map[string]httpserver.Check{"mongo": ok, "postgres": failing}, http.StatusServiceUnavailable,
			map[string]string{"mongo": "ok", "postgres": "failing"}},
		{"timeout", map[string]httpserver.Check{"ledger": slow}, http.StatusServiceUnavailable,
			map[string]string{"ledger": "failing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			h := httpserver.ReadinessHandler(nil, 50*time.Millisecond, tt.checks)
			h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body struct {
				Ready  bool              `json:"ready"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code == http.StatusOK, body.Ready)
			assert.Equal(t, tt.states, body.Checks)
		})
	}
}
