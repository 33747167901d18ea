package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/pipeline"
)

type fakeRunner struct {
	report   *pipeline.RunReport
	calls    int
	lastKey  string
	lastOpts pipeline.Options
	block    chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, key string, opts pipeline.Options) *pipeline.RunReport {
	f.calls++
	f.lastKey = key
	f.lastOpts = opts
	if f.block != nil {
		<-f.block
	}
	return f.report
}

func doneReport(key string) *pipeline.RunReport {
	return &pipeline.RunReport{
		RunID:     "run-1",
		TicketKey: key,
		Branch:    "feature/" + key,
		State:     pipeline.StateDone,
		Outcome:   pipeline.OutcomePushed,
	}
}

func setupTestServer(t *testing.T, runner Runner) (*Server, *[]string) {
	t.Helper()

	var repoPaths []string
	factory := func(repoPath string) (Runner, error) {
		repoPaths = append(repoPaths, repoPath)
		return runner, nil
	}

	server, err := NewServer(
		&config.HTTPConfig{Host: "127.0.0.1", Port: 8000},
		Dependencies{NewRunner: factory, Version: "1.2.3", Logger: zap.NewNop()},
	)
	require.NoError(t, err)
	return server, &repoPaths
}

func TestNewServer(t *testing.T) {
	t.Run("requires runner factory", func(t *testing.T) {
		_, err := NewServer(nil, Dependencies{Logger: zap.NewNop()})
		require.ErrorContains(t, err, "runner factory is required")
	})

	t.Run("requires logger", func(t *testing.T) {
		factory := func(string) (Runner, error) { return &fakeRunner{}, nil }
		_, err := NewServer(nil, Dependencies{NewRunner: factory})
		require.ErrorContains(t, err, "logger is required")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		factory := func(string) (Runner, error) { return &fakeRunner{}, nil }
		server, err := NewServer(nil, Dependencies{NewRunner: factory, Logger: zap.NewNop()})
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 8000, server.config.Port)
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, &fakeRunner{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStatus(t *testing.T) {
	server, _ := setupTestServer(t, &fakeRunner{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.False(t, resp.Busy)
}

func TestHandleProcess(t *testing.T) {
	t.Run("runs the pipeline and returns the report", func(t *testing.T) {
		runner := &fakeRunner{report: doneReport("PROJ-7")}
		server, repoPaths := setupTestServer(t, runner)

		body, err := json.Marshal(ProcessRequest{NoPush: true, RepoPath: "/srv/checkout"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/PROJ-7/process", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, runner.calls)
		assert.Equal(t, "PROJ-7", runner.lastKey)
		assert.True(t, runner.lastOpts.NoPush)
		assert.Equal(t, []string{"/srv/checkout"}, *repoPaths)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "PROJ-7", resp["ticket_key"])
		assert.Equal(t, "pushed", resp["outcome"])
	})

	t.Run("works without a request body", func(t *testing.T) {
		runner := &fakeRunner{report: doneReport("PROJ-8")}
		server, repoPaths := setupTestServer(t, runner)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/PROJ-8/process", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, runner.lastOpts.NoPush)
		assert.Equal(t, []string{""}, *repoPaths)
	})

	t.Run("rejects a blank ticket key", func(t *testing.T) {
		runner := &fakeRunner{report: doneReport("X")}
		server, _ := setupTestServer(t, runner)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		c := server.echo.NewContext(req, rec)
		c.SetPath("/api/v1/tickets/:key/process")
		c.SetParamNames("key")
		c.SetParamValues("   ")

		err := server.handleProcess(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Zero(t, runner.calls)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		runner := &fakeRunner{report: doneReport("PROJ-9")}
		server, _ := setupTestServer(t, runner)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/PROJ-9/process", bytes.NewReader([]byte("not json")))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, runner.calls)
	})

	t.Run("rejects concurrent runs", func(t *testing.T) {
		runner := &fakeRunner{report: doneReport("PROJ-10"), block: make(chan struct{})}
		server, _ := setupTestServer(t, runner)

		firstDone := make(chan struct{})
		go func() {
			defer close(firstDone)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/PROJ-10/process", nil)
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()

		require.Eventually(t, func() bool { return server.running.Load() },
			2*time.Second, 5*time.Millisecond)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/PROJ-11/process", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)

		close(runner.block)
		<-firstDone
		assert.Equal(t, 1, runner.calls)
	})

	t.Run("reports factory failures", func(t *testing.T) {
		factory := func(string) (Runner, error) {
			return nil, errors.New("tree does not exist")
		}
		server, err := NewServer(nil, Dependencies{NewRunner: factory, Logger: zap.NewNop()})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/PROJ-12/process", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t, &fakeRunner{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakeRunner{})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakeRunner{})
		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServerLifecycle(t *testing.T) {
	runner := &fakeRunner{report: doneReport("PROJ-1")}
	factory := func(string) (Runner, error) { return runner, nil }

	server, err := NewServer(
		&config.HTTPConfig{Host: "127.0.0.1", Port: 0},
		Dependencies{NewRunner: factory, Logger: zap.NewNop()},
	)
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed))
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
