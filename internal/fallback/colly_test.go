package fallback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmwhit/docdriver/internal/fallback"
)

func newExportServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := fallback.New(fallback.Config{ExportPath: "/api/%s"}, nil)
	assert.Error(t, err, "missing base url")

	_, err = fallback.New(fallback.Config{BaseURL: "https://app", ExportPath: "/api/export"}, nil)
	assert.Error(t, err, "missing slug placeholder")

	_, err = fallback.New(fallback.Config{BaseURL: "https://app", ExportPath: "/api/%s"}, nil)
	assert.NoError(t, err)
}

func TestFetchReturnsContent(t *testing.T) {
	var gotPath atomic.Value
	srv := newExportServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"title":   "Project Charter",
			"content": "the full document text",
		})
	})

	client, err := fallback.New(fallback.Config{
		BaseURL:    srv.URL,
		ExportPath: "/api/documents/%s/export",
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)

	text, err := client.Fetch(context.Background(), "project-charter")
	require.NoError(t, err)
	assert.Equal(t, "the full document text", text)
	assert.Equal(t, "/api/documents/project-charter/export", gotPath.Load())
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	srv := newExportServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client, err := fallback.New(fallback.Config{
		BaseURL:    srv.URL,
		ExportPath: "/api/documents/%s/export",
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "absent")
	assert.Error(t, err)
}

func TestFetchRejectsMalformedPayload(t *testing.T) {
	srv := newExportServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>")) //nolint:errcheck
	})

	client, err := fallback.New(fallback.Config{
		BaseURL:    srv.URL,
		ExportPath: "/api/documents/%s/export",
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "charter")
	assert.Error(t, err)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newExportServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"content": "recovered"}) //nolint:errcheck
	})

	client, err := fallback.New(fallback.Config{
		BaseURL:    srv.URL,
		ExportPath: "/api/documents/%s/export",
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)

	text, err := client.Fetch(context.Background(), "charter")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	srv := newExportServer(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client, err := fallback.New(fallback.Config{
		BaseURL:    srv.URL,
		ExportPath: "/api/documents/%s/export",
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Fetch(ctx, "charter")
	assert.Error(t, err)
}
