package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/config"
	"github.com/soundprediction/go-tabgraph/pkg/metrics"
	"github.com/soundprediction/go-tabgraph/pkg/server/dto"
	"github.com/soundprediction/go-tabgraph/pkg/store"
)

type testServer struct {
	handler http.Handler
	config  *config.Config
	metrics *metrics.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	cfg := &config.Config{}
	require.NoError(t, v.Unmarshal(cfg))
	cfg.Server.Mode = "test"
	cfg.Server.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.Output.Dir = filepath.Join(t.TempDir(), "outputs")

	records, err := store.Open("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	converter := tabgraph.NewConverter(tabgraph.Config{Workers: 2}, nil)
	reg := metrics.NewRegistry()
	srv := New(cfg, converter, records, reg, nil)
	srv.Setup()
	return &testServer{handler: srv.Router(), config: cfg, metrics: reg}
}

type upload struct {
	field, name, content string
}

func (ts *testServer) upload(t *testing.T, format string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	if format != "" {
		require.NoError(t, w.WriteField("format", format))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "http://example.com/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

const (
	aliceCSV = "id,connections\nalice,\"[{\"\"target\"\":\"\"bob\"\",\"\"type\"\":\"\"knows\"\"}]\"\n"
	bobCSV   = "id,connections\nbob,\"[{\"\"target\"\":\"\"alice\"\",\"\"type\"\":\"\"knows\"\"}]\"\n"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = ts.get("/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"upload_dir": "ok", "output_dir": "ok"}, resp.Checks)
}

func TestUploadConvertsAndServesFiles(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "kumu",
		upload{"files", "alice.csv", aliceCSV},
		upload{"files", "bob.csv", bobCSV},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Converted (2 nodes, 2 edges) → format: KUMU", resp.Message)
	assert.Equal(t, 2, resp.NodeCount)
	assert.Equal(t, 2, resp.EdgeCount)
	assert.Equal(t, "http://example.com/download/alice_merged_kumu_nodes.csv", resp.NodesURL)
	assert.Equal(t, "http://example.com/download/alice_merged_kumu_edges.csv", resp.EdgesURL)
	require.NotEmpty(t, resp.ID)

	dl := ts.get("/download/" + resp.EdgesFile)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(dl.Body.String(), "From,To,Type,Strength"))

	lookup := ts.get("/api/conversions/" + resp.ID)
	require.Equal(t, http.StatusOK, lookup.Code)
	var conv dto.ConversionResponse
	require.NoError(t, json.Unmarshal(lookup.Body.Bytes(), &conv))
	assert.Equal(t, resp.Message, conv.Message)
	assert.Equal(t, []string{"alice.csv", "bob.csv"}, conv.Inputs)
}

func TestUploadSingleFileField(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "", upload{"file", "alice.csv", aliceCSV})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice_gephi_nodes.csv", resp.NodesFile)
}

func TestUploadKeepsEarlierUploads(t *testing.T) {
	ts := newTestServer(t)

	for range 2 {
		rec := ts.upload(t, "", upload{"file", "alice.csv", aliceCSV})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	entries, err := os.ReadDir(ts.config.Server.UploadDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"alice.csv", "alice_1.csv"}, names)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		files    []upload
		wantCode int
		wantErr  string
	}{
		{
			name:     "no files",
			wantCode: http.StatusBadRequest,
			wantErr:  "no_files",
		},
		{
			name:     "unsupported extension",
			files:    []upload{{"files", "alice.csv", aliceCSV}, {"files", "notes.txt", "hello"}},
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "unsupported_file_type",
		},
		{
			name:     "row without identity",
			files:    []upload{{"files", "people.csv", "id,name\n,nobody\n"}},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "conversion_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.upload(t, "gephi", tt.files...)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Error)

			entries, _ := os.ReadDir(ts.config.Output.Dir)
			assert.Empty(t, entries)
		})
	}
}

func TestUploadFailureNamesTheFile(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.upload(t, "gephi", upload{"files", "people.csv", "id,name\n,nobody\n"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "people.csv")
}

func TestUploadFailureMetricsUseKnownFormats(t *testing.T) {
	ts := newTestServer(t)

	for _, format := range []string{"junk-0", "junk-1", " KUMU "} {
		rec := ts.upload(t, format, upload{"files", "people.csv", "id,name\n,nobody\n"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}

	failures := ts.metrics.ConversionsTotal
	assert.Equal(t, 2, testutil.CollectAndCount(failures))
	assert.Equal(t, float64(2), testutil.ToFloat64(failures.WithLabelValues("gephi", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(failures.WithLabelValues("kumu", "failure")))
}

func TestUploadOutputFailureIsServerError(t *testing.T) {
	ts := newTestServer(t)

	// A regular file where the output directory should be.
	require.NoError(t, os.WriteFile(ts.config.Output.Dir, []byte("in the way"), 0o644))

	rec := ts.upload(t, "gephi", upload{"files", "alice.csv", aliceCSV})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conversion_failed", resp.Error)
}

func TestStopBeforeStart(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	cfg := &config.Config{}
	require.NoError(t, v.Unmarshal(cfg))
	cfg.Server.Mode = "test"

	srv := New(cfg, tabgraph.NewConverter(tabgraph.Config{}, nil), nil, metrics.NewRegistry(), nil)
	srv.Setup()

	require.NoError(t, srv.Stop(context.Background()))
	assert.NoError(t, srv.Start(), "a stopped server does not start listening")
}

func TestDownloadRejectsUnknownAndHiddenFiles(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.MkdirAll(ts.config.Output.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ts.config.Output.Dir, ".secret"), []byte("x"), 0o644))

	assert.Equal(t, http.StatusNotFound, ts.get("/download/missing.csv").Code)
	assert.Equal(t, http.StatusNotFound, ts.get("/download/.secret").Code)
}

func TestGetUnknownConversion(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.get("/api/conversions/does-not-exist").Code)
}

func TestNormalizePreview(t *testing.T) {
	ts := newTestServer(t)

	payload := `{"id":" alice ","role":"chair","connections":[{"target":"bob ","type":"knows","since":2019}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/rows/normalize", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.NormalizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ALICE", resp.Identity)
	assert.Equal(t, map[string]string{"role": "CHAIR"}, resp.Attributes)
	require.Len(t, resp.Connections, 1)
	assert.Equal(t, "BOB", resp.Connections[0].Target)
	assert.Equal(t, "KNOWS", resp.Connections[0].RelationType)
	assert.Equal(t, map[string]string{"since": "2019"}, resp.Connections[0].Extra)
	assert.IsType(t, "", resp.Record["connections"])
}

func TestNormalizePreviewRejectsBadPayloads(t *testing.T) {
	ts := newTestServer(t)

	for body, want := range map[string]int{
		`not json`:          http.StatusBadRequest,
		`{"role":"member"}`: http.StatusUnprocessableEntity,
		`{"id":"  "}`:       http.StatusUnprocessableEntity,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/rows/normalize", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.get("/health")

	rec := ts.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tabgraph_http_requests_total{method="GET",path="/health",status="200"} 1`)
}
