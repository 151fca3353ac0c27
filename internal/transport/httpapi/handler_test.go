package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/OneInX/Manifest-InX/internal/assets"
	"github.com/OneInX/Manifest-InX/internal/metrics"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/release"
)

const demoText = "Need more context and more research; later it depends. I revisit again and still."

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newEngine(t *testing.T, opts ...pipeline.Option) *pipeline.Engine {
	t.Helper()
	t.Setenv(release.EnvManifestPath, "")
	cfg := pipeline.DefaultEngineConfig()
	cfg.Release.BaseDir = t.TempDir()
	e, err := pipeline.Open(cfg, opts...)
	require.NoError(t, err)
	return e
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code, w.Body.String()
}

func TestHealth(t *testing.T) {
	r := NewRouter(New(newEngine(t), zaptest.NewLogger(t), nil))
	code, body := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"status":"ok","version":"1.0.0"}`, body)
}

func TestInsight_Demo(t *testing.T) {
	e := newEngine(t)
	r := NewRouter(New(e, zaptest.NewLogger(t), nil))
	code, body := do(t, r, http.MethodPost, "/insight", `{"text": "`+demoText+`", "lang": "en"}`)
	require.Equal(t, http.StatusOK, code, body)

	t11, _ := e.Catalog().Text("T11")
	want := `{"manifest":{"hash_ok":true,"version":"1.0.0"},"output_text":"` + t11 +
		`","sdt":{"pass":true,"violations":[]},"template_id":"T11"}`
	assert.Equal(t, want, body)
}

func TestInsight_Errors(t *testing.T) {
	r := NewRouter(New(newEngine(t), zaptest.NewLogger(t), nil))
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"bad json", http.MethodPost, "/insight", `{"text":`, http.StatusBadRequest, `{"error":"bad_json"}`},
		{"missing text", http.MethodPost, "/insight", `{"lang":"en"}`, http.StatusBadRequest, `{"error":"missing_text"}`},
		{"text not string", http.MethodPost, "/insight", `{"text":5}`, http.StatusBadRequest, `{"error":"missing_text"}`},
		{"array body", http.MethodPost, "/insight", `["x"]`, http.StatusBadRequest, `{"error":"missing_text"}`},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound, `{"error":"not_found"}`},
		{"wrong method", http.MethodGet, "/insight", "", http.StatusNotFound, `{"error":"not_found"}`},
		{"post health", http.MethodPost, "/health", "{}", http.StatusNotFound, `{"error":"not_found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestInsight_EmptyTextIsValid(t *testing.T) {
	r := NewRouter(New(newEngine(t), zaptest.NewLogger(t), nil))
	code, body := do(t, r, http.MethodPost, "/insight", `{"text":""}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"template_id":"T02"`)
}

func TestInsight_IntegrityFailureIs503(t *testing.T) {
	e := newEngine(t)
	e.Guard().Fail(&release.IntegrityError{Key: assets.RulesKey, Reason: release.ReasonHashMismatch})
	r := NewRouter(New(e, zaptest.NewLogger(t), nil))
	code, body := do(t, r, http.MethodPost, "/insight", `{"text":"later."}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, `{"error":"release_integrity"}`, body)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEngine(t, pipeline.WithMetrics(metrics.New(reg)))
	r := NewRouter(New(e, zaptest.NewLogger(t), reg))

	code, _ := do(t, r, http.MethodPost, "/insight", `{"text":"later."}`)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `microinx_insights_total{sdt_pass="true",template_id="T02"} 1`)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	e := newEngine(t)
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(NewRouter(New(e, zaptest.NewLogger(t), nil)), time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 2 * time.Second}
	resp, err := client.Post("http://"+ln.Addr().String()+"/insight", "application/json",
		strings.NewReader(`{"text":"`+demoText+`"}`))
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"template_id":"T11"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
