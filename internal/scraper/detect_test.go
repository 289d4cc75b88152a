package scraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

func newTestClient(t *testing.T) *client.Client {
	return client.New(client.Options{Timeout: 2 * time.Second, UserAgent: "test-agent"}, zaptest.NewLogger(t))
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

// requestLog records request paths in arrival order
type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

func TestDetectPageBased(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			writeHTML(w, "<html><body>careers</body></html>")
		case r.Method == http.MethodPost && r.URL.Path == "/services/JobSearch":
			assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
			writeJSON(w, `{"jobs":[{"id":1,"title":"A"}],"totalPages":3}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg, ok := NewDetector(newTestClient(t), zaptest.NewLogger(t)).Detect(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, http.MethodPost, cfg.Method)
	require.Equal(t, srv.URL+"/services/JobSearch", cfg.Endpoint)
	require.Equal(t, models.PaginationPage, cfg.PaginationType)
	require.Equal(t, []string{"jobs", "totalPages"}, cfg.DetectedSchemaKeys)
	require.Equal(t, []string{"id", "jobs", "title"}, cfg.JobFieldsFound)
	require.Nil(t, cfg.ConfigHints)
}

func TestDetectSkipsNonJSONResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/JobSearch":
			writeHTML(w, `{"jobs":[{"id":1}]}`)
		case "/api/jobs":
			writeJSON(w, `{"results":[{"jobId":"x"}],"offset":0,"limit":10}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg, ok := NewDetector(newTestClient(t), zaptest.NewLogger(t)).WithoutHints().Detect(context.Background(), srv.URL+"/")
	require.True(t, ok)
	require.Equal(t, http.MethodGet, cfg.Method)
	require.Equal(t, srv.URL+"/api/jobs", cfg.Endpoint)
	require.Equal(t, models.PaginationOffset, cfg.PaginationType)
}

func TestDetectRejectsJSONWithoutJobFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			writeHTML(w, "<html></html>")
			return
		}
		writeJSON(w, `{"status":"ok","version":2}`)
	}))
	defer srv.Close()

	cfg, ok := NewDetector(newTestClient(t), zaptest.NewLogger(t)).Detect(context.Background(), srv.URL)
	require.False(t, ok)
	require.Nil(t, cfg)
}

func TestDetectNoEndpoint(t *testing.T) {
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg, ok := NewDetector(newTestClient(t), zaptest.NewLogger(t)).Detect(context.Background(), srv.URL)
	require.False(t, ok)
	require.Nil(t, cfg)
	// base page plus every template
	require.Len(t, log.all(), 1+len(endpointTemplates))
}

func TestDetectPrefersHintedEndpoints(t *testing.T) {
	log := &requestLog{}
	var (
		mu       sync.Mutex
		pageSize string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)
		switch r.URL.Path {
		case "/":
			writeHTML(w, `<html><head>
<script src="/static/app.js"></script>
<script>
window.__APP_CONFIG__ = { apiEndpoint: '/careers/api/jobs', search: { pageSize: 25 }, };
</script></head><body></body></html>`)
		case "/careers/api/jobs":
			mu.Lock()
			pageSize = r.URL.Query().Get("pageSize")
			mu.Unlock()
			writeJSON(w, `{"postings":[{"title":"Engineer"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg, ok := NewDetector(newTestClient(t), zaptest.NewLogger(t)).Detect(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, srv.URL+"/careers/api/jobs", cfg.Endpoint)
	require.Equal(t, models.PaginationUnknown, cfg.PaginationType)
	mu.Lock()
	require.Equal(t, "25", pageSize)
	mu.Unlock()

	require.NotNil(t, cfg.ConfigHints)
	require.Equal(t, []string{"/careers/api/jobs"}, cfg.ConfigHints.APIEndpoints)
	require.Equal(t, map[string]any{"pageSize": 25}, cfg.ConfigHints.APIParams)

	// both templates overlapping the hint are tried before the rest
	require.Equal(t, []string{"/", "/api/jobs", "/careers/api/jobs"}, log.all())
}

func TestDetectMergesHintParamsIntoProbeBody(t *testing.T) {
	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			writeHTML(w, `<script>var appConfig = {"pageSize": 20, "apiUrl": "/services/JobSearch"};</script>`)
		case "/services/JobSearch":
			mu.Lock()
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			mu.Unlock()
			writeJSON(w, `{"requisitions":[{"requisitionId":"R1"}],"cursor":"abc"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg, ok := NewDetector(newTestClient(t), zaptest.NewLogger(t)).Detect(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, models.PaginationCursor, cfg.PaginationType)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, map[string]any{"page": float64(1), "pageSize": float64(20)}, body)
}

func TestOrderTemplates(t *testing.T) {
	paths := func(ts []endpointTemplate) []string {
		out := make([]string, len(ts))
		for i, tmpl := range ts {
			out[i] = tmpl.Path
		}
		return out
	}

	testCases := []struct {
		name     string
		hints    *models.ConfigHints
		expected []string
	}{
		{
			name: "no hints",
			expected: []string{
				"/services/JobSearch", "/careers/SearchJobs", "/api/jobs",
				"/api/v1/jobs", "/api/jobs/search", "/careers/api/jobs",
			},
		},
		{
			name:  "absolute hint with query",
			hints: &models.ConfigHints{APIEndpoints: []string{"https://x.avature.net/careers/SearchJobs?lang=en"}},
			expected: []string{
				"/careers/SearchJobs", "/services/JobSearch", "/api/jobs",
				"/api/v1/jobs", "/api/jobs/search", "/careers/api/jobs",
			},
		},
		{
			name:  "root hint is ignored",
			hints: &models.ConfigHints{APIEndpoints: []string{"/", "https://x.avature.net"}},
			expected: []string{
				"/services/JobSearch", "/careers/SearchJobs", "/api/jobs",
				"/api/v1/jobs", "/api/jobs/search", "/careers/api/jobs",
			},
		},
		{
			name:  "case insensitive",
			hints: &models.ConfigHints{APIEndpoints: []string{"/API/V1/JOBS/"}},
			expected: []string{
				"/api/v1/jobs", "/services/JobSearch", "/careers/SearchJobs",
				"/api/jobs", "/api/jobs/search", "/careers/api/jobs",
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := orderTemplates(endpointTemplates, test.hints)
			require.Equal(t, test.expected, paths(got))
			require.Len(t, got, len(endpointTemplates))
		})
	}
}
