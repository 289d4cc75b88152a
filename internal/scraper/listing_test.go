package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

// jobsJSON renders n jobs with ids starting at first
func jobsJSON(first, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"id":%d,"title":"Job %d"}`, first+i, first+i)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func newTestLister(t *testing.T, maxPages int) *Lister {
	return NewLister(newTestClient(t), zaptest.NewLogger(t), maxPages)
}

func TestFetchPageBasedUsesTotalPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		assert.NoError(t, err)
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))
		writeJSON(w, fmt.Sprintf(`{"jobs":%s,"totalPages":3}`, jobsJSON(page*10, 2)))
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodGet, Endpoint: srv.URL + "/api/jobs", PaginationType: models.PaginationPage}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 6)
	require.EqualValues(t, 3, calls.Load())
	require.Equal(t, json.Number("30"), jobs[4]["id"])
}

func TestFetchPageBasedStopSignals(t *testing.T) {
	testCases := []struct {
		name   string
		suffix string
	}{
		{name: "hasMore false", suffix: `,"hasMore":false`},
		{name: "has_more false", suffix: `,"has_more":false`},
		{name: "nextPage null", suffix: `,"nextPage":null`},
		{name: "total_pages reached", suffix: `,"total_pages":1`},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, fmt.Sprintf(`{"jobs":%s%s}`, jobsJSON(1, 3), test.suffix))
			}))
			defer srv.Close()

			cfg := &models.EndpointConfig{Method: http.MethodPost, Endpoint: srv.URL, PaginationType: models.PaginationPage}
			jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
			require.Len(t, jobs, 3)
			require.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestFetchPageBasedStopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, `{"jobs":`+jobsJSON(1, 2)+`}`)
			return
		}
		writeJSON(w, `{"jobs":[]}`)
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodGet, Endpoint: srv.URL, PaginationType: models.PaginationPage}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 2)
	require.EqualValues(t, 2, calls.Load())
}

func TestFetchKeepsPartialResultsOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, `{"jobs":`+jobsJSON(1, 4)+`,"totalPages":5}`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodGet, Endpoint: srv.URL, PaginationType: models.PaginationPage}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 4)
	require.EqualValues(t, 2, calls.Load())
}

func TestFetchPageBasedHonoursPageCap(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"jobs":`+jobsJSON(1, 1)+`}`)
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodGet, Endpoint: srv.URL, PaginationType: models.PaginationPage}
	jobs := newTestLister(t, 2).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 2)
	require.EqualValues(t, 2, calls.Load())
}

func TestFetchOffsetBased(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []float64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(50), body["limit"])
		offset, _ := body["offset"].(float64)
		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()

		n := 50
		if offset > 0 {
			n = 10
		}
		writeJSON(w, `{"results":`+jobsJSON(int(offset), n)+`,"offset":0}`)
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodPost, Endpoint: srv.URL, PaginationType: models.PaginationOffset}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 60)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []float64{0, 50}, offsets)
}

func TestFetchOffsetBasedShortFirstPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		writeJSON(w, `{"results":`+jobsJSON(1, 10)+`}`)
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodGet, Endpoint: srv.URL, PaginationType: models.PaginationOffset}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 10)
	require.EqualValues(t, 1, calls.Load())
}

func TestFetchCursorBased(t *testing.T) {
	var (
		mu      sync.Mutex
		cursors []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		mu.Lock()
		cursors = append(cursors, cursor)
		mu.Unlock()
		switch cursor {
		case "":
			writeJSON(w, `{"items":`+jobsJSON(1, 2)+`,"nextCursor":"c2"}`)
		case "c2":
			writeJSON(w, `{"items":`+jobsJSON(3, 2)+`,"next_cursor":"c3"}`)
		default:
			writeJSON(w, `{"items":`+jobsJSON(5, 1)+`,"nextCursor":null}`)
		}
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodGet, Endpoint: srv.URL, PaginationType: models.PaginationCursor}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 5)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"", "c2", "c3"}, cursors)
}

func TestFetchCursorBasedStopsOnRepeatedCursor(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"items":`+jobsJSON(1, 1)+`,"cursor":"same"}`)
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodPost, Endpoint: srv.URL, PaginationType: models.PaginationCursor}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 2)
	require.EqualValues(t, 2, calls.Load())
}

func TestFetchUnknownIssuesSingleRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Empty(t, body)
		writeJSON(w, jobsJSON(1, 3))
	}))
	defer srv.Close()

	cfg := &models.EndpointConfig{Method: http.MethodPost, Endpoint: srv.URL, PaginationType: models.PaginationUnknown}
	jobs := newTestLister(t, 0).FetchAll(context.Background(), cfg)
	require.Len(t, jobs, 3)
	require.EqualValues(t, 1, calls.Load())
}

func TestFetchAllInvalidConfig(t *testing.T) {
	require.Empty(t, newTestLister(t, 0).FetchAll(context.Background(), nil))
	require.Empty(t, newTestLister(t, 0).FetchAll(context.Background(), &models.EndpointConfig{}))
}

func TestExtractJobs(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		schemaKeys []string
		count      int
		found      bool
	}{
		{name: "top level array", body: `[{"id":1},{"id":2}]`, count: 2, found: true},
		{name: "known key", body: `{"requisitions":[{"id":1}]}`, count: 1, found: true},
		{name: "known key wins over schema key", body: `{"other":[{"id":1},{"id":2}],"postings":[{"id":3}]}`, schemaKeys: []string{"other", "postings"}, count: 1, found: true},
		{name: "known key holding an object is skipped", body: `{"data":{"x":1},"items":[{"id":1}]}`, count: 1, found: true},
		{name: "empty known list", body: `{"jobs":[]}`, count: 0, found: true},
		{name: "schema key fallback", body: `{"vacancies":[{"id":1}]}`, schemaKeys: []string{"vacancies"}, count: 1, found: true},
		{name: "schema key with scalars", body: `{"tags":["a","b"]}`, schemaKeys: []string{"tags"}, count: 0, found: false},
		{name: "nothing", body: `{"status":"ok"}`, schemaKeys: []string{"status"}, count: 0, found: false},
		{name: "non-object elements dropped", body: `{"jobs":[{"id":1},"junk",2]}`, count: 1, found: true},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			jobs, found := extractJobs(decode(t, test.body), test.schemaKeys)
			require.Equal(t, test.found, found)
			require.Len(t, jobs, test.count)
		})
	}
}
