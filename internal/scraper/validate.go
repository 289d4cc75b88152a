package scraper

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

const maxFieldDepth = 3

// Key fragments that suggest a payload carries job postings
var jobFieldIndicators = []string{
	"jobid", "job_id", "id", "title", "jobtitle", "job_title",
	"description", "location", "department",
	"jobs", "requisitions", "positions", "results", "items", "data", "postings",
}

// validateResponse decides whether a JSON response is a job listing and, if
// so, describes it
func validateResponse(resp *client.Response, method, endpoint string) (*models.EndpointConfig, bool) {
	data, err := resp.JSON()
	if err != nil {
		return nil, false
	}

	found := make(map[string]struct{})
	findJobFields(data, 0, found)
	if len(found) == 0 {
		return nil, false
	}

	fields := make([]string, 0, len(found))
	for k := range found {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	return &models.EndpointConfig{
		Method:             method,
		Endpoint:           endpoint,
		PaginationType:     classifyPagination(data),
		DetectedSchemaKeys: topLevelKeys(resp.Body),
		JobFieldsFound:     fields,
	}, true
}

// findJobFields records keys matching a job indicator. Only mapping values and
// the first element of lists are followed.
func findJobFields(data any, depth int, found map[string]struct{}) {
	if depth > maxFieldDepth {
		return
	}

	switch v := data.(type) {
	case map[string]any:
		for key, value := range v {
			if isJobIndicator(key) {
				found[key] = struct{}{}
			}
			switch value.(type) {
			case map[string]any, []any:
				findJobFields(value, depth+1, found)
			}
		}
	case []any:
		if len(v) > 0 {
			findJobFields(v[0], depth+1, found)
		}
	}
}

func isJobIndicator(key string) bool {
	lower := strings.ToLower(key)
	for _, indicator := range jobFieldIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// classifyPagination inspects the serialized payload for pagination vocabulary
func classifyPagination(data any) models.PaginationType {
	raw, err := json.Marshal(data)
	if err != nil {
		return models.PaginationUnknown
	}
	text := strings.ToLower(string(raw))

	switch {
	case containsAny(text, "page", "pagenumber", "totalpages"):
		return models.PaginationPage
	case containsAny(text, "offset", "limit"):
		return models.PaginationOffset
	case containsAny(text, "cursor", "nextcursor", "continuation"):
		return models.PaginationCursor
	}
	return models.PaginationUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// topLevelKeys returns the keys of a JSON object in document order. Arrays and
// scalars have none.
func topLevelKeys(body []byte) []string {
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil
	}

	seen := make(map[string]struct{})
	var keys []string
	res.ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		return true
	})
	return keys
}
