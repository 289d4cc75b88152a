package scraper

import (
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

// Container keys checked, in order, for the job array
var jobArrayKeys = []string{
	"jobs", "requisitions", "positions", "results", "items",
	"data", "postings", "jobListings", "job_listings",
}

// extractJobs locates the job array in a listing page. The bool is false when
// no array could be found at all, as opposed to an empty one.
func extractJobs(data any, schemaKeys []string) ([]models.RawJob, bool) {
	switch v := data.(type) {
	case []any:
		return toRawJobs(v), true
	case map[string]any:
		for _, key := range jobArrayKeys {
			if list, ok := v[key].([]any); ok {
				return toRawJobs(list), true
			}
		}
		for _, key := range schemaKeys {
			list, ok := v[key].([]any)
			if !ok || len(list) == 0 {
				continue
			}
			if _, isObject := list[0].(map[string]any); isObject {
				return toRawJobs(list), true
			}
		}
	}
	return nil, false
}

func toRawJobs(list []any) []models.RawJob {
	jobs := make([]models.RawJob, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			jobs = append(jobs, models.RawJob(m))
		}
	}
	return jobs
}
