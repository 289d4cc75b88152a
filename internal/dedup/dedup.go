package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/utils"
)

// Raw-record keys consulted for each fingerprint component
var (
	rawTitleKeys    = []string{"title", "jobTitle", "job_title", "name"}
	rawLocationKeys = []string{"location", "city", "cityState", "workLocation"}
	rawSiteKeys     = []string{"source_site", "sourceSite", "site"}
)

// Tracker drops jobs whose fingerprint it has already seen. The seen set
// persists across calls until Reset. A Tracker is not safe for concurrent use.
type Tracker struct {
	seen   map[string]struct{}
	logger *zap.Logger
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Fingerprint is the hex SHA-256 of the trimmed, lower-cased title, location
// and source site joined with '|'
func Fingerprint(title, location, sourceSite string) string {
	key := canonical(title) + "|" + canonical(location) + "|" + canonical(sourceSite)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// JobFingerprint fingerprints a normalized job. Absent fields count as empty.
func JobFingerprint(job models.NormalizedJob) string {
	return Fingerprint(models.Deref(job.Title), models.Deref(job.Location), job.SourceSite)
}

// RawFingerprint fingerprints a raw job using the first non-empty value of
// each component's known keys
func RawFingerprint(job models.RawJob) string {
	return Fingerprint(rawField(job, rawTitleKeys), rawField(job, rawLocationKeys), rawField(job, rawSiteKeys))
}

// Deduplicate returns the jobs not seen before, keeping first occurrences in order
func (t *Tracker) Deduplicate(jobs []models.NormalizedJob) []models.NormalizedJob {
	return filterUnseen(t, jobs, JobFingerprint)
}

// DeduplicateRaw is Deduplicate for records that were never normalized
func (t *Tracker) DeduplicateRaw(jobs []models.RawJob) []models.RawJob {
	return filterUnseen(t, jobs, RawFingerprint)
}

// Reset forgets every fingerprint seen so far
func (t *Tracker) Reset() {
	clear(t.seen)
}

// Seen returns the number of distinct fingerprints recorded
func (t *Tracker) Seen() int {
	return len(t.seen)
}

func filterUnseen[T any](t *Tracker, jobs []T, fingerprint func(T) string) []T {
	unique := make([]T, 0, len(jobs))
	for _, job := range jobs {
		fp := fingerprint(job)
		if _, dup := t.seen[fp]; dup {
			continue
		}
		t.seen[fp] = struct{}{}
		unique = append(unique, job)
	}

	if removed := len(jobs) - len(unique); removed > 0 {
		t.logger.Info("removed duplicate jobs", zap.Int("duplicates", removed))
	}
	return unique
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rawField(job models.RawJob, keys []string) string {
	if v, ok := utils.FirstTruthy(job, keys); ok {
		return utils.Stringify(v)
	}
	return ""
}
