package normalizer

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/utils"
)

type canonicalField int

const (
	fieldJobID canonicalField = iota
	fieldTitle
	fieldDescriptionHTML
	fieldLocation
	fieldDatePosted
	fieldApplyURL
)

// Source keys tried, in order, for each canonical field
var fieldMappings = map[canonicalField][]string{
	fieldJobID: {
		"id", "jobId", "job_id", "requisitionId", "requisition_id",
		"positionId", "position_id", "jobNumber", "job_number",
	},
	fieldTitle: {
		"title", "jobTitle", "job_title", "name", "position", "positionTitle", "position_title",
	},
	fieldDescriptionHTML: {
		"full_description", "description", "fullDescription", "jobDescription",
		"job_description", "details", "content", "body", "text",
	},
	fieldLocation: {
		"location", "city", "cityState", "city_state", "address",
		"workLocation", "work_location", "officeLocation", "office_location",
	},
	fieldDatePosted: {
		"datePosted", "date_posted", "postedDate", "posted_date", "createdDate",
		"created_date", "publishDate", "publish_date", "posted", "created", "date",
	},
	fieldApplyURL: {
		"application_url", "applyUrl", "apply_url", "applicationUrl",
		"url", "jobUrl", "job_url", "link", "href",
	},
}

// URL-bearing keys used to infer the source site
var sourceSiteKeys = []string{"url", "jobUrl", "apply_url", "application_url", "source_site"}

// Normalizer maps raw site records onto the canonical job schema
type Normalizer struct {
	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger, now: time.Now}
}

// WithClock replaces the clock used for relative dates such as "3 days ago"
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize converts one raw job. An empty sourceSite is inferred from the
// job's own URL fields.
func (n *Normalizer) Normalize(job models.RawJob, sourceSite string) models.NormalizedJob {
	if sourceSite == "" {
		sourceSite = inferSourceSite(job)
	}

	out := models.NormalizedJob{
		SourceSite:      sourceSite,
		JobID:           extractField(job, fieldJobID),
		Title:           extractField(job, fieldTitle),
		Location:        extractField(job, fieldLocation),
		ApplyURL:        extractField(job, fieldApplyURL),
		DescriptionHTML: extractField(job, fieldDescriptionHTML),
	}
	out.DescriptionText = HTMLToText(models.Deref(out.DescriptionHTML))

	if raw := extractField(job, fieldDatePosted); raw != nil {
		if date, ok := ParseDate(*raw, n.now()); ok {
			out.DatePosted = &date
		} else {
			n.logger.Debug("could not parse date", zap.String("value", *raw))
		}
	}
	return out
}

// NormalizeAll converts a batch, preserving order
func (n *Normalizer) NormalizeAll(jobs []models.RawJob, sourceSite string) []models.NormalizedJob {
	out := make([]models.NormalizedJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, n.Normalize(job, sourceSite))
	}
	return out
}

// extractField returns the first present, non-null source value as text, or
// nil when none of the field's source keys is present
func extractField(job models.RawJob, field canonicalField) *string {
	v, ok := utils.FirstPresent(job, fieldMappings[field])
	if !ok {
		return nil
	}

	var s string
	if text, isString := v.(string); isString {
		s = strings.TrimSpace(text)
	} else {
		s = utils.Stringify(v)
	}
	return &s
}

func inferSourceSite(job models.RawJob) string {
	for _, key := range sourceSiteKeys {
		v, ok := job[key]
		if !ok || !utils.Truthy(v) {
			continue
		}
		if origin := utils.Origin(utils.Stringify(v)); origin != "" {
			return origin
		}
	}
	return ""
}
