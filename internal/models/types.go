package models

// PaginationType identifies the paging protocol an endpoint speaks
type PaginationType string

const (
	PaginationPage    PaginationType = "page_based"
	PaginationOffset  PaginationType = "offset_based"
	PaginationCursor  PaginationType = "cursor_based"
	PaginationUnknown PaginationType = "unknown"
)

// ConfigHints holds API hints mined from inline scripts on a careers page
type ConfigHints struct {
	APIEndpoints []string       `json:"api_endpoints,omitempty"`
	APIParams    map[string]any `json:"api_params,omitempty"`
}

// Empty reports whether mining produced nothing usable
func (h *ConfigHints) Empty() bool {
	return h == nil || (len(h.APIEndpoints) == 0 && len(h.APIParams) == 0)
}

// EndpointConfig describes a detected job search endpoint. It is produced once
// by the detector and only read afterwards.
type EndpointConfig struct {
	Method             string         `json:"method"`
	Endpoint           string         `json:"endpoint"`
	PaginationType     PaginationType `json:"pagination_type"`
	DetectedSchemaKeys []string       `json:"detected_schema_keys"`
	JobFieldsFound     []string       `json:"job_fields_found"`
	ConfigHints        *ConfigHints   `json:"config_hints,omitempty"`
}

// RawJob is a job record exactly as the site returned it
type RawJob map[string]any

// NormalizedJob is the canonical job record. Pointer fields are nil when the
// source never carried the field, which is distinct from an empty string.
type NormalizedJob struct {
	SourceSite      string  `json:"source_site"`
	JobID           *string `json:"job_id"`
	Title           *string `json:"title"`
	Location        *string `json:"location"`
	ApplyURL        *string `json:"apply_url"`
	DescriptionHTML *string `json:"description_html"`
	DescriptionText string  `json:"description_text"`
	DatePosted      *string `json:"date_posted"`
}

// SiteStatus is the outcome recorded for one processed site
type SiteStatus string

const (
	StatusSuccess SiteStatus = "success"
	StatusFailure SiteStatus = "failure"
)

// SiteStat represents one row of the per-site stats log
type SiteStat struct {
	SiteURL          string     `json:"site_url"`
	Timestamp        string     `json:"timestamp"`
	Status           SiteStatus `json:"status"`
	TotalJobsScraped int        `json:"total_jobs_scraped"`
	EndpointUsed     string     `json:"endpoint_used"`
	ErrorMessage     string     `json:"error_message"`
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
