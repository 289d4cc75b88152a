package scraper

import (
	"bytes"
	"context"
	"maps"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/utils"
)

// Keys the enricher adds to a job
const (
	FullDescriptionKey = "full_description"
	ApplicationURLKey  = "application_url"
)

var (
	jobIDKeys  = []string{"id", "jobId", "job_id", "requisitionId", "requisition_id", "positionId"}
	jobURLKeys = []string{"url", "jobUrl", "job_url", "detailUrl", "detail_url", "link", "href", "applicationUrl"}

	detailPagePatterns = []string{
		"/job/{id}", "/jobs/{id}", "/careers/{id}", "/position/{id}", "/requisition/{id}",
		"/job-detail/{id}", "/job-details/{id}", "/api/job/{id}", "/api/jobs/{id}",
		"/services/JobDetail?id={id}",
	}
	detailAPIPatterns = []string{"/api/job/{id}", "/api/jobs/{id}", "/services/JobDetail?id={id}"}

	descriptionKeys = []string{
		"description", "fullDescription", "full_description", "jobDescription",
		"job_description", "details", "content", "body", "text",
	}
	applyURLKeys = []string{
		"applyUrl", "apply_url", "applicationUrl", "application_url",
		"applyLink", "apply_link", "url", "link",
	}

	descriptionSelectors = []string{
		`[class*="description"]`, `[class*="detail"]`, `[id*="description"]`, `[id*="detail"]`,
		".job-description", ".job-detail", ".description", ".details",
		"#description", "#details", "article", ".content",
	}
	applySelectors = []string{
		`a[href*="apply"]`, `a[href*="application"]`, `a[class*="apply"]`, `a[id*="apply"]`,
		`button[onclick*="apply"]`, ".apply-button", ".apply-btn", "#apply",
	}
)

// jobDetail is a fetched detail resource, either a JSON object or an HTML page
type jobDetail struct {
	data map[string]any
	doc  *goquery.Document
}

// Enricher fetches per-job detail pages to fill in descriptions and apply links
type Enricher struct {
	client client.Requester
	logger *zap.Logger
}

func NewEnricher(c client.Requester, logger *zap.Logger) *Enricher {
	return &Enricher{client: c, logger: logger}
}

// Enrich returns a copy of job with full_description and application_url set
// when a detail resource yields them. The input is never modified and a job
// that cannot be enriched comes back unchanged.
func (e *Enricher) Enrich(ctx context.Context, job models.RawJob, baseURL string) models.RawJob {
	enriched := maps.Clone(job)
	if enriched == nil {
		enriched = models.RawJob{}
	}

	jobID := firstString(job, jobIDKeys)
	jobURL := firstString(job, jobURLKeys)
	if jobID == "" && jobURL == "" {
		return enriched
	}

	detail := e.fetchDetail(ctx, jobID, jobURL, baseURL)
	if detail == nil {
		e.logger.Debug("no detail resource found", zap.String("job_id", jobID), zap.String("job_url", jobURL))
		return enriched
	}

	if desc := detail.description(); desc != "" {
		enriched[FullDescriptionKey] = desc
	}
	if apply := detail.applicationURL(baseURL); apply != "" {
		enriched[ApplicationURLKey] = apply
	}
	return enriched
}

// fetchDetail tries the job's own URL, then the detail page patterns, then the
// JSON API patterns, stopping at the first usable resource
func (e *Enricher) fetchDetail(ctx context.Context, jobID, jobURL, baseURL string) *jobDetail {
	if jobURL != "" {
		if d := e.tryPage(ctx, jobURL, baseURL); d != nil {
			return d
		}
	}
	if jobID == "" {
		return nil
	}

	escaped := url.PathEscape(jobID)
	for _, pattern := range detailPagePatterns {
		if ctx.Err() != nil {
			return nil
		}
		target := utils.JoinURL(baseURL, strings.ReplaceAll(pattern, "{id}", escaped))
		if d := e.tryPage(ctx, target, baseURL); d != nil {
			return d
		}
	}
	for _, pattern := range detailAPIPatterns {
		if ctx.Err() != nil {
			return nil
		}
		target := utils.JoinURL(baseURL, strings.ReplaceAll(pattern, "{id}", escaped))
		if d := e.tryAPI(ctx, target); d != nil {
			return d
		}
	}
	return nil
}

// tryPage accepts a JSON object when the response declares JSON and otherwise
// parses the body as HTML
func (e *Enricher) tryPage(ctx context.Context, target, baseURL string) *jobDetail {
	if !utils.IsAbsoluteURL(target) {
		target = utils.JoinURL(baseURL, target)
	}

	resp := e.client.Get(ctx, target, nil, nil)
	if resp == nil {
		return nil
	}

	if resp.IsJSON() {
		if data, err := resp.JSON(); err == nil {
			if m, ok := data.(map[string]any); ok && len(m) > 0 {
				return &jobDetail{data: m}
			}
			return nil
		}
	}
	if !resp.IsHTML() {
		e.logger.Debug("skipping non-html detail resource", zap.String("url", target), zap.String("content_type", resp.ContentType()))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		e.logger.Debug("failed to parse detail page", zap.String("url", target), zap.Error(err))
		return nil
	}
	return &jobDetail{doc: doc}
}

func (e *Enricher) tryAPI(ctx context.Context, target string) *jobDetail {
	resp := e.client.Get(ctx, target, nil, map[string]string{"Content-Type": "application/json"})
	if resp == nil {
		return nil
	}
	data, err := resp.JSON()
	if err != nil {
		return nil
	}
	if m, ok := data.(map[string]any); ok && len(m) > 0 {
		return &jobDetail{data: m}
	}
	return nil
}

func (d *jobDetail) description() string {
	if d.data != nil {
		return jsonDescription(d.data)
	}

	for _, sel := range descriptionSelectors {
		if html := outerHTML(d.doc.Find(sel)); html != "" {
			return html
		}
	}
	if html := outerHTML(d.doc.Find("main")); html != "" {
		return html
	}
	return outerHTML(d.doc.Find("article"))
}

func (d *jobDetail) applicationURL(baseURL string) string {
	var href string
	if d.data != nil {
		href = jsonApplyURL(d.data)
	} else {
		for _, sel := range applySelectors {
			node := d.doc.Find(sel).First()
			if node.Length() == 0 {
				continue
			}
			href = strings.TrimSpace(node.AttrOr("href", ""))
			if href == "" {
				href = strings.TrimSpace(node.AttrOr("data-href", ""))
			}
			if href != "" {
				break
			}
		}
	}

	if href == "" {
		return ""
	}
	return utils.JoinURL(baseURL, href)
}

func jsonDescription(data map[string]any) string {
	if v, ok := utils.FirstTruthy(data, descriptionKeys); ok {
		return utils.Stringify(v)
	}
	if nested, ok := data["data"].(map[string]any); ok {
		if v, ok := utils.FirstTruthy(nested, descriptionKeys); ok {
			return utils.Stringify(v)
		}
	}
	return ""
}

func jsonApplyURL(data map[string]any) string {
	if v, ok := utils.FirstTruthy(data, applyURLKeys); ok {
		return utils.Stringify(v)
	}
	if nested, ok := data["data"].(map[string]any); ok {
		if v, ok := utils.FirstTruthy(nested, applyURLKeys); ok {
			return utils.Stringify(v)
		}
	}
	return ""
}

func outerHTML(sel *goquery.Selection) string {
	first := sel.First()
	if first.Length() == 0 {
		return ""
	}
	html, err := goquery.OuterHtml(first)
	if err != nil {
		return ""
	}
	return html
}

func firstString(job models.RawJob, keys []string) string {
	v, ok := utils.FirstTruthy(job, keys)
	if !ok {
		return ""
	}
	return strings.TrimSpace(utils.Stringify(v))
}
