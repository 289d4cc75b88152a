package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/utils"
)

// endpointTemplate is one candidate job search API shape
type endpointTemplate struct {
	Method       string
	Path         string
	RequiresJSON bool
}

// Probed in order until one returns job-like JSON
var endpointTemplates = []endpointTemplate{
	{Method: http.MethodPost, Path: "/services/JobSearch", RequiresJSON: true},
	{Method: http.MethodPost, Path: "/careers/SearchJobs", RequiresJSON: true},
	{Method: http.MethodGet, Path: "/api/jobs"},
	{Method: http.MethodGet, Path: "/api/v1/jobs"},
	{Method: http.MethodPost, Path: "/api/jobs/search", RequiresJSON: true},
	{Method: http.MethodGet, Path: "/careers/api/jobs"},
}

// Detector discovers which job search API a careers site exposes
type Detector struct {
	client    client.Requester
	logger    *zap.Logger
	mineHints bool
}

// NewDetector creates a detector. Script hint mining is enabled by default.
func NewDetector(c client.Requester, logger *zap.Logger) *Detector {
	return &Detector{
		client:    c,
		logger:    logger,
		mineHints: true,
	}
}

// WithoutHints disables fetching the base page for script hints
func (d *Detector) WithoutHints() *Detector {
	d.mineHints = false
	return d
}

// Detect probes the candidate templates against baseURL and returns the first
// endpoint whose response looks like a job listing. The bool is false when no
// candidate validated, which is an expected outcome rather than an error.
func (d *Detector) Detect(ctx context.Context, baseURL string) (*models.EndpointConfig, bool) {
	baseURL = strings.TrimRight(baseURL, "/")
	logger := d.logger.With(zap.String("site", baseURL))
	logger.Info("detecting endpoint")

	var hints *models.ConfigHints
	if d.mineHints {
		hints = d.collectHints(ctx, baseURL)
		if !hints.Empty() {
			logger.Debug("found config hints",
				zap.Strings("api_endpoints", hints.APIEndpoints),
				zap.Any("api_params", hints.APIParams))
		}
	}

	for _, tmpl := range orderTemplates(endpointTemplates, hints) {
		if ctx.Err() != nil {
			return nil, false
		}

		endpoint := utils.ResolveURL(baseURL, tmpl.Path)
		logger.Debug("trying endpoint", zap.String("method", tmpl.Method), zap.String("endpoint", endpoint))

		resp := d.probe(ctx, tmpl, endpoint, hints)
		if resp == nil {
			continue
		}

		cfg, ok := validateResponse(resp, tmpl.Method, endpoint)
		if !ok {
			logger.Debug("no job-like fields in response", zap.String("endpoint", endpoint))
			continue
		}
		if !hints.Empty() {
			cfg.ConfigHints = hints
		}

		logger.Info("detected working endpoint",
			zap.String("method", cfg.Method),
			zap.String("endpoint", cfg.Endpoint),
			zap.String("pagination", string(cfg.PaginationType)))
		return cfg, true
	}

	logger.Warn("no working endpoint detected")
	return nil, false
}

// probe issues the request for one template and returns the response only if
// it declares JSON
func (d *Detector) probe(ctx context.Context, tmpl endpointTemplate, endpoint string, hints *models.ConfigHints) *client.Response {
	var headers map[string]string
	if tmpl.RequiresJSON {
		headers = map[string]string{"Content-Type": "application/json"}
	}

	var resp *client.Response
	switch tmpl.Method {
	case http.MethodGet:
		var params map[string]string
		if hints != nil && len(hints.APIParams) > 0 {
			params = make(map[string]string, len(hints.APIParams))
			for k, v := range hints.APIParams {
				params[k] = utils.Stringify(v)
			}
		}
		resp = d.client.Get(ctx, endpoint, params, headers)
	default:
		var payload map[string]any
		if tmpl.RequiresJSON {
			payload = probePayload(hints)
		}
		resp = d.client.PostJSON(ctx, endpoint, payload, headers)
	}

	if resp == nil {
		return nil
	}
	if !resp.IsJSON() {
		d.logger.Debug("response is not JSON",
			zap.String("endpoint", endpoint),
			zap.String("content_type", resp.ContentType()))
		return nil
	}
	return resp
}

// probePayload is the minimal search body with hinted parameters layered on top
func probePayload(hints *models.ConfigHints) map[string]any {
	payload := map[string]any{"page": 1, "pageSize": 10}
	if hints == nil || len(hints.APIParams) == 0 {
		return payload
	}
	if err := mergo.Merge(&payload, hints.APIParams, mergo.WithOverride); err != nil {
		return map[string]any{"page": 1, "pageSize": 10}
	}
	return payload
}

// orderTemplates moves templates whose path overlaps a hinted API path to the
// front, keeping relative order within both groups
func orderTemplates(templates []endpointTemplate, hints *models.ConfigHints) []endpointTemplate {
	if hints == nil || len(hints.APIEndpoints) == 0 {
		return templates
	}

	preferred := make([]endpointTemplate, 0, len(templates))
	var rest []endpointTemplate
	for _, tmpl := range templates {
		if overlapsHint(tmpl.Path, hints.APIEndpoints) {
			preferred = append(preferred, tmpl)
		} else {
			rest = append(rest, tmpl)
		}
	}
	return append(preferred, rest...)
}

func overlapsHint(path string, hinted []string) bool {
	p := strings.ToLower(strings.TrimRight(path, "/"))
	for _, h := range hinted {
		hp := hintPath(h)
		if hp == "" || hp == "/" {
			continue
		}
		if strings.Contains(hp, p) || strings.Contains(p, hp) {
			return true
		}
	}
	return false
}

// hintPath reduces a hinted endpoint to its lower-cased path
func hintPath(h string) string {
	h = strings.TrimSpace(h)
	if u, err := url.Parse(h); err == nil {
		h = u.Path
	} else if i := strings.IndexAny(h, "?#"); i >= 0 {
		h = h[:i]
	}
	return strings.ToLower(strings.TrimRight(h, "/"))
}
