package scraper

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/utils"
)

const (
	listingPageSize = 50
	DefaultMaxPages = 500
)

var cursorKeys = []string{"nextCursor", "next_cursor", "cursor", "continuationToken"}

// Lister walks every page of a detected endpoint
type Lister struct {
	client   client.Requester
	logger   *zap.Logger
	maxPages int
}

// NewLister creates a lister. maxPages bounds every pagination loop; values
// below one fall back to DefaultMaxPages.
func NewLister(c client.Requester, logger *zap.Logger, maxPages int) *Lister {
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}
	return &Lister{client: c, logger: logger, maxPages: maxPages}
}

type listingPage struct {
	data any
	body []byte
}

// FetchAll collects raw jobs from every page. A failed request ends pagination
// but keeps whatever was already collected.
func (l *Lister) FetchAll(ctx context.Context, cfg *models.EndpointConfig) []models.RawJob {
	if cfg == nil || cfg.Endpoint == "" {
		l.logger.Error("invalid endpoint config")
		return nil
	}

	logger := l.logger.With(
		zap.String("endpoint", cfg.Endpoint),
		zap.String("pagination", string(cfg.PaginationType)))
	logger.Info("fetching listings")

	var jobs []models.RawJob
	switch cfg.PaginationType {
	case models.PaginationPage:
		jobs = l.fetchPageBased(ctx, cfg, logger)
	case models.PaginationOffset:
		jobs = l.fetchOffsetBased(ctx, cfg, logger)
	case models.PaginationCursor:
		jobs = l.fetchCursorBased(ctx, cfg, logger)
	default:
		jobs = l.fetchSingle(ctx, cfg, logger)
	}

	logger.Info("fetched listings", zap.Int("jobs", len(jobs)))
	return jobs
}

func (l *Lister) fetchPageBased(ctx context.Context, cfg *models.EndpointConfig, logger *zap.Logger) []models.RawJob {
	var all []models.RawJob
	for page := 1; page <= l.maxPages; page++ {
		res, ok := l.request(ctx, cfg, map[string]any{"page": page, "pageSize": listingPageSize})
		if !ok {
			break
		}

		jobs := l.extract(res, cfg, logger)
		if len(jobs) == 0 {
			break
		}
		all = append(all, jobs...)
		logger.Debug("fetched page", zap.Int("page", page), zap.Int("jobs", len(jobs)))

		if !hasMorePages(res.body, page) {
			break
		}
		if page == l.maxPages {
			logger.Warn("page cap reached", zap.Int("max_pages", l.maxPages))
		}
	}
	return all
}

func (l *Lister) fetchOffsetBased(ctx context.Context, cfg *models.EndpointConfig, logger *zap.Logger) []models.RawJob {
	var all []models.RawJob
	offset := 0
	for i := 0; i < l.maxPages; i++ {
		res, ok := l.request(ctx, cfg, map[string]any{"offset": offset, "limit": listingPageSize})
		if !ok {
			break
		}

		jobs := l.extract(res, cfg, logger)
		if len(jobs) == 0 {
			break
		}
		all = append(all, jobs...)
		logger.Debug("fetched offset", zap.Int("offset", offset), zap.Int("jobs", len(jobs)))

		if len(jobs) < listingPageSize {
			break
		}
		offset += listingPageSize
		if i == l.maxPages-1 {
			logger.Warn("page cap reached", zap.Int("max_pages", l.maxPages))
		}
	}
	return all
}

func (l *Lister) fetchCursorBased(ctx context.Context, cfg *models.EndpointConfig, logger *zap.Logger) []models.RawJob {
	var all []models.RawJob
	cursor := ""
	for i := 0; i < l.maxPages; i++ {
		payload := map[string]any{"pageSize": listingPageSize}
		if cursor != "" {
			payload["cursor"] = cursor
		}

		res, ok := l.request(ctx, cfg, payload)
		if !ok {
			break
		}

		jobs := l.extract(res, cfg, logger)
		if len(jobs) == 0 {
			break
		}
		all = append(all, jobs...)

		next := nextCursor(res.data)
		if next == "" {
			break
		}
		if next == cursor {
			logger.Warn("cursor did not advance", zap.String("cursor", cursor))
			break
		}
		cursor = next
		if i == l.maxPages-1 {
			logger.Warn("page cap reached", zap.Int("max_pages", l.maxPages))
		}
	}
	return all
}

func (l *Lister) fetchSingle(ctx context.Context, cfg *models.EndpointConfig, logger *zap.Logger) []models.RawJob {
	res, ok := l.request(ctx, cfg, nil)
	if !ok {
		return nil
	}
	return l.extract(res, cfg, logger)
}

// request sends payload as query parameters for GET endpoints and as a JSON
// body otherwise
func (l *Lister) request(ctx context.Context, cfg *models.EndpointConfig, payload map[string]any) (*listingPage, bool) {
	var resp *client.Response
	if cfg.Method == http.MethodGet {
		var params map[string]string
		if len(payload) > 0 {
			params = make(map[string]string, len(payload))
			for k, v := range payload {
				params[k] = utils.Stringify(v)
			}
		}
		resp = l.client.Get(ctx, cfg.Endpoint, params, nil)
	} else {
		if payload == nil {
			payload = map[string]any{}
		}
		resp = l.client.PostJSON(ctx, cfg.Endpoint, payload, nil)
	}
	if resp == nil {
		return nil, false
	}

	data, err := resp.JSON()
	if err != nil {
		l.logger.Warn("listing response is not valid JSON",
			zap.String("endpoint", cfg.Endpoint),
			zap.Error(err))
		return nil, false
	}
	return &listingPage{data: data, body: resp.Body}, true
}

func (l *Lister) extract(res *listingPage, cfg *models.EndpointConfig, logger *zap.Logger) []models.RawJob {
	jobs, found := extractJobs(res.data, cfg.DetectedSchemaKeys)
	if !found {
		logger.Warn("could not locate job array in response")
	}
	return jobs
}

// hasMorePages reads the pagination signals of a page-based response. With no
// signal at all another page is assumed.
func hasMorePages(body []byte, current int) bool {
	for _, key := range []string{"hasMore", "has_more"} {
		if r := gjson.GetBytes(body, key); r.Exists() {
			return r.Bool()
		}
	}
	for _, key := range []string{"nextPage", "next_page"} {
		if r := gjson.GetBytes(body, key); r.Exists() {
			return r.Type != gjson.Null
		}
	}
	for _, key := range []string{"totalPages", "total_pages"} {
		if r := gjson.GetBytes(body, key); r.Exists() {
			return int64(current) < r.Int()
		}
	}
	return true
}

func nextCursor(data any) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	v, ok := utils.FirstTruthy(m, cursorKeys)
	if !ok {
		return ""
	}
	return utils.Stringify(v)
}
