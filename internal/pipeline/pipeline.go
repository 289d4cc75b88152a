package pipeline

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/dedup"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/normalizer"
	"github.com/amazonking-dev/avature-ats-scraper/internal/scraper"
	"github.com/amazonking-dev/avature-ats-scraper/internal/stats"
	"github.com/amazonking-dev/avature-ats-scraper/internal/utils"
)

const errNoEndpoint = "No endpoint detected"

// ErrInterrupted is returned by ScrapeSites when its context is cancelled
// before every site was processed
var ErrInterrupted = errors.New("scrape interrupted")

// Progress reports enrichment progress for one site at a time
type Progress interface {
	Start(site string, total int)
	Increment()
	Finish()
}

// Options tunes a pipeline. SkipHints stops the detector from fetching the
// base page for script hints.
type Options struct {
	Enrich    bool
	MaxPages  int
	SkipHints bool
	Progress  Progress
}

// Pipeline scrapes sites one after another. The deduplicator it owns spans
// every site of a run, so a job listed by two sites is kept once.
type Pipeline struct {
	detector   *scraper.Detector
	lister     *scraper.Lister
	enricher   *scraper.Enricher
	normalizer *normalizer.Normalizer
	tracker    *dedup.Tracker
	recorder   stats.Recorder
	opts       Options
	runID      string
	logger     *zap.Logger
}

// New wires a pipeline. detectClient is used for endpoint probing and
// c for listings and detail pages.
func New(detectClient, c client.Requester, recorder stats.Recorder, opts Options, logger *zap.Logger) *Pipeline {
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	detector := scraper.NewDetector(detectClient, logger.Named("detector"))
	if opts.SkipHints {
		detector = detector.WithoutHints()
	}

	return &Pipeline{
		detector:   detector,
		lister:     scraper.NewLister(c, logger.Named("listing"), opts.MaxPages),
		enricher:   scraper.NewEnricher(c, logger.Named("detail")),
		normalizer: normalizer.New(logger.Named("normalizer")),
		tracker:    dedup.NewTracker(logger.Named("dedup")),
		recorder:   recorder,
		opts:       opts,
		runID:      runID,
		logger:     logger,
	}
}

func (p *Pipeline) RunID() string {
	return p.runID
}

// ScrapeSite runs detection, listing, enrichment, normalization and dedup for
// one site and records a stats row. It never fails: problems are logged,
// recorded and an empty or partial job list is returned.
func (p *Pipeline) ScrapeSite(ctx context.Context, siteURL string) (jobs []models.NormalizedJob) {
	siteURL = strings.TrimSpace(siteURL)
	logger := p.logger.With(zap.String("site", siteURL))
	var endpoint string

	defer func() {
		if r := recover(); r != nil {
			err := goerrors.Wrap(r, 2)
			logger.Error("site scrape failed", zap.String("error", err.Error()), zap.String("stack", err.ErrorStack()))
			p.record(ctx, logger, models.SiteStat{
				SiteURL:          siteURL,
				Status:           models.StatusFailure,
				TotalJobsScraped: len(jobs),
				EndpointUsed:     endpoint,
				ErrorMessage:     err.Error(),
			})
		}
	}()

	logger.Info("scraping site")

	cfg, ok := p.detector.Detect(ctx, siteURL)
	if !ok {
		logger.Warn("no endpoint detected")
		p.record(ctx, logger, models.SiteStat{
			SiteURL:      siteURL,
			Status:       models.StatusFailure,
			ErrorMessage: errNoEndpoint,
		})
		return nil
	}
	endpoint = cfg.Endpoint
	logger = logger.With(zap.String("endpoint", endpoint))
	logger.Info("detected endpoint", zap.String("method", cfg.Method), zap.String("pagination", string(cfg.PaginationType)))

	raw := p.lister.FetchAll(ctx, cfg)
	if len(raw) == 0 {
		logger.Warn("no jobs found")
		p.record(ctx, logger, models.SiteStat{
			SiteURL:      siteURL,
			Status:       models.StatusSuccess,
			EndpointUsed: endpoint,
		})
		return nil
	}

	if p.opts.Enrich {
		raw = p.enrich(ctx, raw, siteURL, logger)
	}

	normalized := p.normalizer.NormalizeAll(raw, sourceSite(siteURL))
	jobs = p.tracker.Deduplicate(normalized)

	p.record(ctx, logger, models.SiteStat{
		SiteURL:          siteURL,
		Status:           models.StatusSuccess,
		TotalJobsScraped: len(jobs),
		EndpointUsed:     endpoint,
	})
	logger.Info("scraped site", zap.Int("raw", len(raw)), zap.Int("unique", len(jobs)))
	return jobs
}

// ScrapeSites processes sites in order, skipping blank entries and '#'
// comments. On cancellation it stops and returns ErrInterrupted along with
// the jobs gathered so far.
func (p *Pipeline) ScrapeSites(ctx context.Context, siteURLs []string) ([]models.NormalizedJob, error) {
	var all []models.NormalizedJob
	for _, site := range siteURLs {
		site = strings.TrimSpace(site)
		if site == "" || strings.HasPrefix(site, "#") {
			continue
		}
		if ctx.Err() != nil {
			return all, ErrInterrupted
		}
		all = append(all, p.ScrapeSite(ctx, site)...)
	}
	if ctx.Err() != nil {
		return all, ErrInterrupted
	}
	return all, nil
}

// ResetDeduplicator forgets every fingerprint seen in this run
func (p *Pipeline) ResetDeduplicator() {
	p.tracker.Reset()
}

func (p *Pipeline) enrich(ctx context.Context, raw []models.RawJob, siteURL string, logger *zap.Logger) []models.RawJob {
	logger.Info("enriching jobs", zap.Int("jobs", len(raw)))
	if p.opts.Progress != nil {
		p.opts.Progress.Start(siteURL, len(raw))
		defer p.opts.Progress.Finish()
	}

	enriched := make([]models.RawJob, 0, len(raw))
	for i, job := range raw {
		if ctx.Err() != nil {
			// keep the remainder unenriched
			return append(enriched, raw[i:]...)
		}
		enriched = append(enriched, p.enricher.Enrich(ctx, job, siteURL))
		if p.opts.Progress != nil {
			p.opts.Progress.Increment()
		}
		if (i+1)%10 == 0 {
			logger.Debug("enrichment progress", zap.Int("done", i+1), zap.Int("total", len(raw)))
		}
	}
	return enriched
}

// record writes a stats row unless the run was interrupted
func (p *Pipeline) record(ctx context.Context, logger *zap.Logger, stat models.SiteStat) {
	if ctx.Err() != nil || p.recorder == nil {
		return
	}
	if err := p.recorder.Record(stat); err != nil {
		logger.Warn("failed to record site stats", zap.Error(err))
	}
}

// sourceSite is the scheme and host of a site URL
func sourceSite(siteURL string) string {
	if origin := utils.Origin(siteURL); origin != "" {
		return origin
	}
	return siteURL
}
