package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/client"
	"github.com/amazonking-dev/avature-ats-scraper/internal/config"
	"github.com/amazonking-dev/avature-ats-scraper/internal/logging"
	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
	"github.com/amazonking-dev/avature-ats-scraper/internal/pipeline"
	"github.com/amazonking-dev/avature-ats-scraper/internal/stats"
	"github.com/amazonking-dev/avature-ats-scraper/internal/store"
	"github.com/amazonking-dev/avature-ats-scraper/internal/ui"
)

// ExitInterrupted is the exit status of a run stopped by SIGINT
const ExitInterrupted = 130

type rootFlags struct {
	configPath string
	input      string
	outputDir  string
	sqlite     string
	proxy      string
	maxPages   int
	debug      bool
	noEnrich   bool
	noHints    bool
	silence    bool
	noBanner   bool
}

// NewRootCmd builds the avature-scraper command
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "avature-scraper [site-url...]",
		Short: "Scrape job postings from Avature career sites",
		Long: `Detects the job search API of each Avature careers site, pages through every
listing, optionally fetches job details and writes the normalized, deduplicated
jobs to a JSON file. Sites come from the arguments or from the input file.`,
		Example: `  avature-scraper --input input/avature_sites.txt
  avature-scraper https://acme.avature.net/careers --no-enrich --debug
  avature-scraper --config config.yaml --sqlite output/jobs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file (default config.yaml when present)")
	fl.StringVarP(&f.input, "input", "i", "", "file with one site URL per line")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "directory for the jobs and stats files")
	fl.StringVar(&f.sqlite, "sqlite", "", "also upsert jobs into this SQLite database")
	fl.StringVar(&f.proxy, "proxy", "", "proxy URL for every request")
	fl.IntVar(&f.maxPages, "max-pages", 0, "upper bound on listing pages per site")
	fl.BoolVar(&f.debug, "debug", false, "enable debug logging")
	fl.BoolVar(&f.noEnrich, "no-enrich", false, "skip fetching job detail pages")
	fl.BoolVar(&f.noHints, "no-hints", false, "skip mining the careers page scripts for API hints")
	fl.BoolVar(&f.silence, "silence", false, "silence the banner and progress bars")
	fl.BoolVar(&f.noBanner, "nobanner", false, "alias for --silence")
	_ = fl.MarkHidden("nobanner")

	return cmd
}

// ExecuteContext runs the root command and returns the process exit status
func ExecuteContext(ctx context.Context) int {
	err := NewRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pipeline.ErrInterrupted), errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted, jobs file not written")
		return ExitInterrupted
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}

func run(cmd *cobra.Command, f *rootFlags, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if f.debug {
		level = "debug"
	}
	logger, err := logging.Setup(level, cfg.Logging.Format)
	if err != nil {
		logger = logging.Fallback()
		logger.Warn("falling back to default logger", zap.Error(err))
	}
	defer logging.Sync()

	silent := f.silence || f.noBanner
	ui.PrintBanner(cmd.OutOrStdout(), silent)

	sites, err := siteURLs(cfg, args, logger)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		return errors.New("no site urls to scrape")
	}
	logger.Info("starting run", zap.Int("sites", len(sites)), zap.Bool("enrich", cfg.Scraper.Enrich))

	recorder, err := stats.NewCSVSink(filepath.Join(cfg.OutputDir, cfg.Output.StatsFile), logger.Named("stats"))
	if err != nil {
		return err
	}

	httpLogger := logger.Named("http")
	detectClient := client.New(client.Options{
		Timeout:   cfg.Scraper.DetectTimeout,
		UserAgent: cfg.Scraper.UserAgent,
		ProxyURL:  cfg.Scraper.Proxy,
	}, httpLogger)
	fetchClient := client.New(client.Options{
		Timeout:   cfg.Scraper.RequestTimeout,
		UserAgent: cfg.Scraper.UserAgent,
		ProxyURL:  cfg.Scraper.Proxy,
	}, httpLogger)

	p := pipeline.New(detectClient, fetchClient, recorder, pipeline.Options{
		Enrich:    cfg.Scraper.Enrich,
		MaxPages:  cfg.Scraper.MaxPages,
		SkipHints: !cfg.Scraper.MineHints,
		Progress:  ui.NewEnrichBar(cmd.ErrOrStderr(), silent),
	}, logger.Named("pipeline"))

	start := time.Now()
	jobs, err := p.ScrapeSites(ctx, sites)
	if err != nil {
		logger.Warn("run interrupted", zap.Int("jobs", len(jobs)))
		return err
	}

	jobsPath := filepath.Join(cfg.OutputDir, cfg.Output.JobsFile)
	if err := saveJobs(ctx, cfg, jobsPath, jobs, logger); err != nil {
		return err
	}

	summary := ui.RunSummary{
		Sites:      recorder.Records(),
		UniqueJobs: len(jobs),
		Elapsed:    time.Since(start),
		StatsFile:  recorder.Path(),
		Hyperlinks: isatty.IsTerminal(os.Stdout.Fd()),
	}
	if info, err := os.Stat(jobsPath); err == nil && len(jobs) > 0 {
		summary.JobsFile = jobsPath
		summary.JobsBytes = info.Size()
	}

	out, err := ui.RenderSummary(summary)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// loadConfig layers explicitly set flags over the file and environment config
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("input") {
		cfg.Input = f.input
	}
	if fl.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if fl.Changed("sqlite") {
		cfg.Output.SQLitePath = f.sqlite
	}
	if fl.Changed("proxy") {
		cfg.Scraper.Proxy = f.proxy
	}
	if fl.Changed("max-pages") {
		cfg.Scraper.MaxPages = f.maxPages
	}
	if f.noEnrich {
		cfg.Scraper.Enrich = false
	}
	if f.noHints {
		cfg.Scraper.MineHints = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// siteURLs prefers positional arguments over the input file
func siteURLs(cfg *config.Config, args []string, logger *zap.Logger) ([]string, error) {
	if len(args) > 0 {
		return store.ParseSites(strings.NewReader(strings.Join(args, "\n")), logger)
	}
	return store.LoadSites(cfg.Input, logger)
}

// saveJobs writes the JSON file and, when configured, the SQLite database
func saveJobs(ctx context.Context, cfg *config.Config, jobsPath string, jobs []models.NormalizedJob, logger *zap.Logger) error {
	sinks := []store.JobSink{store.NewJSONSink(jobsPath, logger.Named("store"))}

	if cfg.Output.SQLitePath != "" {
		db, err := store.OpenSQLite(ctx, cfg.Output.SQLitePath, logger.Named("sqlite"))
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	for _, sink := range sinks {
		if err := sink.Save(ctx, jobs); err != nil {
			return fmt.Errorf("save jobs: %w", err)
		}
	}
	return nil
}
