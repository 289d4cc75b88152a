package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

// RunSummary is what a finished run reports back to the user
type RunSummary struct {
	Sites      []models.SiteStat
	UniqueJobs int
	Elapsed    time.Duration
	JobsFile   string
	JobsBytes  int64
	StatsFile  string
	Hyperlinks bool
}

// RenderSummary renders the per-site table followed by the run totals
func RenderSummary(s RunSummary) (string, error) {
	data := pterm.TableData{{"Site", "Status", "Jobs", "Endpoint", "Error"}}
	succeeded := 0
	for _, site := range s.Sites {
		status := pterm.Red(string(site.Status))
		if site.Status == models.StatusSuccess {
			status = pterm.Green(string(site.Status))
			succeeded++
		}
		data = append(data, []string{
			site.SiteURL,
			status,
			humanize.Comma(int64(site.TotalJobsScraped)),
			Hyperlink(site.EndpointUsed, site.EndpointUsed, s.Hyperlinks),
			site.ErrorMessage,
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return "", fmt.Errorf("render summary table: %w", err)
	}

	totals := fmt.Sprintf("%s unique jobs from %d/%d sites in %s",
		humanize.Comma(int64(s.UniqueJobs)), succeeded, len(s.Sites), s.Elapsed.Round(time.Millisecond))
	if s.JobsFile != "" {
		totals += fmt.Sprintf("\njobs: %s (%s)", s.JobsFile, humanize.Bytes(uint64(s.JobsBytes)))
	}
	if s.StatsFile != "" {
		totals += fmt.Sprintf("\nstats: %s", s.StatsFile)
	}
	return table + "\n" + totals, nil
}
