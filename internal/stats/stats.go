package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

// Header is the first row of the stats file
var Header = []string{"site_url", "timestamp", "status", "total_jobs_scraped", "endpoint_used", "error_message"}

// Recorder receives one stats record per processed site
type Recorder interface {
	Record(stat models.SiteStat) error
}

// CSVSink appends site stats to a CSV file and keeps this run's rows in memory
type CSVSink struct {
	path    string
	logger  *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
	records []models.SiteStat
}

var _ Recorder = (*CSVSink)(nil)

// NewCSVSink creates the file with its header if it does not exist yet
func NewCSVSink(path string, logger *zap.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create stats dir: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := writeRows(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, Header); err != nil {
			return nil, fmt.Errorf("create stats file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat stats file: %w", err)
	}

	return &CSVSink{path: path, logger: logger, now: time.Now}, nil
}

// Path returns the file the sink writes to
func (s *CSVSink) Path() string {
	return s.path
}

// Record appends one row. A zero Timestamp is filled with the current time.
func (s *CSVSink) Record(stat models.SiteStat) error {
	if stat.Timestamp == "" {
		stat.Timestamp = s.now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		stat.SiteURL,
		stat.Timestamp,
		string(stat.Status),
		strconv.Itoa(stat.TotalJobsScraped),
		stat.EndpointUsed,
		stat.ErrorMessage,
	}
	if err := writeRows(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, row); err != nil {
		s.logger.Error("failed to write stats", zap.String("site", stat.SiteURL), zap.Error(err))
		return fmt.Errorf("write stats: %w", err)
	}

	s.records = append(s.records, stat)
	s.logger.Info("recorded site stats",
		zap.String("site", stat.SiteURL),
		zap.String("status", string(stat.Status)),
		zap.Int("jobs", stat.TotalJobsScraped))
	return nil
}

// Records returns the rows recorded by this sink, oldest first
func (s *CSVSink) Records() []models.SiteStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SiteStat(nil), s.records...)
}

// ReadAll parses every data row of a stats file
func ReadAll(path string) ([]models.SiteStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stats: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]models.SiteStat, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(Header) {
			continue
		}
		total, _ := strconv.Atoi(row[3])
		out = append(out, models.SiteStat{
			SiteURL:          row[0],
			Timestamp:        row[1],
			Status:           models.SiteStatus(row[2]),
			TotalJobsScraped: total,
			EndpointUsed:     row[4],
			ErrorMessage:     row[5],
		})
	}
	return out, nil
}

func writeRows(path string, flag int, rows ...[]string) error {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
