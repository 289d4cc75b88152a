package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// LoadSites reads one site URL per line. Blank lines and '#' comments are
// skipped, as are lines that are not http(s) URLs.
func LoadSites(path string, logger *zap.Logger) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open site list: %w", err)
	}
	defer f.Close()

	return ParseSites(f, logger)
}

// ParseSites is LoadSites over an arbitrary reader
func ParseSites(r io.Reader, logger *zap.Logger) ([]string, error) {
	var sites []string
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			logger.Warn("skipping invalid site url", zap.Int("line", lineNo), zap.String("value", line))
			continue
		}
		sites = append(sites, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read site list: %w", err)
	}
	return sites, nil
}
