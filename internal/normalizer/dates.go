package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Absolute layouts, tried in order. Day-first layouts only match when the
// month-first reading is impossible.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"1/2/2006",
	"2/1/2006",
	"2-1-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006/1/2",
	time.RFC1123,
	time.RFC1123Z,
}

var relativeDatePattern = regexp.MustCompile(`^(\d+)\s*(days?|weeks?|months?|years?)\s*ago`)

const (
	// Unix seconds outside this range are not plausible posting dates
	maxUnixSeconds = 253402300799 // 9999-12-31T23:59:59Z

	// "N units ago" beyond this many days cannot land in year 1 or later
	maxRelativeDays = 10000 * 366
)

// ParseDate normalizes a date string to YYYY-MM-DD. It tries the absolute
// layouts, then Unix seconds, then "<N> <unit> ago" relative to now.
func ParseDate(raw string, now time.Time) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) <= maxUnixSeconds {
			sec, frac := math.Modf(f)
			return formatDate(time.Unix(int64(sec), int64(frac*1e9)).UTC())
		}
	}

	if m := relativeDatePattern.FindStringSubmatch(strings.ToLower(s)); m != nil {
		amount, err := strconv.Atoi(m[1])
		if err != nil || amount > maxRelativeDays {
			return "", false
		}

		var days int
		switch strings.TrimSuffix(m[2], "s") {
		case "day":
			days = amount
		case "week":
			days = amount * 7
		case "month":
			days = amount * 30
		case "year":
			days = amount * 365
		}
		if days > maxRelativeDays {
			return "", false
		}
		return formatDate(now.AddDate(0, 0, -days))
	}

	return "", false
}

// formatDate rejects dates that YYYY-MM-DD cannot express
func formatDate(t time.Time) (string, bool) {
	if t.Year() < 1 || t.Year() > 9999 {
		return "", false
	}
	return t.Format(isoDate), true
}
