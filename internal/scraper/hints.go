package scraper

import (
	"bytes"
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

const maxHintDepth = 5

var (
	configAssignPattern = regexp.MustCompile(
		`(?:window\.|var\s+|let\s+|const\s+)?(?:__INITIAL_STATE__|__PRELOADED_STATE__|__APP_CONFIG__|__CONFIG__|avatureConfig|AVATURE|portalConfig|careerSiteConfig|appConfig)\s*=\s*\{`)
	endpointLiteralPattern = regexp.MustCompile(
		`["']?(?:apiEndpoint|apiUrl|baseUrl|endpoint)["']?\s*[:=]\s*["']([^"']+)["']`)
	pageSizeLiteralPattern = regexp.MustCompile(
		`["']?(pageSize|page_size|itemsPerPage)["']?\s*[:=]\s*["']?(\d+)`)
)

var (
	endpointHintKeys = map[string]bool{"apiEndpoint": true, "apiUrl": true, "baseUrl": true, "endpoint": true}
	paramHintKeys    = map[string]bool{"pageSize": true, "page_size": true, "itemsPerPage": true}
)

// hintExtractor pulls hints out of a chunk of script. It reports whether it
// understood the input; a false return hands the input to the next extractor.
type hintExtractor func(src string, hints *models.ConfigHints) bool

// collectHints fetches the base page and mines inline scripts for API
// configuration. Any failure just yields no hints.
func (d *Detector) collectHints(ctx context.Context, baseURL string) *models.ConfigHints {
	resp := d.client.Get(ctx, baseURL, nil, nil)
	if resp == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		d.logger.Debug("failed to parse base page", zap.String("site", baseURL), zap.Error(err))
		return nil
	}

	hints := &models.ConfigHints{APIParams: map[string]any{}}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		mineScript(s.Text(), hints)
	})

	hints.APIEndpoints = uniqueStrings(hints.APIEndpoints)
	if hints.Empty() {
		return nil
	}
	return hints
}

// mineScript runs the configuration-object extractors over every assignment
// it recognises, then scans the whole script for loose key/value literals
func mineScript(src string, hints *models.ConfigHints) {
	chain := []hintExtractor{extractJSON5Object, extractLiterals}

	for _, loc := range configAssignPattern.FindAllStringIndex(src, -1) {
		literal, ok := objectLiteral(src, loc[1]-1)
		if !ok {
			continue
		}
		for _, extract := range chain {
			if extract(literal, hints) {
				break
			}
		}
	}

	extractLiterals(src, hints)
}

func extractJSON5Object(literal string, hints *models.ConfigHints) bool {
	var obj map[string]any
	if err := json5.Unmarshal([]byte(literal), &obj); err != nil {
		return false
	}
	walkConfig(obj, hints, 0)
	return true
}

func extractLiterals(src string, hints *models.ConfigHints) bool {
	for _, m := range endpointLiteralPattern.FindAllStringSubmatch(src, -1) {
		hints.APIEndpoints = append(hints.APIEndpoints, m[1])
	}
	for _, m := range pageSizeLiteralPattern.FindAllStringSubmatch(src, -1) {
		if n, err := strconv.Atoi(m[2]); err == nil {
			hints.APIParams[m[1]] = n
		}
	}
	return true
}

func walkConfig(v any, hints *models.ConfigHints, depth int) {
	if depth > maxHintDepth {
		return
	}

	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := t[key]
			switch {
			case endpointHintKeys[key]:
				if s, ok := value.(string); ok && s != "" {
					hints.APIEndpoints = append(hints.APIEndpoints, s)
				}
			case paramHintKeys[key]:
				if n, ok := asInt(value); ok {
					hints.APIParams[key] = n
				}
			default:
				walkConfig(value, hints, depth+1)
			}
		}
	case []any:
		for _, item := range t {
			walkConfig(item, hints, depth+1)
		}
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), t > 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil && n > 0
	}
	return 0, false
}

// objectLiteral returns the brace-balanced object starting at src[open],
// skipping braces inside string literals
func objectLiteral(src string, open int) (string, bool) {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return "", false
	}

	depth := 0
	var quote byte
	for i := open; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[open : i+1], true
			}
		}
	}
	return "", false
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
