package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

func newHints() *models.ConfigHints {
	return &models.ConfigHints{APIParams: map[string]any{}}
}

func TestObjectLiteral(t *testing.T) {
	src := `x = {"a": "}", b: {c: '{'}, d: "\"}"} trailing }`
	literal, ok := objectLiteral(src, 4)
	require.True(t, ok)
	require.Equal(t, `{"a": "}", b: {c: '{'}, d: "\"}"}`, literal)

	_, ok = objectLiteral(`{ unterminated`, 0)
	require.False(t, ok)

	_, ok = objectLiteral(`abc`, 0)
	require.False(t, ok)
}

func TestMineScriptStructuredConfig(t *testing.T) {
	hints := newHints()
	mineScript(`
		window.__INITIAL_STATE__ = {
			portal: { apiUrl: "/careers/SearchJobs", itemsPerPage: 30 },
			unrelated: [1, 2, 3],
		};`, hints)

	require.Equal(t, []string{"/careers/SearchJobs"}, uniqueStrings(hints.APIEndpoints))
	require.Equal(t, 30, hints.APIParams["itemsPerPage"])
}

func TestMineScriptFallsBackToLiterals(t *testing.T) {
	hints := newHints()
	// functions are not JSON5, so the object is scanned with patterns instead
	mineScript(`
		var avatureConfig = { baseUrl: "/api/v1/jobs", render: function() { return 1 }, page_size: "15" };
		var endpoint = '/services/JobSearch';`, hints)

	require.ElementsMatch(t, []string{"/api/v1/jobs", "/services/JobSearch"}, uniqueStrings(hints.APIEndpoints))
	require.Equal(t, 15, hints.APIParams["page_size"])
}

func TestMineScriptIgnoresUnrelatedCode(t *testing.T) {
	hints := newHints()
	mineScript(`console.log("hello"); var x = {a: 1};`, hints)
	require.True(t, hints.Empty())
}
