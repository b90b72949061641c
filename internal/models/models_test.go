package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeErrorSummaryCapsAndCountsOverflow(t *testing.T) {
	var lines []string
	for i := 0; i < MaxErrorSummary+5; i++ {
		lines = append(lines, fmt.Sprintf("row %d", i))
	}

	summary := MergeErrorSummary(nil, lines...)
	assert.Len(t, summary, MaxErrorSummary+1)
	assert.Equal(t, "... and 5 more", summary[MaxErrorSummary])

	summary = MergeErrorSummary(summary, "late", "later")
	assert.Len(t, summary, MaxErrorSummary+1)
	assert.Equal(t, "... and 7 more", summary[MaxErrorSummary])
}

func TestMergeErrorSummaryKeepsOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, MergeErrorSummary([]string{"a"}, "b", "c"))
}

func TestDateRangeContainsIsInclusive(t *testing.T) {
	r := DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, r.Valid())
	assert.True(t, r.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	assert.False(t, DateRange{Start: r.End, End: r.Start}.Valid())
}

func TestParseImportMode(t *testing.T) {
	m, ok := ParseImportMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeIncremental, m)

	m, ok = ParseImportMode("replace")
	assert.True(t, ok)
	assert.Equal(t, ModeReplace, m)

	_, ok = ParseImportMode("merge")
	assert.False(t, ok)
}
